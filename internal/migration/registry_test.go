package migration_test

import (
	"errors"

	"github.com/kubev2v/stack-migration/internal/migration"
	"github.com/kubev2v/stack-migration/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("registry", func() {
	registry := migration.DefaultRegistry()

	Context("resolve", func() {
		It("resolves type names and table names", func() {
			e, err := registry.Resolve("NODE_REVISION", migration.AliasTypeName)
			Expect(err).To(BeNil())
			Expect(e.Type).To(Equal(model.RecordTypeNodeRevision))

			e, err = registry.Resolve("node_revisions", migration.AliasTableName)
			Expect(err).To(BeNil())
			Expect(e.Type).To(Equal(model.RecordTypeNodeRevision))
		})

		It("falls back to the other alias mode", func() {
			e, err := registry.Resolve("acls", migration.AliasTypeName)
			Expect(err).To(BeNil())
			Expect(e.Type).To(Equal(model.RecordTypeACL))
		})

		It("returns an identified error for unknown names", func() {
			_, err := registry.Resolve("RemovedType", migration.AliasTypeName)
			Expect(errors.Is(err, migration.ErrUnknownType)).To(BeTrue())

			var unknown *migration.UnknownTypeError
			Expect(errors.As(err, &unknown)).To(BeTrue())
			Expect(unknown.Name).To(Equal("RemovedType"))
		})

		It("labels rows according to the alias mode", func() {
			e, err := registry.Lookup(model.RecordTypeACLAccess)
			Expect(err).To(BeNil())
			Expect(e.Alias(migration.AliasTableName)).To(Equal("acl_resource_access"))
			Expect(e.Alias(migration.AliasTypeName)).To(Equal("ACL_ACCESS"))
		})
	})

	Context("types", func() {
		It("lists secondary types", func() {
			secondary, err := registry.SecondaryTypesOf(model.RecordTypeNode)
			Expect(err).To(BeNil())
			Expect(secondary).To(Equal([]model.RecordType{model.RecordTypeNodeRevision}))

			secondary, err = registry.SecondaryTypesOf(model.RecordTypeChange)
			Expect(err).To(BeNil())
			Expect(secondary).To(BeEmpty())
		})

		It("lists primary types with change last", func() {
			Expect(registry.PrimaryTypes()).To(Equal([]model.RecordType{
				model.RecordTypeNode,
				model.RecordTypeACL,
				model.RecordTypeCredential,
				model.RecordTypeChange,
			}))
			Expect(registry.Types()).To(HaveLen(6))
		})

		It("returns zero valued prototypes", func() {
			proto, err := registry.PrototypeFor(model.RecordTypeNode)
			Expect(err).To(BeNil())
			Expect(proto).To(Equal(&model.Node{}))

			_, err = registry.PrototypeFor(model.RecordType("RemovedType"))
			Expect(errors.Is(err, migration.ErrUnknownType)).To(BeTrue())
		})

		It("detects empty backup rows", func() {
			e, err := registry.Lookup(model.RecordTypeNode)
			Expect(err).To(BeNil())
			Expect(e.IsEmpty(&model.Node{})).To(BeTrue())
			Expect(e.IsEmpty(node(1))).To(BeFalse())
		})
	})

	Context("construction", func() {
		It("rejects duplicate types", func() {
			_, err := migration.NewRegistry(append(model.Mappings, model.Mappings[0]), migration.DefaultTranslators())
			Expect(err).NotTo(BeNil())
		})

		It("requires a translator per type", func() {
			_, err := migration.NewRegistry(model.Mappings, map[model.RecordType]migration.Translator{})
			Expect(err).NotTo(BeNil())
		})
	})
})

var _ = Describe("entry names", func() {
	It("formats and parses entry names", func() {
		name := migration.EntryName(model.RecordTypeNodeRevision, 12, "yaml")
		Expect(name).To(Equal("NODE_REVISION.12.yaml"))

		typeName, index, ext, err := migration.ParseEntryName(name)
		Expect(err).To(BeNil())
		Expect(typeName).To(Equal("NODE_REVISION"))
		Expect(index).To(Equal(12))
		Expect(ext).To(Equal("yaml"))

		t, err := migration.DefaultRegistry().TypeOfEntry(name)
		Expect(err).To(BeNil())
		Expect(t).To(Equal(model.RecordTypeNodeRevision))
	})

	It("parses legacy entry names", func() {
		typeName, index, ext, err := migration.ParseEntryName("NODE.xml")
		Expect(err).To(BeNil())
		Expect(typeName).To(Equal("NODE"))
		Expect(index).To(Equal(-1))
		Expect(ext).To(Equal("xml"))

		t, err := migration.DefaultRegistry().TypeOfEntry("NODE.xml")
		Expect(err).To(BeNil())
		Expect(t).To(Equal(model.RecordTypeNode))
	})

	DescribeTable("rejects malformed names",
		func(name string) {
			_, _, _, err := migration.ParseEntryName(name)
			Expect(errors.Is(err, migration.ErrInvalidEntryName)).To(BeTrue())
		},
		Entry("no extension", "NODE"),
		Entry("too many parts", "NODE.1.2.yaml"),
		Entry("non numeric index", "NODE.one.yaml"),
		Entry("negative index", "NODE.-1.yaml"),
		Entry("empty type", ".1.yaml"),
	)

	It("reports unknown types by name", func() {
		_, err := migration.DefaultRegistry().TypeOfEntry("RemovedType.1.xml")
		Expect(errors.Is(err, migration.ErrUnknownType)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("RemovedType"))
	})
})
