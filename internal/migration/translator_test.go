package migration_test

import (
	"github.com/kubev2v/stack-migration/internal/migration"
	"github.com/kubev2v/stack-migration/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("translators", func() {
	translators := migration.DefaultTranslators()

	It("copies records of identity types", func() {
		tr := translators[model.RecordTypeNode]
		original := node(1)

		backup, err := tr.ToBackup(original)
		Expect(err).To(BeNil())
		backup.(*model.Node).Name = "changed"
		Expect(original.Name).To(Equal("node"))
	})

	It("uses a distinct backup form for credentials", func() {
		tr := translators[model.RecordTypeCredential]
		backup, err := tr.ToBackup(&model.Credential{PrincipalID: 3, PassHash: "hash", SecretKey: "key", Algorithm: model.CredentialAlgorithmSHA256})
		Expect(err).To(BeNil())
		Expect(backup).To(Equal(&migration.CredentialBackup{PrincipalID: 3, PassHash: "hash", SecretKey: "key", Algorithm: model.CredentialAlgorithmSHA256}))
	})

	It("fills the algorithm of old credential backups", func() {
		tr := translators[model.RecordTypeCredential]

		r, err := tr.FromBackup(&migration.CredentialBackup{PrincipalID: 3, PassHash: "$pbkdf2$xyz", SecretKey: "key"})
		Expect(err).To(BeNil())
		Expect(r.(*model.Credential).Algorithm).To(Equal(model.CredentialAlgorithmPBKDF2))

		r, err = tr.FromBackup(&migration.CredentialBackup{PrincipalID: 4, PassHash: "abcdef", SecretKey: "key"})
		Expect(err).To(BeNil())
		Expect(r.(*model.Credential).Algorithm).To(Equal(model.CredentialAlgorithmSHA256))
	})

	It("ignores changes of retired object types on restore", func() {
		tr := translators[model.RecordTypeChange]
		Expect(tr.IgnoreOnRestore(&model.Change{ChangeNum: 1, ObjectType: "EVALUATION"})).To(BeTrue())
		Expect(tr.IgnoreOnRestore(&model.Change{ChangeNum: 2, ObjectType: "ENTITY"})).To(BeFalse())
	})

	It("drops ignored rows when reading", func() {
		codec := migration.NewCodec(migration.DefaultRegistry())
		records := []model.Record{
			&model.Change{ChangeNum: 1, ObjectID: 10, ObjectType: "EVALUATION", ChangeType: model.ChangeTypeUpdate},
			&model.Change{ChangeNum: 2, ObjectID: 11, ObjectType: "ENTITY", ChangeType: model.ChangeTypeCreate},
		}
		out := &sink{}
		Expect(codec.Write(out, migration.FromSlice(records), migration.AliasTypeName, 10)).To(Succeed())

		got, err := readAll(codec.Read(newSource(out.Bytes()), migration.AliasTypeName))
		Expect(err).To(BeNil())
		Expect(got).To(Equal(records[1:]))
	})

	It("rejects records of another type", func() {
		_, err := translators[model.RecordTypeNode].ToBackup(acl(1))
		Expect(err).NotTo(BeNil())
	})
})
