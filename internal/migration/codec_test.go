package migration_test

import (
	"bytes"
	"errors"
	"iter"
	"strings"

	"github.com/kubev2v/stack-migration/internal/migration"
	"github.com/kubev2v/stack-migration/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("codec", func() {
	var codec *migration.Codec

	BeforeEach(func() {
		codec = migration.NewCodec(migration.DefaultRegistry())
	})

	write := func(records []model.Record, mode migration.AliasMode, max int) []byte {
		out := &sink{}
		err := codec.Write(out, migration.FromSlice(records), mode, max)
		Expect(err).To(BeNil())
		Expect(out.closes).To(Equal(1))
		return out.Bytes()
	}

	Context("write", func() {
		It("writes one segment per type run", func() {
			data := write([]model.Record{node(123), revision(123, 1)}, migration.AliasTypeName, 100)
			Expect(entryNames(data)).To(Equal([]string{"NODE.0.yaml", "NODE_REVISION.1.yaml"}))
		})

		It("splits runs longer than the segment size", func() {
			records := []model.Record{node(1), node(2), revision(1, 1), revision(2, 1)}
			data := write(records, migration.AliasTypeName, 1)
			Expect(entryNames(data)).To(Equal([]string{
				"NODE.0.yaml",
				"NODE.1.yaml",
				"NODE_REVISION.2.yaml",
				"NODE_REVISION.3.yaml",
			}))
		})

		DescribeTable("keeps every record of a run in its segment",
			func(max int, want map[string]int) {
				records := []model.Record{node(123), node(456), revision(123, 2), revision(456, 1)}
				data := write(records, migration.AliasTableName, max)

				sizes := map[string]int{}
				for _, e := range entries(data) {
					got, err := codec.ReadSegment(strings.NewReader(e.payload), migration.AliasTableName, e.name)
					Expect(err).To(BeNil())
					sizes[e.name] = len(got)
				}
				Expect(sizes).To(Equal(want))
			},
			Entry("one segment per type", 100, map[string]int{
				"NODE.0.yaml":          2,
				"NODE_REVISION.1.yaml": 2,
			}),
			Entry("one record per segment", 1, map[string]int{
				"NODE.0.yaml":          1,
				"NODE.1.yaml":          1,
				"NODE_REVISION.2.yaml": 1,
				"NODE_REVISION.3.yaml": 1,
			}),
		)

		It("starts a new segment when the type switches back", func() {
			records := []model.Record{node(1), revision(1, 1), node(2)}
			data := write(records, migration.AliasTableName, 100)
			Expect(entryNames(data)).To(Equal([]string{"NODE.0.yaml", "NODE_REVISION.1.yaml", "NODE.2.yaml"}))
		})

		It("writes a valid container for no records", func() {
			data := write([]model.Record{}, migration.AliasTypeName, 10)
			Expect(entryNames(data)).To(BeEmpty())

			src := newSource(data)
			it := codec.Read(src, migration.AliasTypeName)
			ok, err := it.HasNext()
			Expect(err).To(BeNil())
			Expect(ok).To(BeFalse())
			Expect(src.closes).To(Equal(1))
		})

		It("writes xml segments", func() {
			xmlCodec := migration.NewCodec(migration.DefaultRegistry(), migration.WithSegmentFormat(migration.XML))
			out := &sink{}
			Expect(xmlCodec.Write(out, migration.FromSlice([]model.Record{node(1)}), migration.AliasTableName, 10)).To(Succeed())
			Expect(entryNames(out.Bytes())).To(Equal([]string{"NODE.0.xml"}))
		})

		It("closes the sink once when writing fails", func() {
			out := &sink{writeErr: errors.New("disk full")}
			err := codec.Write(out, migration.FromSlice([]model.Record{node(1), node(2)}), migration.AliasTypeName, 1)
			Expect(err).NotTo(BeNil())
			Expect(err.Error()).To(ContainSubstring("disk full"))
			Expect(out.closes).To(Equal(1))
		})

		It("closes the sink once when the record source fails", func() {
			failing := iter.Seq2[model.Record, error](func(yield func(model.Record, error) bool) {
				if !yield(node(1), nil) {
					return
				}
				yield(nil, errors.New("query failed"))
			})
			out := &sink{}
			err := codec.Write(out, failing, migration.AliasTypeName, 10)
			Expect(err).To(MatchError(ContainSubstring("query failed")))
			Expect(out.closes).To(Equal(1))
		})

		It("rejects a non positive segment size", func() {
			out := &sink{}
			err := codec.Write(out, migration.FromSlice([]model.Record{node(1)}), migration.AliasTypeName, 0)
			Expect(errors.Is(err, migration.ErrInvalidArgument)).To(BeTrue())
			Expect(out.closes).To(Equal(1))
		})

		It("rejects an unknown alias mode", func() {
			out := &sink{}
			err := codec.Write(out, migration.FromSlice([]model.Record{node(1)}), migration.AliasMode("COLUMN"), 10)
			Expect(errors.Is(err, migration.ErrInvalidArgument)).To(BeTrue())
			Expect(out.closes).To(Equal(1))
		})
	})

	Context("read", func() {
		It("round trips records in order", func() {
			records := []model.Record{node(1), node(2), revision(1, 1), revision(1, 2), acl(7), node(3)}
			data := write(records, migration.AliasTypeName, 2)

			got, err := readAll(codec.Read(newSource(data), migration.AliasTypeName))
			Expect(err).To(BeNil())
			Expect(got).To(Equal(records))
		})

		It("round trips xml segments", func() {
			xmlCodec := migration.NewCodec(migration.DefaultRegistry(), migration.WithSegmentFormat(migration.XML))
			records := []model.Record{node(1), revision(1, 1), acl(3)}
			out := &sink{}
			Expect(xmlCodec.Write(out, migration.FromSlice(records), migration.AliasTableName, 10)).To(Succeed())

			// the default codec reads every format
			got, err := readAll(codec.Read(newSource(out.Bytes()), migration.AliasTableName))
			Expect(err).To(BeNil())
			Expect(got).To(Equal(records))
		})

		It("reads rows labelled under the other alias mode", func() {
			records := []model.Record{node(1), revision(1, 1)}
			data := write(records, migration.AliasTypeName, 10)

			got, err := readAll(codec.Read(newSource(data), migration.AliasTableName))
			Expect(err).To(BeNil())
			Expect(got).To(Equal(records))
		})

		It("skips segments of unregistered types", func() {
			data := write([]model.Record{node(1), acl(2), node(3)}, migration.AliasTypeName, 10)

			reader := migration.NewCodec(registryWithout(model.RecordTypeACL))
			got, err := readAll(reader.Read(newSource(data), migration.AliasTypeName))
			Expect(err).To(BeNil())
			Expect(got).To(Equal([]model.Record{node(1), node(3)}))
		})

		It("skips empty segments", func() {
			data := container(
				entry{name: "NODE.0.yaml", payload: ""},
				entry{name: "NODE.1.yaml", payload: "NODE:\n- id: 5\n  name: five\n"},
				entry{name: "NODE.2.xml", payload: "<list></list>"},
				entry{name: "NODE.3.yaml", payload: "NODE:\n- {}\n"},
			)
			got, err := readAll(codec.Read(newSource(data), migration.AliasTypeName))
			Expect(err).To(BeNil())
			Expect(got).To(HaveLen(1))
			Expect(got[0]).To(Equal(&model.Node{ID: 5, Name: "five"}))
		})

		It("reads legacy entry names", func() {
			data := container(
				entry{name: "NODE.xml", payload: "<list><nodes><id>9</id><name>nine</name></nodes></list>"},
			)
			got, err := readAll(codec.Read(newSource(data), migration.AliasTableName))
			Expect(err).To(BeNil())
			Expect(got).To(Equal([]model.Record{&model.Node{ID: 9, Name: "nine"}}))
		})

		It("fails on a malformed entry name", func() {
			src := newSource(container(entry{name: "NODE.first.yaml", payload: "NODE: []"}))
			_, err := readAll(codec.Read(src, migration.AliasTypeName))
			Expect(errors.Is(err, migration.ErrInvalidEntryName)).To(BeTrue())
			Expect(src.closes).To(Equal(1))
		})

		It("reports a corrupt payload with its cause", func() {
			src := newSource(container(entry{name: "NODE.0.xml", payload: "This is not xml"}))
			_, err := readAll(codec.Read(src, migration.AliasTypeName))
			Expect(errors.Is(err, migration.ErrCorruptSegment)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("no root element"))
			Expect(src.closes).To(Equal(1))
		})

		It("reports rows of another type as corrupt", func() {
			src := newSource(container(entry{name: "NODE.0.yaml", payload: "ACL:\n- id: 1\n"}))
			_, err := readAll(codec.Read(src, migration.AliasTypeName))
			Expect(errors.Is(err, migration.ErrCorruptSegment)).To(BeTrue())
		})

		It("closes the source when reading fails", func() {
			src := &source{readErr: errors.New("something")}
			it := codec.Read(src, migration.AliasTypeName)
			_, err := it.HasNext()
			Expect(err).NotTo(BeNil())
			Expect(err.Error()).To(ContainSubstring("something"))
			Expect(src.closes).To(Equal(1))

			// the failure sticks
			_, err = it.HasNext()
			Expect(err).NotTo(BeNil())
			Expect(it.Close()).To(Succeed())
			Expect(src.closes).To(Equal(1))
		})
	})

	Context("iterator", func() {
		var data []byte

		BeforeEach(func() {
			data = write([]model.Record{node(1)}, migration.AliasTypeName, 10)
		})

		It("requires has next before next", func() {
			it := codec.Read(newSource(data), migration.AliasTypeName)
			defer it.Close()

			_, err := it.Next()
			Expect(err).To(MatchError(migration.ErrNextBeforeHasNext))
		})

		It("requires has next before next on an empty container", func() {
			empty := write([]model.Record{}, migration.AliasTypeName, 10)
			it := codec.Read(newSource(empty), migration.AliasTypeName)
			defer it.Close()

			_, err := it.Next()
			Expect(err).To(MatchError(migration.ErrNextBeforeHasNext))
		})

		It("reports a close before the end of the container", func() {
			data := write([]model.Record{node(1), node(2)}, migration.AliasTypeName, 1)
			src := newSource(data)
			it := codec.Read(src, migration.AliasTypeName)

			ok, err := it.HasNext()
			Expect(err).To(BeNil())
			Expect(ok).To(BeTrue())
			Expect(it.Close()).To(Succeed())
			Expect(src.closes).To(Equal(1))

			_, err = it.HasNext()
			Expect(err).To(MatchError(migration.ErrIteratorClosed))
			_, err = it.Next()
			Expect(err).To(MatchError(migration.ErrIteratorClosed))
		})

		It("keeps reporting the end after a close", func() {
			it := codec.Read(newSource(data), migration.AliasTypeName)
			_, err := readAll(it)
			Expect(err).To(BeNil())
			Expect(it.Close()).To(Succeed())

			ok, err := it.HasNext()
			Expect(err).To(BeNil())
			Expect(ok).To(BeFalse())
		})

		It("follows the has next / next protocol", func() {
			src := newSource(data)
			it := codec.Read(src, migration.AliasTypeName)

			ok, err := it.HasNext()
			Expect(err).To(BeNil())
			Expect(ok).To(BeTrue())

			// repeated calls do not consume records
			ok, err = it.HasNext()
			Expect(err).To(BeNil())
			Expect(ok).To(BeTrue())

			r, err := it.Next()
			Expect(err).To(BeNil())
			Expect(r).To(Equal(node(1)))

			_, err = it.Next()
			Expect(err).To(MatchError(migration.ErrNextBeforeHasNext))

			ok, err = it.HasNext()
			Expect(err).To(BeNil())
			Expect(ok).To(BeFalse())
			Expect(src.closes).To(Equal(1))

			_, err = it.Next()
			Expect(err).To(MatchError(migration.ErrNoMoreRecords))
		})

		It("closes the source when the loop stops early", func() {
			data := write([]model.Record{node(1), node(2), node(3)}, migration.AliasTypeName, 1)
			src := newSource(data)
			for r, err := range codec.Read(src, migration.AliasTypeName).All() {
				Expect(err).To(BeNil())
				Expect(r).To(Equal(node(1)))
				break
			}
			Expect(src.closes).To(Equal(1))
		})
	})

	Context("single segment", func() {
		It("reads a segment payload", func() {
			var buf bytes.Buffer
			Expect(codec.WriteSegment(&buf, model.RecordTypeNode, []model.Record{node(1), node(2)}, migration.AliasTableName)).To(Succeed())

			got, err := codec.ReadSegment(&buf, migration.AliasTableName, "NODE.4.yaml")
			Expect(err).To(BeNil())
			Expect(got).To(Equal([]model.Record{node(1), node(2)}))
		})

		It("reports an unregistered type as empty", func() {
			_, err := codec.ReadSegment(bytes.NewBufferString("RemovedType: []"), migration.AliasTypeName, "RemovedType.0.yaml")
			Expect(errors.Is(err, migration.ErrEmptySegment)).To(BeTrue())
			Expect(errors.Is(err, migration.ErrUnknownType)).To(BeTrue())
		})

		It("reports an unknown row label as empty", func() {
			_, err := codec.ReadSegment(bytes.NewBufferString("<list><RemovedType/></list>"), migration.AliasTypeName, "NODE.0.xml")
			Expect(errors.Is(err, migration.ErrEmptySegment)).To(BeTrue())
		})

		It("reports an empty payload as empty", func() {
			_, err := codec.ReadSegment(bytes.NewBufferString(" \n"), migration.AliasTypeName, "NODE.0.yaml")
			Expect(errors.Is(err, migration.ErrEmptySegment)).To(BeTrue())
			Expect(errors.Is(err, migration.ErrUnknownType)).To(BeFalse())
		})

		It("reports a corrupt yaml payload", func() {
			_, err := codec.ReadSegment(bytes.NewBufferString("This is not yaml"), migration.AliasTypeName, "NODE.0.yaml")
			Expect(errors.Is(err, migration.ErrCorruptSegment)).To(BeTrue())
			Expect(errors.Unwrap(err)).NotTo(BeNil())
		})

		It("refuses records of another type", func() {
			var buf bytes.Buffer
			err := codec.WriteSegment(&buf, model.RecordTypeNode, []model.Record{acl(1)}, migration.AliasTypeName)
			Expect(errors.Is(err, migration.ErrInvalidArgument)).To(BeTrue())
		})
	})
})
