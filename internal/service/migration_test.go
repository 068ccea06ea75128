package service_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/kubev2v/stack-migration/internal/blob"
	"github.com/kubev2v/stack-migration/internal/events"
	"github.com/kubev2v/stack-migration/internal/migration"
	"github.com/kubev2v/stack-migration/internal/service"
	"github.com/kubev2v/stack-migration/internal/store"
	"github.com/kubev2v/stack-migration/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("migration service", func() {
	var (
		ctx       context.Context
		src       store.Store
		srcDB     *gorm.DB
		dst       store.Store
		dstDB     *gorm.DB
		blobStore *blob.FilesystemStore
		source    *service.MigrationService
	)

	BeforeEach(func() {
		ctx = context.TODO()
		src, srcDB = newSqliteStore("source")
		dst, dstDB = newSqliteStore("destination")
		blobStore = newBlobStore()
		source = service.NewMigrationService(src, blobStore, service.WithStack("prod", "1"))
	})

	insert := func(s store.Store, records ...model.Record) {
		byType := map[model.RecordType][]model.Record{}
		for _, r := range records {
			byType[r.RecordType()] = append(byType[r.RecordType()], r)
		}
		for t, batch := range byType {
			_, err := s.Migratable().CreateOrUpdate(ctx, t, batch)
			Expect(err).To(BeNil())
		}
	}

	countRows := func(db *gorm.DB, table string) int {
		var count int
		Expect(db.Raw("SELECT COUNT(*) FROM " + table).Scan(&count).Error).To(BeNil())
		return count
	}

	backup := func(t model.RecordType, minID, maxID int64, secondary bool) string {
		resp, err := source.Backup(ctx, &service.BackupTypeRangeRequest{
			Type:                  t,
			AliasType:             migration.AliasTypeName,
			BatchSize:             2,
			MinimumID:             minID,
			MaximumID:             maxID,
			IncludeSecondaryTypes: secondary,
		})
		Expect(err).To(BeNil())
		return resp.BackupFileKey
	}

	restoreRequest := func(t model.RecordType, key string) *service.RestoreTypeRequest {
		return &service.RestoreTypeRequest{
			Type:          t,
			AliasType:     migration.AliasTypeName,
			BatchSize:     2,
			BackupFileKey: key,
		}
	}

	Context("backup", func() {
		It("names the container after the stack and the type", func() {
			key := backup(model.RecordTypeNode, 0, 10, false)
			Expect(key).To(HavePrefix("prod-1-NODE-"))
			Expect(key).To(HaveSuffix(".tar.zst"))

			exists, err := blobStore.Exists(ctx, key)
			Expect(err).To(BeNil())
			Expect(exists).To(BeTrue())
			exists, err = blobStore.Exists(ctx, key+".manifest.json")
			Expect(err).To(BeNil())
			Expect(exists).To(BeTrue())
		})

		It("backs up a range ending at the largest id", func() {
			resp, err := source.Backup(ctx, &service.BackupTypeRangeRequest{
				Type:      model.RecordTypeNode,
				AliasType: migration.AliasTypeName,
				BatchSize: 10,
				MinimumID: math.MaxInt64 - 1,
				MaximumID: math.MaxInt64,
			})
			Expect(err).To(BeNil())

			destination := service.NewMigrationService(dst, blobStore)
			restored, err := destination.Restore(ctx, restoreRequest(model.RecordTypeNode, resp.BackupFileKey))
			Expect(err).To(BeNil())
			Expect(restored.RestoredRowCount).To(BeZero())
		})

		It("rejects invalid requests", func() {
			requests := []*service.BackupTypeRangeRequest{
				{Type: "FAVORITE", AliasType: migration.AliasTypeName, BatchSize: 1, MaximumID: 1},
				{Type: model.RecordTypeNode, AliasType: "NONE", BatchSize: 1, MaximumID: 1},
				{Type: model.RecordTypeNode, AliasType: migration.AliasTypeName, BatchSize: 0, MaximumID: 1},
				{Type: model.RecordTypeNode, AliasType: migration.AliasTypeName, BatchSize: 100000, MaximumID: 1},
				{Type: model.RecordTypeNode, AliasType: migration.AliasTypeName, BatchSize: 1, MinimumID: 5, MaximumID: 1},
			}
			for _, req := range requests {
				_, err := source.Backup(ctx, req)
				Expect(err).NotTo(BeNil())
			}

			_, err := source.Backup(ctx, requests[0])
			var unknown *service.ErrUnknownRecordType
			Expect(errors.As(err, &unknown)).To(BeTrue())

			_, err = source.Backup(ctx, requests[2])
			var invalid *service.ErrInvalidRequest
			Expect(errors.As(err, &invalid)).To(BeTrue())
		})
	})

	Context("restore", func() {
		It("restores zero rows from an empty range", func() {
			insert(src, node(100))
			key := backup(model.RecordTypeNode, 0, 50, false)

			destination := service.NewMigrationService(dst, blobStore)
			resp, err := destination.Restore(ctx, restoreRequest(model.RecordTypeNode, key))
			Expect(err).To(BeNil())
			Expect(resp.RestoredRowCount).To(BeZero())
			Expect(countRows(dstDB, "nodes")).To(BeZero())
		})

		It("restores a range with its secondary rows", func() {
			insert(src, node(1), node(2), node(3), node(9),
				revision(1, 1), revision(1, 2), revision(3, 1), revision(9, 1))
			key := backup(model.RecordTypeNode, 1, 5, true)

			destination := service.NewMigrationService(dst, blobStore)
			resp, err := destination.Restore(ctx, restoreRequest(model.RecordTypeNode, key))
			Expect(err).To(BeNil())
			Expect(resp.RestoredRowCount).To(BeEquivalentTo(6))
			Expect(countRows(dstDB, "nodes")).To(Equal(3))
			Expect(countRows(dstDB, "node_revisions")).To(Equal(3))
			Expect(countRows(srcDB, "nodes")).To(Equal(4))
			Expect(countRows(srcDB, "node_revisions")).To(Equal(4))

			rows, err := dst.Migratable().BackupBatch(ctx, model.RecordTypeNode, []int64{2})
			Expect(err).To(BeNil())
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].(*model.Node).Etag).To(Equal("etag-2"))
		})

		It("deletes the rows removed at the source", func() {
			insert(src, node(1), node(2), node(4))
			insert(dst, node(1), node(2), node(3), node(4), node(7))
			key := backup(model.RecordTypeNode, 1, 5, false)

			destination := service.NewMigrationService(dst, blobStore)
			resp, err := destination.Restore(ctx, restoreRequest(model.RecordTypeNode, key))
			Expect(err).To(BeNil())
			Expect(resp.RestoredRowCount).To(BeEquivalentTo(3))

			var ids []int64
			Expect(dstDB.Raw("SELECT id FROM nodes ORDER BY id").Scan(&ids).Error).To(BeNil())
			Expect(ids).To(Equal([]int64{1, 2, 4, 7}))
		})

		It("only deletes the request range when the manifest is missing", func() {
			insert(src, node(1))
			insert(dst, node(1), node(2), node(8))
			key := backup(model.RecordTypeNode, 0, 10, false)
			Expect(blobStore.Delete(ctx, key+".manifest.json")).To(Succeed())

			minID, maxID := int64(0), int64(5)
			req := restoreRequest(model.RecordTypeNode, key)
			req.MinimumRowID = &minID
			req.MaximumRowID = &maxID

			destination := service.NewMigrationService(dst, blobStore)
			_, err := destination.Restore(ctx, req)
			Expect(err).To(BeNil())

			var ids []int64
			Expect(dstDB.Raw("SELECT id FROM nodes ORDER BY id").Scan(&ids).Error).To(BeNil())
			Expect(ids).To(Equal([]int64{1, 8}))
		})

		It("skips types that are not registered", func() {
			destination := service.NewMigrationService(dst, blobStore)
			resp, err := destination.Restore(ctx, restoreRequest("FAVORITE", "any.tar.zst"))
			Expect(err).To(BeNil())
			Expect(resp.RestoredRowCount).To(BeZero())
		})

		It("rejects a backup of another type", func() {
			insert(src, node(1))
			insert(dst, node(1))
			key := backup(model.RecordTypeNode, 0, 10, false)

			destination := service.NewMigrationService(dst, blobStore)
			_, err := destination.Restore(ctx, restoreRequest(model.RecordTypeACL, key))
			var invalid *service.ErrInvalidRequest
			Expect(errors.As(err, &invalid)).To(BeTrue())
			Expect(countRows(dstDB, "nodes")).To(Equal(1))
		})

		It("reports a missing backup", func() {
			destination := service.NewMigrationService(dst, blobStore)
			_, err := destination.Restore(ctx, restoreRequest(model.RecordTypeNode, "missing.tar.zst"))
			var notFound *service.ErrResourceNotFound
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})

		It("notifies listeners once per committed batch", func() {
			insert(src, node(1), node(2), node(3), node(4), node(5))
			key := backup(model.RecordTypeNode, 0, 10, false)

			listener := &recordingListener{recordType: model.RecordTypeNode}
			destination := service.NewMigrationService(dst, blobStore, service.WithListeners(listener))
			resp, err := destination.Restore(ctx, restoreRequest(model.RecordTypeNode, key))
			Expect(err).To(BeNil())
			Expect(resp.RestoredRowCount).To(BeEquivalentTo(5))
			Expect(listener.batches).To(Equal([]int{2, 2, 1}))
		})

		It("repairs the owner type of restored acls", func() {
			insert(src, &model.AccessControlList{ID: 1, OwnerID: 10, Etag: "a"})
			insert(dst, node(10))
			key := backup(model.RecordTypeACL, 0, 10, false)

			destination := service.NewMigrationService(dst, blobStore, service.WithListeners(service.NewAclOwnerTypeListener(dst)))
			_, err := destination.Restore(ctx, restoreRequest(model.RecordTypeACL, key))
			Expect(err).To(BeNil())

			var acl model.AccessControlList
			Expect(dstDB.First(&acl, 1).Error).To(BeNil())
			Expect(acl.OwnerType).To(Equal(model.AclOwnerTypeEntity))
		})

		It("broadcasts restored changes", func() {
			insert(src,
				&model.Change{ChangeNum: 1, ObjectID: 10, ObjectType: "ENTITY", ChangeType: model.ChangeTypeCreate},
				&model.Change{ChangeNum: 2, ObjectID: 11, ObjectType: "FAVORITE", ChangeType: model.ChangeTypeCreate},
				&model.Change{ChangeNum: 3, ObjectID: 12, ObjectType: "ENTITY", ChangeType: model.ChangeTypeUpdate},
			)
			key := backup(model.RecordTypeChange, 0, 10, false)

			publisher := &recordingPublisher{}
			destination := service.NewMigrationService(dst, blobStore, service.WithListeners(service.NewChangeBroadcastListener(publisher)))
			resp, err := destination.Restore(ctx, restoreRequest(model.RecordTypeChange, key))
			Expect(err).To(BeNil())
			// changes of retired object types are not restored
			Expect(resp.RestoredRowCount).To(BeEquivalentTo(2))
			Expect(publisher.objectIDs()).To(Equal([]int64{10, 12}))
		})
	})

	Context("counts", func() {
		It("returns counts in request order", func() {
			insert(src, node(3), node(5), &model.Change{ChangeNum: 7, ObjectID: 3, ObjectType: "ENTITY", ChangeType: model.ChangeTypeCreate})

			counts, err := source.TypeCounts(ctx, &service.TypeCountsRequest{
				Types: []model.RecordType{model.RecordTypeNode, model.RecordTypeACL, model.RecordTypeChange},
			})
			Expect(err).To(BeNil())
			Expect(counts.Counts).To(HaveLen(3))
			Expect(counts.Counts[0].Type).To(Equal(model.RecordTypeNode))
			Expect(counts.Counts[0].Count).To(BeEquivalentTo(2))
			Expect(*counts.Counts[0].MinID).To(BeEquivalentTo(3))
			Expect(*counts.Counts[0].MaxID).To(BeEquivalentTo(5))
			Expect(counts.Counts[1].Count).To(BeZero())
			Expect(counts.Counts[2].Type).To(Equal(model.RecordTypeChange))
		})

		It("reports a type without rows", func() {
			_, err := source.MinID(ctx, model.RecordTypeNode)
			var notFound *service.ErrResourceNotFound
			Expect(errors.As(err, &notFound)).To(BeTrue())

			count, err := source.Count(ctx, model.RecordTypeNode)
			Expect(err).To(BeNil())
			Expect(count).To(BeZero())
		})
	})

	Context("checksums", func() {
		It("returns a reproducible range checksum", func() {
			insert(src, node(1), node(2), node(3))
			req := &service.RangeChecksumRequest{Type: model.RecordTypeNode, Salt: "salt", MinimumID: 0, MaximumID: 10}

			first, err := source.RangeChecksum(ctx, req)
			Expect(err).To(BeNil())
			Expect(first.Checksum).To(ContainSubstring(migration.ChecksumDelimiter))

			second, err := source.RangeChecksum(ctx, req)
			Expect(err).To(BeNil())
			Expect(second.Checksum).To(Equal(first.Checksum))
		})

		It("matches between stacks holding the same rows", func() {
			insert(src, node(1), node(2), revision(1, 1))
			insert(dst, node(2), node(1), revision(1, 1))
			destination := service.NewMigrationService(dst, blobStore)

			for _, t := range []model.RecordType{model.RecordTypeNode, model.RecordTypeNodeRevision} {
				req := &service.RangeChecksumRequest{Type: t, Salt: "salt", MinimumID: 0, MaximumID: 10}
				a, err := source.RangeChecksum(ctx, req)
				Expect(err).To(BeNil())
				b, err := destination.RangeChecksum(ctx, req)
				Expect(err).To(BeNil())
				Expect(a.Checksum).To(Equal(b.Checksum))
			}
		})

		It("refuses a type checksum while the stack accepts writes", func() {
			insert(src, node(1))

			_, err := source.TypeChecksum(ctx, &service.TypeChecksumRequest{Type: model.RecordTypeNode})
			var notReadOnly *service.ErrStackNotReadOnly
			Expect(errors.As(err, &notReadOnly)).To(BeTrue())

			_, err = source.SetStackStatus(ctx, &service.StackStatusRequest{State: model.StatusReadOnly})
			Expect(err).To(BeNil())

			typeChecksum, err := source.TypeChecksum(ctx, &service.TypeChecksumRequest{Type: model.RecordTypeNode})
			Expect(err).To(BeNil())
			Expect(typeChecksum.Checksum).NotTo(BeEmpty())

			rangeChecksum, err := source.RangeChecksum(ctx, &service.RangeChecksumRequest{Type: model.RecordTypeNode, MinimumID: 1, MaximumID: 2})
			Expect(err).To(BeNil())
			Expect(typeChecksum.Checksum).To(Equal(rangeChecksum.Checksum))
		})

		It("returns batch checksums", func() {
			insert(src, node(1), node(12), node(13))
			resp, err := source.BatchChecksums(ctx, &service.BatchChecksumRequest{
				Type: model.RecordTypeNode, Salt: "salt", MinimumID: 0, MaximumID: 100, BatchSize: 10,
			})
			Expect(err).To(BeNil())
			Expect(resp.Checksums).To(HaveLen(2))
			Expect(resp.Checksums[1].Count).To(BeEquivalentTo(2))
		})
	})

	Context("ranges", func() {
		It("accounts for secondary rows", func() {
			insert(src, node(1), node(2), node(3), node(4),
				revision(1, 1), revision(1, 2), revision(1, 3))

			resp, err := source.CalculateOptimalRanges(ctx, &service.CalculateOptimalRangeRequest{
				Type: model.RecordTypeNode, MinimumID: 0, MaximumID: 10, OptimalRowsPerRange: 3,
			})
			Expect(err).To(BeNil())
			Expect(resp.Ranges).To(Equal([]model.IdRange{
				{MinID: 1, MaxID: 2},
				{MinID: 2, MaxID: 5},
			}))
		})

		It("rejects secondary types", func() {
			_, err := source.CalculateOptimalRanges(ctx, &service.CalculateOptimalRangeRequest{
				Type: model.RecordTypeNodeRevision, MaximumID: 10, OptimalRowsPerRange: 3,
			})
			var invalid *service.ErrInvalidRequest
			Expect(errors.As(err, &invalid)).To(BeTrue())
		})
	})

	Context("types", func() {
		It("exposes secondary types", func() {
			secondary, err := source.SecondaryTypesOf(model.RecordTypeNode)
			Expect(err).To(BeNil())
			Expect(secondary).To(Equal([]model.RecordType{model.RecordTypeNodeRevision}))

			Expect(source.PrimaryTypes()).NotTo(ContainElement(model.RecordTypeNodeRevision))
			Expect(source.Types()).To(ContainElement(model.RecordTypeNodeRevision))
		})
	})

	Context("stack status", func() {
		It("rejects unknown states", func() {
			_, err := source.SetStackStatus(ctx, &service.StackStatusRequest{State: "PAUSED"})
			var invalid *service.ErrInvalidRequest
			Expect(errors.As(err, &invalid)).To(BeTrue())
		})
	})
})

func node(id int64) *model.Node {
	return &model.Node{ID: id, Name: "node", NodeType: "file", Etag: fmt.Sprintf("etag-%d", id)}
}

func revision(owner, number int64) *model.NodeRevision {
	return &model.NodeRevision{OwnerID: owner, RevisionNumber: number, Label: "label"}
}

type recordingListener struct {
	recordType model.RecordType
	batches    []int
}

func (l *recordingListener) Type() model.RecordType {
	return l.recordType
}

func (l *recordingListener) AfterRestore(_ context.Context, batch []model.Record) error {
	l.batches = append(l.batches, len(batch))
	return nil
}

type recordingPublisher struct {
	lock   sync.Mutex
	events []events.ChangeEvent
}

func (p *recordingPublisher) Publish(_ context.Context, kind string, payload any) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if kind != events.ChangeMessageKind {
		return nil
	}
	p.events = append(p.events, payload.(events.ChangeEvent))
	return nil
}

func (p *recordingPublisher) objectIDs() []int64 {
	p.lock.Lock()
	defer p.lock.Unlock()
	ids := []int64{}
	for _, e := range p.events {
		ids = append(ids, e.ObjectID)
	}
	return ids
}
