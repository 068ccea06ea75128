package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"iter"
	"os"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kubev2v/stack-migration/internal/blob"
	"github.com/kubev2v/stack-migration/internal/migration"
	"github.com/kubev2v/stack-migration/internal/store"
	"github.com/kubev2v/stack-migration/internal/store/model"
	"github.com/kubev2v/stack-migration/pkg/log"
	"github.com/kubev2v/stack-migration/pkg/metrics"
)

const (
	containerMediaType = "application/zstd"
	defaultBatchMax    = 10000
)

// Backup and restore states, logged as steps of their operation.
const (
	stateBatchingIds            = "batching_ids"
	stateStreamingToContainer   = "streaming_to_container"
	stateUploadingBlob          = "uploading_blob"
	stateDownloadingBlob        = "downloading_blob"
	stateStreamingFromContainer = "streaming_from_container"
	stateApplyingBatches        = "applying_batches"
)

type MigrationService struct {
	store     store.Store
	blob      blob.Store
	codec     *migration.Codec
	registry  *migration.Registry
	checksums *migration.RangeChecksumCalculator
	listeners map[model.RecordType][]RestoreListener
	stack     string
	instance  string
	batchMax  int64
	logger    *log.StructuredLogger
}

type MigrationServiceOption func(s *MigrationService)

func WithCodec(c *migration.Codec) MigrationServiceOption {
	return func(s *MigrationService) {
		s.codec = c
		s.registry = c.Registry()
	}
}

func WithListeners(listeners ...RestoreListener) MigrationServiceOption {
	return func(s *MigrationService) {
		for _, l := range listeners {
			s.listeners[l.Type()] = append(s.listeners[l.Type()], l)
		}
	}
}

// WithStack names the deployment in the keys of the backups it produces.
func WithStack(stack, instance string) MigrationServiceOption {
	return func(s *MigrationService) {
		s.stack = stack
		s.instance = instance
	}
}

// WithBatchMax bounds the batch size a request may ask for.
func WithBatchMax(limit int64) MigrationServiceOption {
	return func(s *MigrationService) {
		if limit > 0 {
			s.batchMax = limit
		}
	}
}

func NewMigrationService(st store.Store, b blob.Store, opts ...MigrationServiceOption) *MigrationService {
	registry := migration.DefaultRegistry()
	s := &MigrationService{
		store:     st,
		blob:      b,
		codec:     migration.NewCodec(registry),
		registry:  registry,
		listeners: map[model.RecordType][]RestoreListener{},
		stack:     "dev",
		instance:  "0",
		batchMax:  defaultBatchMax,
		logger:    log.NewDebugLogger("migration_service"),
	}
	for _, o := range opts {
		o(s)
	}
	s.checksums = migration.NewRangeChecksumCalculator(s.registry, st.Migratable())
	return s
}

// SecondaryTypesOf returns the types travelling with t. Callers back up and
// restore t before its secondary types.
func (s *MigrationService) SecondaryTypesOf(t model.RecordType) ([]model.RecordType, error) {
	secondary, err := s.registry.SecondaryTypesOf(t)
	if err != nil {
		return nil, NewErrUnknownRecordType(t)
	}
	return secondary, nil
}

func (s *MigrationService) Types() []model.RecordType {
	return s.registry.Types()
}

func (s *MigrationService) PrimaryTypes() []model.RecordType {
	return s.registry.PrimaryTypes()
}

// Backup writes the rows of the requested type and id range to a new container
// and returns the key it is stored under.
func (s *MigrationService) Backup(ctx context.Context, req *BackupTypeRangeRequest) (resp *BackupTypeResponse, err error) {
	tracer := s.logger.WithContext(ctx).Operation("backup").
		WithString("type", req.Type.String()).
		WithInt64("min_id", req.MinimumID).
		WithInt64("max_id", req.MaximumID).
		WithInt64("batch_size", req.BatchSize).
		Build()
	defer func() { s.observe("backup", tracer, err) }()

	secondary, err := s.validateBackup(req)
	if err != nil {
		return nil, err
	}

	key := s.backupKey(req.Type)
	tracer.Step(stateBatchingIds).WithString("key", key).Log()

	tmp, err := os.CreateTemp("", "stack-migration-*."+migration.ContainerExtension)
	if err != nil {
		return nil, fmt.Errorf("creating container file: %w", err)
	}
	defer os.Remove(tmp.Name())

	counts := map[model.RecordType]int{}
	seqs := []iter.Seq2[model.Record, error]{s.rangeRecords(ctx, req.Type, req.MinimumID, req.MaximumID, req.BatchSize)}
	for _, t := range secondary {
		seqs = append(seqs, s.rangeRecords(ctx, t, req.MinimumID, req.MaximumID, req.BatchSize))
	}
	records := counted(migration.Concat(seqs...), counts)

	tracer.Step(stateStreamingToContainer).Log()
	sink := newDigestFile(tmp)
	if err := s.codec.Write(sink, records, req.AliasType, int(req.BatchSize)); err != nil {
		return nil, err
	}

	tracer.Step(stateUploadingBlob).Log()
	size, err := s.upload(ctx, key, tmp.Name())
	if err != nil {
		return nil, err
	}

	rows := int64(0)
	for t, n := range counts {
		rows += int64(n)
		metrics.IncreaseBackedUpRowsMetric(t.String(), n)
	}

	minID, maxID := req.MinimumID, req.MaximumID
	manifest := &Manifest{
		Version:        manifestVersion,
		Key:            key,
		Stack:          s.stack,
		Instance:       s.instance,
		Type:           req.Type,
		AliasType:      req.AliasType,
		BatchSize:      req.BatchSize,
		Format:         s.codec.Format().Extension(),
		MinimumID:      &minID,
		MaximumID:      &maxID,
		SecondaryTypes: secondary,
		Rows:           rows,
		Size:           size,
		Sha256:         sink.Sum(),
		CreatedAt:      time.Now().UTC(),
	}
	if err := putManifest(ctx, s.blob, manifest); err != nil {
		return nil, err
	}

	tracer.Success().WithString("key", key).WithInt64("rows", rows).Log()
	return &BackupTypeResponse{BackupFileKey: key}, nil
}

// Restore applies the rows of a backup container in batches. Rows of the
// manifest's types and id range are deleted first so rows removed at the source
// disappear. Applied batches are not rolled back on a later failure.
func (s *MigrationService) Restore(ctx context.Context, req *RestoreTypeRequest) (resp *RestoreTypeResponse, err error) {
	tracer := s.logger.WithContext(ctx).Operation("restore").
		WithString("type", req.Type.String()).
		WithString("key", req.BackupFileKey).
		WithInt64("batch_size", req.BatchSize).
		Build()
	defer func() { s.observe("restore", tracer, err) }()

	if err := s.validateRestore(req); err != nil {
		return nil, err
	}
	if !s.registry.Has(req.Type) {
		tracer.Step("skipped").WithString("reason", "type is not registered").Log()
		return &RestoreTypeResponse{}, nil
	}

	tracer.Step(stateDownloadingBlob).Log()
	manifest, err := getManifest(ctx, s.blob, req.BackupFileKey)
	if err != nil {
		return nil, err
	}
	switch {
	case manifest == nil:
		manifest = synthesizeManifest(req)
	case manifest.Type != req.Type:
		return nil, NewErrInvalidRequest("backup %q holds %s rows, not %s", req.BackupFileKey, manifest.Type, req.Type)
	}

	source, err := s.blob.Get(ctx, req.BackupFileKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, NewErrBackupNotFound(req.BackupFileKey)
		}
		return nil, err
	}

	if err := s.deleteRange(ctx, manifest); err != nil {
		_ = source.Close()
		return nil, err
	}

	tracer.Step(stateStreamingFromContainer).Log()
	it := s.codec.Read(source, req.AliasType)
	defer it.Close()

	tracer.Step(stateApplyingBatches).Log()
	restored := int64(0)
	batch := make([]model.Record, 0, req.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.applyBatch(ctx, batch)
		restored += n
		batch = batch[:0]
		return err
	}

	for r, err := range it.All() {
		if err != nil {
			return nil, err
		}
		if len(batch) > 0 && (batch[0].RecordType() != r.RecordType() || int64(len(batch)) >= req.BatchSize) {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		batch = append(batch, r)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	tracer.Success().WithInt64("rows", restored).Log()
	return &RestoreTypeResponse{RestoredRowCount: restored}, nil
}

func (s *MigrationService) Count(ctx context.Context, t model.RecordType) (int64, error) {
	if err := s.checkType(t); err != nil {
		return 0, err
	}
	return s.store.Migratable().Count(ctx, t)
}

func (s *MigrationService) MinID(ctx context.Context, t model.RecordType) (int64, error) {
	if err := s.checkType(t); err != nil {
		return 0, err
	}
	id, err := s.store.Migratable().MinID(ctx, t)
	if errors.Is(err, store.ErrRecordNotFound) {
		return 0, NewErrNoRows(t)
	}
	return id, err
}

func (s *MigrationService) MaxID(ctx context.Context, t model.RecordType) (int64, error) {
	if err := s.checkType(t); err != nil {
		return 0, err
	}
	id, err := s.store.Migratable().MaxID(ctx, t)
	if errors.Is(err, store.ErrRecordNotFound) {
		return 0, NewErrNoRows(t)
	}
	return id, err
}

// TypeCounts returns the count and id bounds of every requested type, in request
// order. Changes are counted first: rows written while counting then show up as
// changes newer than the counted ones.
func (s *MigrationService) TypeCounts(ctx context.Context, req *TypeCountsRequest) (*TypeCounts, error) {
	if len(req.Types) == 0 {
		return nil, NewErrInvalidRequest("at least one type is required")
	}
	for _, t := range req.Types {
		if err := s.checkType(t); err != nil {
			return nil, err
		}
	}

	order := slices.Clone(req.Types)
	sort.SliceStable(order, func(i, j int) bool {
		return order[i] == model.RecordTypeChange && order[j] != model.RecordTypeChange
	})

	byType := make(map[model.RecordType]model.TypeCount, len(order))
	for _, t := range order {
		if _, done := byType[t]; done {
			continue
		}
		tc, err := s.store.Migratable().TypeCount(ctx, t)
		if err != nil {
			return nil, err
		}
		byType[t] = tc
	}

	counts := make([]model.TypeCount, 0, len(req.Types))
	for _, t := range req.Types {
		counts = append(counts, byType[t])
	}
	return &TypeCounts{Counts: counts}, nil
}

func (s *MigrationService) RangeChecksum(ctx context.Context, req *RangeChecksumRequest) (*MigrationRangeChecksum, error) {
	if err := s.checkType(req.Type); err != nil {
		return nil, err
	}
	if req.MinimumID > req.MaximumID {
		return nil, NewErrInvalidRequest("minimum id %d is greater than maximum id %d", req.MinimumID, req.MaximumID)
	}

	checksum, err := s.checksums.RangeChecksum(ctx, req.Type, req.Salt, req.MinimumID, req.MaximumID)
	if err != nil {
		return nil, err
	}
	return &MigrationRangeChecksum{
		Type:      req.Type,
		MinimumID: req.MinimumID,
		MaximumID: req.MaximumID,
		Checksum:  checksum,
	}, nil
}

// TypeChecksum checksums every row of the type. The stack must not accept writes meanwhile.
func (s *MigrationService) TypeChecksum(ctx context.Context, req *TypeChecksumRequest) (*MigrationTypeChecksum, error) {
	if err := s.checkType(req.Type); err != nil {
		return nil, err
	}

	status, err := s.store.StackStatus().Get(ctx)
	if err != nil {
		return nil, err
	}
	if status.State == model.StatusReadWrite {
		return nil, NewErrStackNotReadOnly(status.State)
	}

	checksum, err := s.checksums.TypeChecksum(ctx, req.Type)
	if err != nil {
		return nil, err
	}
	return &MigrationTypeChecksum{Type: req.Type, Checksum: checksum}, nil
}

func (s *MigrationService) BatchChecksums(ctx context.Context, req *BatchChecksumRequest) (*BatchChecksumResponse, error) {
	if err := s.checkType(req.Type); err != nil {
		return nil, err
	}
	if req.BatchSize < 1 {
		return nil, NewErrInvalidRequest("batch size must be positive, got %d", req.BatchSize)
	}
	if req.MinimumID > req.MaximumID {
		return nil, NewErrInvalidRequest("minimum id %d is greater than maximum id %d", req.MinimumID, req.MaximumID)
	}

	bins, err := s.store.Migratable().BatchChecksums(ctx, req.Type, req.Salt, req.MinimumID, req.MaximumID, req.BatchSize)
	if err != nil {
		return nil, err
	}
	if bins == nil {
		bins = []model.RangeChecksum{}
	}
	return &BatchChecksumResponse{Type: req.Type, Checksums: bins}, nil
}

// CalculateOptimalRanges splits [MinimumID, MaximumID) into ranges holding about
// OptimalRowsPerRange rows, secondary rows included.
func (s *MigrationService) CalculateOptimalRanges(ctx context.Context, req *CalculateOptimalRangeRequest) (*CalculateOptimalRangeResponse, error) {
	if err := s.checkType(req.Type); err != nil {
		return nil, err
	}
	if !slices.Contains(s.registry.PrimaryTypes(), req.Type) {
		return nil, NewErrInvalidRequest("%s is a secondary type, ranges are computed on its primary type", req.Type)
	}
	if req.OptimalRowsPerRange < 1 {
		return nil, NewErrInvalidRequest("optimal rows per range must be positive, got %d", req.OptimalRowsPerRange)
	}
	if req.MinimumID > req.MaximumID {
		return nil, NewErrInvalidRequest("minimum id %d is greater than maximum id %d", req.MinimumID, req.MaximumID)
	}

	builder := migration.NewIdRangeBuilder(req.OptimalRowsPerRange)
	err := s.store.Migratable().PrimaryCardinality(ctx, req.Type, req.MinimumID, req.MaximumID, func(id, cardinality int64) error {
		builder.AddRow(id, cardinality)
		return nil
	})
	if err != nil {
		return nil, err
	}

	ranges := builder.Collate()
	if ranges == nil {
		ranges = []model.IdRange{}
	}
	return &CalculateOptimalRangeResponse{Type: req.Type, Ranges: ranges}, nil
}

func (s *MigrationService) StackStatus(ctx context.Context) (*model.StackStatus, error) {
	return s.store.StackStatus().Get(ctx)
}

func (s *MigrationService) SetStackStatus(ctx context.Context, req *StackStatusRequest) (*model.StackStatus, error) {
	switch req.State {
	case model.StatusReadWrite, model.StatusReadOnly, model.StatusDown:
	default:
		return nil, NewErrInvalidRequest("unknown stack state %q", req.State)
	}

	tracer := s.logger.WithContext(ctx).Operation("set_stack_status").WithString("state", string(req.State)).Build()
	status, err := s.store.StackStatus().Set(ctx, req.State, req.CurrentMessage)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}
	tracer.Success().Log()
	return status, nil
}

func (s *MigrationService) validateBackup(req *BackupTypeRangeRequest) ([]model.RecordType, error) {
	if err := s.checkType(req.Type); err != nil {
		return nil, err
	}
	if err := req.AliasType.Validate(); err != nil {
		return nil, NewErrInvalidRequest("%s", err)
	}
	if err := s.checkBatchSize(req.BatchSize); err != nil {
		return nil, err
	}
	if req.MinimumID < 0 || req.MinimumID > req.MaximumID {
		return nil, NewErrInvalidRequest("invalid id range [%d, %d)", req.MinimumID, req.MaximumID)
	}
	if !req.IncludeSecondaryTypes {
		return nil, nil
	}
	return s.registry.SecondaryTypesOf(req.Type)
}

func (s *MigrationService) validateRestore(req *RestoreTypeRequest) error {
	if req.Type == "" {
		return NewErrInvalidRequest("type is required")
	}
	if req.BackupFileKey == "" {
		return NewErrInvalidRequest("backup file key is required")
	}
	if err := req.AliasType.Validate(); err != nil {
		return NewErrInvalidRequest("%s", err)
	}
	if (req.MinimumRowID == nil) != (req.MaximumRowID == nil) {
		return NewErrInvalidRequest("minimum and maximum row ids go together")
	}
	if req.MinimumRowID != nil && *req.MinimumRowID > *req.MaximumRowID {
		return NewErrInvalidRequest("invalid id range [%d, %d)", *req.MinimumRowID, *req.MaximumRowID)
	}
	return s.checkBatchSize(req.BatchSize)
}

func (s *MigrationService) checkType(t model.RecordType) error {
	if !s.registry.Has(t) {
		return NewErrUnknownRecordType(t)
	}
	return nil
}

func (s *MigrationService) checkBatchSize(size int64) error {
	if size < 1 || size > s.batchMax {
		return NewErrInvalidRequest("batch size must be in [1, %d], got %d", s.batchMax, size)
	}
	return nil
}

func (s *MigrationService) backupKey(t model.RecordType) string {
	return fmt.Sprintf("%s-%s-%s-%s.%s", s.stack, s.instance, t, uuid.NewString(), migration.ContainerExtension)
}

// rangeRecords yields the rows of t in [minID, maxID), fetched in chunks of
// batchSize ids and sorted by backup id within each chunk.
func (s *MigrationService) rangeRecords(ctx context.Context, t model.RecordType, minID, maxID, batchSize int64) iter.Seq2[model.Record, error] {
	return func(yield func(model.Record, error) bool) {
		if minID >= maxID {
			return
		}
		for lo := minID; ; {
			// maxID-lo cannot overflow, lo+batchSize can
			hi := maxID
			if maxID-lo > batchSize {
				hi = lo + batchSize
			}
			ids := make([]int64, 0, hi-lo)
			for id := lo; id < hi; id++ {
				ids = append(ids, id)
			}

			rows, err := s.store.Migratable().BackupBatch(ctx, t, ids)
			if err != nil {
				yield(nil, err)
				return
			}
			sort.SliceStable(rows, func(i, j int) bool {
				return rows[i].BackupID() < rows[j].BackupID()
			})
			for _, r := range rows {
				if !yield(r, nil) {
					return
				}
			}
			if hi == maxID {
				return
			}
			lo = hi
		}
	}
}

func (s *MigrationService) upload(ctx context.Context, key, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening container file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("opening container file: %w", err)
	}
	if err := s.blob.Put(ctx, key, f, info.Size(), containerMediaType); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// deleteRange deletes the rows of the manifest's types in its id range,
// secondary types first.
func (s *MigrationService) deleteRange(ctx context.Context, m *Manifest) error {
	if !m.HasRange() {
		return nil
	}

	types := m.Types()
	slices.Reverse(types)

	txCtx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return err
	}
	for _, t := range types {
		if !s.store.Migratable().IsRegistered(t) {
			continue
		}
		deleted, err := s.store.Migratable().DeleteByRange(txCtx, t, *m.MinimumID, *m.MaximumID)
		if err != nil {
			_, _ = store.Rollback(txCtx)
			return err
		}
		s.logger.WithContext(ctx).Operation("delete_range").
			WithString("type", t.String()).
			WithInt64("min_id", *m.MinimumID).
			WithInt64("max_id", *m.MaximumID).
			Build().Success().WithInt64("deleted", deleted).Log()
	}
	_, err = store.Commit(txCtx)
	return err
}

// applyBatch upserts one batch of a single type in its own transaction, then
// notifies the listeners of the type.
func (s *MigrationService) applyBatch(ctx context.Context, batch []model.Record) (int64, error) {
	t := batch[0].RecordType()

	txCtx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := s.store.Migratable().CreateOrUpdate(txCtx, t, batch); err != nil {
		_, _ = store.Rollback(txCtx)
		return 0, err
	}
	if _, err := store.Commit(txCtx); err != nil {
		return 0, err
	}
	metrics.IncreaseRestoredRowsMetric(t.String(), len(batch))

	for _, l := range s.listeners[t] {
		if err := l.AfterRestore(ctx, batch); err != nil {
			return int64(len(batch)), fmt.Errorf("post restore listener of %s: %w", t, err)
		}
	}
	return int64(len(batch)), nil
}

func (s *MigrationService) observe(operation string, tracer *log.OperationTracer, err error) {
	metrics.ObserveOperation(operation, err, tracer.Elapsed().Milliseconds())
	if err != nil {
		tracer.Error(err).Log()
	}
}

// counted tallies the records flowing through seq per type.
func counted(seq iter.Seq2[model.Record, error], counts map[model.RecordType]int) iter.Seq2[model.Record, error] {
	return func(yield func(model.Record, error) bool) {
		for r, err := range seq {
			if err == nil {
				counts[r.RecordType()]++
			}
			if !yield(r, err) {
				return
			}
		}
	}
}

// digestFile hashes what is written to the container file.
type digestFile struct {
	f      *os.File
	hasher hash.Hash
}

var _ io.WriteCloser = (*digestFile)(nil)

func newDigestFile(f *os.File) *digestFile {
	return &digestFile{f: f, hasher: sha256.New()}
}

func (d *digestFile) Write(p []byte) (n int, err error) {
	n, err = d.f.Write(p)
	if err != nil {
		return
	}
	_, _ = d.hasher.Write(p[:n])
	return
}

func (d *digestFile) Close() error {
	return d.f.Close()
}

func (d *digestFile) Sum() string {
	return fmt.Sprintf("%x", d.hasher.Sum(nil))
}
