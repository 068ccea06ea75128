package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kubev2v/stack-migration/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Migratable gives typed access to every migratable table. Rows are addressed
// by the backup id column of their type.
type Migratable interface {
	IsRegistered(t model.RecordType) bool
	// BackupBatch returns the rows whose backup id is one of ids.
	BackupBatch(ctx context.Context, t model.RecordType, ids []int64) ([]model.Record, error)
	// CreateOrUpdate upserts a batch of records of type t and returns their backup ids.
	CreateOrUpdate(ctx context.Context, t model.RecordType, batch []model.Record) ([]int64, error)
	DeleteByRange(ctx context.Context, t model.RecordType, minID, maxID int64) (int64, error)
	Count(ctx context.Context, t model.RecordType) (int64, error)
	MinID(ctx context.Context, t model.RecordType) (int64, error)
	MaxID(ctx context.Context, t model.RecordType) (int64, error)
	TypeCount(ctx context.Context, t model.RecordType) (model.TypeCount, error)
	ColumnChecksums(ctx context.Context, t model.RecordType, salt string, minID, maxID int64) ([]string, error)
	BatchChecksums(ctx context.Context, t model.RecordType, salt string, minID, maxID, batchSize int64) ([]model.RangeChecksum, error)
	// PrimaryCardinality calls fn, in ascending id order, with every primary id in
	// [minID, maxID) and the number of rows it accounts for, its secondaries included.
	PrimaryCardinality(ctx context.Context, t model.RecordType, minID, maxID int64, fn func(id, cardinality int64) error) error
}

type MigratableStore struct {
	db *gorm.DB
}

var _ Migratable = (*MigratableStore)(nil)

func NewMigratable(db *gorm.DB) Migratable {
	return &MigratableStore{db: db}
}

func (s *MigratableStore) IsRegistered(t model.RecordType) bool {
	_, found := model.MappingFor(t)
	return found
}

func (s *MigratableStore) BackupBatch(ctx context.Context, t model.RecordType, ids []int64) ([]model.Record, error) {
	m, err := mappingOf(t)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.Record{}, nil
	}

	dest := m.NewSlice()
	tx := NewRowQueryFilter().ByIDs(m.BackupIDColumn, ids).OrderBy(m.OrderBy).apply(s.getDB(ctx))
	if err := tx.Find(dest).Error; err != nil {
		return nil, fmt.Errorf("querying %s backup batch: %w", t, err)
	}
	return m.Records(dest), nil
}

func (s *MigratableStore) CreateOrUpdate(ctx context.Context, t model.RecordType, batch []model.Record) ([]int64, error) {
	m, err := mappingOf(t)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return []int64{}, nil
	}

	rows, err := m.ToSlice(batch)
	if err != nil {
		return nil, err
	}
	if err := s.getDB(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(rows).Error; err != nil {
		return nil, fmt.Errorf("upserting %d rows of %s: %w", len(batch), t, err)
	}

	ids := make([]int64, 0, len(batch))
	for _, r := range batch {
		ids = append(ids, r.BackupID())
	}
	return ids, nil
}

func (s *MigratableStore) DeleteByRange(ctx context.Context, t model.RecordType, minID, maxID int64) (int64, error) {
	m, err := mappingOf(t)
	if err != nil {
		return 0, err
	}

	result := NewRowQueryFilter().ByRange(m.BackupIDColumn, minID, maxID).apply(s.getDB(ctx)).Delete(m.NewRecord())
	if result.Error != nil {
		return 0, fmt.Errorf("deleting %s rows in [%d, %d): %w", t, minID, maxID, result.Error)
	}
	return result.RowsAffected, nil
}

func (s *MigratableStore) Count(ctx context.Context, t model.RecordType) (int64, error) {
	m, err := mappingOf(t)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := s.getDB(ctx).Model(m.NewRecord()).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting %s: %w", t, err)
	}
	return count, nil
}

func (s *MigratableStore) MinID(ctx context.Context, t model.RecordType) (int64, error) {
	tc, err := s.TypeCount(ctx, t)
	if err != nil {
		return 0, err
	}
	if tc.MinID == nil {
		return 0, ErrRecordNotFound
	}
	return *tc.MinID, nil
}

func (s *MigratableStore) MaxID(ctx context.Context, t model.RecordType) (int64, error) {
	tc, err := s.TypeCount(ctx, t)
	if err != nil {
		return 0, err
	}
	if tc.MaxID == nil {
		return 0, ErrRecordNotFound
	}
	return *tc.MaxID, nil
}

func (s *MigratableStore) TypeCount(ctx context.Context, t model.RecordType) (model.TypeCount, error) {
	m, err := mappingOf(t)
	if err != nil {
		return model.TypeCount{}, err
	}

	var row struct {
		Count int64
		MinID sql.NullInt64
		MaxID sql.NullInt64
	}
	query := fmt.Sprintf("COUNT(*) AS count, MIN(%s) AS min_id, MAX(%s) AS max_id", m.BackupIDColumn, m.BackupIDColumn)
	if err := s.getDB(ctx).Model(m.NewRecord()).Select(query).Scan(&row).Error; err != nil {
		return model.TypeCount{}, fmt.Errorf("counting %s: %w", t, err)
	}

	tc := model.TypeCount{Type: t, Count: row.Count}
	if row.MinID.Valid {
		tc.MinID = &row.MinID.Int64
	}
	if row.MaxID.Valid {
		tc.MaxID = &row.MaxID.Int64
	}
	return tc, nil
}

func (s *MigratableStore) ColumnChecksums(ctx context.Context, t model.RecordType, salt string, minID, maxID int64) ([]string, error) {
	m, err := mappingOf(t)
	if err != nil {
		return nil, err
	}

	fold := newChecksumFold(salt, len(m.ChecksumColumns))
	err = s.scanChecksumRows(ctx, m, minID, maxID, func(values []sql.NullString) error {
		fold.add(values)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fold.values(), nil
}

func (s *MigratableStore) BatchChecksums(ctx context.Context, t model.RecordType, salt string, minID, maxID, batchSize int64) ([]model.RangeChecksum, error) {
	m, err := mappingOf(t)
	if err != nil {
		return nil, err
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	var (
		bins    []model.RangeChecksum
		current *model.RangeChecksum
		fold    *checksumFold
	)
	closeBin := func() {
		if current == nil {
			return
		}
		current.Checksum = strings.Join(fold.columnValues(), checksumDelimiter)
		bins = append(bins, *current)
	}

	err = s.scanChecksumRows(ctx, m, minID, maxID, func(values []sql.NullString) error {
		id, err := parseBackupID(values[0])
		if err != nil {
			return err
		}
		bin := id / batchSize
		if current == nil || current.BinNumber != bin {
			closeBin()
			current = &model.RangeChecksum{BinNumber: bin, MinID: id}
			fold = newChecksumFold(salt, len(m.ChecksumColumns))
		}
		current.Count++
		current.MaxID = id
		fold.add(values)
		return nil
	})
	if err != nil {
		return nil, err
	}
	closeBin()
	return bins, nil
}

func (s *MigratableStore) PrimaryCardinality(ctx context.Context, t model.RecordType, minID, maxID int64, fn func(id, cardinality int64) error) error {
	m, err := mappingOf(t)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT P.%s AS id, 1", m.BackupIDColumn)
	for i := range m.Secondary {
		fmt.Fprintf(&b, " + COALESCE(S%d.cnt, 0)", i)
	}
	fmt.Fprintf(&b, " AS cardinality FROM %s P", m.Table)
	for i, st := range m.Secondary {
		sm, err := mappingOf(st)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, " LEFT JOIN (SELECT %[1]s AS owner, COUNT(*) AS cnt FROM %[2]s WHERE %[1]s >= @min AND %[1]s < @max GROUP BY %[1]s) S%[3]d ON P.%[4]s = S%[3]d.owner",
			sm.BackupIDColumn, sm.Table, i, m.BackupIDColumn)
	}
	fmt.Fprintf(&b, " WHERE P.%[1]s >= @min AND P.%[1]s < @max ORDER BY P.%[1]s", m.BackupIDColumn)

	rows, err := s.getDB(ctx).Raw(b.String(), map[string]any{"min": minID, "max": maxID}).Rows()
	if err != nil {
		return fmt.Errorf("querying %s cardinality: %w", t, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, cardinality int64
		if err := rows.Scan(&id, &cardinality); err != nil {
			return fmt.Errorf("scanning %s cardinality: %w", t, err)
		}
		if err := fn(id, cardinality); err != nil {
			return err
		}
	}
	return rows.Err()
}

// scanChecksumRows streams the backup id and checksum columns of the rows in
// [minID, maxID), ordered by backup id.
func (s *MigratableStore) scanChecksumRows(ctx context.Context, m model.TableMapping, minID, maxID int64, fn func(values []sql.NullString) error) error {
	columns := append([]string{m.BackupIDColumn}, m.ChecksumColumns...)

	tx := NewRowQueryFilter().
		ByRange(m.BackupIDColumn, minID, maxID).
		OrderBy(m.OrderBy).
		apply(s.getDB(ctx).Table(m.Table).Select(columns))

	rows, err := tx.Rows()
	if err != nil {
		return fmt.Errorf("querying %s checksum rows: %w", m.Type, err)
	}
	defer rows.Close()

	values := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scanning %s checksum rows: %w", m.Type, err)
		}
		if err := fn(values); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *MigratableStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}

func mappingOf(t model.RecordType) (model.TableMapping, error) {
	m, found := model.MappingFor(t)
	if !found {
		return model.TableMapping{}, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	return m, nil
}
