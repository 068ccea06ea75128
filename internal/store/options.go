package store

import (
	"fmt"

	"gorm.io/gorm"
)

type BaseQuerier struct {
	QueryFn []func(tx *gorm.DB) *gorm.DB
}

func (q BaseQuerier) apply(tx *gorm.DB) *gorm.DB {
	for _, fn := range q.QueryFn {
		tx = fn(tx)
	}
	return tx
}

// RowQueryFilter narrows the rows of a migratable table on its backup id column.
type RowQueryFilter BaseQuerier

func NewRowQueryFilter() *RowQueryFilter {
	return &RowQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

// ByRange keeps rows whose column value is in [minID, maxID).
func (f *RowQueryFilter) ByRange(column string, minID, maxID int64) *RowQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where(fmt.Sprintf("%s >= ? AND %s < ?", column, column), minID, maxID)
	})
	return f
}

func (f *RowQueryFilter) ByIDs(column string, ids []int64) *RowQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where(fmt.Sprintf("%s IN ?", column), ids)
	})
	return f
}

func (f *RowQueryFilter) OrderBy(order string) *RowQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Order(order)
	})
	return f
}

func (f *RowQueryFilter) apply(tx *gorm.DB) *gorm.DB {
	return BaseQuerier(*f).apply(tx)
}
