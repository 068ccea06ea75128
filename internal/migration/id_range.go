package migration

import "github.com/kubev2v/stack-migration/internal/store/model"

// IdRangeBuilder groups ids into contiguous ranges holding about optimalSize rows.
// Rows must be added in ascending id order. A single id heavier than optimalSize
// gets a range of its own.
type IdRangeBuilder struct {
	optimalSize int64
	ranges      []model.IdRange
	current     *model.IdRange
	currentSize int64
}

func NewIdRangeBuilder(optimalSize int64) *IdRangeBuilder {
	return &IdRangeBuilder{optimalSize: optimalSize}
}

// AddRow accounts for id and the cardinality of its rows (the primary row plus its secondaries).
func (b *IdRangeBuilder) AddRow(id, cardinality int64) {
	if b.current != nil && b.currentSize > 0 && b.currentSize+cardinality > b.optimalSize {
		b.closeCurrent()
	}
	if b.current == nil {
		b.current = &model.IdRange{MinID: id}
		b.currentSize = 0
	}
	b.current.MaxID = id + 1
	b.currentSize += cardinality
}

func (b *IdRangeBuilder) Collate() []model.IdRange {
	b.closeCurrent()
	return b.ranges
}

func (b *IdRangeBuilder) closeCurrent() {
	if b.current == nil {
		return
	}
	b.ranges = append(b.ranges, *b.current)
	b.current = nil
	b.currentSize = 0
}
