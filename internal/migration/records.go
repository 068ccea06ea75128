package migration

import (
	"iter"

	"github.com/kubev2v/stack-migration/internal/store/model"
)

// FromSlice returns a record sequence over records.
func FromSlice[R model.Record](records []R) iter.Seq2[model.Record, error] {
	return func(yield func(model.Record, error) bool) {
		for _, r := range records {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// Concat chains record sequences. It stops after the first error.
func Concat(seqs ...iter.Seq2[model.Record, error]) iter.Seq2[model.Record, error] {
	return func(yield func(model.Record, error) bool) {
		for _, seq := range seqs {
			for r, err := range seq {
				if !yield(r, err) || err != nil {
					return
				}
			}
		}
	}
}
