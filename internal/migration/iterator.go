package migration

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/klauspost/compress/zstd"
	"github.com/kubev2v/stack-migration/internal/store/model"
	"github.com/kubev2v/stack-migration/pkg/metrics"
	"go.uber.org/zap"
)

// RecordIterator yields the records of a container in the order they were written.
// HasNext must be called before every Next. It is not safe for concurrent use.
type RecordIterator struct {
	codec  *Codec
	mode   AliasMode
	source io.ReadCloser
	in     *trackingReader
	log    *zap.SugaredLogger

	decoder *zstd.Decoder
	tr      *tar.Reader

	batch   []model.Record
	pos     int
	checked bool
	hasNext bool
	err     error
	closed  bool
	done    bool
}

// HasNext reports whether a record is available, reading the next non empty
// segment when the current one is consumed. Repeated calls without Next are
// idempotent.
func (it *RecordIterator) HasNext() (bool, error) {
	if it.err != nil {
		return false, it.err
	}
	if it.checked {
		return it.hasNext, nil
	}

	ok, err := it.advance()
	if err != nil {
		it.err = err
		_ = it.Close()
		return false, err
	}

	it.checked, it.hasNext = true, ok
	if !ok {
		_ = it.Close()
	}
	return ok, nil
}

func (it *RecordIterator) Next() (model.Record, error) {
	if it.err != nil {
		return nil, it.err
	}
	if !it.checked {
		return nil, ErrNextBeforeHasNext
	}
	if !it.hasNext {
		return nil, ErrNoMoreRecords
	}

	it.checked = false
	r := it.batch[it.pos]
	it.pos++
	return r, nil
}

// All adapts the iterator to a range-over-func sequence. Iteration stops at the
// first error, which is yielded. The iterator is closed when the loop ends.
func (it *RecordIterator) All() iter.Seq2[model.Record, error] {
	return func(yield func(model.Record, error) bool) {
		defer it.Close()
		for {
			ok, err := it.HasNext()
			if err != nil {
				yield(nil, err)
				return
			}
			if !ok {
				return
			}
			r, err := it.Next()
			if !yield(r, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the decoder and closes the source. It is safe to call more than
// once. Once closed before the end of the container, HasNext and Next return
// ErrIteratorClosed.
func (it *RecordIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	if it.err == nil && !it.done {
		it.err = ErrIteratorClosed
	}
	if it.decoder != nil {
		it.decoder.Close()
	}
	return it.source.Close()
}

func (it *RecordIterator) advance() (bool, error) {
	for it.pos >= len(it.batch) {
		if it.tr == nil {
			if err := it.open(); err != nil {
				return false, err
			}
		}

		hdr, err := it.tr.Next()
		if errors.Is(err, io.EOF) {
			if it.in.err != nil {
				return false, fmt.Errorf("reading container: %w", it.in.err)
			}
			it.done = true
			return false, nil
		}
		if err != nil {
			return false, it.readError(err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		records, err := it.codec.ReadSegment(it.tr, it.mode, hdr.Name)
		if errors.Is(err, ErrEmptySegment) {
			reason := metrics.SkipReasonEmpty
			if errors.Is(err, ErrUnknownType) {
				reason = metrics.SkipReasonUnknownType
			}
			metrics.IncreaseSkippedSegmentsMetric(reason)
			it.log.Debugw("segment skipped", "entry", hdr.Name, "reason", err)
			continue
		}
		if err != nil {
			return false, it.readError(err)
		}
		it.batch, it.pos = records, 0
	}
	return true, nil
}

func (it *RecordIterator) open() error {
	if err := it.mode.Validate(); err != nil {
		return err
	}
	dec, err := zstd.NewReader(it.in, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return fmt.Errorf("opening container: %w", it.in.cause(err))
	}
	it.decoder = dec
	it.tr = tar.NewReader(dec)
	return nil
}

// readError surfaces the failure of the underlying source, which the decoder
// layers may have replaced with their own error.
func (it *RecordIterator) readError(err error) error {
	if it.in.err != nil && !errors.Is(err, it.in.err) {
		return fmt.Errorf("reading container: %w (%w)", it.in.err, err)
	}
	return err
}

// trackingReader remembers the first failure of the wrapped reader.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && t.err == nil {
		t.err = err
	}
	return n, err
}

func (t *trackingReader) cause(err error) error {
	if t.err != nil {
		return t.err
	}
	return err
}
