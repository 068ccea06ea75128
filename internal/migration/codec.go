package migration

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/kubev2v/stack-migration/internal/store/model"
	"go.uber.org/zap"
)

// ContainerExtension is the suffix of container blobs: a zstd compressed tar stream.
const ContainerExtension = "tar.zst"

// Codec writes and reads containers: a sequence of named segments, each holding
// the rows of one record type. Only one segment is held in memory at a time.
type Codec struct {
	registry *Registry
	format   SegmentFormat
	formats  map[string]SegmentFormat
	log      *zap.SugaredLogger
}

type CodecOption func(c *Codec)

// WithSegmentFormat selects the format of written segments. Every known format is always readable.
func WithSegmentFormat(f SegmentFormat) CodecOption {
	return func(c *Codec) {
		c.format = f
		c.formats[f.Extension()] = f
	}
}

func NewCodec(registry *Registry, opts ...CodecOption) *Codec {
	c := &Codec{
		registry: registry,
		format:   YAML,
		formats: map[string]SegmentFormat{
			YAML.Extension(): YAML,
			XML.Extension():  XML,
		},
		log: zap.S().Named("migration_codec"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Codec) Registry() *Registry {
	return c.registry
}

// Format returns the format of written segments.
func (c *Codec) Format() SegmentFormat {
	return c.format
}

// Write streams records into sink. Consecutive records of the same type are
// grouped into segments of at most maxRowsPerSegment rows; a type switch starts
// a new segment. The sink is closed exactly once, whatever the outcome.
func (c *Codec) Write(sink io.WriteCloser, records iter.Seq2[model.Record, error], mode AliasMode, maxRowsPerSegment int) (err error) {
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing container: %w", cerr)
		}
	}()

	if err := mode.Validate(); err != nil {
		return err
	}
	if maxRowsPerSegment < 1 {
		return newErrInvalidArgument("max rows per segment must be positive, got %d", maxRowsPerSegment)
	}

	zw, err := zstd.NewWriter(sink, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return fmt.Errorf("creating container encoder: %w", err)
	}

	cw := &containerWriter{
		codec:   c,
		tw:      tar.NewWriter(zw),
		mode:    mode,
		maxRows: maxRowsPerSegment,
	}
	if err := cw.writeAll(records); err != nil {
		_ = zw.Close()
		return err
	}
	if err := cw.tw.Close(); err != nil {
		_ = zw.Close()
		return fmt.Errorf("finalizing container: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing container: %w", err)
	}

	c.log.Debugw("container written", "segments", cw.index, "rows", cw.rows)
	return nil
}

// Read returns a lazy iterator over the records of a container. The source is
// closed when the iterator is exhausted, fails or is closed.
func (c *Codec) Read(source io.ReadCloser, mode AliasMode) *RecordIterator {
	return &RecordIterator{
		codec:  c,
		mode:   mode,
		source: source,
		in:     &trackingReader{r: source},
		log:    c.log,
	}
}

// WriteSegment encodes records of type t as a single segment payload.
func (c *Codec) WriteSegment(w io.Writer, t model.RecordType, records []model.Record, mode AliasMode) error {
	entry, err := c.registry.Lookup(t)
	if err != nil {
		return err
	}

	rows := make([]any, 0, len(records))
	for _, r := range records {
		if r == nil || r.RecordType() != t {
			return newErrInvalidArgument("segment of %s cannot hold %T", t, r)
		}
		backup, err := entry.Translator.ToBackup(r)
		if err != nil {
			return err
		}
		rows = append(rows, backup)
	}

	return c.format.Encode(w, entry.Alias(mode), rows)
}

// ReadSegment decodes a single segment payload read from in. It fails with an
// error matching ErrEmptySegment when the segment yields no record, including
// when its type is not registered (the error then also matches ErrUnknownType).
func (c *Codec) ReadSegment(in io.Reader, mode AliasMode, entryName string) ([]model.Record, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	typeName, _, ext, err := ParseEntryName(entryName)
	if err != nil {
		return nil, err
	}
	entry, err := c.registry.Lookup(model.RecordType(typeName))
	if err != nil {
		return nil, emptyBecause(err)
	}
	format, found := c.formats[ext]
	if !found {
		return nil, fmt.Errorf("%w: %q has unknown format %q", ErrInvalidEntryName, entryName, ext)
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("reading segment %s: %w", entryName, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s has no content", ErrEmptySegment, entryName)
	}

	rows, err := format.Decode(data, func(alias string) (Translator, error) {
		e, err := c.registry.Resolve(alias, mode)
		if err != nil {
			return nil, err
		}
		if e.Type != entry.Type {
			return nil, newErrCorruptSegment(entryName, fmt.Errorf("rows labelled %s in a segment of %s", alias, entry.Type))
		}
		return e.Translator, nil
	})
	switch {
	case errors.Is(err, ErrUnknownType):
		return nil, emptyBecause(err)
	case errors.Is(err, ErrCorruptSegment):
		return nil, err
	case err != nil:
		return nil, newErrCorruptSegment(entryName, err)
	}

	records := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		if entry.IsEmpty(row) || entry.Translator.IgnoreOnRestore(row) {
			continue
		}
		r, err := entry.Translator.FromBackup(row)
		if err != nil {
			return nil, newErrCorruptSegment(entryName, err)
		}
		records = append(records, r)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s holds no records", ErrEmptySegment, entryName)
	}
	return records, nil
}

type containerWriter struct {
	codec   *Codec
	tw      *tar.Writer
	mode    AliasMode
	maxRows int

	index   int
	rows    int
	current model.RecordType
	pending []model.Record
}

func (w *containerWriter) writeAll(records iter.Seq2[model.Record, error]) error {
	for record, err := range records {
		if err != nil {
			return err
		}
		if record == nil {
			return newErrInvalidArgument("nil record")
		}

		if len(w.pending) > 0 && record.RecordType() != w.current {
			if err := w.flush(); err != nil {
				return err
			}
		}
		w.current = record.RecordType()
		w.pending = append(w.pending, record)

		if len(w.pending) >= w.maxRows {
			if err := w.flush(); err != nil {
				return err
			}
		}
	}
	return w.flush()
}

func (w *containerWriter) flush() error {
	if len(w.pending) == 0 {
		return nil
	}

	var buf bytes.Buffer
	if err := w.codec.WriteSegment(&buf, w.current, w.pending, w.mode); err != nil {
		return err
	}

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     EntryName(w.current, w.index, w.codec.format.Extension()),
		Size:     int64(buf.Len()),
		Mode:     0600,
		ModTime:  time.Now(),
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing entry %s: %w", hdr.Name, err)
	}
	if _, err := w.tw.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing entry %s: %w", hdr.Name, err)
	}

	w.index++
	w.rows += len(w.pending)
	w.pending = w.pending[:0]
	return nil
}
