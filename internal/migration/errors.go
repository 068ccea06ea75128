package migration

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownType is returned when a type name, table name or entry name
	// does not resolve to a registered record type. Readers treat it as recoverable.
	ErrUnknownType      = errors.New("unknown record type")
	ErrInvalidEntryName = errors.New("invalid container entry name")
	// ErrEmptySegment signals a segment that yields no records. Iterators skip it.
	ErrEmptySegment   = errors.New("empty segment")
	ErrCorruptSegment = errors.New("corrupt segment")
	// ErrNextBeforeHasNext is returned by Next when HasNext was not called first.
	ErrNextBeforeHasNext = errors.New("next called before has next")
	ErrNoMoreRecords     = errors.New("no more records")
	ErrIteratorClosed    = errors.New("iterator closed before the end of the container")
)

type UnknownTypeError struct {
	Name string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown record type: %s", e.Name)
}

func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownType
}

func newErrUnknownType(name string) error {
	return &UnknownTypeError{Name: name}
}

func newErrInvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// CorruptSegmentError reports a segment payload that cannot be decoded. It
// unwraps to the decoder error.
type CorruptSegmentError struct {
	Entry string
	Cause error
}

func (e *CorruptSegmentError) Error() string {
	return fmt.Sprintf("corrupt segment %s: %s", e.Entry, e.Cause)
}

func (e *CorruptSegmentError) Is(target error) bool {
	return target == ErrCorruptSegment
}

func (e *CorruptSegmentError) Unwrap() error {
	return e.Cause
}

func newErrCorruptSegment(entry string, cause error) error {
	return &CorruptSegmentError{Entry: entry, Cause: cause}
}

// emptyBecause reports an unknown type as an empty segment while keeping the
// original error reachable with errors.Is / errors.As.
func emptyBecause(err error) error {
	return fmt.Errorf("%w: %w", ErrEmptySegment, err)
}
