package store

import "errors"

var (
	ErrRecordNotFound  = errors.New("record not found")
	ErrUnsupportedType = errors.New("record type is not migratable")
)
