package service

import (
	"fmt"

	"github.com/kubev2v/stack-migration/internal/store/model"
)

type ErrInvalidRequest struct {
	error
}

func NewErrInvalidRequest(format string, args ...any) *ErrInvalidRequest {
	return &ErrInvalidRequest{fmt.Errorf("invalid request: %s", fmt.Sprintf(format, args...))}
}

type ErrUnknownRecordType struct {
	error
}

func NewErrUnknownRecordType(t model.RecordType) *ErrUnknownRecordType {
	return &ErrUnknownRecordType{fmt.Errorf("record type %s is not migratable", t)}
}

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id string, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrBackupNotFound(key string) *ErrResourceNotFound {
	return NewErrResourceNotFound(key, "backup")
}

func NewErrNoRows(t model.RecordType) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("no %s rows found", t)}
}

type ErrStackNotReadOnly struct {
	error
}

func NewErrStackNotReadOnly(state model.StatusState) *ErrStackNotReadOnly {
	return &ErrStackNotReadOnly{fmt.Errorf("stack must be %s, current state is %s", model.StatusReadOnly, state)}
}
