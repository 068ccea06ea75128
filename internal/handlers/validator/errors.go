package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ErrInvalidForm struct {
	error
}

func NewErrInvalidForm(format string, args ...any) *ErrInvalidForm {
	return &ErrInvalidForm{fmt.Errorf(format, args...)}
}

// formError turns the field errors of a failed validation into one readable error.
func formError(err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		if fe.Param() != "" {
			messages = append(messages, fmt.Sprintf("%s fails rule %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		messages = append(messages, fmt.Sprintf("%s fails rule %s", fe.Namespace(), fe.Tag()))
	}
	return NewErrInvalidForm("%s", strings.Join(messages, "; "))
}
