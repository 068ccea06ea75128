package validator

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kubev2v/stack-migration/internal/migration"
	"github.com/kubev2v/stack-migration/internal/store/model"
)

var (
	recordTypeRegex = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
	blobKeyRegex    = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)
)

// recordTypeValidator accepts well formed type names, registered or not:
// restoring a retired type is a no-op rather than an error.
func recordTypeValidator(fl validator.FieldLevel) bool {
	return recordTypeRegex.MatchString(fl.Field().String())
}

func aliasModeValidator(fl validator.FieldLevel) bool {
	_, err := migration.ParseAliasMode(fl.Field().String())
	return err == nil
}

func blobKeyValidator(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	return blobKeyRegex.MatchString(val) && !strings.Contains(val, "..")
}

func stackStateValidator(fl validator.FieldLevel) bool {
	switch model.StatusState(fl.Field().String()) {
	case model.StatusReadWrite, model.StatusReadOnly, model.StatusDown:
		return true
	default:
		return false
	}
}
