package validator

import "github.com/go-playground/validator/v10"

func registerFn(tag string, fn func(fl validator.FieldLevel) bool) func(v *validator.Validate) {
	return func(v *validator.Validate) {
		_ = v.RegisterValidation(tag, fn)
	}
}

func NewMigrationValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("record_type", recordTypeValidator),
		},
		{
			Rule: registerFn("alias_mode", aliasModeValidator),
		},
		{
			Rule: registerFn("blob_key", blobKeyValidator),
		},
	}
}

func NewStatusValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("stack_state", stackStateValidator),
		},
	}
}
