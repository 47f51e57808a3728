package domain

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// validate is the package-level validator instance used for struct validation.
var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct runs struct-tag validation on v and reports failures as a
// ValidationError for entity.
func ValidateStruct(entity string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verr := NewValidationError(entity)
	appendFieldErrors(verr, err)
	return verr
}

func appendFieldErrors(dst *ValidationError, err error) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		dst.Add(Issue{Message: err.Error()})
		return
	}
	for _, fe := range fieldErrs {
		dst.Add(Issue{Field: jsonName(fe.Field()), Message: describe(fe)})
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "datetime":
		return "must match layout " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// jsonName converts a Go field name into its snake_case JSON form.
func jsonName(field string) string {
	out := make([]byte, 0, len(field)+4)
	for i := 0; i < len(field); i++ {
		c := field[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 && (field[i-1] < 'A' || field[i-1] > 'Z') {
				out = append(out, '_')
			}
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

// SameID reports whether two nullable ids refer to the same value.
func SameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ID returns a pointer to id, or nil when id is not positive.
func ID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

// CloneID copies a nullable id so callers never share the pointer.
func CloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
