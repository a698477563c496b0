package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"botevents-api/pkg/apierror"
)

// Validator wraps the validator instance
type Validator struct {
	validate *validator.Validate
}

var (
	validate     *Validator
	validateOnce sync.Once
)

// GetValidator returns the shared validator instance
func GetValidator() *Validator {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// Report JSON field names so errors match the wire payload.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})

		validate = &Validator{validate: v}
	})
	return validate
}

// ValidateStruct validates a struct using tags
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.validate.Struct(s)
}

// FormatValidationError converts validation errors into field details.
// Internal struct names never reach the response.
func FormatValidationError(err error) []apierror.FieldError {
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []apierror.FieldError{{Field: "body", Message: "Invalid request format"}}
	}

	details := make([]apierror.FieldError, 0, len(validationErrors))
	for _, e := range validationErrors {
		field := fieldPath(e.Namespace())
		var msg string
		switch e.Tag() {
		case "required":
			msg = "This field is required"
		case "max":
			msg = fmt.Sprintf("Must be at most %s characters", e.Param())
		case "min":
			if e.Kind() == reflect.Slice {
				msg = fmt.Sprintf("Must contain at least %s entries", e.Param())
			} else {
				msg = fmt.Sprintf("Must be at least %s characters", e.Param())
			}
		default:
			msg = "Invalid value"
		}
		details = append(details, apierror.FieldError{Field: field, Message: msg})
	}
	return details
}

// fieldPath drops the root struct name, e.g. "DepositRequest.pets[0].name" -> "pets[0].name".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
