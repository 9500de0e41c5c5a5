package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// Report fields by their json names so errors match the wire shape
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
		_ = v.RegisterValidation("nonblank", validateNonBlank)
		_ = v.RegisterValidation("nonzerotime", validateNonZeroTime)

		validate = v
	})
	return validate
}

// ValidateConfiguration checks a game configuration and returns the first violation
// as a field-scoped *ValidationError
func ValidateConfiguration(config GameConfiguration) error {
	err := getValidator().Struct(config)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return NewValidationError("configuration", "%v", err)
	}
	return toValidationError(validationErrors[0])
}

func toValidationError(e validator.FieldError) *ValidationError {
	// Namespace is "GameConfiguration.options[1].id"; drop the type prefix
	field := e.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	var message string
	switch e.Tag() {
	case "nonblank":
		message = "must not be empty"
	case "nonzerotime":
		message = "must be set"
	case "min":
		if e.Kind() == reflect.Slice {
			message = fmt.Sprintf("must have at least %s entries", e.Param())
		} else {
			message = fmt.Sprintf("must be at least %s characters", e.Param())
		}
	case "max":
		if e.Kind() == reflect.Slice {
			message = fmt.Sprintf("must have at most %s entries", e.Param())
		} else {
			message = fmt.Sprintf("must be at most %s characters", e.Param())
		}
	case "gte":
		message = fmt.Sprintf("must be at least %s", e.Param())
	case "lte":
		message = fmt.Sprintf("must be at most %s", e.Param())
	case "gtfield":
		message = fmt.Sprintf("must be greater than %s", jsonFieldName(e.Param()))
	case "unique":
		message = fmt.Sprintf("must have unique %s values", strings.ToLower(e.Param()))
	case "oneof":
		message = fmt.Sprintf("must be one of [%s]", e.Param())
	default:
		message = "invalid value"
	}
	return &ValidationError{Field: field, Message: message}
}

// jsonFieldName maps a Go field name used in a cross-field tag to its json name
func jsonFieldName(goName string) string {
	if field, ok := reflect.TypeOf(GameConfiguration{}).FieldByName(goName); ok {
		if name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]; name != "" {
			return name
		}
	}
	return goName
}

func validateNonBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validateNonZeroTime(fl validator.FieldLevel) bool {
	t, ok := fl.Field().Interface().(time.Time)
	return ok && !t.IsZero()
}
