package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "zentaocli/internal/errors"
)

// RequestValidator validates request contracts using struct tags
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator creates a validator reporting JSON field names
func NewRequestValidator() *RequestValidator {
	v := validator.New()

	v.RegisterValidation("cellref", isCellRef)

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &RequestValidator{validate: v}
}

// Struct validates req and returns a single Validation AppError describing
// every failed field
func (rv *RequestValidator) Struct(req any) error {
	err := rv.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewAppError(apperrors.ErrTypeValidation, "invalid request", err)
	}

	msgs := make([]string, 0, len(verrs))
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
		fields = append(fields, fe.Namespace())
	}

	return apperrors.NewAppValidationError(strings.Join(msgs, "; ")).WithContext("fields", fields)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a date formatted %s", fe.Field(), fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a URL", fe.Field())
	case "min", "max":
		return fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
	case "cellref":
		return fmt.Sprintf("%s must be a cell reference like D2", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// isCellRef accepts A1-style references: letters followed by a row number
func isCellRef(fl validator.FieldLevel) bool {
	ref := strings.ToUpper(fl.Field().String())
	i := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		i++
	}
	if i == 0 || i > 3 || i == len(ref) || ref[i] == '0' {
		return false
	}
	for _, ch := range ref[i:] {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
