package core

import (
	"errors"
	"log/slog"
	"reflect"

	"github.com/go-playground/validator/v10"

	"hubrelay/internal/types"
)

// Validator wraps go-playground/validator for request structs bound from
// query strings.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator builds a validator that enables required checks on nested
// structs and reports fields by their query tag, so error details name the
// parameter the caller actually sent.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("query"); name != "" {
			return name
		}
		return fld.Name
	})
	return &Validator{validate: v, logger: logger}
}

// ValidateStruct returns nil or a validation_invalid_query AppError listing
// each failing field and the rule it broke.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		if v.logger != nil {
			v.logger.Error("struct validation misuse", "error", err)
		}
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
	}

	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidQuery,
		"invalid query parameters", err, map[string]any{"fields": fields})
}
