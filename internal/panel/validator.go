package panel

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"goldenbatch/internal/types"
)

// Validator wraps go-playground/validator for request bodies.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator that reports JSON field names.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v, logger: logger}
}

// ValidateStruct returns a 400 *types.AppError naming the first failing field.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		v.logger.Error("request validation misconfigured", "error", err.Error())
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
	}

	fe := verrs[0]
	code := types.ErrCodeValidationMalformedBody
	msg := "invalid value for field " + fe.Field()
	if fe.Tag() == "required" {
		code = types.ErrCodeValidationMissingField
		msg = "missing required field " + fe.Field()
	}
	appErr := types.NewAppError(code, msg, err)
	appErr.Details = map[string]any{"field": fe.Field(), "rule": fe.Tag()}
	return appErr
}
