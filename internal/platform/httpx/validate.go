package httpx

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/storekeep/storekeep/internal/shared"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the process-wide validator. Field names follow json tags
// and decimal fields validate as numbers, so tags like gte=0 work on them.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return field.Name
			}
			return name
		})
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			switch d := field.Interface().(type) {
			case decimal.Decimal:
				f, _ := d.Float64()
				return f
			case decimal.NullDecimal:
				if !d.Valid {
					return nil
				}
				f, _ := d.Decimal.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{}, decimal.NullDecimal{})
		validate = v
	})
	return validate
}

// Validate runs struct validation and converts failures into a shared.ValidationError.
func Validate(target any) error {
	err := Validator().Struct(target)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("httpx: validate: %w", err)
	}
	verr := &shared.ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fieldPath(fe), "%s", describe(fe))
	}
	return verr
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "min":
		return "must contain at least " + fe.Param() + " entries"
	case "dive":
		return "is invalid"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
