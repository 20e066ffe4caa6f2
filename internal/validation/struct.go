package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"skillswap/internal/models"

	"github.com/go-playground/validator/v10"
)

// Validate is the shared validator for request payloads.
var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return models.Role(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, ok := models.CanonicalCategory(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("bookingdate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(models.BookingDateLayout, fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("bookingstatus", func(fl validator.FieldLevel) bool {
		return models.BookingStatus(fl.Field().String()).Valid()
	})
	return v
}

// Struct validates s and folds every field failure into one readable message.
func Struct(s any) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "role":
		return field + " must be mentor or student"
	case "category":
		return field + " must be one of the skill categories"
	case "bookingdate":
		return field + " must be a YYYY-MM-DD date"
	case "bookingstatus":
		return field + " is not a booking status"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
