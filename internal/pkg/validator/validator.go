package validator

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var disposableDomains = []string{
	"10minutemail.com", "guerrillamail.com", "mailinator.com", "tempmail.org",
	"yopmail.com", "maildrop.cc", "temp-mail.org", "throwaway.email",
}

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()

	v.RegisterValidation("no_disposable_email", validateNoDisposableEmail)
	v.RegisterValidation("segment", validateSegment)

	return &Validator{validate: v}
}

func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// Details flattens a validation error into field -> failed tag, suitable for
// the details of an error response. Other errors yield nil.
func Details(err error) map[string]string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fe.Tag()
	}
	return details
}

func validateNoDisposableEmail(fl validator.FieldLevel) bool {
	parts := strings.Split(fl.Field().String(), "@")
	if len(parts) != 2 {
		return false
	}

	domain := strings.ToLower(parts[1])
	for _, disposable := range disposableDomains {
		if domain == disposable {
			return false
		}
	}
	return true
}

// validateSegment accepts values usable as one document path segment.
func validateSegment(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return strings.TrimSpace(s) != "" && !strings.Contains(s, "/")
}
