package validator

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// maxUserIDLength matches the width of the user id columns.
const maxUserIDLength = 255

// New creates a new validator instance with custom validations registered.
// Handlers and tests share it so request DTOs and identities are checked
// the same way everywhere.
func New() *validator.Validate {
	v := validator.New()

	// notblank rejects whitespace-only strings
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true // Not a string, let other validators handle it
		}
		return strings.TrimSpace(str) != ""
	})

	// userid accepts the opaque ids issued by the identity provider: non-blank,
	// at most 255 bytes, no control characters
	_ = v.RegisterValidation("userid", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		if strings.TrimSpace(str) == "" || len(str) > maxUserIDLength {
			return false
		}
		return strings.IndexFunc(str, unicode.IsControl) < 0
	})

	return v
}
