package validator

import (
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError is one failed rule, keyed by the JSON field name
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// pidPattern keeps a pid usable verbatim as a single URL path segment
var pidPattern = regexp.MustCompile(`^[A-Za-z0-9._~-]+$`)

// Register installs the custom rules and JSON field naming on v.
// Calling it again on the same engine replaces the rules with identical ones.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(jsonTagName)
	if err := v.RegisterValidation("datauri", validateDataURI); err != nil {
		return err
	}
	return v.RegisterValidation("pid", validatePID)
}

func jsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

// validateDataURI accepts "data:<mime>;base64,<payload>" with a decodable payload.
// Empty strings pass; pair with "required" to forbid them.
func validateDataURI(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	return IsDataURI(s)
}

// validatePID accepts unreserved URL characters only. Empty strings pass.
func validatePID(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == "" || pidPattern.MatchString(s)
}

// IsDataURI reports whether s is a Base64 data URI
func IsDataURI(s string) bool {
	if !strings.HasPrefix(s, "data:") {
		return false
	}
	header, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(payload)
	return err == nil
}

// Translate flattens validator errors into per-field messages.
// It returns nil when err is not a validation error.
func Translate(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, FieldError{
			Field:   e.Field(),
			Message: message(e),
		})
	}
	return out
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters long", e.Param())
		}
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must not exceed %s characters", e.Param())
		}
		return fmt.Sprintf("must not exceed %s", e.Param())
	case "datauri":
		return "must be a data URI of the form data:<mime>;base64,<payload>"
	case "pid":
		return "may only contain letters, digits, '.', '_', '~' and '-'"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	default:
		return fmt.Sprintf("failed on the '%s' rule", e.Tag())
	}
}
