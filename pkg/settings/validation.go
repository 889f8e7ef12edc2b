package settings

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidSettings is matched by every *ValidationError.
var ErrInvalidSettings = errors.New("invalid settings")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their settings key instead of the Go field name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Violation is one broken validation rule.
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Field == "" {
		return v.Message
	}
	return v.Field + ": " + v.Message
}

// ValidationError lists every rule a settings change violated. The store is
// left unchanged when it is returned.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return "settings validation failed"
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return "settings validation failed: " + strings.Join(parts, "; ")
}

// Is matches ErrInvalidSettings.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidSettings
}

// Has reports whether a violation exists for field.
func (e *ValidationError) Has(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

// Validate checks s against its field rules and the schema constraint.
// It returns nil or a *ValidationError.
func Validate(s Settings) error {
	var violations []Violation

	if err := validate.Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return &ValidationError{Violations: []Violation{{Rule: "struct", Message: err.Error()}}}
		}
		for _, fe := range fieldErrs {
			violations = append(violations, violationFrom(fe))
		}
	}

	if v, ok := checkSchema(s.SchemaVersion); !ok {
		violations = append(violations, v)
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

func checkSchema(version string) (Violation, bool) {
	if version == "" {
		// Reported by the required rule.
		return Violation{}, true
	}
	ver, err := semver.NewVersion(version)
	if err != nil {
		// Reported by the semver rule.
		return Violation{}, true
	}
	constraint, err := semver.NewConstraint(SchemaConstraint)
	if err != nil {
		return Violation{Field: "schema_version", Rule: "constraint", Message: err.Error()}, false
	}
	if !constraint.Check(ver) {
		return Violation{
			Field:   "schema_version",
			Rule:    "constraint",
			Message: fmt.Sprintf("version %s is not compatible with %s", version, SchemaConstraint),
		}, false
	}
	return Violation{}, true
}

func violationFrom(fe validator.FieldError) Violation {
	// Namespace is "Settings.auto_resolve.max_priority"; drop the root type.
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "required_if":
		msg = "is required when " + strings.Replace(fe.Param(), " ", " is ", 1)
	case "gte":
		msg = "must be >= " + fe.Param()
	case "lte":
		msg = "must be <= " + fe.Param()
	case "min":
		msg = "must be at least " + fe.Param()
	case "max":
		msg = "must be at most " + fe.Param()
	case "oneof":
		msg = "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "semver":
		msg = "must be a semantic version"
	case "email":
		msg = "must be an email address"
	default:
		msg = fmt.Sprintf("failed %q rule", fe.Tag())
	}

	return Violation{Field: field, Rule: fe.Tag(), Message: msg}
}
