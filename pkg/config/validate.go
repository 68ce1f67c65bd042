package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dd0wney/cluso-foggy/pkg/assess"
	"github.com/go-playground/validator/v10"
)

// ErrInvalid marks an experiment that fails validation.
var ErrInvalid = errors.New("invalid experiment")

// validate is a singleton validator instance
var validate = validator.New()

// Validate checks struct tags and the rules that span several fields. All
// failures are reported together.
func (e *Experiment) Validate() error {
	var errs []error
	if err := validate.Struct(e); err != nil {
		errs = append(errs, formatValidationErrors(err)...)
	}

	if e.Constrained() {
		if e.Capacity == "" {
			errs = append(errs, fmt.Errorf("capacity: required for %s walks", e.Policy()))
		}
		if len(e.CapacityFactors) == 0 {
			errs = append(errs, fmt.Errorf("capacity_factors: required for %s walks", e.Policy()))
		}
	}
	if e.VisitValue == "degree" {
		if _, err := assess.ComputeMu(e.Alpha, e.nu()); err != nil {
			errs = append(errs, fmt.Errorf("alpha: %w", err))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func (e *Experiment) nu() float64 {
	if e.Nu == 0 {
		return assess.DefaultNu
	}
	return e.Nu
}

// formatValidationErrors converts validator errors to messages keyed by the
// YAML path of the offending field.
func formatValidationErrors(err error) []error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return []error{err}
	}

	out := make([]error, 0, len(validationErrs))
	for _, e := range validationErrs {
		field := fieldPath(e.Namespace())
		param := e.Param()

		switch e.Tag() {
		case "required", "required_if":
			out = append(out, fmt.Errorf("%s: field is required", field))
		case "min":
			out = append(out, fmt.Errorf("%s: must have at least %s entries", field, param))
		case "gt":
			out = append(out, fmt.Errorf("%s: must be greater than %s", field, param))
		case "gte":
			out = append(out, fmt.Errorf("%s: must be at least %s", field, param))
		case "oneof":
			out = append(out, fmt.Errorf("%s: %v is not one of [%s]", field, e.Value(), param))
		default:
			out = append(out, fmt.Errorf("%s: validation failed (%s)", field, e.Tag()))
		}
	}
	return out
}

// fieldPath turns "Experiment.Output.Dir" into "output.dir".
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, ".")
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && s[i-1] != '[' {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
