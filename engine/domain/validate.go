package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxActivityLength = 200

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("component_type", func(fl validator.FieldLevel) bool {
		return ValidComponentTypes[ComponentType(fl.Field().String())]
	})
	return v
}

// ValidateComponent checks id and type of a placed component.
func ValidateComponent(c Component) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return NewValidationError(strings.ToLower(fe.Field()), fmt.Sprintf("%v", fe.Value()), ErrInvalidComponent)
	}
	return NewValidationError("component", c.ID, ErrInvalidComponent)
}

// Sanitize drops components that failed to decode, fail validation or repeat
// an earlier id, and guarantees a non-nil connection map. Connections are left
// untouched: edges keyed by a dropped or unknown component are never looked up.
func Sanitize(s Scene) (Scene, []error) {
	var errs []error
	out := Scene{
		Components:  make([]Component, 0, len(s.Components)),
		Connections: s.Connections,
	}
	if out.Connections == nil {
		out.Connections = map[string][]Connection{}
	}
	seen := make(map[string]bool, len(s.Components))
	for _, c := range s.Components {
		if c.decodeErr != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidComponent, c.decodeErr))
			continue
		}
		if err := ValidateComponent(c); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[c.ID] {
			errs = append(errs, NewValidationError("id", c.ID, ErrInvalidComponent))
			continue
		}
		seen[c.ID] = true
		out.Components = append(out.Components, c)
	}
	return out, errs
}

// ValidateActivity checks the free-text activity sent to the configuration suggester.
func ValidateActivity(activity string) error {
	activity = strings.TrimSpace(activity)
	if err := validate.Var(activity, fmt.Sprintf("required,max=%d", maxActivityLength)); err != nil {
		return NewValidationError("activity", activity, ErrInvalidActivity)
	}
	return nil
}
