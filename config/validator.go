package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate validates the Config using struct tags and the rules tags cannot
// express (condition node shape, unique names).
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	names := make(map[string]struct{}, len(c.Defenses))
	for i, d := range c.Defenses {
		if _, dup := names[d.Name]; dup {
			return fmt.Errorf("defenses[%d]: duplicate name %q", i, d.Name)
		}
		names[d.Name] = struct{}{}

		if err := d.Condition.validate(fmt.Sprintf("defenses[%d].condition", i)); err != nil {
			return err
		}
	}
	return nil
}

func (c ConditionConfig) validate(path string) error {
	set := 0
	if c.Key != "" {
		set++
	}
	if c.And != nil {
		set++
	}
	if c.Or != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("%s: specify exactly one of key, and, or", path)
	}

	if c.Key != "" && c.Timeout < 0 {
		return fmt.Errorf("%s: timeout must not be negative", path)
	}
	for i, child := range c.And {
		if err := child.validate(fmt.Sprintf("%s.and[%d]", path, i)); err != nil {
			return err
		}
	}
	for i, child := range c.Or {
		if err := child.validate(fmt.Sprintf("%s.or[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
