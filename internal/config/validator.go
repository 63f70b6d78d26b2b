package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers sessiond-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	// duration: validates Go duration strings like "24h" or "30s"
	if err := v.RegisterValidation("duration", validateDuration); err != nil {
		return fmt.Errorf("failed to register duration validator: %w", err)
	}
	return nil
}

// validateDuration validates that a field parses as a positive Go duration.
func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d > 0
}

// Validate validates the Config using struct tags and custom cross-field rules.
// Returns an error if validation fails, with actionable error messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateDurations(); err != nil {
		return err
	}

	return c.validateDirectoryMode()
}

// validateDurations checks that idle does not exceed the absolute lifetime.
// Individual duration syntax is covered by the "duration" struct tag.
func (c *Config) validateDurations() error {
	absolute, err := parseDuration("session.absolute_duration", c.Session.AbsoluteDuration)
	if err != nil {
		return err
	}
	idle, err := parseDuration("session.idle_duration", c.Session.IdleDuration)
	if err != nil {
		return err
	}
	if idle > absolute {
		return fmt.Errorf("session: idle_duration (%s) must not exceed absolute_duration (%s)",
			c.Session.IdleDuration, c.Session.AbsoluteDuration)
	}
	return nil
}

// validateDirectoryMode ensures the selected directory mode has the fields
// it needs.
func (c *Config) validateDirectoryMode() error {
	switch c.Directory.Mode {
	case "rest":
		if c.Directory.BaseURL == "" {
			return errors.New("directory: base_url is required when mode is \"rest\"")
		}
	case "seed":
		if c.Directory.SeedFile == "" {
			return errors.New("directory: seed_file is required when mode is \"seed\"")
		}
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "duration":
		return fmt.Sprintf("%s must be a positive duration like \"30s\" or \"24h\"", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
