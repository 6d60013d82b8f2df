package config

import (
	"fmt"
	"strings"
)

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	switch c.Session.Backend {
	case "json", "sqlite":
	default:
		errs = append(errs, ValidationError{
			Field:   "session.backend",
			Message: fmt.Sprintf("must be json or sqlite, got %q", c.Session.Backend),
		})
	}

	if c.Import.DebounceMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "import.debounce_ms",
			Message: "must not be negative",
		})
	}

	if c.Preproc.MainsFrequency <= 0 {
		errs = append(errs, ValidationError{
			Field:   "preproc.mains_frequency",
			Message: "must be positive",
		})
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q", c.Logging.Level),
		})
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown format %q", c.Logging.Format),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
