package config

import (
	"fmt"
	"strings"
)

// Severity classifies a validation finding.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// FieldError describes one violated constraint.
type FieldError struct {
	Field    string      `yaml:"field" json:"field"`
	Message  string      `yaml:"message" json:"message"`
	Value    interface{} `yaml:"value,omitempty" json:"value,omitempty"`
	Severity Severity    `yaml:"-" json:"-"`
}

func (f FieldError) String() string {
	if f.Field == "" {
		return f.Message
	}
	return fmt.Sprintf("%s: %s", f.Field, f.Message)
}

// ConfigurationError is returned when a merge or import is rejected. The
// prior configuration is left in place.
type ConfigurationError struct {
	Errors   []FieldError
	Warnings []FieldError
}

func (e *ConfigurationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.String())
	}
	return fmt.Sprintf("invalid configuration (%d errors): %s", len(e.Errors), strings.Join(parts, "; "))
}
