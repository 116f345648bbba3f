package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/GriffinCanCode/uartd/internal/shared/id"
)

// Size limits
const (
	MaxIDLength    = 128
	MaxLabelLength = 256
	MaxArgsSize    = 4 * 1024 // serialized session args
	MaxArgCount    = 32
)

// SafeIDPattern allows alphanumeric, hyphens, underscores
var SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateID validates an ID field
func ValidateID(id, fieldName string, required bool) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, required); err != nil {
		return err
	}

	if id != "" && !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric, hyphens, and underscores allowed)", fieldName)
	}

	return nil
}

// ValidateSessionID validates a session ID taken from a request path.
func ValidateSessionID(raw string) error {
	if err := ValidateID(raw, "session_id", true); err != nil {
		return err
	}
	if !strings.HasPrefix(raw, id.SessionPrefix+"_") || !id.IsValid(raw) {
		return fmt.Errorf("session_id %q is not a session ID", raw)
	}
	return nil
}

// ValidateLabel validates a session label. Labels are free text such as
// "init -> console" but must be valid UTF-8 without control characters.
func ValidateLabel(label string) error {
	if err := ValidateString(label, "label", 1, MaxLabelLength, true); err != nil {
		return err
	}
	if !utf8.ValidString(label) {
		return fmt.Errorf("label is not valid UTF-8")
	}
	for _, r := range label {
		if unicode.IsControl(r) {
			return fmt.Errorf("label contains control characters")
		}
	}
	return nil
}

// ValidateArgs validates client-supplied session arguments
func ValidateArgs(args map[string]string) error {
	if len(args) > MaxArgCount {
		return fmt.Errorf("too many args (maximum %d)", MaxArgCount)
	}

	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal args: %w", err)
	}
	if len(data) > MaxArgsSize {
		return fmt.Errorf("args size %d bytes exceeds maximum %d bytes", len(data), MaxArgsSize)
	}

	for k := range args {
		if err := ValidateID(k, "arg name", true); err != nil {
			return err
		}
	}
	return nil
}
