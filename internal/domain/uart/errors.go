package uart

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/uartd/internal/domain/policy"
)

var (
	// ErrUnavailable matches every session rejection.
	ErrUnavailable = errors.New("uart session unavailable")

	ErrNoPolicy         = policy.ErrNoPolicy
	ErrMissingAttribute = errors.New(`missing "uart" attribute in policy definition`)
	ErrInvalidAttribute = errors.New("invalid policy attribute")
	ErrDeviceBusy       = errors.New("device is claimed exclusively")

	ErrSessionNotFound = errors.New("session not found")
)

// UnavailableError is returned when a session request is refused.
type UnavailableError struct {
	Label string
	Err   error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("session request %q refused: %v", e.Label, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrUnavailable) hold for every rejection.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// Reason returns a short machine-readable cause, used as a metric label.
func (e *UnavailableError) Reason() string {
	switch {
	case errors.Is(e.Err, ErrNoPolicy):
		return "no_policy"
	case errors.Is(e.Err, ErrMissingAttribute):
		return "missing_attribute"
	case errors.Is(e.Err, ErrInvalidAttribute):
		return "invalid_attribute"
	case errors.Is(e.Err, ErrDeviceBusy):
		return "device_busy"
	default:
		return "other"
	}
}

func unavailable(label string, err error) *UnavailableError {
	return &UnavailableError{Label: label, Err: err}
}
