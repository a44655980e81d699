package trading

import (
	"errors"
	"fmt"
)

var (
	ErrSessionUnavailable     = errors.New("MT5 not initialized")
	ErrInstrumentNotFound     = errors.New("instrument not found")
	ErrInstrumentUnselectable = errors.New("instrument cannot be selected")
	ErrInstrumentUnavailable  = errors.New("instrument unavailable")
	ErrPositionNotFound       = errors.New("position not found")
)

// ValidationError reports a malformed signal. It never reaches the session.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// RejectedError carries a non-success execution code returned by the
// terminal, verbatim.
type RejectedError struct {
	Code    int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("Order failed: %d - %s", e.Code, e.Message)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// RejectionCode extracts the terminal execution code from err, if any.
func RejectionCode(err error) (int, bool) {
	var r *RejectedError
	if errors.As(err, &r) {
		return r.Code, true
	}

	return 0, false
}
