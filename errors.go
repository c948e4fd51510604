package hostel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jitheshjr/hostel/allocation"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("hostel: not found")
	ErrAlreadyExists = errors.New("hostel: already exists")
	ErrInvalidInput  = errors.New("hostel: invalid input")

	// Student errors
	ErrStudentNotFound = errors.New("hostel: student not found")
	ErrStudentArchived = errors.New("hostel: student is archived")

	// Attendance errors
	ErrAttendanceNotFound        = errors.New("hostel: attendance not found")
	ErrAttendanceAlreadyRecorded = errors.New("hostel: attendance already recorded for date")

	// Bill errors
	ErrBillNotFound           = errors.New("hostel: mess bill not found")
	ErrDuplicateBillingPeriod = errors.New("hostel: mess bill already exists for period")
	ErrAttendanceGap          = errors.New("hostel: attendance missing for billing period boundary")
	ErrArithmeticPolicy       = errors.New("hostel: chargeable mess days must be positive")
	ErrDivisionByZero         = allocation.ErrDivisionByZero

	// Store errors
	ErrStoreClosed     = errors.New("hostel: store is closed")
	ErrMigrationFailed = errors.New("hostel: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("hostel: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "hostel: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("hostel: %d errors occurred: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrStudentNotFound) ||
		errors.Is(err, ErrAttendanceNotFound) ||
		errors.Is(err, ErrBillNotFound)
}

// IsConflict returns true if the error reports a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrAttendanceAlreadyRecorded) ||
		errors.Is(err, ErrDuplicateBillingPeriod)
}

// IsUserCorrectable returns true if the caller can fix the request and retry.
func IsUserCorrectable(err error) bool {
	return IsConflict(err) ||
		errors.Is(err, ErrAttendanceGap) ||
		errors.Is(err, ErrArithmeticPolicy) ||
		errors.Is(err, ErrDivisionByZero) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrStudentArchived)
}
