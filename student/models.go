// Package student defines hostel residents.
package student

import (
	"time"

	"github.com/jitheshjr/hostel/id"
	"github.com/jitheshjr/hostel/types"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Student is a hostel resident. EGrantz marks a government stipend holder,
// who is billed with a flat supplement instead of absence discounts.
type Student struct {
	types.Entity
	ID          id.StudentID `json:"id"`
	AdmissionNo string       `json:"admission_no"`
	Name        string       `json:"name"`
	EGrantz     bool         `json:"e_grantz"`
	Status      Status       `json:"status"`
	JoinedAt    time.Time    `json:"joined_at"`
	ExitedAt    *time.Time   `json:"exited_at,omitempty"`
}

// IsActive reports whether the student is on the current roster.
func (s *Student) IsActive() bool { return s.Status == StatusActive }
