// Package id defines TypeID-based identity types for hostel entities.
//
// Every stored record uses a single ID struct with a prefix that identifies
// the record type. IDs are K-sortable (UUIDv7-based), globally unique,
// and URL-safe in the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for hostel record types.
const (
	PrefixStudent           Prefix = "stu"   // Resident
	PrefixAttendanceDate    Prefix = "adate" // Day on which attendance was taken
	PrefixAttendance        Prefix = "att"   // Absence fact
	PrefixMessBill          Prefix = "mbill" // Monthly aggregate bill
	PrefixStudentBill       Prefix = "sbill" // Per-student line item
	PrefixContinuousAbsence Prefix = "cabs"  // Qualifying absence streak total
)

// ID is the primary identifier type for hostel records.
// It wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "stu_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// MustParseWithPrefix is like ParseWithPrefix but panics on error.
func MustParseWithPrefix(s string, expected Prefix) ID {
	parsed, err := ParseWithPrefix(s, expected)
	if err != nil {
		panic(fmt.Sprintf("id: must parse with prefix %q: %v", expected, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Type aliases
// ──────────────────────────────────────────────────

// StudentID identifies a resident (prefix: "stu").
type StudentID = ID

// AttendanceDateID identifies a recorded attendance day (prefix: "adate").
type AttendanceDateID = ID

// AttendanceID identifies a single absence fact (prefix: "att").
type AttendanceID = ID

// MessBillID identifies a monthly mess bill (prefix: "mbill").
type MessBillID = ID

// StudentBillID identifies a per-student bill row (prefix: "sbill").
type StudentBillID = ID

// ContinuousAbsenceID identifies a streak record (prefix: "cabs").
type ContinuousAbsenceID = ID

// ──────────────────────────────────────────────────
// Convenience constructors
// ──────────────────────────────────────────────────

// NewStudentID generates a new unique student ID.
func NewStudentID() ID { return New(PrefixStudent) }

// NewAttendanceDateID generates a new unique attendance date ID.
func NewAttendanceDateID() ID { return New(PrefixAttendanceDate) }

// NewAttendanceID generates a new unique attendance ID.
func NewAttendanceID() ID { return New(PrefixAttendance) }

// NewMessBillID generates a new unique mess bill ID.
func NewMessBillID() ID { return New(PrefixMessBill) }

// NewStudentBillID generates a new unique student bill ID.
func NewStudentBillID() ID { return New(PrefixStudentBill) }

// NewContinuousAbsenceID generates a new unique continuous absence ID.
func NewContinuousAbsenceID() ID { return New(PrefixContinuousAbsence) }

// ──────────────────────────────────────────────────
// Convenience parsers
// ──────────────────────────────────────────────────

// ParseStudentID parses a string and validates the "stu" prefix.
func ParseStudentID(s string) (ID, error) { return ParseWithPrefix(s, PrefixStudent) }

// ParseAttendanceDateID parses a string and validates the "adate" prefix.
func ParseAttendanceDateID(s string) (ID, error) { return ParseWithPrefix(s, PrefixAttendanceDate) }

// ParseAttendanceID parses a string and validates the "att" prefix.
func ParseAttendanceID(s string) (ID, error) { return ParseWithPrefix(s, PrefixAttendance) }

// ParseMessBillID parses a string and validates the "mbill" prefix.
func ParseMessBillID(s string) (ID, error) { return ParseWithPrefix(s, PrefixMessBill) }

// ParseStudentBillID parses a string and validates the "sbill" prefix.
func ParseStudentBillID(s string) (ID, error) { return ParseWithPrefix(s, PrefixStudentBill) }

// ParseContinuousAbsenceID parses a string and validates the "cabs" prefix.
func ParseContinuousAbsenceID(s string) (ID, error) {
	return ParseWithPrefix(s, PrefixContinuousAbsence)
}

// ParseAny parses a string into an ID without type checking the prefix.
func ParseAny(s string) (ID, error) { return Parse(s) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
