// Package plugin provides an extensible plugin system for the hostel engine.
// Plugins can hook into lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"

	"github.com/jitheshjr/hostel/attendance"
	"github.com/jitheshjr/hostel/bill"
	"github.com/jitheshjr/hostel/student"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. engine is the *hostel.Engine.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Roster hooks
// ──────────────────────────────────────────────────

// OnStudentAdded is called after a student is stored.
type OnStudentAdded interface {
	Plugin
	OnStudentAdded(ctx context.Context, s *student.Student) error
}

// OnStudentArchived is called after a student leaves the roster.
type OnStudentArchived interface {
	Plugin
	OnStudentArchived(ctx context.Context, studentID string) error
}

// ──────────────────────────────────────────────────
// Attendance hooks
// ──────────────────────────────────────────────────

// OnAttendanceMarked is called after a day's attendance is recorded.
type OnAttendanceMarked interface {
	Plugin
	OnAttendanceMarked(ctx context.Context, d *attendance.Date, absent int) error
}

// OnAttendanceDeleted is called after a recorded day is removed.
type OnAttendanceDeleted interface {
	Plugin
	OnAttendanceDeleted(ctx context.Context, dateID string) error
}

// ──────────────────────────────────────────────────
// Billing hooks
// ──────────────────────────────────────────────────

// OnBillGenerated is called after a mess bill and all its rows are stored.
type OnBillGenerated interface {
	Plugin
	OnBillGenerated(ctx context.Context, b *bill.MessBill, elapsed time.Duration) error
}

// OnBillRejected is called when bill generation fails.
type OnBillRejected interface {
	Plugin
	OnBillRejected(ctx context.Context, month time.Month, year int, err error) error
}

// OnBillDeleted is called after a mess bill is removed.
type OnBillDeleted interface {
	Plugin
	OnBillDeleted(ctx context.Context, billID string) error
}

// OnStreakDetected is called for each stored continuous-absence record.
type OnStreakDetected interface {
	Plugin
	OnStreakDetected(ctx context.Context, ca *bill.ContinuousAbsence) error
}
