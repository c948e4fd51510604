// Package store declares the unified persistence interface for the hostel
// engine. Backends live in sub-packages: memory, bolt, postgres, sqlite and
// mongo.
package store

import (
	"context"
	"time"

	"github.com/jitheshjr/hostel/attendance"
	"github.com/jitheshjr/hostel/bill"
	"github.com/jitheshjr/hostel/id"
	"github.com/jitheshjr/hostel/student"
)

// Store is the unified storage interface for all hostel records.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Student methods
	CreateStudent(ctx context.Context, s *student.Student) error
	GetStudent(ctx context.Context, studentID id.StudentID) (*student.Student, error)
	ListStudents(ctx context.Context, opts student.ListOpts) ([]*student.Student, error)
	CountStudents(ctx context.Context) (int, error)
	ArchiveStudent(ctx context.Context, studentID id.StudentID, at time.Time) error

	// Attendance methods
	CreateAttendanceDate(ctx context.Context, d *attendance.Date, absent []*attendance.Attendance) error
	AttendanceExists(ctx context.Context, day time.Time) (bool, error)
	GetAttendanceDate(ctx context.Context, dateID id.AttendanceDateID) (*attendance.Date, error)
	GetAttendanceDateByDay(ctx context.Context, day time.Time) (*attendance.Date, error)
	ListAttendanceDates(ctx context.Context, opts attendance.ListOpts) ([]*attendance.Date, error)
	ListAbsentees(ctx context.Context, dateID id.AttendanceDateID) ([]*attendance.Attendance, error)
	ListStudentAbsences(ctx context.Context, studentID id.StudentID) ([]*attendance.Attendance, error)
	AbsencesInRange(ctx context.Context, start, end time.Time) ([]attendance.Absence, error)
	DeleteAttendanceDate(ctx context.Context, dateID id.AttendanceDateID) error

	// Bill methods
	MessBillExists(ctx context.Context, month time.Month, year int) (bool, error)
	CreateMessBill(ctx context.Context, b *bill.MessBill) error
	GetMessBill(ctx context.Context, billID id.MessBillID) (*bill.MessBill, error)
	GetMessBillByPeriod(ctx context.Context, month time.Month, year int) (*bill.MessBill, error)
	ListMessBills(ctx context.Context, opts bill.ListOpts) ([]*bill.MessBill, error)
	DeleteMessBill(ctx context.Context, billID id.MessBillID) error
	CreateStudentBill(ctx context.Context, sb *bill.StudentBill) error
	ListStudentBills(ctx context.Context, billID id.MessBillID) ([]*bill.StudentBill, error)
	CreateStreak(ctx context.Context, ca *bill.ContinuousAbsence) error
	ListStreaks(ctx context.Context, billID id.MessBillID) ([]*bill.ContinuousAbsence, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
