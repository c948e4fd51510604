package attendance

import (
	"context"
	"time"

	"github.com/jitheshjr/hostel/id"
)

type Store interface {
	// CreateDate stores the day and its absence facts together. It fails when
	// the calendar day is already recorded.
	CreateDate(ctx context.Context, d *Date, absent []*Attendance) error
	Exists(ctx context.Context, day time.Time) (bool, error)
	GetDate(ctx context.Context, dateID id.AttendanceDateID) (*Date, error)
	GetDateByDay(ctx context.Context, day time.Time) (*Date, error)
	ListDates(ctx context.Context, opts ListOpts) ([]*Date, error)
	ListAbsentees(ctx context.Context, dateID id.AttendanceDateID) ([]*Attendance, error)
	ListStudentAbsences(ctx context.Context, studentID id.StudentID) ([]*Attendance, error)
	// AbsencesInRange returns facts with start <= date <= end ordered by
	// student then date.
	AbsencesInRange(ctx context.Context, start, end time.Time) ([]Absence, error)
	DeleteDate(ctx context.Context, dateID id.AttendanceDateID) error
}

// ListOpts filters recorded days. Zero Month or Year matches any.
type ListOpts struct {
	Month  time.Month
	Year   int
	Limit  int
	Offset int
}
