// Package attendance defines the append-only attendance ledger: one Date per
// calendar day on which attendance was taken and one Attendance fact per
// student absent that day.
package attendance

import (
	"time"

	"github.com/jitheshjr/hostel/id"
	"github.com/jitheshjr/hostel/types"
)

// Date is a calendar day on which attendance was recorded.
type Date struct {
	types.Entity
	ID    id.AttendanceDateID `json:"id"`
	Date  time.Time           `json:"date"`
	Month time.Month          `json:"month"`
	Year  int                 `json:"year"`
}

// NewDate builds a Date for the given calendar day.
func NewDate(day time.Time) *Date {
	d := types.Day(day)
	return &Date{
		Entity: types.NewEntity(),
		ID:     id.NewAttendanceDateID(),
		Date:   d,
		Month:  d.Month(),
		Year:   d.Year(),
	}
}

// Attendance is the fact "student was absent on date".
type Attendance struct {
	types.Entity
	ID        id.AttendanceID     `json:"id"`
	DateID    id.AttendanceDateID `json:"date_id"`
	StudentID id.StudentID        `json:"student_id"`
	Date      time.Time           `json:"date"`
}

// Absence is an absence fact joined with the student's stipend flag, as read
// by the streak detector.
type Absence struct {
	AttendanceID id.AttendanceID `json:"attendance_id"`
	StudentID    id.StudentID    `json:"student_id"`
	Date         time.Time       `json:"date"`
	EGrantz      bool            `json:"e_grantz"`
}

// Summary is the present/absent breakdown for one recorded day.
type Summary struct {
	Date       time.Time `json:"date"`
	Total      int       `json:"total"`
	Present    int       `json:"present"`
	Absent     int       `json:"absent"`
	Percentage float64   `json:"percentage"`
}

// Summarize computes the attendance percentage for a day.
func Summarize(date time.Time, total, absent int) Summary {
	s := Summary{Date: types.Day(date), Total: total, Absent: absent}
	if absent > total {
		s.Absent = total
	}
	s.Present = total - s.Absent
	if total > 0 {
		s.Percentage = float64(s.Present) / float64(total) * 100
	}
	return s
}
