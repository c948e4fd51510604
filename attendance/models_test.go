package attendance_test

import (
	"testing"
	"time"

	"github.com/jitheshjr/hostel/attendance"
	"github.com/jitheshjr/hostel/types"
)

func TestSummarize(t *testing.T) {
	day := types.Date(2024, time.March, 1)

	tests := []struct {
		name                string
		total, absent       int
		present, wantAbsent int
		percentage          float64
	}{
		{"all present", 40, 0, 40, 0, 100},
		{"quarter absent", 4, 1, 3, 1, 75},
		{"no roster", 0, 0, 0, 0, 0},
		{"absent exceeds roster", 2, 5, 0, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := attendance.Summarize(day, tt.total, tt.absent)
			if s.Present != tt.present || s.Absent != tt.wantAbsent || s.Percentage != tt.percentage {
				t.Errorf("got %+v", s)
			}
		})
	}
}

func TestNewDate(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	d := attendance.NewDate(time.Date(2024, time.February, 29, 22, 0, 0, 0, ist))

	if !d.Date.Equal(types.Date(2024, time.February, 29)) {
		t.Errorf("Date: got %v", d.Date)
	}
	if d.Month != time.February || d.Year != 2024 {
		t.Errorf("derived period: got %s %d", d.Month, d.Year)
	}
	if d.ID.IsNil() {
		t.Error("expected an id")
	}
}
