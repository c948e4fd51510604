package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/go-utils/metrics"

	"github.com/jitheshjr/hostel/attendance"
	"github.com/jitheshjr/hostel/bill"
	"github.com/jitheshjr/hostel/student"
	"github.com/jitheshjr/hostel/types"
)

func value(t *testing.T, r metrics.MetricRepository, name string) Sample {
	t.Helper()
	for _, s := range Snapshot(r) {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("metric %q not registered", name)
	return Sample{}
}

func TestMetricsExtension(t *testing.T) {
	ctx := context.Background()
	reg := metrics.NewMetricsCollector("hostel")
	m := NewMetricsExtension(reg)

	_ = m.OnStudentAdded(ctx, &student.Student{})
	_ = m.OnStudentAdded(ctx, &student.Student{})
	_ = m.OnStudentArchived(ctx, "stu_x")
	_ = m.OnAttendanceMarked(ctx, attendance.NewDate(types.Date(2024, time.March, 1)), 3)
	_ = m.OnAttendanceMarked(ctx, attendance.NewDate(types.Date(2024, time.March, 2)), 1)
	_ = m.OnBillGenerated(ctx, &bill.MessBill{Total: types.Rupees(8500)}, 40*time.Millisecond)
	_ = m.OnBillRejected(ctx, time.March, 2024, errors.New("gap"))
	_ = m.OnStreakDetected(ctx, &bill.ContinuousAbsence{Days: 5})

	tests := []struct {
		name  string
		value float64
		count uint64
	}{
		{"hostel.student.added", 2, 0},
		{"hostel.student.archived", 1, 0},
		{"hostel.attendance.marked", 2, 0},
		{"hostel.attendance.absent", 4, 2},
		{"hostel.bill.generated", 1, 0},
		{"hostel.bill.rejected", 1, 0},
		{"hostel.bill.total_rupees", 8500, 1},
		{"hostel.bill.latency_ms", 40, 1},
		{"hostel.streak.days", 5, 1},
		{"hostel.bill.deleted", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := value(t, reg, tt.name)
			if got.Value != tt.value || got.Count != tt.count {
				t.Errorf("got value=%v count=%d, want %v/%d", got.Value, got.Count, tt.value, tt.count)
			}
		})
	}

	absent := value(t, reg, "hostel.attendance.absent")
	if absent.Min != 1 || absent.Max != 3 {
		t.Errorf("absent min/max: got %v/%v", absent.Min, absent.Max)
	}
}

func TestSnapshotKinds(t *testing.T) {
	reg := metrics.NewMetricsCollector("hostel")
	reg.Counter("a").Inc()
	reg.Counter("a").Add(2)
	reg.Histogram("b").Observe(4)

	got := Snapshot(reg)
	if len(got) != 2 {
		t.Fatalf("snapshot size: got %d, want 2", len(got))
	}
	if got[0].Name != "a" || got[0].Kind != "counter" || got[0].Value != 3 {
		t.Errorf("counter: got %+v", got[0])
	}
	if got[1].Name != "b" || got[1].Kind != "histogram" || got[1].Count != 1 {
		t.Errorf("histogram: got %+v", got[1])
	}
}
