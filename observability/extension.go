// Package observability provides a metrics extension for the hostel engine
// that records lifecycle event counts through a go-utils MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/go-utils/metrics"

	"github.com/jitheshjr/hostel/attendance"
	"github.com/jitheshjr/hostel/bill"
	"github.com/jitheshjr/hostel/plugin"
	"github.com/jitheshjr/hostel/student"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnInit              = (*MetricsExtension)(nil)
	_ plugin.OnStudentAdded      = (*MetricsExtension)(nil)
	_ plugin.OnStudentArchived   = (*MetricsExtension)(nil)
	_ plugin.OnAttendanceMarked  = (*MetricsExtension)(nil)
	_ plugin.OnAttendanceDeleted = (*MetricsExtension)(nil)
	_ plugin.OnBillGenerated     = (*MetricsExtension)(nil)
	_ plugin.OnBillRejected      = (*MetricsExtension)(nil)
	_ plugin.OnBillDeleted       = (*MetricsExtension)(nil)
	_ plugin.OnStreakDetected    = (*MetricsExtension)(nil)
)

// Counter and Histogram are the metric kinds the extension records.
type (
	Counter   = metrics.Counter
	Histogram = metrics.Histogram
)

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an engine plugin to track roster and billing activity.
type MetricsExtension struct {
	factory metrics.MetricFactory

	// Roster metrics
	StudentAdded    Counter
	StudentArchived Counter

	// Attendance metrics
	AttendanceMarked  Counter
	AttendanceDeleted Counter
	AbsentPerDay      Histogram

	// Billing metrics
	BillGenerated   Counter
	BillRejected    Counter
	BillDeleted     Counter
	BillLatency     Histogram
	BillTotal       Histogram
	StreaksDetected Counter
	StreakDays      Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided factory,
// typically metrics.NewMetricsCollector.
func NewMetricsExtension(factory metrics.MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		StudentAdded:    factory.Counter("hostel.student.added"),
		StudentArchived: factory.Counter("hostel.student.archived"),

		AttendanceMarked:  factory.Counter("hostel.attendance.marked"),
		AttendanceDeleted: factory.Counter("hostel.attendance.deleted"),
		AbsentPerDay:      factory.Histogram("hostel.attendance.absent"),

		BillGenerated:   factory.Counter("hostel.bill.generated"),
		BillRejected:    factory.Counter("hostel.bill.rejected"),
		BillDeleted:     factory.Counter("hostel.bill.deleted"),
		BillLatency:     factory.Histogram("hostel.bill.latency_ms"),
		BillTotal:       factory.Histogram("hostel.bill.total_rupees"),
		StreaksDetected: factory.Counter("hostel.streak.detected"),
		StreakDays:      factory.Histogram("hostel.streak.days"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Roster hooks
// ──────────────────────────────────────────────────

// OnStudentAdded implements plugin.OnStudentAdded.
func (m *MetricsExtension) OnStudentAdded(_ context.Context, _ *student.Student) error {
	m.StudentAdded.Inc()
	return nil
}

// OnStudentArchived implements plugin.OnStudentArchived.
func (m *MetricsExtension) OnStudentArchived(_ context.Context, _ string) error {
	m.StudentArchived.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Attendance hooks
// ──────────────────────────────────────────────────

// OnAttendanceMarked implements plugin.OnAttendanceMarked.
func (m *MetricsExtension) OnAttendanceMarked(_ context.Context, _ *attendance.Date, absent int) error {
	m.AttendanceMarked.Inc()
	m.AbsentPerDay.Observe(float64(absent))
	return nil
}

// OnAttendanceDeleted implements plugin.OnAttendanceDeleted.
func (m *MetricsExtension) OnAttendanceDeleted(_ context.Context, _ string) error {
	m.AttendanceDeleted.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Billing hooks
// ──────────────────────────────────────────────────

// OnBillGenerated implements plugin.OnBillGenerated.
func (m *MetricsExtension) OnBillGenerated(_ context.Context, b *bill.MessBill, elapsed time.Duration) error {
	m.BillGenerated.Inc()
	m.BillLatency.Observe(float64(elapsed.Milliseconds()))
	m.BillTotal.Observe(b.Total.Decimal().InexactFloat64())
	return nil
}

// OnBillRejected implements plugin.OnBillRejected.
func (m *MetricsExtension) OnBillRejected(_ context.Context, _ time.Month, _ int, _ error) error {
	m.BillRejected.Inc()
	return nil
}

// OnBillDeleted implements plugin.OnBillDeleted.
func (m *MetricsExtension) OnBillDeleted(_ context.Context, _ string) error {
	m.BillDeleted.Inc()
	return nil
}

// OnStreakDetected implements plugin.OnStreakDetected.
func (m *MetricsExtension) OnStreakDetected(_ context.Context, ca *bill.ContinuousAbsence) error {
	m.StreaksDetected.Inc()
	m.StreakDays.Observe(float64(ca.Days))
	return nil
}
