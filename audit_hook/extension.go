// Package audithook bridges hostel lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on any
// particular audit store. Callers inject a RecorderFunc adapter at wiring time,
// or use LogRecorder to write the trail through slog.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jitheshjr/hostel/attendance"
	"github.com/jitheshjr/hostel/bill"
	"github.com/jitheshjr/hostel/plugin"
	"github.com/jitheshjr/hostel/student"
	"github.com/jitheshjr/hostel/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnStudentAdded      = (*Extension)(nil)
	_ plugin.OnStudentArchived   = (*Extension)(nil)
	_ plugin.OnAttendanceMarked  = (*Extension)(nil)
	_ plugin.OnAttendanceDeleted = (*Extension)(nil)
	_ plugin.OnBillGenerated     = (*Extension)(nil)
	_ plugin.OnBillRejected      = (*Extension)(nil)
	_ plugin.OnBillDeleted       = (*Extension)(nil)
	_ plugin.OnStreakDetected    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a single entry in the audit trail.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// LogRecorder writes every audit event as a structured log line.
func LogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, evt *AuditEvent) error {
		level := slog.LevelInfo
		if evt.Severity != SeverityInfo {
			level = slog.LevelWarn
		}
		logger.LogAttrs(ctx, level, "audit",
			slog.String("action", evt.Action),
			slog.String("resource", evt.Resource),
			slog.String("resource_id", evt.ResourceID),
			slog.String("category", evt.Category),
			slog.String("outcome", evt.Outcome),
			slog.Any("metadata", evt.Metadata),
		)
		return nil
	})
}

// Extension bridges hostel lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Roster hooks
// ──────────────────────────────────────────────────

// OnStudentAdded implements plugin.OnStudentAdded.
func (e *Extension) OnStudentAdded(ctx context.Context, s *student.Student) error {
	return e.record(ctx, ActionStudentAdded, SeverityInfo, OutcomeSuccess,
		ResourceStudent, s.ID.String(), CategoryRoster, nil,
		"admission_no", s.AdmissionNo,
		"e_grantz", s.EGrantz,
	)
}

// OnStudentArchived implements plugin.OnStudentArchived.
func (e *Extension) OnStudentArchived(ctx context.Context, studentID string) error {
	return e.record(ctx, ActionStudentArchived, SeverityInfo, OutcomeSuccess,
		ResourceStudent, studentID, CategoryRoster, nil,
	)
}

// ──────────────────────────────────────────────────
// Attendance hooks
// ──────────────────────────────────────────────────

// OnAttendanceMarked implements plugin.OnAttendanceMarked.
func (e *Extension) OnAttendanceMarked(ctx context.Context, d *attendance.Date, absent int) error {
	return e.record(ctx, ActionAttendanceMarked, SeverityInfo, OutcomeSuccess,
		ResourceAttendance, d.ID.String(), CategoryAttendance, nil,
		"date", d.Date.Format(types.DateLayout),
		"absent", absent,
	)
}

// OnAttendanceDeleted implements plugin.OnAttendanceDeleted. Removing a day
// changes what later bills see, so it is audited as a warning.
func (e *Extension) OnAttendanceDeleted(ctx context.Context, dateID string) error {
	return e.record(ctx, ActionAttendanceDeleted, SeverityWarning, OutcomeSuccess,
		ResourceAttendance, dateID, CategoryAttendance, nil,
	)
}

// ──────────────────────────────────────────────────
// Billing hooks
// ──────────────────────────────────────────────────

// OnBillGenerated implements plugin.OnBillGenerated.
func (e *Extension) OnBillGenerated(ctx context.Context, b *bill.MessBill, elapsed time.Duration) error {
	return e.record(ctx, ActionBillGenerated, SeverityInfo, OutcomeSuccess,
		ResourceBill, b.ID.String(), CategoryBilling, nil,
		"period", fmt.Sprintf("%d-%02d", b.Year, int(b.Month)),
		"headcount", b.Headcount,
		"chargeable_days", b.ChargeableDays,
		"total", b.Total.String(),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnBillRejected implements plugin.OnBillRejected.
func (e *Extension) OnBillRejected(ctx context.Context, month time.Month, year int, err error) error {
	return e.record(ctx, ActionBillRejected, SeverityError, OutcomeFailure,
		ResourceBill, "", CategoryBilling, err,
		"period", fmt.Sprintf("%d-%02d", year, int(month)),
	)
}

// OnBillDeleted implements plugin.OnBillDeleted.
func (e *Extension) OnBillDeleted(ctx context.Context, billID string) error {
	return e.record(ctx, ActionBillDeleted, SeverityWarning, OutcomeSuccess,
		ResourceBill, billID, CategoryBilling, nil,
	)
}

// OnStreakDetected implements plugin.OnStreakDetected.
func (e *Extension) OnStreakDetected(ctx context.Context, ca *bill.ContinuousAbsence) error {
	return e.record(ctx, ActionStreakDetected, SeverityInfo, OutcomeSuccess,
		ResourceStreak, ca.ID.String(), CategoryBilling, nil,
		"student_id", ca.StudentID.String(),
		"bill_id", ca.BillID.String(),
		"days", ca.Days,
		"runs", len(ca.Runs),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
