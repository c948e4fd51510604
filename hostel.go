package hostel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jitheshjr/hostel/allocation"
	"github.com/jitheshjr/hostel/attendance"
	"github.com/jitheshjr/hostel/bill"
	"github.com/jitheshjr/hostel/id"
	"github.com/jitheshjr/hostel/plugin"
	"github.com/jitheshjr/hostel/store"
	"github.com/jitheshjr/hostel/streak"
	"github.com/jitheshjr/hostel/student"
	"github.com/jitheshjr/hostel/types"
)

// Engine is the hostel billing engine. It owns the roster, the attendance
// ledger and the monthly mess bills kept in a store.Store.
type Engine struct {
	store     store.Store
	plugins   *plugin.Registry
	logger    *slog.Logger
	generator *Generator

	// Configuration
	minStreakDays int
	supplement    decimal.Decimal
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:         s,
		plugins:       plugin.NewRegistry(),
		logger:        slog.Default(),
		minStreakDays: streak.MinRun,
		supplement:    allocation.DefaultStipendSupplement,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.generator = NewGenerator(s, s, s)
	e.generator.Detector = streak.New(streak.WithMinRun(e.minStreakDays))
	e.generator.Supplement = e.supplement
	e.generator.Logger = e.logger

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithMinStreakDays sets the shortest absence run that reduces mess days.
func WithMinStreakDays(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.minStreakDays = n
		}
	}
}

// WithStipendSupplement sets the flat amount, in rupees, added to an E-Grantz
// student's share.
func WithStipendSupplement(d decimal.Decimal) Option {
	return func(e *Engine) {
		if !d.IsNegative() {
			e.supplement = d
		}
	}
}

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("hostel engine started",
		"min_streak_days", e.minStreakDays,
		"stipend_supplement", e.supplement.String(),
		"plugins", e.plugins.Count(),
	)
	return nil
}

// Stop shuts down plugins and closes the store.
func (e *Engine) Stop() error {
	e.plugins.EmitShutdown(context.Background())
	return e.store.Close()
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Generator returns the bill generator used by GenerateBill.
func (e *Engine) Generator() *Generator { return e.generator }

// ──────────────────────────────────────────────────
// Student Management
// ──────────────────────────────────────────────────

// AddStudent adds a resident to the active roster.
func (e *Engine) AddStudent(ctx context.Context, s *student.Student) error {
	s.AdmissionNo = strings.TrimSpace(s.AdmissionNo)
	s.Name = strings.TrimSpace(s.Name)
	if s.AdmissionNo == "" {
		return ValidationError{Field: "admission_no", Message: "required"}
	}
	if s.Name == "" {
		return ValidationError{Field: "name", Message: "required"}
	}

	if s.ID.IsNil() {
		s.ID = id.NewStudentID()
	}
	s.Entity = types.NewEntity()
	s.Status = student.StatusActive
	s.ExitedAt = nil
	if s.JoinedAt.IsZero() {
		s.JoinedAt = types.Day(s.CreatedAt)
	}

	if err := e.store.CreateStudent(ctx, s); err != nil {
		return err
	}

	e.plugins.EmitStudentAdded(ctx, s)
	return nil
}

// GetStudent retrieves a student by ID.
func (e *Engine) GetStudent(ctx context.Context, studentID id.StudentID) (*student.Student, error) {
	return e.store.GetStudent(ctx, studentID)
}

// ListStudents lists students, optionally filtered by status.
func (e *Engine) ListStudents(ctx context.Context, opts student.ListOpts) ([]*student.Student, error) {
	return e.store.ListStudents(ctx, opts)
}

// ArchiveStudent removes a student from the roster. Their attendance and
// bills are kept.
func (e *Engine) ArchiveStudent(ctx context.Context, studentID id.StudentID) error {
	s, err := e.store.GetStudent(ctx, studentID)
	if err != nil {
		return err
	}
	if !s.IsActive() {
		return ErrStudentArchived
	}

	if err := e.store.ArchiveStudent(ctx, studentID, time.Now().UTC()); err != nil {
		return err
	}

	e.plugins.EmitStudentArchived(ctx, studentID.String())
	return nil
}

// ──────────────────────────────────────────────────
// Attendance
// ──────────────────────────────────────────────────

// MarkAttendance records the day's attendance. Students not listed as absent
// are present. Each calendar day can be recorded once.
func (e *Engine) MarkAttendance(ctx context.Context, day time.Time, absent []id.StudentID) (*attendance.Date, error) {
	if day.IsZero() {
		return nil, ValidationError{Field: "date", Message: "required"}
	}
	day = types.Day(day)

	exists, err := e.store.AttendanceExists(ctx, day)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAttendanceAlreadyRecorded
	}

	d := attendance.NewDate(day)
	seen := make(map[string]struct{}, len(absent))
	rows := make([]*attendance.Attendance, 0, len(absent))
	for _, sid := range absent {
		if _, dup := seen[sid.String()]; dup {
			continue
		}
		seen[sid.String()] = struct{}{}

		s, err := e.store.GetStudent(ctx, sid)
		if err != nil {
			return nil, err
		}
		if !s.IsActive() {
			return nil, fmt.Errorf("%w: %s", ErrStudentArchived, sid)
		}
		rows = append(rows, &attendance.Attendance{
			Entity:    types.NewEntity(),
			ID:        id.NewAttendanceID(),
			DateID:    d.ID,
			StudentID: sid,
			Date:      d.Date,
		})
	}

	if err := e.store.CreateAttendanceDate(ctx, d, rows); err != nil {
		return nil, err
	}

	e.plugins.EmitAttendanceMarked(ctx, d, len(rows))
	return d, nil
}

// GetAttendance returns a recorded day and the students absent on it.
func (e *Engine) GetAttendance(ctx context.Context, dateID id.AttendanceDateID) (*attendance.Date, []*attendance.Attendance, error) {
	d, err := e.store.GetAttendanceDate(ctx, dateID)
	if err != nil {
		return nil, nil, err
	}
	absent, err := e.store.ListAbsentees(ctx, dateID)
	if err != nil {
		return nil, nil, err
	}
	return d, absent, nil
}

// ListAttendanceDates lists recorded days, optionally for one month.
func (e *Engine) ListAttendanceDates(ctx context.Context, opts attendance.ListOpts) ([]*attendance.Date, error) {
	return e.store.ListAttendanceDates(ctx, opts)
}

// DeleteAttendance removes a recorded day and its absence facts.
func (e *Engine) DeleteAttendance(ctx context.Context, dateID id.AttendanceDateID) error {
	if err := e.store.DeleteAttendanceDate(ctx, dateID); err != nil {
		return err
	}

	e.plugins.EmitAttendanceDeleted(ctx, dateID.String())
	return nil
}

// StudentAbsences lists a student's absence facts in date order.
func (e *Engine) StudentAbsences(ctx context.Context, studentID id.StudentID) ([]*attendance.Attendance, error) {
	if _, err := e.store.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	return e.store.ListStudentAbsences(ctx, studentID)
}

// AttendanceSummary returns the present/absent breakdown for a recorded day,
// measured against the current active roster.
func (e *Engine) AttendanceSummary(ctx context.Context, day time.Time) (attendance.Summary, error) {
	d, err := e.store.GetAttendanceDateByDay(ctx, day)
	if err != nil {
		return attendance.Summary{}, err
	}
	absent, err := e.store.ListAbsentees(ctx, d.ID)
	if err != nil {
		return attendance.Summary{}, err
	}
	total, err := e.store.CountStudents(ctx)
	if err != nil {
		return attendance.Summary{}, err
	}
	return attendance.Summarize(d.Date, total, len(absent)), nil
}

// ──────────────────────────────────────────────────
// Mess Bills
// ──────────────────────────────────────────────────

// GenerateBill generates and stores the mess bill for a period.
func (e *Engine) GenerateBill(ctx context.Context, req Request) (*bill.MessBill, error) {
	started := time.Now()
	start := types.Day(req.PeriodStart)

	out, err := e.generator.generate(ctx, req)
	if err != nil {
		e.logger.Warn("bill rejected",
			"month", start.Month(),
			"year", start.Year(),
			"error", err,
		)
		e.plugins.EmitBillRejected(ctx, start.Month(), start.Year(), err)
		return nil, err
	}

	elapsed := time.Since(started)
	b := out.Bill
	e.logger.Info("bill generated",
		"bill_id", b.ID.String(),
		"month", b.Month,
		"year", b.Year,
		"headcount", b.Headcount,
		"reduction_days", b.ReductionDays,
		"total", b.Total.String(),
		"elapsed", elapsed,
	)

	for _, ca := range out.Streaks {
		e.plugins.EmitStreakDetected(ctx, ca)
	}
	e.plugins.EmitBillGenerated(ctx, b, elapsed)
	return b, nil
}

// GetBill retrieves the mess bill for a month.
func (e *Engine) GetBill(ctx context.Context, month time.Month, year int) (*bill.MessBill, error) {
	return e.store.GetMessBillByPeriod(ctx, month, year)
}

// GetBillByID retrieves a mess bill by ID.
func (e *Engine) GetBillByID(ctx context.Context, billID id.MessBillID) (*bill.MessBill, error) {
	return e.store.GetMessBill(ctx, billID)
}

// ListBills lists mess bills, newest period first.
func (e *Engine) ListBills(ctx context.Context, opts bill.ListOpts) ([]*bill.MessBill, error) {
	return e.store.ListMessBills(ctx, opts)
}

// StudentBills returns a bill's rows split into E-Grantz and regular students.
func (e *Engine) StudentBills(ctx context.Context, billID id.MessBillID) (egrantz, regular []*bill.StudentBill, err error) {
	if _, err := e.store.GetMessBill(ctx, billID); err != nil {
		return nil, nil, err
	}
	rows, err := e.store.ListStudentBills(ctx, billID)
	if err != nil {
		return nil, nil, err
	}
	egrantz, regular = bill.Split(rows)
	return egrantz, regular, nil
}

// Streaks returns the continuous-absence records behind a bill's reductions.
func (e *Engine) Streaks(ctx context.Context, billID id.MessBillID) ([]*bill.ContinuousAbsence, error) {
	if _, err := e.store.GetMessBill(ctx, billID); err != nil {
		return nil, err
	}
	return e.store.ListStreaks(ctx, billID)
}

// DeleteBill removes a mess bill with its student bills and streaks, so the
// period can be generated again.
func (e *Engine) DeleteBill(ctx context.Context, billID id.MessBillID) error {
	if err := e.store.DeleteMessBill(ctx, billID); err != nil {
		return err
	}

	e.plugins.EmitBillDeleted(ctx, billID.String())
	return nil
}
