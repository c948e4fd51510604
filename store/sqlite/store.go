package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/jitheshjr/hostel"
	"github.com/jitheshjr/hostel/attendance"
	"github.com/jitheshjr/hostel/bill"
	"github.com/jitheshjr/hostel/id"
	hostelstore "github.com/jitheshjr/hostel/store"
	"github.com/jitheshjr/hostel/student"
)

// compile-time interface check
var _ hostelstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM. Foreign keys are
// not declared, so ownership and cascades are enforced here.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("hostel/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("hostel/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Student Store ====================

func (s *Store) CreateStudent(ctx context.Context, st *student.Student) error {
	_, err := s.sdb.NewInsert(toStudentModel(st)).Exec(ctx)
	if isUniqueViolation(err) {
		return hostel.ErrAlreadyExists
	}
	return wrap("create student", err)
}

func (s *Store) GetStudent(ctx context.Context, studentID id.StudentID) (*student.Student, error) {
	m := new(studentModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", studentID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hostel.ErrStudentNotFound
		}
		return nil, wrap("get student", err)
	}
	return fromStudentModel(m)
}

func (s *Store) ListStudents(ctx context.Context, opts student.ListOpts) ([]*student.Student, error) {
	var models []studentModel
	q := s.sdb.NewSelect(&models)
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, wrap("list students", err)
	}

	result := make([]*student.Student, len(models))
	for i := range models {
		st, err := fromStudentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = st
	}
	return result, nil
}

func (s *Store) CountStudents(ctx context.Context) (int, error) {
	var total int64
	err := s.sdb.NewRaw(`SELECT COUNT(*) FROM hostel_students WHERE status = ?`,
		string(student.StatusActive)).Scan(ctx, &total)
	if err != nil {
		return 0, wrap("count students", err)
	}
	return int(total), nil
}

func (s *Store) ArchiveStudent(ctx context.Context, studentID id.StudentID, at time.Time) error {
	res, err := s.sdb.NewUpdate((*studentModel)(nil)).
		Set("status = ?", string(student.StatusArchived)).
		Set("exited_at = ?", at).
		Set("updated_at = ?", now()).
		Where("id = ?", studentID.String()).
		Exec(ctx)
	if err != nil {
		return wrap("archive student", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hostel.ErrStudentNotFound
	}
	return nil
}

// ==================== Attendance Store ====================

// CreateAttendanceDate inserts the day and then its absence rows. If the rows
// fail the day and any rows already written are deleted again.
func (s *Store) CreateAttendanceDate(ctx context.Context, d *attendance.Date, absent []*attendance.Attendance) error {
	_, err := s.sdb.NewInsert(toAttendanceDateModel(d)).Exec(ctx)
	if isUniqueViolation(err) {
		return hostel.ErrAttendanceAlreadyRecorded
	}
	if err != nil {
		return wrap("create attendance date", err)
	}
	if len(absent) == 0 {
		return nil
	}

	models := make([]attendanceModel, len(absent))
	for i, a := range absent {
		models[i] = toAttendanceModel(a)
	}
	if _, err := s.sdb.NewInsert(&models).Exec(ctx); err != nil {
		_ = s.deleteDate(context.WithoutCancel(ctx), d.ID.String()) //nolint:errcheck // best-effort rollback
		if isUniqueViolation(err) {
			return hostel.ErrAlreadyExists
		}
		return wrap("create attendances", err)
	}
	return nil
}

func (s *Store) AttendanceExists(ctx context.Context, day time.Time) (bool, error) {
	var total int64
	err := s.sdb.NewRaw(`SELECT COUNT(*) FROM hostel_attendance_dates WHERE date = ?`,
		dayText(day)).Scan(ctx, &total)
	if err != nil {
		return false, wrap("attendance exists", err)
	}
	return total > 0, nil
}

func (s *Store) GetAttendanceDate(ctx context.Context, dateID id.AttendanceDateID) (*attendance.Date, error) {
	m := new(attendanceDateModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", dateID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hostel.ErrAttendanceNotFound
		}
		return nil, wrap("get attendance date", err)
	}
	return fromAttendanceDateModel(m)
}

func (s *Store) GetAttendanceDateByDay(ctx context.Context, day time.Time) (*attendance.Date, error) {
	m := new(attendanceDateModel)
	err := s.sdb.NewSelect(m).
		Where("date = ?", dayText(day)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hostel.ErrAttendanceNotFound
		}
		return nil, wrap("get attendance date by day", err)
	}
	return fromAttendanceDateModel(m)
}

func (s *Store) ListAttendanceDates(ctx context.Context, opts attendance.ListOpts) ([]*attendance.Date, error) {
	var models []attendanceDateModel
	q := s.sdb.NewSelect(&models)
	if opts.Month != 0 {
		q = q.Where("month = ?", int(opts.Month))
	}
	if opts.Year != 0 {
		q = q.Where("year = ?", opts.Year)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("date ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, wrap("list attendance dates", err)
	}

	result := make([]*attendance.Date, len(models))
	for i := range models {
		d, err := fromAttendanceDateModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = d
	}
	return result, nil
}

func (s *Store) ListAbsentees(ctx context.Context, dateID id.AttendanceDateID) ([]*attendance.Attendance, error) {
	if _, err := s.GetAttendanceDate(ctx, dateID); err != nil {
		return nil, err
	}

	var models []attendanceModel
	err := s.sdb.NewSelect(&models).
		Where("date_id = ?", dateID.String()).
		OrderExpr("student_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("list absentees", err)
	}
	return fromAttendanceModels(models)
}

func (s *Store) ListStudentAbsences(ctx context.Context, studentID id.StudentID) ([]*attendance.Attendance, error) {
	var models []attendanceModel
	err := s.sdb.NewSelect(&models).
		Where("student_id = ?", studentID.String()).
		OrderExpr("date ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("list student absences", err)
	}
	return fromAttendanceModels(models)
}

func (s *Store) AbsencesInRange(ctx context.Context, start, end time.Time) ([]attendance.Absence, error) {
	var models []attendanceModel
	err := s.sdb.NewSelect(&models).
		Where("date >= ?", dayText(start)).
		Where("date <= ?", dayText(end)).
		OrderExpr("student_id ASC, date ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("absences in range", err)
	}

	var holders []studentModel
	if err := s.sdb.NewSelect(&holders).Where("e_grantz = ?", true).Scan(ctx); err != nil {
		return nil, wrap("list e-grantz students", err)
	}
	egrantz := make(map[string]bool, len(holders))
	for _, h := range holders {
		egrantz[h.ID] = true
	}

	result := make([]attendance.Absence, 0, len(models))
	for i := range models {
		a, err := fromAttendanceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, attendance.Absence{
			AttendanceID: a.ID,
			StudentID:    a.StudentID,
			Date:         a.Date,
			EGrantz:      egrantz[models[i].StudentID],
		})
	}
	return result, nil
}

func (s *Store) DeleteAttendanceDate(ctx context.Context, dateID id.AttendanceDateID) error {
	if _, err := s.GetAttendanceDate(ctx, dateID); err != nil {
		return err
	}
	return s.deleteDate(ctx, dateID.String())
}

func (s *Store) deleteDate(ctx context.Context, dateID string) error {
	if _, err := s.sdb.NewDelete((*attendanceModel)(nil)).
		Where("date_id = ?", dateID).
		Exec(ctx); err != nil {
		return wrap("delete attendances", err)
	}
	if _, err := s.sdb.NewDelete((*attendanceDateModel)(nil)).
		Where("id = ?", dateID).
		Exec(ctx); err != nil {
		return wrap("delete attendance date", err)
	}
	return nil
}

// ==================== Bill Store ====================

func (s *Store) MessBillExists(ctx context.Context, month time.Month, year int) (bool, error) {
	var total int64
	err := s.sdb.NewRaw(`SELECT COUNT(*) FROM hostel_mess_bills WHERE month = ? AND year = ?`,
		int(month), year).Scan(ctx, &total)
	if err != nil {
		return false, wrap("mess bill exists", err)
	}
	return total > 0, nil
}

func (s *Store) CreateMessBill(ctx context.Context, b *bill.MessBill) error {
	_, err := s.sdb.NewInsert(toMessBillModel(b)).Exec(ctx)
	if isUniqueViolation(err) {
		return hostel.ErrDuplicateBillingPeriod
	}
	return wrap("create mess bill", err)
}

func (s *Store) GetMessBill(ctx context.Context, billID id.MessBillID) (*bill.MessBill, error) {
	m := new(messBillModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", billID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hostel.ErrBillNotFound
		}
		return nil, wrap("get mess bill", err)
	}
	return fromMessBillModel(m)
}

func (s *Store) GetMessBillByPeriod(ctx context.Context, month time.Month, year int) (*bill.MessBill, error) {
	m := new(messBillModel)
	err := s.sdb.NewSelect(m).
		Where("month = ?", int(month)).
		Where("year = ?", year).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, hostel.ErrBillNotFound
		}
		return nil, wrap("get mess bill by period", err)
	}
	return fromMessBillModel(m)
}

func (s *Store) ListMessBills(ctx context.Context, opts bill.ListOpts) ([]*bill.MessBill, error) {
	var models []messBillModel
	q := s.sdb.NewSelect(&models)
	if opts.Year != 0 {
		q = q.Where("year = ?", opts.Year)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("year DESC, month DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, wrap("list mess bills", err)
	}

	result := make([]*bill.MessBill, len(models))
	for i := range models {
		b, err := fromMessBillModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = b
	}
	return result, nil
}

// DeleteMessBill removes the bill's student bills and streaks before the bill.
func (s *Store) DeleteMessBill(ctx context.Context, billID id.MessBillID) error {
	if _, err := s.GetMessBill(ctx, billID); err != nil {
		return err
	}
	if _, err := s.sdb.NewDelete((*studentBillModel)(nil)).
		Where("bill_id = ?", billID.String()).
		Exec(ctx); err != nil {
		return wrap("delete student bills", err)
	}
	if _, err := s.sdb.NewDelete((*continuousAbsenceModel)(nil)).
		Where("bill_id = ?", billID.String()).
		Exec(ctx); err != nil {
		return wrap("delete continuous absences", err)
	}
	if _, err := s.sdb.NewDelete((*messBillModel)(nil)).
		Where("id = ?", billID.String()).
		Exec(ctx); err != nil {
		return wrap("delete mess bill", err)
	}
	return nil
}

func (s *Store) CreateStudentBill(ctx context.Context, sb *bill.StudentBill) error {
	if _, err := s.GetMessBill(ctx, sb.BillID); err != nil {
		return err
	}
	_, err := s.sdb.NewInsert(toStudentBillModel(sb)).Exec(ctx)
	if isUniqueViolation(err) {
		return hostel.ErrAlreadyExists
	}
	return wrap("create student bill", err)
}

func (s *Store) ListStudentBills(ctx context.Context, billID id.MessBillID) ([]*bill.StudentBill, error) {
	if _, err := s.GetMessBill(ctx, billID); err != nil {
		return nil, err
	}

	var models []studentBillModel
	err := s.sdb.NewSelect(&models).
		Where("bill_id = ?", billID.String()).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("list student bills", err)
	}

	result := make([]*bill.StudentBill, len(models))
	for i := range models {
		sb, err := fromStudentBillModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sb
	}
	return result, nil
}

func (s *Store) CreateStreak(ctx context.Context, ca *bill.ContinuousAbsence) error {
	if _, err := s.GetMessBill(ctx, ca.BillID); err != nil {
		return err
	}
	m, err := toContinuousAbsenceModel(ca)
	if err != nil {
		return err
	}
	_, err = s.sdb.NewInsert(m).Exec(ctx)
	if isUniqueViolation(err) {
		return hostel.ErrAlreadyExists
	}
	return wrap("create continuous absence", err)
}

func (s *Store) ListStreaks(ctx context.Context, billID id.MessBillID) ([]*bill.ContinuousAbsence, error) {
	if _, err := s.GetMessBill(ctx, billID); err != nil {
		return nil, err
	}

	var models []continuousAbsenceModel
	err := s.sdb.NewSelect(&models).
		Where("bill_id = ?", billID.String()).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("list continuous absences", err)
	}

	result := make([]*bill.ContinuousAbsence, len(models))
	for i := range models {
		ca, err := fromContinuousAbsenceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = ca
	}
	return result, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

func fromAttendanceModels(models []attendanceModel) ([]*attendance.Attendance, error) {
	result := make([]*attendance.Attendance, len(models))
	for i := range models {
		a, err := fromAttendanceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("hostel/sqlite: %s: %w", op, err)
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation matches SQLite's constraint message; the driver does not
// export a typed error for it.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
