package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/jitheshjr/hostel"
	"github.com/jitheshjr/hostel/attendance"
	"github.com/jitheshjr/hostel/bill"
	"github.com/jitheshjr/hostel/id"
	hostelstore "github.com/jitheshjr/hostel/store"
	"github.com/jitheshjr/hostel/student"
	"github.com/jitheshjr/hostel/types"
)

// compile-time interface check
var _ hostelstore.Store = (*Store)(nil)

// PostgreSQL error codes mapped to hostel sentinels.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("hostel/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("hostel/postgres: migration failed: %w", err)
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
	_, err := s.pg.NewInsert(toStudentModel(st)).Exec(ctx)
	if isUniqueViolation(err) {
		return hostel.ErrAlreadyExists
	}
	return wrap("create student", err)
}

func (s *Store) GetStudent(ctx context.Context, studentID id.StudentID) (*student.Student, error) {
	m := new(studentModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", studentID.String()).
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
	q := s.pg.NewSelect(&models)
	if opts.Status != "" {
		q = q.Where("status = $1", string(opts.Status))
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
	err := s.pg.NewRaw(`SELECT COUNT(*) FROM hostel_students WHERE status = $1`,
		string(student.StatusActive)).Scan(ctx, &total)
	if err != nil {
		return 0, wrap("count students", err)
	}
	return int(total), nil
}

func (s *Store) ArchiveStudent(ctx context.Context, studentID id.StudentID, at time.Time) error {
	res, err := s.pg.NewUpdate((*studentModel)(nil)).
		Set("status = $1", string(student.StatusArchived)).
		Set("exited_at = $2", at).
		Set("updated_at = $3", now()).
		Where("id = $4", studentID.String()).
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
// fail the day is deleted again.
func (s *Store) CreateAttendanceDate(ctx context.Context, d *attendance.Date, absent []*attendance.Attendance) error {
	_, err := s.pg.NewInsert(toAttendanceDateModel(d)).Exec(ctx)
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
	if _, err := s.pg.NewInsert(&models).Exec(ctx); err != nil {
		_, _ = s.pg.NewDelete((*attendanceDateModel)(nil)). //nolint:errcheck // best-effort rollback
									Where("id = $1", d.ID.String()).
									Exec(context.WithoutCancel(ctx))
		switch {
		case isUniqueViolation(err):
			return hostel.ErrAlreadyExists
		case isForeignKeyViolation(err):
			return hostel.ErrStudentNotFound
		}
		return wrap("create attendances", err)
	}
	return nil
}

func (s *Store) AttendanceExists(ctx context.Context, day time.Time) (bool, error) {
	var total int64
	err := s.pg.NewRaw(`SELECT COUNT(*) FROM hostel_attendance_dates WHERE date = $1`,
		types.Day(day)).Scan(ctx, &total)
	if err != nil {
		return false, wrap("attendance exists", err)
	}
	return total > 0, nil
}

func (s *Store) GetAttendanceDate(ctx context.Context, dateID id.AttendanceDateID) (*attendance.Date, error) {
	m := new(attendanceDateModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", dateID.String()).
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
	err := s.pg.NewSelect(m).
		Where("date = $1", types.Day(day)).
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
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Month != 0 {
		argIdx++
		q = q.Where(fmt.Sprintf("month = $%d", argIdx), int(opts.Month))
	}
	if opts.Year != 0 {
		argIdx++
		q = q.Where(fmt.Sprintf("year = $%d", argIdx), opts.Year)
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
	err := s.pg.NewSelect(&models).
		Where("date_id = $1", dateID.String()).
		OrderExpr("student_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("list absentees", err)
	}
	return fromAttendanceModels(models)
}

func (s *Store) ListStudentAbsences(ctx context.Context, studentID id.StudentID) ([]*attendance.Attendance, error) {
	var models []attendanceModel
	err := s.pg.NewSelect(&models).
		Where("student_id = $1", studentID.String()).
		OrderExpr("date ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("list student absences", err)
	}
	return fromAttendanceModels(models)
}

func (s *Store) AbsencesInRange(ctx context.Context, start, end time.Time) ([]attendance.Absence, error) {
	var models []attendanceModel
	err := s.pg.NewSelect(&models).
		Where("date >= $1", types.Day(start)).
		Where("date <= $2", types.Day(end)).
		OrderExpr("student_id ASC, date ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("absences in range", err)
	}

	var holders []studentModel
	if err := s.pg.NewSelect(&holders).Where("e_grantz = $1", true).Scan(ctx); err != nil {
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
	res, err := s.pg.NewDelete((*attendanceDateModel)(nil)).
		Where("id = $1", dateID.String()).
		Exec(ctx)
	if err != nil {
		return wrap("delete attendance date", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hostel.ErrAttendanceNotFound
	}
	return nil
}

// ==================== Bill Store ====================

func (s *Store) MessBillExists(ctx context.Context, month time.Month, year int) (bool, error) {
	var total int64
	err := s.pg.NewRaw(`SELECT COUNT(*) FROM hostel_mess_bills WHERE month = $1 AND year = $2`,
		int(month), year).Scan(ctx, &total)
	if err != nil {
		return false, wrap("mess bill exists", err)
	}
	return total > 0, nil
}

func (s *Store) CreateMessBill(ctx context.Context, b *bill.MessBill) error {
	_, err := s.pg.NewInsert(toMessBillModel(b)).Exec(ctx)
	if isUniqueViolation(err) {
		return hostel.ErrDuplicateBillingPeriod
	}
	return wrap("create mess bill", err)
}

func (s *Store) GetMessBill(ctx context.Context, billID id.MessBillID) (*bill.MessBill, error) {
	m := new(messBillModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", billID.String()).
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
	err := s.pg.NewSelect(m).
		Where("month = $1", int(month)).
		Where("year = $2", year).
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
	q := s.pg.NewSelect(&models)
	if opts.Year != 0 {
		q = q.Where("year = $1", opts.Year)
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

// DeleteMessBill relies on ON DELETE CASCADE for student bills and streaks.
func (s *Store) DeleteMessBill(ctx context.Context, billID id.MessBillID) error {
	res, err := s.pg.NewDelete((*messBillModel)(nil)).
		Where("id = $1", billID.String()).
		Exec(ctx)
	if err != nil {
		return wrap("delete mess bill", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hostel.ErrBillNotFound
	}
	return nil
}

func (s *Store) CreateStudentBill(ctx context.Context, sb *bill.StudentBill) error {
	_, err := s.pg.NewInsert(toStudentBillModel(sb)).Exec(ctx)
	return childErr("create student bill", err)
}

func (s *Store) ListStudentBills(ctx context.Context, billID id.MessBillID) ([]*bill.StudentBill, error) {
	if _, err := s.GetMessBill(ctx, billID); err != nil {
		return nil, err
	}

	var models []studentBillModel
	err := s.pg.NewSelect(&models).
		Where("bill_id = $1", billID.String()).
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
	m, err := toContinuousAbsenceModel(ca)
	if err != nil {
		return err
	}
	_, err = s.pg.NewInsert(m).Exec(ctx)
	return childErr("create continuous absence", err)
}

func (s *Store) ListStreaks(ctx context.Context, billID id.MessBillID) ([]*bill.ContinuousAbsence, error) {
	if _, err := s.GetMessBill(ctx, billID); err != nil {
		return nil, err
	}

	var models []continuousAbsenceModel
	err := s.pg.NewSelect(&models).
		Where("bill_id = $1", billID.String()).
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

// childErr maps insert errors for rows owned by a mess bill.
func childErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return hostel.ErrAlreadyExists
	case isForeignKeyViolation(err):
		return hostel.ErrBillNotFound
	}
	return wrap(op, err)
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("hostel/postgres: %s: %w", op, err)
}

// isNoRows checks for the no-rows sentinels of database/sql and pgx.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgCode(err) == codeForeignKeyViolation
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
