package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/jitheshjr/hostel"
	"github.com/jitheshjr/hostel/attendance"
	"github.com/jitheshjr/hostel/bill"
	"github.com/jitheshjr/hostel/id"
	hostelstore "github.com/jitheshjr/hostel/store"
	"github.com/jitheshjr/hostel/student"
	"github.com/jitheshjr/hostel/types"
)

// Collection name constants.
const (
	colStudents           = "hostel_students"
	colAttendanceDates    = "hostel_attendance_dates"
	colMessBills          = "hostel_mess_bills"
	colStudentBills       = "hostel_student_bills"
	colContinuousAbsences = "hostel_continuous_absences"
)

// compile-time interface check
var _ hostelstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM. Absences are
// embedded in their attendance date document; bill rows live in their own
// collections and are removed with the bill.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all hostel collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("hostel/mongo: migrate %s indexes: %w", col, err)
		}
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
	_, err := s.mdb.NewInsert(toStudentModel(st)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return hostel.ErrAlreadyExists
		}
		return fmt.Errorf("hostel/mongo: create student: %w", err)
	}
	return nil
}

func (s *Store) GetStudent(ctx context.Context, studentID id.StudentID) (*student.Student, error) {
	var m studentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": studentID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, hostel.ErrStudentNotFound
		}
		return nil, fmt.Errorf("hostel/mongo: get student: %w", err)
	}
	return fromStudentModel(&m)
}

func (s *Store) ListStudents(ctx context.Context, opts student.ListOpts) ([]*student.Student, error) {
	var models []studentModel

	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("hostel/mongo: list students: %w", err)
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
	n, err := s.mdb.Collection(colStudents).CountDocuments(ctx,
		bson.M{"status": string(student.StatusActive)})
	if err != nil {
		return 0, fmt.Errorf("hostel/mongo: count students: %w", err)
	}
	return int(n), nil
}

func (s *Store) ArchiveStudent(ctx context.Context, studentID id.StudentID, at time.Time) error {
	res, err := s.mdb.NewUpdate((*studentModel)(nil)).
		Filter(bson.M{"_id": studentID.String()}).
		Set("status", string(student.StatusArchived)).
		Set("exited_at", at).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("hostel/mongo: archive student: %w", err)
	}
	if res.MatchedCount() == 0 {
		return hostel.ErrStudentNotFound
	}
	return nil
}

// ==================== Attendance Store ====================

// CreateAttendanceDate writes the day with its absences embedded, so the
// unique index on date makes the whole record all-or-nothing.
func (s *Store) CreateAttendanceDate(ctx context.Context, d *attendance.Date, absent []*attendance.Attendance) error {
	seen := make(map[string]bool, len(absent))
	for _, a := range absent {
		if seen[a.StudentID.String()] {
			return hostel.ErrAlreadyExists
		}
		seen[a.StudentID.String()] = true
	}

	_, err := s.mdb.NewInsert(toAttendanceDateModel(d, absent)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return hostel.ErrAttendanceAlreadyRecorded
		}
		return fmt.Errorf("hostel/mongo: create attendance date: %w", err)
	}
	return nil
}

func (s *Store) AttendanceExists(ctx context.Context, day time.Time) (bool, error) {
	n, err := s.mdb.Collection(colAttendanceDates).CountDocuments(ctx,
		bson.M{"date": types.Day(day)})
	if err != nil {
		return false, fmt.Errorf("hostel/mongo: attendance exists: %w", err)
	}
	return n > 0, nil
}

func (s *Store) getDate(ctx context.Context, filter bson.M, op string) (*attendanceDateModel, error) {
	var m attendanceDateModel
	err := s.mdb.NewFind(&m).Filter(filter).Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, hostel.ErrAttendanceNotFound
		}
		return nil, fmt.Errorf("hostel/mongo: %s: %w", op, err)
	}
	return &m, nil
}

func (s *Store) GetAttendanceDate(ctx context.Context, dateID id.AttendanceDateID) (*attendance.Date, error) {
	m, err := s.getDate(ctx, bson.M{"_id": dateID.String()}, "get attendance date")
	if err != nil {
		return nil, err
	}
	return fromAttendanceDateModel(m)
}

func (s *Store) GetAttendanceDateByDay(ctx context.Context, day time.Time) (*attendance.Date, error) {
	m, err := s.getDate(ctx, bson.M{"date": types.Day(day)}, "get attendance date by day")
	if err != nil {
		return nil, err
	}
	return fromAttendanceDateModel(m)
}

func (s *Store) ListAttendanceDates(ctx context.Context, opts attendance.ListOpts) ([]*attendance.Date, error) {
	var models []attendanceDateModel

	filter := bson.M{}
	if opts.Month != 0 {
		filter["month"] = int(opts.Month)
	}
	if opts.Year != 0 {
		filter["year"] = opts.Year
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "date", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("hostel/mongo: list attendance dates: %w", err)
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
	m, err := s.getDate(ctx, bson.M{"_id": dateID.String()}, "list absentees")
	if err != nil {
		return nil, err
	}
	rows, err := m.absentees()
	if err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].StudentID.String() < rows[j].StudentID.String() })
	return rows, nil
}

func (s *Store) ListStudentAbsences(ctx context.Context, studentID id.StudentID) ([]*attendance.Attendance, error) {
	var models []attendanceDateModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"absent.student_id": studentID.String()}).
		Sort(bson.D{{Key: "date", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("hostel/mongo: list student absences: %w", err)
	}

	var result []*attendance.Attendance
	for i := range models {
		rows, err := models[i].absentees()
		if err != nil {
			return nil, err
		}
		for _, a := range rows {
			if a.StudentID.String() == studentID.String() {
				result = append(result, a)
			}
		}
	}
	return result, nil
}

func (s *Store) AbsencesInRange(ctx context.Context, start, end time.Time) ([]attendance.Absence, error) {
	var models []attendanceDateModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"date": bson.M{"$gte": types.Day(start), "$lte": types.Day(end)}}).
		Sort(bson.D{{Key: "date", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("hostel/mongo: absences in range: %w", err)
	}

	var holders []studentModel
	if err := s.mdb.NewFind(&holders).Filter(bson.M{"e_grantz": true}).Scan(ctx); err != nil {
		return nil, fmt.Errorf("hostel/mongo: list e-grantz students: %w", err)
	}
	egrantz := make(map[string]bool, len(holders))
	for _, h := range holders {
		egrantz[h.ID] = true
	}

	var result []attendance.Absence
	for i := range models {
		rows, err := models[i].absentees()
		if err != nil {
			return nil, err
		}
		for _, a := range rows {
			result = append(result, attendance.Absence{
				AttendanceID: a.ID,
				StudentID:    a.StudentID,
				Date:         a.Date,
				EGrantz:      egrantz[a.StudentID.String()],
			})
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		si, sj := result[i].StudentID.String(), result[j].StudentID.String()
		if si != sj {
			return si < sj
		}
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

func (s *Store) DeleteAttendanceDate(ctx context.Context, dateID id.AttendanceDateID) error {
	res, err := s.mdb.NewDelete((*attendanceDateModel)(nil)).
		Filter(bson.M{"_id": dateID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("hostel/mongo: delete attendance date: %w", err)
	}
	if res.DeletedCount() == 0 {
		return hostel.ErrAttendanceNotFound
	}
	return nil
}

// ==================== Bill Store ====================

func (s *Store) MessBillExists(ctx context.Context, month time.Month, year int) (bool, error) {
	n, err := s.mdb.Collection(colMessBills).CountDocuments(ctx,
		bson.M{"month": int(month), "year": year})
	if err != nil {
		return false, fmt.Errorf("hostel/mongo: mess bill exists: %w", err)
	}
	return n > 0, nil
}

func (s *Store) CreateMessBill(ctx context.Context, b *bill.MessBill) error {
	_, err := s.mdb.NewInsert(toMessBillModel(b)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return hostel.ErrDuplicateBillingPeriod
		}
		return fmt.Errorf("hostel/mongo: create mess bill: %w", err)
	}
	return nil
}

func (s *Store) getBill(ctx context.Context, filter bson.M, op string) (*bill.MessBill, error) {
	var m messBillModel
	err := s.mdb.NewFind(&m).Filter(filter).Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, hostel.ErrBillNotFound
		}
		return nil, fmt.Errorf("hostel/mongo: %s: %w", op, err)
	}
	return fromMessBillModel(&m)
}

func (s *Store) GetMessBill(ctx context.Context, billID id.MessBillID) (*bill.MessBill, error) {
	return s.getBill(ctx, bson.M{"_id": billID.String()}, "get mess bill")
}

func (s *Store) GetMessBillByPeriod(ctx context.Context, month time.Month, year int) (*bill.MessBill, error) {
	return s.getBill(ctx, bson.M{"month": int(month), "year": year}, "get mess bill by period")
}

func (s *Store) ListMessBills(ctx context.Context, opts bill.ListOpts) ([]*bill.MessBill, error) {
	var models []messBillModel

	filter := bson.M{}
	if opts.Year != 0 {
		filter["year"] = opts.Year
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "year", Value: -1}, {Key: "month", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("hostel/mongo: list mess bills: %w", err)
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

// DeleteMessBill removes the bill and then its student bills and streaks.
func (s *Store) DeleteMessBill(ctx context.Context, billID id.MessBillID) error {
	res, err := s.mdb.NewDelete((*messBillModel)(nil)).
		Filter(bson.M{"_id": billID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("hostel/mongo: delete mess bill: %w", err)
	}
	if res.DeletedCount() == 0 {
		return hostel.ErrBillNotFound
	}

	owned := bson.M{"bill_id": billID.String()}
	if _, err := s.mdb.NewDelete((*studentBillModel)(nil)).Filter(owned).Exec(ctx); err != nil {
		return fmt.Errorf("hostel/mongo: delete student bills: %w", err)
	}
	if _, err := s.mdb.NewDelete((*continuousAbsenceModel)(nil)).Filter(owned).Exec(ctx); err != nil {
		return fmt.Errorf("hostel/mongo: delete continuous absences: %w", err)
	}
	return nil
}

func (s *Store) CreateStudentBill(ctx context.Context, sb *bill.StudentBill) error {
	if _, err := s.GetMessBill(ctx, sb.BillID); err != nil {
		return err
	}
	_, err := s.mdb.NewInsert(toStudentBillModel(sb)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return hostel.ErrAlreadyExists
		}
		return fmt.Errorf("hostel/mongo: create student bill: %w", err)
	}
	return nil
}

func (s *Store) ListStudentBills(ctx context.Context, billID id.MessBillID) ([]*bill.StudentBill, error) {
	if _, err := s.GetMessBill(ctx, billID); err != nil {
		return nil, err
	}

	var models []studentBillModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"bill_id": billID.String()}).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("hostel/mongo: list student bills: %w", err)
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
	_, err := s.mdb.NewInsert(toContinuousAbsenceModel(ca)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return hostel.ErrAlreadyExists
		}
		return fmt.Errorf("hostel/mongo: create continuous absence: %w", err)
	}
	return nil
}

func (s *Store) ListStreaks(ctx context.Context, billID id.MessBillID) ([]*bill.ContinuousAbsence, error) {
	if _, err := s.GetMessBill(ctx, billID); err != nil {
		return nil, err
	}

	var models []continuousAbsenceModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"bill_id": billID.String()}).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("hostel/mongo: list continuous absences: %w", err)
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

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all hostel collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colStudents: {
			{
				Keys:    bson.D{{Key: "admission_no", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "e_grantz", Value: 1}}},
		},
		colAttendanceDates: {
			{
				Keys:    bson.D{{Key: "date", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "year", Value: 1}, {Key: "month", Value: 1}}},
			{Keys: bson.D{{Key: "absent.student_id", Value: 1}}},
		},
		colMessBills: {
			{
				Keys:    bson.D{{Key: "year", Value: 1}, {Key: "month", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colStudentBills: {
			{
				Keys:    bson.D{{Key: "student_id", Value: 1}, {Key: "year", Value: 1}, {Key: "month", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "bill_id", Value: 1}}},
		},
		colContinuousAbsences: {
			{
				Keys:    bson.D{{Key: "student_id", Value: 1}, {Key: "year", Value: 1}, {Key: "month", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "bill_id", Value: 1}}},
		},
	}
}
