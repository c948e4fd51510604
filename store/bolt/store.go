// Package bolt provides an embedded store.Store backed by a bbolt file.
// Records are JSON values; uniqueness is kept with index buckets that map a
// natural key to the record ID.
package bolt

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"

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

var (
	bucketStudents         = []byte("students")
	bucketStudentAdmission = []byte("students_by_admission")
	bucketDates            = []byte("attendance_dates")
	bucketDateByDay        = []byte("attendance_dates_by_day")
	// key: day/studentID
	bucketAbsences      = []byte("attendances")
	bucketBills         = []byte("mess_bills")
	bucketBillByPeriod  = []byte("mess_bills_by_period")
	bucketStudentBills  = []byte("student_bills")
	bucketStudentPeriod = []byte("student_bills_by_period")
	bucketStreaks       = []byte("continuous_absences")
	bucketStreakPeriod  = []byte("continuous_absences_by_period")
)

var allBuckets = [][]byte{
	bucketStudents, bucketStudentAdmission,
	bucketDates, bucketDateByDay, bucketAbsences,
	bucketBills, bucketBillByPeriod,
	bucketStudentBills, bucketStudentPeriod,
	bucketStreaks, bucketStreakPeriod,
}

// errNoBucket is returned when Migrate has not been run.
var errNoBucket = errors.New("hostel/bolt: bucket missing, run Migrate")

// Store implements store.Store using bbolt.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("hostel/bolt: create dir: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("hostel/bolt: open %s: %w", path, err)
	}
	return New(db), nil
}

// New wraps an open bbolt database.
func New(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying bbolt database.
func (s *Store) DB() *bbolt.DB { return s.db }

// ==================== Student Store ====================

func (s *Store) CreateStudent(_ context.Context, st *student.Student) error {
	return s.update("create student", func(tx *bbolt.Tx) error {
		students, byAdmission, err := buckets2(tx, bucketStudents, bucketStudentAdmission)
		if err != nil {
			return err
		}
		key := []byte(st.ID.String())
		if students.Get(key) != nil || byAdmission.Get([]byte(st.AdmissionNo)) != nil {
			return hostel.ErrAlreadyExists
		}
		if err := byAdmission.Put([]byte(st.AdmissionNo), key); err != nil {
			return err
		}
		return putJSON(students, key, st)
	})
}

func (s *Store) GetStudent(_ context.Context, studentID id.StudentID) (*student.Student, error) {
	var st student.Student
	err := s.view("get student", func(tx *bbolt.Tx) error {
		return getJSON(tx, bucketStudents, []byte(studentID.String()), &st, hostel.ErrStudentNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) ListStudents(_ context.Context, opts student.ListOpts) ([]*student.Student, error) {
	var result []*student.Student
	err := s.view("list students", func(tx *bbolt.Tx) error {
		return eachJSON(tx, bucketStudents, nil, func(st *student.Student) error {
			if opts.Status == "" || st.Status == opts.Status {
				result = append(result, st)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(result, func(a, b *student.Student) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return paginate(result, opts.Limit, opts.Offset), nil
}

func (s *Store) CountStudents(_ context.Context) (int, error) {
	n := 0
	err := s.view("count students", func(tx *bbolt.Tx) error {
		return eachJSON(tx, bucketStudents, nil, func(st *student.Student) error {
			if st.IsActive() {
				n++
			}
			return nil
		})
	})
	return n, err
}

func (s *Store) ArchiveStudent(_ context.Context, studentID id.StudentID, at time.Time) error {
	return s.update("archive student", func(tx *bbolt.Tx) error {
		var st student.Student
		key := []byte(studentID.String())
		if err := getJSON(tx, bucketStudents, key, &st, hostel.ErrStudentNotFound); err != nil {
			return err
		}
		st.Status = student.StatusArchived
		st.ExitedAt = &at
		st.Touch()
		return putJSON(tx.Bucket(bucketStudents), key, &st)
	})
}

// ==================== Attendance Store ====================

func (s *Store) CreateAttendanceDate(_ context.Context, d *attendance.Date, absent []*attendance.Attendance) error {
	return s.update("create attendance date", func(tx *bbolt.Tx) error {
		dates, byDay, err := buckets2(tx, bucketDates, bucketDateByDay)
		if err != nil {
			return err
		}
		absences := tx.Bucket(bucketAbsences)
		if absences == nil {
			return errNoBucket
		}

		day := []byte(dayKey(d.Date))
		if byDay.Get(day) != nil {
			return hostel.ErrAttendanceAlreadyRecorded
		}
		key := []byte(d.ID.String())
		if err := byDay.Put(day, key); err != nil {
			return err
		}
		if err := putJSON(dates, key, d); err != nil {
			return err
		}

		for _, a := range absent {
			k := absenceKey(d.Date, a.StudentID)
			if absences.Get(k) != nil {
				return hostel.ErrAlreadyExists
			}
			if err := putJSON(absences, k, a); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) AttendanceExists(_ context.Context, day time.Time) (bool, error) {
	var ok bool
	err := s.view("attendance exists", func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDateByDay)
		if b == nil {
			return errNoBucket
		}
		ok = b.Get([]byte(dayKey(day))) != nil
		return nil
	})
	return ok, err
}

func (s *Store) GetAttendanceDate(_ context.Context, dateID id.AttendanceDateID) (*attendance.Date, error) {
	var d attendance.Date
	err := s.view("get attendance date", func(tx *bbolt.Tx) error {
		return getJSON(tx, bucketDates, []byte(dateID.String()), &d, hostel.ErrAttendanceNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) GetAttendanceDateByDay(_ context.Context, day time.Time) (*attendance.Date, error) {
	var d attendance.Date
	err := s.view("get attendance date by day", func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDateByDay)
		if b == nil {
			return errNoBucket
		}
		dateID := b.Get([]byte(dayKey(day)))
		if dateID == nil {
			return hostel.ErrAttendanceNotFound
		}
		return getJSON(tx, bucketDates, dateID, &d, hostel.ErrAttendanceNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) ListAttendanceDates(_ context.Context, opts attendance.ListOpts) ([]*attendance.Date, error) {
	var result []*attendance.Date
	err := s.view("list attendance dates", func(tx *bbolt.Tx) error {
		return eachJSON(tx, bucketDates, nil, func(d *attendance.Date) error {
			if opts.Month != 0 && d.Month != opts.Month {
				return nil
			}
			if opts.Year != 0 && d.Year != opts.Year {
				return nil
			}
			result = append(result, d)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(result, func(a, b *attendance.Date) int { return a.Date.Compare(b.Date) })
	return paginate(result, opts.Limit, opts.Offset), nil
}

func (s *Store) ListAbsentees(_ context.Context, dateID id.AttendanceDateID) ([]*attendance.Attendance, error) {
	var result []*attendance.Attendance
	err := s.view("list absentees", func(tx *bbolt.Tx) error {
		var d attendance.Date
		if err := getJSON(tx, bucketDates, []byte(dateID.String()), &d, hostel.ErrAttendanceNotFound); err != nil {
			return err
		}
		return eachJSON(tx, bucketAbsences, []byte(dayKey(d.Date)+"/"), func(a *attendance.Attendance) error {
			result = append(result, a)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListStudentAbsences(_ context.Context, studentID id.StudentID) ([]*attendance.Attendance, error) {
	result := make([]*attendance.Attendance, 0)
	err := s.view("list student absences", func(tx *bbolt.Tx) error {
		// Keys are day-ordered, so matches come out in date order.
		return eachJSON(tx, bucketAbsences, nil, func(a *attendance.Attendance) error {
			if a.StudentID.String() == studentID.String() {
				result = append(result, a)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) AbsencesInRange(_ context.Context, start, end time.Time) ([]attendance.Absence, error) {
	result := make([]attendance.Absence, 0)
	err := s.view("absences in range", func(tx *bbolt.Tx) error {
		absences, students := tx.Bucket(bucketAbsences), tx.Bucket(bucketStudents)
		if absences == nil || students == nil {
			return errNoBucket
		}

		flags := make(map[string]bool)
		last := []byte(dayKey(end) + "/\xff")
		c := absences.Cursor()
		for k, v := c.Seek([]byte(dayKey(start))); k != nil && bytes.Compare(k, last) <= 0; k, v = c.Next() {
			var a attendance.Attendance
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			sid := a.StudentID.String()
			egrantz, seen := flags[sid]
			if !seen {
				var st student.Student
				if raw := students.Get([]byte(sid)); raw != nil {
					if err := json.Unmarshal(raw, &st); err != nil {
						return err
					}
				}
				egrantz = st.EGrantz
				flags[sid] = egrantz
			}
			result = append(result, attendance.Absence{
				AttendanceID: a.ID,
				StudentID:    a.StudentID,
				Date:         types.Day(a.Date),
				EGrantz:      egrantz,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(result, func(a, b attendance.Absence) int {
		if c := cmp.Compare(a.StudentID.String(), b.StudentID.String()); c != 0 {
			return c
		}
		return a.Date.Compare(b.Date)
	})
	return result, nil
}

func (s *Store) DeleteAttendanceDate(_ context.Context, dateID id.AttendanceDateID) error {
	return s.update("delete attendance date", func(tx *bbolt.Tx) error {
		var d attendance.Date
		key := []byte(dateID.String())
		if err := getJSON(tx, bucketDates, key, &d, hostel.ErrAttendanceNotFound); err != nil {
			return err
		}
		if err := tx.Bucket(bucketDates).Delete(key); err != nil {
			return err
		}
		if err := tx.Bucket(bucketDateByDay).Delete([]byte(dayKey(d.Date))); err != nil {
			return err
		}
		return deletePrefix(tx.Bucket(bucketAbsences), []byte(dayKey(d.Date)+"/"))
	})
}

// ==================== Bill Store ====================

func (s *Store) MessBillExists(_ context.Context, month time.Month, year int) (bool, error) {
	var ok bool
	err := s.view("mess bill exists", func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketBillByPeriod)
		if b == nil {
			return errNoBucket
		}
		ok = b.Get([]byte(periodKey(month, year))) != nil
		return nil
	})
	return ok, err
}

func (s *Store) CreateMessBill(_ context.Context, mb *bill.MessBill) error {
	return s.update("create mess bill", func(tx *bbolt.Tx) error {
		bills, byPeriod, err := buckets2(tx, bucketBills, bucketBillByPeriod)
		if err != nil {
			return err
		}
		period := []byte(periodKey(mb.Month, mb.Year))
		if byPeriod.Get(period) != nil {
			return hostel.ErrDuplicateBillingPeriod
		}
		key := []byte(mb.ID.String())
		if err := byPeriod.Put(period, key); err != nil {
			return err
		}
		return putJSON(bills, key, mb)
	})
}

func (s *Store) GetMessBill(_ context.Context, billID id.MessBillID) (*bill.MessBill, error) {
	var mb bill.MessBill
	err := s.view("get mess bill", func(tx *bbolt.Tx) error {
		return getJSON(tx, bucketBills, []byte(billID.String()), &mb, hostel.ErrBillNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &mb, nil
}

func (s *Store) GetMessBillByPeriod(_ context.Context, month time.Month, year int) (*bill.MessBill, error) {
	var mb bill.MessBill
	err := s.view("get mess bill by period", func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketBillByPeriod)
		if b == nil {
			return errNoBucket
		}
		billID := b.Get([]byte(periodKey(month, year)))
		if billID == nil {
			return hostel.ErrBillNotFound
		}
		return getJSON(tx, bucketBills, billID, &mb, hostel.ErrBillNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &mb, nil
}

func (s *Store) ListMessBills(_ context.Context, opts bill.ListOpts) ([]*bill.MessBill, error) {
	var result []*bill.MessBill
	err := s.view("list mess bills", func(tx *bbolt.Tx) error {
		return eachJSON(tx, bucketBills, nil, func(mb *bill.MessBill) error {
			if opts.Year == 0 || mb.Year == opts.Year {
				result = append(result, mb)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	// Newest period first.
	slices.SortFunc(result, func(a, b *bill.MessBill) int {
		if c := cmp.Compare(b.Year, a.Year); c != 0 {
			return c
		}
		return cmp.Compare(b.Month, a.Month)
	})
	return paginate(result, opts.Limit, opts.Offset), nil
}

func (s *Store) DeleteMessBill(_ context.Context, billID id.MessBillID) error {
	return s.update("delete mess bill", func(tx *bbolt.Tx) error {
		var mb bill.MessBill
		key := []byte(billID.String())
		if err := getJSON(tx, bucketBills, key, &mb, hostel.ErrBillNotFound); err != nil {
			return err
		}
		if err := tx.Bucket(bucketBills).Delete(key); err != nil {
			return err
		}
		if err := tx.Bucket(bucketBillByPeriod).Delete([]byte(periodKey(mb.Month, mb.Year))); err != nil {
			return err
		}

		prefix := []byte(billID.String() + "/")
		period := periodKey(mb.Month, mb.Year)
		if err := eachJSON(tx, bucketStudentBills, prefix, func(sb *bill.StudentBill) error {
			return tx.Bucket(bucketStudentPeriod).Delete([]byte(sb.StudentID.String() + "/" + period))
		}); err != nil {
			return err
		}
		if err := eachJSON(tx, bucketStreaks, prefix, func(ca *bill.ContinuousAbsence) error {
			return tx.Bucket(bucketStreakPeriod).Delete([]byte(ca.StudentID.String() + "/" + period))
		}); err != nil {
			return err
		}
		if err := deletePrefix(tx.Bucket(bucketStudentBills), prefix); err != nil {
			return err
		}
		return deletePrefix(tx.Bucket(bucketStreaks), prefix)
	})
}

func (s *Store) CreateStudentBill(_ context.Context, sb *bill.StudentBill) error {
	return s.update("create student bill", func(tx *bbolt.Tx) error {
		return putChild(tx, bucketStudentBills, bucketStudentPeriod, sb.BillID, sb.StudentID, sb.Month, sb.Year, sb)
	})
}

func (s *Store) ListStudentBills(_ context.Context, billID id.MessBillID) ([]*bill.StudentBill, error) {
	var result []*bill.StudentBill
	err := s.view("list student bills", func(tx *bbolt.Tx) error {
		if err := billExists(tx, billID); err != nil {
			return err
		}
		return eachJSON(tx, bucketStudentBills, []byte(billID.String()+"/"), func(sb *bill.StudentBill) error {
			result = append(result, sb)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateStreak(_ context.Context, ca *bill.ContinuousAbsence) error {
	return s.update("create continuous absence", func(tx *bbolt.Tx) error {
		return putChild(tx, bucketStreaks, bucketStreakPeriod, ca.BillID, ca.StudentID, ca.Month, ca.Year, ca)
	})
}

func (s *Store) ListStreaks(_ context.Context, billID id.MessBillID) ([]*bill.ContinuousAbsence, error) {
	var result []*bill.ContinuousAbsence
	err := s.view("list continuous absences", func(tx *bbolt.Tx) error {
		if err := billExists(tx, billID); err != nil {
			return err
		}
		return eachJSON(tx, bucketStreaks, []byte(billID.String()+"/"), func(ca *bill.ContinuousAbsence) error {
			result = append(result, ca)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ==================== Core ====================

// Migrate creates any missing buckets.
func (s *Store) Migrate(_ context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("hostel/bolt: create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

func (s *Store) Ping(_ context.Context) error {
	return wrap("ping", s.db.View(func(*bbolt.Tx) error { return nil }))
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Helpers ====================

func (s *Store) view(op string, fn func(tx *bbolt.Tx) error) error {
	return wrap(op, s.db.View(fn))
}

func (s *Store) update(op string, fn func(tx *bbolt.Tx) error) error {
	return wrap(op, s.db.Update(fn))
}

// wrap leaves hostel sentinels untouched so callers can match them directly.
func wrap(op string, err error) error {
	if err == nil || hostel.IsNotFound(err) || hostel.IsConflict(err) {
		return err
	}
	if errors.Is(err, berrors.ErrDatabaseNotOpen) {
		return fmt.Errorf("%w: %w", hostel.ErrStoreClosed, err)
	}
	return fmt.Errorf("hostel/bolt: %s: %w", op, err)
}

func buckets2(tx *bbolt.Tx, a, b []byte) (*bbolt.Bucket, *bbolt.Bucket, error) {
	ba, bb := tx.Bucket(a), tx.Bucket(b)
	if ba == nil || bb == nil {
		return nil, nil, errNoBucket
	}
	return ba, bb, nil
}

func putJSON(b *bbolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

func getJSON(tx *bbolt.Tx, bucket, key []byte, out any, notFound error) error {
	b := tx.Bucket(bucket)
	if b == nil {
		return errNoBucket
	}
	v := b.Get(key)
	if v == nil {
		return notFound
	}
	return json.Unmarshal(v, out)
}

// eachJSON decodes every value whose key starts with prefix, in key order.
func eachJSON[T any](tx *bbolt.Tx, bucket, prefix []byte, fn func(*T) error) error {
	b := tx.Bucket(bucket)
	if b == nil {
		return errNoBucket
	}
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		out := new(T)
		if err := json.Unmarshal(v, out); err != nil {
			return fmt.Errorf("decode %s/%s: %w", bucket, k, err)
		}
		if err := fn(out); err != nil {
			return err
		}
	}
	return nil
}

func deletePrefix(b *bbolt.Bucket, prefix []byte) error {
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, bytes.Clone(k))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func billExists(tx *bbolt.Tx, billID id.MessBillID) error {
	b := tx.Bucket(bucketBills)
	if b == nil {
		return errNoBucket
	}
	if b.Get([]byte(billID.String())) == nil {
		return hostel.ErrBillNotFound
	}
	return nil
}

// putChild stores a bill row keyed billID/studentID, unique per
// (student, month, year).
func putChild(tx *bbolt.Tx, bucket, index []byte, billID id.MessBillID, studentID id.StudentID, month time.Month, year int, v any) error {
	if err := billExists(tx, billID); err != nil {
		return err
	}
	rows, byPeriod, err := buckets2(tx, bucket, index)
	if err != nil {
		return err
	}
	period := []byte(studentID.String() + "/" + periodKey(month, year))
	if byPeriod.Get(period) != nil {
		return hostel.ErrAlreadyExists
	}
	key := []byte(billID.String() + "/" + studentID.String())
	if err := byPeriod.Put(period, key); err != nil {
		return err
	}
	return putJSON(rows, key, v)
}

func absenceKey(day time.Time, studentID id.StudentID) []byte {
	return []byte(dayKey(day) + "/" + studentID.String())
}

func dayKey(t time.Time) string {
	return types.Day(t).Format(types.DateLayout)
}

func periodKey(month time.Month, year int) string {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

func paginate[T any](items []T, limit, offset int) []T {
	start := min(offset, len(items))
	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return items[start:end]
}
