// Package memory provides an in-process store.Store backed by maps. It is
// intended for tests and single-process demos.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

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

type Store struct {
	mu sync.RWMutex

	// Student storage
	students    map[string]student.Student
	byAdmission map[string]string

	// Attendance storage
	dates     map[string]attendance.Date
	dateByDay map[string]string
	absentees map[string][]attendance.Attendance

	// Bill storage
	bills        map[string]bill.MessBill
	billByPeriod map[string]string
	studentBills map[string][]bill.StudentBill
	streaks      map[string][]bill.ContinuousAbsence
}

func New() *Store {
	return &Store{
		students:     make(map[string]student.Student),
		byAdmission:  make(map[string]string),
		dates:        make(map[string]attendance.Date),
		dateByDay:    make(map[string]string),
		absentees:    make(map[string][]attendance.Attendance),
		bills:        make(map[string]bill.MessBill),
		billByPeriod: make(map[string]string),
		studentBills: make(map[string][]bill.StudentBill),
		streaks:      make(map[string][]bill.ContinuousAbsence),
	}
}

// ==================== Student Store ====================

func (s *Store) CreateStudent(_ context.Context, st *student.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.students[st.ID.String()]; exists {
		return hostel.ErrAlreadyExists
	}
	if st.AdmissionNo != "" {
		if _, exists := s.byAdmission[st.AdmissionNo]; exists {
			return hostel.ErrAlreadyExists
		}
		s.byAdmission[st.AdmissionNo] = st.ID.String()
	}
	s.students[st.ID.String()] = *st
	return nil
}

func (s *Store) GetStudent(_ context.Context, studentID id.StudentID) (*student.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.students[studentID.String()]; ok {
		return &st, nil
	}
	return nil, hostel.ErrStudentNotFound
}

func (s *Store) ListStudents(_ context.Context, opts student.ListOpts) ([]*student.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*student.Student, 0, len(s.students))
	for _, st := range s.students {
		if opts.Status == "" || st.Status == opts.Status {
			result = append(result, &st)
		}
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
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, st := range s.students {
		if st.IsActive() {
			n++
		}
	}
	return n, nil
}

func (s *Store) ArchiveStudent(_ context.Context, studentID id.StudentID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.students[studentID.String()]
	if !ok {
		return hostel.ErrStudentNotFound
	}
	st.Status = student.StatusArchived
	st.ExitedAt = &at
	st.Touch()
	s.students[studentID.String()] = st
	return nil
}

// ==================== Attendance Store ====================

func (s *Store) CreateAttendanceDate(_ context.Context, d *attendance.Date, absent []*attendance.Attendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := dayKey(d.Date)
	if _, exists := s.dateByDay[day]; exists {
		return hostel.ErrAttendanceAlreadyRecorded
	}

	seen := make(map[string]bool, len(absent))
	rows := make([]attendance.Attendance, 0, len(absent))
	for _, a := range absent {
		if seen[a.StudentID.String()] {
			return hostel.ErrAlreadyExists
		}
		seen[a.StudentID.String()] = true
		rows = append(rows, *a)
	}

	s.dates[d.ID.String()] = *d
	s.dateByDay[day] = d.ID.String()
	s.absentees[d.ID.String()] = rows
	return nil
}

func (s *Store) AttendanceExists(_ context.Context, day time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.dateByDay[dayKey(day)]
	return ok, nil
}

func (s *Store) GetAttendanceDate(_ context.Context, dateID id.AttendanceDateID) (*attendance.Date, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if d, ok := s.dates[dateID.String()]; ok {
		return &d, nil
	}
	return nil, hostel.ErrAttendanceNotFound
}

func (s *Store) GetAttendanceDateByDay(_ context.Context, day time.Time) (*attendance.Date, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if dateID, ok := s.dateByDay[dayKey(day)]; ok {
		d := s.dates[dateID]
		return &d, nil
	}
	return nil, hostel.ErrAttendanceNotFound
}

func (s *Store) ListAttendanceDates(_ context.Context, opts attendance.ListOpts) ([]*attendance.Date, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*attendance.Date, 0)
	for _, d := range s.dates {
		if opts.Month != 0 && d.Month != opts.Month {
			continue
		}
		if opts.Year != 0 && d.Year != opts.Year {
			continue
		}
		result = append(result, &d)
	}
	slices.SortFunc(result, func(a, b *attendance.Date) int { return a.Date.Compare(b.Date) })
	return paginate(result, opts.Limit, opts.Offset), nil
}

func (s *Store) ListAbsentees(_ context.Context, dateID id.AttendanceDateID) ([]*attendance.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.dates[dateID.String()]; !ok {
		return nil, hostel.ErrAttendanceNotFound
	}
	rows := s.absentees[dateID.String()]
	result := make([]*attendance.Attendance, len(rows))
	for i := range rows {
		a := rows[i]
		result[i] = &a
	}
	return result, nil
}

func (s *Store) ListStudentAbsences(_ context.Context, studentID id.StudentID) ([]*attendance.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*attendance.Attendance, 0)
	for _, rows := range s.absentees {
		for _, a := range rows {
			if a.StudentID.String() == studentID.String() {
				result = append(result, &a)
			}
		}
	}
	slices.SortFunc(result, func(a, b *attendance.Attendance) int { return a.Date.Compare(b.Date) })
	return result, nil
}

func (s *Store) AbsencesInRange(_ context.Context, start, end time.Time) ([]attendance.Absence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end = types.Day(start), types.Day(end)
	result := make([]attendance.Absence, 0)
	for dateID, d := range s.dates {
		if d.Date.Before(start) || d.Date.After(end) {
			continue
		}
		for _, a := range s.absentees[dateID] {
			st := s.students[a.StudentID.String()]
			result = append(result, attendance.Absence{
				AttendanceID: a.ID,
				StudentID:    a.StudentID,
				Date:         d.Date,
				EGrantz:      st.EGrantz,
			})
		}
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
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.dates[dateID.String()]
	if !ok {
		return hostel.ErrAttendanceNotFound
	}
	delete(s.dates, dateID.String())
	delete(s.dateByDay, dayKey(d.Date))
	delete(s.absentees, dateID.String())
	return nil
}

// ==================== Bill Store ====================

func (s *Store) MessBillExists(_ context.Context, month time.Month, year int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.billByPeriod[periodKey(month, year)]
	return ok, nil
}

func (s *Store) CreateMessBill(_ context.Context, b *bill.MessBill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := periodKey(b.Month, b.Year)
	if _, exists := s.billByPeriod[key]; exists {
		return hostel.ErrDuplicateBillingPeriod
	}
	s.bills[b.ID.String()] = *b
	s.billByPeriod[key] = b.ID.String()
	return nil
}

func (s *Store) GetMessBill(_ context.Context, billID id.MessBillID) (*bill.MessBill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.bills[billID.String()]; ok {
		return &b, nil
	}
	return nil, hostel.ErrBillNotFound
}

func (s *Store) GetMessBillByPeriod(_ context.Context, month time.Month, year int) (*bill.MessBill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if billID, ok := s.billByPeriod[periodKey(month, year)]; ok {
		b := s.bills[billID]
		return &b, nil
	}
	return nil, hostel.ErrBillNotFound
}

func (s *Store) ListMessBills(_ context.Context, opts bill.ListOpts) ([]*bill.MessBill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*bill.MessBill, 0, len(s.bills))
	for _, b := range s.bills {
		if opts.Year == 0 || b.Year == opts.Year {
			result = append(result, &b)
		}
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
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bills[billID.String()]
	if !ok {
		return hostel.ErrBillNotFound
	}
	delete(s.bills, billID.String())
	delete(s.billByPeriod, periodKey(b.Month, b.Year))
	delete(s.studentBills, billID.String())
	delete(s.streaks, billID.String())
	return nil
}

func (s *Store) CreateStudentBill(_ context.Context, sb *bill.StudentBill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bills[sb.BillID.String()]; !ok {
		return hostel.ErrBillNotFound
	}
	for _, rows := range s.studentBills {
		for _, r := range rows {
			if r.StudentID.String() == sb.StudentID.String() && r.Month == sb.Month && r.Year == sb.Year {
				return hostel.ErrAlreadyExists
			}
		}
	}
	s.studentBills[sb.BillID.String()] = append(s.studentBills[sb.BillID.String()], *sb)
	return nil
}

func (s *Store) ListStudentBills(_ context.Context, billID id.MessBillID) ([]*bill.StudentBill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.bills[billID.String()]; !ok {
		return nil, hostel.ErrBillNotFound
	}
	rows := s.studentBills[billID.String()]
	result := make([]*bill.StudentBill, len(rows))
	for i := range rows {
		r := rows[i]
		result[i] = &r
	}
	return result, nil
}

func (s *Store) CreateStreak(_ context.Context, ca *bill.ContinuousAbsence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bills[ca.BillID.String()]; !ok {
		return hostel.ErrBillNotFound
	}
	for _, rows := range s.streaks {
		for _, r := range rows {
			if r.StudentID.String() == ca.StudentID.String() && r.Month == ca.Month && r.Year == ca.Year {
				return hostel.ErrAlreadyExists
			}
		}
	}
	s.streaks[ca.BillID.String()] = append(s.streaks[ca.BillID.String()], *ca)
	return nil
}

func (s *Store) ListStreaks(_ context.Context, billID id.MessBillID) ([]*bill.ContinuousAbsence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.bills[billID.String()]; !ok {
		return nil, hostel.ErrBillNotFound
	}
	rows := s.streaks[billID.String()]
	result := make([]*bill.ContinuousAbsence, len(rows))
	for i := range rows {
		r := rows[i]
		result[i] = &r
	}
	return result, nil
}

// ==================== Core ====================

func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

// Helper functions

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
