// Package storetest is a conformance suite for store.Store implementations.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jitheshjr/hostel"
	"github.com/jitheshjr/hostel/attendance"
	"github.com/jitheshjr/hostel/bill"
	"github.com/jitheshjr/hostel/id"
	"github.com/jitheshjr/hostel/store"
	"github.com/jitheshjr/hostel/student"
	"github.com/jitheshjr/hostel/types"
)

// Factory returns a fresh, migrated store for one subtest.
type Factory func(t *testing.T) store.Store

// Run exercises every Store method against the shared contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("Students", func(t *testing.T) { testStudents(t, newStore(t)) })
	t.Run("Attendance", func(t *testing.T) { testAttendance(t, newStore(t)) })
	t.Run("AbsencesInRange", func(t *testing.T) { testAbsencesInRange(t, newStore(t)) })
	t.Run("Bills", func(t *testing.T) { testBills(t, newStore(t)) })
	t.Run("BillCascade", func(t *testing.T) { testBillCascade(t, newStore(t)) })
}

func newStudent(admission string, egrantz bool) *student.Student {
	e := types.NewEntity()
	return &student.Student{
		Entity:      e,
		ID:          id.NewStudentID(),
		AdmissionNo: admission,
		Name:        "Student " + admission,
		EGrantz:     egrantz,
		Status:      student.StatusActive,
		JoinedAt:    types.Day(e.CreatedAt),
	}
}

func newDay(s store.Store, t *testing.T, day time.Time, absent ...*student.Student) *attendance.Date {
	t.Helper()
	d := attendance.NewDate(day)
	rows := make([]*attendance.Attendance, 0, len(absent))
	for _, st := range absent {
		rows = append(rows, &attendance.Attendance{
			Entity:    types.NewEntity(),
			ID:        id.NewAttendanceID(),
			DateID:    d.ID,
			StudentID: st.ID,
			Date:      d.Date,
		})
	}
	if err := s.CreateAttendanceDate(context.Background(), d, rows); err != nil {
		t.Fatalf("CreateAttendanceDate(%s): %v", day.Format(types.DateLayout), err)
	}
	return d
}

func newBill(month time.Month, year int) *bill.MessBill {
	return &bill.MessBill{
		Entity:      types.NewEntity(),
		ID:          id.NewMessBillID(),
		Month:       month,
		Year:        year,
		PeriodStart: types.Date(year, month, 1),
		PeriodEnd:   types.Date(year, month, 10),
		Headcount:   2,
		MessDays:    10,
		MessAmount:  types.Rupees(6000),
		RoomRent:    types.Rupees(500),
		StaffSalary: types.Rupees(1000),
		Electricity: types.Rupees(500),
		Total:       types.Rupees(8500),
		RatePerDay:  types.INR(46154),
	}
}

func testStudents(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, b := newStudent("A", false), newStudent("B", true)
	for _, st := range []*student.Student{a, b} {
		if err := s.CreateStudent(ctx, st); err != nil {
			t.Fatalf("CreateStudent: %v", err)
		}
	}

	if err := s.CreateStudent(ctx, newStudent("A", false)); !errors.Is(err, hostel.ErrAlreadyExists) {
		t.Errorf("duplicate admission: got %v", err)
	}

	got, err := s.GetStudent(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetStudent: %v", err)
	}
	if got.ID.String() != b.ID.String() || !got.EGrantz || got.AdmissionNo != "B" {
		t.Errorf("GetStudent: got %+v", got)
	}
	if _, err := s.GetStudent(ctx, id.NewStudentID()); !errors.Is(err, hostel.ErrStudentNotFound) {
		t.Errorf("unknown student: got %v", err)
	}

	if err := s.ArchiveStudent(ctx, a.ID, time.Now().UTC()); err != nil {
		t.Fatalf("ArchiveStudent: %v", err)
	}
	if err := s.ArchiveStudent(ctx, id.NewStudentID(), time.Now()); !errors.Is(err, hostel.ErrStudentNotFound) {
		t.Errorf("archive unknown: got %v", err)
	}

	n, err := s.CountStudents(ctx)
	if err != nil {
		t.Fatalf("CountStudents: %v", err)
	}
	if n != 1 {
		t.Errorf("CountStudents: got %d, want 1", n)
	}

	active, err := s.ListStudents(ctx, student.ListOpts{Status: student.StatusActive})
	if err != nil {
		t.Fatalf("ListStudents: %v", err)
	}
	if len(active) != 1 || active[0].ID.String() != b.ID.String() {
		t.Errorf("active students: got %d", len(active))
	}
	all, _ := s.ListStudents(ctx, student.ListOpts{})
	if len(all) != 2 {
		t.Errorf("all students: got %d", len(all))
	}
	page, _ := s.ListStudents(ctx, student.ListOpts{Limit: 1, Offset: 1})
	if len(page) != 1 {
		t.Errorf("paged students: got %d", len(page))
	}

	archived, _ := s.GetStudent(ctx, a.ID)
	if archived.IsActive() || archived.ExitedAt == nil {
		t.Errorf("archived student: got %+v", archived)
	}
}

func testAttendance(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, b := newStudent("A", false), newStudent("B", false)
	for _, st := range []*student.Student{a, b} {
		if err := s.CreateStudent(ctx, st); err != nil {
			t.Fatalf("CreateStudent: %v", err)
		}
	}

	day := types.Date(2024, time.March, 5)
	d := newDay(s, t, day, a, b)

	ok, err := s.AttendanceExists(ctx, day)
	if err != nil || !ok {
		t.Fatalf("AttendanceExists: %v %v", ok, err)
	}
	if ok, _ := s.AttendanceExists(ctx, types.NextDay(day)); ok {
		t.Error("next day should not exist")
	}

	if err := s.CreateAttendanceDate(ctx, attendance.NewDate(day), nil); !errors.Is(err, hostel.ErrAttendanceAlreadyRecorded) {
		t.Errorf("duplicate day: got %v", err)
	}

	byDay, err := s.GetAttendanceDateByDay(ctx, day)
	if err != nil {
		t.Fatalf("GetAttendanceDateByDay: %v", err)
	}
	if byDay.ID.String() != d.ID.String() || byDay.Month != time.March || byDay.Year != 2024 {
		t.Errorf("GetAttendanceDateByDay: got %+v", byDay)
	}

	absent, err := s.ListAbsentees(ctx, d.ID)
	if err != nil {
		t.Fatalf("ListAbsentees: %v", err)
	}
	if len(absent) != 2 {
		t.Errorf("ListAbsentees: got %d", len(absent))
	}

	newDay(s, t, types.Date(2024, time.March, 3), a)
	newDay(s, t, types.Date(2024, time.April, 1))

	march, err := s.ListAttendanceDates(ctx, attendance.ListOpts{Month: time.March, Year: 2024})
	if err != nil {
		t.Fatalf("ListAttendanceDates: %v", err)
	}
	if len(march) != 2 || !march[0].Date.Before(march[1].Date) {
		t.Errorf("march dates: got %d", len(march))
	}

	hist, err := s.ListStudentAbsences(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListStudentAbsences: %v", err)
	}
	if len(hist) != 2 || !hist[0].Date.Equal(types.Date(2024, time.March, 3)) {
		t.Errorf("student absences: got %+v", hist)
	}

	if err := s.DeleteAttendanceDate(ctx, d.ID); err != nil {
		t.Fatalf("DeleteAttendanceDate: %v", err)
	}
	if _, err := s.GetAttendanceDate(ctx, d.ID); !errors.Is(err, hostel.ErrAttendanceNotFound) {
		t.Errorf("deleted date: got %v", err)
	}
	if _, err := s.ListAbsentees(ctx, d.ID); !errors.Is(err, hostel.ErrAttendanceNotFound) {
		t.Errorf("absentees of deleted date: got %v", err)
	}
	if err := s.DeleteAttendanceDate(ctx, d.ID); !errors.Is(err, hostel.ErrAttendanceNotFound) {
		t.Errorf("second delete: got %v", err)
	}
	hist, _ = s.ListStudentAbsences(ctx, b.ID)
	if len(hist) != 0 {
		t.Errorf("absences should cascade, got %d", len(hist))
	}

	// The day is free again.
	newDay(s, t, day)
}

func testAbsencesInRange(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, g := newStudent("A", false), newStudent("G", true)
	for _, st := range []*student.Student{a, g} {
		if err := s.CreateStudent(ctx, st); err != nil {
			t.Fatalf("CreateStudent: %v", err)
		}
	}

	// Recorded out of order on purpose.
	for _, d := range []int{9, 2, 5, 1, 10, 11} {
		newDay(s, t, types.Date(2024, time.March, d), a, g)
	}

	facts, err := s.AbsencesInRange(ctx, types.Date(2024, time.March, 2), types.Date(2024, time.March, 10))
	if err != nil {
		t.Fatalf("AbsencesInRange: %v", err)
	}
	if len(facts) != 8 {
		t.Fatalf("expected 8 facts in range, got %d", len(facts))
	}
	for i := 1; i < len(facts); i++ {
		prev, cur := facts[i-1], facts[i]
		if prev.StudentID.String() > cur.StudentID.String() ||
			(prev.StudentID.String() == cur.StudentID.String() && !prev.Date.Before(cur.Date)) {
			t.Fatalf("facts not ordered by student then date at %d", i)
		}
	}
	for _, f := range facts {
		want := f.StudentID.String() == g.ID.String()
		if f.EGrantz != want {
			t.Errorf("EGrantz flag for %s: got %v", f.StudentID, f.EGrantz)
		}
		if f.AttendanceID.IsNil() {
			t.Error("fact without attendance id")
		}
	}
}

func testBills(t *testing.T, s store.Store) {
	ctx := context.Background()
	st := newStudent("A", false)
	if err := s.CreateStudent(ctx, st); err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}

	mb := newBill(time.March, 2024)
	if err := s.CreateMessBill(ctx, mb); err != nil {
		t.Fatalf("CreateMessBill: %v", err)
	}
	if err := s.CreateMessBill(ctx, newBill(time.March, 2024)); !errors.Is(err, hostel.ErrDuplicateBillingPeriod) {
		t.Errorf("duplicate period: got %v", err)
	}
	if err := s.CreateMessBill(ctx, newBill(time.February, 2024)); err != nil {
		t.Fatalf("CreateMessBill(feb): %v", err)
	}
	if err := s.CreateMessBill(ctx, newBill(time.December, 2023)); err != nil {
		t.Fatalf("CreateMessBill(dec): %v", err)
	}

	ok, err := s.MessBillExists(ctx, time.March, 2024)
	if err != nil || !ok {
		t.Errorf("MessBillExists: %v %v", ok, err)
	}

	got, err := s.GetMessBillByPeriod(ctx, time.March, 2024)
	if err != nil {
		t.Fatalf("GetMessBillByPeriod: %v", err)
	}
	if got.ID.String() != mb.ID.String() || !got.Total.Equal(types.Rupees(8500)) || got.Headcount != 2 {
		t.Errorf("GetMessBillByPeriod: got %+v", got)
	}
	if !got.PeriodStart.Equal(mb.PeriodStart) || !got.PeriodEnd.Equal(mb.PeriodEnd) {
		t.Errorf("period bounds: got %v..%v", got.PeriodStart, got.PeriodEnd)
	}
	if _, err := s.GetMessBill(ctx, id.NewMessBillID()); !errors.Is(err, hostel.ErrBillNotFound) {
		t.Errorf("unknown bill: got %v", err)
	}

	bills, err := s.ListMessBills(ctx, bill.ListOpts{})
	if err != nil {
		t.Fatalf("ListMessBills: %v", err)
	}
	if len(bills) != 3 || bills[0].Month != time.March || bills[2].Year != 2023 {
		t.Errorf("ListMessBills should be newest first, got %d", len(bills))
	}
	y2024, _ := s.ListMessBills(ctx, bill.ListOpts{Year: 2024})
	if len(y2024) != 2 {
		t.Errorf("ListMessBills(2024): got %d", len(y2024))
	}

	sb := &bill.StudentBill{
		Entity: types.NewEntity(), ID: id.NewStudentBillID(), BillID: mb.ID, StudentID: st.ID,
		Month: time.March, Year: 2024, DaysPresent: 10, Share: types.Rupees(1250), Amount: types.INR(586538),
	}
	if err := s.CreateStudentBill(ctx, sb); err != nil {
		t.Fatalf("CreateStudentBill: %v", err)
	}
	dup := *sb
	dup.ID = id.NewStudentBillID()
	if err := s.CreateStudentBill(ctx, &dup); !errors.Is(err, hostel.ErrAlreadyExists) {
		t.Errorf("duplicate student bill: got %v", err)
	}
	orphan := *sb
	orphan.ID, orphan.BillID = id.NewStudentBillID(), id.NewMessBillID()
	if err := s.CreateStudentBill(ctx, &orphan); !errors.Is(err, hostel.ErrBillNotFound) {
		t.Errorf("orphan student bill: got %v", err)
	}

	rows, err := s.ListStudentBills(ctx, mb.ID)
	if err != nil {
		t.Fatalf("ListStudentBills: %v", err)
	}
	if len(rows) != 1 || !rows[0].Amount.Equal(types.INR(586538)) {
		t.Errorf("ListStudentBills: got %+v", rows)
	}

	ca := &bill.ContinuousAbsence{
		Entity: types.NewEntity(), ID: id.NewContinuousAbsenceID(), BillID: mb.ID, StudentID: st.ID,
		Month: time.March, Year: 2024, Days: 7,
		Runs: []bill.Run{{
			Start:         types.Date(2024, time.March, 1),
			End:           types.Date(2024, time.March, 7),
			Days:          7,
			AttendanceIDs: []id.AttendanceID{id.NewAttendanceID()},
		}},
	}
	if err := s.CreateStreak(ctx, ca); err != nil {
		t.Fatalf("CreateStreak: %v", err)
	}
	dupStreak := *ca
	dupStreak.ID = id.NewContinuousAbsenceID()
	if err := s.CreateStreak(ctx, &dupStreak); !errors.Is(err, hostel.ErrAlreadyExists) {
		t.Errorf("duplicate streak: got %v", err)
	}

	streaks, err := s.ListStreaks(ctx, mb.ID)
	if err != nil {
		t.Fatalf("ListStreaks: %v", err)
	}
	if len(streaks) != 1 || streaks[0].Days != 7 || len(streaks[0].Runs) != 1 {
		t.Fatalf("ListStreaks: got %+v", streaks)
	}
	if streaks[0].Runs[0].AttendanceIDs[0].String() != ca.Runs[0].AttendanceIDs[0].String() {
		t.Error("run attendance ids not preserved")
	}
}

func testBillCascade(t *testing.T, s store.Store) {
	ctx := context.Background()
	st := newStudent("A", false)
	if err := s.CreateStudent(ctx, st); err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}

	mb := newBill(time.March, 2024)
	if err := s.CreateMessBill(ctx, mb); err != nil {
		t.Fatalf("CreateMessBill: %v", err)
	}
	sb := &bill.StudentBill{
		Entity: types.NewEntity(), ID: id.NewStudentBillID(), BillID: mb.ID, StudentID: st.ID,
		Month: time.March, Year: 2024, Amount: types.Rupees(1),
	}
	if err := s.CreateStudentBill(ctx, sb); err != nil {
		t.Fatalf("CreateStudentBill: %v", err)
	}
	ca := &bill.ContinuousAbsence{
		Entity: types.NewEntity(), ID: id.NewContinuousAbsenceID(), BillID: mb.ID, StudentID: st.ID,
		Month: time.March, Year: 2024, Days: 7,
	}
	if err := s.CreateStreak(ctx, ca); err != nil {
		t.Fatalf("CreateStreak: %v", err)
	}

	if err := s.DeleteMessBill(ctx, mb.ID); err != nil {
		t.Fatalf("DeleteMessBill: %v", err)
	}
	if ok, _ := s.MessBillExists(ctx, time.March, 2024); ok {
		t.Error("bill should be gone")
	}
	if _, err := s.ListStudentBills(ctx, mb.ID); !errors.Is(err, hostel.ErrBillNotFound) {
		t.Errorf("student bills of deleted bill: got %v", err)
	}
	if err := s.DeleteMessBill(ctx, mb.ID); !errors.Is(err, hostel.ErrBillNotFound) {
		t.Errorf("second delete: got %v", err)
	}

	// The period and its per-student rows are free again.
	again := newBill(time.March, 2024)
	if err := s.CreateMessBill(ctx, again); err != nil {
		t.Fatalf("re-create bill: %v", err)
	}
	sb2 := *sb
	sb2.ID, sb2.BillID = id.NewStudentBillID(), again.ID
	if err := s.CreateStudentBill(ctx, &sb2); err != nil {
		t.Errorf("re-create student bill: %v", err)
	}
	ca2 := *ca
	ca2.ID, ca2.BillID = id.NewContinuousAbsenceID(), again.ID
	if err := s.CreateStreak(ctx, &ca2); err != nil {
		t.Errorf("re-create streak: %v", err)
	}
}
