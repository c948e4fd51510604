package hostel_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jitheshjr/hostel"
	"github.com/jitheshjr/hostel/attendance"
	"github.com/jitheshjr/hostel/bill"
	"github.com/jitheshjr/hostel/id"
	"github.com/jitheshjr/hostel/student"
	"github.com/jitheshjr/hostel/types"
)

func TestAddStudent(t *testing.T) {
	f := newFixture(t)

	s := &student.Student{AdmissionNo: "  H-101 ", Name: "Anu"}
	if err := f.engine.AddStudent(f.ctx, s); err != nil {
		t.Fatalf("AddStudent: %v", err)
	}
	if s.ID.IsNil() || s.ID.Prefix() != id.PrefixStudent {
		t.Errorf("expected a student ID, got %q", s.ID)
	}
	if s.AdmissionNo != "H-101" || s.Status != student.StatusActive || s.JoinedAt.IsZero() {
		t.Errorf("unexpected student: %+v", s)
	}

	got, err := f.engine.GetStudent(f.ctx, s.ID)
	if err != nil {
		t.Fatalf("GetStudent: %v", err)
	}
	if got.Name != "Anu" {
		t.Errorf("Name: got %q", got.Name)
	}

	err = f.engine.AddStudent(f.ctx, &student.Student{AdmissionNo: "H-101", Name: "Other"})
	if !errors.Is(err, hostel.ErrAlreadyExists) {
		t.Errorf("duplicate admission number: got %v", err)
	}

	tests := []struct {
		name  string
		s     *student.Student
		field string
	}{
		{"missing admission", &student.Student{Name: "X"}, "admission_no"},
		{"missing name", &student.Student{AdmissionNo: "H-9", Name: " "}, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.engine.AddStudent(f.ctx, tt.s)
			var ve hostel.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
			if !errors.Is(err, hostel.ErrInvalidInput) {
				t.Error("validation error should match ErrInvalidInput")
			}
		})
	}
}

func TestArchiveStudent(t *testing.T) {
	f := newFixture(t)
	a := f.student("A", false)
	f.student("B", false)

	if err := f.engine.ArchiveStudent(f.ctx, a.ID); err != nil {
		t.Fatalf("ArchiveStudent: %v", err)
	}
	if err := f.engine.ArchiveStudent(f.ctx, a.ID); !errors.Is(err, hostel.ErrStudentArchived) {
		t.Errorf("second archive: got %v", err)
	}
	if err := f.engine.ArchiveStudent(f.ctx, id.NewStudentID()); !hostel.IsNotFound(err) {
		t.Errorf("unknown student: got %v", err)
	}

	got, _ := f.engine.GetStudent(f.ctx, a.ID)
	if got.IsActive() || got.ExitedAt == nil {
		t.Errorf("expected archived student, got %+v", got)
	}

	active, err := f.engine.ListStudents(f.ctx, student.ListOpts{Status: student.StatusActive})
	if err != nil {
		t.Fatalf("ListStudents: %v", err)
	}
	all, _ := f.engine.ListStudents(f.ctx, student.ListOpts{})
	if len(active) != 1 || len(all) != 2 {
		t.Errorf("active/all: got %d/%d", len(active), len(all))
	}
}

func TestMarkAttendance(t *testing.T) {
	f := newFixture(t)
	a := f.student("A", false)
	b := f.student("B", false)
	day := types.Date(2024, time.March, 4)

	d, err := f.engine.MarkAttendance(f.ctx, day, []id.StudentID{a.ID, a.ID})
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}
	if d.Month != time.March || d.Year != 2024 {
		t.Errorf("derived period: got %s %d", d.Month, d.Year)
	}

	got, absent, err := f.engine.GetAttendance(f.ctx, d.ID)
	if err != nil {
		t.Fatalf("GetAttendance: %v", err)
	}
	if !got.Date.Equal(day) {
		t.Errorf("Date: got %v", got.Date)
	}
	if len(absent) != 1 || absent[0].StudentID.String() != a.ID.String() {
		t.Errorf("absentees: got %+v", absent)
	}

	_, err = f.engine.MarkAttendance(f.ctx, day.Add(15*time.Hour), []id.StudentID{b.ID})
	if !errors.Is(err, hostel.ErrAttendanceAlreadyRecorded) {
		t.Errorf("same day twice: got %v", err)
	}

	_, err = f.engine.MarkAttendance(f.ctx, types.NextDay(day), []id.StudentID{id.NewStudentID()})
	if !errors.Is(err, hostel.ErrStudentNotFound) {
		t.Errorf("unknown student: got %v", err)
	}
	if ok, _ := f.store.AttendanceExists(f.ctx, types.NextDay(day)); ok {
		t.Error("failed mark must not record the day")
	}

	if err := f.engine.ArchiveStudent(f.ctx, b.ID); err != nil {
		t.Fatalf("ArchiveStudent: %v", err)
	}
	_, err = f.engine.MarkAttendance(f.ctx, types.NextDay(day), []id.StudentID{b.ID})
	if !errors.Is(err, hostel.ErrStudentArchived) {
		t.Errorf("archived student: got %v", err)
	}
}

func TestAttendanceQueries(t *testing.T) {
	f := newFixture(t)
	a := f.student("A", false)
	for _, s := range []string{"B", "C", "D"} {
		f.student(s, false)
	}
	f.march(1, 3, absentWhen(a, 2, 3))

	if _, err := f.engine.MarkAttendance(f.ctx, types.Date(2024, time.April, 1), nil); err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}

	march, err := f.engine.ListAttendanceDates(f.ctx, attendance.ListOpts{Month: time.March, Year: 2024})
	if err != nil {
		t.Fatalf("ListAttendanceDates: %v", err)
	}
	if len(march) != 3 {
		t.Errorf("march dates: got %d, want 3", len(march))
	}

	summary, err := f.engine.AttendanceSummary(f.ctx, types.Date(2024, time.March, 2))
	if err != nil {
		t.Fatalf("AttendanceSummary: %v", err)
	}
	if summary.Total != 4 || summary.Absent != 1 || summary.Present != 3 || summary.Percentage != 75 {
		t.Errorf("summary: got %+v", summary)
	}

	if _, err := f.engine.AttendanceSummary(f.ctx, types.Date(2024, time.May, 1)); !hostel.IsNotFound(err) {
		t.Errorf("unrecorded day: got %v", err)
	}

	absences, err := f.engine.StudentAbsences(f.ctx, a.ID)
	if err != nil {
		t.Fatalf("StudentAbsences: %v", err)
	}
	if len(absences) != 2 || !absences[0].Date.Before(absences[1].Date) {
		t.Errorf("absences: got %+v", absences)
	}
}

func TestDeleteAttendance(t *testing.T) {
	f := newFixture(t)
	a := f.student("A", false)
	d, err := f.engine.MarkAttendance(f.ctx, types.Date(2024, time.March, 1), []id.StudentID{a.ID})
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}

	if err := f.engine.DeleteAttendance(f.ctx, d.ID); err != nil {
		t.Fatalf("DeleteAttendance: %v", err)
	}
	if _, _, err := f.engine.GetAttendance(f.ctx, d.ID); !errors.Is(err, hostel.ErrAttendanceNotFound) {
		t.Errorf("after delete: got %v", err)
	}
	absences, _ := f.engine.StudentAbsences(f.ctx, a.ID)
	if len(absences) != 0 {
		t.Errorf("absences should cascade, got %d", len(absences))
	}

	// The day can be recorded again.
	if _, err := f.engine.MarkAttendance(f.ctx, types.Date(2024, time.March, 1), nil); err != nil {
		t.Errorf("re-mark: %v", err)
	}
}

func TestBillQueriesAndDelete(t *testing.T) {
	f := newFixture(t)
	a := f.student("A", false)
	f.student("B", true)
	f.march(1, 10, absentWhen(a, 1, 7))

	mb, err := f.engine.GenerateBill(f.ctx, scenarioRequest())
	if err != nil {
		t.Fatalf("GenerateBill: %v", err)
	}

	got, err := f.engine.GetBill(f.ctx, time.March, 2024)
	if err != nil {
		t.Fatalf("GetBill: %v", err)
	}
	if got.ID.String() != mb.ID.String() {
		t.Errorf("GetBill: got %s, want %s", got.ID, mb.ID)
	}
	byID, err := f.engine.GetBillByID(f.ctx, mb.ID)
	if err != nil || byID.Month != time.March {
		t.Errorf("GetBillByID: %v %+v", err, byID)
	}

	egrantz, regular, err := f.engine.StudentBills(f.ctx, mb.ID)
	if err != nil {
		t.Fatalf("StudentBills: %v", err)
	}
	if len(egrantz) != 1 || len(regular) != 1 {
		t.Errorf("split: got %d e-grantz, %d regular", len(egrantz), len(regular))
	}

	for _, year := range []struct {
		year int
		want int
	}{{2024, 1}, {2023, 0}, {0, 1}} {
		bills, err := f.engine.ListBills(f.ctx, bill.ListOpts{Year: year.year})
		if err != nil {
			t.Fatalf("ListBills: %v", err)
		}
		if len(bills) != year.want {
			t.Errorf("ListBills(%d): got %d, want %d", year.year, len(bills), year.want)
		}
	}

	if err := f.engine.DeleteBill(f.ctx, mb.ID); err != nil {
		t.Fatalf("DeleteBill: %v", err)
	}
	if _, err := f.engine.GetBill(f.ctx, time.March, 2024); !errors.Is(err, hostel.ErrBillNotFound) {
		t.Errorf("after delete: got %v", err)
	}
	if _, _, err := f.engine.StudentBills(f.ctx, mb.ID); !hostel.IsNotFound(err) {
		t.Errorf("student bills after delete: got %v", err)
	}
	if err := f.engine.DeleteBill(f.ctx, mb.ID); !hostel.IsNotFound(err) {
		t.Errorf("second delete: got %v", err)
	}

	if _, err := f.engine.GenerateBill(f.ctx, scenarioRequest()); err != nil {
		t.Errorf("regenerate after delete: %v", err)
	}
}

// recorder is a plugin that records every hook it receives.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(e string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.events {
		if got == e {
			n++
		}
	}
	return n
}

func (r *recorder) OnInit(context.Context, any) error { r.add("init"); return nil }
func (r *recorder) OnStudentAdded(context.Context, *student.Student) error {
	r.add("student.added")
	return nil
}
func (r *recorder) OnStudentArchived(context.Context, string) error {
	r.add("student.archived")
	return nil
}
func (r *recorder) OnAttendanceMarked(context.Context, *attendance.Date, int) error {
	r.add("attendance.marked")
	return nil
}
func (r *recorder) OnBillGenerated(context.Context, *bill.MessBill, time.Duration) error {
	r.add("bill.generated")
	return nil
}
func (r *recorder) OnBillRejected(context.Context, time.Month, int, error) error {
	r.add("bill.rejected")
	return nil
}
func (r *recorder) OnBillDeleted(context.Context, string) error {
	r.add("bill.deleted")
	return nil
}
func (r *recorder) OnStreakDetected(context.Context, *bill.ContinuousAbsence) error {
	r.add("streak.detected")
	return errors.New("hook errors are logged, not returned")
}

func TestPluginHooks(t *testing.T) {
	rec := &recorder{}
	f := newFixture(t, hostel.WithPlugin(rec))

	a := f.student("A", false)
	b := f.student("B", false)
	f.march(1, 10, absentWhen(a, 1, 7))

	mb, err := f.engine.GenerateBill(f.ctx, scenarioRequest())
	if err != nil {
		t.Fatalf("GenerateBill: %v", err)
	}
	if _, err := f.engine.GenerateBill(f.ctx, scenarioRequest()); err == nil {
		t.Fatal("expected duplicate rejection")
	}
	if err := f.engine.DeleteBill(f.ctx, mb.ID); err != nil {
		t.Fatalf("DeleteBill: %v", err)
	}
	if err := f.engine.ArchiveStudent(f.ctx, b.ID); err != nil {
		t.Fatalf("ArchiveStudent: %v", err)
	}

	want := map[string]int{
		"init":              1,
		"student.added":     2,
		"student.archived":  1,
		"attendance.marked": 10,
		"bill.generated":    1,
		"bill.rejected":     1,
		"bill.deleted":      1,
		"streak.detected":   1,
	}
	for event, n := range want {
		if got := rec.count(event); got != n {
			t.Errorf("%s: got %d, want %d", event, got, n)
		}
	}
	if f.engine.Plugins().Get("recorder") == nil {
		t.Error("recorder should be registered")
	}
}
