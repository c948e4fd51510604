package hostel_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jitheshjr/hostel"
	"github.com/jitheshjr/hostel/bill"
	"github.com/jitheshjr/hostel/id"
	"github.com/jitheshjr/hostel/store/memory"
	"github.com/jitheshjr/hostel/student"
	"github.com/jitheshjr/hostel/types"
)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *memory.Store
	engine *hostel.Engine
}

func newFixture(t *testing.T, opts ...hostel.Option) *fixture {
	t.Helper()

	s := memory.New()
	opts = append([]hostel.Option{hostel.WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	e := hostel.New(s, opts...)

	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = e.Stop() })

	return &fixture{t: t, ctx: ctx, store: s, engine: e}
}

func (f *fixture) student(admission string, egrantz bool) *student.Student {
	f.t.Helper()
	s := &student.Student{AdmissionNo: admission, Name: "Student " + admission, EGrantz: egrantz}
	if err := f.engine.AddStudent(f.ctx, s); err != nil {
		f.t.Fatalf("AddStudent(%s): %v", admission, err)
	}
	return s
}

// march records attendance for each day in [from, to] of March 2024. absent
// reports who was absent on a given day.
func (f *fixture) march(from, to int, absent func(day int) []*student.Student) {
	f.t.Helper()
	for d := from; d <= to; d++ {
		var ids []id.StudentID
		if absent != nil {
			for _, s := range absent(d) {
				ids = append(ids, s.ID)
			}
		}
		if _, err := f.engine.MarkAttendance(f.ctx, types.Date(2024, time.March, d), ids); err != nil {
			f.t.Fatalf("MarkAttendance(%d): %v", d, err)
		}
	}
}

func absentWhen(s *student.Student, from, to int) func(int) []*student.Student {
	return func(day int) []*student.Student {
		if day >= from && day <= to {
			return []*student.Student{s}
		}
		return nil
	}
}

// scenarioRequest is the reference period: 10 days, mess 6000, rent 500,
// staff 1000, electricity 500.
func scenarioRequest() hostel.Request {
	return hostel.Request{
		PeriodStart: types.Date(2024, time.March, 1),
		PeriodEnd:   types.Date(2024, time.March, 10),
		MessAmount:  types.Rupees(6000),
		RoomRent:    types.Rupees(500),
		StaffSalary: types.Rupees(1000),
		Electricity: types.Rupees(500),
	}
}

func (f *fixture) rows(b *bill.MessBill) map[string]*bill.StudentBill {
	f.t.Helper()
	egrantz, regular, err := f.engine.StudentBills(f.ctx, b.ID)
	if err != nil {
		f.t.Fatalf("StudentBills: %v", err)
	}
	out := make(map[string]*bill.StudentBill)
	for _, r := range append(egrantz, regular...) {
		out[r.StudentID.String()] = r
	}
	return out
}

func TestGenerateScenario(t *testing.T) {
	tests := []struct {
		name     string
		bEGrantz bool
		wantA    types.Money
		wantB    types.Money
		shareB   types.Money
	}{
		{"regular students", false, types.INR(263462), types.INR(586538), types.Rupees(1250)},
		{"e-grantz student", true, types.INR(263462), types.INR(616538), types.Rupees(1550)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			a := f.student("A", false)
			b := f.student("B", tt.bEGrantz)
			f.march(1, 10, absentWhen(a, 1, 7))

			mb, err := f.engine.GenerateBill(f.ctx, scenarioRequest())
			if err != nil {
				t.Fatalf("GenerateBill: %v", err)
			}

			if mb.Month != time.March || mb.Year != 2024 {
				t.Errorf("period: got %s %d", mb.Month, mb.Year)
			}
			if mb.Headcount != 2 || mb.MessDays != 10 {
				t.Errorf("headcount/mess days: got %d/%d", mb.Headcount, mb.MessDays)
			}
			if mb.ReductionDays != 7 || mb.ChargeableDays != 13 {
				t.Errorf("reduction/chargeable: got %d/%d", mb.ReductionDays, mb.ChargeableDays)
			}
			if !mb.RatePerDay.Equal(types.INR(46154)) {
				t.Errorf("rate: got %v", mb.RatePerDay)
			}
			if !mb.Total.Equal(types.Rupees(8500)) {
				t.Errorf("total: got %v", mb.Total)
			}

			rows := f.rows(mb)
			if len(rows) != 2 {
				t.Fatalf("expected 2 student bills, got %d", len(rows))
			}

			ra, rb := rows[a.ID.String()], rows[b.ID.String()]
			if !ra.Amount.Equal(tt.wantA) || ra.DaysPresent != 3 || ra.ReductionDays != 7 {
				t.Errorf("A: got %v, %d days, %d reduced", ra.Amount, ra.DaysPresent, ra.ReductionDays)
			}
			if !ra.Share.Equal(types.Rupees(1250)) {
				t.Errorf("A share: got %v", ra.Share)
			}
			if !rb.Amount.Equal(tt.wantB) || rb.DaysPresent != 10 || rb.ReductionDays != 0 {
				t.Errorf("B: got %v, %d days, %d reduced", rb.Amount, rb.DaysPresent, rb.ReductionDays)
			}
			if !rb.Share.Equal(tt.shareB) {
				t.Errorf("B share: got %v, want %v", rb.Share, tt.shareB)
			}
			if rb.EGrantz != tt.bEGrantz {
				t.Errorf("B EGrantz: got %v", rb.EGrantz)
			}
		})
	}
}

func TestGenerateStreakTraceability(t *testing.T) {
	f := newFixture(t)
	a := f.student("A", false)
	f.student("B", false)
	f.march(1, 10, absentWhen(a, 1, 7))

	mb, err := f.engine.GenerateBill(f.ctx, scenarioRequest())
	if err != nil {
		t.Fatalf("GenerateBill: %v", err)
	}

	streaks, err := f.engine.Streaks(f.ctx, mb.ID)
	if err != nil {
		t.Fatalf("Streaks: %v", err)
	}
	if len(streaks) != 1 {
		t.Fatalf("expected 1 streak, got %d", len(streaks))
	}
	ca := streaks[0]
	if ca.StudentID.String() != a.ID.String() || ca.Days != 7 {
		t.Errorf("streak: got %s/%d", ca.StudentID, ca.Days)
	}
	if len(ca.Runs) != 1 || len(ca.Runs[0].AttendanceIDs) != 7 {
		t.Fatalf("expected one run of 7 attendance rows, got %+v", ca.Runs)
	}

	absences, err := f.engine.StudentAbsences(f.ctx, a.ID)
	if err != nil {
		t.Fatalf("StudentAbsences: %v", err)
	}
	for i, att := range absences {
		if ca.Runs[0].AttendanceIDs[i].String() != att.ID.String() {
			t.Errorf("run row %d: got %s, want %s", i, ca.Runs[0].AttendanceIDs[i], att.ID)
		}
	}
}

func TestGenerateEGrantzNeverReduced(t *testing.T) {
	f := newFixture(t)
	a := f.student("A", true)
	f.student("B", false)
	f.march(1, 10, absentWhen(a, 1, 10))

	mb, err := f.engine.GenerateBill(f.ctx, scenarioRequest())
	if err != nil {
		t.Fatalf("GenerateBill: %v", err)
	}
	if mb.ReductionDays != 0 || mb.ChargeableDays != 20 {
		t.Errorf("reduction/chargeable: got %d/%d", mb.ReductionDays, mb.ChargeableDays)
	}

	// 6000/20*10 + 1550
	if got := f.rows(mb)[a.ID.String()].Amount; !got.Equal(types.Rupees(4550)) {
		t.Errorf("A: got %v", got)
	}
	streaks, _ := f.engine.Streaks(f.ctx, mb.ID)
	if len(streaks) != 0 {
		t.Errorf("expected no streaks, got %d", len(streaks))
	}
}

func TestGenerateDuplicatePeriod(t *testing.T) {
	f := newFixture(t)
	f.student("A", false)
	f.march(1, 10, nil)

	if _, err := f.engine.GenerateBill(f.ctx, scenarioRequest()); err != nil {
		t.Fatalf("first GenerateBill: %v", err)
	}

	// A different range in the same month is the same period.
	req := scenarioRequest()
	req.PeriodEnd = types.Date(2024, time.March, 5)
	_, err := f.engine.GenerateBill(f.ctx, req)
	if !errors.Is(err, hostel.ErrDuplicateBillingPeriod) {
		t.Fatalf("expected ErrDuplicateBillingPeriod, got %v", err)
	}
	if !hostel.IsConflict(err) {
		t.Error("duplicate period should be a conflict")
	}

	bills, err := f.engine.ListBills(f.ctx, bill.ListOpts{})
	if err != nil {
		t.Fatalf("ListBills: %v", err)
	}
	if len(bills) != 1 {
		t.Errorf("expected exactly 1 bill, got %d", len(bills))
	}
}

func TestGenerateRejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture)
		request func() hostel.Request
		want    error
	}{
		{
			name: "missing end boundary",
			setup: func(f *fixture) {
				f.student("A", false)
				f.march(1, 9, nil)
			},
			request: scenarioRequest,
			want:    hostel.ErrAttendanceGap,
		},
		{
			name: "missing start boundary",
			setup: func(f *fixture) {
				f.student("A", false)
				f.march(2, 10, nil)
			},
			request: scenarioRequest,
			want:    hostel.ErrAttendanceGap,
		},
		{
			name: "no students",
			setup: func(f *fixture) {
				f.march(1, 1, nil)
				f.march(10, 10, nil)
			},
			request: scenarioRequest,
			want:    hostel.ErrDivisionByZero,
		},
		{
			name: "everyone absent the whole period",
			setup: func(f *fixture) {
				a := f.student("A", false)
				f.march(1, 10, absentWhen(a, 1, 10))
			},
			request: scenarioRequest,
			want:    hostel.ErrArithmeticPolicy,
		},
		{
			name:  "end before start",
			setup: func(f *fixture) { f.student("A", false) },
			request: func() hostel.Request {
				r := scenarioRequest()
				r.PeriodStart, r.PeriodEnd = r.PeriodEnd, r.PeriodStart
				return r
			},
			want: hostel.ErrInvalidInput,
		},
		{
			name:  "negative cost",
			setup: func(f *fixture) { f.student("A", false) },
			request: func() hostel.Request {
				r := scenarioRequest()
				r.Electricity = types.INR(-1)
				return r
			},
			want: hostel.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			_, err := f.engine.GenerateBill(f.ctx, tt.request())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !hostel.IsUserCorrectable(err) {
				t.Errorf("%v should be user-correctable", err)
			}

			exists, err := f.store.MessBillExists(f.ctx, time.March, 2024)
			if err != nil {
				t.Fatalf("MessBillExists: %v", err)
			}
			if exists {
				t.Error("rejected request must not leave a bill behind")
			}
		})
	}
}

func TestGenerateGapBetweenBoundariesAllowed(t *testing.T) {
	f := newFixture(t)
	f.student("A", false)
	f.march(1, 1, nil)
	f.march(10, 10, nil)

	mb, err := f.engine.GenerateBill(f.ctx, scenarioRequest())
	if err != nil {
		t.Fatalf("GenerateBill: %v", err)
	}
	if mb.MessDays != 10 {
		t.Errorf("mess days: got %d, want 10", mb.MessDays)
	}
}

func TestGenerateRoundingDrift(t *testing.T) {
	f := newFixture(t)
	for _, adm := range []string{"A", "B", "C"} {
		f.student(adm, false)
	}
	f.march(1, 3, nil)

	mb, err := f.engine.GenerateBill(f.ctx, hostel.Request{
		PeriodStart: types.Date(2024, time.March, 1),
		PeriodEnd:   types.Date(2024, time.March, 3),
		MessAmount:  types.Rupees(1000),
		RoomRent:    types.INR(0),
		StaffSalary: types.Rupees(100),
		Electricity: types.INR(0),
	})
	if err != nil {
		t.Fatalf("GenerateBill: %v", err)
	}

	var sum int64
	for _, r := range f.rows(mb) {
		if !r.Amount.Equal(types.INR(36667)) {
			t.Errorf("student amount: got %v, want ₹366.67", r.Amount)
		}
		sum += r.Amount.Amount
	}

	drift := sum - mb.Total.Amount
	if drift < 0 {
		drift = -drift
	}
	if drift > int64(mb.Headcount) {
		t.Errorf("drift of %d paise exceeds one paisa per head", drift)
	}
	if drift == 0 {
		t.Error("expected a one paisa drift for this split")
	}
}

func TestGenerateArchivedStudentExcluded(t *testing.T) {
	f := newFixture(t)
	f.student("A", false)
	b := f.student("B", false)
	gone := f.student("C", false)
	f.march(1, 10, absentWhen(gone, 1, 10))

	if err := f.engine.ArchiveStudent(f.ctx, gone.ID); err != nil {
		t.Fatalf("ArchiveStudent: %v", err)
	}

	mb, err := f.engine.GenerateBill(f.ctx, scenarioRequest())
	if err != nil {
		t.Fatalf("GenerateBill: %v", err)
	}
	if mb.Headcount != 2 || mb.ReductionDays != 0 {
		t.Errorf("headcount/reduction: got %d/%d", mb.Headcount, mb.ReductionDays)
	}
	rows := f.rows(mb)
	if _, ok := rows[gone.ID.String()]; ok {
		t.Error("archived student must not be billed")
	}
	if _, ok := rows[b.ID.String()]; !ok {
		t.Error("active student missing from bill")
	}
}

// archivingRoster archives a student right after the roster has been read,
// as a concurrent request would.
type archivingRoster struct {
	*memory.Store
	t      *testing.T
	victim id.StudentID
}

func (r *archivingRoster) archive(ctx context.Context) {
	r.t.Helper()
	if err := r.Store.ArchiveStudent(ctx, r.victim, time.Now().UTC()); err != nil && !errors.Is(err, hostel.ErrStudentArchived) {
		r.t.Fatalf("ArchiveStudent: %v", err)
	}
}

func (r *archivingRoster) ListStudents(ctx context.Context, opts student.ListOpts) ([]*student.Student, error) {
	out, err := r.Store.ListStudents(ctx, opts)
	r.archive(ctx)
	return out, err
}

func (r *archivingRoster) CountStudents(ctx context.Context) (int, error) {
	n, err := r.Store.CountStudents(ctx)
	r.archive(ctx)
	return n, err
}

func TestGenerateHeadcountMatchesBilledRows(t *testing.T) {
	f := newFixture(t)
	a := f.student("A", false)
	f.student("B", false)
	f.march(1, 10, nil)

	roster := &archivingRoster{Store: f.store, t: t, victim: a.ID}
	g := hostel.NewGenerator(f.store, roster, f.store)
	g.Logger = slog.New(slog.DiscardHandler)

	mb, err := g.Generate(f.ctx, scenarioRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	rows := f.rows(mb)
	if mb.Headcount != len(rows) {
		t.Fatalf("headcount %d but %d student bills", mb.Headcount, len(rows))
	}

	var sum int64
	for _, r := range rows {
		sum += r.Amount.Amount
	}
	if drift := mb.Total.Amount - sum; drift < -int64(mb.Headcount) || drift > int64(mb.Headcount) {
		t.Errorf("student bills sum to %d paise, total is %d", sum, mb.Total.Amount)
	}
}

// failingStore fails student bill writes after the first one. With
// failDelete set the compensating delete fails too.
type failingStore struct {
	*memory.Store
	writes     int
	failDelete bool
}

var (
	errWriteFailed  = errors.New("write failed")
	errDeleteFailed = errors.New("delete failed")
)

func (s *failingStore) DeleteMessBill(ctx context.Context, billID id.MessBillID) error {
	if s.failDelete {
		return errDeleteFailed
	}
	return s.Store.DeleteMessBill(ctx, billID)
}

func (s *failingStore) CreateStudentBill(ctx context.Context, sb *bill.StudentBill) error {
	s.writes++
	if s.writes > 1 {
		return errWriteFailed
	}
	return s.Store.CreateStudentBill(ctx, sb)
}

func TestGenerateCompensatesPartialWrite(t *testing.T) {
	f := newFixture(t)
	a := f.student("A", false)
	f.student("B", false)
	f.march(1, 10, absentWhen(a, 1, 7))

	fs := &failingStore{Store: f.store}
	g := hostel.NewGenerator(f.store, f.store, fs)
	g.Logger = slog.New(slog.DiscardHandler)

	_, err := g.Generate(f.ctx, scenarioRequest())
	if !errors.Is(err, errWriteFailed) {
		t.Fatalf("expected write failure, got %v", err)
	}

	exists, err := f.store.MessBillExists(f.ctx, time.March, 2024)
	if err != nil {
		t.Fatalf("MessBillExists: %v", err)
	}
	if exists {
		t.Fatal("bill should be removed after a failed child write")
	}

	// The period can be generated again once the store recovers.
	mb, err := hostel.NewGenerator(f.store, f.store, f.store).Generate(f.ctx, scenarioRequest())
	if err != nil {
		t.Fatalf("retry Generate: %v", err)
	}
	if rows := f.rows(mb); len(rows) != 2 {
		t.Errorf("expected 2 rows after retry, got %d", len(rows))
	}
}

func TestGenerateReportsFailedCompensation(t *testing.T) {
	f := newFixture(t)
	a := f.student("A", false)
	f.student("B", false)
	f.march(1, 10, absentWhen(a, 1, 7))

	fs := &failingStore{Store: f.store, failDelete: true}
	g := hostel.NewGenerator(f.store, f.store, fs)
	g.Logger = slog.New(slog.DiscardHandler)

	_, err := g.Generate(f.ctx, scenarioRequest())
	var multi hostel.MultiError
	if !errors.As(err, &multi) || len(multi.Errors) != 2 {
		t.Fatalf("expected a two-error MultiError, got %v", err)
	}
	if !errors.Is(err, errWriteFailed) || !errors.Is(err, errDeleteFailed) {
		t.Errorf("both causes should be reachable: %v", err)
	}

	exists, err := f.store.MessBillExists(f.ctx, time.March, 2024)
	if err != nil {
		t.Fatalf("MessBillExists: %v", err)
	}
	if !exists {
		t.Error("the undeleted bill should still be in the store")
	}
}

func TestGenerateWithOptions(t *testing.T) {
	f := newFixture(t, hostel.WithMinStreakDays(3))
	a := f.student("A", false)
	f.student("B", false)
	f.march(1, 10, absentWhen(a, 2, 4))

	mb, err := f.engine.GenerateBill(f.ctx, scenarioRequest())
	if err != nil {
		t.Fatalf("GenerateBill: %v", err)
	}
	if mb.ReductionDays != 3 {
		t.Errorf("reduction days: got %d, want 3", mb.ReductionDays)
	}
}
