package hostel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jitheshjr/hostel/allocation"
	"github.com/jitheshjr/hostel/attendance"
	"github.com/jitheshjr/hostel/bill"
	"github.com/jitheshjr/hostel/id"
	"github.com/jitheshjr/hostel/streak"
	"github.com/jitheshjr/hostel/student"
	"github.com/jitheshjr/hostel/types"
)

// LedgerReader reads the attendance ledger.
type LedgerReader interface {
	AttendanceExists(ctx context.Context, day time.Time) (bool, error)
	AbsencesInRange(ctx context.Context, start, end time.Time) ([]attendance.Absence, error)
}

// RosterReader reads the active student roster.
type RosterReader interface {
	ListStudents(ctx context.Context, opts student.ListOpts) ([]*student.Student, error)
}

// BillWriter persists generated bills.
type BillWriter interface {
	MessBillExists(ctx context.Context, month time.Month, year int) (bool, error)
	CreateMessBill(ctx context.Context, b *bill.MessBill) error
	CreateStudentBill(ctx context.Context, sb *bill.StudentBill) error
	CreateStreak(ctx context.Context, ca *bill.ContinuousAbsence) error
	DeleteMessBill(ctx context.Context, billID id.MessBillID) error
}

// Request holds the inputs for one billing period. The bill is filed under
// the month and year of PeriodStart.
type Request struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	MessAmount  types.Money
	RoomRent    types.Money
	StaffSalary types.Money
	Electricity types.Money
}

func (r Request) validate() error {
	if r.PeriodStart.IsZero() {
		return ValidationError{Field: "period_start", Message: "required"}
	}
	if r.PeriodEnd.IsZero() {
		return ValidationError{Field: "period_end", Message: "required"}
	}
	if types.Day(r.PeriodEnd).Before(types.Day(r.PeriodStart)) {
		return ValidationError{Field: "period_end", Message: "must not be before period_start"}
	}

	amounts := []struct {
		field string
		m     types.Money
	}{
		{"mess_amount", r.MessAmount},
		{"room_rent", r.RoomRent},
		{"staff_salary", r.StaffSalary},
		{"electricity", r.Electricity},
	}
	for _, a := range amounts {
		if a.m.IsNegative() {
			return ValidationError{Field: a.field, Message: "must not be negative"}
		}
		if a.m.Currency != "" && a.m.Currency != types.CurrencyINR {
			return ValidationError{Field: a.field, Message: "unsupported currency " + a.m.Currency}
		}
	}
	return nil
}

// Generator turns an attendance ledger and a period's costs into a mess bill.
// The zero value is not usable; construct with NewGenerator.
type Generator struct {
	Ledger LedgerReader
	Roster RosterReader
	Bills  BillWriter

	// Detector finds qualifying absence runs. Defaults to streak.New().
	Detector *streak.Detector
	// Supplement is added to an E-Grantz student's share.
	Supplement decimal.Decimal
	Logger     *slog.Logger
}

// NewGenerator returns a Generator with the default threshold and supplement.
func NewGenerator(ledger LedgerReader, roster RosterReader, bills BillWriter) *Generator {
	return &Generator{
		Ledger:     ledger,
		Roster:     roster,
		Bills:      bills,
		Detector:   streak.New(),
		Supplement: allocation.DefaultStipendSupplement,
		Logger:     slog.Default(),
	}
}

// Generated is a persisted mess bill with its children.
type Generated struct {
	Bill         *bill.MessBill
	StudentBills []*bill.StudentBill
	Streaks      []*bill.ContinuousAbsence
}

// Generate validates the request, computes every bill row and persists them.
// It fails with ErrDuplicateBillingPeriod, ErrAttendanceGap,
// ErrDivisionByZero or ErrArithmeticPolicy before anything is written.
func (g *Generator) Generate(ctx context.Context, req Request) (*bill.MessBill, error) {
	out, err := g.generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return out.Bill, nil
}

func (g *Generator) generate(ctx context.Context, req Request) (*Generated, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	start, end := types.Day(req.PeriodStart), types.Day(req.PeriodEnd)

	exists, err := g.Bills.MessBillExists(ctx, start.Month(), start.Year())
	if err != nil {
		return nil, fmt.Errorf("hostel: check bill period: %w", err)
	}
	if exists {
		return nil, ErrDuplicateBillingPeriod
	}

	for _, day := range []time.Time{start, end} {
		ok, err := g.Ledger.AttendanceExists(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("hostel: check attendance: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrAttendanceGap, day.Format(types.DateLayout))
		}
	}

	out, err := g.compute(ctx, start, end, req)
	if err != nil {
		return nil, err
	}
	if err := g.persist(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// compute builds the bill and all child rows without writing anything.
func (g *Generator) compute(ctx context.Context, start, end time.Time, req Request) (*Generated, error) {
	// One roster read fixes both the headcount and the billed rows.
	roster, err := g.Roster.ListStudents(ctx, student.ListOpts{Status: student.StatusActive})
	if err != nil {
		return nil, fmt.Errorf("hostel: list students: %w", err)
	}
	headcount := len(roster)

	costs := allocation.Costs{
		RoomRent:    req.RoomRent.Decimal(),
		StaffSalary: req.StaffSalary.Decimal(),
		Electricity: req.Electricity.Decimal(),
	}
	shares, err := allocation.AllocateWith(costs, headcount, g.Supplement)
	if err != nil {
		return nil, err
	}

	facts, err := g.Ledger.AbsencesInRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("hostel: read absences: %w", err)
	}
	results := g.Detector.Detect(facts)

	messDays := types.DaysInclusive(start, end)
	mess := req.MessAmount.Decimal()

	b := &bill.MessBill{
		Entity:      types.NewEntity(),
		ID:          id.NewMessBillID(),
		Month:       start.Month(),
		Year:        start.Year(),
		PeriodStart: start,
		PeriodEnd:   end,
		Headcount:   headcount,
		MessDays:    messDays,
		MessAmount:  req.MessAmount,
		RoomRent:    req.RoomRent,
		StaffSalary: req.StaffSalary,
		Electricity: req.Electricity,
		Total:       types.FromDecimal(allocation.Total(mess, costs, headcount), types.CurrencyINR),
	}
	out := &Generated{Bill: b}

	// Only students on the roster are billed, so only their runs reduce the
	// chargeable days.
	for _, st := range roster {
		res, ok := results[st.ID.String()]
		if !ok {
			continue
		}
		b.ReductionDays += res.Days
		out.Streaks = append(out.Streaks, &bill.ContinuousAbsence{
			Entity:    types.NewEntity(),
			ID:        id.NewContinuousAbsenceID(),
			BillID:    b.ID,
			StudentID: st.ID,
			Month:     b.Month,
			Year:      b.Year,
			Days:      res.Days,
			Runs:      billRuns(res.Runs),
		})
	}

	b.ChargeableDays = messDays*headcount - b.ReductionDays
	if b.ChargeableDays <= 0 {
		return nil, fmt.Errorf("%w: %d mess days, %d headcount, %d reduction days",
			ErrArithmeticPolicy, messDays, headcount, b.ReductionDays)
	}
	rate := mess.Div(decimal.NewFromInt(int64(b.ChargeableDays)))
	b.RatePerDay = types.FromDecimal(rate, types.CurrencyINR)

	for _, st := range roster {
		days, share := messDays, shares.Standard
		reduction := 0
		if res, ok := results[st.ID.String()]; ok {
			reduction = res.Days
			days -= reduction
		} else if st.EGrantz {
			share = shares.Stipend
		}

		amount := rate.Mul(decimal.NewFromInt(int64(days))).Add(share)
		out.StudentBills = append(out.StudentBills, &bill.StudentBill{
			Entity:        types.NewEntity(),
			ID:            id.NewStudentBillID(),
			BillID:        b.ID,
			StudentID:     st.ID,
			Month:         b.Month,
			Year:          b.Year,
			EGrantz:       st.EGrantz,
			DaysPresent:   days,
			ReductionDays: reduction,
			Share:         types.FromDecimal(share, types.CurrencyINR),
			Amount:        types.FromDecimal(amount, types.CurrencyINR),
		})
	}

	return out, nil
}

// persist writes the bill, then its streaks, then its student bills. If a
// child write fails the bill is deleted again, which cascades whatever
// children were already written.
func (g *Generator) persist(ctx context.Context, out *Generated) error {
	if err := g.Bills.CreateMessBill(ctx, out.Bill); err != nil {
		return err
	}

	for _, ca := range out.Streaks {
		if err := g.Bills.CreateStreak(ctx, ca); err != nil {
			return g.rollback(ctx, out.Bill, fmt.Errorf("hostel: store continuous absence: %w", err))
		}
	}
	for _, sb := range out.StudentBills {
		if err := g.Bills.CreateStudentBill(ctx, sb); err != nil {
			return g.rollback(ctx, out.Bill, fmt.Errorf("hostel: store student bill: %w", err))
		}
	}
	return nil
}

// rollback deletes a partially written bill. If the delete fails too, both
// errors are returned and the bill stays in the store without all of its
// children.
func (g *Generator) rollback(ctx context.Context, b *bill.MessBill, cause error) error {
	err := g.Bills.DeleteMessBill(context.WithoutCancel(ctx), b.ID)
	if err == nil {
		return cause
	}
	g.Logger.Error("mess bill left without children",
		"bill_id", b.ID.String(),
		"month", b.Month,
		"year", b.Year,
		"error", err,
	)
	errs := MultiError{}
	errs.Add(cause)
	errs.Add(fmt.Errorf("hostel: delete partial mess bill %s: %w", b.ID, err))
	return errs
}

func billRuns(runs []streak.Run) []bill.Run {
	out := make([]bill.Run, len(runs))
	for i, r := range runs {
		out[i] = bill.Run{
			Start:         r.Start,
			End:           r.End,
			Days:          r.Days,
			AttendanceIDs: r.AttendanceIDs,
		}
	}
	return out
}
