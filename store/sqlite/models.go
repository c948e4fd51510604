package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/jitheshjr/hostel/attendance"
	"github.com/jitheshjr/hostel/bill"
	"github.com/jitheshjr/hostel/id"
	"github.com/jitheshjr/hostel/student"
	"github.com/jitheshjr/hostel/types"
)

// dayText renders a calendar date the way the date columns store it.
func dayText(t time.Time) string {
	return types.Day(t).Format(types.DateLayout)
}

func parseDay(s string) (time.Time, error) {
	d, err := types.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("hostel/sqlite: bad date %q: %w", s, err)
	}
	return d, nil
}

// ==================== Student models ====================

type studentModel struct {
	grove.BaseModel `grove:"table:hostel_students"`

	ID          string     `grove:"id,pk"`
	AdmissionNo string     `grove:"admission_no"`
	Name        string     `grove:"name"`
	EGrantz     bool       `grove:"e_grantz"`
	Status      string     `grove:"status"`
	JoinedAt    time.Time  `grove:"joined_at"`
	ExitedAt    *time.Time `grove:"exited_at"`
	CreatedAt   time.Time  `grove:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"`
}

func toStudentModel(s *student.Student) *studentModel {
	return &studentModel{
		ID:          s.ID.String(),
		AdmissionNo: s.AdmissionNo,
		Name:        s.Name,
		EGrantz:     s.EGrantz,
		Status:      string(s.Status),
		JoinedAt:    s.JoinedAt,
		ExitedAt:    s.ExitedAt,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func fromStudentModel(m *studentModel) (*student.Student, error) {
	studentID, err := id.ParseStudentID(m.ID)
	if err != nil {
		return nil, err
	}
	return &student.Student{
		Entity:      types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:          studentID,
		AdmissionNo: m.AdmissionNo,
		Name:        m.Name,
		EGrantz:     m.EGrantz,
		Status:      student.Status(m.Status),
		JoinedAt:    m.JoinedAt,
		ExitedAt:    m.ExitedAt,
	}, nil
}

// ==================== Attendance models ====================

type attendanceDateModel struct {
	grove.BaseModel `grove:"table:hostel_attendance_dates"`

	ID        string    `grove:"id,pk"`
	Date      string    `grove:"date"`
	Month     int       `grove:"month"`
	Year      int       `grove:"year"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toAttendanceDateModel(d *attendance.Date) *attendanceDateModel {
	return &attendanceDateModel{
		ID:        d.ID.String(),
		Date:      dayText(d.Date),
		Month:     int(d.Month),
		Year:      d.Year,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func fromAttendanceDateModel(m *attendanceDateModel) (*attendance.Date, error) {
	dateID, err := id.ParseAttendanceDateID(m.ID)
	if err != nil {
		return nil, err
	}
	day, err := parseDay(m.Date)
	if err != nil {
		return nil, err
	}
	return &attendance.Date{
		Entity: types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:     dateID,
		Date:   day,
		Month:  time.Month(m.Month),
		Year:   m.Year,
	}, nil
}

type attendanceModel struct {
	grove.BaseModel `grove:"table:hostel_attendances"`

	ID        string    `grove:"id,pk"`
	DateID    string    `grove:"date_id"`
	StudentID string    `grove:"student_id"`
	Date      string    `grove:"date"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toAttendanceModel(a *attendance.Attendance) attendanceModel {
	return attendanceModel{
		ID:        a.ID.String(),
		DateID:    a.DateID.String(),
		StudentID: a.StudentID.String(),
		Date:      dayText(a.Date),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func fromAttendanceModel(m *attendanceModel) (*attendance.Attendance, error) {
	attID, err := id.ParseAttendanceID(m.ID)
	if err != nil {
		return nil, err
	}
	dateID, err := id.ParseAttendanceDateID(m.DateID)
	if err != nil {
		return nil, err
	}
	studentID, err := id.ParseStudentID(m.StudentID)
	if err != nil {
		return nil, err
	}
	day, err := parseDay(m.Date)
	if err != nil {
		return nil, err
	}
	return &attendance.Attendance{
		Entity:    types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:        attID,
		DateID:    dateID,
		StudentID: studentID,
		Date:      day,
	}, nil
}

// ==================== Bill models ====================

type messBillModel struct {
	grove.BaseModel `grove:"table:hostel_mess_bills"`

	ID             string    `grove:"id,pk"`
	Month          int       `grove:"month"`
	Year           int       `grove:"year"`
	PeriodStart    string    `grove:"period_start"`
	PeriodEnd      string    `grove:"period_end"`
	Headcount      int       `grove:"headcount"`
	MessDays       int       `grove:"mess_days"`
	MessAmount     int64     `grove:"mess_amount"`
	RoomRent       int64     `grove:"room_rent"`
	StaffSalary    int64     `grove:"staff_salary"`
	Electricity    int64     `grove:"electricity"`
	Total          int64     `grove:"total"`
	ReductionDays  int       `grove:"reduction_days"`
	ChargeableDays int       `grove:"chargeable_days"`
	RatePerDay     int64     `grove:"rate_per_day"`
	Currency       string    `grove:"currency"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func toMessBillModel(b *bill.MessBill) *messBillModel {
	currency := b.Total.Currency
	if currency == "" {
		currency = types.CurrencyINR
	}
	return &messBillModel{
		ID:             b.ID.String(),
		Month:          int(b.Month),
		Year:           b.Year,
		PeriodStart:    dayText(b.PeriodStart),
		PeriodEnd:      dayText(b.PeriodEnd),
		Headcount:      b.Headcount,
		MessDays:       b.MessDays,
		MessAmount:     b.MessAmount.Amount,
		RoomRent:       b.RoomRent.Amount,
		StaffSalary:    b.StaffSalary.Amount,
		Electricity:    b.Electricity.Amount,
		Total:          b.Total.Amount,
		ReductionDays:  b.ReductionDays,
		ChargeableDays: b.ChargeableDays,
		RatePerDay:     b.RatePerDay.Amount,
		Currency:       currency,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func fromMessBillModel(m *messBillModel) (*bill.MessBill, error) {
	billID, err := id.ParseMessBillID(m.ID)
	if err != nil {
		return nil, err
	}
	start, err := parseDay(m.PeriodStart)
	if err != nil {
		return nil, err
	}
	end, err := parseDay(m.PeriodEnd)
	if err != nil {
		return nil, err
	}
	money := func(amount int64) types.Money { return types.Money{Amount: amount, Currency: m.Currency} }
	return &bill.MessBill{
		Entity:         types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:             billID,
		Month:          time.Month(m.Month),
		Year:           m.Year,
		PeriodStart:    start,
		PeriodEnd:      end,
		Headcount:      m.Headcount,
		MessDays:       m.MessDays,
		MessAmount:     money(m.MessAmount),
		RoomRent:       money(m.RoomRent),
		StaffSalary:    money(m.StaffSalary),
		Electricity:    money(m.Electricity),
		Total:          money(m.Total),
		ReductionDays:  m.ReductionDays,
		ChargeableDays: m.ChargeableDays,
		RatePerDay:     money(m.RatePerDay),
	}, nil
}

type studentBillModel struct {
	grove.BaseModel `grove:"table:hostel_student_bills"`

	ID            string    `grove:"id,pk"`
	BillID        string    `grove:"bill_id"`
	StudentID     string    `grove:"student_id"`
	Month         int       `grove:"month"`
	Year          int       `grove:"year"`
	EGrantz       bool      `grove:"e_grantz"`
	DaysPresent   int       `grove:"days_present"`
	ReductionDays int       `grove:"reduction_days"`
	Share         int64     `grove:"share"`
	Amount        int64     `grove:"amount"`
	Currency      string    `grove:"currency"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
}

func toStudentBillModel(sb *bill.StudentBill) *studentBillModel {
	currency := sb.Amount.Currency
	if currency == "" {
		currency = types.CurrencyINR
	}
	return &studentBillModel{
		ID:            sb.ID.String(),
		BillID:        sb.BillID.String(),
		StudentID:     sb.StudentID.String(),
		Month:         int(sb.Month),
		Year:          sb.Year,
		EGrantz:       sb.EGrantz,
		DaysPresent:   sb.DaysPresent,
		ReductionDays: sb.ReductionDays,
		Share:         sb.Share.Amount,
		Amount:        sb.Amount.Amount,
		Currency:      currency,
		CreatedAt:     sb.CreatedAt,
		UpdatedAt:     sb.UpdatedAt,
	}
}

func fromStudentBillModel(m *studentBillModel) (*bill.StudentBill, error) {
	sbID, err := id.ParseStudentBillID(m.ID)
	if err != nil {
		return nil, err
	}
	billID, err := id.ParseMessBillID(m.BillID)
	if err != nil {
		return nil, err
	}
	studentID, err := id.ParseStudentID(m.StudentID)
	if err != nil {
		return nil, err
	}
	return &bill.StudentBill{
		Entity:        types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:            sbID,
		BillID:        billID,
		StudentID:     studentID,
		Month:         time.Month(m.Month),
		Year:          m.Year,
		EGrantz:       m.EGrantz,
		DaysPresent:   m.DaysPresent,
		ReductionDays: m.ReductionDays,
		Share:         types.Money{Amount: m.Share, Currency: m.Currency},
		Amount:        types.Money{Amount: m.Amount, Currency: m.Currency},
	}, nil
}

type continuousAbsenceModel struct {
	grove.BaseModel `grove:"table:hostel_continuous_absences"`

	ID        string    `grove:"id,pk"`
	BillID    string    `grove:"bill_id"`
	StudentID string    `grove:"student_id"`
	Month     int       `grove:"month"`
	Year      int       `grove:"year"`
	Days      int       `grove:"days"`
	Runs      string    `grove:"runs"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toContinuousAbsenceModel(ca *bill.ContinuousAbsence) (*continuousAbsenceModel, error) {
	runs, err := json.Marshal(ca.Runs)
	if err != nil {
		return nil, fmt.Errorf("hostel/sqlite: encode runs: %w", err)
	}
	return &continuousAbsenceModel{
		ID:        ca.ID.String(),
		BillID:    ca.BillID.String(),
		StudentID: ca.StudentID.String(),
		Month:     int(ca.Month),
		Year:      ca.Year,
		Days:      ca.Days,
		Runs:      string(runs),
		CreatedAt: ca.CreatedAt,
		UpdatedAt: ca.UpdatedAt,
	}, nil
}

func fromContinuousAbsenceModel(m *continuousAbsenceModel) (*bill.ContinuousAbsence, error) {
	caID, err := id.ParseContinuousAbsenceID(m.ID)
	if err != nil {
		return nil, err
	}
	billID, err := id.ParseMessBillID(m.BillID)
	if err != nil {
		return nil, err
	}
	studentID, err := id.ParseStudentID(m.StudentID)
	if err != nil {
		return nil, err
	}

	var runs []bill.Run
	if m.Runs != "" && m.Runs != "null" {
		if err := json.Unmarshal([]byte(m.Runs), &runs); err != nil {
			return nil, fmt.Errorf("hostel/sqlite: decode runs: %w", err)
		}
	}

	return &bill.ContinuousAbsence{
		Entity:    types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:        caID,
		BillID:    billID,
		StudentID: studentID,
		Month:     time.Month(m.Month),
		Year:      m.Year,
		Days:      m.Days,
		Runs:      runs,
	}, nil
}
