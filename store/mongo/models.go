package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/jitheshjr/hostel/attendance"
	"github.com/jitheshjr/hostel/bill"
	"github.com/jitheshjr/hostel/id"
	"github.com/jitheshjr/hostel/student"
	"github.com/jitheshjr/hostel/types"
)

// ==================== Student models ====================

type studentModel struct {
	grove.BaseModel `grove:"table:hostel_students"`

	ID          string     `grove:"id,pk"        bson:"_id"`
	AdmissionNo string     `grove:"admission_no" bson:"admission_no"`
	Name        string     `grove:"name"         bson:"name"`
	EGrantz     bool       `grove:"e_grantz"     bson:"e_grantz"`
	Status      string     `grove:"status"       bson:"status"`
	JoinedAt    time.Time  `grove:"joined_at"    bson:"joined_at"`
	ExitedAt    *time.Time `grove:"exited_at"    bson:"exited_at,omitempty"`
	CreatedAt   time.Time  `grove:"created_at"   bson:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"   bson:"updated_at"`
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

// attendanceDateModel keeps the absences embedded so a recorded day is
// written with a single insert.
type attendanceDateModel struct {
	grove.BaseModel `grove:"table:hostel_attendance_dates"`

	ID        string            `grove:"id,pk"      bson:"_id"`
	Date      time.Time         `grove:"date"       bson:"date"`
	Month     int               `grove:"month"      bson:"month"`
	Year      int               `grove:"year"       bson:"year"`
	Absent    []attendanceModel `grove:"absent"     bson:"absent"`
	CreatedAt time.Time         `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time         `grove:"updated_at" bson:"updated_at"`
}

type attendanceModel struct {
	ID        string    `bson:"id"`
	StudentID string    `bson:"student_id"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toAttendanceDateModel(d *attendance.Date, absent []*attendance.Attendance) *attendanceDateModel {
	rows := make([]attendanceModel, len(absent))
	for i, a := range absent {
		rows[i] = attendanceModel{
			ID:        a.ID.String(),
			StudentID: a.StudentID.String(),
			CreatedAt: a.CreatedAt,
			UpdatedAt: a.UpdatedAt,
		}
	}
	return &attendanceDateModel{
		ID:        d.ID.String(),
		Date:      types.Day(d.Date),
		Month:     int(d.Month),
		Year:      d.Year,
		Absent:    rows,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func fromAttendanceDateModel(m *attendanceDateModel) (*attendance.Date, error) {
	dateID, err := id.ParseAttendanceDateID(m.ID)
	if err != nil {
		return nil, err
	}
	return &attendance.Date{
		Entity: types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:     dateID,
		Date:   types.Day(m.Date),
		Month:  time.Month(m.Month),
		Year:   m.Year,
	}, nil
}

// absentees flattens the embedded rows back into attendance facts.
func (m *attendanceDateModel) absentees() ([]*attendance.Attendance, error) {
	dateID, err := id.ParseAttendanceDateID(m.ID)
	if err != nil {
		return nil, err
	}
	result := make([]*attendance.Attendance, len(m.Absent))
	for i, r := range m.Absent {
		attID, err := id.ParseAttendanceID(r.ID)
		if err != nil {
			return nil, err
		}
		studentID, err := id.ParseStudentID(r.StudentID)
		if err != nil {
			return nil, err
		}
		result[i] = &attendance.Attendance{
			Entity:    types.Entity{CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
			ID:        attID,
			DateID:    dateID,
			StudentID: studentID,
			Date:      types.Day(m.Date),
		}
	}
	return result, nil
}

// ==================== Bill models ====================

type messBillModel struct {
	grove.BaseModel `grove:"table:hostel_mess_bills"`

	ID             string    `grove:"id,pk"           bson:"_id"`
	Month          int       `grove:"month"           bson:"month"`
	Year           int       `grove:"year"            bson:"year"`
	PeriodStart    time.Time `grove:"period_start"    bson:"period_start"`
	PeriodEnd      time.Time `grove:"period_end"      bson:"period_end"`
	Headcount      int       `grove:"headcount"       bson:"headcount"`
	MessDays       int       `grove:"mess_days"       bson:"mess_days"`
	MessAmount     int64     `grove:"mess_amount"     bson:"mess_amount"`
	RoomRent       int64     `grove:"room_rent"       bson:"room_rent"`
	StaffSalary    int64     `grove:"staff_salary"    bson:"staff_salary"`
	Electricity    int64     `grove:"electricity"     bson:"electricity"`
	Total          int64     `grove:"total"           bson:"total"`
	ReductionDays  int       `grove:"reduction_days"  bson:"reduction_days"`
	ChargeableDays int       `grove:"chargeable_days" bson:"chargeable_days"`
	RatePerDay     int64     `grove:"rate_per_day"    bson:"rate_per_day"`
	Currency       string    `grove:"currency"        bson:"currency"`
	CreatedAt      time.Time `grove:"created_at"      bson:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"      bson:"updated_at"`
}

func toMessBillModel(b *bill.MessBill) *messBillModel {
	return &messBillModel{
		ID:             b.ID.String(),
		Month:          int(b.Month),
		Year:           b.Year,
		PeriodStart:    types.Day(b.PeriodStart),
		PeriodEnd:      types.Day(b.PeriodEnd),
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
		Currency:       currencyOf(b.Total),
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func fromMessBillModel(m *messBillModel) (*bill.MessBill, error) {
	billID, err := id.ParseMessBillID(m.ID)
	if err != nil {
		return nil, err
	}
	money := func(amount int64) types.Money { return types.Money{Amount: amount, Currency: m.Currency} }
	return &bill.MessBill{
		Entity:         types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:             billID,
		Month:          time.Month(m.Month),
		Year:           m.Year,
		PeriodStart:    types.Day(m.PeriodStart),
		PeriodEnd:      types.Day(m.PeriodEnd),
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

	ID            string    `grove:"id,pk"          bson:"_id"`
	BillID        string    `grove:"bill_id"        bson:"bill_id"`
	StudentID     string    `grove:"student_id"     bson:"student_id"`
	Month         int       `grove:"month"          bson:"month"`
	Year          int       `grove:"year"           bson:"year"`
	EGrantz       bool      `grove:"e_grantz"       bson:"e_grantz"`
	DaysPresent   int       `grove:"days_present"   bson:"days_present"`
	ReductionDays int       `grove:"reduction_days" bson:"reduction_days"`
	Share         int64     `grove:"share"          bson:"share"`
	Amount        int64     `grove:"amount"         bson:"amount"`
	Currency      string    `grove:"currency"       bson:"currency"`
	CreatedAt     time.Time `grove:"created_at"     bson:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"     bson:"updated_at"`
}

func toStudentBillModel(sb *bill.StudentBill) *studentBillModel {
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
		Currency:      currencyOf(sb.Amount),
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

	ID        string     `grove:"id,pk"      bson:"_id"`
	BillID    string     `grove:"bill_id"    bson:"bill_id"`
	StudentID string     `grove:"student_id" bson:"student_id"`
	Month     int        `grove:"month"      bson:"month"`
	Year      int        `grove:"year"       bson:"year"`
	Days      int        `grove:"days"       bson:"days"`
	Runs      []runModel `grove:"runs"       bson:"runs"`
	CreatedAt time.Time  `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time  `grove:"updated_at" bson:"updated_at"`
}

type runModel struct {
	Start         time.Time `bson:"start"`
	End           time.Time `bson:"end"`
	Days          int       `bson:"days"`
	AttendanceIDs []string  `bson:"attendance_ids"`
}

func toContinuousAbsenceModel(ca *bill.ContinuousAbsence) *continuousAbsenceModel {
	runs := make([]runModel, len(ca.Runs))
	for i, r := range ca.Runs {
		ids := make([]string, len(r.AttendanceIDs))
		for j, a := range r.AttendanceIDs {
			ids[j] = a.String()
		}
		runs[i] = runModel{Start: r.Start, End: r.End, Days: r.Days, AttendanceIDs: ids}
	}
	return &continuousAbsenceModel{
		ID:        ca.ID.String(),
		BillID:    ca.BillID.String(),
		StudentID: ca.StudentID.String(),
		Month:     int(ca.Month),
		Year:      ca.Year,
		Days:      ca.Days,
		Runs:      runs,
		CreatedAt: ca.CreatedAt,
		UpdatedAt: ca.UpdatedAt,
	}
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

	runs := make([]bill.Run, len(m.Runs))
	for i, r := range m.Runs {
		ids := make([]id.AttendanceID, len(r.AttendanceIDs))
		for j, raw := range r.AttendanceIDs {
			if ids[j], err = id.ParseAttendanceID(raw); err != nil {
				return nil, err
			}
		}
		runs[i] = bill.Run{Start: types.Day(r.Start), End: types.Day(r.End), Days: r.Days, AttendanceIDs: ids}
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

func currencyOf(m types.Money) string {
	if m.Currency == "" {
		return types.CurrencyINR
	}
	return m.Currency
}
