// Package bill defines the monthly mess bill and its per-student rows.
package bill

import (
	"time"

	"github.com/jitheshjr/hostel/id"
	"github.com/jitheshjr/hostel/types"
)

// MessBill is the aggregate bill for one (month, year). At most one exists per
// period; it owns its StudentBill and ContinuousAbsence rows.
type MessBill struct {
	types.Entity
	ID             id.MessBillID `json:"id"`
	Month          time.Month    `json:"month"`
	Year           int           `json:"year"`
	PeriodStart    time.Time     `json:"period_start"`
	PeriodEnd      time.Time     `json:"period_end"`
	Headcount      int           `json:"headcount"`
	MessDays       int           `json:"mess_days"`
	MessAmount     types.Money   `json:"mess_amount"`
	RoomRent       types.Money   `json:"room_rent"`
	StaffSalary    types.Money   `json:"staff_salary"`
	Electricity    types.Money   `json:"electricity"`
	Total          types.Money   `json:"total"`
	ReductionDays  int           `json:"reduction_days"`
	ChargeableDays int           `json:"chargeable_days"`
	// RatePerDay is the mess rate rounded for display; bills are computed
	// from the unrounded rate.
	RatePerDay types.Money `json:"rate_per_day"`
}

// StudentBill is one student's charge for a MessBill period.
type StudentBill struct {
	types.Entity
	ID            id.StudentBillID `json:"id"`
	BillID        id.MessBillID    `json:"bill_id"`
	StudentID     id.StudentID     `json:"student_id"`
	Month         time.Month       `json:"month"`
	Year          int              `json:"year"`
	EGrantz       bool             `json:"e_grantz"`
	DaysPresent   int              `json:"days_present"`
	ReductionDays int              `json:"reduction_days"`
	Share         types.Money      `json:"share"`
	Amount        types.Money      `json:"amount"`
}

// ContinuousAbsence records the total qualifying absent days of one student in
// a period. Runs keeps each qualifying run and the attendance rows behind it.
type ContinuousAbsence struct {
	types.Entity
	ID        id.ContinuousAbsenceID `json:"id"`
	BillID    id.MessBillID          `json:"bill_id"`
	StudentID id.StudentID           `json:"student_id"`
	Month     time.Month             `json:"month"`
	Year      int                    `json:"year"`
	Days      int                    `json:"days"`
	Runs      []Run                  `json:"runs"`
}

// Run is one qualifying stretch of consecutive absent days.
type Run struct {
	Start         time.Time         `json:"start"`
	End           time.Time         `json:"end"`
	Days          int               `json:"days"`
	AttendanceIDs []id.AttendanceID `json:"attendance_ids"`
}

// Split partitions student bills into E-Grantz and regular rows, keeping order.
func Split(rows []*StudentBill) (egrantz, regular []*StudentBill) {
	for _, r := range rows {
		if r.EGrantz {
			egrantz = append(egrantz, r)
		} else {
			regular = append(regular, r)
		}
	}
	return egrantz, regular
}
