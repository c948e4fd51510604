// Package allocation splits a hostel's shared monthly costs per head.
package allocation

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrDivisionByZero = errors.New("hostel: headcount must be positive")
	ErrNegativeCost   = errors.New("hostel: costs must not be negative")
)

// DefaultStipendSupplement is the flat amount, in rupees, added to an
// E-Grantz student's share in place of absence discounts.
var DefaultStipendSupplement = decimal.NewFromInt(300)

// Costs are the shared monthly costs in major currency units. RoomRent is a
// per-head amount; StaffSalary and Electricity are totals for the hostel.
type Costs struct {
	RoomRent    decimal.Decimal
	StaffSalary decimal.Decimal
	Electricity decimal.Decimal
}

// Shares are the per-student shared-cost terms.
type Shares struct {
	Standard decimal.Decimal
	Stipend  decimal.Decimal
}

// Allocate computes the shares with DefaultStipendSupplement.
func Allocate(c Costs, headcount int) (Shares, error) {
	return AllocateWith(c, headcount, DefaultStipendSupplement)
}

// AllocateWith computes
//
//	standard = room_rent + (staff_salary + electricity) / headcount
//	stipend  = standard + supplement
//
// The result is unrounded.
func AllocateWith(c Costs, headcount int, supplement decimal.Decimal) (Shares, error) {
	if headcount <= 0 {
		return Shares{}, ErrDivisionByZero
	}
	if c.RoomRent.IsNegative() || c.StaffSalary.IsNegative() || c.Electricity.IsNegative() || supplement.IsNegative() {
		return Shares{}, ErrNegativeCost
	}

	n := decimal.NewFromInt(int64(headcount))
	standard := c.RoomRent.Add(c.StaffSalary.Add(c.Electricity).Div(n))
	return Shares{
		Standard: standard,
		Stipend:  standard.Add(supplement),
	}, nil
}

// Total is the period's grand total:
// mess + room_rent*headcount + staff_salary + electricity.
func Total(mess decimal.Decimal, c Costs, headcount int) decimal.Decimal {
	return mess.
		Add(c.RoomRent.Mul(decimal.NewFromInt(int64(headcount)))).
		Add(c.StaffSalary).
		Add(c.Electricity)
}
