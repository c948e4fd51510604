package allocation_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/jitheshjr/hostel/allocation"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAllocate(t *testing.T) {
	tests := []struct {
		name      string
		costs     allocation.Costs
		headcount int
		standard  string
		stipend   string
	}{
		{"even split", allocation.Costs{RoomRent: d("500"), StaffSalary: d("1000"), Electricity: d("500")}, 2, "1250", "1550"},
		{"single resident", allocation.Costs{RoomRent: d("500"), StaffSalary: d("10000"), Electricity: d("2000")}, 1, "12500", "12800"},
		{"no shared costs", allocation.Costs{RoomRent: d("0"), StaffSalary: d("0"), Electricity: d("0")}, 40, "0", "300"},
		{"thirds", allocation.Costs{RoomRent: d("500"), StaffSalary: d("1000"), Electricity: d("0")}, 3, "833.3333333333333333", "1133.3333333333333333"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := allocation.Allocate(tt.costs, tt.headcount)
			if err != nil {
				t.Fatalf("Allocate: %v", err)
			}
			if !got.Standard.Equal(d(tt.standard)) {
				t.Errorf("Standard: got %s, want %s", got.Standard, tt.standard)
			}
			if !got.Stipend.Equal(d(tt.stipend)) {
				t.Errorf("Stipend: got %s, want %s", got.Stipend, tt.stipend)
			}
		})
	}
}

func TestAllocateErrors(t *testing.T) {
	ok := allocation.Costs{RoomRent: d("500"), StaffSalary: d("1000"), Electricity: d("500")}
	tests := []struct {
		name      string
		costs     allocation.Costs
		headcount int
		want      error
	}{
		{"zero headcount", ok, 0, allocation.ErrDivisionByZero},
		{"negative headcount", ok, -1, allocation.ErrDivisionByZero},
		{"negative rent", allocation.Costs{RoomRent: d("-1")}, 2, allocation.ErrNegativeCost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := allocation.Allocate(tt.costs, tt.headcount); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAllocateWithSupplement(t *testing.T) {
	got, err := allocation.AllocateWith(allocation.Costs{RoomRent: d("500")}, 4, d("150.50"))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Stipend.Equal(d("650.50")) {
		t.Errorf("Stipend: got %s", got.Stipend)
	}
}

func TestTotal(t *testing.T) {
	c := allocation.Costs{RoomRent: d("500"), StaffSalary: d("1000"), Electricity: d("500")}
	if got := allocation.Total(d("6000"), c, 2); !got.Equal(d("8500")) {
		t.Errorf("Total: got %s, want 8500", got)
	}
}
