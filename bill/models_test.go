package bill_test

import (
	"testing"

	"github.com/jitheshjr/hostel/bill"
	"github.com/jitheshjr/hostel/id"
)

func TestSplit(t *testing.T) {
	rows := []*bill.StudentBill{
		{ID: id.NewStudentBillID(), EGrantz: false},
		{ID: id.NewStudentBillID(), EGrantz: true},
		{ID: id.NewStudentBillID(), EGrantz: false},
		{ID: id.NewStudentBillID(), EGrantz: true},
	}

	egrantz, regular := bill.Split(rows)
	if len(egrantz) != 2 || len(regular) != 2 {
		t.Fatalf("got %d e-grantz, %d regular", len(egrantz), len(regular))
	}
	if egrantz[0] != rows[1] || egrantz[1] != rows[3] {
		t.Error("e-grantz rows out of order")
	}
	if regular[0] != rows[0] || regular[1] != rows[2] {
		t.Error("regular rows out of order")
	}

	if e, r := bill.Split(nil); e != nil || r != nil {
		t.Error("empty input should give empty halves")
	}
}
