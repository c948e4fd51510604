package bill

import (
	"context"
	"time"

	"github.com/jitheshjr/hostel/id"
)

type Store interface {
	Exists(ctx context.Context, month time.Month, year int) (bool, error)
	// Create inserts the bill atomically with respect to its (month, year);
	// a second bill for the same period fails.
	Create(ctx context.Context, b *MessBill) error
	Get(ctx context.Context, billID id.MessBillID) (*MessBill, error)
	GetByPeriod(ctx context.Context, month time.Month, year int) (*MessBill, error)
	List(ctx context.Context, opts ListOpts) ([]*MessBill, error)
	// Delete removes the bill together with its student bills and streaks.
	Delete(ctx context.Context, billID id.MessBillID) error

	CreateStudentBill(ctx context.Context, sb *StudentBill) error
	ListStudentBills(ctx context.Context, billID id.MessBillID) ([]*StudentBill, error)

	CreateStreak(ctx context.Context, ca *ContinuousAbsence) error
	ListStreaks(ctx context.Context, billID id.MessBillID) ([]*ContinuousAbsence, error)
}

// ListOpts filters bill listings. Zero Year matches any year.
type ListOpts struct {
	Year   int
	Limit  int
	Offset int
}
