package student

import (
	"context"
	"time"

	"github.com/jitheshjr/hostel/id"
)

type Store interface {
	Create(ctx context.Context, s *Student) error
	Get(ctx context.Context, studentID id.StudentID) (*Student, error)
	List(ctx context.Context, opts ListOpts) ([]*Student, error)
	Count(ctx context.Context) (int, error)
	Archive(ctx context.Context, studentID id.StudentID, at time.Time) error
}

// ListOpts filters student listings. An empty Status lists everyone.
type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
