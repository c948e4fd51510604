package bolt_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jitheshjr/hostel"
	"github.com/jitheshjr/hostel/store"
	"github.com/jitheshjr/hostel/store/bolt"
	"github.com/jitheshjr/hostel/store/storetest"
	"github.com/jitheshjr/hostel/types"
)

func open(t *testing.T, path string) *bolt.Store {
	t.Helper()
	s, err := bolt.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s := open(t, filepath.Join(t.TempDir(), "hostel.db"))
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "hostel.db")

	s := open(t, path)
	if _, err := s.AttendanceExists(ctx, types.Date(2024, time.March, 1)); err != nil {
		t.Fatalf("AttendanceExists: %v", err)
	}
	e := hostel.New(s)
	if _, err := e.MarkAttendance(ctx, types.Date(2024, time.March, 1), nil); err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, hostel.ErrStoreClosed) {
		t.Errorf("Ping after close: got %v", err)
	}

	s = open(t, path)
	defer s.Close()
	ok, err := s.AttendanceExists(ctx, types.Date(2024, time.March, 1))
	if err != nil || !ok {
		t.Errorf("after reopen: %v %v", ok, err)
	}
}

func TestMissingBuckets(t *testing.T) {
	s, err := bolt.Open(filepath.Join(t.TempDir(), "hostel.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := s.CountStudents(context.Background()); err == nil {
		t.Error("expected an error before Migrate")
	}
}
