package audithook

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jitheshjr/hostel/bill"
	"github.com/jitheshjr/hostel/id"
	"github.com/jitheshjr/hostel/student"
	"github.com/jitheshjr/hostel/types"
)

type captured struct {
	events []*AuditEvent
}

func (c *captured) recorder() Recorder {
	return RecorderFunc(func(_ context.Context, evt *AuditEvent) error {
		c.events = append(c.events, evt)
		return nil
	})
}

func TestExtensionRecordsEvents(t *testing.T) {
	ctx := context.Background()
	c := &captured{}
	e := New(c.recorder(), WithLogger(slog.New(slog.DiscardHandler)))

	st := &student.Student{ID: id.NewStudentID(), AdmissionNo: "A1", EGrantz: true}
	mb := &bill.MessBill{ID: id.NewMessBillID(), Month: time.March, Year: 2024, Total: types.Rupees(8500)}

	_ = e.OnStudentAdded(ctx, st)
	_ = e.OnBillGenerated(ctx, mb, time.Second)
	_ = e.OnBillRejected(ctx, time.April, 2024, errors.New("attendance missing"))

	if len(c.events) != 3 {
		t.Fatalf("events: got %d, want 3", len(c.events))
	}

	added := c.events[0]
	if added.Action != ActionStudentAdded || added.ResourceID != st.ID.String() {
		t.Errorf("student event: got %+v", added)
	}
	if added.Metadata["admission_no"] != "A1" || added.Metadata["e_grantz"] != true {
		t.Errorf("student metadata: got %v", added.Metadata)
	}

	generated := c.events[1]
	if generated.Metadata["period"] != "2024-03" || generated.Metadata["elapsed_ms"] != int64(1000) {
		t.Errorf("bill metadata: got %v", generated.Metadata)
	}

	rejected := c.events[2]
	if rejected.Outcome != OutcomeFailure || rejected.Severity != SeverityError {
		t.Errorf("rejection outcome: got %s/%s", rejected.Outcome, rejected.Severity)
	}
	if rejected.Reason != "attendance missing" || rejected.Metadata["period"] != "2024-04" {
		t.Errorf("rejection details: got %q %v", rejected.Reason, rejected.Metadata)
	}
}

func TestActionFilters(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		opt  Option
		want int
	}{
		{"all enabled", nil, 2},
		{"enabled subset", WithEnabledActions(ActionBillDeleted), 1},
		{"disabled", WithDisabledActions(ActionBillDeleted, ActionStudentArchived), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &captured{}
			var opts []Option
			if tt.opt != nil {
				opts = append(opts, tt.opt)
			}
			e := New(c.recorder(), opts...)
			_ = e.OnBillDeleted(ctx, "mbill_x")
			_ = e.OnStudentArchived(ctx, "stu_x")
			if len(c.events) != tt.want {
				t.Errorf("events: got %d, want %d", len(c.events), tt.want)
			}
		})
	}
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	failing := RecorderFunc(func(context.Context, *AuditEvent) error {
		return errors.New("backend down")
	})
	e := New(failing, WithLogger(slog.New(slog.DiscardHandler)))
	if err := e.OnBillDeleted(context.Background(), "mbill_x"); err != nil {
		t.Errorf("hook should not fail: %v", err)
	}
}
