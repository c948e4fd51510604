package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/jitheshjr/hostel/id"
)

var constructors = []struct {
	name    string
	newFn   func() id.ID
	parseFn func(string) (id.ID, error)
	prefix  string
}{
	{"StudentID", id.NewStudentID, id.ParseStudentID, "stu_"},
	{"AttendanceDateID", id.NewAttendanceDateID, id.ParseAttendanceDateID, "adate_"},
	{"AttendanceID", id.NewAttendanceID, id.ParseAttendanceID, "att_"},
	{"MessBillID", id.NewMessBillID, id.ParseMessBillID, "mbill_"},
	{"StudentBillID", id.NewStudentBillID, id.ParseStudentBillID, "sbill_"},
	{"ContinuousAbsenceID", id.NewContinuousAbsenceID, id.ParseContinuousAbsenceID, "cabs_"},
}

func TestConstructorsAndRoundTrip(t *testing.T) {
	for _, tt := range constructors {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			if !strings.HasPrefix(original.String(), tt.prefix) {
				t.Fatalf("expected prefix %q, got %q", tt.prefix, original.String())
			}
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	for i, tt := range constructors {
		other := constructors[(i+1)%len(constructors)]
		t.Run(tt.name, func(t *testing.T) {
			input := other.newFn().String()
			if _, err := tt.parseFn(input); err == nil {
				t.Errorf("expected error parsing %q as %s", input, tt.name)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" || i.Prefix() != "" {
		t.Errorf("expected empty string and prefix, got %q / %q", i.String(), i.Prefix())
	}
}

func TestJSON(t *testing.T) {
	type row struct {
		Student id.StudentID  `json:"student"`
		Bill    id.MessBillID `json:"bill"`
	}
	in := row{Student: id.NewStudentID()}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out row
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Student.String() != in.Student.String() {
		t.Errorf("student mismatch: %q != %q", out.Student, in.Student)
	}
	if !out.Bill.IsNil() {
		t.Errorf("expected nil bill, got %q", out.Bill)
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewAttendanceID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if err := scanned.Scan(val); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned.String(), original.String())
	}

	var fromBytes id.ID
	if err := fromBytes.Scan([]byte(original.String())); err != nil {
		t.Fatalf("Scan([]byte) failed: %v", err)
	}

	var nilID id.ID
	if v, _ := nilID.Value(); v != nil {
		t.Errorf("expected nil value for nil ID, got %v", v)
	}
	if err := scanned.Scan(nil); err != nil || !scanned.IsNil() {
		t.Errorf("expected nil after scan of nil, err=%v", err)
	}
	if err := scanned.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}

func TestUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		s := id.NewStudentID().String()
		if seen[s] {
			t.Fatalf("duplicate ID generated: %q", s)
		}
		seen[s] = true
	}
}
