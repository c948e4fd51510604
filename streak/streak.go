// Package streak finds runs of consecutive absent days in the attendance
// ledger. A run qualifies when it reaches the minimum length; a student's
// reduction is the sum of all qualifying runs in the period.
package streak

import (
	"cmp"
	"slices"
	"time"

	"github.com/jitheshjr/hostel/attendance"
	"github.com/jitheshjr/hostel/id"
	"github.com/jitheshjr/hostel/types"
)

// MinRun is the shortest run of consecutive absent days that earns a
// mess-day reduction.
const MinRun = 7

// Run is a stretch of consecutive absent days for one student.
type Run struct {
	Start         time.Time
	End           time.Time
	Days          int
	AttendanceIDs []id.AttendanceID
}

// Result is the qualifying absence total for one student.
type Result struct {
	StudentID id.StudentID
	Days      int
	Runs      []Run
}

// Detector scans absence facts for qualifying runs.
type Detector struct {
	minRun int
}

// Option configures a Detector.
type Option func(*Detector)

// WithMinRun overrides the qualifying run length. Values below 1 are ignored.
func WithMinRun(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.minRun = n
		}
	}
}

// New creates a Detector using MinRun unless overridden.
func New(opts ...Option) *Detector {
	d := &Detector{minRun: MinRun}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MinRun returns the configured qualifying run length.
func (d *Detector) MinRun() int { return d.minRun }

// Detect returns the qualifying absence totals keyed by student ID string.
// Facts may arrive in any order. E-Grantz facts never contribute, and repeated
// facts for the same student and day count once. Students without a
// qualifying run are absent from the result.
func (d *Detector) Detect(facts []attendance.Absence) map[string]Result {
	sorted := make([]attendance.Absence, 0, len(facts))
	for _, f := range facts {
		if f.EGrantz {
			continue
		}
		f.Date = types.Day(f.Date)
		sorted = append(sorted, f)
	}
	slices.SortFunc(sorted, func(a, b attendance.Absence) int {
		if c := cmp.Compare(a.StudentID.String(), b.StudentID.String()); c != 0 {
			return c
		}
		return a.Date.Compare(b.Date)
	})

	out := make(map[string]Result)
	for start := 0; start < len(sorted); {
		key := sorted[start].StudentID.String()
		end := start + 1
		for end < len(sorted) && sorted[end].StudentID.String() == key {
			end++
		}
		if res, ok := d.fold(sorted[start:end]); ok {
			out[key] = res
		}
		start = end
	}
	return out
}

// Detect runs a default Detector over facts.
func Detect(facts []attendance.Absence) map[string]Result {
	return New().Detect(facts)
}

// Total sums the qualifying days across results.
func Total(results map[string]Result) int {
	total := 0
	for _, r := range results {
		total += r.Days
	}
	return total
}

// fold scans one student's date-ordered facts.
func (d *Detector) fold(facts []attendance.Absence) (Result, bool) {
	res := Result{StudentID: facts[0].StudentID}
	for _, r := range splitRuns(facts) {
		if r.Days >= d.minRun {
			res.Days += r.Days
			res.Runs = append(res.Runs, r)
		}
	}
	return res, res.Days > 0
}

// splitRuns breaks date-ordered facts into maximal consecutive-day runs.
func splitRuns(facts []attendance.Absence) []Run {
	var (
		runs []Run
		cur  *Run
	)
	for _, f := range facts {
		switch {
		case cur != nil && f.Date.Equal(cur.End):
			continue
		case cur != nil && f.Date.Equal(types.NextDay(cur.End)):
			cur.End = f.Date
			cur.Days++
			cur.AttendanceIDs = append(cur.AttendanceIDs, f.AttendanceID)
		default:
			if cur != nil {
				runs = append(runs, *cur)
			}
			cur = &Run{
				Start:         f.Date,
				End:           f.Date,
				Days:          1,
				AttendanceIDs: []id.AttendanceID{f.AttendanceID},
			}
		}
	}
	if cur != nil {
		runs = append(runs, *cur)
	}
	return runs
}
