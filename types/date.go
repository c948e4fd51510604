package types

import "time"

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar date. The calendar date is
// read in t's own location, so 2024-03-01T23:30+05:30 stays on March 1st.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a calendar date in UTC.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// NextDay returns the calendar date after t.
func NextDay(t time.Time) time.Time {
	return Day(t).AddDate(0, 0, 1)
}

// DaysInclusive returns the number of calendar days in [start, end].
// It returns zero or less when end precedes start.
func DaysInclusive(start, end time.Time) int {
	return int(Day(end).Sub(Day(start)).Hours()/24) + 1
}
