package audithook

// Action constants for audit events.
const (
	// Roster actions
	ActionStudentAdded    = "student.added"
	ActionStudentArchived = "student.archived"

	// Attendance actions
	ActionAttendanceMarked  = "attendance.marked"
	ActionAttendanceDeleted = "attendance.deleted"

	// Billing actions
	ActionBillGenerated  = "bill.generated"
	ActionBillRejected   = "bill.rejected"
	ActionBillDeleted    = "bill.deleted"
	ActionStreakDetected = "streak.detected"
)

// Resource constants for audit events.
const (
	ResourceStudent    = "student"
	ResourceAttendance = "attendance"
	ResourceBill       = "mess_bill"
	ResourceStreak     = "continuous_absence"
)

// Category constants for audit events.
const (
	CategoryRoster     = "roster"
	CategoryAttendance = "attendance"
	CategoryBilling    = "billing"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
