package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jitheshjr/hostel"
	"github.com/jitheshjr/hostel/attendance"
	"github.com/jitheshjr/hostel/bill"
	"github.com/jitheshjr/hostel/id"
	"github.com/jitheshjr/hostel/observability"
	"github.com/jitheshjr/hostel/student"
	"github.com/jitheshjr/hostel/types"
)

// ──────────────────────────────────────────────────
// Request bodies
// ──────────────────────────────────────────────────

type addStudentRequest struct {
	AdmissionNo string `json:"admission_no" validate:"required,max=32"`
	Name        string `json:"name"         validate:"required,max=128"`
	EGrantz     bool   `json:"e_grantz"`
	JoinedAt    string `json:"joined_at"    validate:"omitempty,datetime=2006-01-02"`
}

type markAttendanceRequest struct {
	Date   string   `json:"date"   validate:"required,datetime=2006-01-02"`
	Absent []string `json:"absent" validate:"dive,required"`
}

type generateBillRequest struct {
	PeriodStart string `json:"period_start" validate:"required,datetime=2006-01-02"`
	PeriodEnd   string `json:"period_end"   validate:"required,datetime=2006-01-02"`
	MessAmount  string `json:"mess_amount"  validate:"required,numeric"`
	RoomRent    string `json:"room_rent"    validate:"required,numeric"`
	StaffSalary string `json:"staff_salary" validate:"required,numeric"`
	Electricity string `json:"electricity"  validate:"required,numeric"`
}

type attendanceResponse struct {
	Date      *attendance.Date         `json:"date"`
	Absentees []*attendance.Attendance `json:"absentees"`
}

type studentBillsResponse struct {
	EGrantz []*bill.StudentBill `json:"egrantz"`
	Regular []*bill.StudentBill `json:"regular"`
}

// ──────────────────────────────────────────────────
// Health and metrics
// ──────────────────────────────────────────────────

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.Store().Ping(r.Context()); err != nil {
		a.writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "store unavailable"})
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) metricsSnapshot(w http.ResponseWriter, _ *http.Request) {
	if a.metrics == nil {
		a.writeJSON(w, http.StatusNotFound, errorBody{Error: "metrics disabled"})
		return
	}
	a.writeJSON(w, http.StatusOK, observability.Snapshot(a.metrics))
}

// ──────────────────────────────────────────────────
// Students
// ──────────────────────────────────────────────────

func (a *API) addStudent(w http.ResponseWriter, r *http.Request) {
	var req addStudentRequest
	if err := a.decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	s := &student.Student{
		AdmissionNo: req.AdmissionNo,
		Name:        req.Name,
		EGrantz:     req.EGrantz,
	}
	if req.JoinedAt != "" {
		joined, err := types.ParseDate(req.JoinedAt)
		if err != nil {
			a.writeError(w, r, hostel.ValidationError{Field: "joined_at", Message: err.Error()})
			return
		}
		s.JoinedAt = joined
	}

	if err := a.engine.AddStudent(r.Context(), s); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, s)
}

func (a *API) listStudents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, err := paging(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	opts := student.ListOpts{Status: student.Status(q.Get("status")), Limit: limit, Offset: offset}

	students, err := a.engine.ListStudents(r.Context(), opts)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, nonNil(students))
}

func (a *API) getStudent(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r, id.ParseStudentID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	s, err := a.engine.GetStudent(r.Context(), studentID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, s)
}

func (a *API) archiveStudent(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r, id.ParseStudentID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.engine.ArchiveStudent(r.Context(), studentID); err != nil {
		a.writeError(w, r, err)
		return
	}
	s, err := a.engine.GetStudent(r.Context(), studentID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, s)
}

func (a *API) studentAbsences(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r, id.ParseStudentID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	rows, err := a.engine.StudentAbsences(r.Context(), studentID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, nonNil(rows))
}

// ──────────────────────────────────────────────────
// Attendance
// ──────────────────────────────────────────────────

func (a *API) markAttendance(w http.ResponseWriter, r *http.Request) {
	var req markAttendanceRequest
	if err := a.decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	day, err := types.ParseDate(req.Date)
	if err != nil {
		a.writeError(w, r, hostel.ValidationError{Field: "date", Message: err.Error()})
		return
	}
	absent := make([]id.StudentID, 0, len(req.Absent))
	for _, raw := range req.Absent {
		sid, err := id.ParseStudentID(raw)
		if err != nil {
			a.writeError(w, r, hostel.ValidationError{Field: "absent", Message: err.Error()})
			return
		}
		absent = append(absent, sid)
	}

	d, err := a.engine.MarkAttendance(r.Context(), day, absent)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	_, rows, err := a.engine.GetAttendance(r.Context(), d.ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, attendanceResponse{Date: d, Absentees: nonNil(rows)})
}

func (a *API) listAttendance(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := paging(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	month, err := queryInt(r, "month", 0, 12)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	year, err := queryInt(r, "year", 0, 9999)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	dates, err := a.engine.ListAttendanceDates(r.Context(), attendance.ListOpts{
		Month:  time.Month(month),
		Year:   year,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, nonNil(dates))
}

func (a *API) getAttendance(w http.ResponseWriter, r *http.Request) {
	dateID, err := pathID(r, id.ParseAttendanceDateID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	d, rows, err := a.engine.GetAttendance(r.Context(), dateID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, attendanceResponse{Date: d, Absentees: nonNil(rows)})
}

func (a *API) deleteAttendance(w http.ResponseWriter, r *http.Request) {
	dateID, err := pathID(r, id.ParseAttendanceDateID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.engine.DeleteAttendance(r.Context(), dateID); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) attendanceSummary(w http.ResponseWriter, r *http.Request) {
	day, err := types.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		a.writeError(w, r, hostel.ValidationError{Field: "date", Message: "must be a YYYY-MM-DD date"})
		return
	}
	summary, err := a.engine.AttendanceSummary(r.Context(), day)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, summary)
}

// ──────────────────────────────────────────────────
// Bills
// ──────────────────────────────────────────────────

func (a *API) generateBill(w http.ResponseWriter, r *http.Request) {
	var body generateBillRequest
	if err := a.decode(w, r, &body); err != nil {
		a.writeError(w, r, err)
		return
	}
	req, err := body.toRequest()
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	b, err := a.engine.GenerateBill(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, b)
}

func (body generateBillRequest) toRequest() (hostel.Request, error) {
	var req hostel.Request
	var err error
	if req.PeriodStart, err = types.ParseDate(body.PeriodStart); err != nil {
		return req, hostel.ValidationError{Field: "period_start", Message: err.Error()}
	}
	if req.PeriodEnd, err = types.ParseDate(body.PeriodEnd); err != nil {
		return req, hostel.ValidationError{Field: "period_end", Message: err.Error()}
	}

	amounts := []struct {
		field string
		raw   string
		dst   *types.Money
	}{
		{"mess_amount", body.MessAmount, &req.MessAmount},
		{"room_rent", body.RoomRent, &req.RoomRent},
		{"staff_salary", body.StaffSalary, &req.StaffSalary},
		{"electricity", body.Electricity, &req.Electricity},
	}
	for _, amt := range amounts {
		m, err := types.ParseMoney(amt.raw, types.CurrencyINR)
		if err != nil {
			return req, hostel.ValidationError{Field: amt.field, Message: err.Error()}
		}
		*amt.dst = m
	}
	return req, nil
}

func (a *API) listBills(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := paging(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	year, err := queryInt(r, "year", 0, 9999)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	bills, err := a.engine.ListBills(r.Context(), bill.ListOpts{Year: year, Limit: limit, Offset: offset})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, nonNil(bills))
}

func (a *API) getBill(w http.ResponseWriter, r *http.Request) {
	billID, err := pathID(r, id.ParseMessBillID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	b, err := a.engine.GetBillByID(r.Context(), billID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, b)
}

func (a *API) getBillByPeriod(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		a.writeError(w, r, hostel.ValidationError{Field: "year", Message: "must be a number"})
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		a.writeError(w, r, hostel.ValidationError{Field: "month", Message: "must be 1-12"})
		return
	}
	b, err := a.engine.GetBill(r.Context(), time.Month(month), year)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, b)
}

func (a *API) deleteBill(w http.ResponseWriter, r *http.Request) {
	billID, err := pathID(r, id.ParseMessBillID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.engine.DeleteBill(r.Context(), billID); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) studentBills(w http.ResponseWriter, r *http.Request) {
	billID, err := pathID(r, id.ParseMessBillID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	egrantz, regular, err := a.engine.StudentBills(r.Context(), billID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, studentBillsResponse{EGrantz: nonNil(egrantz), Regular: nonNil(regular)})
}

func (a *API) streaks(w http.ResponseWriter, r *http.Request) {
	billID, err := pathID(r, id.ParseMessBillID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	rows, err := a.engine.Streaks(r.Context(), billID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, nonNil(rows))
}

// ──────────────────────────────────────────────────
// Parameter helpers
// ──────────────────────────────────────────────────

func pathID(r *http.Request, parse func(string) (id.ID, error)) (id.ID, error) {
	parsed, err := parse(chi.URLParam(r, "id"))
	if err != nil {
		return id.Nil, hostel.ValidationError{Field: "id", Message: err.Error()}
	}
	return parsed, nil
}

// queryInt reads an optional integer query parameter in [lo, hi].
func queryInt(r *http.Request, key string, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, hostel.ValidationError{Field: key, Message: "out of range"}
	}
	return n, nil
}

func paging(r *http.Request) (limit, offset int, err error) {
	if limit, err = queryInt(r, "limit", 0, 1000); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(r, "offset", 0, 1<<30); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
