package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xraph/go-utils/metrics"

	"github.com/jitheshjr/hostel"
	"github.com/jitheshjr/hostel/api"
	"github.com/jitheshjr/hostel/id"
	"github.com/jitheshjr/hostel/observability"
	"github.com/jitheshjr/hostel/store/memory"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newServer(t *testing.T, opts ...api.Option) *testServer {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	eng := hostel.New(memory.New(), hostel.WithLogger(logger))
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop() })

	opts = append([]api.Option{api.WithLogger(logger)}, opts...)
	return &testServer{t: t, handler: api.New(eng, opts...).Handler()}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

type idBody struct {
	ID string `json:"id"`
}

type errBody struct {
	Error string `json:"error"`
	Field string `json:"field"`
}

func (s *testServer) addStudent(adm string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/hostel/students", map[string]any{"admission_no": adm, "name": "Student " + adm})
	if rec.Code != http.StatusCreated {
		s.t.Fatalf("add student %s: status %d body %s", adm, rec.Code, rec.Body)
	}
	return decode[idBody](s.t, rec).ID
}

func TestStudentEndpoints(t *testing.T) {
	s := newServer(t)
	a := s.addStudent("A1")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		field  string
	}{
		{"duplicate admission", http.MethodPost, "/hostel/students", map[string]any{"admission_no": "A1", "name": "x"}, http.StatusConflict, ""},
		{"missing name", http.MethodPost, "/hostel/students", map[string]any{"admission_no": "A2"}, http.StatusBadRequest, "name"},
		{"bad joined_at", http.MethodPost, "/hostel/students", map[string]any{"admission_no": "A3", "name": "x", "joined_at": "03/01/2024"}, http.StatusBadRequest, "joined_at"},
		{"unknown field", http.MethodPost, "/hostel/students", map[string]any{"admission_no": "A4", "name": "x", "room": 4}, http.StatusBadRequest, "body"},
		{"get", http.MethodGet, "/hostel/students/" + a, nil, http.StatusOK, ""},
		{"get malformed id", http.MethodGet, "/hostel/students/nope", nil, http.StatusBadRequest, "id"},
		{"get unknown", http.MethodGet, "/hostel/students/" + id.NewStudentID().String(), nil, http.StatusNotFound, ""},
		{"absences", http.MethodGet, "/hostel/students/" + a + "/absences", nil, http.StatusOK, ""},
		{"bad limit", http.MethodGet, "/hostel/students?limit=-1", nil, http.StatusBadRequest, "limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status: got %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
			if tt.field != "" {
				if got := decode[errBody](t, rec).Field; got != tt.field {
					t.Errorf("field: got %q, want %q", got, tt.field)
				}
			}
		})
	}

	rec := s.do(http.MethodPost, "/hostel/students/"+a+"/archive", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("archive: status %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/hostel/students/"+a+"/archive", nil); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("second archive: got %d, want 422", rec.Code)
	}

	active := decode[[]idBody](t, s.do(http.MethodGet, "/hostel/students?status=active", nil))
	if len(active) != 0 {
		t.Errorf("active students: got %d, want 0", len(active))
	}
}

func TestAttendanceEndpoints(t *testing.T) {
	s := newServer(t)
	a := s.addStudent("A1")
	b := s.addStudent("B1")

	rec := s.do(http.MethodPost, "/hostel/attendance", map[string]any{"date": "2024-03-01", "absent": []string{b}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("mark: status %d body %s", rec.Code, rec.Body)
	}
	marked := decode[struct {
		Date      idBody   `json:"date"`
		Absentees []idBody `json:"absentees"`
	}](t, rec)
	if len(marked.Absentees) != 1 {
		t.Fatalf("absentees: got %d, want 1", len(marked.Absentees))
	}

	if rec := s.do(http.MethodPost, "/hostel/attendance", map[string]any{"date": "2024-03-01", "absent": []string{a}}); rec.Code != http.StatusConflict {
		t.Errorf("second mark: got %d, want 409", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/hostel/attendance", map[string]any{"date": "2024-03-02", "absent": []string{"stu_bad"}}); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed absent id: got %d, want 400", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/hostel/attendance", map[string]any{"date": "2024-03-02", "absent": []string{id.NewStudentID().String()}}); rec.Code != http.StatusNotFound {
		t.Errorf("unknown absent student: got %d, want 404", rec.Code)
	}

	summary := decode[struct {
		Total   int `json:"total"`
		Present int `json:"present"`
		Absent  int `json:"absent"`
	}](t, s.do(http.MethodGet, "/hostel/attendance/summary/2024-03-01", nil))
	if summary.Total != 2 || summary.Present != 1 || summary.Absent != 1 {
		t.Errorf("summary: got %+v", summary)
	}

	dates := decode[[]idBody](t, s.do(http.MethodGet, "/hostel/attendance?month=3&year=2024", nil))
	if len(dates) != 1 {
		t.Fatalf("dates: got %d, want 1", len(dates))
	}

	if rec := s.do(http.MethodDelete, "/hostel/attendance/"+marked.Date.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete: got %d, want 204", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/hostel/attendance/"+marked.Date.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted: got %d, want 404", rec.Code)
	}
}

func TestBillEndpoints(t *testing.T) {
	s := newServer(t)
	s.addStudent("A1")
	b := s.addStudent("B1")
	for _, day := range []string{"2024-03-01", "2024-03-02"} {
		if rec := s.do(http.MethodPost, "/hostel/attendance", map[string]any{"date": day, "absent": []string{b}}); rec.Code != http.StatusCreated {
			t.Fatalf("mark %s: status %d", day, rec.Code)
		}
	}

	request := map[string]any{
		"period_start": "2024-03-01",
		"period_end":   "2024-03-02",
		"mess_amount":  "1000",
		"room_rent":    "0",
		"staff_salary": "100",
		"electricity":  "0",
	}
	rec := s.do(http.MethodPost, "/hostel/bills", request)
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate: status %d body %s", rec.Code, rec.Body)
	}
	billID := decode[idBody](t, rec).ID

	rows := decode[struct {
		EGrantz []struct{} `json:"egrantz"`
		Regular []struct {
			Amount struct {
				Amount int64 `json:"amount"`
			} `json:"amount"`
		} `json:"regular"`
	}](t, s.do(http.MethodGet, "/hostel/bills/"+billID+"/students", nil))
	if len(rows.Regular) != 2 || len(rows.EGrantz) != 0 {
		t.Fatalf("student bills: got %d regular, %d egrantz", len(rows.Regular), len(rows.EGrantz))
	}
	for _, r := range rows.Regular {
		// 1000 over 4 chargeable days is 250 a day, plus half the staff salary.
		if r.Amount.Amount != 55000 {
			t.Errorf("student amount: got %d paise, want 55000", r.Amount.Amount)
		}
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"duplicate period", http.MethodPost, "/hostel/bills", request, http.StatusConflict},
		{"attendance gap", http.MethodPost, "/hostel/bills", map[string]any{
			"period_start": "2024-04-01", "period_end": "2024-04-02",
			"mess_amount": "1000", "room_rent": "0", "staff_salary": "0", "electricity": "0",
		}, http.StatusUnprocessableEntity},
		{"non-numeric amount", http.MethodPost, "/hostel/bills", map[string]any{
			"period_start": "2024-04-01", "period_end": "2024-04-02",
			"mess_amount": "lots", "room_rent": "0", "staff_salary": "0", "electricity": "0",
		}, http.StatusBadRequest},
		{"sub-paisa amount", http.MethodPost, "/hostel/bills", map[string]any{
			"period_start": "2024-04-01", "period_end": "2024-04-02",
			"mess_amount": "6000.005", "room_rent": "0", "staff_salary": "0", "electricity": "0",
		}, http.StatusBadRequest},
		{"by period", http.MethodGet, "/hostel/bills/period/2024/3", nil, http.StatusOK},
		{"by bad month", http.MethodGet, "/hostel/bills/period/2024/13", nil, http.StatusBadRequest},
		{"missing period", http.MethodGet, "/hostel/bills/period/2024/4", nil, http.StatusNotFound},
		{"streaks", http.MethodGet, "/hostel/bills/" + billID + "/streaks", nil, http.StatusOK},
		{"list", http.MethodGet, "/hostel/bills?year=2024", nil, http.StatusOK},
		{"unknown bill", http.MethodGet, "/hostel/bills/" + id.NewMessBillID().String(), nil, http.StatusNotFound},
		{"wrong id prefix", http.MethodGet, "/hostel/bills/" + id.NewStudentID().String(), nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := s.do(tt.method, tt.path, tt.body); rec.Code != tt.status {
				t.Errorf("status: got %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
		})
	}

	if rec := s.do(http.MethodDelete, "/hostel/bills/"+billID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d, want 204", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/hostel/bills/"+billID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted: got %d, want 404", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	reg := metrics.NewMetricsCollector("hostel")
	reg.Counter("hostel.bill.generated").Inc()
	s := newServer(t, api.WithMetrics(reg), api.WithBasePath("mess/"))

	if rec := s.do(http.MethodGet, "/mess/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz: got %d", rec.Code)
	}
	samples := decode[[]observability.Sample](t, s.do(http.MethodGet, "/mess/metrics", nil))
	if len(samples) != 1 || samples[0].Value != 1 {
		t.Errorf("metrics: got %+v", samples)
	}

	plain := newServer(t)
	if rec := plain.do(http.MethodGet, "/hostel/metrics", nil); rec.Code != http.StatusNotFound {
		t.Errorf("metrics without registry: got %d, want 404", rec.Code)
	}
}

func TestMiddleware(t *testing.T) {
	t.Run("rate limit", func(t *testing.T) {
		s := newServer(t, api.WithRateLimit(2, time.Minute))
		for i := 0; i < 2; i++ {
			if rec := s.do(http.MethodGet, "/hostel/healthz", nil); rec.Code != http.StatusOK {
				t.Fatalf("request %d: got %d", i, rec.Code)
			}
		}
		if rec := s.do(http.MethodGet, "/hostel/healthz", nil); rec.Code != http.StatusTooManyRequests {
			t.Errorf("third request: got %d, want 429", rec.Code)
		}
	})

	t.Run("cors preflight", func(t *testing.T) {
		s := newServer(t, api.WithCORSOrigins("https://mess.example"))
		req := httptest.NewRequest(http.MethodOptions, "/hostel/bills", nil)
		req.Header.Set("Origin", "https://mess.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://mess.example" {
			t.Errorf("allow origin: got %q", got)
		}
	})
}
