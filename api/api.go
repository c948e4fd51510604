// Package api exposes the hostel engine as a JSON HTTP API.
//
// Routes are mounted under a base path (default "/hostel"):
//
//	GET    /healthz
//	GET    /metrics
//	POST   /students                    GET /students
//	GET    /students/{id}               POST /students/{id}/archive
//	GET    /students/{id}/absences
//	POST   /attendance                  GET /attendance
//	GET    /attendance/{id}             DELETE /attendance/{id}
//	GET    /attendance/summary/{date}
//	POST   /bills                       GET /bills
//	GET    /bills/{id}                  DELETE /bills/{id}
//	GET    /bills/period/{year}/{month}
//	GET    /bills/{id}/students         GET /bills/{id}/streaks
package api

import (
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"
	"github.com/xraph/go-utils/metrics"

	"github.com/jitheshjr/hostel"
)

// DefaultBasePath is the URL prefix used when none is configured.
const DefaultBasePath = "/hostel"

// API serves the hostel engine over HTTP.
type API struct {
	engine   *hostel.Engine
	logger   *slog.Logger
	validate *validator.Validate
	metrics  metrics.MetricRepository

	basePath    string
	origins     []string
	rateLimit   int
	rateWindow  time.Duration
	maxBodySize int64
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the logger for request and error logging.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// WithBasePath sets the URL prefix for all routes.
func WithBasePath(path string) Option {
	return func(a *API) { a.basePath = path }
}

// WithCORSOrigins enables CORS for the given origins.
func WithCORSOrigins(origins ...string) Option {
	return func(a *API) { a.origins = origins }
}

// WithRateLimit limits each client IP to n requests per window. n <= 0
// disables limiting.
func WithRateLimit(n int, window time.Duration) Option {
	return func(a *API) {
		a.rateLimit = n
		a.rateWindow = window
	}
}

// WithMetrics serves a snapshot of the collector's metrics at /metrics.
func WithMetrics(r metrics.MetricRepository) Option {
	return func(a *API) { a.metrics = r }
}

// New creates an API for the engine.
func New(engine *hostel.Engine, opts ...Option) *API {
	a := &API{
		engine:      engine,
		logger:      slog.Default(),
		validate:    newValidator(),
		basePath:    DefaultBasePath,
		rateWindow:  time.Minute,
		maxBodySize: 1 << 20,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.basePath = "/" + strings.Trim(a.basePath, "/")
	return a
}

// BasePath returns the normalized URL prefix.
func (a *API) BasePath() string { return a.basePath }

// Handler builds the router with its middleware stack.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.logRequests)
	r.Use(middleware.Recoverer)
	if a.rateLimit > 0 {
		r.Use(httprate.LimitByIP(a.rateLimit, a.rateWindow))
	}

	r.Route(a.basePath, func(r chi.Router) {
		r.Get("/healthz", a.health)
		r.Get("/metrics", a.metricsSnapshot)

		r.Route("/students", func(r chi.Router) {
			r.Post("/", a.addStudent)
			r.Get("/", a.listStudents)
			r.Get("/{id}", a.getStudent)
			r.Post("/{id}/archive", a.archiveStudent)
			r.Get("/{id}/absences", a.studentAbsences)
		})

		r.Route("/attendance", func(r chi.Router) {
			r.Post("/", a.markAttendance)
			r.Get("/", a.listAttendance)
			r.Get("/summary/{date}", a.attendanceSummary)
			r.Get("/{id}", a.getAttendance)
			r.Delete("/{id}", a.deleteAttendance)
		})

		r.Route("/bills", func(r chi.Router) {
			r.Post("/", a.generateBill)
			r.Get("/", a.listBills)
			r.Get("/period/{year}/{month}", a.getBillByPeriod)
			r.Get("/{id}", a.getBill)
			r.Delete("/{id}", a.deleteBill)
			r.Get("/{id}/students", a.studentBills)
			r.Get("/{id}/streaks", a.streaks)
		})
	})

	if len(a.origins) == 0 {
		return r
	}
	return cors.New(cors.Options{
		AllowedOrigins: a.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(r)
}

// logRequests logs one line per request at Debug, or Warn for 5xx.
func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		a.logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
