package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/jitheshjr/hostel/attendance"
	"github.com/jitheshjr/hostel/bill"
	"github.com/jitheshjr/hostel/student"
)

// DefaultTimeout bounds every plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit              []OnInit
	onShutdown          []OnShutdown
	onStudentAdded      []OnStudentAdded
	onStudentArchived   []OnStudentArchived
	onAttendanceMarked  []OnAttendanceMarked
	onAttendanceDeleted []OnAttendanceDeleted
	onBillGenerated     []OnBillGenerated
	onBillRejected      []OnBillRejected
	onBillDeleted       []OnBillDeleted
	onStreakDetected    []OnStreakDetected
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call plugin timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnStudentAdded); ok {
		r.onStudentAdded = append(r.onStudentAdded, v)
	}
	if v, ok := p.(OnStudentArchived); ok {
		r.onStudentArchived = append(r.onStudentArchived, v)
	}
	if v, ok := p.(OnAttendanceMarked); ok {
		r.onAttendanceMarked = append(r.onAttendanceMarked, v)
	}
	if v, ok := p.(OnAttendanceDeleted); ok {
		r.onAttendanceDeleted = append(r.onAttendanceDeleted, v)
	}
	if v, ok := p.(OnBillGenerated); ok {
		r.onBillGenerated = append(r.onBillGenerated, v)
	}
	if v, ok := p.(OnBillRejected); ok {
		r.onBillRejected = append(r.onBillRejected, v)
	}
	if v, ok := p.(OnBillDeleted); ok {
		r.onBillDeleted = append(r.onBillDeleted, v)
	}
	if v, ok := p.(OnStreakDetected); ok {
		r.onStreakDetected = append(r.onStreakDetected, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeFor[OnInit]()},
	{"OnShutdown", reflect.TypeFor[OnShutdown]()},
	{"OnStudentAdded", reflect.TypeFor[OnStudentAdded]()},
	{"OnStudentArchived", reflect.TypeFor[OnStudentArchived]()},
	{"OnAttendanceMarked", reflect.TypeFor[OnAttendanceMarked]()},
	{"OnAttendanceDeleted", reflect.TypeFor[OnAttendanceDeleted]()},
	{"OnBillGenerated", reflect.TypeFor[OnBillGenerated]()},
	{"OnBillRejected", reflect.TypeFor[OnBillRejected]()},
	{"OnBillDeleted", reflect.TypeFor[OnBillDeleted]()},
	{"OnStreakDetected", reflect.TypeFor[OnStreakDetected]()},
}

// implementedInterfaces returns the hook names the plugin implements.
func implementedInterfaces(p Plugin) []string {
	var names []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	emit(ctx, r, "OnInit", plugins, func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	emit(ctx, r, "OnShutdown", plugins, func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitStudentAdded emits a student added event.
func (r *Registry) EmitStudentAdded(ctx context.Context, s *student.Student) {
	r.mu.RLock()
	plugins := r.onStudentAdded
	r.mu.RUnlock()

	emit(ctx, r, "OnStudentAdded", plugins, func(p OnStudentAdded) error {
		return p.OnStudentAdded(ctx, s)
	})
}

// EmitStudentArchived emits a student archived event.
func (r *Registry) EmitStudentArchived(ctx context.Context, studentID string) {
	r.mu.RLock()
	plugins := r.onStudentArchived
	r.mu.RUnlock()

	emit(ctx, r, "OnStudentArchived", plugins, func(p OnStudentArchived) error {
		return p.OnStudentArchived(ctx, studentID)
	})
}

// EmitAttendanceMarked emits an attendance marked event.
func (r *Registry) EmitAttendanceMarked(ctx context.Context, d *attendance.Date, absent int) {
	r.mu.RLock()
	plugins := r.onAttendanceMarked
	r.mu.RUnlock()

	emit(ctx, r, "OnAttendanceMarked", plugins, func(p OnAttendanceMarked) error {
		return p.OnAttendanceMarked(ctx, d, absent)
	})
}

// EmitAttendanceDeleted emits an attendance deleted event.
func (r *Registry) EmitAttendanceDeleted(ctx context.Context, dateID string) {
	r.mu.RLock()
	plugins := r.onAttendanceDeleted
	r.mu.RUnlock()

	emit(ctx, r, "OnAttendanceDeleted", plugins, func(p OnAttendanceDeleted) error {
		return p.OnAttendanceDeleted(ctx, dateID)
	})
}

// EmitBillGenerated emits a bill generated event.
func (r *Registry) EmitBillGenerated(ctx context.Context, b *bill.MessBill, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onBillGenerated
	r.mu.RUnlock()

	emit(ctx, r, "OnBillGenerated", plugins, func(p OnBillGenerated) error {
		return p.OnBillGenerated(ctx, b, elapsed)
	})
}

// EmitBillRejected emits a bill rejected event.
func (r *Registry) EmitBillRejected(ctx context.Context, month time.Month, year int, err error) {
	r.mu.RLock()
	plugins := r.onBillRejected
	r.mu.RUnlock()

	emit(ctx, r, "OnBillRejected", plugins, func(p OnBillRejected) error {
		return p.OnBillRejected(ctx, month, year, err)
	})
}

// EmitBillDeleted emits a bill deleted event.
func (r *Registry) EmitBillDeleted(ctx context.Context, billID string) {
	r.mu.RLock()
	plugins := r.onBillDeleted
	r.mu.RUnlock()

	emit(ctx, r, "OnBillDeleted", plugins, func(p OnBillDeleted) error {
		return p.OnBillDeleted(ctx, billID)
	})
}

// EmitStreakDetected emits a streak detected event.
func (r *Registry) EmitStreakDetected(ctx context.Context, ca *bill.ContinuousAbsence) {
	r.mu.RLock()
	plugins := r.onStreakDetected
	r.mu.RUnlock()

	emit(ctx, r, "OnStreakDetected", plugins, func(p OnStreakDetected) error {
		return p.OnStreakDetected(ctx, ca)
	})
}

// emit runs fn for every plugin, logging failures. Hook errors never
// propagate to the caller.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, plugins []T, fn func(T) error) {
	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error { return fn(p) }); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the billing pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
