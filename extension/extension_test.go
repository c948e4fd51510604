package extension

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/go-utils/metrics"

	"github.com/jitheshjr/hostel"
	"github.com/jitheshjr/hostel/store/memory"
	"github.com/jitheshjr/hostel/student"
)

func TestMergeConfigurations(t *testing.T) {
	tests := []struct {
		name         string
		yaml         Config
		programmatic Config
		want         Config
	}{
		{
			name: "defaults fill zeros",
			want: DefaultConfig(),
		},
		{
			name:         "yaml wins",
			yaml:         Config{BasePath: "/mess", MinStreakDays: 5},
			programmatic: Config{BasePath: "/other", MinStreakDays: 9, StipendSupplement: "250"},
			want:         Config{BasePath: "/mess", MinStreakDays: 5, StipendSupplement: "250"},
		},
		{
			name:         "programmatic flags apply",
			programmatic: Config{DisableRoutes: true, DisableMigrate: true},
			want: Config{
				DisableRoutes:     true,
				DisableMigrate:    true,
				BasePath:          "/hostel",
				MinStreakDays:     7,
				StipendSupplement: "300",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mergeConfigurations(tt.yaml, tt.programmatic); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolveStore(t *testing.T) {
	e := New()
	s, err := e.resolveStore()
	if err != nil {
		t.Fatalf("resolveStore: %v", err)
	}
	if _, ok := s.(*memory.Store); !ok {
		t.Errorf("default store: got %T, want *memory.Store", s)
	}

	explicit := memory.New()
	e = New(WithStore(explicit))
	s, err = e.resolveStore()
	if err != nil {
		t.Fatalf("resolveStore: %v", err)
	}
	if s != explicit {
		t.Error("explicit store was not used")
	}
}

func TestMetricsPluginRecords(t *testing.T) {
	collector := metrics.NewMetricsCollector("test")
	e := New(WithMetrics(collector))
	opts, err := e.buildHostelOpts()
	if err != nil {
		t.Fatalf("buildHostelOpts: %v", err)
	}

	ctx := context.Background()
	eng := hostel.New(memory.New(), opts...)
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = eng.Stop() }()

	if err := eng.AddStudent(ctx, &student.Student{AdmissionNo: "A1", Name: "Asha"}); err != nil {
		t.Fatalf("AddStudent: %v", err)
	}
	if got := collector.Counter("hostel.student.added").Value(); got != 1 {
		t.Errorf("hostel.student.added: got %v, want 1", got)
	}
}

func TestBuildHostelOpts(t *testing.T) {
	e := New(WithMinStreakDays(5), WithStipendSupplement("250.50"))
	e.config = mergeWithDefaults(e.config)
	opts, err := e.buildHostelOpts()
	if err != nil {
		t.Fatalf("buildHostelOpts: %v", err)
	}
	if len(opts) != 3 {
		t.Errorf("options: got %d, want 3", len(opts))
	}
	if e.Collector() == nil {
		t.Error("metrics collector was not created")
	}

	e = New(WithStipendSupplement("three hundred"))
	_, err = e.buildHostelOpts()
	var ve hostel.ValidationError
	if !errors.As(err, &ve) || ve.Field != "stipend_supplement" {
		t.Errorf("bad supplement: got %v", err)
	}
}
