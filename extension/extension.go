// Package extension provides the Forge extension adapter for the hostel
// mess-bill engine.
//
// It implements the forge.Extension interface to integrate the engine into a
// Forge application with DI registration and lifecycle management. The
// engine and, unless routes are disabled, its HTTP API are provided through
// the container; the application mounts the API handler where it wants.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.hostel" or "hostel" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xraph/forge"
	"github.com/xraph/go-utils/metrics"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/jitheshjr/hostel"
	"github.com/jitheshjr/hostel/api"
	"github.com/jitheshjr/hostel/observability"
	"github.com/jitheshjr/hostel/store"
	"github.com/jitheshjr/hostel/store/memory"
	"github.com/jitheshjr/hostel/store/mongo"
	"github.com/jitheshjr/hostel/store/postgres"
	"github.com/jitheshjr/hostel/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "hostel"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Hostel attendance and mess-bill engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the hostel engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config      Config
	engine      *hostel.Engine
	api         *api.API
	store       store.Store
	groveDB     *grove.DB
	groveDriver string
	metrics     metrics.Metrics
	hostelOpts  []hostel.Option
}

// New creates a new hostel Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine. This is nil until Register is called.
func (e *Extension) Engine() *hostel.Engine { return e.engine }

// Collector returns the metrics collector fed by the metrics plugin. This is
// nil until Register is called unless one was set with WithMetrics.
func (e *Extension) Collector() metrics.Metrics { return e.metrics }

// API returns the HTTP API, or nil when routes are disabled.
func (e *Extension) API() *api.API { return e.api }

// Register implements [forge.Extension]. It loads configuration, builds the
// store and engine, and registers them in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	s, err := e.resolveStore()
	if err != nil {
		return err
	}
	e.store = s

	opts, err := e.buildHostelOpts()
	if err != nil {
		return err
	}
	e.engine = hostel.New(e.store, opts...)

	if err := vessel.Provide(fapp.Container(), func() (*hostel.Engine, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}

	if e.config.DisableRoutes {
		return nil
	}
	e.api = api.New(e.engine,
		api.WithBasePath(e.config.BasePath),
		api.WithMetrics(e.metrics),
	)
	return vessel.Provide(fapp.Container(), func() (*api.API, error) {
		return e.api, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("hostel: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("hostel: store not initialized")
	}
	return e.store.Ping(ctx)
}

// resolveStore picks the backend: a grove database when one was given, then
// an explicit store, then the in-memory store.
func (e *Extension) resolveStore() (store.Store, error) {
	if e.groveDB == nil {
		if e.store != nil {
			return e.store, nil
		}
		return memory.New(), nil
	}

	switch e.groveDriver {
	case DriverPostgres:
		return postgres.New(e.groveDB), nil
	case DriverSQLite:
		return sqlite.New(e.groveDB), nil
	case DriverMongo:
		return mongo.New(e.groveDB), nil
	default:
		return nil, fmt.Errorf("hostel: unknown grove driver %q", e.groveDriver)
	}
}

// buildHostelOpts constructs hostel.Option values from the resolved config
// and registers the metrics plugin. Pass-through options are applied last so
// they win.
func (e *Extension) buildHostelOpts() ([]hostel.Option, error) {
	opts := make([]hostel.Option, 0, len(e.hostelOpts)+3)

	if e.metrics == nil {
		e.metrics = metrics.NewMetricsCollector(ExtensionName)
	}
	opts = append(opts, hostel.WithPlugin(observability.NewMetricsExtension(e.metrics)))

	if e.config.MinStreakDays > 0 {
		opts = append(opts, hostel.WithMinStreakDays(e.config.MinStreakDays))
	}
	if e.config.StipendSupplement != "" {
		supplement, err := decimal.NewFromString(e.config.StipendSupplement)
		if err != nil {
			return nil, hostel.ValidationError{Field: "stipend_supplement", Message: err.Error()}
		}
		opts = append(opts, hostel.WithStipendSupplement(supplement))
	}

	return append(opts, e.hostelOpts...), nil
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("hostel: configuration is required but not found in config files; " +
				"ensure 'extensions.hostel' or 'hostel' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("hostel: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("min_streak_days", e.config.MinStreakDays),
		forge.F("stipend_supplement", e.config.StipendSupplement),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.hostel", "hostel"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("hostel: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("hostel: loaded config from file", forge.F("key", key))
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.MinStreakDays == 0 {
		cfg.MinStreakDays = defaults.MinStreakDays
	}
	if cfg.StipendSupplement == "" {
		cfg.StipendSupplement = defaults.StipendSupplement
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML takes precedence; programmatic values fill gaps and true bool flags
// always apply.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	if yamlConfig.BasePath == "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.MinStreakDays == 0 {
		yamlConfig.MinStreakDays = programmaticConfig.MinStreakDays
	}
	if yamlConfig.StipendSupplement == "" {
		yamlConfig.StipendSupplement = programmaticConfig.StipendSupplement
	}

	return mergeWithDefaults(yamlConfig)
}
