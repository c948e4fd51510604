package extension

import (
	"github.com/xraph/go-utils/metrics"
	"github.com/xraph/grove"

	"github.com/jitheshjr/hostel"
	"github.com/jitheshjr/hostel/plugin"
	"github.com/jitheshjr/hostel/store"
)

// Grove driver names accepted by WithGroveDB.
const (
	DriverPostgres = "pg"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Option configures the hostel Forge extension.
type Option func(*Extension)

// WithStore sets the store for the hostel engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB builds the store from an open grove database. driver selects
// the backend: DriverPostgres, DriverSQLite or DriverMongo.
func WithGroveDB(db *grove.DB, driver string) Option {
	return func(e *Extension) {
		e.groveDB = db
		e.groveDriver = driver
	}
}

// WithHostelOption passes a hostel.Option through to the underlying engine.
func WithHostelOption(opt hostel.Option) Option {
	return func(e *Extension) {
		e.hostelOpts = append(e.hostelOpts, opt)
	}
}

// WithPlugin registers a hostel plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.hostelOpts = append(e.hostelOpts, hostel.WithPlugin(p))
	}
}

// WithMetrics sets the collector the metrics plugin records into. By default
// the extension creates its own.
func WithMetrics(m metrics.Metrics) Option {
	return func(e *Extension) { e.metrics = m }
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents HTTP route registration.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for hostel routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithMinStreakDays sets the shortest qualifying absence run.
func WithMinStreakDays(n int) Option {
	return func(e *Extension) { e.config.MinStreakDays = n }
}

// WithStipendSupplement sets the E-Grantz supplement as a decimal rupee string.
func WithStipendSupplement(amount string) Option {
	return func(e *Extension) { e.config.StipendSupplement = amount }
}
