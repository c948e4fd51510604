package extension

// Config holds the hostel extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.hostel" or "hostel" keys).
type Config struct {
	// DisableRoutes prevents the HTTP API handler from being built.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for hostel routes (default: "/hostel").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// MinStreakDays is the shortest absence run that reduces mess days
	// (default: 7).
	MinStreakDays int `json:"min_streak_days" mapstructure:"min_streak_days" yaml:"min_streak_days"`

	// StipendSupplement is the per-head amount in rupees added to an
	// E-Grantz student's share, as a decimal string (default: "300").
	StipendSupplement string `json:"stipend_supplement" mapstructure:"stipend_supplement" yaml:"stipend_supplement"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:          "/hostel",
		MinStreakDays:     7,
		StipendSupplement: "300",
	}
}
