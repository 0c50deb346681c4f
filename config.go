package cms

import "time"

// AppConfig carries the embedding application's public identity.
type AppConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// MigrationsConfig points at the on-disk migrations/snapshots layout (spec
// section 3.5/4.9).
type MigrationsConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

// RealtimeConfig tunes the SSE multiplexer (spec section 4.6).
type RealtimeConfig struct {
	PingInterval time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
}

// SearchConfig tunes the debounced search indexing pipeline (spec section
// 4.8).
type SearchConfig struct {
	DebounceWindow time.Duration `mapstructure:"debounce_window" yaml:"debounce_window"`
}

// Config is the single structured runtime configuration value referenced by
// spec section 6.4. Its mapstructure/yaml tags let an embedding
// application decode it with viper or yaml.v3; this module ships no loader
// for it (cmd/cmsctl binds only its own connection flags).
type Config struct {
	App           AppConfig        `mapstructure:"app" yaml:"app"`
	Secret        string           `mapstructure:"secret" yaml:"secret"`
	DefaultLocale string           `mapstructure:"default_locale" yaml:"default_locale"`
	Migrations    MigrationsConfig `mapstructure:"migrations" yaml:"migrations"`
	Realtime      RealtimeConfig   `mapstructure:"realtime" yaml:"realtime"`
	SearchConfig  SearchConfig     `mapstructure:"search" yaml:"search"`

	DB      DB      `mapstructure:"-"`
	Queue   Queue   `mapstructure:"-"`
	Storage Storage `mapstructure:"-"`
	KV      KV      `mapstructure:"-"`
	Mailer  Mailer  `mapstructure:"-"`
	Logger  Logger  `mapstructure:"-"`
	Search  Search  `mapstructure:"-"`
	Auth    Auth    `mapstructure:"-"`
}
