package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/newthinker/backgrid/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Data     DataConfig     `mapstructure:"data"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	APIKey         string        `mapstructure:"api_key"`
	JobTTLHours    int           `mapstructure:"job_ttl_hours"`
	MaxJobs        int           `mapstructure:"max_jobs"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// BacktestConfig holds engine settings shared by every run.
type BacktestConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital"`
	RiskFreeRate   float64 `mapstructure:"risk_free_rate"`
	PeriodsPerYear int     `mapstructure:"periods_per_year"`
	IDPrefix       string  `mapstructure:"id_prefix"`
	UniqueIDs      bool    `mapstructure:"unique_ids"`
	DefaultFast    int     `mapstructure:"default_fast"`
	DefaultSlow    int     `mapstructure:"default_slow"`
}

// DataConfig selects and tunes the market data provider.
type DataConfig struct {
	Provider          string        `mapstructure:"provider"` // "yahoo" or "csv"
	CSVDir            string        `mapstructure:"csv_dir"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxRetryElapsed   time.Duration `mapstructure:"max_retry_elapsed"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Backend    string `mapstructure:"backend"` // "memory" or "sqlite"
	SQLitePath string `mapstructure:"sqlite_path"`
}

// ArchiveConfig configures cold storage for completed results.
type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "none", "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file on top of Defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every default so AutomaticEnv can see the keys.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.api_key", d.Server.APIKey)
	v.SetDefault("server.job_ttl_hours", d.Server.JobTTLHours)
	v.SetDefault("server.max_jobs", d.Server.MaxJobs)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)

	v.SetDefault("backtest.initial_capital", d.Backtest.InitialCapital)
	v.SetDefault("backtest.risk_free_rate", d.Backtest.RiskFreeRate)
	v.SetDefault("backtest.periods_per_year", d.Backtest.PeriodsPerYear)
	v.SetDefault("backtest.id_prefix", d.Backtest.IDPrefix)
	v.SetDefault("backtest.unique_ids", d.Backtest.UniqueIDs)
	v.SetDefault("backtest.default_fast", d.Backtest.DefaultFast)
	v.SetDefault("backtest.default_slow", d.Backtest.DefaultSlow)

	v.SetDefault("data.provider", d.Data.Provider)
	v.SetDefault("data.csv_dir", d.Data.CSVDir)
	v.SetDefault("data.requests_per_second", d.Data.RequestsPerSecond)
	v.SetDefault("data.max_retry_elapsed", d.Data.MaxRetryElapsed)
	v.SetDefault("data.timeout", d.Data.Timeout)

	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)

	v.SetDefault("archive.type", d.Archive.Type)
	v.SetDefault("archive.path", d.Archive.Path)
	v.SetDefault("archive.s3.region", d.Archive.S3.Region)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			JobTTLHours:    24,
			MaxJobs:        1000,
			RequestTimeout: 60 * time.Second,
		},
		Backtest: BacktestConfig{
			InitialCapital: 10000,
			RiskFreeRate:   0,
			PeriodsPerYear: 252,
			IDPrefix:       "manual",
			DefaultFast:    10,
			DefaultSlow:    30,
		},
		Data: DataConfig{
			Provider:          "yahoo",
			RequestsPerSecond: 2,
			MaxRetryElapsed:   30 * time.Second,
			Timeout:           10 * time.Second,
		},
		Storage: StorageConfig{
			Backend:    "memory",
			SQLitePath: "backgrid.db",
		},
		Archive: ArchiveConfig{
			Type: "none",
			S3:   S3Config{Region: "us-east-1"},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxJobs < 0 || c.Server.JobTTLHours < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_jobs and job_ttl_hours cannot be negative"))
	}

	// Backtest validation
	if c.Backtest.InitialCapital <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_capital must be positive, got %g", c.Backtest.InitialCapital))
	}
	if c.Backtest.PeriodsPerYear <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("periods_per_year must be positive, got %d", c.Backtest.PeriodsPerYear))
	}
	if c.Backtest.DefaultFast < 2 || c.Backtest.DefaultFast >= c.Backtest.DefaultSlow {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("default_fast (%d) must be at least 2 and less than default_slow (%d)",
				c.Backtest.DefaultFast, c.Backtest.DefaultSlow))
	}

	switch c.Data.Provider {
	case "yahoo":
	case "csv":
		if c.Data.CSVDir == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("csv_dir required when provider is csv"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown data provider %q", c.Data.Provider))
	}

	switch c.Storage.Backend {
	case "memory":
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("sqlite_path required when backend is sqlite"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	switch c.Archive.Type {
	case "", "none":
	case "localfs":
		if c.Archive.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("archive path required when type is localfs"))
		}
	case "s3":
		if c.Archive.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("s3 bucket required when archive type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown archive type %q", c.Archive.Type))
	}

	return nil
}
