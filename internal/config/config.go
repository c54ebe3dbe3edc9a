package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Edgar      EdgarConfig      `yaml:"edgar" mapstructure:"edgar"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Registry   RegistryConfig   `yaml:"registry" mapstructure:"registry"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Publish    PublishConfig    `yaml:"publish" mapstructure:"publish"`
	OCR        OCRConfig        `yaml:"ocr" mapstructure:"ocr"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// EdgarConfig configures access to SEC EDGAR.
type EdgarConfig struct {
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	SubmissionsURL string  `yaml:"submissions_url" mapstructure:"submissions_url"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	PauseMS        int     `yaml:"pause_ms" mapstructure:"pause_ms"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	RateLimit      float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // published requests/sec ceiling
}

// Timeout returns the per-request timeout.
func (c EdgarConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Pause returns the politeness delay before each request.
func (c EdgarConfig) Pause() time.Duration {
	return time.Duration(c.PauseMS) * time.Millisecond
}

// PipelineConfig configures a pipeline run.
type PipelineConfig struct {
	OutputRoot           string   `yaml:"output_root" mapstructure:"output_root"`
	CacheDir             string   `yaml:"cache_dir" mapstructure:"cache_dir"`
	Workers              int      `yaml:"workers" mapstructure:"workers"` // 0 derives a safe count from pause and rate limit
	Since                string   `yaml:"since" mapstructure:"since"`
	Until                string   `yaml:"until" mapstructure:"until"`
	RefreshMode          string   `yaml:"refresh_mode" mapstructure:"refresh_mode"`
	RefreshMaxAgeHours   int      `yaml:"refresh_max_age_hours" mapstructure:"refresh_max_age_hours"`
	MaxRetries           int      `yaml:"max_retries" mapstructure:"max_retries"`
	DefaultEffectiveDays int      `yaml:"default_effective_days" mapstructure:"default_effective_days"`
	FormExact            []string `yaml:"form_exact" mapstructure:"form_exact"`
	FormPrefixes         []string `yaml:"form_prefixes" mapstructure:"form_prefixes"`
	HeaderOnlyForms      []string `yaml:"header_only_forms" mapstructure:"header_only_forms"`
}

// RegistryConfig locates the monitored-trust registry.
type RegistryConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// StoreConfig configures the local run history database.
type StoreConfig struct {
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// PublishConfig configures the optional Postgres sink.
type PublishConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// OCRConfig configures PDF text extraction.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// MetricsConfig configures run metrics export.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path" mapstructure:"textfile_path"`
}

// ServerConfig configures the ops HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures run-health alerting in the ops server.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinRuns              int     `yaml:"min_runs" mapstructure:"min_runs"`
	StaleAfterHours      int     `yaml:"stale_after_hours" mapstructure:"stale_after_hours"` // 0 disables the stale-run alert
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ETP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("edgar.user_agent", "etp-tracker/1.0 (contact: set edgar.user_agent)")
	v.SetDefault("edgar.submissions_url", "https://data.sec.gov/submissions/CIK{CIK10}.json")
	v.SetDefault("edgar.timeout_secs", 45)
	v.SetDefault("edgar.pause_ms", 350)
	v.SetDefault("edgar.max_retries", 3)
	v.SetDefault("edgar.rate_limit", 10.0)
	v.SetDefault("pipeline.output_root", "outputs")
	v.SetDefault("pipeline.cache_dir", "http_cache")
	v.SetDefault("pipeline.workers", 0)
	v.SetDefault("pipeline.refresh_mode", "stale")
	v.SetDefault("pipeline.refresh_max_age_hours", 6)
	v.SetDefault("pipeline.max_retries", 3)
	v.SetDefault("pipeline.default_effective_days", 75)
	v.SetDefault("pipeline.form_exact", []string{"EFFECT"})
	v.SetDefault("pipeline.form_prefixes", []string{"485A", "485B", "497", "N-1A", "S-1", "S-3"})
	v.SetDefault("pipeline.header_only_forms", []string{"485BXT", "497J"})
	v.SetDefault("registry.path", "trusts.yaml")
	v.SetDefault("store.sqlite_path", "etp_runs.db")
	v.SetDefault("ocr.provider", "local")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 168)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.min_runs", 3)
	v.SetDefault("monitoring.stale_after_hours", 36)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given command mode: "run",
// "serve", "publish", or "local" for commands that only read outputs.
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Pipeline.OutputRoot == "" {
		errs = append(errs, "pipeline.output_root is required")
	}

	switch mode {
	case "run":
		if strings.TrimSpace(c.Edgar.UserAgent) == "" {
			errs = append(errs, "edgar.user_agent is required")
		}
		if c.Registry.Path == "" {
			errs = append(errs, "registry.path is required")
		}
		if c.Edgar.TimeoutSecs <= 0 {
			errs = append(errs, "edgar.timeout_secs must be > 0")
		}
		if c.Edgar.PauseMS < 0 {
			errs = append(errs, "edgar.pause_ms must be >= 0")
		}
		if c.Edgar.MaxRetries < 0 || c.Edgar.MaxRetries > 10 {
			errs = append(errs, "edgar.max_retries must be between 0 and 10")
		}
		if c.Edgar.RateLimit < 0 {
			errs = append(errs, "edgar.rate_limit must be >= 0")
		}
		if c.Pipeline.Workers < 0 || c.Pipeline.Workers > 32 {
			errs = append(errs, "pipeline.workers must be between 0 and 32")
		}
		if c.Pipeline.MaxRetries < 1 {
			errs = append(errs, "pipeline.max_retries must be >= 1")
		}
		if c.Pipeline.DefaultEffectiveDays < 0 {
			errs = append(errs, "pipeline.default_effective_days must be >= 0")
		}
		if c.Pipeline.RefreshMaxAgeHours < 0 {
			errs = append(errs, "pipeline.refresh_max_age_hours must be >= 0")
		}
		if len(c.Pipeline.FormExact) == 0 && len(c.Pipeline.FormPrefixes) == 0 {
			errs = append(errs, "pipeline.form_exact or pipeline.form_prefixes is required")
		}
		errs = append(errs, c.validateWindow()...)
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if t := c.Monitoring.FailureRateThreshold; t < 0 || t > 1 {
			errs = append(errs, "monitoring.failure_rate_threshold must be between 0 and 1")
		}
		if c.Monitoring.LookbackWindowHours <= 0 {
			errs = append(errs, "monitoring.lookback_window_hours must be > 0")
		}
	case "publish":
		if c.Publish.DatabaseURL == "" {
			errs = append(errs, "publish.database_url is required")
		}
	case "local":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateWindow() []string {
	var errs []string
	var since, until time.Time
	if c.Pipeline.Since != "" {
		t, err := time.Parse(time.DateOnly, c.Pipeline.Since)
		if err != nil {
			errs = append(errs, "pipeline.since must be YYYY-MM-DD")
		}
		since = t
	}
	if c.Pipeline.Until != "" {
		t, err := time.Parse(time.DateOnly, c.Pipeline.Until)
		if err != nil {
			errs = append(errs, "pipeline.until must be YYYY-MM-DD")
		}
		until = t
	}
	if !since.IsZero() && !until.IsZero() && until.Before(since) {
		errs = append(errs, "pipeline.until must not be before pipeline.since")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
