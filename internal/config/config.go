package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	CatalogPath string           `yaml:"catalog_path" mapstructure:"catalog_path"`
	Fetch       FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Resilience  ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Hosts       HostsConfig      `yaml:"hosts" mapstructure:"hosts"`
	History     HistoryConfig    `yaml:"history" mapstructure:"history"`
	Server      ServerConfig     `yaml:"server" mapstructure:"server"`
	Log         LogConfig        `yaml:"log" mapstructure:"log"`
}

// FetchConfig configures the fetch pipeline.
type FetchConfig struct {
	BatchSize           int `yaml:"batch_size" mapstructure:"batch_size"`
	BatchStaggerSecs    int `yaml:"batch_stagger_secs" mapstructure:"batch_stagger_secs"`
	StaleAfterMins      int `yaml:"stale_after_mins" mapstructure:"stale_after_mins"`
	RequestTimeoutSecs  int `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	FetchBudgetSecs     int `yaml:"fetch_budget_secs" mapstructure:"fetch_budget_secs"`
	RefreshIntervalSecs int `yaml:"refresh_interval_secs" mapstructure:"refresh_interval_secs"`
	HostRate            int `yaml:"host_rate" mapstructure:"host_rate"`
	HostBurst           int `yaml:"host_burst" mapstructure:"host_burst"`
}

// ResilienceConfig configures per-endpoint circuit breaking and call spacing.
type ResilienceConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	OpenDurationSecs int `yaml:"open_duration_secs" mapstructure:"open_duration_secs"`
	MinCallInterval  int `yaml:"min_call_interval_secs" mapstructure:"min_call_interval_secs"`
}

// HostsConfig holds the outbound host allow-lists. API and website hosts
// are separate lists; an entry with a leading dot also allows subdomains.
type HostsConfig struct {
	APIHosts     []string `yaml:"api_hosts" mapstructure:"api_hosts"`
	WebsiteHosts []string `yaml:"website_hosts" mapstructure:"website_hosts"`
}

// HistoryConfig configures the observation history backend. An empty driver
// disables persistence.
type HistoryConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("WAITBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("catalog_path", "facilities.yaml")
	v.SetDefault("fetch.batch_size", 10)
	v.SetDefault("fetch.batch_stagger_secs", 2)
	v.SetDefault("fetch.stale_after_mins", 15)
	v.SetDefault("fetch.request_timeout_secs", 30)
	v.SetDefault("fetch.fetch_budget_secs", 60)
	v.SetDefault("fetch.refresh_interval_secs", 300)
	v.SetDefault("fetch.host_rate", 1)
	v.SetDefault("fetch.host_burst", 2)
	v.SetDefault("resilience.failure_threshold", 3)
	v.SetDefault("resilience.open_duration_secs", 300)
	v.SetDefault("resilience.min_call_interval_secs", 2)
	v.SetDefault("hosts.api_hosts", []string{".clockwisemd.com", ".solvhealth.com"})
	v.SetDefault("hosts.website_hosts", []string{})
	v.SetDefault("history.driver", "sqlite")
	v.SetDefault("history.dsn", "waitboard.db")
	v.SetDefault("server.port", 8080)
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
