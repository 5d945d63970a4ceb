package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/proth-cli/internal/resonance"
)

// Config holds the full application configuration.
type Config struct {
	Resonance resonance.Params `yaml:"resonance" mapstructure:"resonance"`
	Proth     ProthConfig      `yaml:"proth" mapstructure:"proth"`
	Certify   CertifyConfig    `yaml:"certify" mapstructure:"certify"`
	Ablation  AblationConfig   `yaml:"ablation" mapstructure:"ablation"`
	Batch     BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Store     StoreConfig      `yaml:"store" mapstructure:"store"`
	Server    ServerConfig     `yaml:"server" mapstructure:"server"`
	Log       LogConfig        `yaml:"log" mapstructure:"log"`
}

// ProthConfig configures the witness search and the random hunt.
type ProthConfig struct {
	Trials  int   `yaml:"trials" mapstructure:"trials"`
	Seed    int64 `yaml:"seed" mapstructure:"seed"`
	Samples int   `yaml:"samples" mapstructure:"samples"`
	NMin    uint  `yaml:"n_min" mapstructure:"n_min"`
	NMax    uint  `yaml:"n_max" mapstructure:"n_max"`
}

// CertifyConfig configures the certification funnel and the external tool.
type CertifyConfig struct {
	ECPPCmd           string   `yaml:"ecpp_cmd" mapstructure:"ecpp_cmd"`
	TimeoutSecs       int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CertSuffixes      []string `yaml:"cert_suffixes" mapstructure:"cert_suffixes"`
	MaxLaunchesPerSec float64  `yaml:"max_launches_per_sec" mapstructure:"max_launches_per_sec"`
	RequireRigor      bool     `yaml:"require_rigor" mapstructure:"require_rigor"`
	CrossCheck        bool     `yaml:"cross_check" mapstructure:"cross_check"`
	ResonanceMaxN     uint64   `yaml:"resonance_max_n" mapstructure:"resonance_max_n"`
	MaxAttempts       int      `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryBackoffMs    int      `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// Timeout returns the external tool deadline (zero means none).
func (c CertifyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// AblationConfig configures the offline ablation harness.
type AblationConfig struct {
	N       uint64 `yaml:"n" mapstructure:"n"`
	Workers int    `yaml:"workers" mapstructure:"workers"`
}

// BatchConfig configures parallel candidate processing.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
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
	v.SetEnvPrefix("PROTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("resonance.k", resonance.DefaultK)
	v.SetDefault("resonance.r", resonance.DefaultR)
	v.SetDefault("resonance.beta", resonance.DefaultBeta)
	v.SetDefault("resonance.alpha", resonance.DefaultAlpha)
	v.SetDefault("resonance.mu", resonance.DefaultMu)
	v.SetDefault("resonance.t", resonance.DefaultT)
	v.SetDefault("resonance.thresh", resonance.DefaultThresh)
	v.SetDefault("proth.trials", 10)
	v.SetDefault("proth.seed", 2025)
	v.SetDefault("proth.samples", 400)
	v.SetDefault("proth.n_min", 8)
	v.SetDefault("proth.n_max", 22)
	v.SetDefault("certify.ecpp_cmd", "")
	v.SetDefault("certify.timeout_secs", 600)
	v.SetDefault("certify.cert_suffixes", []string{".ecpp", ".cert"})
	v.SetDefault("certify.max_launches_per_sec", 0)
	v.SetDefault("certify.require_rigor", false)
	v.SetDefault("certify.cross_check", false)
	v.SetDefault("certify.resonance_max_n", 1_000_000_000_000)
	v.SetDefault("certify.max_attempts", 1)
	v.SetDefault("certify.retry_backoff_ms", 1000)
	v.SetDefault("ablation.n", 20000)
	v.SetDefault("ablation.workers", 4)
	v.SetDefault("batch.max_concurrent", 4)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "proth.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
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

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if err := c.Resonance.Validate(); err != nil {
		return eris.Wrap(err, "config: resonance")
	}
	if c.Proth.Trials < 0 {
		return eris.Errorf("config: proth.trials must be >= 0 (got %d)", c.Proth.Trials)
	}
	if c.Proth.NMin < 1 || c.Proth.NMax < c.Proth.NMin {
		return eris.Errorf("config: proth n range [%d, %d] is invalid", c.Proth.NMin, c.Proth.NMax)
	}
	if c.Certify.TimeoutSecs < 0 {
		return eris.New("config: certify.timeout_secs must be >= 0")
	}
	if c.Certify.MaxLaunchesPerSec < 0 {
		return eris.New("config: certify.max_launches_per_sec must be >= 0")
	}
	if c.Certify.MaxAttempts < 1 {
		return eris.New("config: certify.max_attempts must be >= 1")
	}
	if c.Certify.RequireRigor && c.Certify.ECPPCmd == "" {
		return eris.New("config: certify.require_rigor needs certify.ecpp_cmd")
	}
	if c.Certify.ECPPCmd != "" && !strings.Contains(c.Certify.ECPPCmd, "{N}") {
		return eris.Errorf("config: certify.ecpp_cmd %q has no {N} placeholder", c.Certify.ECPPCmd)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Batch.MaxConcurrent < 1 {
		return eris.New("config: batch.max_concurrent must be >= 1")
	}
	return nil
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
