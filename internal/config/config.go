package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ZanzyTHEbar/quizstat/internal/errors"
)

const (
	EnvPrefix      = "QUIZSTAT"
	ConfigName     = "quizstat"
	MaxRespondents = 10000
)

// Config is the complete runtime configuration
type Config struct {
	DataDir      string `mapstructure:"data_dir" yaml:"data_dir"`
	CollatedFile string `mapstructure:"collated_file" yaml:"collated_file"`
	OutputDir    string `mapstructure:"output_dir" yaml:"output_dir"`

	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DownloadConfig controls fetching respondent files from the answer host
type DownloadConfig struct {
	BaseURL       string        `mapstructure:"base_url" yaml:"base_url"`
	Respondents   int           `mapstructure:"respondents" yaml:"respondents"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	MaxAttempts   int           `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// ServerConfig controls the HTTP surface. A zero CacheTTL disables the
// response cache.
type ServerConfig struct {
	Port               int           `mapstructure:"port" yaml:"port"`
	CacheTTL           time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxBodyBytes       int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	AllowedOrigins     []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	EnableHSTS         bool          `mapstructure:"enable_hsts" yaml:"enable_hsts"`
}

// AnalysisConfig tunes the pattern detector
type AnalysisConfig struct {
	Tolerance      float64 `mapstructure:"tolerance" yaml:"tolerance"`
	MaxCycleLength int     `mapstructure:"max_cycle_length" yaml:"max_cycle_length"`
}

// HistoryConfig locates the SQLite run history. An empty DBPath disables it.
type HistoryConfig struct {
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// SetDefaults registers every key's default on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")
	v.SetDefault("collated_file", "")
	v.SetDefault("output_dir", "out")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("download.base_url", "")
	v.SetDefault("download.respondents", 10)
	v.SetDefault("download.timeout", 30*time.Second)
	v.SetDefault("download.rate_per_second", 5.0)
	v.SetDefault("download.max_attempts", 3)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cache_ttl", 5*time.Minute)
	v.SetDefault("server.rate_limit_per_minute", 60)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.max_body_bytes", 4<<20)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.enable_hsts", false)
	v.SetDefault("analysis.tolerance", 0.1)
	v.SetDefault("analysis.max_cycle_length", 7)
	v.SetDefault("history.db_path", "")
}

// New returns a viper instance with defaults, env binding and the config
// file search path wired. Callers may bind flags before calling Load.
func New(configFile string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.quizstat")
	}
	return v
}

// Load reads the config file when one exists and unmarshals every layer
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if os.IsNotExist(err) {
				return nil, errors.NewNotFoundError(v.ConfigFileUsed(), err)
			}
			return nil, errors.NewFormatError(v.ConfigFileUsed(), "unreadable config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewFormatError(v.ConfigFileUsed(), "config does not match schema", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with no file, env or flags applied
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate rejects values outside their domain
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("log.level", c.Log.Level, "must be debug, info, warn or error")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return invalid("log.format", c.Log.Format, "must be json or text")
	}

	if c.Download.Respondents <= 0 || c.Download.Respondents > MaxRespondents {
		return invalid("download.respondents", c.Download.Respondents, fmt.Sprintf("must be between 1 and %d", MaxRespondents))
	}
	if c.Download.Timeout <= 0 {
		return invalid("download.timeout", c.Download.Timeout, "must be positive")
	}
	if c.Download.RatePerSecond <= 0 {
		return invalid("download.rate_per_second", c.Download.RatePerSecond, "must be positive")
	}
	if c.Download.MaxAttempts < 1 {
		return invalid("download.max_attempts", c.Download.MaxAttempts, "must be at least 1")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return invalid("server.port", c.Server.Port, "must be a TCP port")
	}
	if c.Server.CacheTTL < 0 {
		return invalid("server.cache_ttl", c.Server.CacheTTL, "must not be negative")
	}
	if c.Server.RateLimitPerMinute <= 0 {
		return invalid("server.rate_limit_per_minute", c.Server.RateLimitPerMinute, "must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return invalid("server.request_timeout", c.Server.RequestTimeout, "must be positive")
	}
	for _, o := range c.Server.AllowedOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return invalid("server.allowed_origins", o, "must be * or an http(s) origin")
		}
	}
	if c.Server.MaxBodyBytes <= 0 {
		return invalid("server.max_body_bytes", c.Server.MaxBodyBytes, "must be positive")
	}

	if c.Analysis.Tolerance <= 0 {
		return invalid("analysis.tolerance", c.Analysis.Tolerance, "must be positive")
	}
	if c.Analysis.MaxCycleLength < 2 {
		return invalid("analysis.max_cycle_length", c.Analysis.MaxCycleLength, "must be at least 2")
	}
	return nil
}

func invalid(key string, value interface{}, reason string) error {
	return errors.NewValidationError(fmt.Sprintf("invalid %s %v: %s", key, value, reason), "key", key)
}
