// Package config loads the command line configuration: logging, the browser
// target and the routine option map. Values come from defaults, an optional
// yaml file and USER_ROUTINE_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. USER_ROUTINE_BROWSER_URL.
const EnvPrefix = "USER_ROUTINE"

// DefaultConfigName is looked up in the working directory when no file is given.
const DefaultConfigName = "user-routine"

type Config struct {
	Logger  LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Server  ServerConfig   `mapstructure:"server" yaml:"server"`
	Routine map[string]any `mapstructure:"routine" yaml:"routine"`
}

// LoggerConfig holds the zap logger settings.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig names the console color of each log level.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig selects the document a routine runs against.
type BrowserConfig struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"`
	URL             string        `mapstructure:"url" yaml:"url"`
	HTML            string        `mapstructure:"html" yaml:"html"`
	Headless        bool          `mapstructure:"headless" yaml:"headless"`
	Stealth         bool          `mapstructure:"stealth" yaml:"stealth"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserDataDir     string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	ScreenshotDir   string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	ScreenshotScale float64       `mapstructure:"screenshot_scale" yaml:"screenshot_scale"`
}

// ServerConfig configures `serve`.
type ServerConfig struct {
	Transport string        `mapstructure:"transport" yaml:"transport"`
	Addr      string        `mapstructure:"addr" yaml:"addr"`
	ResultTTL time.Duration `mapstructure:"result_ttl" yaml:"result_ttl"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "user-routine")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", false)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.driver", "")
	v.SetDefault("browser.url", "")
	v.SetDefault("browser.html", "")
	v.SetDefault("browser.user_data_dir", "")
	v.SetDefault("browser.screenshot_dir", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.stealth", false)
	v.SetDefault("browser.timeout", "30s")
	v.SetDefault("browser.screenshot_scale", 0.5)

	// -- Server --
	v.SetDefault("server.transport", "stdio")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.result_ttl", "10m")
}

// Load reads file (or ./user-routine.yaml when file is empty) and the
// environment into v and decodes the result. A missing default file is not
// an error; a missing explicit file is.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return NewConfigFromViper(v)
}

// NewConfigFromViper decodes and validates the settings held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format)
	}
	if c.Browser.URL != "" && c.Browser.HTML != "" {
		return fmt.Errorf("browser.url and browser.html are mutually exclusive")
	}
	if c.Browser.Timeout < 0 {
		return fmt.Errorf("browser.timeout must not be negative")
	}
	if c.Browser.ScreenshotScale <= 0 || c.Browser.ScreenshotScale > 1 {
		return fmt.Errorf("browser.screenshot_scale must be in (0, 1], got %v", c.Browser.ScreenshotScale)
	}
	switch c.Server.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("server.transport must be stdio or http, got %q", c.Server.Transport)
	}
	if c.Server.ResultTTL <= 0 {
		return fmt.Errorf("server.result_ttl must be positive")
	}
	return nil
}
