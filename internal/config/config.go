// Package config loads apidesigner settings from defaults, an optional YAML
// or JSON file and APIDESIGNER_* environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/platformcommons/apidesigner/internal/spec"
)

// EnvPrefix prefixes environment overrides: server.addr is read from
// APIDESIGNER_SERVER_ADDR.
const EnvPrefix = "APIDESIGNER"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Designer DesignerConfig `mapstructure:"designer"`
	Loader   LoaderConfig   `mapstructure:"loader"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Debug           bool          `mapstructure:"debug"`
	MaxSessions     int           `mapstructure:"maxSessions"`
	MaxBodyBytes    int64         `mapstructure:"maxBodyBytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DesignerConfig struct {
	Importer string `mapstructure:"importer"`
	Format   string `mapstructure:"format"`
}

type LoaderConfig struct {
	HTTPTimeout time.Duration `mapstructure:"httpTimeout"`
	MaxRetries  int           `mapstructure:"maxRetries"`
	BackoffBase time.Duration `mapstructure:"backoffBase"`
}

func setDefaults(v *viper.Viper) {
	loader := spec.DefaultSettings()
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.debug", false)
	v.SetDefault("server.maxSessions", 100)
	v.SetDefault("server.maxBodyBytes", 1<<20)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("designer.importer", spec.ImporterStructured)
	v.SetDefault("designer.format", string(spec.FormatYAML))
	v.SetDefault("loader.httpTimeout", loader.HTTPTimeout)
	v.SetDefault("loader.maxRetries", loader.MaxRetries)
	v.SetDefault("loader.backoffBase", loader.BackoffBase)
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads path (when non-empty) over the defaults and applies environment
// overrides. Unknown keys in the file are rejected.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Designer.Importer = strings.ToLower(strings.TrimSpace(c.Designer.Importer))
	c.Designer.Format = strings.ToLower(strings.TrimSpace(c.Designer.Format))
}

// Validate reports every setting that is out of range.
func (c *Config) Validate() error {
	var errs []error
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q (allowed: debug, info, warn, error)", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q (allowed: text, json)", c.Log.Format))
	}
	if _, err := spec.NewImporter(c.Designer.Importer); err != nil {
		errs = append(errs, fmt.Errorf("designer.importer %q (allowed: %s, %s)", c.Designer.Importer, spec.ImporterStructured, spec.ImporterHeuristic))
	}
	if _, err := spec.ParseFormat(c.Designer.Format); err != nil {
		errs = append(errs, fmt.Errorf("designer.format %q (allowed: yaml, json)", c.Designer.Format))
	}
	if c.Server.MaxSessions < 0 {
		errs = append(errs, errors.New("server.maxSessions must not be negative"))
	}
	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("server.maxBodyBytes must not be negative"))
	}
	if c.Loader.MaxRetries < 1 {
		errs = append(errs, errors.New("loader.maxRetries must be at least 1"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ExportFormat returns designer.format as a spec.Format.
func (c *Config) ExportFormat() spec.Format {
	f, err := spec.ParseFormat(c.Designer.Format)
	if err != nil {
		return spec.FormatYAML
	}
	return f
}

// LoaderOptions converts the loader section into spec loader options.
func (c *Config) LoaderOptions() []spec.Option {
	return []spec.Option{
		spec.WithHTTPTimeout(c.Loader.HTTPTimeout),
		spec.WithMaxRetries(c.Loader.MaxRetries),
		spec.WithBackoffBase(c.Loader.BackoffBase),
	}
}
