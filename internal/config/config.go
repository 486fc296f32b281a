// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/SyedDaiam9101/onnxrun/internal/synth"
)

// Config holds all configuration for the tool and the service
type Config struct {
	// Runtime configuration
	LibraryPath    string `mapstructure:"library_path"`
	IntraOpThreads int    `mapstructure:"intra_op_threads"`
	InterOpThreads int    `mapstructure:"inter_op_threads"`

	// Comparison and synthetic input
	Decimal      int    `mapstructure:"decimal"`
	PrintCount   int    `mapstructure:"print_count"`
	DynamicDim   int64  `mapstructure:"dynamic_dim"`
	Distribution string `mapstructure:"distribution"`
	Seed         uint64 `mapstructure:"seed"`

	// Server configuration
	Port        int           `mapstructure:"port"`
	MetricsPort int           `mapstructure:"metrics_port"`
	Redis       string        `mapstructure:"redis"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`

	// OpenTelemetry configuration
	OTELEnabled  bool   `mapstructure:"otel_enabled"`
	OTELEndpoint string `mapstructure:"otel_endpoint"`

	// Feature flags
	UseMockInference bool `mapstructure:"use_mock_inference"`

	LogLevel string `mapstructure:"log_level"`
}

const EnvPrefix = "ONNXRUN"

// flagKeys maps CLI flag names that differ from their config key.
var flagKeys = map[string]string{
	"mock":         "use_mock_inference",
	"otel":         "otel_enabled",
	"metrics-port": "metrics_port",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("library_path", "")
	v.SetDefault("intra_op_threads", 1)
	v.SetDefault("inter_op_threads", 1)
	v.SetDefault("decimal", 4)
	v.SetDefault("print_count", 5)
	v.SetDefault("dynamic_dim", 1)
	v.SetDefault("distribution", string(synth.Uniform))
	v.SetDefault("seed", 0)
	v.SetDefault("port", 50051)
	v.SetDefault("metrics_port", 9100)
	v.SetDefault("redis", "")
	v.SetDefault("cache_ttl", 5*time.Minute)
	v.SetDefault("otel_enabled", false)
	v.SetDefault("otel_endpoint", "")
	v.SetDefault("use_mock_inference", false)
	v.SetDefault("log_level", "info")
}

// Load loads configuration from flags, environment variables, and an
// optional config file. configFile overrides the default search path.
// Priority (highest to lowest): flags > env vars > config file > defaults
func Load(flags *pflag.FlagSet, configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Environment variable configuration
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("otel_endpoint", EnvPrefix+"_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("library_path", EnvPrefix+"_LIBRARY_PATH", "ONNXRUNTIME_SHARED_LIBRARY_PATH"); err != nil {
		return nil, err
	}

	if flags != nil {
		// flag names use dashes, config keys underscores
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", bindErr)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("onnxrun")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.onnxrun")

		// Read config file if present (ignore error if not found)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Decimal < 0 || c.Decimal > 15 {
		return fmt.Errorf("invalid decimal: %d (want 0..15)", c.Decimal)
	}
	if c.PrintCount < 0 {
		return fmt.Errorf("invalid print_count: %d", c.PrintCount)
	}
	if c.DynamicDim <= 0 {
		return fmt.Errorf("invalid dynamic_dim: %d", c.DynamicDim)
	}
	if c.IntraOpThreads < 0 || c.InterOpThreads < 0 {
		return fmt.Errorf("thread counts must not be negative")
	}
	if _, err := synth.ParseDistribution(c.Distribution); err != nil {
		return err
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("invalid cache_ttl: %s", c.CacheTTL)
	}
	return nil
}

// ValidateServe checks the settings only the serve command reads.
func (c *Config) ValidateServe() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MetricsPort <= 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.MetricsPort)
	}
	if c.Port == c.MetricsPort {
		return fmt.Errorf("port and metrics_port must be different")
	}
	return nil
}
