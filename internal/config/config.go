// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. BASED_TRANSPORT_TYPE
const EnvPrefix = "BASED"

// Config represents the application configuration
type Config struct {
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Emulator  EmulatorConfig  `mapstructure:"emulator" yaml:"emulator"`
}

// TransportConfig selects and bounds the connection to the headset
type TransportConfig struct {
	Type           string           `mapstructure:"type" yaml:"type"`
	Channel        int              `mapstructure:"channel" yaml:"channel"`
	ConnectTimeout time.Duration    `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	SendTimeout    time.Duration    `mapstructure:"send_timeout" yaml:"send_timeout"`
	ReceiveTimeout time.Duration    `mapstructure:"receive_timeout" yaml:"receive_timeout"`
	KeepAlive      bool             `mapstructure:"keep_alive" yaml:"keep_alive"`
	Serial         SerialPortConfig `mapstructure:"serial" yaml:"serial"`
}

// SerialPortConfig represents serial port configuration
type SerialPortConfig struct {
	BaudRate int    `mapstructure:"baud_rate" yaml:"baud_rate"`
	DataBits int    `mapstructure:"data_bits" yaml:"data_bits"`
	StopBits int    `mapstructure:"stop_bits" yaml:"stop_bits"`
	Parity   string `mapstructure:"parity" yaml:"parity"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	Output     string `mapstructure:"output" yaml:"output"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// EmulatorConfig configures the headset emulator
type EmulatorConfig struct {
	Listen          string `mapstructure:"listen" yaml:"listen"`
	Name            string `mapstructure:"name" yaml:"name"`
	NoiseCancelling string `mapstructure:"noise_cancelling" yaml:"noise_cancelling"`
	AutoOff         string `mapstructure:"auto_off" yaml:"auto_off"`
	PromptLanguage  string `mapstructure:"prompt_language" yaml:"prompt_language"`
}

// New returns a viper instance with defaults and BASED_* environment overrides
// registered. Callers bind their flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

// Load reads the optional config file at path (searching the default locations
// when path is empty), then decodes and validates the merged configuration
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName("based")
		v.AddConfigPath("$HOME/.config/based")
		v.AddConfigPath("/etc/based")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Transport defaults
	v.SetDefault("transport.type", "rfcomm")
	v.SetDefault("transport.channel", 8)
	v.SetDefault("transport.connect_timeout", "10s")
	v.SetDefault("transport.send_timeout", "5s")
	v.SetDefault("transport.receive_timeout", "1s")
	v.SetDefault("transport.keep_alive", false)

	v.SetDefault("transport.serial.baud_rate", 115200)
	v.SetDefault("transport.serial.data_bits", 8)
	v.SetDefault("transport.serial.stop_bits", 1)
	v.SetDefault("transport.serial.parity", "none")

	// Logging defaults
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Emulator defaults
	v.SetDefault("emulator.listen", "127.0.0.1:7000")
	v.SetDefault("emulator.name", "Bose QC35")
	v.SetDefault("emulator.noise_cancelling", "high")
	v.SetDefault("emulator.auto_off", "20")
	v.SetDefault("emulator.prompt_language", "en")
}

// validate validates the configuration
func validate(config *Config) error {
	validTypes := []string{"rfcomm", "serial", "tcp"}
	config.Transport.Type = strings.ToLower(config.Transport.Type)
	if !contains(validTypes, config.Transport.Type) {
		return fmt.Errorf("transport.type must be one of: %v", validTypes)
	}

	if config.Transport.Channel < 1 || config.Transport.Channel > 30 {
		return fmt.Errorf("transport.channel must be between 1 and 30, got %d", config.Transport.Channel)
	}
	if config.Transport.SendTimeout <= 0 {
		return fmt.Errorf("transport.send_timeout must be positive")
	}
	if config.Transport.ReceiveTimeout <= 0 {
		return fmt.Errorf("transport.receive_timeout must be positive")
	}
	if config.Transport.ConnectTimeout <= 0 {
		return fmt.Errorf("transport.connect_timeout must be positive")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	validFormats := []string{"json", "console"}
	if !contains(validFormats, config.Logging.Format) {
		return fmt.Errorf("logging.format must be one of: %v", validFormats)
	}

	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// IsDebugEnabled checks if debug logging is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.Logging.Level == "debug"
}
