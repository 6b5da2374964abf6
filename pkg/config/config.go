// Package config contains the options used to build a tunnel service.
package config

import (
	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/speedguard/sgvpn/internal/model"
	"github.com/speedguard/sgvpn/internal/runtimex"
)

// Config contains options to initialize the tunnel service.
type Config struct {
	// settings are the daemon settings.
	settings *Settings

	// logger will be used to log events.
	logger model.Logger

	// registerer receives the provisioning metrics.
	registerer prometheus.Registerer
}

// NewConfig returns a Config ready to initialize a tunnel service.
func NewConfig(options ...Option) *Config {
	cfg := &Config{
		settings:   DefaultSettings(),
		logger:     log.Log,
		registerer: prometheus.DefaultRegisterer,
	}
	for _, opt := range options {
		opt(cfg)
	}
	return cfg
}

// Option is an option you can pass to [NewConfig].
type Option func(config *Config)

// WithLogger configures the passed [model.Logger].
func WithLogger(logger model.Logger) Option {
	return func(config *Config) {
		config.logger = logger
	}
}

// Logger returns the configured logger.
func (c *Config) Logger() model.Logger {
	return c.logger
}

// WithSettings configures the passed settings.
func WithSettings(settings *Settings) Option {
	return func(config *Config) {
		config.settings = settings
	}
}

// WithSettingsFile configures the settings parsed from the given YAML file.
// It panics when the file cannot be read or parsed.
func WithSettingsFile(path string) Option {
	return func(config *Config) {
		settings, err := ReadSettingsFile(path)
		runtimex.PanicOnError(err, "cannot parse settings file")
		config.settings = settings
	}
}

// Settings returns the configured settings.
func (c *Config) Settings() *Settings {
	return c.settings
}

// WithRegisterer configures where the metrics are registered.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(config *Config) {
		config.registerer = reg
	}
}

// Registerer returns the metrics registerer.
func (c *Config) Registerer() prometheus.Registerer {
	return c.registerer
}
