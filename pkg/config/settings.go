package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"strconv"
	"time"

	"github.com/apex/log"
	"gopkg.in/yaml.v3"

	"github.com/speedguard/sgvpn/internal/ifbuilder"
	"github.com/speedguard/sgvpn/internal/platform"
)

// ErrBadSettings is returned for settings we cannot use.
var ErrBadSettings = errors.New("config: bad settings")

// DefaultEngine is the engine binary looked up in PATH.
const DefaultEngine = "sgvpn-engine"

// DefaultEstablishTimeout bounds the creation of the interface.
const DefaultEstablishTimeout = 30 * time.Second

// Settings are the daemon settings, usually read from a YAML file.
type Settings struct {
	// SessionPrefix is prepended to the tunnel name in the session label.
	SessionPrefix string `yaml:"session_prefix"`

	// SelfIdentity is the user running the engine. It is always excluded
	// from the tunnel.
	SelfIdentity string `yaml:"self_identity"`

	Engine EngineSettings `yaml:"engine"`

	Interface InterfaceSettings `yaml:"interface"`

	// EstablishTimeout bounds the creation of the interface.
	EstablishTimeout time.Duration `yaml:"establish_timeout"`

	// MetricsAddress is where /metrics is served. Empty disables it.
	MetricsAddress string `yaml:"metrics_address"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// EngineSettings describe the engine process.
type EngineSettings struct {
	Path string   `yaml:"path"`
	Args []string `yaml:"args"`
}

// InterfaceSettings describe how the interface is created.
type InterfaceSettings struct {
	Name         string `yaml:"name"`
	Table        int    `yaml:"table"`
	RulePriority int    `yaml:"rule_priority"`
	StateDir     string `yaml:"state_dir"`
}

// DefaultSettings returns the settings used when no file is given.
func DefaultSettings() *Settings {
	return &Settings{
		SessionPrefix: ifbuilder.DefaultSessionPrefix,
		SelfIdentity:  currentUser(),
		Engine: EngineSettings{
			Path: DefaultEngine,
		},
		Interface: InterfaceSettings{
			Name:         platform.DefaultInterfaceName,
			Table:        platform.DefaultTable,
			RulePriority: platform.DefaultRulePriority,
			StateDir:     platform.DefaultStateDir,
		},
		EstablishTimeout: DefaultEstablishTimeout,
		LogLevel:         "info",
	}
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return strconv.Itoa(os.Getuid())
}

// ReadSettingsFile reads settings from path.
func ReadSettingsFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSettings, err)
	}
	return ParseSettings(data)
}

// ParseSettings parses YAML settings. Fields missing from data keep their
// default. Unknown fields are an error.
func ParseSettings(data []byte) (*Settings, error) {
	settings := DefaultSettings()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(settings); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrBadSettings, err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate checks the settings.
func (s *Settings) Validate() error {
	if s.SelfIdentity == "" {
		return fmt.Errorf("%w: empty self_identity", ErrBadSettings)
	}
	if s.Engine.Path == "" {
		return fmt.Errorf("%w: empty engine.path", ErrBadSettings)
	}
	if s.Interface.Table <= 0 || s.Interface.Table == 254 || s.Interface.Table == 255 {
		return fmt.Errorf("%w: unusable routing table %d", ErrBadSettings, s.Interface.Table)
	}
	if s.Interface.RulePriority <= 0 {
		return fmt.Errorf("%w: rule_priority must be positive", ErrBadSettings)
	}
	if s.EstablishTimeout < 0 {
		return fmt.Errorf("%w: negative establish_timeout", ErrBadSettings)
	}
	if _, err := log.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrBadSettings, err)
	}
	return nil
}

// Platform returns the interface settings in the form the platform package
// expects.
func (s *Settings) Platform() platform.Settings {
	return platform.Settings{
		InterfaceName: s.Interface.Name,
		Table:         s.Interface.Table,
		RulePriority:  s.Interface.RulePriority,
		StateDir:      s.Interface.StateDir,
		Owner:         s.SelfIdentity,
	}
}

// Policy returns the interface policy derived from the settings.
func (s *Settings) Policy() ifbuilder.Policy {
	return ifbuilder.Policy{
		SessionPrefix: s.SessionPrefix,
		SelfIdentity:  s.SelfIdentity,
	}
}
