package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/speedguard/sgvpn/internal/model"
	"github.com/speedguard/sgvpn/internal/platform"
	"github.com/speedguard/sgvpn/internal/vpntest"
)

func TestNewConfig(t *testing.T) {
	t.Run("default constructor does not fail", func(t *testing.T) {
		c := NewConfig()
		if c.Logger() == nil {
			t.Errorf("logger should not be nil")
		}
		if c.Registerer() == nil {
			t.Errorf("registerer should not be nil")
		}
		if c.Settings().SessionPrefix != "SpeedGuard_" {
			t.Errorf("unexpected session prefix %q", c.Settings().SessionPrefix)
		}
	})

	t.Run("WithLogger sets the logger", func(t *testing.T) {
		testLogger := model.NewTestLogger()
		c := NewConfig(WithLogger(testLogger))
		if c.Logger() != testLogger {
			t.Errorf("expected logger to be set to the configured one")
		}
	})

	t.Run("WithRegisterer sets the registerer", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		c := NewConfig(WithRegisterer(reg))
		if c.Registerer() != reg {
			t.Errorf("expected registerer to be set to the configured one")
		}
	})

	t.Run("WithSettings sets the settings", func(t *testing.T) {
		s := DefaultSettings()
		s.SelfIdentity = "sgvpn"
		c := NewConfig(WithSettings(s))
		if c.Settings() != s {
			t.Errorf("expected settings to be set to the configured ones")
		}
	})

	t.Run("WithSettingsFile parses the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sgvpn.yaml")
		if err := os.WriteFile(path, []byte(sampleSettings), 0o600); err != nil {
			t.Fatal(err)
		}
		c := NewConfig(WithSettingsFile(path))
		if c.Settings().Engine.Path != "/usr/libexec/sgvpn-engine" {
			t.Errorf("unexpected engine path %q", c.Settings().Engine.Path)
		}
	})

	t.Run("WithSettingsFile panics on a missing file", func(t *testing.T) {
		vpntest.AssertPanic(t, func() {
			NewConfig(WithSettingsFile(filepath.Join(t.TempDir(), "missing.yaml")))
		})
	})
}

const sampleSettings = `
session_prefix: Corp_
self_identity: sgvpn
engine:
  path: /usr/libexec/sgvpn-engine
  args: ["--quiet"]
interface:
  name: corp%d
  table: 100
establish_timeout: 10s
metrics_address: 127.0.0.1:9250
log_level: debug
`

func TestParseSettings(t *testing.T) {
	t.Run("missing fields keep their default", func(t *testing.T) {
		got, err := ParseSettings([]byte(sampleSettings))
		if err != nil {
			t.Fatal(err)
		}
		want := &Settings{
			SessionPrefix: "Corp_",
			SelfIdentity:  "sgvpn",
			Engine: EngineSettings{
				Path: "/usr/libexec/sgvpn-engine",
				Args: []string{"--quiet"},
			},
			Interface: InterfaceSettings{
				Name:         "corp%d",
				Table:        100,
				RulePriority: platform.DefaultRulePriority,
				StateDir:     platform.DefaultStateDir,
			},
			EstablishTimeout: 10 * time.Second,
			MetricsAddress:   "127.0.0.1:9250",
			LogLevel:         "debug",
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Error(diff)
		}
	})

	t.Run("empty document gives the defaults", func(t *testing.T) {
		got, err := ParseSettings(nil)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(DefaultSettings(), got); diff != "" {
			t.Error(diff)
		}
	})

	type testCase struct {
		name string
		data string
	}
	failures := []testCase{
		{name: "unknown field", data: "sesion_prefix: x\n"},
		{name: "not yaml", data: "engine: [\n"},
		{name: "main table", data: "interface:\n  table: 254\n"},
		{name: "empty engine", data: "engine:\n  path: \"\"\n"},
		{name: "bad log level", data: "log_level: chatty\n"},
		{name: "negative timeout", data: "establish_timeout: -1s\n"},
		{name: "empty identity", data: "self_identity: \"\"\n"},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSettings([]byte(tt.data))
			if !errors.Is(err, ErrBadSettings) {
				t.Fatalf("expected ErrBadSettings, got %v", err)
			}
		})
	}
}

func TestSettingsConversions(t *testing.T) {
	s, err := ParseSettings([]byte(sampleSettings))
	if err != nil {
		t.Fatal(err)
	}
	wantPlatform := platform.Settings{
		InterfaceName: "corp%d",
		Table:         100,
		RulePriority:  platform.DefaultRulePriority,
		StateDir:      platform.DefaultStateDir,
		Owner:         "sgvpn",
	}
	if diff := cmp.Diff(wantPlatform, s.Platform()); diff != "" {
		t.Error(diff)
	}
	policy := s.Policy()
	if policy.SessionPrefix != "Corp_" || policy.SelfIdentity != "sgvpn" || policy.SupportsMetering {
		t.Errorf("unexpected policy %+v", policy)
	}
}
