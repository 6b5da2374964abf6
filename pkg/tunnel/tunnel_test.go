package tunnel

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/speedguard/sgvpn/internal/model"
	"github.com/speedguard/sgvpn/internal/vpntest"
	"github.com/speedguard/sgvpn/pkg/config"
)

const validConfig = `{
  "name": "office",
  "config": {
    "service": {
      "tun": {"addr": "10.8.0.2/24"},
      "protocol": {"peers": [{"routes": [{"route": "10.0.0.0/8"}]}]}
    }
  }
}`

type fixture struct {
	establisher *vpntest.Establisher
	runner      *vpntest.Runner
	prompter    *vpntest.Prompter
	service     *Service
}

func newFixture(t *testing.T, prepared bool) *fixture {
	t.Helper()
	settings := config.DefaultSettings()
	settings.SelfIdentity = "sgvpn"
	cfg := config.NewConfig(
		config.WithLogger(model.NewTestLogger()),
		config.WithSettings(settings),
		config.WithRegisterer(prometheus.NewRegistry()),
	)
	f := &fixture{
		establisher: &vpntest.Establisher{Handle: vpntest.NewHandle()},
		runner:      &vpntest.Runner{},
		prompter:    &vpntest.Prompter{IsPrepared: prepared},
	}
	svc, err := NewService(cfg,
		WithEstablisher(f.establisher),
		WithRunner(f.runner),
		WithPrompter(f.prompter),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svc.Stop)
	f.service = svc
	return f
}

func isDone(s *Service) bool {
	select {
	case <-s.Done():
		return true
	default:
		return false
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServiceStart(t *testing.T) {
	f := newFixture(t, true)
	if got := f.service.Start(validConfig); got != Sticky {
		t.Fatalf("expected STICKY, got %s", got)
	}
	if len(f.runner.Calls()) != 1 {
		t.Fatal("expected one runner call")
	}
	if isDone(f.service) {
		t.Fatal("service stopped after a successful start")
	}
	if !f.service.Provisioned() {
		t.Fatal("service not marked as provisioned")
	}
}

func TestServiceStopsOnFailure(t *testing.T) {
	f := newFixture(t, true)
	if got := f.service.Start(`{"name": "broken"}`); got != NotSticky {
		t.Fatalf("expected NOT_STICKY, got %s", got)
	}
	if !isDone(f.service) {
		t.Fatal("service still running after a failed start")
	}
	if len(f.runner.Calls()) != 0 {
		t.Fatal("runner called for a failed start")
	}
	if f.service.Provisioned() {
		t.Fatal("service marked as provisioned after a failure")
	}
}

func TestServiceConsent(t *testing.T) {
	t.Run("a grant delivers the last request again", func(t *testing.T) {
		f := newFixture(t, false)
		if got := f.service.Start(validConfig); got != NotSticky {
			t.Fatalf("expected NOT_STICKY, got %s", got)
		}
		if isDone(f.service) {
			t.Fatal("service stopped while consent is pending")
		}
		f.prompter.Answer(true)
		waitFor(t, "the request to be delivered again", func() bool {
			return len(f.runner.Calls()) == 1
		})
		if f.runner.Calls()[0].RawConfig != validConfig {
			t.Error("unexpected raw config")
		}
		if isDone(f.service) {
			t.Fatal("service stopped after consent was granted")
		}
	})

	t.Run("a denial stops the service", func(t *testing.T) {
		f := newFixture(t, false)
		f.service.Start(validConfig)
		f.prompter.Answer(false)
		waitFor(t, "the service to stop", func() bool {
			return isDone(f.service)
		})
		if len(f.runner.Calls()) != 0 {
			t.Fatal("runner called without consent")
		}
	})
}

func TestNewServiceDuplicateMetrics(t *testing.T) {
	settings := config.DefaultSettings()
	settings.SelfIdentity = "sgvpn"
	reg := prometheus.NewRegistry()
	cfg := config.NewConfig(
		config.WithLogger(model.NewTestLogger()),
		config.WithSettings(settings),
		config.WithRegisterer(reg),
	)
	opts := []Option{WithRunner(&vpntest.Runner{}), WithEstablisher(&vpntest.Establisher{})}
	first, err := NewService(cfg, opts...)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Stop()
	if _, err := NewService(cfg, opts...); err == nil {
		t.Fatal("expected the second service to fail registering its metrics")
	}
}
