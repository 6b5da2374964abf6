package ifbuilder

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/speedguard/sgvpn/internal/model"
	"github.com/speedguard/sgvpn/internal/optional"
	"github.com/speedguard/sgvpn/internal/tunconfig"
	"github.com/speedguard/sgvpn/internal/vpntest"
)

var testPolicy = Policy{
	SessionPrefix: DefaultSessionPrefix,
	SelfIdentity:  "sgvpn",
}

func mustParse(t *testing.T, raw string) *model.TunnelConfig {
	t.Helper()
	cfg, err := tunconfig.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestBuild(t *testing.T) {
	t.Run("minimal config", func(t *testing.T) {
		cfg := mustParse(t, `{"name":"office","config":{"service":{"tun":{"addr":"10.8.0.2/24"},"protocol":{"peers":[{"routes":[{"route":"10.0.0.0/8"}]}]}}}}`)
		got := Build(cfg, testPolicy)
		want := &model.InterfaceSpec{
			Session:        "SpeedGuard_office",
			DisallowedApps: []string{"sgvpn"},
			AllowedApps:    []string{},
			Address:        model.Endpoint{IP: "10.8.0.2", PrefixLength: 24},
			DNSServers:     []string{},
			Routes:         []model.Endpoint{{IP: "10.0.0.0", PrefixLength: 8}},
			MTU:            1250,
			Families:       []model.AddressFamily{model.FamilyIPv4, model.FamilyIPv6},
			Metered:        optional.None[bool](),
			Blocking:       true,
		}
		if diff := cmp.Diff(want, got, cmp.AllowUnexported(optional.Value[bool]{})); diff != "" {
			t.Error(diff)
		}
	})

	t.Run("self identity comes first and is not repeated", func(t *testing.T) {
		cfg := &model.TunnelConfig{
			Name:        "x",
			ExcludeApps: []string{"com.example.bank", "sgvpn", "com.example.game"},
		}
		got := Build(cfg, testPolicy)
		want := []string{"sgvpn", "com.example.bank", "com.example.game"}
		if diff := cmp.Diff(want, got.DisallowedApps); diff != "" {
			t.Error(diff)
		}
	})

	t.Run("include and exclude are both passed through", func(t *testing.T) {
		cfg := &model.TunnelConfig{
			Name:        "x",
			IncludeApps: []string{"org.mozilla.firefox"},
			ExcludeApps: []string{"com.example.bank"},
		}
		got := Build(cfg, testPolicy)
		if diff := cmp.Diff([]string{"org.mozilla.firefox"}, got.AllowedApps); diff != "" {
			t.Error(diff)
		}
		if !got.Disallows("com.example.bank") || !got.Disallows("sgvpn") {
			t.Errorf("unexpected disallowed apps %v", got.DisallowedApps)
		}
	})

	t.Run("metering is set only when supported", func(t *testing.T) {
		cfg := &model.TunnelConfig{Name: "x"}
		policy := testPolicy
		policy.SupportsMetering = true
		got := Build(cfg, policy)
		if got.Metered.IsNone() || got.Metered.Unwrap() != false {
			t.Errorf("expected unmetered, got %s", got.Metered)
		}
	})

	t.Run("build does not alias the config", func(t *testing.T) {
		cfg := &model.TunnelConfig{
			Name:        "x",
			IncludeApps: []string{"a"},
			DNSServers:  []string{"1.1.1.1"},
			PeerRoutes:  []model.Endpoint{{IP: "10.0.0.0", PrefixLength: 8}},
		}
		got := Build(cfg, testPolicy)
		got.AllowedApps[0] = "b"
		got.DNSServers[0] = "8.8.8.8"
		got.Routes[0].PrefixLength = 16
		if cfg.IncludeApps[0] != "a" || cfg.DNSServers[0] != "1.1.1.1" || cfg.PeerRoutes[0].PrefixLength != 8 {
			t.Error("expected the config to be left untouched")
		}
	})

	t.Run("empty self identity is a programming error", func(t *testing.T) {
		vpntest.AssertPanic(t, func() { Build(&model.TunnelConfig{}, Policy{}) })
	})
}

func TestBuildInvariants(t *testing.T) {
	configs := []*model.TunnelConfig{
		{Name: ""},
		{Name: "a", IncludeApps: []string{"x", "y"}},
		{Name: "b", ExcludeApps: []string{"sgvpn"}},
		{Name: "c", IncludeApps: []string{"sgvpn"}, ExcludeApps: []string{"z"}, MTU: 9000},
	}
	for _, cfg := range configs {
		for _, metering := range []bool{false, true} {
			policy := testPolicy
			policy.SupportsMetering = metering
			spec := Build(cfg, policy)
			if len(spec.DisallowedApps) == 0 || spec.DisallowedApps[0] != "sgvpn" {
				t.Errorf("%q: self identity must be the first disallowed app, got %v", cfg.Name, spec.DisallowedApps)
			}
			if !spec.AllowsFamily(model.FamilyIPv4) || !spec.AllowsFamily(model.FamilyIPv6) {
				t.Errorf("%q: both families must be allowed, got %v", cfg.Name, spec.Families)
			}
			if !spec.Blocking {
				t.Errorf("%q: blocking must always be set", cfg.Name)
			}
			if spec.Metered.IsNone() == metering {
				t.Errorf("%q: metering presence must follow the platform capability", cfg.Name)
			}
		}
	}
}
