package tunconfig

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/speedguard/sgvpn/internal/model"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		want    model.Endpoint
		wantErr bool
	}{
		{
			name:  "ip and prefix",
			token: "10.0.0.1/24",
			want:  model.Endpoint{IP: "10.0.0.1", PrefixLength: 24},
		},
		{
			name:  "suffix is discarded",
			token: "10.0.0.1/24@extra",
			want:  model.Endpoint{IP: "10.0.0.1", PrefixLength: 24},
		},
		{
			name:  "ipv6",
			token: "fd00::2/64@peer",
			want:  model.Endpoint{IP: "fd00::2", PrefixLength: 64},
		},
		{
			name:    "no slash",
			token:   "10.0.0.1",
			wantErr: true,
		},
		{
			name:    "prefix is not a number",
			token:   "10.0.0.1/abc",
			wantErr: true,
		},
		{
			name:    "empty prefix",
			token:   "10.0.0.1/",
			wantErr: true,
		},
		{
			name:    "empty prefix before suffix",
			token:   "10.0.0.1/@x",
			wantErr: true,
		},
		{
			name:    "empty ip",
			token:   "/24",
			wantErr: true,
		},
		{
			name:    "empty token",
			token:   "",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEndpoint(tt.token)
			if tt.wantErr {
				var cerr *ConfigError
				if !errors.As(err, &cerr) {
					t.Fatalf("expected a ConfigError, got %v", err)
				}
				if cerr.Kind != MalformedEndpoint {
					t.Errorf("expected MalformedEndpoint, got %v", cerr.Kind)
				}
				if cerr.Token != tt.token {
					t.Errorf("expected token %q, got %q", tt.token, cerr.Token)
				}
				if !errors.Is(err, ErrBadConfig) {
					t.Error("expected error to match ErrBadConfig")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Error(diff)
			}
		})
	}
}

func TestEndpointPrefix(t *testing.T) {
	p, err := model.Endpoint{IP: "10.0.0.1", PrefixLength: 24}.Prefix()
	if err != nil {
		t.Fatal(err)
	}
	if p.String() != "10.0.0.0/24" {
		t.Errorf("unexpected prefix %s", p)
	}
	h, err := model.Endpoint{IP: "10.0.0.1", PrefixLength: 24}.HostPrefix()
	if err != nil {
		t.Fatal(err)
	}
	if h.String() != "10.0.0.1/24" {
		t.Errorf("unexpected host prefix %s", h)
	}
	if _, err := (model.Endpoint{IP: "10.0.0.1", PrefixLength: 33}).Prefix(); err == nil {
		t.Error("expected an out of range prefix to fail")
	}
	if _, err := (model.Endpoint{IP: "vpn.example.com", PrefixLength: 24}).Prefix(); err == nil {
		t.Error("expected a hostname to fail")
	}
}
