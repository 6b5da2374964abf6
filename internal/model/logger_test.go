package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTestLogger(t *testing.T) {
	var _ Logger = &TestLogger{}

	tl := NewTestLogger()
	tl.Info("establishing")
	tl.Warnf("mtu %d", 1250)
	tl.Errorf("step %s failed", "parse")

	want := []string{
		"info: establishing",
		"warn: mtu 1250",
		"error: step parse failed",
	}
	if diff := cmp.Diff(want, tl.Lines); diff != "" {
		t.Error(diff)
	}
	if !tl.Contains("parse failed") {
		t.Error("expected Contains to find a recorded substring")
	}
	if tl.Contains("handoff") {
		t.Error("did not expect Contains to match")
	}
}
