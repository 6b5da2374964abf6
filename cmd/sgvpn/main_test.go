package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/apex/log"
)

func TestLevelFromVerbosity(t *testing.T) {
	tests := map[uint16]log.Level{
		1: log.FatalLevel,
		2: log.ErrorLevel,
		3: log.WarnLevel,
		4: log.InfoLevel,
		5: log.DebugLevel,
		9: log.DebugLevel,
	}
	for v, want := range tests {
		if got := levelFromVerbosity(v); got != want {
			t.Errorf("verbosity %d: got %s, want %s", v, got, want)
		}
	}
}

func TestLogHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := &log.Logger{Level: log.DebugLevel, Handler: &logHandler{Writer: &buf}}

	logger.WithField("attempt", "abc").Info("starting")
	logger.Error("boom")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %q", buf.String())
	}
	info := regexp.MustCompile(`^\[ *\d+\.\d{6}\] <info> starting: map\[attempt:abc\]$`)
	if !info.Match(lines[0]) {
		t.Errorf("unexpected info line %q", lines[0])
	}
	errLine := regexp.MustCompile(`^\[ *\d+\.\d{6}\] <!err> boom$`)
	if !errLine.Match(lines[1]) {
		t.Errorf("unexpected error line %q", lines[1])
	}
}

func TestReadTunnelConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunnel.json")
	if err := os.WriteFile(path, []byte(`{"name":"office"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := readTunnelConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"name":"office"}` {
		t.Errorf("unexpected config %q", got)
	}
	if _, err := readTunnelConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
