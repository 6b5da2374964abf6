package model

import (
	"fmt"
	"strings"
	"sync"
)

// TestLogger records every line it is asked to emit.
type TestLogger struct {
	mu    sync.Mutex
	Lines []string
}

func (tl *TestLogger) append(level, msg string) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.Lines = append(tl.Lines, level+": "+msg)
}

func (tl *TestLogger) Debug(msg string) {
	tl.append("debug", msg)
}
func (tl *TestLogger) Debugf(format string, v ...any) {
	tl.append("debug", fmt.Sprintf(format, v...))
}
func (tl *TestLogger) Info(msg string) {
	tl.append("info", msg)
}
func (tl *TestLogger) Infof(format string, v ...any) {
	tl.append("info", fmt.Sprintf(format, v...))
}
func (tl *TestLogger) Warn(msg string) {
	tl.append("warn", msg)
}
func (tl *TestLogger) Warnf(format string, v ...any) {
	tl.append("warn", fmt.Sprintf(format, v...))
}
func (tl *TestLogger) Error(msg string) {
	tl.append("error", msg)
}
func (tl *TestLogger) Errorf(format string, v ...any) {
	tl.append("error", fmt.Sprintf(format, v...))
}

// Contains returns true if any recorded line contains substr.
func (tl *TestLogger) Contains(substr string) bool {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	for _, line := range tl.Lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func NewTestLogger() *TestLogger {
	return &TestLogger{
		Lines: make([]string, 0),
	}
}
