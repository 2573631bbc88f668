package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	log, err := New(Config{Encoding: "json", Level: "warn"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer log.Sync()

	if log.Core().Enabled(zapcore.InfoLevel) {
		t.Error("expected info to be disabled at warn level")
	}
	if !log.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("expected error to be enabled at warn level")
	}
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	log, err := New(Config{IsDevelopment: true, Encoding: "console", Level: "loud"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if log.Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected debug to be disabled")
	}
	if !log.Core().Enabled(zapcore.InfoLevel) {
		t.Error("expected info to be enabled")
	}
}
