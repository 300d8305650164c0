package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestWithRunID(t *testing.T) {
	ctx := context.Background()
	ctx = WithRunID(ctx, "01JC0000000000000000000000")

	runID := GetRunID(ctx)
	if runID != "01JC0000000000000000000000" {
		t.Errorf("GetRunID() = %q, want %q", runID, "01JC0000000000000000000000")
	}
}

func TestWithAccount(t *testing.T) {
	ctx := context.Background()
	ctx = WithAccount(ctx, "Account 1")

	account := GetAccount(ctx)
	if account != "Account 1" {
		t.Errorf("GetAccount() = %q, want %q", account, "Account 1")
	}
}

func TestGetRunID_Empty(t *testing.T) {
	ctx := context.Background()
	runID := GetRunID(ctx)
	if runID != "" {
		t.Errorf("GetRunID() on empty context = %q, want empty", runID)
	}
}

func TestGetAccount_Empty(t *testing.T) {
	ctx := context.Background()
	account := GetAccount(ctx)
	if account != "" {
		t.Errorf("GetAccount() on empty context = %q, want empty", account)
	}
}

func TestGetRunID_NilContext(t *testing.T) {
	var ctx context.Context
	runID := GetRunID(ctx)
	if runID != "" {
		t.Errorf("GetRunID() on nil context = %q, want empty", runID)
	}
}

func TestFromContext(t *testing.T) {
	logger := slog.Default()

	t.Run("nil context returns original logger", func(t *testing.T) {
		result := FromContext(nil, logger)
		if result != logger {
			t.Error("FromContext(nil, logger) should return original logger")
		}
	})

	t.Run("context with run ID adds attribute", func(t *testing.T) {
		ctx := WithRunID(context.Background(), "run-abc")
		result := FromContext(ctx, logger)
		if result == logger {
			t.Error("FromContext with run ID should return a new logger")
		}
	})

	t.Run("context with account adds attribute", func(t *testing.T) {
		ctx := WithAccount(context.Background(), "Account 1")
		result := FromContext(ctx, logger)
		if result == logger {
			t.Error("FromContext with account should return a new logger")
		}
	})

	t.Run("empty context returns original", func(t *testing.T) {
		ctx := context.Background()
		result := FromContext(ctx, logger)
		if result != logger {
			t.Error("FromContext without values should return original logger")
		}
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"unknown", slog.LevelInfo},
		{"  debug  ", slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	logger := New()
	if logger == nil {
		t.Error("New() returned nil")
	}
}

func TestSetDefault(t *testing.T) {
	logger := SetDefault()
	if logger == nil {
		t.Error("SetDefault() returned nil")
	}
	if slog.Default() != logger {
		t.Error("SetDefault() did not set the logger as default")
	}
}
