package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return &Logger{zlog: zerolog.New(buf).With().Timestamp().Logger()}
}

func TestNewWithWriter_DevelopmentMode(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("development", &buf)

	logger.Debug("geocoding address", map[string]interface{}{"address": "test"})

	if !strings.Contains(buf.String(), "geocoding address") {
		t.Error("Expected debug output in development mode")
	}
}

func TestNewWithWriter_ProductionMode(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("production", &buf)

	logger.Debug("hidden", nil)
	if buf.Len() != 0 {
		t.Error("Debug message should not appear in production logging")
	}

	logger.Info("visible", nil)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON output in production, got error: %v", err)
	}
	if entry["message"] != "visible" {
		t.Errorf("Expected message field, got %v", entry["message"])
	}
}

func TestNewWithWriter_TestModeOnlyWarnings(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("test", &buf)

	logger.Info("quiet", nil)
	if buf.Len() != 0 {
		t.Error("Info message should not appear in test logging")
	}

	logger.Warn("loud", nil)
	if !strings.Contains(buf.String(), "loud") {
		t.Error("Warn message should appear in test logging")
	}
}

func TestNew(t *testing.T) {
	logger := New("production")

	if logger == nil {
		t.Fatal("Expected logger to be created")
	}
	if logger.GetZerolog() == nil {
		t.Error("Expected zerolog instance to be available")
	}
}

func TestNop(t *testing.T) {
	// Must not panic and must not write anywhere
	Nop().Error("discarded", errors.New("boom"), map[string]interface{}{"k": "v"})
}

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.Debug("debug message", map[string]interface{}{"key1": "value1"})
	logger.Info("info message", map[string]interface{}{"pnu": "4157025123101630001"})
	logger.Warn("warning message", map[string]interface{}{"source": "land_ledger"})

	output := buf.String()
	for _, want := range []string{"debug message", "value1", "info message", "4157025123101630001", "warning message", "land_ledger"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected log output to contain %q", want)
		}
	}
}

func TestError(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.Error("registry request failed", errors.New("connection refused"), map[string]interface{}{
		"source": "building_ledger",
	})

	output := buf.String()
	if !strings.Contains(output, "registry request failed") {
		t.Error("Expected log output to contain message")
	}
	if !strings.Contains(output, "connection refused") {
		t.Error("Expected log output to contain error message")
	}
	if !strings.Contains(output, "building_ledger") {
		t.Error("Expected log output to contain source field")
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.With(map[string]interface{}{"version": "1.0"}).Info("test message", nil)

	if !strings.Contains(buf.String(), "1.0") {
		t.Error("Expected log output to contain version field from context")
	}
}

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.WithRequestID("req-12345").Info("request received", nil)

	output := buf.String()
	if !strings.Contains(output, "req-12345") || !strings.Contains(output, "request_id") {
		t.Error("Expected log output to contain request_id field")
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf).WithComponent("pipeline")

	ctx := ContextWithRequestID(context.Background(), "req-67890")
	logger.FromContext(ctx).Info("analysis completed", nil)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected valid JSON output, got error: %v", err)
	}
	if entry["request_id"] != "req-67890" || entry["component"] != "pipeline" {
		t.Errorf("Expected request_id and component fields, got %v", entry)
	}
}

func TestFromContext_WithoutRequestID(t *testing.T) {
	logger := newBufferLogger(&bytes.Buffer{})

	if logger.FromContext(context.Background()) != logger {
		t.Error("Expected the same logger when the context has no request ID")
	}
	if RequestIDFromContext(context.Background()) != "" {
		t.Error("Expected empty request ID")
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.WithComponent("geocoder").Info("address resolved", nil)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected valid JSON output, got error: %v", err)
	}
	if entry["component"] != "geocoder" {
		t.Errorf("Expected component geocoder, got %v", entry["component"])
	}
}

func TestNilFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.Info("message with nil fields", nil)

	if !strings.Contains(buf.String(), "message with nil fields") {
		t.Error("Expected message to be logged even with nil fields")
	}
}
