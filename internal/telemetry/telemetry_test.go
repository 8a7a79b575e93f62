package telemetry_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/waabox/builddeck/internal/telemetry"
)

func TestInitTracer_EmptyPathIsNoop(t *testing.T) {
	shutdown, err := telemetry.InitTracer("builddeck", "test", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("expected nil shutdown error, got %v", err)
	}
}

func TestInitTracer_WritesSpansToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.json")
	shutdown, err := telemetry.InitTracer("builddeck", "test", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, span := otel.Tracer("telemetry_test").Start(context.Background(), "GET /api/v1/builds")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "GET /api/v1/builds") {
		t.Errorf("expected span name in trace file, got '%s'", string(data))
	}
}
