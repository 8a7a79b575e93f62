package logging_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/waabox/builddeck/internal/logging"
)

func TestParseLevel_DefaultsToInfo(t *testing.T) {
	lvl, err := logging.ParseLevel("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lvl != zerolog.InfoLevel {
		t.Errorf("expected info, got '%s'", lvl)
	}
}

func TestParseLevel_AcceptsMixedCase(t *testing.T) {
	lvl, err := logging.ParseLevel(" Debug ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lvl != zerolog.DebugLevel {
		t.Errorf("expected debug, got '%s'", lvl)
	}
}

func TestParseLevel_RejectsUnknown(t *testing.T) {
	if _, err := logging.ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestConsole_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := logging.Console(&buf, zerolog.WarnLevel)
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("expected info message to be filtered, got '%s'", buf.String())
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected warn message, got '%s'", buf.String())
	}
}

func TestFile_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "builddeck.log")
	l, closer, err := logging.File(path, zerolog.InfoLevel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.Info().Str("build_id", "b-1").Msg("build started")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"build_id":"b-1"`) {
		t.Errorf("expected build_id field, got '%s'", string(data))
	}
	if !strings.Contains(string(data), `"app":"builddeck"`) {
		t.Errorf("expected app field, got '%s'", string(data))
	}
}
