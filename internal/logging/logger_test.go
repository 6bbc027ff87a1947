package logging_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"easel/internal/logging"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := logging.New(logging.Options{
		Level:       "debug",
		Format:      "json",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	component := logging.NewComponentLogger(logger, "tester")
	component.Info("hello", logging.Int64(logging.FieldItemID, 7))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, data)
	}
	if entry["msg"] != "hello" {
		t.Fatalf("unexpected message: %v", entry["msg"])
	}
	if entry[logging.FieldComponent] != "tester" {
		t.Fatalf("expected component attr, got %v", entry)
	}
	if entry[logging.FieldItemID] != float64(7) {
		t.Fatalf("expected item_id attr, got %v", entry)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := logging.New(logging.Options{Format: "xml"})
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewFromConfigValuesCreatesLogFile(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "logs")
	logger, err := logging.NewFromConfigValues("info", "console", logDir)
	if err != nil {
		t.Fatalf("NewFromConfigValues failed: %v", err)
	}
	logger.Info("started")

	data, err := os.ReadFile(filepath.Join(logDir, "easel.log"))
	if err != nil {
		t.Fatalf("read easel.log: %v", err)
	}
	if !strings.Contains(string(data), "started") {
		t.Fatalf("expected log line in file, got %q", data)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	// Must not panic or emit anywhere.
	logger.Error("ignored", logging.Error(nil))
	logger.Info("ignored", logging.Args(logging.Bool("x", true))...)
}
