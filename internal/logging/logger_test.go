package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"clipforge/internal/logging"
)

func TestNewJSONHandlerEmitsStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("job claimed", logging.String("job_id", "job_1"), logging.Int("attempt", 2))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "job claimed" {
		t.Fatalf("unexpected msg: %v", record["msg"])
	}
	if record["job_id"] != "job_1" {
		t.Fatalf("expected job_id attr, got %v", record["job_id"])
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "warn", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("suppressed")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Fatalf("info record should be suppressed at warn level: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestConsoleHandlerFormatsLine(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.With(logging.String("worker", "w1")).Info("job completed", logging.Int("attempt", 1))

	line := buf.String()
	if !strings.Contains(line, "INFO job completed") {
		t.Fatalf("unexpected console line: %q", line)
	}
	if !strings.Contains(line, "worker=w1") || !strings.Contains(line, "attempt=1") {
		t.Fatalf("console line missing attrs: %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := logging.NewNop()
	logger.Error("nothing happens")
	logger = logging.NewComponentLogger(nil, "queue")
	logger.Info("still nothing")
}
