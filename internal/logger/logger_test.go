package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithOutput("info", "json", &buf)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	log.Named("scheduler").With("source", "task").Info("refetch done", "count", 3)
	_ = log.Sync()

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["message"] != "refetch done" {
		t.Errorf("unexpected message: %v", entry["message"])
	}
	if entry["logger"] != "scheduler" {
		t.Errorf("unexpected logger name: %v", entry["logger"])
	}
	if entry["source"] != "task" {
		t.Errorf("expected source field, got %v", entry["source"])
	}
	if entry["count"] != float64(3) {
		t.Errorf("expected count 3, got %v", entry["count"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, _ := NewWithOutput("warn", "console", &buf)

	log.Info("hidden")
	log.Warn("shown")
	_ = log.Sync()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn line missing: %s", out)
	}
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, _ := NewWithOutput("chatty", "json", &buf)

	log.Debug("debug line")
	log.Info("info line")
	_ = log.Sync()

	if strings.Contains(buf.String(), "debug line") {
		t.Error("debug should be disabled at default level")
	}
	if !strings.Contains(buf.String(), "info line") {
		t.Error("info should be enabled at default level")
	}
}

func TestNopDiscards(t *testing.T) {
	log := Nop()
	log.Error("nothing", "k", "v")
	if err := log.SetLevel("debug"); err != nil {
		t.Fatalf("set level: %v", err)
	}
}

func TestNamedKeepsFieldsFromWith(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithOutput("info", "json", &buf)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	log.With("channel", "task_changes").Named("store").Info("listening")
	_ = log.Sync()

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["channel"] != "task_changes" {
		t.Errorf("field added before Named was dropped: %v", entry)
	}
	if entry["logger"] != "store" {
		t.Errorf("unexpected logger name: %v", entry["logger"])
	}
}
