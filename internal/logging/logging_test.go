package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LevelInfo, Format: FormatJSON, Output: &buf, Component: "test"})
	l.Info("hello", "channel", "scr")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["msg"] != "hello" || entry["component"] != "test" || entry["channel"] != "scr" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LevelWarn, Format: FormatText, Output: &buf})
	l.Info("dropped")
	l.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("info entry should be filtered at warn level")
	}
	if !strings.Contains(out, "kept") {
		t.Error("warn entry missing")
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})
	l.WithComponent("importer").Info("scan")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["component"] != "importer" {
		t.Errorf("component = %v, want importer", entry["component"])
	}
}

func TestParseLevel(t *testing.T) {
	if lvl, err := ParseLevel("warning"); err != nil || lvl != LevelWarn {
		t.Errorf("ParseLevel(warning) = %v, %v", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("want error for unknown level")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("want error for unknown format")
	}
}
