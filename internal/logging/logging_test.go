package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSONLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "json", "warn")
	log.Info().Msg("hidden")
	log.Warn().Str("member_id", "M1").Msg("skipped member")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if rec["member_id"] != "M1" || rec["level"] != "warn" {
		t.Errorf("record = %v", rec)
	}
}

func TestNew_UnknownLevelIsInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "json", "chatty")
	log.Debug().Msg("hidden")
	log.Info().Msg("shown")
	if !strings.Contains(buf.String(), "shown") || strings.Contains(buf.String(), "hidden") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "text", "info")
	log.Info().Msg("phase complete")
	if !strings.Contains(buf.String(), "phase complete") || strings.HasPrefix(buf.String(), "{") {
		t.Errorf("output = %q", buf.String())
	}
}
