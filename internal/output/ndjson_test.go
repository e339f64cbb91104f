package output

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/gyeh/hccscore/internal/model"
)

func sampleRecords() []model.RiskScoreRecord {
	return []model.RiskScoreRecord{
		{RunID: "r1", MemberID: "M1", TotalScore: 0.246, Variables: []string{"FAGE_LAST_40_44"}},
		{RunID: "r1", MemberID: "M2", TotalScore: 2.066, Variables: []string{"FAGE_LAST_40_44", "HHS_HCC130"},
			Components: []model.ScoreComponent{{Type: model.ComponentCategory, Code: "HHS_HCC130", Coefficient: 1.82}}},
	}
}

func TestWriteFile_RoundTrip(t *testing.T) {
	for _, name := range []string{"scores.ndjson", "scores.ndjson.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			n, err := WriteFile(path, sampleRecords())
			if err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			if n != 2 {
				t.Errorf("wrote %d lines", n)
			}

			got, err := ReadFile[model.RiskScoreRecord](path)
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if len(got) != 2 || got[1].MemberID != "M2" || got[1].Components[0].Code != "HHS_HCC130" {
				t.Errorf("round trip = %+v", got)
			}
		})
	}
}

func TestWriteFile_GzipOnlyBySuffix(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "a.ndjson")
	packed := filepath.Join(dir, "a.ndjson.gz")
	if _, err := WriteFile(plain, sampleRecords()); err != nil {
		t.Fatal(err)
	}
	if _, err := WriteFile(packed, sampleRecords()); err != nil {
		t.Fatal(err)
	}

	p, _ := os.ReadFile(plain)
	g, _ := os.ReadFile(packed)
	if !bytes.HasPrefix(p, []byte(`{"run_id":"r1"`)) {
		t.Errorf("plain export starts %q", p[:20])
	}
	if len(g) < 2 || g[0] != 0x1f || g[1] != 0x8b {
		t.Error("gz export lacks gzip magic")
	}
	if bytes.Count(p, []byte("\n")) != 2 {
		t.Errorf("expected 2 lines, got %q", p)
	}
}
