package parquetio

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gyeh/hccscore/internal/model"
)

func TestReadMembers_SpansBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "members.parquet")
	n := readBatchSize*2 + 7
	rows := make([]model.MemberRow, n)
	for i := range rows {
		rows[i] = model.MemberRow{
			MemberID:    fmt.Sprintf("m%05d", i),
			DateOfBirth: "1980-01-01",
			Diagnoses:   []string{fmt.Sprintf("E%04d", i)},
		}
	}
	if err := WriteAll(path, rows); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	got, err := ReadMembers(path)
	if err != nil {
		t.Fatalf("ReadMembers: %v", err)
	}
	if len(got) != n {
		t.Fatalf("rows: got %d, want %d", len(got), n)
	}
	for _, i := range []int{0, readBatchSize - 1, readBatchSize, n - 1} {
		if got[i].MemberID != rows[i].MemberID || len(got[i].Diagnoses) != 1 || got[i].Diagnoses[0] != rows[i].Diagnoses[0] {
			t.Errorf("row %d: got %+v, want %+v", i, got[i], rows[i])
		}
	}
}

type idOnly struct {
	MemberID    string `parquet:"member_id"`
	DateOfBirth string `parquet:"date_of_birth"`
}

func TestCheckMembers_MissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.parquet")
	if err := WriteAll(path, []idOnly{{MemberID: "m1", DateOfBirth: "1980-01-01"}}); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	err := CheckMembers(path)
	if err == nil || !strings.Contains(err.Error(), "diagnoses") {
		t.Fatalf("CheckMembers: got %v, want missing diagnoses", err)
	}
	if _, err := ReadMembers(path); err == nil {
		t.Fatal("ReadMembers accepted a file without diagnoses")
	}
}

func TestReadAll_MissingFile(t *testing.T) {
	if _, err := ReadAll[model.MemberRow](filepath.Join(t.TempDir(), "absent.parquet")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
