package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/gyeh/hccscore/internal/model"
	"github.com/gyeh/hccscore/internal/refdata"
)

func mustTableSet(t *testing.T, tables *refdata.Tables) *refdata.TableSet {
	t.Helper()
	ts, err := refdata.NewTableSet(tables)
	if err != nil {
		t.Fatalf("NewTableSet: %v", err)
	}
	return ts
}

func sampleSet(t *testing.T) *refdata.TableSet {
	t.Helper()
	return mustTableSet(t, refdata.SampleTables())
}

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

// adultF is a 42-year-old woman on the sample bundle's basis date.
func adultF(id string, dx ...string) *model.MemberInput {
	return &model.MemberInput{
		MemberID:         id,
		DateOfBirth:      date("1983-06-15"),
		Sex:              "F",
		Tier:             "silver",
		EnrollmentMonths: 12,
		Diagnoses:        dx,
	}
}

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }
