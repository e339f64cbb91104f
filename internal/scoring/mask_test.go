package scoring

import (
	"context"
	"reflect"
	"testing"

	"github.com/gyeh/hccscore/internal/model"
)

func TestMaskScorer_MatchesCalculator(t *testing.T) {
	ts := sampleSet(t)
	ctx := context.Background()

	members := []*model.MemberInput{
		adultF("m1", "E1165", "I509", "F329"),
		adultF("m2"),
		adultF("m3", "E1110", "E1122", "E119"),
		adultF("m4", "C787", "C3490", "C509", "Z95811", "I5022"),
		func() *model.MemberInput { m := adultF("m5", "I509", "F319"); m.EnrollmentMonths = 2; return m }(),
		func() *model.MemberInput { m := adultF("m6", "E1122"); m.DateOfBirth = date("2012-04-02"); return m }(),
		func() *model.MemberInput { m := adultF("m7", "F329", "E119"); m.DateOfBirth = date("2024-11-30"); return m }(),
		func() *model.MemberInput { m := adultF("m8", "I509"); m.Tier = "bronze"; m.Sex = "M"; return m }(),
	}

	for _, policy := range []model.GroupingPolicy{model.GroupingReplace, model.GroupingAdditive} {
		opts := DefaultOptions()
		opts.GroupingPolicy = policy
		calc, mask := NewCalculator(ts, opts), NewMaskScorer(ts, opts)

		for _, m := range members {
			a, _, err := calc.Score(ctx, m)
			if err != nil {
				t.Fatalf("%s calculator %s: %v", policy, m.MemberID, err)
			}
			b, _, err := mask.Score(ctx, m)
			if err != nil {
				t.Fatalf("%s mask %s: %v", policy, m.MemberID, err)
			}
			if !approx(a.TotalScore, b.TotalScore, 1e-9) {
				t.Errorf("%s %s: totals %.9f vs %.9f", policy, m.MemberID, a.TotalScore, b.TotalScore)
			}
			if !reflect.DeepEqual(a.Variables, b.Variables) {
				t.Errorf("%s %s: variables %v vs %v", policy, m.MemberID, a.Variables, b.Variables)
			}
			if err := CheckInvariant(b); err != nil {
				t.Errorf("mask invariant: %v", err)
			}
		}
	}
}

func TestBitset(t *testing.T) {
	b := newBitset(130)
	for _, i := range []int{0, 63, 64, 129} {
		b.set(i)
	}
	var got []int
	b.each(func(i int) { got = append(got, i) })
	if !reflect.DeepEqual(got, []int{0, 63, 64, 129}) {
		t.Errorf("each = %v", got)
	}
	o := newBitset(130)
	o.set(64)
	b.andNot(o)
	if b.has(64) || !b.has(129) {
		t.Error("andNot should clear only bit 64")
	}
	if newBitset(10).empty() != true {
		t.Error("new bitset should be empty")
	}
}
