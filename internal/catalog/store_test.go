package catalog

import (
	"testing"

	"github.com/salamenterprise/claims-askes/internal/money"
	"github.com/salamenterprise/claims-askes/internal/timeutil"
)

func TestAgeBandMultiplierDefaultsToOne(t *testing.T) {
	// GIVEN a catalog with no age bands loaded for a template
	s := NewStore()
	s.Reload([]ProductTemplate{{TemplateCode: "T1", EffectiveFrom: timeutil.NewDate(2020, 1, 1)}}, nil, nil, nil)

	// WHEN looking up a multiplier for any age
	got := s.AgeBandMultiplier("T1", 30, GenderMale)

	// THEN it defaults to 1.000
	if !got.Equal(money.One) {
		t.Fatalf("expected default multiplier 1.000, got %s", got.String())
	}
}

func TestAgeBandMultiplierInclusiveBounds(t *testing.T) {
	s := NewStore()
	s.Reload(nil, []AgeBandMultiplier{
		{TemplateCode: "T1", AgeFrom: 18, AgeTo: 45, Gender: GenderFemale, Multiplier: money.Parse("1.150")},
	}, nil, nil)

	for _, age := range []int{18, 30, 45} {
		got := s.AgeBandMultiplier("T1", age, GenderFemale)
		if !got.Equal(money.Parse("1.150")) {
			t.Errorf("age %d: expected 1.150, got %s", age, got.String())
		}
	}
	if got := s.AgeBandMultiplier("T1", 46, GenderFemale); !got.Equal(money.One) {
		t.Errorf("age 46 out of band: expected default 1.000, got %s", got.String())
	}
}

func TestReloadSwapsAtomicallyWithoutDanglingOldSnapshot(t *testing.T) {
	// GIVEN a populated catalog
	s := NewStore()
	s.Reload([]ProductTemplate{{TemplateCode: "T1", EffectiveFrom: timeutil.NewDate(2020, 1, 1)}}, nil, nil, nil)
	old := s.current()

	// WHEN reloaded with different data
	s.Reload([]ProductTemplate{{TemplateCode: "T2", EffectiveFrom: timeutil.NewDate(2020, 1, 1)}}, nil, nil, nil)

	// THEN the previously captured snapshot pointer is untouched (old data
	// still readable through it) and the store now serves the new one
	if _, ok := old.templates["T1"]; !ok {
		t.Fatalf("old snapshot should still contain T1")
	}
	if _, ok := s.TemplateEffectiveOn("T1", timeutil.NewDate(2021, 1, 1)); ok {
		t.Fatalf("current snapshot should no longer contain T1")
	}
	if _, ok := s.TemplateEffectiveOn("T2", timeutil.NewDate(2021, 1, 1)); !ok {
		t.Fatalf("current snapshot should contain T2")
	}
}

func TestGenderForAgeCoercesChildUnder18(t *testing.T) {
	if got := GenderForAge(GenderMale, 17); got != GenderChild {
		t.Errorf("age 17 male: expected CHILD, got %s", got)
	}
	if got := GenderForAge(GenderFemale, 18); got != GenderFemale {
		t.Errorf("age 18 female: expected FEMALE, got %s", got)
	}
}
