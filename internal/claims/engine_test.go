package claims

import (
	"testing"

	"github.com/salamenterprise/claims-askes/internal/catalog"
	"github.com/salamenterprise/claims-askes/internal/money"
	"github.com/salamenterprise/claims-askes/internal/timeutil"
)

func newTestRegistry() *Registry {
	r := NewRegistry()
	RegisterAll(r)
	return r
}

// TestS5ClaimValidationHappyPath matches §8 scenario S5.
func TestS5ClaimValidationHappyPath(t *testing.T) {
	e := NewEngine(newTestRegistry())

	benefit := catalog.BenefitConfiguration{
		BenefitCode:     "IP_ROOM",
		Category:        catalog.CategoryInpatient,
		LimitValue:      money.New(2_000_000),
		WaitingPeriodDays: 30,
		RequiresPreauth: true,
		SettlementPct:   money.New(100),
	}
	ctx := ClaimContext{
		ClaimID:         "claim-1",
		MemberID:        "M1",
		DOB:             timeutil.NewDate(1990, 8, 15),
		BenefitCode:     "IP_ROOM",
		ServiceDate:     timeutil.NewDate(2025, 8, 15),
		MemberSinceDate: timeutil.NewDate(2025, 1, 1),
		ClaimedAmount:   money.New(1_500_000),
		HasPreauth:      true,
	}

	results := e.Validate(ctx, benefit)

	if !CanAutoAdjudicate(results) {
		t.Fatalf("expected can_auto_adjudicate = true, results: %+v", results)
	}
	for _, r := range results {
		if r.Status == StatusFailed {
			t.Errorf("unexpected FAILED result: %+v", r)
		}
	}

	allowed := CalculateAllowedAmount(ctx, benefit)
	if !allowed.Equal(money.New(1_500_000)) {
		t.Errorf("allowed_amount = %s, want 1500000", allowed.String())
	}
}

// TestS6DuplicateAndLimitExceeded matches §8 scenario S6.
func TestS6DuplicateAndLimitExceeded(t *testing.T) {
	e := NewEngine(newTestRegistry())

	benefit := catalog.BenefitConfiguration{
		BenefitCode: "IP_ROOM",
		Category:    catalog.CategoryInpatient,
		LimitValue:  money.New(2_000_000),
	}
	serviceDate := timeutil.NewDate(2025, 8, 15)
	priorServiceDate := serviceDate.AddDays(-10)

	ctx := ClaimContext{
		ClaimID:               "claim-2",
		MemberID:              "M1",
		BenefitCode:           "IP_ROOM",
		ServiceDate:           serviceDate,
		ClaimedAmount:         money.New(500_000),
		AccumulatorUsedAmount: money.New(1_800_000),
		PriorClaims: []PriorClaim{
			{ClaimID: "claim-1", BenefitCode: "IP_ROOM", ServiceDate: priorServiceDate, ClaimedAmount: money.New(500_000), Status: StatusPassed},
		},
	}

	results := e.Validate(ctx, benefit)

	if !CanAutoAdjudicate(results) {
		t.Fatalf("expected can_auto_adjudicate = true despite warnings, results: %+v", results)
	}

	var sawAnnualLimitWarning, sawDuplicateWarning bool
	for _, r := range results {
		if r.RuleCode == "VAL003" && r.Status == StatusWarning {
			sawAnnualLimitWarning = true
			if !r.CanOverride || r.RequiredAuthorityLevel != 2 {
				t.Errorf("VAL003 warning: can_override=%v authority=%d, want true/2", r.CanOverride, r.RequiredAuthorityLevel)
			}
		}
		if r.RuleCode == "VAL008" && r.Status == StatusWarning {
			sawDuplicateWarning = true
		}
		if r.Status == StatusFailed {
			t.Errorf("unexpected FAILED result: %+v", r)
		}
	}
	if !sawAnnualLimitWarning {
		t.Errorf("expected annual-limit WARNING, got %+v", results)
	}
	if !sawDuplicateWarning {
		t.Errorf("expected duplicate WARNING, got %+v", results)
	}
}

// TestValidateIsDeterministic matches invariant 7: same inputs -> same
// result list in the same order, regardless of goroutine completion order.
func TestValidateIsDeterministic(t *testing.T) {
	e := NewEngine(newTestRegistry())
	benefit := catalog.BenefitConfiguration{BenefitCode: "OP_VISIT", Category: catalog.CategoryOutpatient, MaxVisitsPerYear: 5}
	ctx := ClaimContext{
		ClaimID:               "claim-3",
		MemberID:              "M2",
		BenefitCode:           "OP_VISIT",
		ServiceDate:           timeutil.NewDate(2025, 3, 1),
		ClaimedAmount:         money.New(200_000),
		AccumulatorUsedCount:  5,
	}

	first := e.Validate(ctx, benefit)
	for i := 0; i < 20; i++ {
		again := e.Validate(ctx, benefit)
		if len(again) != len(first) {
			t.Fatalf("result length changed across runs")
		}
		for j := range first {
			if first[j].RuleCode != again[j].RuleCode || first[j].Status != again[j].Status {
				t.Fatalf("result order/content not deterministic at index %d: %+v vs %+v", j, first[j], again[j])
			}
		}
	}
}

// TestCanAutoAdjudicateRequiresNoFailedOrPending matches invariant 8.
func TestCanAutoAdjudicateRequiresNoFailedOrPending(t *testing.T) {
	cases := []struct {
		name    string
		results []ValidationResult
		want    bool
	}{
		{"all passed", []ValidationResult{{Status: StatusPassed}, {Status: StatusWarning}}, true},
		{"has failed", []ValidationResult{{Status: StatusFailed}}, false},
		{"has pending", []ValidationResult{{Status: StatusPending}}, false},
	}
	for _, c := range cases {
		if got := CanAutoAdjudicate(c.results); got != c.want {
			t.Errorf("%s: CanAutoAdjudicate = %v, want %v", c.name, got, c.want)
		}
	}
}

// TestAPanickingRuleYieldsFailedWithoutAbortingOthers matches §4.6.6.
func TestAPanickingRuleYieldsFailedWithoutAbortingOthers(t *testing.T) {
	r := NewRegistry()
	r.Register(Rule{Code: "VALX", Name: "Panics", Fn: func(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
		panic("boom")
	}})
	r.Register(Rule{Code: "VALY", Name: "Fine", Fn: func(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
		return nil
	}})
	e := NewEngine(r)

	results := e.Validate(ClaimContext{}, catalog.BenefitConfiguration{})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	var sawFailed, sawPassed bool
	for _, res := range results {
		if res.RuleCode == "VALX" {
			if res.Status != StatusFailed {
				t.Errorf("expected panicking rule to yield FAILED, got %s", res.Status)
			}
			sawFailed = true
		}
		if res.RuleCode == "VALY" {
			if res.Status != StatusPassed {
				t.Errorf("expected sibling rule PASSED, got %s", res.Status)
			}
			sawPassed = true
		}
	}
	if !sawFailed || !sawPassed {
		t.Fatalf("missing expected results: %+v", results)
	}
}
