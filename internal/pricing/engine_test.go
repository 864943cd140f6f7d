package pricing

import (
	"context"
	"testing"

	"github.com/salamenterprise/claims-askes/internal/catalog"
	"github.com/salamenterprise/claims-askes/internal/money"
	"github.com/salamenterprise/claims-askes/internal/timeutil"
)

func newTestCatalog() *catalog.CatalogStore {
	cat := catalog.NewStore()
	cat.Reload(
		[]catalog.ProductTemplate{
			{TemplateCode: "TPL_IP", Category: catalog.CategoryInpatient, BaseAdultMale: money.New(1_000_000), BaseAdultFemale: money.New(1_000_000), BaseChild: money.New(1_000_000), EffectiveFrom: timeutil.NewDate(2020, 1, 1)},
			{TemplateCode: "TPL_OP", Category: catalog.CategoryOutpatient, BaseAdultMale: money.New(1_000_000), BaseAdultFemale: money.New(1_000_000), BaseChild: money.New(1_000_000), EffectiveFrom: timeutil.NewDate(2020, 1, 1)},
			{TemplateCode: "TPL_MAT", Category: catalog.CategoryMaternity, BaseAdultMale: money.New(1_000_000), BaseAdultFemale: money.New(1_000_000), BaseChild: money.New(1_000_000), EffectiveFrom: timeutil.NewDate(2020, 1, 1)},
		},
		nil, nil, nil,
	)
	return cat
}

func newTestEngine() (*Engine, *catalog.CatalogStore) {
	cat := newTestCatalog()
	e := NewEngine(NewMemoryStore(), cat)
	return e, cat
}

func mustCreateConfig(t *testing.T, e *Engine, participants int) *PolicyConfig {
	t.Helper()
	cfg, err := e.CreateConfig(context.Background(), "Acme Corp", participants, timeutil.NewDate(2025, 1, 1), timeutil.NewDate(2025, 12, 31), "STANDARD")
	if err != nil {
		t.Fatalf("CreateConfig: %v", err)
	}
	return cfg
}

func selectBenefit(t *testing.T, e *Engine, configID string, category catalog.BenefitCategory, templateCode string) *PolicyConfig {
	t.Helper()
	cfg, err := e.ToggleBenefit(context.Background(), configID, category, true, templateCode)
	if err != nil {
		t.Fatalf("ToggleBenefit(%s): %v", category, err)
	}
	return cfg
}

func addMember(t *testing.T, e *Engine, configID, name string, dob timeutil.Date, gender catalog.Gender) *PolicyConfig {
	t.Helper()
	cfg, err := e.AddMember(context.Background(), configID, name, dob, gender, MemberEmployee, "")
	if err != nil {
		t.Fatalf("AddMember(%s): %v", name, err)
	}
	return cfg
}

// TestS1SmallGroupPricing matches §8 scenario S1.
func TestS1SmallGroupPricing(t *testing.T) {
	e, _ := newTestEngine()

	// GIVEN a config for 10 participants with INPATIENT + OUTPATIENT
	// selected (default) and explicit templates assigned
	cfg := mustCreateConfig(t, e, 10)
	cfg = selectBenefit(t, e, cfg.ID, catalog.CategoryInpatient, "TPL_IP")
	cfg = selectBenefit(t, e, cfg.ID, catalog.CategoryOutpatient, "TPL_OP")

	// WHEN 10 ACTIVE members aged 30-40 (mixed gender) are added
	dob := timeutil.NewDate(1990, 6, 15) // ~age 35 as of 2025
	for i := 0; i < 10; i++ {
		gender := catalog.GenderMale
		if i%2 == 0 {
			gender = catalog.GenderFemale
		}
		cfg = addMember(t, e, cfg.ID, "Member", dob, gender)
	}

	// THEN the totals match the spec's worked example
	if !cfg.BasePremiumTotal.Equal(money.New(20_000_000)) {
		t.Errorf("base_premium_total = %s, want 20000000", cfg.BasePremiumTotal.String())
	}
	if !cfg.TotalMultiplier.Equal(money.Parse("2.250")) {
		t.Errorf("total_multiplier = %s, want 2.250", cfg.TotalMultiplier.String())
	}
	if !cfg.AdjustedPremium.Equal(money.New(45_000_000)) {
		t.Errorf("adjusted_premium = %s, want 45000000", cfg.AdjustedPremium.String())
	}
	if !cfg.AdminFee.Equal(money.New(2_250_000)) {
		t.Errorf("admin_fee = %s, want 2250000", cfg.AdminFee.String())
	}
	if !cfg.TPAFee.Equal(money.New(100_000)) {
		t.Errorf("tpa_fee = %s, want 100000", cfg.TPAFee.String())
	}
	if !cfg.TotalPremium.Equal(money.New(47_350_000)) {
		t.Errorf("total_premium = %s, want 47350000", cfg.TotalPremium.String())
	}
}

// TestS2MaternityDemographicLoading matches §8 scenario S2.
func TestS2MaternityDemographicLoading(t *testing.T) {
	e, _ := newTestEngine()

	cfg := mustCreateConfig(t, e, 10)
	cfg = selectBenefit(t, e, cfg.ID, catalog.CategoryInpatient, "TPL_IP")
	cfg = selectBenefit(t, e, cfg.ID, catalog.CategoryOutpatient, "TPL_OP")

	femaleDOB := timeutil.NewDate(1995, 3, 1) // ~age 30
	maleDOB := timeutil.NewDate(1990, 3, 1)   // ~age 35
	for i := 0; i < 5; i++ {
		cfg = addMember(t, e, cfg.ID, "Female", femaleDOB, catalog.GenderFemale)
	}
	for i := 0; i < 5; i++ {
		cfg = addMember(t, e, cfg.ID, "Male", maleDOB, catalog.GenderMale)
	}

	// WHEN MATERNITY is also selected with 50% of members female 18-45
	cfg = selectBenefit(t, e, cfg.ID, catalog.CategoryMaternity, "TPL_MAT")

	// THEN the maternity category factor carries the 1.150 demographic loading
	var maternityFactor money.Decimal
	for _, b := range cfg.Benefits {
		if b.Category == catalog.CategoryMaternity {
			maternityFactor = b.CategoryFactor
		}
	}
	want := money.Parse("1.500").Mul(money.Parse("1.150"))
	if !maternityFactor.Equal(want) {
		t.Errorf("maternity category_factor = %s, want %s", maternityFactor.String(), want.String())
	}
}

// TestS3TCParticipantBoundRejection matches §8 scenario S3.
func TestS3TCParticipantBoundRejection(t *testing.T) {
	e, cat := newTestEngine()

	minParticipants := 50
	cat.Reload(nil, nil, []catalog.TCFactorConfig{
		{
			FactorCode: "CLASS_STRUCTURE",
			Active:     true,
			Options: []catalog.TCFactorOption{
				{OptionValue: "STANDARD", Multiplier: money.One, IsDefault: true},
				{OptionValue: "PREMIUM", Multiplier: money.Parse("1.200"), MinParticipants: &minParticipants},
			},
		},
	}, nil)

	cfg := mustCreateConfig(t, e, 20)

	// WHEN applying an option requiring >= 50 participants to a 20-participant config
	_, err := e.UpdateTC(context.Background(), cfg.ID, "CLASS_STRUCTURE", "PREMIUM")

	// THEN it is rejected with a validation error naming the bound
	if err == nil {
		t.Fatalf("expected validation error, got nil")
	}
}

// TestS4SubmissionGate matches §8 scenario S4.
func TestS4SubmissionGate(t *testing.T) {
	e, _ := newTestEngine()
	cfg := mustCreateConfig(t, e, 10)
	cfg = selectBenefit(t, e, cfg.ID, catalog.CategoryInpatient, "TPL_IP")

	dob := timeutil.NewDate(1990, 1, 1)
	for i := 0; i < 4; i++ {
		cfg = addMember(t, e, cfg.ID, "Member", dob, catalog.GenderMale)
	}

	// WHEN submitting with only 4 members
	_, err := e.Submit(context.Background(), cfg.ID)
	if err == nil {
		t.Fatalf("expected submission to fail with fewer than 5 participants")
	}

	// WHEN a 5th member is added
	cfg = addMember(t, e, cfg.ID, "Member5", dob, catalog.GenderMale)

	// THEN submission succeeds and creates approval steps for thresholds met
	cfg, err = e.Submit(context.Background(), cfg.ID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if cfg.Status != StatusQuoted {
		t.Errorf("status = %s, want QUOTED", cfg.Status)
	}
}

func TestRecomputeIsIdempotentWithoutMutation(t *testing.T) {
	// invariant 1: recomputing twice with no mutation yields identical totals
	e, _ := newTestEngine()
	cfg := mustCreateConfig(t, e, 10)
	cfg = selectBenefit(t, e, cfg.ID, catalog.CategoryInpatient, "TPL_IP")
	cfg = addMember(t, e, cfg.ID, "Member", timeutil.NewDate(1990, 1, 1), catalog.GenderMale)

	first, err := e.Calculate(context.Background(), cfg.ID, false)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	second, err := e.Calculate(context.Background(), cfg.ID, false)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !first.TotalPremium.Equal(second.TotalPremium) {
		t.Errorf("recompute not idempotent: %s != %s", first.TotalPremium.String(), second.TotalPremium.String())
	}
}

func TestParticipantCountTracksActiveMembers(t *testing.T) {
	// invariant 4
	e, _ := newTestEngine()
	cfg := mustCreateConfig(t, e, 1)
	cfg = addMember(t, e, cfg.ID, "A", timeutil.NewDate(1990, 1, 1), catalog.GenderMale)
	cfg = addMember(t, e, cfg.ID, "B", timeutil.NewDate(1990, 1, 1), catalog.GenderMale)
	if cfg.ParticipantCount != 2 {
		t.Fatalf("participant_count = %d, want 2", cfg.ParticipantCount)
	}

	cfg, err := e.TerminateMember(context.Background(), cfg.ID, 1)
	if err != nil {
		t.Fatalf("TerminateMember: %v", err)
	}
	if cfg.ParticipantCount != 1 {
		t.Fatalf("participant_count after termination = %d, want 1", cfg.ParticipantCount)
	}
}

func TestPolicyNumberMintedOnceOnFinalApproval(t *testing.T) {
	// invariant 6
	e, _ := newTestEngine()
	cfg := mustCreateConfig(t, e, 10)
	cfg = selectBenefit(t, e, cfg.ID, catalog.CategoryInpatient, "TPL_IP")
	for i := 0; i < 5; i++ {
		cfg = addMember(t, e, cfg.ID, "Member", timeutil.NewDate(1990, 1, 1), catalog.GenderMale)
	}
	cfg, err := e.Submit(context.Background(), cfg.ID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	for _, step := range cfg.Approvals {
		cfg, err = e.Approve(context.Background(), cfg.ID, step.StepName, "approver-1", "ok")
		if err != nil {
			t.Fatalf("Approve(%s): %v", step.StepName, err)
		}
	}

	if cfg.Status != StatusApproved {
		t.Fatalf("status = %s, want APPROVED", cfg.Status)
	}
	if cfg.PolicyNumber == "" {
		t.Fatalf("expected policy_number to be minted")
	}
	if len(cfg.PolicyNumber) < 3 || cfg.PolicyNumber[:3] != "PGH" {
		t.Errorf("policy_number %q does not match PGH<YYYYMM><NNNNN>", cfg.PolicyNumber)
	}
}

func TestMemberImportRecordsPerRowErrorsAndContinues(t *testing.T) {
	e, _ := newTestEngine()
	cfg := mustCreateConfig(t, e, 1)

	rows := []MemberImportRow{
		{RowIndex: 0, FullName: "Good Row", DateOfBirth: timeutil.NewDate(1990, 1, 1), Gender: catalog.GenderMale, MemberType: MemberEmployee},
		{RowIndex: 1, FullName: "", DateOfBirth: timeutil.NewDate(1990, 1, 1), Gender: catalog.GenderMale, MemberType: MemberEmployee},
	}

	created, errs, err := e.ImportMembers(context.Background(), cfg.ID, rows)
	if err != nil {
		t.Fatalf("ImportMembers: %v", err)
	}
	if len(created) != 1 {
		t.Errorf("created = %d, want 1", len(created))
	}
	if len(errs) != 1 || errs[0].RowIndex != 1 {
		t.Errorf("errs = %+v, want one error for row 1", errs)
	}
}
