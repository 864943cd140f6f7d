package factory

import (
	"testing"

	"github.com/salamenterprise/claims-askes/internal/catalog"
	"github.com/salamenterprise/claims-askes/internal/money"
	"github.com/salamenterprise/claims-askes/internal/timeutil"
)

const sampleCatalogJSON = `{
	"product_templates": [
		{"template_code": "TPL_IP", "category": "INPATIENT",
		 "base_adult_male": "1000000", "base_adult_female": "1000000",
		 "base_child": "750000", "effective_from": "2020-01-01"}
	],
	"age_band_multipliers": [
		{"template_code": "TPL_IP", "age_from": 0, "age_to": 17,
		 "gender": "CHILD", "multiplier": "0.800"}
	],
	"tc_factors": [
		{"factor_code": "DEDUCTIBLE", "category": "COST_SHARING",
		 "display_order": 1, "active": true,
		 "options": [
			{"option_value": "NONE", "multiplier": "1.000", "is_default": true},
			{"option_value": "LOW", "multiplier": "0.950", "min_participants": 15}
		 ]}
	],
	"benefit_configurations": [
		{"benefit_code": "IP_ROOM", "category": "INPATIENT",
		 "settlement_pct": "100", "limit_value": "2000000",
		 "requires_preauth": true, "waiting_period_days": 30}
	]
}`

func TestParseCatalogConvertsEveryTable(t *testing.T) {
	f := NewCatalogFactory()
	seed, err := f.ParseCatalog([]byte(sampleCatalogJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(seed.Templates) != 1 || seed.Templates[0].TemplateCode != "TPL_IP" {
		t.Fatalf("unexpected templates: %+v", seed.Templates)
	}
	if !seed.Templates[0].EffectiveFrom.Equal(timeutil.NewDate(2020, 1, 1)) {
		t.Errorf("effective_from = %s, want 2020-01-01", seed.Templates[0].EffectiveFrom)
	}

	if len(seed.AgeBands) != 1 || seed.AgeBands[0].Gender != catalog.GenderChild {
		t.Fatalf("unexpected age bands: %+v", seed.AgeBands)
	}

	if len(seed.TCFactors) != 1 || len(seed.TCFactors[0].Options) != 2 {
		t.Fatalf("unexpected tc factors: %+v", seed.TCFactors)
	}
	lowOption := seed.TCFactors[0].Options[1]
	if lowOption.MinParticipants == nil || *lowOption.MinParticipants != 15 {
		t.Errorf("expected min_participants=15, got %+v", lowOption.MinParticipants)
	}

	if len(seed.Benefits) != 1 {
		t.Fatalf("unexpected benefits: %+v", seed.Benefits)
	}
	benefit := seed.Benefits[0]
	if !benefit.LimitValue.Equal(money.New(2_000_000)) {
		t.Errorf("limit_value = %s, want 2000000", benefit.LimitValue.String())
	}
	if !benefit.RequiresPreauth || benefit.WaitingPeriodDays != 30 {
		t.Errorf("unexpected benefit flags: %+v", benefit)
	}
}

func TestBenefitConfigurationDefaultsSettlementPctTo100(t *testing.T) {
	f := NewCatalogFactory()
	seed, err := f.ParseCatalog([]byte(`{"benefit_configurations":[{"benefit_code":"OP_VISIT","category":"OUTPATIENT"}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seed.Benefits[0].SettlementPct.Equal(money.New(100)) {
		t.Errorf("settlement_pct = %s, want 100", seed.Benefits[0].SettlementPct.String())
	}
}

func TestLoadIntoReloadsCatalogStore(t *testing.T) {
	store := catalog.NewStore()
	f := NewCatalogFactory()
	if err := f.LoadInto(store, []byte(sampleCatalogJSON)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tmpl, ok := store.TemplateEffectiveOn("TPL_IP", timeutil.NewDate(2025, 1, 1))
	if !ok {
		t.Fatalf("expected TPL_IP to be effective")
	}
	if !tmpl.BaseRate(catalog.GenderMale).Equal(money.New(1_000_000)) {
		t.Errorf("base rate = %s, want 1000000", tmpl.BaseRate(catalog.GenderMale).String())
	}

	benefit, ok := store.BenefitConfiguration("IP_ROOM")
	if !ok || !benefit.LimitValue.Equal(money.New(2_000_000)) {
		t.Fatalf("unexpected benefit lookup: %+v ok=%v", benefit, ok)
	}
}

func TestParseCatalogRejectsMalformedEffectiveFrom(t *testing.T) {
	f := NewCatalogFactory()
	_, err := f.ParseCatalog([]byte(`{"product_templates":[{"template_code":"X","effective_from":"not-a-date"}]}`))
	if err == nil {
		t.Fatal("expected an error for malformed effective_from")
	}
}
