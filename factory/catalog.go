/*
Package factory converts JSON reference-data definitions into the
structs internal/catalog.CatalogStore.Reload expects.

PURPOSE:
  Product templates, age-band multipliers, T&C factors and benefit
  configurations change on an actuarial/underwriting cadence, not a
  release cadence. This factory lets that reference data live as JSON
  (loaded from a file, an admin UI, or a config-management system) and be
  converted into the typed structs the pricing and claims engines consult,
  the same way the teacher's PolicyFactory turns a JSON policy definition
  into a generic.Policy without a code change.

JSON SCHEMA:
  {
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
         {"option_value": "LOW", "multiplier": "0.950",
          "min_participants": 15}
       ]}
    ],
    "benefit_configurations": [
      {"benefit_code": "IP_ROOM", "category": "INPATIENT",
       "settlement_pct": "100", "limit_value": "2000000",
       "requires_preauth": true, "waiting_period_days": 30}
    ]
  }

USAGE:
  f := factory.NewCatalogFactory()
  seed, err := f.ParseCatalog(jsonBytes) // parse only
  store := catalog.NewStore()
  err = f.LoadInto(store, jsonBytes)     // parse and reload in one step

SEE ALSO:
  - internal/catalog: the target types and the Catalog interface.
  - The teacher's JSON-to-struct PolicyFactory (not part of this module),
    the pattern this factory generalizes, from a single
    Policy+AccrualSchedule pair to a full reference-data snapshot.
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/salamenterprise/claims-askes/internal/catalog"
	"github.com/salamenterprise/claims-askes/internal/money"
	"github.com/salamenterprise/claims-askes/internal/timeutil"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// CatalogJSON is the top-level JSON document a CatalogFactory parses.
type CatalogJSON struct {
	ProductTemplates      []ProductTemplateJSON      `json:"product_templates,omitempty"`
	AgeBandMultipliers    []AgeBandMultiplierJSON    `json:"age_band_multipliers,omitempty"`
	TCFactors             []TCFactorJSON             `json:"tc_factors,omitempty"`
	BenefitConfigurations []BenefitConfigurationJSON `json:"benefit_configurations,omitempty"`
}

type ProductTemplateJSON struct {
	TemplateCode    string `json:"template_code"`
	Category        string `json:"category"`
	BaseAdultMale   string `json:"base_adult_male"`
	BaseAdultFemale string `json:"base_adult_female"`
	BaseChild       string `json:"base_child"`
	EffectiveFrom   string `json:"effective_from"`
	EffectiveTo     string `json:"effective_to,omitempty"`
}

type AgeBandMultiplierJSON struct {
	TemplateCode string `json:"template_code"`
	AgeFrom      int    `json:"age_from"`
	AgeTo        int    `json:"age_to"`
	Gender       string `json:"gender"`
	Multiplier   string `json:"multiplier"`
}

type TCFactorJSON struct {
	FactorCode   string             `json:"factor_code"`
	Category     string             `json:"category"`
	DisplayOrder int                `json:"display_order"`
	Active       bool               `json:"active"`
	Options      []TCFactorOptionJSON `json:"options"`
}

type TCFactorOptionJSON struct {
	OptionValue     string `json:"option_value"`
	Multiplier      string `json:"multiplier"`
	MinParticipants *int   `json:"min_participants,omitempty"`
	MaxParticipants *int   `json:"max_participants,omitempty"`
	IsDefault       bool   `json:"is_default,omitempty"`
}

type BenefitConfigurationJSON struct {
	BenefitCode                string   `json:"benefit_code"`
	Category                   string   `json:"category"`
	CoverageType               string   `json:"coverage_type,omitempty"`
	SettlementPct              string   `json:"settlement_pct,omitempty"`
	CoinsurancePct             string   `json:"coinsurance_pct,omitempty"`
	LimitValue                 string   `json:"limit_value,omitempty"`
	MaxDaysPerYear             int      `json:"max_days_per_year,omitempty"`
	MaxVisitsPerYear           int      `json:"max_visits_per_year,omitempty"`
	MaxCasesPerYear            int      `json:"max_cases_per_year,omitempty"`
	RequiresPreauth            bool     `json:"requires_preauth,omitempty"`
	RequiresMedicalIndication  bool     `json:"requires_medical_indication,omitempty"`
	WaitingPeriodDays          int      `json:"waiting_period_days,omitempty"`
	PreHospitalizationDays     int      `json:"pre_hospitalization_days,omitempty"`
	PostHospitalizationDays    int      `json:"post_hospitalization_days,omitempty"`
	MinAgeYears                int      `json:"min_age_years,omitempty"`
	MaxAgeYears                int      `json:"max_age_years,omitempty"`
	Exclusions                 []string `json:"exclusions,omitempty"`
	Prerequisites               []string `json:"prerequisites,omitempty"`
	DiagnosisWhitelist          []string `json:"diagnosis_whitelist,omitempty"`
	RoomUpgradeAllowed          bool     `json:"room_upgrade_allowed,omitempty"`
	MaxICULimitDays             int      `json:"max_icu_limit_days,omitempty"`
	RecoveryPeriodDays          int      `json:"recovery_period_days,omitempty"`
	PackageBenefitCodes         []string `json:"package_benefit_codes,omitempty"`
	RequiresReferral            bool     `json:"requires_referral,omitempty"`
	MaternityMinMonthsEnrolled  int      `json:"maternity_min_months_enrolled,omitempty"`
	DentalClass                 string   `json:"dental_class,omitempty"`
	OpticalCycleMonths          int      `json:"optical_cycle_months,omitempty"`
	MaxSessionsPerYear          int      `json:"max_sessions_per_year,omitempty"`
}

// =============================================================================
// CATALOG FACTORY
// =============================================================================

// CatalogSeed is the parsed, typed form of a CatalogJSON document, ready for
// catalog.CatalogStore.Reload.
type CatalogSeed struct {
	Templates []catalog.ProductTemplate
	AgeBands  []catalog.AgeBandMultiplier
	TCFactors []catalog.TCFactorConfig
	Benefits  []catalog.BenefitConfiguration
}

// CatalogFactory converts JSON reference-data documents to CatalogSeed.
type CatalogFactory struct{}

// NewCatalogFactory builds a CatalogFactory.
func NewCatalogFactory() *CatalogFactory {
	return &CatalogFactory{}
}

// ParseCatalog parses a JSON document into a CatalogSeed.
func (f *CatalogFactory) ParseCatalog(data []byte) (CatalogSeed, error) {
	var cj CatalogJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return CatalogSeed{}, fmt.Errorf("parse catalog JSON: %w", err)
	}
	return f.FromJSON(cj)
}

// FromJSON converts a CatalogJSON to a CatalogSeed.
func (f *CatalogFactory) FromJSON(cj CatalogJSON) (CatalogSeed, error) {
	seed := CatalogSeed{
		Templates: make([]catalog.ProductTemplate, 0, len(cj.ProductTemplates)),
		AgeBands:  make([]catalog.AgeBandMultiplier, 0, len(cj.AgeBandMultipliers)),
		TCFactors: make([]catalog.TCFactorConfig, 0, len(cj.TCFactors)),
		Benefits:  make([]catalog.BenefitConfiguration, 0, len(cj.BenefitConfigurations)),
	}

	for _, tj := range cj.ProductTemplates {
		from, err := parseISODate(tj.EffectiveFrom)
		if err != nil {
			return CatalogSeed{}, fmt.Errorf("template %s: effective_from: %w", tj.TemplateCode, err)
		}
		var to timeutil.Date
		if tj.EffectiveTo != "" {
			to, err = parseISODate(tj.EffectiveTo)
			if err != nil {
				return CatalogSeed{}, fmt.Errorf("template %s: effective_to: %w", tj.TemplateCode, err)
			}
		}
		seed.Templates = append(seed.Templates, catalog.ProductTemplate{
			TemplateCode:    tj.TemplateCode,
			Category:        catalog.BenefitCategory(tj.Category),
			BaseAdultMale:   money.Parse(tj.BaseAdultMale),
			BaseAdultFemale: money.Parse(tj.BaseAdultFemale),
			BaseChild:       money.Parse(tj.BaseChild),
			EffectiveFrom:   from,
			EffectiveTo:     to,
		})
	}

	for _, aj := range cj.AgeBandMultipliers {
		seed.AgeBands = append(seed.AgeBands, catalog.AgeBandMultiplier{
			TemplateCode: aj.TemplateCode,
			AgeFrom:      aj.AgeFrom,
			AgeTo:        aj.AgeTo,
			Gender:       catalog.Gender(aj.Gender),
			Multiplier:   money.Parse(aj.Multiplier),
		})
	}

	for _, fj := range cj.TCFactors {
		factor := catalog.TCFactorConfig{
			FactorCode:   fj.FactorCode,
			Category:     fj.Category,
			DisplayOrder: fj.DisplayOrder,
			Active:       fj.Active,
		}
		for _, oj := range fj.Options {
			factor.Options = append(factor.Options, catalog.TCFactorOption{
				OptionValue:     oj.OptionValue,
				Multiplier:      money.Parse(oj.Multiplier),
				MinParticipants: oj.MinParticipants,
				MaxParticipants: oj.MaxParticipants,
				IsDefault:       oj.IsDefault,
			})
		}
		seed.TCFactors = append(seed.TCFactors, factor)
	}

	for _, bj := range cj.BenefitConfigurations {
		settlement := bj.SettlementPct
		if settlement == "" {
			settlement = "100"
		}
		seed.Benefits = append(seed.Benefits, catalog.BenefitConfiguration{
			BenefitCode:                bj.BenefitCode,
			Category:                   catalog.BenefitCategory(bj.Category),
			CoverageType:               bj.CoverageType,
			SettlementPct:              money.Parse(settlement),
			CoinsurancePct:             money.Parse(bj.CoinsurancePct),
			LimitValue:                 money.Parse(bj.LimitValue),
			MaxDaysPerYear:             bj.MaxDaysPerYear,
			MaxVisitsPerYear:           bj.MaxVisitsPerYear,
			MaxCasesPerYear:            bj.MaxCasesPerYear,
			RequiresPreauth:            bj.RequiresPreauth,
			RequiresMedicalIndication:  bj.RequiresMedicalIndication,
			WaitingPeriodDays:          bj.WaitingPeriodDays,
			PreHospitalizationDays:     bj.PreHospitalizationDays,
			PostHospitalizationDays:    bj.PostHospitalizationDays,
			MinAgeYears:                bj.MinAgeYears,
			MaxAgeYears:                bj.MaxAgeYears,
			Exclusions:                 bj.Exclusions,
			Prerequisites:              bj.Prerequisites,
			DiagnosisWhitelist:         bj.DiagnosisWhitelist,
			RoomUpgradeAllowed:         bj.RoomUpgradeAllowed,
			MaxICULimitDays:            bj.MaxICULimitDays,
			RecoveryPeriodDays:         bj.RecoveryPeriodDays,
			PackageBenefitCodes:        bj.PackageBenefitCodes,
			RequiresReferral:           bj.RequiresReferral,
			MaternityMinMonthsEnrolled: bj.MaternityMinMonthsEnrolled,
			DentalClass:                bj.DentalClass,
			OpticalCycleMonths:         bj.OpticalCycleMonths,
			MaxSessionsPerYear:         bj.MaxSessionsPerYear,
		})
	}

	return seed, nil
}

// LoadInto parses data and reloads store with the result in one call — the
// convenience path a seed-data bootstrap or an admin "reload reference
// data" endpoint uses.
func (f *CatalogFactory) LoadInto(store *catalog.CatalogStore, data []byte) error {
	seed, err := f.ParseCatalog(data)
	if err != nil {
		return err
	}
	store.Reload(seed.Templates, seed.AgeBands, seed.TCFactors, seed.Benefits)
	return nil
}

func parseISODate(s string) (timeutil.Date, error) {
	var d timeutil.Date
	if err := (&d).UnmarshalJSON([]byte(`"` + s + `"`)); err != nil {
		return timeutil.Date{}, err
	}
	return d, nil
}
