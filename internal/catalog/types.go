/*
Package catalog holds the read-mostly reference data the pricing and claims
engines both consult: product templates, age-band multipliers, T&C factors
and their options, rate tables, and benefit configurations (§3, §4.2).

The catalog is swapped atomically on reload (§5 "shared resources"):
selections elsewhere hold stable keys (template_code, factor_code,
option_value, benefit_code), never pointers into a Catalog value, so a
reload never dangles a live PolicyConfig.
*/
package catalog

import (
	"github.com/salamenterprise/claims-askes/internal/money"
	"github.com/salamenterprise/claims-askes/internal/timeutil"
)

// Gender is the biological or band gender used in rate and multiplier
// lookups. Age-band lookups coerce any member under 18 to CHILD regardless
// of biological gender (§4.2).
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
	GenderChild  Gender = "CHILD"
)

// BenefitCategory groups benefit configurations for selection, category
// factor computation, and claims rule applicability (§4.6.2).
type BenefitCategory string

const (
	CategoryInpatient    BenefitCategory = "INPATIENT"
	CategoryOutpatient   BenefitCategory = "OUTPATIENT"
	CategoryMaternity    BenefitCategory = "MATERNITY"
	CategoryDental       BenefitCategory = "DENTAL"
	CategoryOptical      BenefitCategory = "OPTICAL"
	CategoryMentalHealth BenefitCategory = "MENTAL_HEALTH"
)

// AllCategories enumerates every BenefitCategory, in the order a new
// PolicyConfig's default BenefitSelection rows are created (§4.4.1).
var AllCategories = []BenefitCategory{
	CategoryInpatient,
	CategoryOutpatient,
	CategoryMaternity,
	CategoryDental,
	CategoryOptical,
	CategoryMentalHealth,
}

// DefaultSelectedCategories are selected on a new config before any caller
// mutation (§4.4.1).
var DefaultSelectedCategories = map[BenefitCategory]bool{
	CategoryInpatient:  true,
	CategoryOutpatient: true,
}

// ProductTemplate is a priced product line with adult/child base rates and
// an effective window (§3).
type ProductTemplate struct {
	TemplateCode      string
	Category          BenefitCategory
	BaseAdultMale     money.Decimal
	BaseAdultFemale   money.Decimal
	BaseChild         money.Decimal
	EffectiveFrom     timeutil.Date
	EffectiveTo       timeutil.Date // zero value means open-ended
}

// IsEffectiveOn reports whether the template is active on the given date.
func (t ProductTemplate) IsEffectiveOn(d timeutil.Date) bool {
	if d.Before(t.EffectiveFrom) {
		return false
	}
	if !t.EffectiveTo.IsZero() && !d.Before(t.EffectiveTo) {
		return false
	}
	return true
}

// BaseRate returns the template's base rate for a gender-or-CHILD band.
func (t ProductTemplate) BaseRate(gender Gender) money.Decimal {
	switch gender {
	case GenderFemale:
		return t.BaseAdultFemale
	case GenderChild:
		return t.BaseChild
	default:
		return t.BaseAdultMale
	}
}

// AgeBandMultiplier scales a template's base rate for an inclusive
// [AgeFrom, AgeTo] × Gender band (§3, §4.2). CHILD bands only apply when the
// member's age is under 18 — enforced by callers passing GenderForAge's
// result as the lookup gender; neither this type nor
// CatalogStore.AgeBandMultiplier checks age against gender.
type AgeBandMultiplier struct {
	TemplateCode string
	AgeFrom      int
	AgeTo        int
	Gender       Gender
	Multiplier   money.Decimal
}

// TCFactorConfig is a policy-level terms-and-conditions dimension (§3,
// glossary "T&C factor").
type TCFactorConfig struct {
	FactorCode  string
	Category    string
	DisplayOrder int
	Active      bool
	Options     []TCFactorOption
}

// TCFactorOption is one selectable value of a TCFactorConfig, optionally
// bounded by participant count (§3).
type TCFactorOption struct {
	OptionValue    string
	Multiplier     money.Decimal
	MinParticipants *int
	MaxParticipants *int
	IsDefault      bool
}

// InBounds reports whether participantCount satisfies this option's
// min/max participant bounds, if set.
func (o TCFactorOption) InBounds(participantCount int) bool {
	if o.MinParticipants != nil && participantCount < *o.MinParticipants {
		return false
	}
	if o.MaxParticipants != nil && participantCount > *o.MaxParticipants {
		return false
	}
	return true
}

// RateTable is an age-band x gender rate grid for a benefit, versioned by
// effective date (§3). Unconsulted scaffolding: member premium is computed
// from ProductTemplate + AgeBandMultiplier (§4.4.3), and OriginalBenefitLimit
// resolves from BenefitConfiguration.LimitValue directly (§12) — the
// original source's own rate-table query was dead code, discarding its
// result and hardcoding a zero limit. No operation in this spec reads or
// writes a RateTable row.
type RateTable struct {
	RateCode      string
	BenefitCode   string
	EffectiveDate timeutil.Date
	Rates         map[string]money.Decimal // key: "<ageFrom>-<ageTo>-<gender>"
}

// BenefitConfiguration is a priced, rule-bearing benefit line (§3).
type BenefitConfiguration struct {
	BenefitCode               string
	Category                  BenefitCategory
	CoverageType              string
	SettlementPct             money.Decimal // [0,100]
	CoinsurancePct            money.Decimal // [0,100]
	LimitValue                money.Decimal // 0 means no limit configured
	MaxDaysPerYear            int
	MaxVisitsPerYear          int
	MaxCasesPerYear           int
	RequiresPreauth           bool
	RequiresMedicalIndication bool
	WaitingPeriodDays         int
	PreHospitalizationDays    int
	PostHospitalizationDays   int
	MinAgeYears               int
	MaxAgeYears               int
	Exclusions                []string // diagnosis codes
	Prerequisites             []string // benefit codes
	DiagnosisWhitelist        []string // data-driven medical-indication whitelist (§4.6.4 VAL005)
	RoomUpgradeAllowed        bool
	MaxICULimitDays           int
	RecoveryPeriodDays        int
	PackageBenefitCodes       []string
	RequiresReferral          bool
	MaternityMinMonthsEnrolled int
	DentalClass               string
	OpticalCycleMonths        int
	MaxSessionsPerYear        int
}
