package claims

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/salamenterprise/claims-askes/internal/catalog"
	"github.com/salamenterprise/claims-askes/internal/money"
	"github.com/salamenterprise/claims-askes/internal/timeutil"
)

var money100 = money.New(100)

// RegisterBaseRules registers the rules that apply to every claim
// regardless of benefit category (§4.6.2 "base rules").
func RegisterBaseRules(r *Registry) {
	r.Register(Rule{Code: "VAL001", Name: "Age", Fn: ruleAge})
	r.Register(Rule{Code: "VAL002", Name: "Waiting period", Fn: ruleWaitingPeriod})
	r.Register(Rule{Code: "VAL003", Name: "Annual limit", Fn: ruleAnnualLimit})
	r.Register(Rule{Code: "VAL004", Name: "Preauth", Fn: rulePreauth})
	r.Register(Rule{Code: "VAL005", Name: "Medical indication", Fn: ruleMedicalIndication})
	r.Register(Rule{Code: "VAL006", Name: "Exclusions", Fn: ruleExclusions})
	r.Register(Rule{Code: "VAL007", Name: "Channel", Fn: ruleChannel})
	r.Register(Rule{Code: "VAL008", Name: "Duplicate", Fn: ruleDuplicate})
	r.Register(Rule{Code: "VAL009", Name: "Prerequisites", Fn: rulePrerequisites})
	r.Register(Rule{Code: "VAL010", Name: "ASO funds", Fn: ruleASOFundsPlaceholder})
	r.Register(Rule{Code: "VAL011", Name: "Buffer funds", Fn: ruleBufferFundsPlaceholder})
	r.Register(Rule{Code: "VAL025", Name: "Coinsurance", Fn: ruleCoinsurance})
}

// RegisterCategoryRules registers the category-specific rules (§4.6.2).
func RegisterCategoryRules(r *Registry) {
	r.Register(Rule{Code: "VAL012", Name: "Room upgrade", Categories: []catalog.BenefitCategory{catalog.CategoryInpatient}, Fn: ruleRoomUpgradePlaceholder})
	r.Register(Rule{Code: "VAL013", Name: "Pre/post hospitalization", Categories: []catalog.BenefitCategory{catalog.CategoryInpatient}, Fn: rulePrePostHospitalization})
	r.Register(Rule{Code: "VAL014", Name: "Surgery class", Categories: []catalog.BenefitCategory{catalog.CategoryInpatient}, Fn: ruleSurgeryClassPlaceholder})
	r.Register(Rule{Code: "VAL015", Name: "ICU limits", Categories: []catalog.BenefitCategory{catalog.CategoryInpatient}, Fn: ruleICULimitsPlaceholder})
	r.Register(Rule{Code: "VAL016", Name: "Visit limits", Categories: []catalog.BenefitCategory{catalog.CategoryOutpatient}, Fn: ruleVisitLimits})
	r.Register(Rule{Code: "VAL017", Name: "Recovery period", Categories: []catalog.BenefitCategory{catalog.CategoryInpatient}, Fn: ruleRecoveryPeriodPlaceholder})
	r.Register(Rule{Code: "VAL018", Name: "Package benefits", Categories: []catalog.BenefitCategory{catalog.CategoryOutpatient}, Fn: rulePackageBenefitsPlaceholder})
	r.Register(Rule{Code: "VAL019", Name: "Referral", Categories: []catalog.BenefitCategory{catalog.CategoryOutpatient}, Fn: ruleReferralPlaceholder})
	r.Register(Rule{Code: "VAL020", Name: "Maternity eligibility", Categories: []catalog.BenefitCategory{catalog.CategoryMaternity}, Fn: ruleMaternityEligibilityPlaceholder})
	r.Register(Rule{Code: "VAL021", Name: "Dental classification", Categories: []catalog.BenefitCategory{catalog.CategoryDental}, Fn: ruleDentalClassificationPlaceholder})
	r.Register(Rule{Code: "VAL022", Name: "Optical cycle", Categories: []catalog.BenefitCategory{catalog.CategoryOptical}, Fn: ruleOpticalCyclePlaceholder})
	r.Register(Rule{Code: "VAL023", Name: "Session limits", Categories: []catalog.BenefitCategory{catalog.CategoryMentalHealth}, Fn: ruleSessionLimitsPlaceholder})
}

// RegisterAll registers every VAL001-VAL025 rule (VAL024 is reserved and
// unassigned — not registered, per §4.6.4).
func RegisterAll(r *Registry) {
	RegisterBaseRules(r)
	RegisterCategoryRules(r)
}

func ruleAge(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	age := ctx.AgeAtService()
	if benefit.MinAgeYears > 0 && age < benefit.MinAgeYears {
		return &ValidationResult{RuleCode: "VAL001", RuleName: "Age", Status: StatusFailed,
			Message: fmt.Sprintf("member age %d is below minimum %d", age, benefit.MinAgeYears)}
	}
	if benefit.MaxAgeYears > 0 && age > benefit.MaxAgeYears {
		return &ValidationResult{RuleCode: "VAL001", RuleName: "Age", Status: StatusFailed,
			Message: fmt.Sprintf("member age %d exceeds maximum %d", age, benefit.MaxAgeYears)}
	}
	return nil
}

func ruleWaitingPeriod(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	if benefit.WaitingPeriodDays <= 0 || ctx.MemberSinceDate.IsZero() {
		return nil
	}
	elapsed := timeutil.DaysBetween(ctx.MemberSinceDate, ctx.ServiceDate)
	if elapsed < benefit.WaitingPeriodDays {
		return &ValidationResult{RuleCode: "VAL002", RuleName: "Waiting period", Status: StatusFailed,
			Message: fmt.Sprintf("service date is %d days after enrollment, requires %d", elapsed, benefit.WaitingPeriodDays)}
	}
	return nil
}

func ruleAnnualLimit(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	if benefit.LimitValue.IsZero() {
		return nil
	}
	if ctx.AccumulatorUsedAmount.GreaterThanOrEqual(benefit.LimitValue) {
		return &ValidationResult{RuleCode: "VAL003", RuleName: "Annual limit", Status: StatusFailed,
			Message: "annual limit already exhausted"}
	}
	remaining := benefit.LimitValue.Sub(ctx.AccumulatorUsedAmount)
	if ctx.ClaimedAmount.GreaterThan(remaining) {
		return &ValidationResult{RuleCode: "VAL003", RuleName: "Annual limit", Status: StatusWarning,
			Message:                fmt.Sprintf("claimed amount exceeds remaining limit of %s", remaining.String()),
			CanOverride:            true,
			RequiredAuthorityLevel: 2,
			Details:                map[string]any{"remaining": remaining.String()},
		}
	}
	return nil
}

func rulePreauth(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	if benefit.RequiresPreauth && !ctx.IsEmergency && !ctx.HasPreauth {
		return &ValidationResult{RuleCode: "VAL004", RuleName: "Preauth", Status: StatusFailed,
			Message: "pre-authorization required but not present", CanOverride: true, RequiredAuthorityLevel: 3}
	}
	return nil
}

const circumcisionBenefitPrefix = "CIRC"

func ruleMedicalIndication(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	if !benefit.RequiresMedicalIndication {
		return nil
	}
	if len(ctx.DiagnosisCodes) == 0 {
		return &ValidationResult{RuleCode: "VAL005", RuleName: "Medical indication", Status: StatusFailed,
			Message: "medical indication required but no diagnosis codes present"}
	}
	if len(benefit.BenefitCode) >= len(circumcisionBenefitPrefix) && benefit.BenefitCode[:len(circumcisionBenefitPrefix)] == circumcisionBenefitPrefix {
		if !anyDiagnosisInWhitelist(ctx.DiagnosisCodes, benefit.DiagnosisWhitelist) {
			return &ValidationResult{RuleCode: "VAL005", RuleName: "Medical indication", Status: StatusFailed,
				Message: "no diagnosis matches the configured medical-indication whitelist"}
		}
	}
	return nil
}

func anyDiagnosisInWhitelist(diagnoses, whitelist []string) bool {
	set := make(map[string]bool, len(whitelist))
	for _, w := range whitelist {
		set[w] = true
	}
	for _, d := range diagnoses {
		if set[d] {
			return true
		}
	}
	return false
}

func ruleExclusions(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	excluded := make(map[string]bool, len(benefit.Exclusions))
	for _, e := range benefit.Exclusions {
		excluded[e] = true
	}
	for _, d := range ctx.DiagnosisCodes {
		if excluded[d] {
			return &ValidationResult{RuleCode: "VAL006", RuleName: "Exclusions", Status: StatusFailed,
				Message: fmt.Sprintf("diagnosis %s is excluded", d), Details: map[string]any{"diagnosis": d}}
		}
	}
	return nil
}

func ruleChannel(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	// CoverageType doubles as the allowed-channel restriction when set to a
	// specific channel value; empty means unrestricted.
	if benefit.CoverageType == "" || ctx.Channel == "" {
		return nil
	}
	if benefit.CoverageType != ctx.Channel {
		return &ValidationResult{RuleCode: "VAL007", RuleName: "Channel", Status: StatusFailed,
			Message: fmt.Sprintf("claim channel %s is not allowed for this benefit", ctx.Channel)}
	}
	return nil
}

// ClaimFingerprint computes the stable claim hash of (member_id,
// benefit_code, service_date, claimed_amount) (§4.6.4 VAL008, invariant 9):
// the same inputs always yield the same fingerprint. Because the hash covers
// the exact service_date, ruleDuplicate does not compare fingerprints: it
// matches benefit_code and claimed_amount directly and applies the
// ±duplicateWindowDays service-date window itself.
func ClaimFingerprint(memberID, benefitCode string, serviceDate timeutil.Date, claimedAmount string) string {
	sum := sha256.Sum256([]byte(memberID + "|" + benefitCode + "|" + serviceDate.String() + "|" + claimedAmount))
	return hex.EncodeToString(sum[:])
}

const duplicateWindowDays = 30

func ruleDuplicate(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	// PriorClaims are this member's own history, so a prior claim duplicates
	// this one when benefit_code and claimed_amount match and its service
	// date lies within ±duplicateWindowDays.
	for _, prior := range ctx.PriorClaims {
		if prior.BenefitCode != ctx.BenefitCode || !prior.ClaimedAmount.Equal(ctx.ClaimedAmount) {
			continue
		}
		days := timeutil.DaysBetween(prior.ServiceDate, ctx.ServiceDate)
		if days < 0 {
			days = -days
		}
		if days <= duplicateWindowDays {
			return &ValidationResult{RuleCode: "VAL008", RuleName: "Duplicate", Status: StatusWarning,
				Message: fmt.Sprintf("duplicate of prior claim %s within %d days", prior.ClaimID, duplicateWindowDays),
				CanOverride: true, RequiredAuthorityLevel: 2,
			}
		}
	}
	return nil
}

// rulePrerequisites requires each of benefit.Prerequisites to appear as a
// PASSED prior claim in the member's history for the same coverage period
// as the current claim (§4.6.4 VAL009) — a prerequisite satisfied in an
// earlier or unrelated coverage period does not carry forward.
func rulePrerequisites(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	period := ctx.CoveragePeriod()
	for _, required := range benefit.Prerequisites {
		satisfied := false
		for _, prior := range ctx.PriorClaims {
			if prior.BenefitCode == required && prior.Status == StatusPassed && prior.CoveragePeriod() == period {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return &ValidationResult{RuleCode: "VAL009", RuleName: "Prerequisites", Status: StatusFailed,
				Message: fmt.Sprintf("required prerequisite benefit %s not satisfied for coverage period %s", required, period)}
		}
	}
	return nil
}

// ruleASOFundsPlaceholder: needs an ASO-funding balance source per
// employer, not present in this spec's data model (§12).
func ruleASOFundsPlaceholder(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	return nil
}

// ruleBufferFundsPlaceholder: needs a buffer-fund ledger keyed by policy,
// not present in this spec's data model (§12).
func ruleBufferFundsPlaceholder(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	return nil
}

func rulePrePostHospitalization(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	if ctx.AdmissionDate.IsZero() || ctx.DischargeDate.IsZero() {
		return nil
	}
	if benefit.PreHospitalizationDays <= 0 && benefit.PostHospitalizationDays <= 0 {
		return nil
	}
	windowStart := ctx.AdmissionDate.AddDays(-benefit.PreHospitalizationDays)
	windowEnd := ctx.DischargeDate.AddDays(benefit.PostHospitalizationDays)
	if ctx.ServiceDate.Before(windowStart) || ctx.ServiceDate.After(windowEnd) {
		return &ValidationResult{RuleCode: "VAL013", RuleName: "Pre/post hospitalization", Status: StatusFailed,
			Message: fmt.Sprintf("service date outside the [%s, %s] hospitalization window", windowStart.String(), windowEnd.String())}
	}
	return nil
}

// ruleRoomUpgradePlaceholder: needs a room-class catalog keyed by
// benefit_code, not present in this spec's data model (§12).
func ruleRoomUpgradePlaceholder(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	return nil
}

// ruleSurgeryClassPlaceholder: needs a surgery-class/procedure-code
// mapping, not present in this spec's data model (§12).
func ruleSurgeryClassPlaceholder(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	return nil
}

// ruleICULimitsPlaceholder: needs an ICU-day accumulator distinct from the
// general day/visit accumulator, not present in this spec's data model (§12).
func ruleICULimitsPlaceholder(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	return nil
}

func ruleVisitLimits(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	if benefit.MaxVisitsPerYear <= 0 {
		return nil
	}
	if ctx.AccumulatorUsedCount >= benefit.MaxVisitsPerYear {
		return &ValidationResult{RuleCode: "VAL016", RuleName: "Visit limits", Status: StatusFailed,
			Message: fmt.Sprintf("used visits %d reached the annual maximum of %d", ctx.AccumulatorUsedCount, benefit.MaxVisitsPerYear)}
	}
	return nil
}

// ruleRecoveryPeriodPlaceholder: needs a recovery-period tracking concept
// distinct from waiting period, not present in this spec's data model (§12).
func ruleRecoveryPeriodPlaceholder(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	return nil
}

// rulePackageBenefitsPlaceholder: needs a package-benefit bundling concept,
// not present in this spec's data model (§12).
func rulePackageBenefitsPlaceholder(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	return nil
}

// ruleReferralPlaceholder: needs a referring-provider record, not present
// in this spec's data model (§12).
func ruleReferralPlaceholder(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	return nil
}

// ruleMaternityEligibilityPlaceholder: needs an enrollment-duration
// eligibility rule distinct from the generic waiting period, not present
// in this spec's data model (§12).
func ruleMaternityEligibilityPlaceholder(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	return nil
}

// ruleDentalClassificationPlaceholder: needs a dental procedure
// classification table, not present in this spec's data model (§12).
func ruleDentalClassificationPlaceholder(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	return nil
}

// ruleOpticalCyclePlaceholder: needs a per-member optical-purchase cycle
// tracker, not present in this spec's data model (§12).
func ruleOpticalCyclePlaceholder(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	return nil
}

// ruleSessionLimitsPlaceholder: needs a session-count accumulator distinct
// from the visit accumulator, not present in this spec's data model (§12).
func ruleSessionLimitsPlaceholder(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	return nil
}

func ruleCoinsurance(ctx ClaimContext, benefit catalog.BenefitConfiguration) *ValidationResult {
	if !benefit.CoinsurancePct.IsPositive() {
		return nil
	}
	memberLiability := ctx.ClaimedAmount.Mul(benefit.CoinsurancePct).Div(money100)
	payerLiability := ctx.ClaimedAmount.Sub(memberLiability)
	return &ValidationResult{RuleCode: "VAL025", RuleName: "Coinsurance", Status: StatusPassed,
		Message: "coinsurance applied",
		Details: map[string]any{
			"member_liability": memberLiability.String(),
			"payer_liability":  payerLiability.String(),
		},
	}
}
