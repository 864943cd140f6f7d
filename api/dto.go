/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal pricing/claims domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in the engines, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/salamenterprise/claims-askes/internal/catalog"
	"github.com/salamenterprise/claims-askes/internal/claims"
	"github.com/salamenterprise/claims-askes/internal/pricing"
	"github.com/salamenterprise/claims-askes/internal/timeutil"
)

// =============================================================================
// PRICING CONFIGURATION TYPES
// =============================================================================

// CreateConfigurationRequest is the request to open a new quote.
type CreateConfigurationRequest struct {
	CompanyName      string `json:"company_name"`
	ParticipantCount int    `json:"participant_count"`
	CoverageStart    string `json:"coverage_start"`
	CoverageEnd      string `json:"coverage_end"`
	PricingMethod    string `json:"pricing_method"`
}

// BenefitSelectionDTO mirrors one pricing.BenefitSelection.
type BenefitSelectionDTO struct {
	Category       string `json:"category"`
	TemplateCode   string `json:"template_code,omitempty"`
	IsSelected     bool   `json:"is_selected"`
	CategoryFactor string `json:"category_factor"`
}

// ToggleBenefitRequest selects or unselects a benefit category.
type ToggleBenefitRequest struct {
	Category     string `json:"category"`
	Selected     bool   `json:"selected"`
	TemplateCode string `json:"template_code,omitempty"`
}

// BenefitOverrideRequest overrides a benefit's configured limit.
type BenefitOverrideRequest struct {
	BenefitCode   string `json:"benefit_code"`
	OverrideLimit string `json:"override_limit"`
	Reason        string `json:"reason"`
}

// BenefitOverrideDTO mirrors one pricing.PolicyBenefitOverride.
type BenefitOverrideDTO struct {
	BenefitCode   string `json:"benefit_code"`
	OriginalLimit string `json:"original_limit"`
	OverrideLimit string `json:"override_limit"`
	Reason        string `json:"reason"`
}

// TCFactorDTO mirrors one pricing.PolicyTCSelection.
type TCFactorDTO struct {
	FactorCode        string `json:"factor_code"`
	OptionValue       string `json:"option_value"`
	AppliedMultiplier string `json:"applied_multiplier"`
}

// UpdateTCRequest selects a T&C factor option.
type UpdateTCRequest struct {
	FactorCode  string `json:"factor_code"`
	OptionValue string `json:"option_value"`
}

// AddMemberRequest enrolls one member.
type AddMemberRequest struct {
	FullName    string `json:"full_name"`
	DateOfBirth string `json:"date_of_birth"`
	Gender      string `json:"gender"`
	MemberType  string `json:"member_type"`
	ClassCode   string `json:"class_code,omitempty"`
}

// MemberDTO mirrors one pricing.PolicyMember.
type MemberDTO struct {
	MemberNumber int    `json:"member_number"`
	FullName     string `json:"full_name"`
	DateOfBirth  string `json:"date_of_birth"`
	Gender       string `json:"gender"`
	MemberType   string `json:"member_type"`
	ClassCode    string `json:"class_code,omitempty"`
	Status       string `json:"status"`
	BasePremium  string `json:"base_premium"`
	AgeBand      string `json:"age_band,omitempty"`
}

// MemberImportErrorDTO names one rejected import row.
type MemberImportErrorDTO struct {
	RowIndex int    `json:"row_index"`
	Message  string `json:"message"`
}

// MemberImportResponse reports the outcome of a bulk member import
// (§4.4.7): the first 10 row errors, not the full list, so a bad file does
// not blow up the response payload.
type MemberImportResponse struct {
	ImportedCount int                    `json:"imported_count"`
	ErrorCount    int                    `json:"error_count"`
	Errors        []MemberImportErrorDTO `json:"errors"`
	PremiumUpdate *ConfigurationDTO      `json:"premium_update,omitempty"`
}

// ApprovalWorkflowDTO mirrors one pricing.ApprovalWorkflow.
type ApprovalWorkflowDTO struct {
	StepName    string `json:"step_name"`
	StepOrder   int    `json:"step_order"`
	Threshold   string `json:"threshold"`
	Status      string `json:"status"`
	ApproverID  string `json:"approver_id,omitempty"`
	Comments    string `json:"comments,omitempty"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

// SubmitRequest carries the submitter identity for an audit trail.
type SubmitRequest struct {
	SubmittedBy string `json:"submitted_by"`
}

// ApproveRequest decides one pending approval step.
type ApproveRequest struct {
	StepName   string `json:"step_name"`
	ApproverID string `json:"approver_id"`
	Comments   string `json:"comments,omitempty"`
}

// ConfigurationDTO is the full PolicyConfig wire representation.
type ConfigurationDTO struct {
	ID               string                `json:"id"`
	QuoteNumber      string                `json:"quote_number"`
	PolicyNumber     string                `json:"policy_number,omitempty"`
	CompanyName      string                `json:"company_name"`
	ParticipantCount int                   `json:"participant_count"`
	CoverageStart    string                `json:"coverage_start"`
	CoverageEnd      string                `json:"coverage_end"`
	PricingMethod    string                `json:"pricing_method"`
	Status           string                `json:"status"`
	BasePremiumTotal string                `json:"base_premium_total"`
	TotalMultiplier  string                `json:"total_multiplier"`
	AdjustedPremium  string                `json:"adjusted_premium"`
	AdminFee         string                `json:"admin_fee"`
	TPAFee           string                `json:"tpa_fee"`
	TotalPremium     string                `json:"total_premium"`
	MonthlyPremium   string                `json:"monthly_premium"`
	PerMemberAverage string                `json:"per_member_average"`
	Benefits         []BenefitSelectionDTO `json:"benefits"`
	TCs              []TCFactorDTO         `json:"tc_factors"`
	Overrides        []BenefitOverrideDTO  `json:"overrides,omitempty"`
	Members          []MemberDTO           `json:"members"`
	Approvals        []ApprovalWorkflowDTO `json:"approvals,omitempty"`
	CreatedAt        string                `json:"created_at"`
}

// CalculationLogDTO mirrors one pricing.PremiumCalculationLog.
type CalculationLogDTO struct {
	Sequence         int    `json:"sequence"`
	BasePremiumTotal string `json:"base_premium_total"`
	TotalMultiplier  string `json:"total_multiplier"`
	AdjustedPremium  string `json:"adjusted_premium"`
	AdminFee         string `json:"admin_fee"`
	TPAFee           string `json:"tpa_fee"`
	TotalPremium     string `json:"total_premium"`
	MonthlyPremium   string `json:"monthly_premium"`
	PerMemberAverage string `json:"per_member_average"`
	CreatedAt        string `json:"created_at"`
}

// CalculationHistoryResponse wraps a CalculationHistory result.
type CalculationHistoryResponse struct {
	Entries []CalculationLogDTO `json:"entries"`
}

// QuoteDocumentDTO is the §6 `GET .../quote` rendering of a configuration.
type QuoteDocumentDTO struct {
	Configuration ConfigurationDTO `json:"configuration"`
	GeneratedAt   string           `json:"generated_at"`
}

// =============================================================================
// CLAIMS VALIDATION TYPES
// =============================================================================

// ClaimItemRequest is one billed line of an incoming claim.
type ClaimItemRequest struct {
	BenefitCode   string `json:"benefit_code"`
	DiagnosisCode string `json:"diagnosis_code,omitempty"`
	ProcedureCode string `json:"procedure_code,omitempty"`
	Quantity      int    `json:"quantity,omitempty"`
	UnitPrice     string `json:"unit_price,omitempty"`
	ChargedAmount string `json:"charged_amount,omitempty"`
}

// PriorClaimRequest is one prior claim supplied for duplicate/prerequisite
// checking (§4.6.4 VAL008/VAL009).
type PriorClaimRequest struct {
	ClaimID       string `json:"claim_id"`
	BenefitCode   string `json:"benefit_code"`
	ServiceDate   string `json:"service_date"`
	ClaimedAmount string `json:"claimed_amount"`
	Status        string `json:"status"`
}

// ClaimValidationRequest is the §6 `POST /api/claims/validate` body: a
// ClaimContext plus the benefit codes to evaluate it against. A claim
// naming multiple benefit codes (one per line item) is validated once per
// code, each against that benefit's own configuration.
type ClaimValidationRequest struct {
	ClaimID         string              `json:"claim_id"`
	MemberID        string              `json:"member_id"`
	DateOfBirth     string              `json:"date_of_birth"`
	Gender          string              `json:"gender"`
	PlanCode        string              `json:"plan_code,omitempty"`
	BenefitCodes    []string            `json:"benefit_codes"`
	ServiceDate     string              `json:"service_date"`
	AdmissionDate   string              `json:"admission_date,omitempty"`
	DischargeDate   string              `json:"discharge_date,omitempty"`
	DiagnosisCodes  []string            `json:"diagnosis_codes,omitempty"`
	ProcedureCodes  []string            `json:"procedure_codes,omitempty"`
	ClaimedAmount   string              `json:"claimed_amount"`
	Channel         string              `json:"channel,omitempty"`
	IsEmergency     bool                `json:"is_emergency,omitempty"`
	HasPreauth      bool                `json:"has_preauth,omitempty"`
	PreauthNumber   string              `json:"preauth_number,omitempty"`
	MemberSinceDate string              `json:"member_since_date,omitempty"`
	PriorClaims     []PriorClaimRequest `json:"prior_claims,omitempty"`
	Items           []ClaimItemRequest  `json:"items,omitempty"`
}

// ValidationResultDTO mirrors one claims.ValidationResult.
type ValidationResultDTO struct {
	RuleCode               string         `json:"rule_code"`
	RuleName               string         `json:"rule_name"`
	Status                 string         `json:"status"`
	Message                string         `json:"message,omitempty"`
	Details                map[string]any `json:"details,omitempty"`
	CanOverride            bool           `json:"can_override,omitempty"`
	RequiredAuthorityLevel int            `json:"required_authority_level,omitempty"`
}

// BenefitValidationDTO is one benefit code's rule-evaluation outcome within
// a claim validation run.
type BenefitValidationDTO struct {
	BenefitCode        string                `json:"benefit_code"`
	Results            []ValidationResultDTO `json:"results"`
	CanAutoAdjudicate  bool                  `json:"can_auto_adjudicate"`
	PendReasons        []string              `json:"pend_reasons,omitempty"`
	AllowedAmount      string                `json:"allowed_amount"`
}

// ClaimValidationResponse is the §6 claim validation response: a
// per-benefit breakdown plus the claim-level rollup (a claim can
// auto-adjudicate only if every one of its benefit codes can).
type ClaimValidationResponse struct {
	ValidationRunID   string                 `json:"validation_run_id"`
	ClaimID           string                 `json:"claim_id"`
	Benefits          []BenefitValidationDTO `json:"benefits"`
	CanAutoAdjudicate bool                   `json:"can_auto_adjudicate"`
	PendReasons       []string               `json:"pend_reasons,omitempty"`
	AllowedAmount     string                 `json:"allowed_amount"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toBenefitSelectionDTOs(sels []pricing.BenefitSelection) []BenefitSelectionDTO {
	out := make([]BenefitSelectionDTO, len(sels))
	for i, s := range sels {
		out[i] = BenefitSelectionDTO{
			Category:       string(s.Category),
			TemplateCode:   s.TemplateCode,
			IsSelected:     s.IsSelected,
			CategoryFactor: s.CategoryFactor.String(),
		}
	}
	return out
}

func toTCFactorDTOs(tcs []pricing.PolicyTCSelection) []TCFactorDTO {
	out := make([]TCFactorDTO, len(tcs))
	for i, tc := range tcs {
		out[i] = TCFactorDTO{
			FactorCode:        tc.FactorCode,
			OptionValue:       tc.OptionValue,
			AppliedMultiplier: tc.AppliedMultiplier.String(),
		}
	}
	return out
}

func toOverrideDTOs(overrides []pricing.PolicyBenefitOverride) []BenefitOverrideDTO {
	out := make([]BenefitOverrideDTO, len(overrides))
	for i, o := range overrides {
		out[i] = BenefitOverrideDTO{
			BenefitCode:   o.BenefitCode,
			OriginalLimit: o.OriginalLimit.String(),
			OverrideLimit: o.OverrideLimit.String(),
			Reason:        o.Reason,
		}
	}
	return out
}

func toMemberDTOs(members []pricing.PolicyMember) []MemberDTO {
	out := make([]MemberDTO, len(members))
	for i, m := range members {
		out[i] = MemberDTO{
			MemberNumber: m.MemberNumber,
			FullName:     m.FullName,
			DateOfBirth:  m.DOB.String(),
			Gender:       string(m.Gender),
			MemberType:   string(m.MemberType),
			ClassCode:    m.ClassCode,
			Status:       string(m.Status),
			BasePremium:  m.BasePremium.String(),
			AgeBand:      m.AgeBand,
		}
	}
	return out
}

func toApprovalDTOs(approvals []pricing.ApprovalWorkflow) []ApprovalWorkflowDTO {
	out := make([]ApprovalWorkflowDTO, len(approvals))
	for i, a := range approvals {
		dto := ApprovalWorkflowDTO{
			StepName:   a.StepName,
			StepOrder:  a.StepOrder,
			Threshold:  a.Threshold.String(),
			Status:     string(a.Status),
			ApproverID: a.ApproverID,
			Comments:   a.Comments,
		}
		if !a.ProcessedAt.IsZero() {
			dto.ProcessedAt = a.ProcessedAt.String()
		}
		out[i] = dto
	}
	return out
}

func toConfigurationDTO(cfg *pricing.PolicyConfig) ConfigurationDTO {
	return ConfigurationDTO{
		ID:               cfg.ID,
		QuoteNumber:      cfg.QuoteNumber,
		PolicyNumber:     cfg.PolicyNumber,
		CompanyName:      cfg.CompanyName,
		ParticipantCount: cfg.ParticipantCount,
		CoverageStart:    cfg.CoverageStart.String(),
		CoverageEnd:      cfg.CoverageEnd.String(),
		PricingMethod:    cfg.PricingMethod,
		Status:           string(cfg.Status),
		BasePremiumTotal: cfg.BasePremiumTotal.String(),
		TotalMultiplier:  cfg.TotalMultiplier.String(),
		AdjustedPremium:  cfg.AdjustedPremium.String(),
		AdminFee:         cfg.AdminFee.String(),
		TPAFee:           cfg.TPAFee.String(),
		TotalPremium:     cfg.TotalPremium.String(),
		MonthlyPremium:   cfg.MonthlyPremium.String(),
		PerMemberAverage: cfg.PerMemberAverage.String(),
		Benefits:         toBenefitSelectionDTOs(cfg.Benefits),
		TCs:              toTCFactorDTOs(cfg.TCs),
		Overrides:        toOverrideDTOs(cfg.Overrides),
		Members:          toMemberDTOs(cfg.Members),
		Approvals:        toApprovalDTOs(cfg.Approvals),
		CreatedAt:        cfg.CreatedAt.String(),
	}
}

func toCalculationLogDTOs(entries []pricing.PremiumCalculationLog) []CalculationLogDTO {
	out := make([]CalculationLogDTO, len(entries))
	for i, e := range entries {
		out[i] = CalculationLogDTO{
			Sequence:         e.Sequence,
			BasePremiumTotal: e.BasePremiumTotal.String(),
			TotalMultiplier:  e.TotalMultiplier.String(),
			AdjustedPremium:  e.AdjustedPremium.String(),
			AdminFee:         e.AdminFee.String(),
			TPAFee:           e.TPAFee.String(),
			TotalPremium:     e.TotalPremium.String(),
			MonthlyPremium:   e.MonthlyPremium.String(),
			PerMemberAverage: e.PerMemberAverage.String(),
			CreatedAt:        e.CreatedAt.String(),
		}
	}
	return out
}

func toValidationResultDTOs(results []claims.ValidationResult) []ValidationResultDTO {
	out := make([]ValidationResultDTO, len(results))
	for i, r := range results {
		out[i] = ValidationResultDTO{
			RuleCode:               r.RuleCode,
			RuleName:               r.RuleName,
			Status:                 string(r.Status),
			Message:                r.Message,
			Details:                r.Details,
			CanOverride:            r.CanOverride,
			RequiredAuthorityLevel: r.RequiredAuthorityLevel,
		}
	}
	return out
}

// parseDate parses an ISO "2006-01-02" string, returning the zero Date for
// an empty input.
func parseDate(s string) (timeutil.Date, error) {
	if s == "" {
		return timeutil.Date{}, nil
	}
	var d timeutil.Date
	if err := d.UnmarshalJSON([]byte(`"` + s + `"`)); err != nil {
		return timeutil.Date{}, err
	}
	return d, nil
}

func genderFromString(s string) catalog.Gender {
	return catalog.Gender(s)
}

func memberTypeFromString(s string) pricing.MemberType {
	return pricing.MemberType(s)
}
