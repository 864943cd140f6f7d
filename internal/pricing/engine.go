package pricing

import (
	"context"
	"fmt"

	"github.com/salamenterprise/claims-askes/internal/apperr"
	"github.com/salamenterprise/claims-askes/internal/catalog"
	"github.com/salamenterprise/claims-askes/internal/money"
	"github.com/salamenterprise/claims-askes/internal/timeutil"
)

var (
	smallGroupUnder15 = money.Parse("1.500")
	smallGroupUnder25 = money.Parse("1.250")
	smallGroupUnder50 = money.Parse("1.100")
	maternityLoading  = money.Parse("1.150")
	adminFeePct       = money.Parse("0.05")
	minAdminFee       = money.New(100_000)
	minTPAFeePer      = money.New(10_000)
	minTPAFeeFloor    = money.New(100_000)
)

// Engine implements the Premium Pricing Engine (§4.4).
type Engine struct {
	Store   ConfigurationStore
	Catalog catalog.Catalog
}

// NewEngine builds a pricing Engine over a store and catalog.
func NewEngine(store ConfigurationStore, cat catalog.Catalog) *Engine {
	return &Engine{Store: store, Catalog: cat}
}

// CreateConfig creates a new DRAFT PolicyConfig and initializes default
// benefit selections and T&C selections (§4.4.1).
func (e *Engine) CreateConfig(ctx context.Context, companyName string, participantCount int, coverageStart, coverageEnd timeutil.Date, pricingMethod string) (*PolicyConfig, error) {
	if participantCount <= 0 {
		return nil, apperr.NewValidation("participant_count", "must be greater than zero")
	}
	if !coverageEnd.After(coverageStart) {
		return nil, apperr.NewValidation("coverage_end", "must be after coverage_start")
	}

	quoteNumber, err := e.Store.NextQuoteNumber(ctx, timeutil.Today())
	if err != nil {
		return nil, err
	}

	cfg := &PolicyConfig{
		ID:               quoteNumber,
		QuoteNumber:      quoteNumber,
		CompanyName:      companyName,
		ParticipantCount: participantCount,
		CoverageStart:    coverageStart,
		CoverageEnd:      coverageEnd,
		PricingMethod:    pricingMethod,
		Status:           StatusDraft,
		BasePremiumTotal: money.Zero,
		TotalMultiplier:  money.One,
		AdjustedPremium:  money.Zero,
		AdminFee:         money.Zero,
		TPAFee:           money.Zero,
		TotalPremium:     money.Zero,
		MonthlyPremium:   money.Zero,
		PerMemberAverage: money.Zero,
		CreatedAt:        timeutil.Today(),
	}

	e.initDefaultBenefits(cfg)
	e.initDefaultTCs(cfg)

	if err := e.Store.Create(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// initDefaultBenefits creates a BenefitSelection for every BenefitCategory,
// selecting INPATIENT and OUTPATIENT by default (§4.4.1).
func (e *Engine) initDefaultBenefits(cfg *PolicyConfig) {
	for _, category := range catalog.AllCategories {
		cfg.Benefits = append(cfg.Benefits, BenefitSelection{
			Category:       category,
			IsSelected:     catalog.DefaultSelectedCategories[category],
			CategoryFactor: money.One,
		})
	}
}

// initDefaultTCs creates a PolicyTCSelection for every active TCFactor,
// pointing at its default option (or first option if none is flagged
// default) and copying its multiplier (§4.4.1).
func (e *Engine) initDefaultTCs(cfg *PolicyConfig) {
	for _, factor := range e.Catalog.ActiveTCFactors() {
		if len(factor.Options) == 0 {
			continue
		}
		chosen := factor.Options[0]
		for _, opt := range factor.Options {
			if opt.IsDefault {
				chosen = opt
				break
			}
		}
		cfg.TCs = append(cfg.TCs, PolicyTCSelection{
			FactorCode:        factor.FactorCode,
			OptionValue:       chosen.OptionValue,
			AppliedMultiplier: chosen.Multiplier,
		})
	}
}

// ToggleBenefit selects or unselects a BenefitCategory and recomputes its
// category factor (§4.4.2), then recomputes the total premium.
func (e *Engine) ToggleBenefit(ctx context.Context, configID string, category catalog.BenefitCategory, selected bool, templateCode string) (*PolicyConfig, error) {
	var result *PolicyConfig
	err := e.Store.WithLock(ctx, configID, func(cfg *PolicyConfig) error {
		found := false
		for i := range cfg.Benefits {
			if cfg.Benefits[i].Category != category {
				continue
			}
			found = true
			cfg.Benefits[i].IsSelected = selected
			if templateCode != "" {
				cfg.Benefits[i].TemplateCode = templateCode
			}
			if selected {
				cfg.Benefits[i].CategoryFactor = e.categoryFactor(cfg, category)
			} else {
				cfg.Benefits[i].CategoryFactor = money.One
			}
		}
		if !found {
			return apperr.NewNotFound("BenefitSelection", string(category))
		}
		e.recompute(ctx, cfg, true)
		result = cfg
		return nil
	})
	return result, err
}

// categoryFactor computes the §4.4.2 category factor: small-group loading
// times, for MATERNITY only, the demographic loading when the ACTIVE female
// 18-45 fraction exceeds 0.40 of participants.
func (e *Engine) categoryFactor(cfg *PolicyConfig, category catalog.BenefitCategory) money.Decimal {
	factor := smallGroupLoading(cfg.ParticipantCount)
	if category != catalog.CategoryMaternity {
		return factor
	}

	minDOB, maxDOB := timeutil.DOBRangeForAgeBand(18, 45, timeutil.Today())
	activeCount := 0
	femaleInBand := 0
	for _, m := range cfg.ActiveMembers() {
		activeCount++
		if m.Gender != catalog.GenderFemale {
			continue
		}
		if m.DOB.AfterOrEqual(minDOB) && m.DOB.BeforeOrEqual(maxDOB) {
			femaleInBand++
		}
	}
	if activeCount == 0 {
		return factor
	}
	fraction := money.New(int64(femaleInBand)).Div(money.New(int64(activeCount)))
	if fraction.GreaterThan(money.Parse("0.40")) {
		factor = factor.Mul(maternityLoading)
	}
	return factor
}

func smallGroupLoading(participantCount int) money.Decimal {
	switch {
	case participantCount < 15:
		return smallGroupUnder15
	case participantCount < 25:
		return smallGroupUnder25
	case participantCount < 50:
		return smallGroupUnder50
	default:
		return money.One
	}
}

// UpdateTC applies a new option for a T&C factor, enforcing the option's
// participant bounds (§4.4.5), then recomputes premium.
func (e *Engine) UpdateTC(ctx context.Context, configID, factorCode, optionValue string) (*PolicyConfig, error) {
	var result *PolicyConfig
	err := e.Store.WithLock(ctx, configID, func(cfg *PolicyConfig) error {
		var targetFactor *catalog.TCFactorConfig
		for _, f := range e.Catalog.ActiveTCFactors() {
			if f.FactorCode == factorCode {
				ff := f
				targetFactor = &ff
				break
			}
		}
		if targetFactor == nil {
			return apperr.NewNotFound("TCFactor", factorCode)
		}

		var chosen *catalog.TCFactorOption
		for _, opt := range targetFactor.Options {
			if opt.OptionValue == optionValue {
				oo := opt
				chosen = &oo
				break
			}
		}
		if chosen == nil {
			return apperr.NewNotFound("TCFactorOption", optionValue)
		}
		if !chosen.InBounds(cfg.ParticipantCount) {
			if chosen.MinParticipants != nil && cfg.ParticipantCount < *chosen.MinParticipants {
				return apperr.NewValidation("participant_count", "option %s requires min_participants %d, config has %d", optionValue, *chosen.MinParticipants, cfg.ParticipantCount)
			}
			return apperr.NewValidation("participant_count", "option %s allows max_participants %d, config has %d", optionValue, *chosen.MaxParticipants, cfg.ParticipantCount)
		}

		found := false
		for i := range cfg.TCs {
			if cfg.TCs[i].FactorCode == factorCode {
				cfg.TCs[i].OptionValue = chosen.OptionValue
				cfg.TCs[i].AppliedMultiplier = chosen.Multiplier
				found = true
			}
		}
		if !found {
			cfg.TCs = append(cfg.TCs, PolicyTCSelection{
				FactorCode:        factorCode,
				OptionValue:       chosen.OptionValue,
				AppliedMultiplier: chosen.Multiplier,
			})
		}

		e.recompute(ctx, cfg, true)
		result = cfg
		return nil
	})
	return result, err
}

// OverrideBenefitLimit records a per-config benefit limit override (§3
// PolicyBenefitOverride). override_limit must be positive.
func (e *Engine) OverrideBenefitLimit(ctx context.Context, configID, benefitCode string, overrideLimit money.Decimal, reason string) (*PolicyConfig, error) {
	if !overrideLimit.IsPositive() {
		return nil, apperr.NewValidation("override_limit", "must be greater than zero")
	}
	var result *PolicyConfig
	err := e.Store.WithLock(ctx, configID, func(cfg *PolicyConfig) error {
		original, _ := e.Catalog.OriginalBenefitLimit(benefitCode)
		for i := range cfg.Overrides {
			if cfg.Overrides[i].BenefitCode == benefitCode {
				cfg.Overrides[i].OverrideLimit = overrideLimit
				cfg.Overrides[i].Reason = reason
				result = cfg
				return nil
			}
		}
		cfg.Overrides = append(cfg.Overrides, PolicyBenefitOverride{
			BenefitCode:   benefitCode,
			OriginalLimit: original,
			OverrideLimit: overrideLimit,
			Reason:        reason,
		})
		result = cfg
		return nil
	})
	return result, err
}

// AddMember appends an ACTIVE member, assigning the next dense
// member_number, computes its premium contribution, and recomputes the
// config premium (§4.4.3, §4.4.7).
func (e *Engine) AddMember(ctx context.Context, configID string, fullName string, dob timeutil.Date, gender catalog.Gender, memberType MemberType, classCode string) (*PolicyConfig, error) {
	var result *PolicyConfig
	err := e.Store.WithLock(ctx, configID, func(cfg *PolicyConfig) error {
		if !dob.Before(timeutil.Today()) {
			return apperr.NewValidation("date_of_birth", "must be before today")
		}
		member := PolicyMember{
			MemberNumber: len(cfg.Members) + 1,
			FullName:     fullName,
			DOB:          dob,
			Gender:       gender,
			MemberType:   memberType,
			ClassCode:    classCode,
			Status:       MemberActive,
			BasePremium:  money.Zero,
		}
		cfg.Members = append(cfg.Members, member)
		e.syncParticipantCount(cfg)
		e.recompute(ctx, cfg, true)
		result = cfg
		return nil
	})
	return result, err
}

// TerminateMember marks a member TERMINATED and recomputes premium.
func (e *Engine) TerminateMember(ctx context.Context, configID string, memberNumber int) (*PolicyConfig, error) {
	var result *PolicyConfig
	err := e.Store.WithLock(ctx, configID, func(cfg *PolicyConfig) error {
		found := false
		for i := range cfg.Members {
			if cfg.Members[i].MemberNumber == memberNumber {
				cfg.Members[i].Status = MemberTerminated
				found = true
			}
		}
		if !found {
			return apperr.NewNotFound("PolicyMember", fmt.Sprintf("%d", memberNumber))
		}
		e.syncParticipantCount(cfg)
		e.recompute(ctx, cfg, true)
		result = cfg
		return nil
	})
	return result, err
}

// syncParticipantCount keeps participant_count equal to the ACTIVE member
// count after any membership mutation (invariant 4, §8).
func (e *Engine) syncParticipantCount(cfg *PolicyConfig) {
	cfg.ParticipantCount = len(cfg.ActiveMembers())
}

// ImportMembers bulk-imports members one row at a time (to keep
// member_number dense and conflict-free, §5), recording per-row errors
// without aborting the batch, then recomputes premium once at the end if
// any member was added (§4.4.7).
func (e *Engine) ImportMembers(ctx context.Context, configID string, rows []MemberImportRow) ([]PolicyMember, []MemberImportError, error) {
	var created []PolicyMember
	var errs []MemberImportError

	err := e.Store.WithLock(ctx, configID, func(cfg *PolicyConfig) error {
		anyAdded := false
		for _, row := range rows {
			if row.FullName == "" || row.DateOfBirth.IsZero() || row.Gender == "" || row.MemberType == "" {
				errs = append(errs, MemberImportError{RowIndex: row.RowIndex, Message: "missing required field"})
				continue
			}
			if !row.DateOfBirth.Before(timeutil.Today()) {
				errs = append(errs, MemberImportError{RowIndex: row.RowIndex, Message: "date_of_birth must be before today"})
				continue
			}
			member := PolicyMember{
				MemberNumber: len(cfg.Members) + 1,
				FullName:     row.FullName,
				DOB:          row.DateOfBirth,
				Gender:       row.Gender,
				MemberType:   row.MemberType,
				ClassCode:    row.ClassCode,
				Status:       MemberActive,
				BasePremium:  money.Zero,
			}
			cfg.Members = append(cfg.Members, member)
			created = append(created, member)
			anyAdded = true
		}
		if anyAdded {
			e.syncParticipantCount(cfg)
			e.recompute(ctx, cfg, true)
		}
		return nil
	})
	return created, errs, err
}

// Calculate recomputes the premium breakdown and, when save is true,
// persists a PremiumCalculationLog entry (§4.4.4).
func (e *Engine) Calculate(ctx context.Context, configID string, save bool) (*PolicyConfig, error) {
	var result *PolicyConfig
	err := e.Store.WithLock(ctx, configID, func(cfg *PolicyConfig) error {
		e.recompute(ctx, cfg, save)
		result = cfg
		return nil
	})
	return result, err
}

// recompute implements §4.4.3 (member premium) and §4.4.4 (total premium).
// When persistLog is true, appends a PremiumCalculationLog entry atomically
// with the cached-totals update (both happen under the caller's config
// lock, so there is no observable window between them).
func (e *Engine) recompute(ctx context.Context, cfg *PolicyConfig, persistLog bool) {
	asOf := timeutil.Today()

	var basePremiumTotal money.Decimal
	for i := range cfg.Members {
		m := &cfg.Members[i]
		if m.Status != MemberActive {
			continue
		}
		contribution := money.Zero
		age := timeutil.AgeAt(m.DOB, asOf)
		gender := catalog.GenderForAge(m.Gender, age)
		for _, sel := range cfg.Benefits {
			if !sel.IsSelected || sel.TemplateCode == "" {
				continue
			}
			tmpl, ok := e.Catalog.TemplateEffectiveOn(sel.TemplateCode, asOf)
			if !ok {
				continue
			}
			baseRate := tmpl.BaseRate(gender)
			multiplier := e.Catalog.AgeBandMultiplier(sel.TemplateCode, age, gender)
			contribution = contribution.Add(baseRate.Mul(multiplier))
		}
		m.BasePremium = contribution
		basePremiumTotal = basePremiumTotal.Add(contribution)
	}

	totalMultiplier := money.One
	for _, sel := range cfg.Benefits {
		if sel.IsSelected {
			totalMultiplier = totalMultiplier.Mul(sel.CategoryFactor)
		}
	}
	for _, tc := range cfg.TCs {
		totalMultiplier = totalMultiplier.Mul(tc.AppliedMultiplier)
	}

	adjustedPremium := basePremiumTotal.Mul(totalMultiplier)
	adminFee := adjustedPremium.Mul(adminFeePct).Max(minAdminFee)
	tpaFee := minTPAFeePer.Mul(money.New(int64(cfg.ParticipantCount))).Max(minTPAFeeFloor)
	totalPremium := adjustedPremium.Add(adminFee).Add(tpaFee).RoundPresentation(2)
	monthlyPremium := totalPremium.Div(money.New(12))
	perMemberAverage := totalPremium.Div(money.New(int64(cfg.ParticipantCount)))

	cfg.BasePremiumTotal = basePremiumTotal
	cfg.TotalMultiplier = totalMultiplier
	cfg.AdjustedPremium = adjustedPremium
	cfg.AdminFee = adminFee
	cfg.TPAFee = tpaFee
	cfg.TotalPremium = totalPremium
	cfg.MonthlyPremium = monthlyPremium
	cfg.PerMemberAverage = perMemberAverage

	if persistLog {
		_ = e.Store.AppendCalculationLog(ctx, cfg.ID, PremiumCalculationLog{
			BasePremiumTotal: cfg.BasePremiumTotal,
			TotalMultiplier:  cfg.TotalMultiplier,
			AdjustedPremium:  cfg.AdjustedPremium,
			AdminFee:         cfg.AdminFee,
			TPAFee:           cfg.TPAFee,
			TotalPremium:     cfg.TotalPremium,
			MonthlyPremium:   cfg.MonthlyPremium,
			PerMemberAverage: cfg.PerMemberAverage,
			CreatedAt:        asOf,
		})
	}
}

// Submit validates the §4.4.6 submission preconditions, recomputes premium,
// transitions DRAFT -> QUOTED, and creates one ApprovalWorkflow row per
// threshold met or exceeded.
func (e *Engine) Submit(ctx context.Context, configID string) (*PolicyConfig, error) {
	var result *PolicyConfig
	err := e.Store.WithLock(ctx, configID, func(cfg *PolicyConfig) error {
		if cfg.Status != StatusDraft {
			return apperr.NewStateConflict("PolicyConfig", string(cfg.Status), "submission requires status DRAFT")
		}
		if cfg.ParticipantCount < 5 {
			return apperr.NewValidation("participant_count", "minimum 5 participants required")
		}
		hasSelectedBenefit := false
		for _, b := range cfg.Benefits {
			if b.IsSelected {
				hasSelectedBenefit = true
				break
			}
		}
		if !hasSelectedBenefit {
			return apperr.NewValidation("benefits", "at least one selected benefit required")
		}
		if len(cfg.ActiveMembers()) == 0 {
			return apperr.NewValidation("members", "at least one active member required")
		}

		e.recompute(ctx, cfg, true)

		for _, t := range ApprovalThresholds {
			if cfg.AdjustedPremium.GreaterThanOrEqual(t.Threshold) {
				cfg.Approvals = append(cfg.Approvals, ApprovalWorkflow{
					StepName:  t.StepName,
					StepOrder: t.StepOrder,
					Threshold: t.Threshold,
					Status:    StepPending,
				})
			}
		}
		cfg.Status = StatusQuoted
		result = cfg
		return nil
	})
	return result, err
}

// Approve transitions a PENDING approval step, recording approver/comments.
// When no PENDING steps remain, the config transitions to APPROVED and a
// policy_number is minted exactly once (§4.4.6, invariant 6).
func (e *Engine) Approve(ctx context.Context, configID, stepName, approverID, comments string) (*PolicyConfig, error) {
	var result *PolicyConfig
	err := e.Store.WithLock(ctx, configID, func(cfg *PolicyConfig) error {
		found := false
		for i := range cfg.Approvals {
			if cfg.Approvals[i].StepName != stepName {
				continue
			}
			if cfg.Approvals[i].Status != StepPending {
				return apperr.NewStateConflict("ApprovalWorkflow", string(cfg.Approvals[i].Status), "step %s is not PENDING", stepName)
			}
			cfg.Approvals[i].Status = StepApproved
			cfg.Approvals[i].ApproverID = approverID
			cfg.Approvals[i].Comments = comments
			cfg.Approvals[i].ProcessedAt = timeutil.Today()
			found = true
		}
		if !found {
			return apperr.NewNotFound("ApprovalWorkflow", stepName)
		}

		anyPending := false
		for _, a := range cfg.Approvals {
			if a.Status == StepPending {
				anyPending = true
				break
			}
		}
		if !anyPending && cfg.PolicyNumber == "" {
			policyNumber, err := e.Store.NextPolicyNumber(ctx, timeutil.Today())
			if err != nil {
				return err
			}
			cfg.PolicyNumber = policyNumber
			cfg.Status = StatusApproved
		}
		result = cfg
		return nil
	})
	return result, err
}

// RejectApproval marks a step REJECTED, blocking config advancement.
func (e *Engine) RejectApproval(ctx context.Context, configID, stepName, approverID, comments string) (*PolicyConfig, error) {
	return e.setApprovalStatus(ctx, configID, stepName, StepRejected, approverID, comments)
}

// RequestRevision marks a step REVISION, blocking config advancement.
func (e *Engine) RequestRevision(ctx context.Context, configID, stepName, approverID, comments string) (*PolicyConfig, error) {
	return e.setApprovalStatus(ctx, configID, stepName, StepRevision, approverID, comments)
}

func (e *Engine) setApprovalStatus(ctx context.Context, configID, stepName string, status ApprovalStepStatus, approverID, comments string) (*PolicyConfig, error) {
	var result *PolicyConfig
	err := e.Store.WithLock(ctx, configID, func(cfg *PolicyConfig) error {
		found := false
		for i := range cfg.Approvals {
			if cfg.Approvals[i].StepName != stepName {
				continue
			}
			if cfg.Approvals[i].Status != StepPending {
				return apperr.NewStateConflict("ApprovalWorkflow", string(cfg.Approvals[i].Status), "step %s is not PENDING", stepName)
			}
			cfg.Approvals[i].Status = status
			cfg.Approvals[i].ApproverID = approverID
			cfg.Approvals[i].Comments = comments
			cfg.Approvals[i].ProcessedAt = timeutil.Today()
			found = true
		}
		if !found {
			return apperr.NewNotFound("ApprovalWorkflow", stepName)
		}
		result = cfg
		return nil
	})
	return result, err
}
