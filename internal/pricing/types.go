/*
Package pricing implements the Premium Pricing Engine (§4.4): policy
configuration CRUD, category-factor and member-premium computation, T&C
updates, the submission/approval workflow, and member import.

Grounded on the teacher's generic/policy.go + generic/request.go lifecycle
pattern, re-expressed for a single mutable aggregate (PolicyConfig) instead
of a ledger of independent transactions — §5 requires every mutation on one
config to be serialized, which here is a per-config mutex rather than an
append-only transaction log.
*/
package pricing

import (
	"github.com/salamenterprise/claims-askes/internal/catalog"
	"github.com/salamenterprise/claims-askes/internal/money"
	"github.com/salamenterprise/claims-askes/internal/timeutil"
)

type ConfigStatus string

const (
	StatusDraft     ConfigStatus = "DRAFT"
	StatusQuoted    ConfigStatus = "QUOTED"
	StatusApproved  ConfigStatus = "APPROVED"
	StatusActive    ConfigStatus = "ACTIVE"
	StatusExpired   ConfigStatus = "EXPIRED"
	StatusCancelled ConfigStatus = "CANCELLED"
)

type MemberStatus string

const (
	MemberActive     MemberStatus = "ACTIVE"
	MemberTerminated MemberStatus = "TERMINATED"
)

type MemberType string

const (
	MemberEmployee MemberType = "EMPLOYEE"
	MemberSpouse   MemberType = "SPOUSE"
	MemberChild    MemberType = "CHILD"
)

type ApprovalStepStatus string

const (
	StepPending  ApprovalStepStatus = "PENDING"
	StepApproved ApprovalStepStatus = "APPROVED"
	StepRejected ApprovalStepStatus = "REJECTED"
	StepRevision ApprovalStepStatus = "REVISION"
)

// ApprovalThreshold is one row of the §4.4.6 threshold table.
type ApprovalThreshold struct {
	StepName  string
	StepOrder int
	Threshold money.Decimal
}

// ApprovalThresholds is evaluated in StepOrder; a config's workflow gets one
// ApprovalWorkflow row per threshold that adjusted_premium meets or exceeds.
var ApprovalThresholds = []ApprovalThreshold{
	{StepName: "UNDERWRITING", StepOrder: 1, Threshold: money.New(1_000_000)},
	{StepName: "ACTUARIAL", StepOrder: 2, Threshold: money.New(5_000_000)},
	{StepName: "MANAGEMENT", StepOrder: 3, Threshold: money.New(10_000_000)},
}

// PolicyConfig is the mutable per-quote aggregate (§3). It exclusively owns
// its BenefitSelection, PolicyTCSelection, PolicyBenefitOverride,
// PolicyMember, ApprovalWorkflow and PremiumCalculationLog rows.
type PolicyConfig struct {
	ID               string
	QuoteNumber      string
	PolicyNumber     string // empty until minted on final approval
	CompanyName      string
	ParticipantCount int
	CoverageStart    timeutil.Date
	CoverageEnd      timeutil.Date
	PricingMethod    string
	Status           ConfigStatus

	// Cached totals, refreshed by every recompute; a recompute that appends a
	// PremiumCalculationLog entry does both under the same config lock.
	BasePremiumTotal money.Decimal
	TotalMultiplier  money.Decimal
	AdjustedPremium  money.Decimal
	AdminFee         money.Decimal
	TPAFee           money.Decimal
	TotalPremium     money.Decimal
	MonthlyPremium   money.Decimal
	PerMemberAverage money.Decimal

	Benefits   []BenefitSelection
	TCs        []PolicyTCSelection
	Overrides  []PolicyBenefitOverride
	Members    []PolicyMember
	Approvals  []ApprovalWorkflow

	CreatedAt timeutil.Date
}

// ActiveMembers returns the config's ACTIVE members.
func (c *PolicyConfig) ActiveMembers() []PolicyMember {
	var out []PolicyMember
	for _, m := range c.Members {
		if m.Status == MemberActive {
			out = append(out, m)
		}
	}
	return out
}

// BenefitSelection is (config, category) unique (§3).
type BenefitSelection struct {
	Category       catalog.BenefitCategory
	TemplateCode   string
	IsSelected     bool
	CategoryFactor money.Decimal // 1.000 when not selected
}

// PolicyTCSelection is (config, factor) unique (§3).
type PolicyTCSelection struct {
	FactorCode        string
	OptionValue        string
	AppliedMultiplier money.Decimal
}

// PolicyBenefitOverride is (config, benefit_code) unique (§3).
type PolicyBenefitOverride struct {
	BenefitCode   string
	OriginalLimit money.Decimal
	OverrideLimit money.Decimal
	Reason        string
}

// PolicyMember is (config, member_number) unique (§3). member_number is
// 1-based dense per config.
type PolicyMember struct {
	MemberNumber int
	FullName     string
	DOB          timeutil.Date
	Gender       catalog.Gender
	MemberType   MemberType
	ClassCode    string
	Status       MemberStatus
	BasePremium  money.Decimal
	AgeBand      string // cached "<ageFrom>-<ageTo>" descriptor, informational only
}

// PremiumCalculationLog is an append-only snapshot of a calculation (§3);
// immutable after insert.
type PremiumCalculationLog struct {
	Sequence         int
	BasePremiumTotal money.Decimal
	TotalMultiplier  money.Decimal
	AdjustedPremium  money.Decimal
	AdminFee         money.Decimal
	TPAFee           money.Decimal
	TotalPremium     money.Decimal
	MonthlyPremium   money.Decimal
	PerMemberAverage money.Decimal
	CreatedAt        timeutil.Date
}

// ApprovalWorkflow is (config, step_order) unique (§3).
type ApprovalWorkflow struct {
	StepName    string
	StepOrder   int
	Threshold   money.Decimal
	Status      ApprovalStepStatus
	ApproverID  string
	Comments    string
	ProcessedAt timeutil.Date
}

// MemberImportRow is one row of a bulk member import (§4.4.7).
type MemberImportRow struct {
	RowIndex     int
	FullName     string
	DateOfBirth  timeutil.Date
	Gender       catalog.Gender
	MemberType   MemberType
	Relationship string
	ClassCode    string
}

// MemberImportError names a failed row without aborting the rest (§4.4.7).
type MemberImportError struct {
	RowIndex int
	Message  string
}
