/*
Package claims implements the Claims Validation Engine (§4.6): a rule
registry, concurrent rule evaluation over an immutable ClaimContext
snapshot, and result aggregation helpers.

Grounded on the teacher's generic/resource.go registry pattern (global
RWMutex-protected map, register-then-lookup) for the VAL001-VAL025 rule
registry, and on its resource-evaluation-is-pure-and-read-only design
principle carried over to rule evaluation.
*/
package claims

import (
	"strconv"

	"github.com/salamenterprise/claims-askes/internal/catalog"
	"github.com/salamenterprise/claims-askes/internal/money"
	"github.com/salamenterprise/claims-askes/internal/timeutil"
)

// Status is a rule's verdict (§4.6.3).
type Status string

const (
	StatusPassed  Status = "PASSED"
	StatusFailed  Status = "FAILED"
	StatusWarning Status = "WARNING"
	StatusPending Status = "PENDING"
)

// statusRank orders statuses for §4.6.5 aggregation: FAILED before WARNING
// before PENDING before PASSED.
var statusRank = map[Status]int{
	StatusFailed:  0,
	StatusWarning: 1,
	StatusPending: 2,
	StatusPassed:  3,
}

// PriorClaim is one prior claim in a member's history, used by the
// duplicate-detection and prerequisite rules (§4.6.4 VAL008/VAL009).
type PriorClaim struct {
	ClaimID      string
	BenefitCode  string
	ServiceDate  timeutil.Date
	ClaimedAmount money.Decimal
	Status       Status // PASSED/FAILED/etc. of that prior claim's own validation
}

// ClaimContext is the immutable snapshot a validation run evaluates against
// (§3, §5 "rules are ... read-only over an immutable ClaimContext
// snapshot"). It must not be mutated once a Validate call begins.
type ClaimContext struct {
	ClaimID          string
	MemberID         string
	DOB              timeutil.Date
	Gender           catalog.Gender
	PlanCode         string
	BenefitCode      string
	ServiceDate      timeutil.Date
	AdmissionDate    timeutil.Date // zero if not a hospitalization claim
	DischargeDate    timeutil.Date
	DiagnosisCodes   []string
	ProcedureCodes   []string
	ClaimedAmount    money.Decimal
	Channel          string // e.g. "CASHLESS", "REIMBURSEMENT"
	IsEmergency      bool
	HasPreauth       bool
	PreauthNumber    string
	MemberSinceDate  timeutil.Date
	PriorClaims      []PriorClaim
	AccumulatorUsedAmount money.Decimal
	AccumulatorUsedCount  int

	// Items enriches the context with per-line claim detail (original_source
	// claim.py's ClaimItem). No registered rule and not
	// CalculateAllowedAmount reads it: they evaluate the claim's single
	// ClaimedAmount.
	Items []ClaimItem
}

// ClaimItem is one billed line of a claim (SPEC_FULL.md §3.1, grounded on
// original_source's ClaimItem model).
type ClaimItem struct {
	BenefitCode    string
	DiagnosisCode  string
	ProcedureCode  string
	Quantity       int
	UnitPrice      money.Decimal
	ChargedAmount  money.Decimal
}

// AgeAtService returns the member's age as of the claim's service date —
// the only place claim-time age is derived (mirrors timeutil.AgeAt's role
// for pricing).
func (c ClaimContext) AgeAtService() int {
	return timeutil.AgeAt(c.DOB, c.ServiceDate)
}

// coveragePeriod derives the annual coverage period a service date falls
// in, the same "year as a string" scoping accumulator.Key.Period uses
// (internal/accumulator/accumulator.go). Prerequisite satisfaction (VAL009)
// is scoped to a prior claim sharing this period with the current claim,
// per SPEC_FULL.md §4.6.4: a prior PASSED claim from an unrelated coverage
// period never satisfies a prerequisite.
func coveragePeriod(d timeutil.Date) string {
	return strconv.Itoa(d.Year())
}

// CoveragePeriod returns the current claim's own coverage period.
func (c ClaimContext) CoveragePeriod() string {
	return coveragePeriod(c.ServiceDate)
}

// CoveragePeriod returns the prior claim's coverage period.
func (p PriorClaim) CoveragePeriod() string {
	return coveragePeriod(p.ServiceDate)
}

// ValidationResult is one rule's verdict (§4.6.3).
type ValidationResult struct {
	RuleCode              string
	RuleName              string
	Status                Status
	Message               string
	Details               map[string]any
	CanOverride           bool
	RequiredAuthorityLevel int
}
