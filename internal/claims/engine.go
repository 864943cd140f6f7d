package claims

import (
	"fmt"
	"sort"
	"sync"

	"github.com/salamenterprise/claims-askes/internal/catalog"
	"github.com/salamenterprise/claims-askes/internal/money"
)

// maxWorkers bounds the concurrent rule-evaluation pool (§5, §9 "concurrent
// rule evaluation": re-expressed as a bounded worker pool that gathers into
// a fixed-size result slice indexed by rule position).
const maxWorkers = 8

// Engine implements the Claims Validation Engine's in-process library
// contract (§6 "Validation-engine interface").
type Engine struct {
	Registry *Registry
}

// NewEngine builds a claims Engine over a rule Registry.
func NewEngine(registry *Registry) *Engine {
	return &Engine{Registry: registry}
}

// Validate evaluates every rule applicable to benefit.Category against ctx,
// concurrently, and returns results in the §4.6.5 deterministic order.
// Every registered applicable rule runs exactly once; the result order does
// not depend on completion order; a panicking rule cannot cancel its
// siblings (§5, §4.6.6).
func (e *Engine) Validate(ctx ClaimContext, benefit catalog.BenefitConfiguration) []ValidationResult {
	rules := e.Registry.ApplicableRules(benefit.Category)
	results := make([]ValidationResult, len(rules))

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, rule Rule) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = evaluateRuleSafely(rule, ctx, benefit)
		}(i, rule)
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := results[i], results[j]
		if statusRank[ri.Status] != statusRank[rj.Status] {
			return statusRank[ri.Status] < statusRank[rj.Status]
		}
		return ri.RuleCode < rj.RuleCode
	})
	return results
}

// evaluateRuleSafely runs rule.Fn, converting a nil result to a silent
// PASSED (§4.6.3) and a panic to a synthetic FAILED result carrying the
// panic message (§4.6.6) — a single rule's failure never aborts the overall
// evaluation and never mutates state.
func evaluateRuleSafely(rule Rule, ctx ClaimContext, benefit catalog.BenefitConfiguration) (result ValidationResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = ValidationResult{
				RuleCode: rule.Code,
				RuleName: rule.Name,
				Status:   StatusFailed,
				Message:  fmt.Sprintf("rule panicked: %v", rec),
			}
		}
	}()

	got := rule.Fn(ctx, benefit)
	if got == nil {
		return ValidationResult{RuleCode: rule.Code, RuleName: rule.Name, Status: StatusPassed}
	}
	if got.RuleCode == "" {
		got.RuleCode = rule.Code
	}
	if got.RuleName == "" {
		got.RuleName = rule.Name
	}
	return *got
}

// CanAutoAdjudicate is true iff no result is FAILED or PENDING (§4.6.5,
// invariant 8).
func CanAutoAdjudicate(results []ValidationResult) bool {
	for _, r := range results {
		if r.Status == StatusFailed || r.Status == StatusPending {
			return false
		}
	}
	return true
}

// PendReasons returns messages from FAILED and PENDING results, in order
// (§4.6.5).
func PendReasons(results []ValidationResult) []string {
	var out []string
	for _, r := range results {
		if r.Status == StatusFailed || r.Status == StatusPending {
			out = append(out, r.Message)
		}
	}
	return out
}

// CalculateAllowedAmount computes min(claimed_amount, limit_value or
// claimed_amount) x settlement_pct / 100 (§4.6.5).
func CalculateAllowedAmount(ctx ClaimContext, benefit catalog.BenefitConfiguration) money.Decimal {
	limit := ctx.ClaimedAmount
	if benefit.LimitValue.IsPositive() {
		limit = benefit.LimitValue
	}
	base := ctx.ClaimedAmount.Min(limit)
	return base.Mul(benefit.SettlementPct).Div(money100)
}
