/*
Package accumulator tracks per-(member, benefit, period) running totals of
used amount and used count, consulted by the claims validation engine's
annual-limit and visit-limit rules (§4.5, §4.6.4 VAL003/VAL016).

Grounded on the teacher's generic/ledger.go append-only, idempotent-write
pattern: increments here are keyed by claim_id the same way the teacher
ledger keys transactions by idempotency_key, so a retried increment from a
downstream adjudication retry can never double-count (§9 "accumulator write
path").
*/
package accumulator

import (
	"context"
	"fmt"
	"sync"

	"github.com/salamenterprise/claims-askes/internal/money"
)

// Key identifies one accumulator bucket.
type Key struct {
	MemberID    string
	BenefitCode string
	Period      string // e.g. "2025" for an annual period
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.MemberID, k.BenefitCode, k.Period)
}

// Totals is the running state of one accumulator bucket (§3 Accumulator).
type Totals struct {
	UsedAmount money.Decimal
	UsedCount  int
}

// Store is the per-member accumulator interface the claims validation
// engine queries and the (future) adjudication/settlement path increments.
// Pricing never increments accumulators (§5 "shared resources").
type Store interface {
	// Get returns the current totals for a bucket, zero-valued if unseen.
	Get(ctx context.Context, key Key) (Totals, error)

	// Increment adds amount and count to a bucket exactly once per claimID,
	// even under retry (§4.5, §9).
	Increment(ctx context.Context, key Key, claimID string, amount money.Decimal, count int) (Totals, error)
}

// memoryStore is an in-memory, idempotent Store. A (key, claimID) pair is
// recorded the first time it is seen; subsequent increments with the same
// pair are no-ops that return the current totals, mirroring the teacher
// ledger's duplicate-idempotency-key rejection without surfacing an error
// to a caller that is merely retrying a previously-applied increment.
type memoryStore struct {
	mu      sync.Mutex
	totals  map[string]Totals
	applied map[string]map[string]bool // bucket key -> set of applied claim IDs
}

// NewMemoryStore builds an in-memory accumulator Store.
func NewMemoryStore() *memoryStore {
	return &memoryStore{
		totals:  make(map[string]Totals),
		applied: make(map[string]map[string]bool),
	}
}

func (s *memoryStore) Get(ctx context.Context, key Key) (Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals[key.String()], nil
}

func (s *memoryStore) Increment(ctx context.Context, key Key, claimID string, amount money.Decimal, count int) (Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucketKey := key.String()
	seen, ok := s.applied[bucketKey]
	if !ok {
		seen = make(map[string]bool)
		s.applied[bucketKey] = seen
	}
	if seen[claimID] {
		return s.totals[bucketKey], nil
	}

	current := s.totals[bucketKey]
	current.UsedAmount = current.UsedAmount.Add(amount)
	current.UsedCount += count
	s.totals[bucketKey] = current
	seen[claimID] = true

	return current, nil
}
