package accumulator

import (
	"context"
	"testing"

	"github.com/salamenterprise/claims-askes/internal/money"
)

func TestIncrementAccumulates(t *testing.T) {
	s := NewMemoryStore()
	key := Key{MemberID: "M1", BenefitCode: "IP_ROOM", Period: "2025"}

	got, err := s.Increment(context.Background(), key, "claim-1", money.New(500_000), 1)
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if !got.UsedAmount.Equal(money.New(500_000)) || got.UsedCount != 1 {
		t.Fatalf("got %+v", got)
	}

	got, err = s.Increment(context.Background(), key, "claim-2", money.New(300_000), 1)
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if !got.UsedAmount.Equal(money.New(800_000)) || got.UsedCount != 2 {
		t.Fatalf("got %+v after second increment", got)
	}
}

func TestIncrementIsIdempotentPerClaimID(t *testing.T) {
	// GIVEN a claim already applied to an accumulator
	s := NewMemoryStore()
	key := Key{MemberID: "M1", BenefitCode: "IP_ROOM", Period: "2025"}
	s.Increment(context.Background(), key, "claim-1", money.New(500_000), 1)

	// WHEN the same claim_id is retried
	got, err := s.Increment(context.Background(), key, "claim-1", money.New(500_000), 1)
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}

	// THEN the totals are unchanged, not double-counted
	if !got.UsedAmount.Equal(money.New(500_000)) || got.UsedCount != 1 {
		t.Fatalf("expected no double-count, got %+v", got)
	}
}

func TestGetUnseenBucketIsZero(t *testing.T) {
	s := NewMemoryStore()
	got, err := s.Get(context.Background(), Key{MemberID: "M9", BenefitCode: "X", Period: "2025"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.UsedAmount.IsZero() || got.UsedCount != 0 {
		t.Fatalf("expected zero totals, got %+v", got)
	}
}
