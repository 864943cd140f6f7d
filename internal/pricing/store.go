package pricing

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/salamenterprise/claims-askes/internal/apperr"
	"github.com/salamenterprise/claims-askes/internal/timeutil"
)

// ConfigurationStore is the persistence interface for PolicyConfig and its
// owned children (§4.3). Implementations must serialize mutations per
// config_id — §5 requires every mutation on one config to take an exclusive
// lock (or SERIALIZABLE transaction) so member counts, cached totals and
// workflow state remain consistent; operations on distinct configs proceed
// in parallel.
type ConfigurationStore interface {
	Create(ctx context.Context, cfg *PolicyConfig) error
	Get(ctx context.Context, id string) (*PolicyConfig, error)
	List(ctx context.Context, filter ListFilter) ([]*PolicyConfig, error)

	// WithLock runs fn holding the named config's exclusive lock, passing the
	// current in-memory/loaded value. fn mutates cfg in place; the store
	// persists the result on a nil return.
	WithLock(ctx context.Context, id string, fn func(cfg *PolicyConfig) error) error

	// NextQuoteNumber mints `Q<YYYYMMDD><NNNN>` (§4.3). The memory store
	// draws NNNN from a mutex-guarded in-memory per-day counter; the sqlite
	// store draws it from a per-day sequence table backed by a UNIQUE
	// quote_number column. Neither implementation retries on a collision.
	NextQuoteNumber(ctx context.Context, day timeutil.Date) (string, error)

	// NextPolicyNumber mints `PGH<YYYYMM><NNNNN>` the same way, with a
	// per-month counter or sequence.
	NextPolicyNumber(ctx context.Context, month timeutil.Date) (string, error)

	AppendCalculationLog(ctx context.Context, configID string, entry PremiumCalculationLog) error
	CalculationHistory(ctx context.Context, configID string, limit int) ([]PremiumCalculationLog, error)
}

// ListFilter is the §6 `GET /configurations` query surface.
type ListFilter struct {
	Status      ConfigStatus
	CompanyName string
	Limit       int
	Offset      int
}

// memoryStore is an in-memory ConfigurationStore. A per-config mutex
// serializes mutations on that config while distinct configs proceed
// independently — the in-process analog of the §5 exclusive-lock
// requirement, grounded on the teacher's per-request lifecycle locking in
// generic/request.go (there, approvals serialize per request; here, every
// mutation serializes per config).
type memoryStore struct {
	mu       sync.RWMutex
	configs  map[string]*PolicyConfig
	locks    map[string]*sync.Mutex
	history  map[string][]PremiumCalculationLog
	quoteSeq map[string]int // day key -> next sequence
	polSeq   map[string]int // month key -> next sequence
}

// NewMemoryStore builds an in-memory ConfigurationStore, suitable for tests
// and as the seam the sqlite-backed store must satisfy.
func NewMemoryStore() *memoryStore {
	return &memoryStore{
		configs:  make(map[string]*PolicyConfig),
		locks:    make(map[string]*sync.Mutex),
		history:  make(map[string][]PremiumCalculationLog),
		quoteSeq: make(map[string]int),
		polSeq:   make(map[string]int),
	}
}

func (s *memoryStore) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *memoryStore) Create(ctx context.Context, cfg *PolicyConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.configs[cfg.ID]; exists {
		return apperr.NewStateConflict("PolicyConfig", string(cfg.Status), "config %s already exists", cfg.ID)
	}
	s.configs[cfg.ID] = cfg
	s.locks[cfg.ID] = &sync.Mutex{}
	return nil
}

func (s *memoryStore) Get(ctx context.Context, id string) (*PolicyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[id]
	if !ok {
		return nil, apperr.NewNotFound("PolicyConfig", id)
	}
	return cfg, nil
}

func (s *memoryStore) List(ctx context.Context, filter ListFilter) ([]*PolicyConfig, error) {
	s.mu.RLock()
	all := make([]*PolicyConfig, 0, len(s.configs))
	for _, c := range s.configs {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.CompanyName != "" && c.CompanyName != filter.CompanyName {
			continue
		}
		all = append(all, c)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []*PolicyConfig{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *memoryStore) WithLock(ctx context.Context, id string, fn func(cfg *PolicyConfig) error) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	cfg, ok := s.configs[id]
	s.mu.RUnlock()
	if !ok {
		return apperr.NewNotFound("PolicyConfig", id)
	}
	return fn(cfg)
}

func (s *memoryStore) NextQuoteNumber(ctx context.Context, day timeutil.Date) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := day.String()
	s.quoteSeq[key]++
	n := s.quoteSeq[key]
	if n > 9999 {
		return "", apperr.NewDependencyMissing("quote-sequence", key)
	}
	return fmt.Sprintf("Q%04d%02d%02d%04d", day.Year(), int(day.Month()), day.Day(), n), nil
}

func (s *memoryStore) NextPolicyNumber(ctx context.Context, month timeutil.Date) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%04d%02d", month.Year(), int(month.Month()))
	s.polSeq[key]++
	n := s.polSeq[key]
	if n > 99999 {
		return "", apperr.NewDependencyMissing("policy-sequence", key)
	}
	return fmt.Sprintf("PGH%s%05d", key, n), nil
}

func (s *memoryStore) AppendCalculationLog(ctx context.Context, configID string, entry PremiumCalculationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.Sequence = len(s.history[configID]) + 1
	s.history[configID] = append(s.history[configID], entry)
	return nil
}

func (s *memoryStore) CalculationHistory(ctx context.Context, configID string, limit int) ([]PremiumCalculationLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	entries := s.history[configID]
	// Most recent first.
	out := make([]PremiumCalculationLog, 0, len(entries))
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}
