package catalog

import (
	"sort"
	"sync/atomic"

	"github.com/salamenterprise/claims-askes/internal/money"
	"github.com/salamenterprise/claims-askes/internal/timeutil"
)

// Catalog is the read-only lookup surface the pricing and claims engines
// consult (§4.2). Implementations must be safe to read concurrently with a
// Store.Reload on another goroutine.
type Catalog interface {
	// TemplateEffectiveOn returns the template active for templateCode on d.
	TemplateEffectiveOn(templateCode string, d timeutil.Date) (ProductTemplate, bool)

	// ActiveTCFactors returns active T&C factors ordered by DisplayOrder.
	ActiveTCFactors() []TCFactorConfig

	// AgeBandMultiplier returns the multiplier for (template, age, gender),
	// defaulting to money.One when no band matches (§4.2).
	AgeBandMultiplier(templateCode string, age int, gender Gender) money.Decimal

	// BenefitConfiguration fetches a benefit by code.
	BenefitConfiguration(benefitCode string) (BenefitConfiguration, bool)

	// BenefitConfigurationsByCategory lists benefits in a category.
	BenefitConfigurationsByCategory(category BenefitCategory) []BenefitConfiguration

	// OriginalBenefitLimit resolves a benefit's own configured limit value.
	// Resolved per §12: the source's rate-table-column mapping was never
	// implemented, so this returns the benefit's own LimitValue rather than
	// inventing a join.
	OriginalBenefitLimit(benefitCode string) (money.Decimal, bool)
}

// CatalogStore is the in-memory Catalog implementation. A loaded snapshot is
// swapped atomically so readers never observe a partially-reloaded catalog
// and never hold a pointer into a stale one (§5 "shared resources", §9
// "catalog vs selection coupling").
type CatalogStore struct {
	snapshot atomic.Pointer[snapshotData]
}

type snapshotData struct {
	templates  map[string][]ProductTemplate // by TemplateCode, most-recent-first not guaranteed
	ageBands   []AgeBandMultiplier
	tcFactors  []TCFactorConfig
	benefits   map[string]BenefitConfiguration
}

// NewStore builds an empty Catalog; call Reload to populate it.
func NewStore() *CatalogStore {
	s := &CatalogStore{}
	s.snapshot.Store(&snapshotData{
		templates: make(map[string][]ProductTemplate),
		benefits:  make(map[string]BenefitConfiguration),
	})
	return s
}

// Reload atomically replaces the catalog contents. Existing PolicyConfig
// selections hold stable keys, not pointers, so live configs never dangle
// across a reload.
func (s *CatalogStore) Reload(templates []ProductTemplate, ageBands []AgeBandMultiplier, tcFactors []TCFactorConfig, benefits []BenefitConfiguration) {
	next := &snapshotData{
		templates: make(map[string][]ProductTemplate, len(templates)),
		ageBands:  append([]AgeBandMultiplier(nil), ageBands...),
		benefits:  make(map[string]BenefitConfiguration, len(benefits)),
	}
	for _, t := range templates {
		next.templates[t.TemplateCode] = append(next.templates[t.TemplateCode], t)
	}
	for _, b := range benefits {
		next.benefits[b.BenefitCode] = b
	}
	active := make([]TCFactorConfig, 0, len(tcFactors))
	for _, f := range tcFactors {
		if f.Active {
			active = append(active, f)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].DisplayOrder < active[j].DisplayOrder })
	next.tcFactors = active

	s.snapshot.Store(next)
}

func (s *CatalogStore) current() *snapshotData {
	return s.snapshot.Load()
}

func (s *CatalogStore) TemplateEffectiveOn(templateCode string, d timeutil.Date) (ProductTemplate, bool) {
	for _, t := range s.current().templates[templateCode] {
		if t.IsEffectiveOn(d) {
			return t, true
		}
	}
	return ProductTemplate{}, false
}

func (s *CatalogStore) ActiveTCFactors() []TCFactorConfig {
	return append([]TCFactorConfig(nil), s.current().tcFactors...)
}

func (s *CatalogStore) AgeBandMultiplier(templateCode string, age int, gender Gender) money.Decimal {
	for _, band := range s.current().ageBands {
		if band.TemplateCode != templateCode || band.Gender != gender {
			continue
		}
		if age >= band.AgeFrom && age <= band.AgeTo {
			return band.Multiplier
		}
	}
	return money.One
}

func (s *CatalogStore) BenefitConfiguration(benefitCode string) (BenefitConfiguration, bool) {
	b, ok := s.current().benefits[benefitCode]
	return b, ok
}

func (s *CatalogStore) BenefitConfigurationsByCategory(category BenefitCategory) []BenefitConfiguration {
	var result []BenefitConfiguration
	for _, b := range s.current().benefits {
		if b.Category == category {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].BenefitCode < result[j].BenefitCode })
	return result
}

func (s *CatalogStore) OriginalBenefitLimit(benefitCode string) (money.Decimal, bool) {
	b, ok := s.current().benefits[benefitCode]
	if !ok {
		return money.Zero, false
	}
	return b.LimitValue, true
}

// GenderForAge applies the §4.2 CHILD-override rule: any member under 18 is
// looked up as CHILD regardless of biological gender.
func GenderForAge(biological Gender, age int) Gender {
	if age < 18 {
		return GenderChild
	}
	return biological
}
