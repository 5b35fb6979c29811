package points

import (
	"strings"
	"sync"
)

// Mapping binds a lower-cased keyword to the effect it triggers when the
// keyword appears in a reward's title or prompt.
type Mapping struct {
	Keyword string `json:"keyword"`
	Effect  string `json:"effect"`
}

// CostTier is one rung of the fallback ladder used when no keyword matches.
type CostTier struct {
	MinCost int    `json:"minCost"`
	Effect  string `json:"effect"`
}

// Defaults seeded at startup. Mapping order is significant: the first
// matching keyword wins, so callers replacing the table control precedence
// through ordering.
var (
	defaultMappings = []Mapping{
		{Keyword: "perturbation", Effect: "perturbation"},
		{Keyword: "confetti", Effect: "tada"},
		{Keyword: "tada", Effect: "tada"},
		{Keyword: "flash", Effect: "flash"},
		{Keyword: "pulse", Effect: "pulse"},
		{Keyword: "bounce", Effect: "bounce"},
		{Keyword: "shake", Effect: "shake"},
		{Keyword: "zoom", Effect: "zoom"},
	}

	// Tier values mirror the historical behavior; they are a tunable
	// surface, not a rule of the domain.
	defaultTiers = []CostTier{
		{MinCost: 1000, Effect: "tada"},
		{MinCost: 500, Effect: "pulse"},
		{MinCost: 100, Effect: "bounce"},
	}

	defaultFallbackEffect = "flash"
)

// EffectTable maps rewards to effect identifiers: first by ordered keyword
// containment over title and prompt, then by cost tier.
type EffectTable struct {
	mu       sync.RWMutex
	mappings []Mapping
	tiers    []CostTier
	fallback string
}

func NewEffectTable() *EffectTable {
	t := &EffectTable{}
	t.Configure(defaultMappings)
	t.ConfigureTiers(defaultTiers, defaultFallbackEffect)
	return t
}

// Configure replaces the keyword table wholesale, preserving the given order.
func (t *EffectTable) Configure(mappings []Mapping) {
	normalized := make([]Mapping, 0, len(mappings))
	for _, m := range mappings {
		if m.Keyword == "" || m.Effect == "" {
			continue
		}
		normalized = append(normalized, Mapping{
			Keyword: strings.ToLower(m.Keyword),
			Effect:  m.Effect,
		})
	}

	t.mu.Lock()
	t.mappings = normalized
	t.mu.Unlock()
}

// ConfigureTiers replaces the cost-tier ladder. Tiers are checked highest
// threshold first regardless of input order.
func (t *EffectTable) ConfigureTiers(tiers []CostTier, fallback string) {
	sorted := make([]CostTier, len(tiers))
	copy(sorted, tiers)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].MinCost > sorted[j-1].MinCost; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	t.mu.Lock()
	t.tiers = sorted
	t.fallback = fallback
	t.mu.Unlock()
}

// Detect derives the effect for a reward. Title and prompt are lower-cased
// and checked for keyword containment in mapping order; without a match the
// cost-tier ladder applies, bottoming out at the fallback effect.
func (t *EffectTable) Detect(title, prompt string, cost int) string {
	haystack := strings.ToLower(title) + " " + strings.ToLower(prompt)

	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, m := range t.mappings {
		if strings.Contains(haystack, m.Keyword) {
			return m.Effect
		}
	}

	for _, tier := range t.tiers {
		if cost >= tier.MinCost {
			return tier.Effect
		}
	}
	return t.fallback
}

// EffectForKeyword resolves a bare keyword (chat commands) through the
// table; returns "" when nothing maps.
func (t *EffectTable) EffectForKeyword(keyword string) string {
	keyword = strings.ToLower(keyword)

	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, m := range t.mappings {
		if m.Keyword == keyword {
			return m.Effect
		}
	}
	return ""
}

// Len returns the number of configured keyword mappings.
func (t *EffectTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.mappings)
}

// Mappings returns a copy of the keyword table in precedence order.
func (t *EffectTable) Mappings() []Mapping {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Mapping, len(t.mappings))
	copy(out, t.mappings)
	return out
}
