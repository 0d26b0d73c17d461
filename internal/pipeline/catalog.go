// Package pipeline holds the sales pipeline rules: the stage catalog, stage
// clock, forecast bucketing, scoring, target rollup, org scope resolution and
// the opportunity transition state machine. Everything here is pure and safe
// for concurrent use; persistence lives in the service layer.
package pipeline

import (
	"sort"

	"github.com/straye-as/pipeline-api/internal/domain"
)

// Catalog is a validated, ordered set of pipeline stages
type Catalog struct {
	stages []domain.Stage
	index  map[string]int
	won    int
	lost   int
	first  int
}

// DefaultStages returns the stage set seeded by the initial migration
func DefaultStages() []domain.Stage {
	return []domain.Stage{
		{Key: "Prospecting", Position: 1, Probability: 10, Points: 10},
		{Key: "Qualification", Position: 2, Probability: 25, Points: 10},
		{Key: "Proposal", Position: 3, Probability: 50, Points: 15},
		{Key: "Negotiation", Position: 4, Probability: 75, Points: 15},
		{Key: "Closed Won", Position: 5, Probability: 100, Points: 20, IsWon: true},
		{Key: "Closed Lost", Position: 6, Probability: 0, Points: 0, IsLost: true},
	}
}

// NewCatalog validates stages and orders them by Position.
// Exactly one won and one lost stage must exist, plus at least one open stage.
func NewCatalog(stages []domain.Stage) (*Catalog, error) {
	if len(stages) == 0 {
		return nil, domain.ConfigurationError("stage catalog is empty")
	}

	sorted := make([]domain.Stage, len(stages))
	copy(sorted, stages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})

	c := &Catalog{
		stages: sorted,
		index:  make(map[string]int, len(sorted)),
		won:    -1,
		lost:   -1,
		first:  -1,
	}

	for i, s := range sorted {
		if s.Key == "" {
			return nil, domain.ConfigurationError("stage at position %d has no key", s.Position)
		}
		if _, dup := c.index[s.Key]; dup {
			return nil, domain.ConfigurationError("duplicate stage key %q", s.Key)
		}
		if s.Probability < 0 || s.Probability > 100 {
			return nil, domain.ConfigurationError("stage %q probability %d outside 0-100", s.Key, s.Probability)
		}
		if s.Points < 0 {
			return nil, domain.ConfigurationError("stage %q has negative points", s.Key)
		}
		if s.DueDays != nil && *s.DueDays < 0 {
			return nil, domain.ConfigurationError("stage %q has negative due days", s.Key)
		}
		if s.IsWon && s.IsLost {
			return nil, domain.ConfigurationError("stage %q cannot be both won and lost", s.Key)
		}
		c.index[s.Key] = i

		switch {
		case s.IsWon:
			if c.won >= 0 {
				return nil, domain.ConfigurationError("more than one won stage: %q and %q", sorted[c.won].Key, s.Key)
			}
			c.won = i
		case s.IsLost:
			if c.lost >= 0 {
				return nil, domain.ConfigurationError("more than one lost stage: %q and %q", sorted[c.lost].Key, s.Key)
			}
			c.lost = i
		default:
			if c.first < 0 {
				c.first = i
			}
		}
	}

	if c.won < 0 {
		return nil, domain.ConfigurationError("catalog has no won stage")
	}
	if c.lost < 0 {
		return nil, domain.ConfigurationError("catalog has no lost stage")
	}
	if c.first < 0 {
		return nil, domain.ConfigurationError("catalog has no open stage")
	}

	return c, nil
}

// Stages returns a copy of the stages in catalog order
func (c *Catalog) Stages() []domain.Stage {
	out := make([]domain.Stage, len(c.stages))
	copy(out, c.stages)
	return out
}

// Lookup returns the stage for key, or a ConfigurationError for unknown keys
func (c *Catalog) Lookup(key string) (domain.Stage, error) {
	i, ok := c.index[key]
	if !ok {
		return domain.Stage{}, domain.ConfigurationError("stage %q not found in catalog", key)
	}
	return c.stages[i], nil
}

// Order returns the catalog order index of key
func (c *Catalog) Order(key string) (int, bool) {
	i, ok := c.index[key]
	return i, ok
}

// Has reports whether key is a catalog stage
func (c *Catalog) Has(key string) bool {
	_, ok := c.index[key]
	return ok
}

// Won returns the single won stage
func (c *Catalog) Won() domain.Stage {
	return c.stages[c.won]
}

// Lost returns the single lost stage
func (c *Catalog) Lost() domain.Stage {
	return c.stages[c.lost]
}

// First returns the initial stage for new opportunities
func (c *Catalog) First() domain.Stage {
	return c.stages[c.first]
}

// OpenStages returns the non-terminal stages in catalog order
func (c *Catalog) OpenStages() []domain.Stage {
	out := make([]domain.Stage, 0, len(c.stages))
	for _, s := range c.stages {
		if !s.IsTerminal() {
			out = append(out, s)
		}
	}
	return out
}
