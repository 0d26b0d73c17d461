package pipeline

import (
	"sort"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
)

// Derivation records how the visited stages of a score were determined
type Derivation string

const (
	// DerivedTerminal means only the terminal stage's points counted
	DerivedTerminal Derivation = "terminal"
	// DerivedFromHistory means visited stages came from stage history
	DerivedFromHistory Derivation = "history"
	// DerivedFromCatalogOrder is the legacy fallback for opportunities
	// without history: every open stage up to the current one is assumed visited
	DerivedFromCatalogOrder Derivation = "catalog_order"
)

// Score is a cumulative performance score for one opportunity
type Score struct {
	Points     int
	Derivation Derivation
}

// CumulativeScore sums the points of every open stage the opportunity passed
// through up to and including its current stage. Terminal stages score only
// their own points.
func CumulativeScore(c *Catalog, opp *domain.Opportunity, history []domain.StageHistoryEntry) (Score, error) {
	current, err := c.Lookup(opp.Stage)
	if err != nil {
		return Score{}, err
	}
	if current.IsTerminal() {
		return Score{Points: current.Points, Derivation: DerivedTerminal}, nil
	}

	currentIdx, _ := c.Order(current.Key)

	if len(history) == 0 {
		points := 0
		for _, s := range c.stages[:currentIdx+1] {
			if !s.IsTerminal() {
				points += s.Points
			}
		}
		return Score{Points: points, Derivation: DerivedFromCatalogOrder}, nil
	}

	visited := map[string]struct{}{current.Key: {}}
	for _, h := range history {
		if h.FromStage != nil {
			if !c.Has(*h.FromStage) {
				return Score{}, domain.ConfigurationError("history of opportunity %s references unknown stage %q", opp.ID, *h.FromStage)
			}
			visited[*h.FromStage] = struct{}{}
		}
		if !c.Has(h.ToStage) {
			return Score{}, domain.ConfigurationError("history of opportunity %s references unknown stage %q", opp.ID, h.ToStage)
		}
		visited[h.ToStage] = struct{}{}
	}

	points := 0
	for key := range visited {
		idx, _ := c.Order(key)
		s := c.stages[idx]
		if s.IsTerminal() || idx > currentIdx {
			continue
		}
		points += s.Points
	}
	return Score{Points: points, Derivation: DerivedFromHistory}, nil
}

// OwnerScore is one leaderboard row
type OwnerScore struct {
	OwnerID       string
	OwnerName     string
	Points        int
	Opportunities int
	Won           int
	// Approximated counts opportunities scored without history
	Approximated int
}

// RankOwners scores every opportunity and aggregates per owner, highest first
func RankOwners(c *Catalog, opps []domain.Opportunity, history map[uuid.UUID][]domain.StageHistoryEntry) ([]OwnerScore, error) {
	byOwner := make(map[string]*OwnerScore)
	for i := range opps {
		o := &opps[i]
		score, err := CumulativeScore(c, o, history[o.ID])
		if err != nil {
			return nil, err
		}

		row, ok := byOwner[o.OwnerID]
		if !ok {
			row = &OwnerScore{OwnerID: o.OwnerID}
			byOwner[o.OwnerID] = row
		}
		if row.OwnerName == "" {
			row.OwnerName = o.OwnerName
		}
		row.Points += score.Points
		row.Opportunities++
		if o.Status == domain.OpportunityStatusWon {
			row.Won++
		}
		if score.Derivation == DerivedFromCatalogOrder {
			row.Approximated++
		}
	}

	out := make([]OwnerScore, 0, len(byOwner))
	for _, row := range byOwner {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].OwnerID < out[j].OwnerID
	})
	return out, nil
}
