package pipeline_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoringCatalog(t *testing.T) *pipeline.Catalog {
	t.Helper()
	c, err := pipeline.NewCatalog([]domain.Stage{
		{Key: "Prospecting", Position: 1, Points: 10, Probability: 10},
		{Key: "Qualification", Position: 2, Points: 10, Probability: 20},
		{Key: "Closed Won", Position: 3, Points: 20, Probability: 100, IsWon: true},
		{Key: "Closed Lost", Position: 4, Points: 0, Probability: 0, IsLost: true},
	})
	require.NoError(t, err)
	return c
}

func transition(from *string, to string) domain.StageHistoryEntry {
	return domain.StageHistoryEntry{FromStage: from, ToStage: to}
}

func strPtr(s string) *string { return &s }

func TestCumulativeScore_TerminalOnly(t *testing.T) {
	c := scoringCatalog(t)
	opp := &domain.Opportunity{Stage: "Closed Won", Status: domain.OpportunityStatusWon}
	history := []domain.StageHistoryEntry{
		transition(nil, "Prospecting"),
		transition(strPtr("Prospecting"), "Qualification"),
		transition(strPtr("Qualification"), "Closed Won"),
	}

	score, err := pipeline.CumulativeScore(c, opp, history)
	require.NoError(t, err)
	assert.Equal(t, 20, score.Points)
	assert.Equal(t, pipeline.DerivedTerminal, score.Derivation)

	opp.Stage = "Closed Lost"
	score, err = pipeline.CumulativeScore(c, opp, history)
	require.NoError(t, err)
	assert.Equal(t, 0, score.Points)
}

func TestCumulativeScore_FromHistory(t *testing.T) {
	c, err := pipeline.NewCatalog(pipeline.DefaultStages())
	require.NoError(t, err)

	t.Run("skipped stages do not score", func(t *testing.T) {
		opp := &domain.Opportunity{Stage: "Negotiation"}
		history := []domain.StageHistoryEntry{
			transition(nil, "Prospecting"),
			transition(strPtr("Prospecting"), "Negotiation"),
		}
		score, err := pipeline.CumulativeScore(c, opp, history)
		require.NoError(t, err)
		// Prospecting 10 + Negotiation 15
		assert.Equal(t, 25, score.Points)
		assert.Equal(t, pipeline.DerivedFromHistory, score.Derivation)
	})

	t.Run("reopened opportunity only counts stages up to current", func(t *testing.T) {
		opp := &domain.Opportunity{Stage: "Prospecting"}
		history := []domain.StageHistoryEntry{
			transition(nil, "Prospecting"),
			transition(strPtr("Prospecting"), "Proposal"),
			transition(strPtr("Proposal"), "Closed Lost"),
			transition(strPtr("Closed Lost"), "Prospecting"),
		}
		score, err := pipeline.CumulativeScore(c, opp, history)
		require.NoError(t, err)
		assert.Equal(t, 10, score.Points)
	})

	t.Run("unknown stage in history", func(t *testing.T) {
		opp := &domain.Opportunity{Stage: "Proposal"}
		history := []domain.StageHistoryEntry{
			transition(nil, "Discovery"),
		}
		_, err := pipeline.CumulativeScore(c, opp, history)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})
}

func TestCumulativeScore_CatalogOrderFallback(t *testing.T) {
	c, err := pipeline.NewCatalog(pipeline.DefaultStages())
	require.NoError(t, err)

	opp := &domain.Opportunity{Stage: "Proposal"}
	score, err := pipeline.CumulativeScore(c, opp, nil)
	require.NoError(t, err)
	// 10 + 10 + 15
	assert.Equal(t, 35, score.Points)
	assert.Equal(t, pipeline.DerivedFromCatalogOrder, score.Derivation)
}

func TestCumulativeScore_UnknownStage(t *testing.T) {
	c := scoringCatalog(t)
	_, err := pipeline.CumulativeScore(c, &domain.Opportunity{Stage: "Proposal"}, nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
}

func TestRankOwners(t *testing.T) {
	c := scoringCatalog(t)

	won := domain.Opportunity{OwnerID: "anna", OwnerName: "Anna", Stage: "Closed Won", Status: domain.OpportunityStatusWon}
	won.ID = uuid.New()
	qualifying := domain.Opportunity{OwnerID: "bjorn", OwnerName: "Bjorn", Stage: "Qualification", Status: domain.OpportunityStatusOpen}
	qualifying.ID = uuid.New()
	prospect := domain.Opportunity{OwnerID: "anna", OwnerName: "Anna", Stage: "Prospecting", Status: domain.OpportunityStatusOpen}
	prospect.ID = uuid.New()

	history := map[uuid.UUID][]domain.StageHistoryEntry{
		qualifying.ID: {
			transition(nil, "Prospecting"),
			transition(strPtr("Prospecting"), "Qualification"),
		},
	}

	rows, err := pipeline.RankOwners(c, []domain.Opportunity{won, qualifying, prospect}, history)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "anna", rows[0].OwnerID)
	assert.Equal(t, 30, rows[0].Points)
	assert.Equal(t, 2, rows[0].Opportunities)
	assert.Equal(t, 1, rows[0].Won)
	assert.Equal(t, 1, rows[0].Approximated)

	assert.Equal(t, "bjorn", rows[1].OwnerID)
	assert.Equal(t, 20, rows[1].Points)
	assert.Equal(t, 0, rows[1].Approximated)
}
