package mapper_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/mapper"
	"github.com/straye-as/pipeline-api/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToOpportunityDTO(t *testing.T) {
	closeDate := time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)
	category := domain.LossReasonPrice
	opp := &domain.Opportunity{
		Title:              "Facade",
		Amount:             decimal.NewFromInt(1000),
		Stage:              "Closed Lost",
		StageEnteredAt:     time.Date(2025, time.March, 1, 12, 30, 0, 0, time.FixedZone("CET", 3600)),
		Status:             domain.OpportunityStatusLost,
		ExpectedCloseDate:  &closeDate,
		LossReasonCategory: &category,
		Version:            4,
	}
	opp.ID = uuid.New()

	dto := mapper.ToOpportunityDTO(opp, decimal.Zero, pipeline.StageAge{Days: 3, Overdue: true})

	assert.Equal(t, opp.ID, dto.ID)
	assert.Equal(t, "2025-03-01T11:30:00Z", dto.StageEnteredAt)
	require.NotNil(t, dto.ExpectedCloseDate)
	assert.Equal(t, "2025-06-30", *dto.ExpectedCloseDate)
	assert.Nil(t, dto.ActualCloseDate)
	assert.Equal(t, 3, dto.DaysInStage)
	assert.True(t, dto.Overdue)
	assert.Equal(t, 4, dto.Version)
	assert.Equal(t, &category, dto.LossReasonCategory)
}

func TestToLeaderboard_SharedRanks(t *testing.T) {
	board := mapper.ToLeaderboard([]pipeline.OwnerScore{
		{OwnerID: "a", Points: 50},
		{OwnerID: "b", Points: 30},
		{OwnerID: "c", Points: 30},
		{OwnerID: "d", Points: 10},
	})

	ranks := make([]int, len(board))
	for i, e := range board {
		ranks[i] = e.Rank
	}
	assert.Equal(t, []int{1, 2, 2, 4}, ranks)
	assert.Empty(t, mapper.ToLeaderboard(nil))
}

func TestToForecastDTO(t *testing.T) {
	summary := &pipeline.ForecastSummary{
		PeriodStart: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC),
		Totals: map[domain.ForecastCategory]decimal.Decimal{
			domain.ForecastBestCase: decimal.NewFromInt(100),
		},
		WeightedPipeline: decimal.NewFromInt(40),
		OpenCount:        2,
		Undated:          1,
	}

	dto := mapper.ToForecastDTO(summary, -10, "self")
	assert.Equal(t, "2025-01-01", dto.PeriodStart)
	assert.Equal(t, "2025-03-31", dto.PeriodEnd)
	assert.True(t, dto.Totals["Best Case"].Equal(decimal.NewFromInt(100)))
	assert.Equal(t, -10, dto.AdjustmentPercent)
	assert.Equal(t, "self", dto.Scope)
}

func TestToSalesTargetDTO(t *testing.T) {
	target := &domain.SalesTarget{
		AssignedTo:  uuid.New(),
		Amount:      decimal.RequireFromString("1200.50"),
		Measure:     domain.MeasureMargin,
		PeriodStart: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC),
	}

	dto := mapper.ToSalesTargetDTO(target)
	assert.Equal(t, "2025-01-01", dto.PeriodStart)
	assert.Equal(t, "2025-12-31", dto.PeriodEnd)
	assert.Equal(t, "1200.5", dto.Amount.String())
	assert.Equal(t, domain.MeasureMargin, dto.Measure)
}
