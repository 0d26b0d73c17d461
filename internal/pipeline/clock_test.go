package pipeline_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysInStage(t *testing.T) {
	entered := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"same instant", entered, 0},
		{"one hour later rounds up", entered.Add(time.Hour), 1},
		{"exactly one day", entered.Add(24 * time.Hour), 1},
		{"one day and a minute", entered.Add(24*time.Hour + time.Minute), 2},
		{"ten days", entered.Add(10 * 24 * time.Hour), 10},
		{"clock skew floors to zero", entered.Add(-5 * time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pipeline.DaysInStage(entered, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("zero entry time is rejected", func(t *testing.T) {
		_, err := pipeline.DaysInStage(time.Time{}, entered)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestIsOverdue(t *testing.T) {
	t.Run("threshold boundary is not overdue", func(t *testing.T) {
		for _, due := range []int{0, 1, 7, 30} {
			overdue, err := pipeline.IsOverdue(due, due, nil)
			require.NoError(t, err)
			assert.False(t, overdue, "due=%d", due)

			overdue, err = pipeline.IsOverdue(due+1, due, nil)
			require.NoError(t, err)
			assert.True(t, overdue, "due=%d", due)
		}
	})

	t.Run("override wins over default", func(t *testing.T) {
		overdue, err := pipeline.IsOverdue(10, 30, intPtr(7))
		require.NoError(t, err)
		assert.True(t, overdue)

		overdue, err = pipeline.IsOverdue(10, 5, intPtr(14))
		require.NoError(t, err)
		assert.False(t, overdue)
	})

	t.Run("negative inputs are rejected", func(t *testing.T) {
		_, err := pipeline.IsOverdue(-1, 5, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		_, err = pipeline.IsOverdue(1, -5, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		_, err = pipeline.IsOverdue(1, 5, intPtr(-1))
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestStageEnteredAt_BackComputesFromHistory(t *testing.T) {
	first := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	second := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	from := "Prospecting"

	opp := &domain.Opportunity{Stage: "Qualification"}
	opp.ID = uuid.New()
	history := []domain.StageHistoryEntry{
		{ToStage: "Prospecting", ChangedAt: first},
		{FromStage: &from, ToStage: "Qualification", ChangedAt: second},
	}

	got, err := pipeline.StageEnteredAt(opp, history)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	_, err = pipeline.StageEnteredAt(opp, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	opp.StageEnteredAt = first
	got, err = pipeline.StageEnteredAt(opp, history)
	require.NoError(t, err)
	assert.Equal(t, first, got)
}

func TestAgeInStage_UsesStageOverride(t *testing.T) {
	stages := pipeline.DefaultStages()
	stages[2].DueDays = intPtr(5) // Proposal
	c, err := pipeline.NewCatalog(stages)
	require.NoError(t, err)

	now := time.Date(2025, 4, 20, 12, 0, 0, 0, time.UTC)
	opp := &domain.Opportunity{Stage: "Proposal", StageEnteredAt: now.Add(-6 * 24 * time.Hour)}

	age, err := pipeline.AgeInStage(c, opp, nil, 30, now)
	require.NoError(t, err)
	assert.Equal(t, 6, age.Days)
	assert.Equal(t, 5, age.DueDays)
	assert.True(t, age.Overdue)

	opp.Stage = "Qualification"
	age, err = pipeline.AgeInStage(c, opp, nil, 30, now)
	require.NoError(t, err)
	assert.Equal(t, 30, age.DueDays)
	assert.False(t, age.Overdue)

	opp.Stage = "Unknown"
	_, err = pipeline.AgeInStage(c, opp, nil, 30, now)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
