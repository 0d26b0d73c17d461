package pipeline_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func target(amount int64, start, end time.Time) domain.SalesTarget {
	return domain.SalesTarget{
		Amount:      decimal.NewFromInt(amount),
		Measure:     domain.MeasureRevenue,
		PeriodStart: start,
		PeriodEnd:   end,
	}
}

func TestMonthsInclusive(t *testing.T) {
	assert.Equal(t, 1, pipeline.MonthsInclusive(date(2025, 1, 1), date(2025, 1, 31)))
	assert.Equal(t, 3, pipeline.MonthsInclusive(date(2025, 1, 1), date(2025, 3, 31)))
	assert.Equal(t, 13, pipeline.MonthsInclusive(date(2024, 12, 15), date(2025, 12, 1)))
	assert.Equal(t, 1, pipeline.MonthsInclusive(date(2025, 5, 1), date(2025, 4, 1)))
}

func TestRollup_QuarterTargetOneMonthWindow(t *testing.T) {
	targets := []domain.SalesTarget{target(300, date(2025, 1, 1), date(2025, 3, 31))}

	got, err := pipeline.Rollup(targets, date(2025, 2, 1), date(2025, 2, 28))
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(100)), got.String())
}

func TestRollup_SingleDayWindow(t *testing.T) {
	day := date(2025, 6, 1)
	targets := []domain.SalesTarget{target(250, day, day)}

	got, err := pipeline.Rollup(targets, day, day)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(250)), got.String())

	t.Run("single-month target queried on one of its days", func(t *testing.T) {
		targets := []domain.SalesTarget{target(900, date(2025, 6, 1), date(2025, 6, 30))}
		got, err := pipeline.Rollup(targets, date(2025, 6, 17), date(2025, 6, 17))
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.NewFromInt(900)), got.String())
	})
}

func TestRollup_OutsideWindow(t *testing.T) {
	targets := []domain.SalesTarget{
		target(500, date(2024, 1, 1), date(2024, 12, 31)),
		target(700, date(2025, 7, 1), date(2025, 9, 30)),
	}

	got, err := pipeline.Rollup(targets, date(2025, 1, 1), date(2025, 6, 30))
	require.NoError(t, err)
	assert.True(t, got.IsZero(), got.String())
}

func TestRollup_PartialOverlap(t *testing.T) {
	// quarter target, window covers Feb and Mar plus one day of April
	targets := []domain.SalesTarget{target(300, date(2025, 1, 1), date(2025, 3, 31))}

	got, err := pipeline.Rollup(targets, date(2025, 2, 10), date(2025, 4, 1))
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(200)), got.String())

	full, err := pipeline.Rollup(targets, date(2025, 1, 1), date(2025, 3, 31))
	require.NoError(t, err)
	assert.True(t, full.Equal(decimal.NewFromInt(300)), full.String())
}

func TestRollup_Linear(t *testing.T) {
	base := []domain.SalesTarget{
		target(300, date(2025, 1, 1), date(2025, 3, 31)),
		target(1200, date(2025, 1, 1), date(2025, 12, 31)),
		target(100, date(2025, 2, 1), date(2025, 2, 28)),
	}
	ws, we := date(2025, 2, 1), date(2025, 4, 30)

	want, err := pipeline.Rollup(base, ws, we)
	require.NoError(t, err)

	for _, k := range []int64{0, 2, 7, 1000} {
		scaled := make([]domain.SalesTarget, len(base))
		for i, tg := range base {
			tg.Amount = tg.Amount.Mul(decimal.NewFromInt(k))
			scaled[i] = tg
		}
		got, err := pipeline.Rollup(scaled, ws, we)
		require.NoError(t, err)
		assert.True(t, got.Round(6).Equal(want.Mul(decimal.NewFromInt(k)).Round(6)), "k=%d got=%s", k, got)
	}
}

func TestRollup_InvalidInput(t *testing.T) {
	good := []domain.SalesTarget{target(100, date(2025, 1, 1), date(2025, 1, 31))}

	_, err := pipeline.Rollup(good, date(2025, 2, 1), date(2025, 1, 1))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	inverted := []domain.SalesTarget{target(100, date(2025, 3, 1), date(2025, 1, 1))}
	_, err = pipeline.Rollup(inverted, date(2025, 1, 1), date(2025, 12, 31))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	negative := []domain.SalesTarget{target(-5, date(2025, 1, 1), date(2025, 1, 31))}
	_, err = pipeline.Rollup(negative, date(2025, 1, 1), date(2025, 12, 31))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestAchievementPercent(t *testing.T) {
	for _, actual := range []int64{0, 1, 500, 1_000_000} {
		got := pipeline.AchievementPercent(decimal.NewFromInt(actual), decimal.Zero)
		assert.True(t, got.IsZero(), "actual=%d", actual)
	}

	got := pipeline.AchievementPercent(decimal.NewFromInt(75), decimal.NewFromInt(300))
	assert.True(t, got.Equal(decimal.NewFromInt(25)), got.String())

	got = pipeline.AchievementPercent(decimal.NewFromInt(450), decimal.NewFromInt(300))
	assert.True(t, got.Equal(decimal.NewFromInt(150)), got.String())
}
