package pipeline_test

import (
	"testing"

	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestNewCatalog_Default(t *testing.T) {
	c, err := pipeline.NewCatalog(pipeline.DefaultStages())
	require.NoError(t, err)

	won, lost := 0, 0
	for _, s := range c.Stages() {
		if s.IsWon {
			won++
		}
		if s.IsLost {
			lost++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)
	assert.Equal(t, "Prospecting", c.First().Key)
	assert.Equal(t, "Closed Won", c.Won().Key)
	assert.Equal(t, "Closed Lost", c.Lost().Key)
	assert.Len(t, c.OpenStages(), 4)
}

func TestNewCatalog_OrdersByPosition(t *testing.T) {
	c, err := pipeline.NewCatalog([]domain.Stage{
		{Key: "Closed Lost", Position: 9, IsLost: true},
		{Key: "Second", Position: 2, Probability: 40},
		{Key: "Closed Won", Position: 8, Probability: 100, IsWon: true},
		{Key: "First", Position: 1, Probability: 10},
	})
	require.NoError(t, err)

	keys := make([]string, 0, 4)
	for _, s := range c.Stages() {
		keys = append(keys, s.Key)
	}
	assert.Equal(t, []string{"First", "Second", "Closed Won", "Closed Lost"}, keys)

	idx, ok := c.Order("Second")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestNewCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		stages []domain.Stage
	}{
		{"empty", nil},
		{"no won stage", []domain.Stage{
			{Key: "A", Position: 1},
			{Key: "Lost", Position: 2, IsLost: true},
		}},
		{"no lost stage", []domain.Stage{
			{Key: "A", Position: 1},
			{Key: "Won", Position: 2, IsWon: true},
		}},
		{"two won stages", []domain.Stage{
			{Key: "A", Position: 1},
			{Key: "Won", Position: 2, IsWon: true},
			{Key: "Won Again", Position: 3, IsWon: true},
			{Key: "Lost", Position: 4, IsLost: true},
		}},
		{"won and lost on one stage", []domain.Stage{
			{Key: "A", Position: 1},
			{Key: "Both", Position: 2, IsWon: true, IsLost: true},
		}},
		{"no open stage", []domain.Stage{
			{Key: "Won", Position: 1, IsWon: true},
			{Key: "Lost", Position: 2, IsLost: true},
		}},
		{"duplicate key", []domain.Stage{
			{Key: "A", Position: 1},
			{Key: "A", Position: 2},
			{Key: "Won", Position: 3, IsWon: true},
			{Key: "Lost", Position: 4, IsLost: true},
		}},
		{"probability above 100", []domain.Stage{
			{Key: "A", Position: 1, Probability: 101},
			{Key: "Won", Position: 2, IsWon: true},
			{Key: "Lost", Position: 3, IsLost: true},
		}},
		{"negative points", []domain.Stage{
			{Key: "A", Position: 1, Points: -1},
			{Key: "Won", Position: 2, IsWon: true},
			{Key: "Lost", Position: 3, IsLost: true},
		}},
		{"negative due days", []domain.Stage{
			{Key: "A", Position: 1, DueDays: intPtr(-3)},
			{Key: "Won", Position: 2, IsWon: true},
			{Key: "Lost", Position: 3, IsLost: true},
		}},
		{"missing key", []domain.Stage{
			{Key: "", Position: 1},
			{Key: "Won", Position: 2, IsWon: true},
			{Key: "Lost", Position: 3, IsLost: true},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pipeline.NewCatalog(tt.stages)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestCatalog_LookupUnknown(t *testing.T) {
	c, err := pipeline.NewCatalog(pipeline.DefaultStages())
	require.NoError(t, err)

	_, err = c.Lookup("Discovery")
	assert.True(t, domain.IsKind(err, domain.KindConfiguration))
	assert.False(t, c.Has("Discovery"))
}
