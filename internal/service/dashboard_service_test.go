package service_test

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/service"
	"github.com/straye-as/pipeline-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardService_Forecast(t *testing.T) {
	h := newHarness(t)
	testutil.CreateTestProfile(t, h.db, "admin-1", domain.RoleAdmin)

	jan := testutil.DatePtr(2025, time.January, 15)
	testutil.CreateTestOpportunity(t, h.db, "am-1", "Negotiation", 100, func(o *domain.Opportunity) {
		o.ExpectedCloseDate = jan
		o.ForecastCategory = domain.ForecastCommit
	})
	testutil.CreateTestOpportunity(t, h.db, "am-2", "Prospecting", 200, func(o *domain.Opportunity) { o.ExpectedCloseDate = jan })
	testutil.CreateTestOpportunity(t, h.db, "am-2", "Prospecting", 400)
	testutil.CreateTestOpportunity(t, h.db, "am-2", "Prospecting", 800, func(o *domain.Opportunity) {
		o.ExpectedCloseDate = testutil.DatePtr(2025, time.March, 1)
	})

	ws := testutil.Date(2025, time.January, 1)
	we := testutil.Date(2025, time.January, 31)

	forecast, err := h.dashboard.Forecast(as("admin-1"), ws, we, 0)
	require.NoError(t, err)

	assert.Equal(t, "everyone", forecast.Scope)
	assert.True(t, forecast.Totals["Commit"].Equal(decimal.NewFromInt(100)))
	assert.True(t, forecast.Totals["Pipeline"].Equal(decimal.NewFromInt(200)))
	assert.True(t, forecast.Totals["Best Case"].IsZero())
	assert.Equal(t, 2, forecast.OpenCount)
	assert.Equal(t, 1, forecast.Undated)
	// 10% of 100 plus 10% of 200
	assert.True(t, forecast.WeightedPipeline.Equal(decimal.NewFromInt(30)), "weighted %s", forecast.WeightedPipeline)

	adjusted, err := h.dashboard.Forecast(as("admin-1"), ws, we, 15)
	require.NoError(t, err)
	assert.True(t, adjusted.WeightedPipeline.Equal(decimal.NewFromInt(75)), "weighted %s", adjusted.WeightedPipeline)

	_, err = h.dashboard.Forecast(as("admin-1"), ws, we, 150)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = h.dashboard.Forecast(as("admin-1"), we, ws, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestDashboardService_Leaderboard(t *testing.T) {
	h := newHarness(t)
	testutil.CreateTestProfile(t, h.db, "admin-1", domain.RoleAdmin)

	testutil.CreateTestOpportunity(t, h.db, "am-1", "Proposal", 100)
	testutil.CreateTestOpportunity(t, h.db, "am-2", "Closed Won", 100, wonIn(2025, time.March, 1))
	testutil.CreateTestOpportunity(t, h.db, "am-3", "Closed Won", 100, wonIn(2025, time.March, 1))

	board, err := h.dashboard.Leaderboard(as("admin-1"))
	require.NoError(t, err)
	require.Len(t, board, 3)

	assert.Equal(t, "am-1", board[0].OwnerID)
	assert.Equal(t, 35, board[0].Points)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, 1, board[0].Approximated)

	assert.Equal(t, 20, board[1].Points)
	assert.Equal(t, 2, board[1].Rank)
	assert.Equal(t, 2, board[2].Rank, "equal points share a rank")
	assert.Equal(t, 1, board[1].Won)
}

func TestDashboardService_Overdue(t *testing.T) {
	h := newHarness(t)
	testutil.CreateTestProfile(t, h.db, "am-1", domain.RoleAccountManager)

	stale := testutil.CreateTestOpportunity(t, h.db, "am-1", "Prospecting", 100, func(o *domain.Opportunity) {
		o.StageEnteredAt = time.Now().UTC().Add(-30 * 24 * time.Hour)
	})
	staler := testutil.CreateTestOpportunity(t, h.db, "am-1", "Qualification", 100, func(o *domain.Opportunity) {
		o.StageEnteredAt = time.Now().UTC().Add(-40 * 24 * time.Hour)
	})
	testutil.CreateTestOpportunity(t, h.db, "am-1", "Proposal", 100)
	testutil.CreateTestOpportunity(t, h.db, "am-2", "Proposal", 100, func(o *domain.Opportunity) {
		o.StageEnteredAt = time.Now().UTC().Add(-90 * 24 * time.Hour)
	})

	overdue, err := h.dashboard.Overdue(as("am-1"))
	require.NoError(t, err)
	require.Len(t, overdue, 2)
	assert.Equal(t, staler.ID, overdue[0].ID)
	assert.Equal(t, stale.ID, overdue[1].ID)
	assert.True(t, overdue[0].Overdue)
	assert.GreaterOrEqual(t, overdue[0].DaysInStage, 40)
}

func TestScopeService_Describe(t *testing.T) {
	h := newHarness(t)
	dept := uuid.New()
	testutil.CreateTestProfile(t, h.db, "mgr-1", domain.RoleManager, func(p *domain.UserProfile) { p.DepartmentID = &dept })
	testutil.CreateTestProfile(t, h.db, "am-1", domain.RoleAccountManager, func(p *domain.UserProfile) { p.DepartmentID = &dept })
	testutil.CreateTestProfile(t, h.db, "am-2", domain.RoleAccountManager)

	scope, err := h.scopes.Describe(as("mgr-1"))
	require.NoError(t, err)
	assert.Equal(t, "department", scope.Strategy)
	assert.Equal(t, []string{"am-1", "mgr-1"}, scope.OwnerIDs)
	assert.Equal(t, domain.RoleManager, scope.Role)
}

func TestSnapshotService_Run(t *testing.T) {
	h := newHarness(t)
	am := testutil.CreateTestProfile(t, h.db, "am-1", domain.RoleAccountManager)
	gone := testutil.CreateTestProfile(t, h.db, "am-gone", domain.RoleAccountManager)
	require.NoError(t, h.db.Model(gone).Update("is_active", false).Error)
	testutil.CreateTestTarget(t, h.db, am.ID, 1200, testutil.Date(2025, time.January, 1), testutil.Date(2025, time.December, 31))
	testutil.CreateTestOpportunity(t, h.db, "am-1", "Closed Won", 25, wonIn(2025, time.February, 14))

	ws, we := service.PreviousMonth(time.Date(2025, time.March, 1, 2, 15, 0, 0, time.UTC))
	assert.Equal(t, testutil.Date(2025, time.February, 1), ws)
	assert.Equal(t, testutil.Date(2025, time.February, 28), we)

	result, err := h.snapshots.Run(asSystem(), ws, we, domain.MeasureRevenue, time.Date(2025, time.March, 1, 2, 15, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Snapshots, "inactive profiles are skipped")
	assert.Equal(t, "achievement/revenue/2025-02-01_2025-02-28.json", result.ReportKey)

	rc, err := h.reports.Get(asSystem(), result.ReportKey)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)

	var report domain.AchievementDTO
	require.NoError(t, json.Unmarshal(body, &report))
	assert.True(t, report.Target.Equal(decimal.NewFromInt(100)))
	assert.True(t, report.Actual.Equal(decimal.NewFromInt(25)))

	history, err := h.snapshots.History(as("am-1"), am.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Percent.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, "2025-02-01", history[0].WindowStart)

	_, err = h.snapshots.Run(asSystem(), ws, we, domain.MeasureRevenue, time.Date(2025, time.March, 2, 2, 15, 0, 0, time.UTC))
	require.NoError(t, err)
	history, err = h.snapshots.History(as("am-1"), am.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1, "re-running a window replaces its snapshots")
}
