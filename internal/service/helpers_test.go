package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/cache"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/pipeline"
	"github.com/straye-as/pipeline-api/internal/repository"
	"github.com/straye-as/pipeline-api/internal/service"
	"github.com/straye-as/pipeline-api/internal/storage"
	"github.com/straye-as/pipeline-api/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type harness struct {
	db            *gorm.DB
	catalog       *service.CatalogService
	scopes        *service.ScopeService
	opportunities *service.OpportunityService
	targets       *service.TargetService
	dashboard     *service.DashboardService
	snapshots     *service.SnapshotService
	reports       *storage.LocalStorage
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	oppRepo := repository.NewOpportunityRepository(db)
	historyRepo := repository.NewStageHistoryRepository(db)
	rules := service.PipelineRules{Thresholds: pipeline.DefaultThresholds, DefaultDueDays: 14}

	reports, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	catalog := service.NewCatalogService(repository.NewStageRepository(db), cache.NewMemory(), time.Minute, logger)
	scopes := service.NewScopeService(repository.NewProfileRepository(db), true, logger)
	targets := service.NewTargetService(repository.NewTargetRepository(db), scopes, service.NewWonOpportunityActuals(oppRepo), logger)

	return &harness{
		db:            db,
		catalog:       catalog,
		scopes:        scopes,
		opportunities: service.NewOpportunityService(oppRepo, historyRepo, catalog, scopes, rules, logger, db),
		targets:       targets,
		dashboard:     service.NewDashboardService(oppRepo, historyRepo, catalog, scopes, rules, logger),
		snapshots:     service.NewSnapshotService(targets, scopes, repository.NewSnapshotRepository(db), reports, logger),
		reports:       reports,
	}
}

// as returns a context authenticated as userID
func as(userID string) context.Context {
	return auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:      userID,
		DisplayName: "User " + userID,
	})
}

// asSystem returns a context authenticated with the API key
func asSystem() context.Context {
	return auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID: auth.SystemUserID,
		Roles:  []domain.UserRoleType{domain.RoleAPIService},
	})
}

func intPtr(v int) *int {
	return &v
}
