package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/cache"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/http/handler"
	"github.com/straye-as/pipeline-api/internal/pipeline"
	"github.com/straye-as/pipeline-api/internal/repository"
	"github.com/straye-as/pipeline-api/internal/service"
	"github.com/straye-as/pipeline-api/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testServer struct {
	db     *gorm.DB
	router chi.Router
}

// newTestServer wires the handlers onto a chi router the same way the API router mounts them
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	oppRepo := repository.NewOpportunityRepository(db)
	historyRepo := repository.NewStageHistoryRepository(db)
	rules := service.PipelineRules{Thresholds: pipeline.DefaultThresholds, DefaultDueDays: 14}

	catalog := service.NewCatalogService(repository.NewStageRepository(db), cache.NewMemory(), time.Minute, logger)
	scopes := service.NewScopeService(repository.NewProfileRepository(db), true, logger)
	targets := service.NewTargetService(repository.NewTargetRepository(db), scopes, service.NewWonOpportunityActuals(oppRepo), logger)
	snapshots := service.NewSnapshotService(targets, scopes, repository.NewSnapshotRepository(db), nil, logger)
	opportunities := service.NewOpportunityService(oppRepo, historyRepo, catalog, scopes, rules, logger, db)
	dashboard := service.NewDashboardService(oppRepo, historyRepo, catalog, scopes, rules, logger)

	stageHandler := handler.NewStageHandler(catalog, logger)
	oppHandler := handler.NewOpportunityHandler(opportunities, logger)
	targetHandler := handler.NewTargetHandler(targets, logger)
	dashboardHandler := handler.NewDashboardHandler(dashboard, targets, snapshots, scopes, logger)

	r := chi.NewRouter()
	r.Get("/stages", stageHandler.List)
	r.Post("/stages/refresh", stageHandler.Refresh)
	r.Route("/opportunities", func(r chi.Router) {
		r.Get("/", oppHandler.List)
		r.Post("/", oppHandler.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", oppHandler.GetByID)
			r.Delete("/", oppHandler.Delete)
			r.Post("/advance", oppHandler.Advance)
			r.Post("/win", oppHandler.Win)
			r.Post("/lose", oppHandler.Lose)
			r.Post("/reopen", oppHandler.Reopen)
			r.Post("/hold", oppHandler.Hold)
			r.Post("/resume", oppHandler.Resume)
			r.Get("/history", oppHandler.History)
			r.Get("/score", oppHandler.Score)
		})
	})
	r.Get("/targets", targetHandler.List)
	r.Post("/targets", targetHandler.Create)
	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/forecast", dashboardHandler.Forecast)
		r.Get("/achievement", dashboardHandler.Achievement)
		r.Get("/achievement/history", dashboardHandler.AchievementHistory)
		r.Get("/leaderboard", dashboardHandler.Leaderboard)
		r.Get("/overdue", dashboardHandler.Overdue)
		r.Get("/scope", dashboardHandler.Scope)
	})

	return &testServer{db: db, router: r}
}

func userContext(userID string) context.Context {
	return auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:      userID,
		DisplayName: "User " + userID,
		Email:       userID + "@example.com",
	})
}

// do sends a request as userID; body may be nil, a string or a value to marshal
func (s *testServer) do(t *testing.T, userID, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(userContext(userID))

	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), target), rr.Body.String())
}

func apiError(t *testing.T, rr *httptest.ResponseRecorder) domain.APIError {
	t.Helper()
	var e domain.APIError
	decode(t, rr, &e)
	return e
}
