package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/mapper"
	"github.com/straye-as/pipeline-api/internal/pipeline"
	"github.com/straye-as/pipeline-api/internal/repository"
	"go.uber.org/zap"
)

// DashboardService composes read-only pipeline views for the caller's scope
type DashboardService struct {
	oppRepo     *repository.OpportunityRepository
	historyRepo *repository.StageHistoryRepository
	catalog     *CatalogService
	scopes      *ScopeService
	rules       PipelineRules
	logger      *zap.Logger
	now         func() time.Time
}

func NewDashboardService(
	oppRepo *repository.OpportunityRepository,
	historyRepo *repository.StageHistoryRepository,
	catalog *CatalogService,
	scopes *ScopeService,
	rules PipelineRules,
	logger *zap.Logger,
) *DashboardService {
	return &DashboardService{
		oppRepo:     oppRepo,
		historyRepo: historyRepo,
		catalog:     catalog,
		scopes:      scopes,
		rules:       rules,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source
func (s *DashboardService) SetClock(now func() time.Time) {
	s.now = now
}

// Forecast summarizes the visible pipeline for a period. Every non-archived
// opportunity in scope is loaded so the undated count is complete.
func (s *DashboardService) Forecast(ctx context.Context, periodStart, periodEnd time.Time, adjustmentPercent int) (*domain.ForecastDTO, error) {
	if adjustmentPercent < -100 || adjustmentPercent > 100 {
		return nil, domain.InvalidArgument("adjustment %d is outside -100..100", adjustmentPercent)
	}

	scope, _, err := s.scopes.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	opps, err := s.oppRepo.ListAll(ctx, &repository.OpportunityFilters{Scope: ownerScope(scope)})
	if err != nil {
		return nil, fmt.Errorf("failed to list opportunities: %w", err)
	}

	summary, err := pipeline.Summarize(opps, periodStart, periodEnd, adjustmentPercent)
	if err != nil {
		return nil, err
	}

	dto := mapper.ToForecastDTO(summary, adjustmentPercent, scope.Strategy)
	return &dto, nil
}

// withHistory loads stage history for a set of opportunities
func (s *DashboardService) withHistory(ctx context.Context, opps []domain.Opportunity) (map[uuid.UUID][]domain.StageHistoryEntry, error) {
	ids := make([]uuid.UUID, len(opps))
	for i := range opps {
		ids[i] = opps[i].ID
	}
	history, err := s.historyRepo.ListByOpportunities(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage history: %w", err)
	}
	return history, nil
}

// Leaderboard ranks owners in scope by cumulative performance score
func (s *DashboardService) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntryDTO, error) {
	scope, _, err := s.scopes.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	opps, err := s.oppRepo.ListAll(ctx, &repository.OpportunityFilters{Scope: ownerScope(scope)})
	if err != nil {
		return nil, fmt.Errorf("failed to list opportunities: %w", err)
	}
	history, err := s.withHistory(ctx, opps)
	if err != nil {
		return nil, err
	}

	scores, err := pipeline.RankOwners(catalog, opps, history)
	if err != nil {
		return nil, err
	}
	return mapper.ToLeaderboard(scores), nil
}

// Overdue lists open opportunities that stayed too long in their stage,
// longest first
func (s *DashboardService) Overdue(ctx context.Context) ([]domain.OpportunityDTO, error) {
	scope, _, err := s.scopes.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	opps, err := s.oppRepo.ListAll(ctx, &repository.OpportunityFilters{
		Scope:    ownerScope(scope),
		Statuses: []domain.OpportunityStatus{domain.OpportunityStatusOpen},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list opportunities: %w", err)
	}
	history, err := s.withHistory(ctx, opps)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := make([]domain.OpportunityDTO, 0)
	for i := range opps {
		o := &opps[i]
		age, err := pipeline.AgeInStage(catalog, o, history[o.ID], s.rules.DefaultDueDays, now)
		if err != nil {
			return nil, err
		}
		if !age.Overdue {
			continue
		}
		weighted, err := pipeline.WeightedAmount(o, 0)
		if err != nil {
			return nil, err
		}
		result = append(result, mapper.ToOpportunityDTO(o, weighted, age))
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].DaysInStage > result[j].DaysInStage
	})
	return result, nil
}
