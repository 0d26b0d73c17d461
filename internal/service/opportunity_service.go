package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/mapper"
	"github.com/straye-as/pipeline-api/internal/pipeline"
	"github.com/straye-as/pipeline-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// PipelineRules are the tunable rules shared by opportunity and dashboard services
type PipelineRules struct {
	Thresholds     pipeline.Thresholds
	DefaultDueDays int
}

// OpportunityService owns the opportunity lifecycle
type OpportunityService struct {
	oppRepo     *repository.OpportunityRepository
	historyRepo *repository.StageHistoryRepository
	catalog     *CatalogService
	scopes      *ScopeService
	rules       PipelineRules
	logger      *zap.Logger
	db          *gorm.DB
	now         func() time.Time
}

func NewOpportunityService(
	oppRepo *repository.OpportunityRepository,
	historyRepo *repository.StageHistoryRepository,
	catalog *CatalogService,
	scopes *ScopeService,
	rules PipelineRules,
	logger *zap.Logger,
	db *gorm.DB,
) *OpportunityService {
	return &OpportunityService{
		oppRepo:     oppRepo,
		historyRepo: historyRepo,
		catalog:     catalog,
		scopes:      scopes,
		rules:       rules,
		logger:      logger,
		db:          db,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source
func (s *OpportunityService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *OpportunityService) machine(ctx context.Context) (*pipeline.Machine, error) {
	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.NewMachine(catalog, s.rules.Thresholds), nil
}

func actorFromContext(ctx context.Context) (pipeline.Actor, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return pipeline.Actor{}, ErrNoUserContext
	}
	return pipeline.Actor{ID: user.UserID, Name: user.DisplayName}, nil
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight UTC
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, domain.InvalidArgument("invalid date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}

// Create registers a new opportunity in the first catalog stage
func (s *OpportunityService) Create(ctx context.Context, req *domain.CreateOpportunityRequest) (*domain.OpportunityDTO, error) {
	if req.Amount.IsNegative() {
		return nil, domain.InvalidArgument("amount must not be negative")
	}
	if req.Margin.IsNegative() {
		return nil, domain.InvalidArgument("margin must not be negative")
	}

	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	scope, _, err := s.scopes.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	machine, err := s.machine(ctx)
	if err != nil {
		return nil, err
	}

	ownerID := req.OwnerID
	ownerName := req.OwnerName
	if ownerID == "" {
		ownerID = actor.ID
		ownerName = actor.Name
	}
	if !scope.IncludesOwner(ownerID) && scope.Strategy != pipeline.StrategyEveryone {
		return nil, domain.Forbidden("owner %s is outside your scope", ownerID)
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = "NOK"
	}

	opp := domain.Opportunity{
		Title:            req.Title,
		Description:      req.Description,
		Amount:           req.Amount,
		Margin:           req.Margin,
		Currency:         currency,
		OwnerID:          ownerID,
		OwnerName:        ownerName,
		ForecastCategory: req.ForecastCategory,
		CategoryLocked:   req.ForecastCategory != "",
	}
	opp.ID = uuid.New()
	if req.ExpectedCloseDate != "" {
		d, err := ParseDate(req.ExpectedCloseDate)
		if err != nil {
			return nil, err
		}
		opp.ExpectedCloseDate = &d
	}

	step, err := machine.Create(opp, actor, s.now())
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.oppRepo.WithTx(tx).Create(ctx, &step.Opportunity); err != nil {
			return fmt.Errorf("failed to create opportunity: %w", err)
		}
		if err := s.historyRepo.WithTx(tx).Create(ctx, &step.Entry); err != nil {
			return fmt.Errorf("failed to record stage history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("opportunity created",
		zap.String("opportunity_id", step.Opportunity.ID.String()),
		zap.String("owner_id", ownerID),
		zap.String("stage", step.Opportunity.Stage),
	)

	return s.toDTO(machine.Catalog(), &step.Opportunity)
}

// load fetches an opportunity and checks it is within the caller's scope
func (s *OpportunityService) load(ctx context.Context, id uuid.UUID) (*domain.Opportunity, error) {
	scope, _, err := s.scopes.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	opp, err := s.oppRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translateLookup(err, "opportunity", id)
	}
	if err := checkVisible(scope, opp); err != nil {
		return nil, err
	}
	return opp, nil
}

func checkVisible(scope *pipeline.OrgScope, opp *domain.Opportunity) error {
	if scope.Strategy == pipeline.StrategyEveryone || scope.IncludesOwner(opp.OwnerID) {
		return nil
	}
	return domain.Forbidden("opportunity %s is outside your scope", opp.ID)
}

// GetByID returns one opportunity
func (s *OpportunityService) GetByID(ctx context.Context, id uuid.UUID) (*domain.OpportunityDTO, error) {
	opp, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return s.toDTO(catalog, opp)
}

// List returns a page of opportunities visible to the caller
func (s *OpportunityService) List(ctx context.Context, page, pageSize int, filters *repository.OpportunityFilters, sort repository.SortConfig) (*domain.PaginatedResponse, error) {
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > repository.MaxPageSize {
		pageSize = repository.MaxPageSize
	}
	if page < 1 {
		page = 1
	}

	scope, _, err := s.scopes.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	if filters == nil {
		filters = &repository.OpportunityFilters{}
	}
	filters.Scope = ownerScope(scope)

	opps, total, err := s.oppRepo.List(ctx, page, pageSize, filters, sort)
	if err != nil {
		return nil, fmt.Errorf("failed to list opportunities: %w", err)
	}

	dtos := make([]domain.OpportunityDTO, len(opps))
	for i := range opps {
		dto, err := s.toDTO(catalog, &opps[i])
		if err != nil {
			return nil, err
		}
		dtos[i] = *dto
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &domain.PaginatedResponse{
		Data:       dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// Delete soft-deletes an opportunity within the caller's scope
func (s *OpportunityService) Delete(ctx context.Context, id uuid.UUID) error {
	scope, _, err := s.scopes.Resolve(ctx)
	if err != nil {
		return err
	}
	opp, err := s.oppRepo.GetByID(ctx, id)
	if err != nil {
		return translateLookup(err, "opportunity", id)
	}
	if err := checkVisible(scope, opp); err != nil {
		return err
	}

	deleted, err := s.oppRepo.SoftDelete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete opportunity: %w", err)
	}
	if !deleted {
		return domain.NotFound("opportunity %s not found", id)
	}
	s.logger.Info("opportunity deleted", zap.String("opportunity_id", id.String()))
	return nil
}

// planFunc plans one transition for a loaded opportunity
type planFunc func(m *pipeline.Machine, opp domain.Opportunity, actor pipeline.Actor, now time.Time) (*pipeline.Step, error)

// transition runs a planned transition as one unit of work: the opportunity
// update is conditional on its version and the history entry is appended in
// the same transaction.
func (s *OpportunityService) transition(ctx context.Context, id uuid.UUID, expectedVersion *int, plan planFunc) (*domain.OpportunityDTO, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	scope, _, err := s.scopes.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	machine, err := s.machine(ctx)
	if err != nil {
		return nil, err
	}

	var step *pipeline.Step
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		oppRepo := s.oppRepo.WithTx(tx)

		opp, err := oppRepo.GetByID(ctx, id)
		if err != nil {
			return translateLookup(err, "opportunity", id)
		}
		if err := checkVisible(scope, opp); err != nil {
			return err
		}
		if expectedVersion != nil && *expectedVersion != opp.Version {
			return domain.Conflict("opportunity %s is at version %d, not %d", id, opp.Version, *expectedVersion)
		}

		step, err = plan(machine, *opp, actor, s.now())
		if err != nil {
			return err
		}

		updated, err := oppRepo.UpdateWithVersion(ctx, &step.Opportunity, opp.Version)
		if err != nil {
			return fmt.Errorf("failed to update opportunity: %w", err)
		}
		if !updated {
			return domain.Conflict("opportunity %s was modified concurrently", id)
		}
		if err := s.historyRepo.WithTx(tx).Create(ctx, &step.Entry); err != nil {
			return fmt.Errorf("failed to record stage history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("opportunity transitioned",
		zap.String("opportunity_id", id.String()),
		zap.String("action", string(step.Action)),
		zap.String("to_stage", step.Entry.ToStage),
		zap.String("actor", actor.ID),
		zap.Int("version", step.Opportunity.Version),
	)

	return s.toDTO(machine.Catalog(), &step.Opportunity)
}

// AdvanceStage moves an opportunity forward to a later open stage
func (s *OpportunityService) AdvanceStage(ctx context.Context, id uuid.UUID, req *domain.AdvanceStageRequest) (*domain.OpportunityDTO, error) {
	return s.transition(ctx, id, req.Version, func(m *pipeline.Machine, opp domain.Opportunity, actor pipeline.Actor, now time.Time) (*pipeline.Step, error) {
		return m.Advance(opp, req.Stage, actor, req.Notes, now)
	})
}

// MarkWon closes an opportunity as won
func (s *OpportunityService) MarkWon(ctx context.Context, id uuid.UUID, req *domain.TransitionRequest) (*domain.OpportunityDTO, error) {
	return s.transition(ctx, id, req.Version, func(m *pipeline.Machine, opp domain.Opportunity, actor pipeline.Actor, now time.Time) (*pipeline.Step, error) {
		return m.MarkWon(opp, actor, req.Notes, now)
	})
}

// MarkLost closes an opportunity as lost with a categorized reason
func (s *OpportunityService) MarkLost(ctx context.Context, id uuid.UUID, req *domain.LoseOpportunityRequest) (*domain.OpportunityDTO, error) {
	return s.transition(ctx, id, req.Version, func(m *pipeline.Machine, opp domain.Opportunity, actor pipeline.Actor, now time.Time) (*pipeline.Step, error) {
		return m.MarkLost(opp, req.Reason, req.Notes, actor, now)
	})
}

// Reopen moves a lost opportunity back to the first stage
func (s *OpportunityService) Reopen(ctx context.Context, id uuid.UUID, req *domain.TransitionRequest) (*domain.OpportunityDTO, error) {
	return s.transition(ctx, id, req.Version, func(m *pipeline.Machine, opp domain.Opportunity, actor pipeline.Actor, now time.Time) (*pipeline.Step, error) {
		return m.Reopen(opp, actor, req.Notes, now)
	})
}

// Hold parks an open opportunity
func (s *OpportunityService) Hold(ctx context.Context, id uuid.UUID, req *domain.TransitionRequest) (*domain.OpportunityDTO, error) {
	return s.transition(ctx, id, req.Version, func(m *pipeline.Machine, opp domain.Opportunity, actor pipeline.Actor, now time.Time) (*pipeline.Step, error) {
		return m.Hold(opp, actor, req.Notes, now)
	})
}

// Resume reactivates an opportunity on hold
func (s *OpportunityService) Resume(ctx context.Context, id uuid.UUID, req *domain.TransitionRequest) (*domain.OpportunityDTO, error) {
	return s.transition(ctx, id, req.Version, func(m *pipeline.Machine, opp domain.Opportunity, actor pipeline.Actor, now time.Time) (*pipeline.Step, error) {
		return m.Resume(opp, actor, req.Notes, now)
	})
}

// GetStageHistory returns the transitions of an opportunity, oldest first
func (s *OpportunityService) GetStageHistory(ctx context.Context, id uuid.UUID) ([]domain.StageHistoryDTO, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	history, err := s.historyRepo.ListByOpportunity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get stage history: %w", err)
	}

	dtos := make([]domain.StageHistoryDTO, len(history))
	for i := range history {
		dtos[i] = mapper.ToStageHistoryDTO(&history[i])
	}
	return dtos, nil
}

// GetScore returns the cumulative performance score of an opportunity
func (s *OpportunityService) GetScore(ctx context.Context, id uuid.UUID) (*domain.ScoreDTO, error) {
	opp, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	history, err := s.historyRepo.ListByOpportunity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get stage history: %w", err)
	}

	score, err := pipeline.CumulativeScore(catalog, opp, history)
	if err != nil {
		return nil, err
	}
	return &domain.ScoreDTO{
		OpportunityID: opp.ID,
		Stage:         opp.Stage,
		Points:        score.Points,
		Derivation:    string(score.Derivation),
	}, nil
}

// toDTO maps an opportunity with its weighted amount and stage age. A stored
// row whose amount or probability is out of range, or whose stage has left the
// catalog, fails with the typed error rather than rendering a misleading value.
func (s *OpportunityService) toDTO(catalog *pipeline.Catalog, opp *domain.Opportunity) (*domain.OpportunityDTO, error) {
	weighted, err := pipeline.WeightedAmount(opp, 0)
	if err != nil {
		return nil, fmt.Errorf("opportunity %s: %w", opp.ID, err)
	}

	var age pipeline.StageAge
	if opp.Status.IsActive() {
		age, err = pipeline.AgeInStage(catalog, opp, nil, s.rules.DefaultDueDays, s.now())
		if err != nil {
			s.logger.Warn("cannot compute stage age",
				zap.String("opportunity_id", opp.ID.String()),
				zap.String("stage", opp.Stage),
				zap.Error(err),
			)
			return nil, fmt.Errorf("opportunity %s: %w", opp.ID, err)
		}
	}

	dto := mapper.ToOpportunityDTO(opp, weighted, age)
	return &dto, nil
}
