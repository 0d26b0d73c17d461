package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/mapper"
	"github.com/straye-as/pipeline-api/internal/pipeline"
	"github.com/straye-as/pipeline-api/internal/repository"
	"go.uber.org/zap"
)

// TargetService manages sales targets and achievement reporting
type TargetService struct {
	targetRepo *repository.TargetRepository
	scopes     *ScopeService
	actuals    ActualsProvider
	logger     *zap.Logger
}

func NewTargetService(targetRepo *repository.TargetRepository, scopes *ScopeService, actuals ActualsProvider, logger *zap.Logger) *TargetService {
	return &TargetService{
		targetRepo: targetRepo,
		scopes:     scopes,
		actuals:    actuals,
		logger:     logger,
	}
}

// ParseWindow parses an inclusive YYYY-MM-DD window
func ParseWindow(start, end string) (time.Time, time.Time, error) {
	ws, err := ParseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	we, err := ParseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if we.Before(ws) {
		return time.Time{}, time.Time{}, domain.InvalidArgument("end %s is before start %s", end, start)
	}
	return ws, we, nil
}

// Create assigns a target to a profile within the caller's scope
func (s *TargetService) Create(ctx context.Context, req *domain.CreateTargetRequest) (*domain.SalesTargetDTO, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoUserContext
	}
	start, end, err := ParseWindow(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, err
	}
	if req.Amount.IsNegative() {
		return nil, domain.InvalidArgument("target amount must not be negative")
	}
	measure := req.Measure
	if measure == "" {
		measure = domain.MeasureRevenue
	}
	if !measure.IsValid() {
		return nil, domain.InvalidArgument("unknown target measure %q", measure)
	}

	scope, dir, err := s.scopes.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if scope.Role == domain.RoleAccountManager {
		return nil, domain.Forbidden("only managers can assign sales targets")
	}
	if _, found := dir.Profile(req.AssignedTo); !found {
		return nil, domain.NotFound("profile %s not found", req.AssignedTo)
	}
	if scope.Strategy != pipeline.StrategyEveryone && !scope.IncludesProfile(req.AssignedTo) {
		return nil, domain.Forbidden("profile %s is outside your scope", req.AssignedTo)
	}

	target := &domain.SalesTarget{
		AssignedTo:  req.AssignedTo,
		Amount:      req.Amount,
		Measure:     measure,
		PeriodStart: start,
		PeriodEnd:   end,
		Notes:       req.Notes,
		CreatedBy:   user.UserID,
	}
	if err := s.targetRepo.Create(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to create target: %w", err)
	}

	s.logger.Info("sales target created",
		zap.String("target_id", target.ID.String()),
		zap.String("assigned_to", target.AssignedTo.String()),
		zap.String("measure", string(measure)),
		zap.String("amount", target.Amount.String()),
	)

	dto := mapper.ToSalesTargetDTO(target)
	return &dto, nil
}

// List returns targets visible to the caller, optionally overlapping a window
func (s *TargetService) List(ctx context.Context, windowStart, windowEnd *time.Time, measure *domain.TargetMeasure) ([]domain.SalesTargetDTO, error) {
	scope, _, err := s.scopes.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	targets, err := s.targetRepo.List(ctx, targetFilters(scope, measure, windowStart, windowEnd))
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}

	dtos := make([]domain.SalesTargetDTO, len(targets))
	for i := range targets {
		dtos[i] = mapper.ToSalesTargetDTO(&targets[i])
	}
	return dtos, nil
}

func targetFilters(scope *pipeline.OrgScope, measure *domain.TargetMeasure, windowStart, windowEnd *time.Time) *repository.TargetFilters {
	return &repository.TargetFilters{
		AssignedTo:   scope.ProfileIDs,
		AllAssignees: scope.Strategy == pipeline.StrategyEveryone,
		Measure:      measure,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
	}
}

// Achievement compares the caller's apportioned targets with actuals. When
// profileID is set the report is narrowed to that profile.
func (s *TargetService) Achievement(ctx context.Context, windowStart, windowEnd time.Time, measure domain.TargetMeasure, profileID *uuid.UUID) (*domain.AchievementDTO, error) {
	scope, dir, err := s.scopes.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	members := scopeMembers(scope, dir)
	if profileID != nil {
		if scope.Strategy != pipeline.StrategyEveryone && !scope.IncludesProfile(*profileID) {
			return nil, domain.Forbidden("profile %s is outside your scope", *profileID)
		}
		p, found := dir.Profile(*profileID)
		if !found {
			return nil, domain.NotFound("profile %s not found", *profileID)
		}
		members = []domain.UserProfile{p}
	}

	return s.AchievementFor(ctx, scope.Strategy, members, windowStart, windowEnd, measure)
}

// AchievementFor computes the achievement report of an explicit member list
func (s *TargetService) AchievementFor(ctx context.Context, strategy string, members []domain.UserProfile, windowStart, windowEnd time.Time, measure domain.TargetMeasure) (*domain.AchievementDTO, error) {
	if windowEnd.Before(windowStart) {
		return nil, domain.InvalidArgument("window end %s is before start %s", windowEnd.Format(dateLayout), windowStart.Format(dateLayout))
	}
	if measure == "" {
		measure = domain.MeasureRevenue
	}
	if !measure.IsValid() {
		return nil, domain.InvalidArgument("unknown target measure %q", measure)
	}

	profileIDs := make([]uuid.UUID, len(members))
	ownerIDs := make([]string, 0, len(members))
	for i, m := range members {
		profileIDs[i] = m.ID
		if m.UserID != "" {
			ownerIDs = append(ownerIDs, m.UserID)
		}
	}

	targets, err := s.targetRepo.List(ctx, &repository.TargetFilters{
		AssignedTo:  profileIDs,
		Measure:     &measure,
		WindowStart: &windowStart,
		WindowEnd:   &windowEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	byAssignee := make(map[uuid.UUID][]domain.SalesTarget)
	for _, t := range targets {
		byAssignee[t.AssignedTo] = append(byAssignee[t.AssignedTo], t)
	}

	actuals, err := s.actuals.Actuals(ctx, &repository.OwnerScope{OwnerIDs: ownerIDs}, measure, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	report := &domain.AchievementDTO{
		WindowStart: windowStart.Format(dateLayout),
		WindowEnd:   windowEnd.Format(dateLayout),
		Measure:     measure,
		Target:      decimal.Zero,
		Actual:      decimal.Zero,
		Source:      s.actuals.Name(),
		Scope:       strategy,
		Members:     make([]domain.MemberAchievementDTO, 0, len(members)),
	}
	for _, m := range members {
		target, err := pipeline.Rollup(byAssignee[m.ID], windowStart, windowEnd)
		if err != nil {
			return nil, err
		}
		actual := actuals[m.UserID]
		report.Target = report.Target.Add(target)
		report.Actual = report.Actual.Add(actual)
		report.Members = append(report.Members, domain.MemberAchievementDTO{
			ProfileID:   m.ID,
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			Target:      target,
			Actual:      actual,
			Percent:     pipeline.AchievementPercent(actual, target).Round(2),
		})
	}
	report.Percent = pipeline.AchievementPercent(report.Actual, report.Target).Round(2)

	return report, nil
}

// scopeMembers lists the directory profiles inside a scope in scope order
func scopeMembers(scope *pipeline.OrgScope, dir *pipeline.Directory) []domain.UserProfile {
	members := make([]domain.UserProfile, 0, len(scope.ProfileIDs))
	for _, id := range scope.ProfileIDs {
		if p, found := dir.Profile(id); found {
			members = append(members, p)
		}
	}
	return members
}
