package service

import (
	"context"
	"fmt"

	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/mapper"
	"github.com/straye-as/pipeline-api/internal/pipeline"
	"github.com/straye-as/pipeline-api/internal/repository"
	"go.uber.org/zap"
)

// ScopeService resolves which owners and profiles the caller may see
type ScopeService struct {
	profileRepo *repository.ProfileRepository
	resolver    *pipeline.ScopeResolver
	logger      *zap.Logger
}

func NewScopeService(profileRepo *repository.ProfileRepository, includeUnassigned bool, logger *zap.Logger) *ScopeService {
	return &ScopeService{
		profileRepo: profileRepo,
		resolver:    pipeline.NewScopeResolver(pipeline.ManagerStrategies(includeUnassigned)...),
		logger:      logger,
	}
}

// Directory loads the org directory
func (s *ScopeService) Directory(ctx context.Context) (*pipeline.Directory, error) {
	profiles, err := s.profileRepo.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	memberships, err := s.profileRepo.ListMemberships(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load team memberships: %w", err)
	}
	return pipeline.NewDirectory(profiles, memberships), nil
}

// Resolve computes the scope of the authenticated caller
func (s *ScopeService) Resolve(ctx context.Context) (*pipeline.OrgScope, *pipeline.Directory, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, nil, ErrNoUserContext
	}

	dir, err := s.Directory(ctx)
	if err != nil {
		return nil, nil, err
	}

	var viewer domain.UserProfile
	if user.IsSystem() {
		viewer = domain.UserProfile{UserID: user.UserID, DisplayName: user.DisplayName, Role: domain.RoleAPIService, IsActive: true}
	} else {
		profile, found := dir.ProfileByUserID(user.UserID)
		if !found {
			return nil, nil, ErrNoProfile
		}
		viewer = profile
	}

	scope, err := s.resolver.Resolve(viewer, dir)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Debug("resolved org scope",
		zap.String("user_id", user.UserID),
		zap.String("strategy", scope.Strategy),
		zap.Int("owners", len(scope.OwnerIDs)),
	)
	return scope, dir, nil
}

// Everyone returns the unrestricted scope used by background jobs
func (s *ScopeService) Everyone(ctx context.Context) (*pipeline.OrgScope, *pipeline.Directory, error) {
	dir, err := s.Directory(ctx)
	if err != nil {
		return nil, nil, err
	}
	scope, err := s.resolver.Resolve(domain.UserProfile{UserID: auth.SystemUserID, Role: domain.RoleAPIService}, dir)
	if err != nil {
		return nil, nil, err
	}
	return scope, dir, nil
}

// Describe returns the caller's scope for inspection
func (s *ScopeService) Describe(ctx context.Context) (*domain.ScopeDTO, error) {
	scope, _, err := s.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToScopeDTO(scope)
	return &dto, nil
}

// ownerScope converts an org scope into a repository filter
func ownerScope(scope *pipeline.OrgScope) *repository.OwnerScope {
	return &repository.OwnerScope{
		All:      scope.Strategy == pipeline.StrategyEveryone,
		OwnerIDs: scope.OwnerIDs,
	}
}

