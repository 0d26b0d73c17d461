package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/straye-as/pipeline-api/internal/cache"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/mapper"
	"github.com/straye-as/pipeline-api/internal/pipeline"
	"github.com/straye-as/pipeline-api/internal/repository"
	"go.uber.org/zap"
)

const catalogCacheKey = "pipeline:stage-catalog:v1"

// CatalogService loads and validates the stage catalog, caching the rows
type CatalogService struct {
	stageRepo *repository.StageRepository
	cache     cache.Cache
	ttl       time.Duration
	logger    *zap.Logger
}

func NewCatalogService(stageRepo *repository.StageRepository, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CatalogService {
	if c == nil {
		c = cache.NewNoop()
	}
	return &CatalogService{
		stageRepo: stageRepo,
		cache:     c,
		ttl:       ttl,
		logger:    logger,
	}
}

// Catalog returns the validated stage catalog. A cache failure falls back
// to the database; an invalid catalog is a configuration error.
func (s *CatalogService) Catalog(ctx context.Context) (*pipeline.Catalog, error) {
	if raw, ok, err := s.cache.Get(ctx, catalogCacheKey); err != nil {
		s.logger.Warn("stage catalog cache read failed", zap.Error(err))
	} else if ok {
		var stages []domain.Stage
		if err := json.Unmarshal(raw, &stages); err == nil {
			if catalog, err := pipeline.NewCatalog(stages); err == nil {
				return catalog, nil
			}
		}
		s.logger.Warn("discarding unreadable stage catalog cache entry")
	}

	stages, err := s.stageRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage catalog: %w", err)
	}
	catalog, err := pipeline.NewCatalog(stages)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(stages); err == nil {
		if err := s.cache.Set(ctx, catalogCacheKey, raw, s.ttl); err != nil {
			s.logger.Warn("stage catalog cache write failed", zap.Error(err))
		}
	}
	return catalog, nil
}

// Invalidate drops the cached catalog
func (s *CatalogService) Invalidate(ctx context.Context) error {
	return s.cache.Delete(ctx, catalogCacheKey)
}

// ListStages returns the catalog in pipeline order
func (s *CatalogService) ListStages(ctx context.Context) ([]domain.StageDTO, error) {
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	stages := catalog.Stages()
	dtos := make([]domain.StageDTO, len(stages))
	for i := range stages {
		dtos[i] = mapper.ToStageDTO(&stages[i])
	}
	return dtos, nil
}
