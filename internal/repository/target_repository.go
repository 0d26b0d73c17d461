package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"gorm.io/gorm"
)

// TargetFilters selects targets by assignee and period overlap
type TargetFilters struct {
	// AssignedTo restricts to these profiles unless AllAssignees is set
	AssignedTo   []uuid.UUID
	AllAssignees bool
	Measure      *domain.TargetMeasure
	// WindowStart and WindowEnd select targets whose period overlaps the window
	WindowStart *time.Time
	WindowEnd   *time.Time
}

type TargetRepository struct {
	db *gorm.DB
}

func NewTargetRepository(db *gorm.DB) *TargetRepository {
	return &TargetRepository{db: db}
}

func (r *TargetRepository) Create(ctx context.Context, target *domain.SalesTarget) error {
	return r.db.WithContext(ctx).Create(target).Error
}

func (r *TargetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SalesTarget, error) {
	var target domain.SalesTarget
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&target).Error; err != nil {
		return nil, err
	}
	return &target, nil
}

// List returns targets matching filters ordered by period start
func (r *TargetRepository) List(ctx context.Context, filters *TargetFilters) ([]domain.SalesTarget, error) {
	var targets []domain.SalesTarget
	query := r.db.WithContext(ctx).Model(&domain.SalesTarget{})

	if filters != nil {
		if !filters.AllAssignees {
			if len(filters.AssignedTo) == 0 {
				return targets, nil
			}
			query = query.Where("assigned_to IN ?", filters.AssignedTo)
		}
		if filters.Measure != nil {
			query = query.Where("measure = ?", *filters.Measure)
		}
		if filters.WindowEnd != nil {
			query = query.Where("period_start <= ?", *filters.WindowEnd)
		}
		if filters.WindowStart != nil {
			query = query.Where("period_end >= ?", *filters.WindowStart)
		}
	}

	err := query.Order("period_start ASC, id ASC").Find(&targets).Error
	return targets, err
}
