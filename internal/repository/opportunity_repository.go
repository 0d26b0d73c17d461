package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"gorm.io/gorm"
)

// OpportunityFilters contains the filter options for listing opportunities.
// Archived and deleted opportunities are always excluded.
type OpportunityFilters struct {
	Scope    *OwnerScope
	Statuses []domain.OpportunityStatus
	Stage    *string
	Category *domain.ForecastCategory
	// CloseFrom and CloseTo bound ExpectedCloseDate, both inclusive
	CloseFrom *time.Time
	CloseTo   *time.Time
}

var opportunitySortFields = map[string]string{
	"createdAt":         "created_at",
	"updatedAt":         "updated_at",
	"title":             "title",
	"amount":            "amount",
	"probability":       "probability",
	"expectedCloseDate": "expected_close_date",
	"stageEnteredAt":    "stage_entered_at",
}

type OpportunityRepository struct {
	db *gorm.DB
}

func NewOpportunityRepository(db *gorm.DB) *OpportunityRepository {
	return &OpportunityRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *OpportunityRepository) WithTx(tx *gorm.DB) *OpportunityRepository {
	return &OpportunityRepository{db: tx}
}

func (r *OpportunityRepository) Create(ctx context.Context, opp *domain.Opportunity) error {
	return r.db.WithContext(ctx).Create(opp).Error
}

// GetByID returns a non-deleted opportunity or gorm.ErrRecordNotFound
func (r *OpportunityRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Opportunity, error) {
	var opp domain.Opportunity
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", id, false).
		First(&opp).Error
	if err != nil {
		return nil, err
	}
	return &opp, nil
}

// UpdateWithVersion writes every mutable column if the stored version still
// equals expectedVersion, bumping it by one. It reports whether a row matched.
func (r *OpportunityRepository) UpdateWithVersion(ctx context.Context, opp *domain.Opportunity, expectedVersion int) (bool, error) {
	next := expectedVersion + 1
	result := r.db.WithContext(ctx).Model(&domain.Opportunity{}).
		Where("id = ? AND version = ? AND is_deleted = ?", opp.ID, expectedVersion, false).
		Updates(map[string]interface{}{
			"stage":                opp.Stage,
			"stage_entered_at":     opp.StageEnteredAt,
			"forecast_category":    opp.ForecastCategory,
			"category_locked":      opp.CategoryLocked,
			"probability":          opp.Probability,
			"status":               opp.Status,
			"actual_close_date":    opp.ActualCloseDate,
			"loss_reason":          opp.LossReason,
			"loss_reason_category": opp.LossReasonCategory,
			"version":              next,
			"updated_at":           time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	opp.Version = next
	return true, nil
}

// SoftDelete flags the opportunity as deleted
func (r *OpportunityRepository) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.Opportunity{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected > 0, result.Error
}

// List returns one page of opportunities matching filters
func (r *OpportunityRepository) List(ctx context.Context, page, pageSize int, filters *OpportunityFilters, sort SortConfig) ([]domain.Opportunity, int64, error) {
	var opps []domain.Opportunity
	var total int64

	page, pageSize = normalizePage(page, pageSize)
	query := r.applyFilters(r.db.WithContext(ctx).Model(&domain.Opportunity{}), filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order(BuildOrderClause(sort, opportunitySortFields, "updated_at")).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&opps).Error
	return opps, total, err
}

// ListAll returns every opportunity matching filters, for dashboard aggregation
func (r *OpportunityRepository) ListAll(ctx context.Context, filters *OpportunityFilters) ([]domain.Opportunity, error) {
	var opps []domain.Opportunity
	err := r.applyFilters(r.db.WithContext(ctx).Model(&domain.Opportunity{}), filters).
		Order("expected_close_date ASC, id ASC").
		Find(&opps).Error
	return opps, err
}

// ListWon returns won opportunities closed within [from, to]
func (r *OpportunityRepository) ListWon(ctx context.Context, scope *OwnerScope, from, to time.Time) ([]domain.Opportunity, error) {
	var opps []domain.Opportunity
	query := r.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Where("status = ?", domain.OpportunityStatusWon).
		Where("actual_close_date >= ? AND actual_close_date <= ?", from, to)
	query = ApplyOwnerScope(query, scope, "owner_id")
	err := query.Order("actual_close_date ASC").Find(&opps).Error
	return opps, err
}

func (r *OpportunityRepository) applyFilters(query *gorm.DB, filters *OpportunityFilters) *gorm.DB {
	query = query.
		Where("is_deleted = ?", false).
		Where("status <> ?", domain.OpportunityStatusArchived)
	if filters == nil {
		return query
	}

	query = ApplyOwnerScope(query, filters.Scope, "owner_id")
	if len(filters.Statuses) > 0 {
		query = query.Where("status IN ?", filters.Statuses)
	}
	if filters.Stage != nil {
		query = query.Where("stage = ?", *filters.Stage)
	}
	if filters.Category != nil {
		query = query.Where("forecast_category = ?", *filters.Category)
	}
	if filters.CloseFrom != nil {
		query = query.Where("expected_close_date >= ?", *filters.CloseFrom)
	}
	if filters.CloseTo != nil {
		query = query.Where("expected_close_date <= ?", *filters.CloseTo)
	}
	return query
}
