package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"gorm.io/gorm"
)

type StageHistoryRepository struct {
	db *gorm.DB
}

func NewStageHistoryRepository(db *gorm.DB) *StageHistoryRepository {
	return &StageHistoryRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *StageHistoryRepository) WithTx(tx *gorm.DB) *StageHistoryRepository {
	return &StageHistoryRepository{db: tx}
}

// Create appends a stage transition
func (r *StageHistoryRepository) Create(ctx context.Context, entry *domain.StageHistoryEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByOpportunity returns the history of one opportunity, oldest first
func (r *StageHistoryRepository) ListByOpportunity(ctx context.Context, opportunityID uuid.UUID) ([]domain.StageHistoryEntry, error) {
	var history []domain.StageHistoryEntry
	err := r.db.WithContext(ctx).
		Where("opportunity_id = ?", opportunityID).
		Order("changed_at ASC, id ASC").
		Find(&history).Error
	return history, err
}

// ListByOpportunities returns history for many opportunities keyed by opportunity id
func (r *StageHistoryRepository) ListByOpportunities(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]domain.StageHistoryEntry, error) {
	out := make(map[uuid.UUID][]domain.StageHistoryEntry, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var history []domain.StageHistoryEntry
	err := r.db.WithContext(ctx).
		Where("opportunity_id IN ?", ids).
		Order("changed_at ASC, id ASC").
		Find(&history).Error
	if err != nil {
		return nil, err
	}
	for _, h := range history {
		out[h.OpportunityID] = append(out[h.OpportunityID], h)
	}
	return out, nil
}
