package repository

import (
	"context"

	"github.com/straye-as/pipeline-api/internal/domain"
	"gorm.io/gorm"
)

type StageRepository struct {
	db *gorm.DB
}

func NewStageRepository(db *gorm.DB) *StageRepository {
	return &StageRepository{db: db}
}

// List returns the stage catalog in pipeline order
func (r *StageRepository) List(ctx context.Context) ([]domain.Stage, error) {
	var stages []domain.Stage
	err := r.db.WithContext(ctx).Order("position ASC").Find(&stages).Error
	return stages, err
}
