package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"gorm.io/gorm"
)

type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// ReplaceWindow swaps every snapshot of one measure and window for the given
// rows in a single transaction, so re-running a window never duplicates it
func (r *SnapshotRepository) ReplaceWindow(ctx context.Context, measure domain.TargetMeasure, windowStart, windowEnd time.Time, snapshots []domain.AchievementSnapshot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("measure = ? AND window_start = ? AND window_end = ?", measure, windowStart, windowEnd).
			Delete(&domain.AchievementSnapshot{}).Error
		if err != nil {
			return err
		}
		if len(snapshots) == 0 {
			return nil
		}
		return tx.CreateInBatches(snapshots, 100).Error
	})
}

// ListByProfile returns the snapshot history of a profile, newest first
func (r *SnapshotRepository) ListByProfile(ctx context.Context, profileID uuid.UUID, limit int) ([]domain.AchievementSnapshot, error) {
	var snapshots []domain.AchievementSnapshot
	query := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("taken_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&snapshots).Error
	return snapshots, err
}
