package repository

import (
	"context"

	"github.com/straye-as/pipeline-api/internal/domain"
	"gorm.io/gorm"
)

// ProfileRepository reads the org directory: user profiles and team mappings
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetByUserID returns the profile linked to an authenticated user
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListProfiles returns every profile, active or not
func (r *ProfileRepository) ListProfiles(ctx context.Context) ([]domain.UserProfile, error) {
	var profiles []domain.UserProfile
	err := r.db.WithContext(ctx).Order("display_name ASC, id ASC").Find(&profiles).Error
	return profiles, err
}

// ListMemberships returns every explicit team mapping
func (r *ProfileRepository) ListMemberships(ctx context.Context) ([]domain.TeamMembership, error) {
	var memberships []domain.TeamMembership
	err := r.db.WithContext(ctx).Find(&memberships).Error
	return memberships, err
}
