// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/database"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/pipeline"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens a private in-memory SQLite database with the schema
// migrated and the default stage catalog seeded
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to :memory: is a new database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	require.NoError(t, database.SeedStages(context.Background(), db, pipeline.DefaultStages()))

	return db
}

// Date returns midnight UTC of the given calendar day
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DatePtr returns a pointer to Date(year, month, day)
func DatePtr(year int, month time.Month, day int) *time.Time {
	d := Date(year, month, day)
	return &d
}

// CreateTestProfile inserts a user profile
func CreateTestProfile(t *testing.T, db *gorm.DB, userID string, role domain.UserRoleType, opts ...func(*domain.UserProfile)) *domain.UserProfile {
	t.Helper()
	p := &domain.UserProfile{
		UserID:      userID,
		DisplayName: userID,
		Email:       userID + "@straye.no",
		Role:        role,
		IsActive:    true,
	}
	for _, opt := range opts {
		opt(p)
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// CreateTestOpportunity inserts an open opportunity in the given stage
func CreateTestOpportunity(t *testing.T, db *gorm.DB, ownerID, stage string, amount int64, opts ...func(*domain.Opportunity)) *domain.Opportunity {
	t.Helper()
	o := &domain.Opportunity{
		Title:            "Opportunity " + uuid.NewString()[:8],
		Amount:           decimal.NewFromInt(amount),
		Margin:           decimal.Zero,
		Currency:         "NOK",
		Stage:            stage,
		StageEnteredAt:   time.Now().UTC(),
		ForecastCategory: domain.ForecastPipeline,
		Probability:      10,
		OwnerID:          ownerID,
		OwnerName:        ownerID,
		Status:           domain.OpportunityStatusOpen,
		Version:          1,
	}
	for _, opt := range opts {
		opt(o)
	}
	require.NoError(t, db.Create(o).Error)
	return o
}

// CreateTestTarget inserts a revenue target
func CreateTestTarget(t *testing.T, db *gorm.DB, assignee uuid.UUID, amount int64, start, end time.Time) *domain.SalesTarget {
	t.Helper()
	target := &domain.SalesTarget{
		AssignedTo:  assignee,
		Amount:      decimal.NewFromInt(amount),
		Measure:     domain.MeasureRevenue,
		PeriodStart: start,
		PeriodEnd:   end,
	}
	require.NoError(t, db.Create(target).Error)
	return target
}
