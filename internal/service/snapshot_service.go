package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/mapper"
	"github.com/straye-as/pipeline-api/internal/pipeline"
	"github.com/straye-as/pipeline-api/internal/repository"
	"github.com/straye-as/pipeline-api/internal/storage"
	"go.uber.org/zap"
)

const maxSnapshotHistory = 120

// SnapshotResult summarizes one snapshot run
type SnapshotResult struct {
	Snapshots int
	ReportKey string
}

// SnapshotService persists periodic achievement figures for every active profile
type SnapshotService struct {
	targets      *TargetService
	scopes       *ScopeService
	snapshotRepo *repository.SnapshotRepository
	reports      storage.Storage
	logger       *zap.Logger
}

func NewSnapshotService(
	targets *TargetService,
	scopes *ScopeService,
	snapshotRepo *repository.SnapshotRepository,
	reports storage.Storage,
	logger *zap.Logger,
) *SnapshotService {
	return &SnapshotService{
		targets:      targets,
		scopes:       scopes,
		snapshotRepo: snapshotRepo,
		reports:      reports,
		logger:       logger,
	}
}

// ReportKey is the storage key of the achievement report for a window
func ReportKey(measure domain.TargetMeasure, windowStart, windowEnd time.Time) string {
	return fmt.Sprintf("achievement/%s/%s_%s.json", measure, windowStart.Format(dateLayout), windowEnd.Format(dateLayout))
}

// PreviousMonth returns the first and last day of the calendar month before now
func PreviousMonth(now time.Time) (time.Time, time.Time) {
	firstOfThisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	start := firstOfThisMonth.AddDate(0, -1, 0)
	end := firstOfThisMonth.AddDate(0, 0, -1)
	return start, end
}

// Run computes achievement for every active profile, stores one snapshot
// row per profile and uploads the full report when storage is configured
func (s *SnapshotService) Run(ctx context.Context, windowStart, windowEnd time.Time, measure domain.TargetMeasure, takenAt time.Time) (*SnapshotResult, error) {
	_, dir, err := s.scopes.Everyone(ctx)
	if err != nil {
		return nil, err
	}

	var members []domain.UserProfile
	for _, p := range dir.Profiles() {
		if p.IsActive {
			members = append(members, p)
		}
	}

	report, err := s.targets.AchievementFor(ctx, pipeline.StrategyEveryone, members, windowStart, windowEnd, measure)
	if err != nil {
		return nil, err
	}

	snapshots := make([]domain.AchievementSnapshot, len(report.Members))
	for i, m := range report.Members {
		snapshots[i] = domain.AchievementSnapshot{
			ProfileID:   m.ProfileID,
			Measure:     report.Measure,
			WindowStart: windowStart,
			WindowEnd:   windowEnd,
			Target:      m.Target.Round(2),
			Actual:      m.Actual.Round(2),
			Percent:     m.Percent,
			TakenAt:     takenAt,
		}
	}
	if err := s.snapshotRepo.ReplaceWindow(ctx, report.Measure, windowStart, windowEnd, snapshots); err != nil {
		return nil, fmt.Errorf("failed to store achievement snapshots: %w", err)
	}

	result := &SnapshotResult{Snapshots: len(snapshots)}
	if s.reports != nil {
		body, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode achievement report: %w", err)
		}
		key := ReportKey(report.Measure, windowStart, windowEnd)
		if _, err := s.reports.Put(ctx, key, "application/json", bytes.NewReader(body)); err != nil {
			return nil, fmt.Errorf("failed to upload achievement report: %w", err)
		}
		result.ReportKey = key
	}

	s.logger.Info("achievement snapshot stored",
		zap.String("window_start", windowStart.Format(dateLayout)),
		zap.String("window_end", windowEnd.Format(dateLayout)),
		zap.String("measure", string(report.Measure)),
		zap.Int("snapshots", result.Snapshots),
		zap.String("report_key", result.ReportKey),
	)
	return result, nil
}

// History returns the latest snapshots of a profile within the caller's scope
func (s *SnapshotService) History(ctx context.Context, profileID uuid.UUID, limit int) ([]domain.AchievementSnapshotDTO, error) {
	scope, _, err := s.scopes.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if scope.Strategy != pipeline.StrategyEveryone && !scope.IncludesProfile(profileID) {
		return nil, domain.Forbidden("profile %s is outside your scope", profileID)
	}
	if limit < 1 || limit > maxSnapshotHistory {
		limit = maxSnapshotHistory
	}

	snapshots, err := s.snapshotRepo.ListByProfile(ctx, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievement snapshots: %w", err)
	}

	dtos := make([]domain.AchievementSnapshotDTO, len(snapshots))
	for i := range snapshots {
		dtos[i] = mapper.ToAchievementSnapshotDTO(&snapshots[i])
	}
	return dtos, nil
}
