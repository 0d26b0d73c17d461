package mapper

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/pipeline"
)

const (
	timestampLayout = "2006-01-02T15:04:05Z"
	dateLayout      = "2006-01-02"
)

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

// ToStageDTO converts Stage to StageDTO
func ToStageDTO(stage *domain.Stage) domain.StageDTO {
	return domain.StageDTO{
		Key:         stage.Key,
		Position:    stage.Position,
		Probability: stage.Probability,
		Points:      stage.Points,
		IsWon:       stage.IsWon,
		IsLost:      stage.IsLost,
		DueDays:     stage.DueDays,
	}
}

// ToOpportunityDTO converts Opportunity to OpportunityDTO. The stage age is
// computed by the caller because it depends on the catalog and the clock.
func ToOpportunityDTO(opp *domain.Opportunity, weighted decimal.Decimal, age pipeline.StageAge) domain.OpportunityDTO {
	return domain.OpportunityDTO{
		ID:                 opp.ID,
		Title:              opp.Title,
		Description:        opp.Description,
		Amount:             opp.Amount,
		Margin:             opp.Margin,
		WeightedAmount:     weighted,
		Currency:           opp.Currency,
		Stage:              opp.Stage,
		StageEnteredAt:     opp.StageEnteredAt.UTC().Format(timestampLayout),
		DaysInStage:        age.Days,
		Overdue:            age.Overdue,
		ForecastCategory:   opp.ForecastCategory,
		CategoryLocked:     opp.CategoryLocked,
		Probability:        opp.Probability,
		OwnerID:            opp.OwnerID,
		OwnerName:          opp.OwnerName,
		Status:             opp.Status,
		ExpectedCloseDate:  formatDate(opp.ExpectedCloseDate),
		ActualCloseDate:    formatDate(opp.ActualCloseDate),
		LossReason:         opp.LossReason,
		LossReasonCategory: opp.LossReasonCategory,
		Version:            opp.Version,
		CreatedAt:          opp.CreatedAt.UTC().Format(timestampLayout),
		UpdatedAt:          opp.UpdatedAt.UTC().Format(timestampLayout),
	}
}

// ToStageHistoryDTO converts StageHistoryEntry to StageHistoryDTO
func ToStageHistoryDTO(entry *domain.StageHistoryEntry) domain.StageHistoryDTO {
	return domain.StageHistoryDTO{
		ID:            entry.ID,
		OpportunityID: entry.OpportunityID,
		FromStage:     entry.FromStage,
		ToStage:       entry.ToStage,
		ChangedBy:     entry.ChangedBy,
		ChangedByName: entry.ChangedByName,
		Note:          entry.Note,
		ChangedAt:     entry.ChangedAt.UTC().Format(timestampLayout),
	}
}

// ToSalesTargetDTO converts SalesTarget to SalesTargetDTO
func ToSalesTargetDTO(target *domain.SalesTarget) domain.SalesTargetDTO {
	return domain.SalesTargetDTO{
		ID:          target.ID,
		AssignedTo:  target.AssignedTo,
		Amount:      target.Amount,
		Measure:     target.Measure,
		PeriodStart: target.PeriodStart.Format(dateLayout),
		PeriodEnd:   target.PeriodEnd.Format(dateLayout),
		Notes:       target.Notes,
		CreatedBy:   target.CreatedBy,
		CreatedAt:   target.CreatedAt.UTC().Format(timestampLayout),
	}
}

// ToAchievementSnapshotDTO converts AchievementSnapshot to AchievementSnapshotDTO
func ToAchievementSnapshotDTO(s *domain.AchievementSnapshot) domain.AchievementSnapshotDTO {
	return domain.AchievementSnapshotDTO{
		ProfileID:   s.ProfileID,
		Measure:     s.Measure,
		WindowStart: s.WindowStart.Format(dateLayout),
		WindowEnd:   s.WindowEnd.Format(dateLayout),
		Target:      s.Target,
		Actual:      s.Actual,
		Percent:     s.Percent,
		TakenAt:     s.TakenAt.UTC().Format(timestampLayout),
	}
}

// ToForecastDTO converts a forecast summary, keyed by category name
func ToForecastDTO(summary *pipeline.ForecastSummary, adjustmentPercent int, scope string) domain.ForecastDTO {
	totals := make(map[string]decimal.Decimal, len(summary.Totals))
	for category, total := range summary.Totals {
		totals[string(category)] = total
	}
	return domain.ForecastDTO{
		PeriodStart:       summary.PeriodStart.Format(dateLayout),
		PeriodEnd:         summary.PeriodEnd.Format(dateLayout),
		AdjustmentPercent: adjustmentPercent,
		Totals:            totals,
		WeightedPipeline:  summary.WeightedPipeline,
		OpenCount:         summary.OpenCount,
		Undated:           summary.Undated,
		Scope:             scope,
	}
}

// ToLeaderboard converts ranked owner scores; equal points share a rank
func ToLeaderboard(scores []pipeline.OwnerScore) []domain.LeaderboardEntryDTO {
	out := make([]domain.LeaderboardEntryDTO, len(scores))
	rank := 0
	for i, s := range scores {
		if i == 0 || s.Points != scores[i-1].Points {
			rank = i + 1
		}
		out[i] = domain.LeaderboardEntryDTO{
			Rank:          rank,
			OwnerID:       s.OwnerID,
			OwnerName:     s.OwnerName,
			Points:        s.Points,
			Opportunities: s.Opportunities,
			Won:           s.Won,
			Approximated:  s.Approximated,
		}
	}
	return out
}

// ToScopeDTO converts a resolved org scope with stable ordering
func ToScopeDTO(scope *pipeline.OrgScope) domain.ScopeDTO {
	owners := append([]string(nil), scope.OwnerIDs...)
	sort.Strings(owners)
	return domain.ScopeDTO{
		ViewerID:   scope.ViewerID,
		Role:       scope.Role,
		Strategy:   scope.Strategy,
		ProfileIDs: scope.ProfileIDs,
		OwnerIDs:   owners,
	}
}
