package pipeline

import (
	"time"

	"github.com/straye-as/pipeline-api/internal/domain"
)

const day = 24 * time.Hour

// DaysInStage returns the whole days between entry and now, rounded up.
// A negative difference (clock skew) is floored to zero.
func DaysInStage(stageEnteredAt, now time.Time) (int, error) {
	if stageEnteredAt.IsZero() {
		return 0, domain.InvalidArgument("stage entry time is required")
	}
	if now.IsZero() {
		return 0, domain.InvalidArgument("reference time is required")
	}

	diff := now.Sub(stageEnteredAt)
	if diff <= 0 {
		return 0, nil
	}

	days := int(diff / day)
	if diff%day != 0 {
		days++
	}
	return days, nil
}

// IsOverdue reports whether daysInStage exceeds the override, or the default
// when no override is set. Reaching the threshold exactly is not overdue.
func IsOverdue(daysInStage, defaultDueDays int, overrideDueDays *int) (bool, error) {
	if daysInStage < 0 {
		return false, domain.InvalidArgument("days in stage must not be negative, got %d", daysInStage)
	}
	if defaultDueDays < 0 {
		return false, domain.InvalidArgument("default due days must not be negative, got %d", defaultDueDays)
	}

	due := defaultDueDays
	if overrideDueDays != nil {
		if *overrideDueDays < 0 {
			return false, domain.InvalidArgument("override due days must not be negative, got %d", *overrideDueDays)
		}
		due = *overrideDueDays
	}
	return daysInStage > due, nil
}

// StageEnteredAt returns when the opportunity entered its current stage.
// When the stored timestamp is missing it is recovered from the latest
// history entry into the current stage.
func StageEnteredAt(opp *domain.Opportunity, history []domain.StageHistoryEntry) (time.Time, error) {
	if !opp.StageEnteredAt.IsZero() {
		return opp.StageEnteredAt, nil
	}

	var latest time.Time
	for _, h := range history {
		if h.ToStage == opp.Stage && h.ChangedAt.After(latest) {
			latest = h.ChangedAt
		}
	}
	if latest.IsZero() {
		return time.Time{}, domain.InvalidArgument("opportunity %s has no stage entry time and no history into %q", opp.ID, opp.Stage)
	}
	return latest, nil
}

// StageAge describes how long an opportunity has been in its stage
type StageAge struct {
	Days    int
	DueDays int
	Overdue bool
}

// AgeInStage combines the stage clock with the catalog's per-stage due override
func AgeInStage(c *Catalog, opp *domain.Opportunity, history []domain.StageHistoryEntry, defaultDueDays int, now time.Time) (StageAge, error) {
	stage, err := c.Lookup(opp.Stage)
	if err != nil {
		return StageAge{}, err
	}

	entered, err := StageEnteredAt(opp, history)
	if err != nil {
		return StageAge{}, err
	}

	days, err := DaysInStage(entered, now)
	if err != nil {
		return StageAge{}, err
	}

	overdue, err := IsOverdue(days, defaultDueDays, stage.DueDays)
	if err != nil {
		return StageAge{}, err
	}

	due := defaultDueDays
	if stage.DueDays != nil {
		due = *stage.DueDays
	}
	return StageAge{Days: days, DueDays: due, Overdue: overdue}, nil
}
