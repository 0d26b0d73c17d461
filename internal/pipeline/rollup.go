package pipeline

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/domain"
)

// calendarDate drops the clock and location, keeping the wall-clock date
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthsInclusive counts calendar months touched by [start, end], minimum 1
func MonthsInclusive(start, end time.Time) int {
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month()) + 1
	if months < 1 {
		return 1
	}
	return months
}

func validateWindow(windowStart, windowEnd time.Time) error {
	if windowStart.IsZero() || windowEnd.IsZero() {
		return domain.InvalidArgument("window start and end are required")
	}
	if calendarDate(windowEnd).Before(calendarDate(windowStart)) {
		return domain.InvalidArgument("window end %s is before start %s", windowEnd.Format(dateLayout), windowStart.Format(dateLayout))
	}
	return nil
}

// Apportion returns the share of a target falling inside the window, at
// calendar-month granularity: amount * overlapMonths / totalMonths.
func Apportion(t *domain.SalesTarget, windowStart, windowEnd time.Time) (decimal.Decimal, error) {
	if err := validateWindow(windowStart, windowEnd); err != nil {
		return decimal.Zero, err
	}
	return apportion(t, calendarDate(windowStart), calendarDate(windowEnd))
}

func apportion(t *domain.SalesTarget, ws, we time.Time) (decimal.Decimal, error) {
	if t.PeriodStart.IsZero() || t.PeriodEnd.IsZero() {
		return decimal.Zero, domain.InvalidArgument("target %s has no period", t.ID)
	}
	ps, pe := calendarDate(t.PeriodStart), calendarDate(t.PeriodEnd)
	if pe.Before(ps) {
		return decimal.Zero, domain.InvalidArgument("target %s period end %s is before start %s", t.ID, pe.Format(dateLayout), ps.Format(dateLayout))
	}
	if t.Amount.IsNegative() {
		return decimal.Zero, domain.InvalidArgument("target %s has negative amount", t.ID)
	}

	overlapStart := ps
	if ws.After(overlapStart) {
		overlapStart = ws
	}
	overlapEnd := pe
	if we.Before(overlapEnd) {
		overlapEnd = we
	}
	if overlapEnd.Before(overlapStart) {
		return decimal.Zero, nil
	}

	total := decimal.NewFromInt(int64(MonthsInclusive(ps, pe)))
	overlap := decimal.NewFromInt(int64(MonthsInclusive(overlapStart, overlapEnd)))
	return t.Amount.Mul(overlap).Div(total), nil
}

// Rollup sums the apportioned share of every target inside the window
func Rollup(targets []domain.SalesTarget, windowStart, windowEnd time.Time) (decimal.Decimal, error) {
	if err := validateWindow(windowStart, windowEnd); err != nil {
		return decimal.Zero, err
	}
	ws, we := calendarDate(windowStart), calendarDate(windowEnd)

	sum := decimal.Zero
	for i := range targets {
		c, err := apportion(&targets[i], ws, we)
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(c)
	}
	return sum, nil
}

// AchievementPercent returns actual/target*100, or 0 when target is not positive
func AchievementPercent(actual, target decimal.Decimal) decimal.Decimal {
	if !target.IsPositive() {
		return decimal.Zero
	}
	return actual.Div(target).Mul(hundred)
}
