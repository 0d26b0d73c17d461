package pipeline

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/domain"
)

const dateLayout = "2006-01-02"

var hundred = decimal.NewFromInt(100)

// Thresholds drive rule-based forecast classification
type Thresholds struct {
	Commit   int
	BestCase int
}

// DefaultThresholds matches the stage probabilities of the default catalog
var DefaultThresholds = Thresholds{Commit: 75, BestCase: 50}

// Validate checks that both thresholds are percentages and ordered
func (t Thresholds) Validate() error {
	if t.BestCase < 0 || t.Commit > 100 || t.BestCase > t.Commit {
		return domain.ConfigurationError("forecast thresholds must satisfy 0 <= bestCase <= commit <= 100, got bestCase=%d commit=%d", t.BestCase, t.Commit)
	}
	return nil
}

// EffectiveProbability clamps probability plus a what-if adjustment to 0-100
func EffectiveProbability(probability, adjustmentPercent int) int {
	p := probability + adjustmentPercent
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// WeightedAmount returns amount * effectiveProbability / 100
func WeightedAmount(opp *domain.Opportunity, adjustmentPercent int) (decimal.Decimal, error) {
	if opp.Probability < 0 || opp.Probability > 100 {
		return decimal.Zero, domain.InvalidArgument("opportunity %s probability %d outside 0-100", opp.ID, opp.Probability)
	}
	if opp.Amount.IsNegative() {
		return decimal.Zero, domain.InvalidArgument("opportunity %s has negative amount", opp.ID)
	}

	p := decimal.NewFromInt(int64(EffectiveProbability(opp.Probability, adjustmentPercent)))
	return opp.Amount.Mul(p).Div(hundred), nil
}

// IsWithinPeriod compares calendar dates inclusively in each value's own
// location. A missing close date is never within a period.
func IsWithinPeriod(expectedCloseDate *time.Time, periodStart, periodEnd time.Time) bool {
	if expectedCloseDate == nil || expectedCloseDate.IsZero() {
		return false
	}
	d := expectedCloseDate.Format(dateLayout)
	return d >= periodStart.Format(dateLayout) && d <= periodEnd.Format(dateLayout)
}

func validatePeriod(periodStart, periodEnd time.Time) error {
	if periodStart.IsZero() || periodEnd.IsZero() {
		return domain.InvalidArgument("period start and end are required")
	}
	if periodEnd.Format(dateLayout) < periodStart.Format(dateLayout) {
		return domain.InvalidArgument("period end %s is before start %s", periodEnd.Format(dateLayout), periodStart.Format(dateLayout))
	}
	return nil
}

// BucketTotal sums the unweighted amount of in-period opportunities in category
func BucketTotal(opps []domain.Opportunity, category domain.ForecastCategory, periodStart, periodEnd time.Time) (decimal.Decimal, error) {
	if !category.IsValid() {
		return decimal.Zero, domain.InvalidArgument("unknown forecast category %q", category)
	}
	if err := validatePeriod(periodStart, periodEnd); err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for i := range opps {
		o := &opps[i]
		if o.ForecastCategory != category || !IsWithinPeriod(o.ExpectedCloseDate, periodStart, periodEnd) {
			continue
		}
		total = total.Add(o.Amount)
	}
	return total, nil
}

// Classify assigns a forecast category. Closed opportunities are always
// Closed; a hand-assigned category is kept; otherwise probability decides.
func Classify(opp *domain.Opportunity, t Thresholds) domain.ForecastCategory {
	if opp.Status.IsTerminal() {
		return domain.ForecastClosed
	}
	if opp.CategoryLocked && opp.ForecastCategory.IsValid() && opp.ForecastCategory != domain.ForecastClosed {
		return opp.ForecastCategory
	}
	switch {
	case opp.Probability >= t.Commit:
		return domain.ForecastCommit
	case opp.Probability >= t.BestCase:
		return domain.ForecastBestCase
	default:
		return domain.ForecastPipeline
	}
}

// ForecastSummary aggregates a set of opportunities for one period
type ForecastSummary struct {
	PeriodStart      time.Time
	PeriodEnd        time.Time
	Totals           map[domain.ForecastCategory]decimal.Decimal
	WeightedPipeline decimal.Decimal
	OpenCount        int
	// Undated counts open and on-hold opportunities excluded for lacking an
	// expected close date
	Undated int
}

// Summarize computes every bucket total plus the weighted pipeline of open,
// in-period opportunities. Lost opportunities are not forecast revenue and
// count toward no bucket, so the Closed total holds won revenue only.
func Summarize(opps []domain.Opportunity, periodStart, periodEnd time.Time, adjustmentPercent int) (*ForecastSummary, error) {
	if err := validatePeriod(periodStart, periodEnd); err != nil {
		return nil, err
	}

	forecastable := make([]domain.Opportunity, 0, len(opps))
	for i := range opps {
		if opps[i].Status != domain.OpportunityStatusLost {
			forecastable = append(forecastable, opps[i])
		}
	}

	summary := &ForecastSummary{
		PeriodStart:      periodStart,
		PeriodEnd:        periodEnd,
		Totals:           make(map[domain.ForecastCategory]decimal.Decimal, 4),
		WeightedPipeline: decimal.Zero,
	}
	for _, c := range []domain.ForecastCategory{domain.ForecastPipeline, domain.ForecastBestCase, domain.ForecastCommit, domain.ForecastClosed} {
		total, err := BucketTotal(forecastable, c, periodStart, periodEnd)
		if err != nil {
			return nil, err
		}
		summary.Totals[c] = total
	}

	for i := range opps {
		o := &opps[i]
		if !o.Status.IsActive() {
			continue
		}
		if o.ExpectedCloseDate == nil {
			summary.Undated++
			continue
		}
		if !IsWithinPeriod(o.ExpectedCloseDate, periodStart, periodEnd) {
			continue
		}
		w, err := WeightedAmount(o, adjustmentPercent)
		if err != nil {
			return nil, err
		}
		summary.WeightedPipeline = summary.WeightedPipeline.Add(w)
		summary.OpenCount++
	}

	return summary, nil
}
