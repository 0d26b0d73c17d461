package datawarehouse

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/domain"
	"go.uber.org/zap"
)

// Column names of the actuals view
const (
	columnOwner   = "owner_id"
	columnDate    = "booking_date"
	columnRevenue = "revenue"
	columnMargin  = "margin"
	columnTotal   = "total"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ActualsQuery selects booked actuals for a window
type ActualsQuery struct {
	Table       string
	Measure     domain.TargetMeasure
	WindowStart time.Time
	WindowEnd   time.Time
	// OwnerIDs restricts the result; empty means every owner
	OwnerIDs []string
}

// Build returns the SQL text and its positional arguments
func (q ActualsQuery) Build() (string, []interface{}, error) {
	if !tableNamePattern.MatchString(q.Table) {
		return "", nil, fmt.Errorf("invalid actuals table name %q", q.Table)
	}

	var column string
	switch q.Measure {
	case domain.MeasureRevenue:
		column = columnRevenue
	case domain.MeasureMargin:
		column = columnMargin
	default:
		return "", nil, fmt.Errorf("unsupported measure %q", q.Measure)
	}

	args := []interface{}{q.WindowStart.Format("2006-01-02"), q.WindowEnd.Format("2006-01-02")}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s, SUM(%s) AS %s FROM %s WHERE %s >= @p1 AND %s <= @p2",
		columnOwner, column, columnTotal, q.Table, columnDate, columnDate)

	if len(q.OwnerIDs) > 0 {
		placeholders := make([]string, len(q.OwnerIDs))
		for i, id := range q.OwnerIDs {
			args = append(args, id)
			placeholders[i] = "@p" + strconv.Itoa(len(args))
		}
		fmt.Fprintf(&sb, " AND %s IN (%s)", columnOwner, strings.Join(placeholders, ", "))
	}
	fmt.Fprintf(&sb, " GROUP BY %s", columnOwner)

	return sb.String(), args, nil
}

// QueryActuals returns booked actuals per owner id for the window
func (c *Client) QueryActuals(ctx context.Context, measure domain.TargetMeasure, windowStart, windowEnd time.Time, ownerIDs []string) (map[string]decimal.Decimal, error) {
	if !c.IsEnabled() {
		return nil, fmt.Errorf("data warehouse client not initialized")
	}

	query, args, err := ActualsQuery{
		Table:       c.table,
		Measure:     measure,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		OwnerIDs:    ownerIDs,
	}.Build()
	if err != nil {
		return nil, err
	}

	rows, err := c.queryTotals(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	totals, err := SumActuals(rows)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Loaded actuals from data warehouse",
		zap.String("measure", string(measure)),
		zap.Int("owners", len(totals)),
	)
	return totals, nil
}

// SumActuals folds owner/total rows into a map keyed by owner id
func SumActuals(rows []ActualsRow) (map[string]decimal.Decimal, error) {
	totals := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		owner, err := toString(row.Owner)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", columnOwner, err)
		}
		amount, err := toDecimal(row.Total)
		if err != nil {
			return nil, fmt.Errorf("invalid %s for owner %s: %w", columnTotal, owner, err)
		}
		totals[owner] = totals[owner].Add(amount)
	}
	return totals, nil
}

func toString(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case nil:
		return "", fmt.Errorf("null value")
	default:
		return fmt.Sprint(t), nil
	}
}

// toDecimal converts the value types returned by the SQL Server driver
func toDecimal(v interface{}) (decimal.Decimal, error) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, nil
	case []byte:
		return decimal.NewFromString(string(t))
	case string:
		return decimal.NewFromString(t)
	case float64:
		return decimal.NewFromFloat(t), nil
	case float32:
		return decimal.NewFromFloat32(t), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case int32:
		return decimal.NewFromInt32(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported type %T", v)
	}
}
