package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/datawarehouse"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/repository"
)

// ActualsProvider returns achieved figures per owner id for a window
type ActualsProvider interface {
	Name() string
	Actuals(ctx context.Context, scope *repository.OwnerScope, measure domain.TargetMeasure, windowStart, windowEnd time.Time) (map[string]decimal.Decimal, error)
}

// WonOpportunityActuals sums won opportunities closed inside the window
type WonOpportunityActuals struct {
	oppRepo *repository.OpportunityRepository
}

func NewWonOpportunityActuals(oppRepo *repository.OpportunityRepository) *WonOpportunityActuals {
	return &WonOpportunityActuals{oppRepo: oppRepo}
}

func (a *WonOpportunityActuals) Name() string {
	return "won_opportunities"
}

func (a *WonOpportunityActuals) Actuals(ctx context.Context, scope *repository.OwnerScope, measure domain.TargetMeasure, windowStart, windowEnd time.Time) (map[string]decimal.Decimal, error) {
	won, err := a.oppRepo.ListWon(ctx, scope, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to list won opportunities: %w", err)
	}

	totals := make(map[string]decimal.Decimal)
	for _, o := range won {
		amount := o.Amount
		if measure == domain.MeasureMargin {
			amount = o.Margin
		}
		totals[o.OwnerID] = totals[o.OwnerID].Add(amount)
	}
	return totals, nil
}

// warehouseQuerier is the slice of the data warehouse client used for actuals
type warehouseQuerier interface {
	IsEnabled() bool
	QueryActuals(ctx context.Context, measure domain.TargetMeasure, windowStart, windowEnd time.Time, ownerIDs []string) (map[string]decimal.Decimal, error)
}

var _ warehouseQuerier = (*datawarehouse.Client)(nil)

// WarehouseActuals reads booked actuals from the ERP data warehouse
type WarehouseActuals struct {
	client warehouseQuerier
}

func NewWarehouseActuals(client warehouseQuerier) *WarehouseActuals {
	return &WarehouseActuals{client: client}
}

func (a *WarehouseActuals) Name() string {
	return "data_warehouse"
}

func (a *WarehouseActuals) Actuals(ctx context.Context, scope *repository.OwnerScope, measure domain.TargetMeasure, windowStart, windowEnd time.Time) (map[string]decimal.Decimal, error) {
	var owners []string
	if scope != nil && !scope.All {
		if len(scope.OwnerIDs) == 0 {
			return map[string]decimal.Decimal{}, nil
		}
		owners = scope.OwnerIDs
	}
	totals, err := a.client.QueryActuals(ctx, measure, windowStart, windowEnd, owners)
	if err != nil {
		return nil, fmt.Errorf("failed to query warehouse actuals: %w", err)
	}
	return totals, nil
}

// NewActualsProvider picks the warehouse when it is connected, otherwise won opportunities
func NewActualsProvider(client *datawarehouse.Client, oppRepo *repository.OpportunityRepository) ActualsProvider {
	if client.IsEnabled() {
		return NewWarehouseActuals(client)
	}
	return NewWonOpportunityActuals(oppRepo)
}
