package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DTOs for API responses. Money is serialized as a decimal string.

type StageDTO struct {
	Key         string `json:"key"`
	Position    int    `json:"position"`
	Probability int    `json:"probability"`
	Points      int    `json:"points"`
	IsWon       bool   `json:"isWon"`
	IsLost      bool   `json:"isLost"`
	DueDays     *int   `json:"dueDays,omitempty"`
}

type OpportunityDTO struct {
	ID                 uuid.UUID           `json:"id"`
	Title              string              `json:"title"`
	Description        string              `json:"description,omitempty"`
	Amount             decimal.Decimal     `json:"amount" swaggertype:"string" example:"150000"`
	Margin             decimal.Decimal     `json:"margin" swaggertype:"string" example:"30000"`
	WeightedAmount     decimal.Decimal     `json:"weightedAmount" swaggertype:"string" example:"75000"`
	Currency           string              `json:"currency"`
	Stage              string              `json:"stage"`
	StageEnteredAt     string              `json:"stageEnteredAt"` // ISO 8601
	DaysInStage        int                 `json:"daysInStage"`
	Overdue            bool                `json:"overdue"`
	ForecastCategory   ForecastCategory    `json:"forecastCategory"`
	CategoryLocked     bool                `json:"categoryLocked"`
	Probability        int                 `json:"probability"`
	OwnerID            string              `json:"ownerId"`
	OwnerName          string              `json:"ownerName,omitempty"`
	Status             OpportunityStatus   `json:"status"`
	ExpectedCloseDate  *string             `json:"expectedCloseDate,omitempty"` // YYYY-MM-DD
	ActualCloseDate    *string             `json:"actualCloseDate,omitempty"`   // YYYY-MM-DD
	LossReason         string              `json:"lossReason,omitempty"`
	LossReasonCategory *LossReasonCategory `json:"lossReasonCategory,omitempty"`
	Version            int                 `json:"version"`
	CreatedAt          string              `json:"createdAt"`
	UpdatedAt          string              `json:"updatedAt"`
}

type StageHistoryDTO struct {
	ID            uuid.UUID `json:"id"`
	OpportunityID uuid.UUID `json:"opportunityId"`
	FromStage     *string   `json:"fromStage,omitempty"`
	ToStage       string    `json:"toStage"`
	ChangedBy     string    `json:"changedBy"`
	ChangedByName string    `json:"changedByName,omitempty"`
	Note          string    `json:"note,omitempty"`
	ChangedAt     string    `json:"changedAt"`
}

// ScoreDTO is the cumulative performance score of one opportunity
type ScoreDTO struct {
	OpportunityID uuid.UUID `json:"opportunityId"`
	Stage         string    `json:"stage"`
	Points        int       `json:"points"`
	// Derivation is terminal, history or catalog_order
	Derivation string `json:"derivation"`
}

type SalesTargetDTO struct {
	ID          uuid.UUID       `json:"id"`
	AssignedTo  uuid.UUID       `json:"assignedTo"`
	Amount      decimal.Decimal `json:"amount" swaggertype:"string" example:"1200000"`
	Measure     TargetMeasure   `json:"measure"`
	PeriodStart string          `json:"periodStart"`
	PeriodEnd   string          `json:"periodEnd"`
	Notes       string          `json:"notes,omitempty"`
	CreatedBy   string          `json:"createdBy,omitempty"`
	CreatedAt   string          `json:"createdAt"`
}

// ForecastDTO summarizes the visible pipeline for one period
type ForecastDTO struct {
	PeriodStart       string                     `json:"periodStart"`
	PeriodEnd         string                     `json:"periodEnd"`
	AdjustmentPercent int                        `json:"adjustmentPercent"`
	Totals            map[string]decimal.Decimal `json:"totals" swaggertype:"object,string"`
	WeightedPipeline  decimal.Decimal            `json:"weightedPipeline" swaggertype:"string"`
	OpenCount         int                        `json:"openCount"`
	Undated           int                        `json:"undated"`
	Scope             string                     `json:"scope"`
}

type LeaderboardEntryDTO struct {
	Rank          int    `json:"rank"`
	OwnerID       string `json:"ownerId"`
	OwnerName     string `json:"ownerName,omitempty"`
	Points        int    `json:"points"`
	Opportunities int    `json:"opportunities"`
	Won           int    `json:"won"`
	Approximated  int    `json:"approximated"`
}

type MemberAchievementDTO struct {
	ProfileID   uuid.UUID       `json:"profileId"`
	UserID      string          `json:"userId"`
	DisplayName string          `json:"displayName,omitempty"`
	Target      decimal.Decimal `json:"target" swaggertype:"string"`
	Actual      decimal.Decimal `json:"actual" swaggertype:"string"`
	Percent     decimal.Decimal `json:"percent" swaggertype:"string"`
}

// AchievementDTO compares apportioned targets with actuals for a window
type AchievementDTO struct {
	WindowStart string                 `json:"windowStart"`
	WindowEnd   string                 `json:"windowEnd"`
	Measure     TargetMeasure          `json:"measure"`
	Target      decimal.Decimal        `json:"target" swaggertype:"string"`
	Actual      decimal.Decimal        `json:"actual" swaggertype:"string"`
	Percent     decimal.Decimal        `json:"percent" swaggertype:"string"`
	Source      string                 `json:"source"`
	Scope       string                 `json:"scope"`
	Members     []MemberAchievementDTO `json:"members"`
}

// AchievementSnapshotDTO is one persisted achievement figure
type AchievementSnapshotDTO struct {
	ProfileID   uuid.UUID       `json:"profileId"`
	Measure     TargetMeasure   `json:"measure"`
	WindowStart string          `json:"windowStart"`
	WindowEnd   string          `json:"windowEnd"`
	Target      decimal.Decimal `json:"target" swaggertype:"string"`
	Actual      decimal.Decimal `json:"actual" swaggertype:"string"`
	Percent     decimal.Decimal `json:"percent" swaggertype:"string"`
	TakenAt     string          `json:"takenAt"`
}

type ScopeDTO struct {
	ViewerID   uuid.UUID    `json:"viewerId"`
	Role       UserRoleType `json:"role"`
	Strategy   string       `json:"strategy"`
	ProfileIDs []uuid.UUID  `json:"profileIds"`
	OwnerIDs   []string     `json:"ownerIds"`
}

// Pagination response wrapper
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// Request DTOs

type CreateOpportunityRequest struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount" swaggertype:"string" example:"150000"`
	Margin      decimal.Decimal `json:"margin" swaggertype:"string" example:"30000"`
	Currency    string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	// ExpectedCloseDate is a calendar date in YYYY-MM-DD format
	ExpectedCloseDate string `json:"expectedCloseDate,omitempty" validate:"omitempty,datetime=2006-01-02" example:"2025-06-30"`
	// OwnerID defaults to the caller
	OwnerID   string `json:"ownerId,omitempty" validate:"max=100"`
	OwnerName string `json:"ownerName,omitempty" validate:"max=200"`
	// ForecastCategory pins the category instead of deriving it from probability
	ForecastCategory ForecastCategory `json:"forecastCategory,omitempty" validate:"omitempty,oneof=Pipeline 'Best Case' Commit"`
}

// AdvanceStageRequest moves an opportunity forward to a later open stage
type AdvanceStageRequest struct {
	Stage string `json:"stage" validate:"required,max=100" example:"Proposal"`
	Notes string `json:"notes,omitempty" validate:"max=1000"`
	// Version is the version the client last read; a mismatch is a conflict
	Version *int `json:"version,omitempty"`
}

// TransitionRequest is the body of win, reopen, hold and resume
type TransitionRequest struct {
	Notes   string `json:"notes,omitempty" validate:"max=1000"`
	Version *int   `json:"version,omitempty"`
}

// LoseOpportunityRequest contains the categorized reason and detailed notes for losing an opportunity
type LoseOpportunityRequest struct {
	Reason  LossReasonCategory `json:"reason,omitempty" validate:"omitempty,oneof=price timing competitor requirements other" example:"competitor"`
	Notes   string             `json:"notes" validate:"required,max=500" example:"Lost to competitor who offered lower price"`
	Version *int               `json:"version,omitempty"`
}

type CreateTargetRequest struct {
	AssignedTo  uuid.UUID       `json:"assignedTo" validate:"required"`
	Amount      decimal.Decimal `json:"amount" swaggertype:"string" example:"1200000"`
	Measure     TargetMeasure   `json:"measure,omitempty" validate:"omitempty,oneof=revenue margin"`
	PeriodStart string          `json:"periodStart" validate:"required,datetime=2006-01-02" example:"2025-01-01"`
	PeriodEnd   string          `json:"periodEnd" validate:"required,datetime=2006-01-02" example:"2025-12-31"`
	Notes       string          `json:"notes,omitempty" validate:"max=1000"`
}

// AuthUserDTO describes the authenticated caller and, when they have a profile, their org scope
type AuthUserDTO struct {
	UserID      string         `json:"userId"`
	DisplayName string         `json:"displayName"`
	Email       string         `json:"email,omitempty"`
	Roles       []UserRoleType `json:"roles"`
	Scope       *ScopeDTO      `json:"scope,omitempty"`
}
