package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate assigns a primary key when the caller did not set one
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Stage is one step of the sales pipeline
type Stage struct {
	BaseModel
	Key         string `gorm:"type:varchar(100);not null;uniqueIndex"`
	Position    int    `gorm:"type:int;not null"`
	Probability int    `gorm:"type:int;not null;default:0"`
	Points      int    `gorm:"type:int;not null;default:0"`
	IsWon       bool   `gorm:"not null;default:false;column:is_won"`
	IsLost      bool   `gorm:"not null;default:false;column:is_lost"`
	// DueDays overrides the default overdue threshold for this stage
	DueDays *int `gorm:"type:int;column:due_days"`
}

// TableName overrides the default table name to match the migration
func (Stage) TableName() string {
	return "pipeline_stages"
}

// IsTerminal reports whether the stage closes an opportunity
func (s Stage) IsTerminal() bool {
	return s.IsWon || s.IsLost
}

// ForecastCategory is the revenue forecasting confidence tier
type ForecastCategory string

const (
	ForecastPipeline ForecastCategory = "Pipeline"
	ForecastBestCase ForecastCategory = "Best Case"
	ForecastCommit   ForecastCategory = "Commit"
	ForecastClosed   ForecastCategory = "Closed"
)

// IsValid checks if the ForecastCategory is a valid enum value
func (c ForecastCategory) IsValid() bool {
	switch c {
	case ForecastPipeline, ForecastBestCase, ForecastCommit, ForecastClosed:
		return true
	}
	return false
}

// OpportunityStatus represents the lifecycle status of an opportunity
type OpportunityStatus string

const (
	OpportunityStatusOpen     OpportunityStatus = "open"
	OpportunityStatusWon      OpportunityStatus = "won"
	OpportunityStatusLost     OpportunityStatus = "lost"
	OpportunityStatusOnHold   OpportunityStatus = "on_hold"
	OpportunityStatusArchived OpportunityStatus = "archived"
)

// IsTerminal reports whether the status is won or lost
func (s OpportunityStatus) IsTerminal() bool {
	return s == OpportunityStatusWon || s == OpportunityStatusLost
}

// IsActive reports whether the opportunity can still be closed
func (s OpportunityStatus) IsActive() bool {
	return s == OpportunityStatusOpen || s == OpportunityStatusOnHold
}

func (s OpportunityStatus) IsValid() bool {
	switch s {
	case OpportunityStatusOpen, OpportunityStatusWon, OpportunityStatusLost,
		OpportunityStatusOnHold, OpportunityStatusArchived:
		return true
	}
	return false
}

// LossReasonCategory represents the categorized reason for losing an opportunity
type LossReasonCategory string

const (
	LossReasonPrice        LossReasonCategory = "price"
	LossReasonTiming       LossReasonCategory = "timing"
	LossReasonCompetitor   LossReasonCategory = "competitor"
	LossReasonRequirements LossReasonCategory = "requirements"
	LossReasonOther        LossReasonCategory = "other"
)

// IsValid checks if the LossReasonCategory is a valid enum value
func (lrc LossReasonCategory) IsValid() bool {
	switch lrc {
	case LossReasonPrice, LossReasonTiming, LossReasonCompetitor, LossReasonRequirements, LossReasonOther:
		return true
	}
	return false
}

// Opportunity represents a sales deal in the pipeline
type Opportunity struct {
	BaseModel
	Title            string           `gorm:"type:varchar(200);not null"`
	Description      string           `gorm:"type:text"`
	Amount           decimal.Decimal  `gorm:"type:decimal(15,2);not null;default:0"`
	Margin           decimal.Decimal  `gorm:"type:decimal(15,2);not null;default:0"`
	Currency         string           `gorm:"type:varchar(3);not null;default:'NOK'"`
	Stage            string           `gorm:"type:varchar(100);not null;index"`
	StageEnteredAt   time.Time        `gorm:"not null;column:stage_entered_at"`
	ForecastCategory ForecastCategory `gorm:"type:varchar(20);not null;default:'Pipeline';column:forecast_category"`
	// CategoryLocked is set when a user assigned the forecast category by hand
	CategoryLocked     bool                `gorm:"not null;default:false;column:category_locked"`
	Probability        int                 `gorm:"type:int;not null;default:0"`
	OwnerID            string              `gorm:"type:varchar(100);not null;index;column:owner_id"`
	OwnerName          string              `gorm:"type:varchar(200);column:owner_name"`
	Status             OpportunityStatus   `gorm:"type:varchar(20);not null;default:'open';index"`
	ExpectedCloseDate  *time.Time          `gorm:"type:date;column:expected_close_date"`
	ActualCloseDate    *time.Time          `gorm:"type:date;column:actual_close_date"`
	LossReason         string              `gorm:"type:varchar(500);column:loss_reason"`
	LossReasonCategory *LossReasonCategory `gorm:"type:varchar(50);column:loss_reason_category"`
	IsDeleted          bool                `gorm:"not null;default:false;index;column:is_deleted"`
	Version            int                 `gorm:"type:int;not null;default:1"`
}

// StageHistoryEntry is an append-only record of a stage transition
type StageHistoryEntry struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	OpportunityID uuid.UUID `gorm:"type:uuid;not null;index;column:opportunity_id"`
	FromStage     *string   `gorm:"type:varchar(100);column:from_stage"`
	ToStage       string    `gorm:"type:varchar(100);not null;column:to_stage"`
	ChangedBy     string    `gorm:"type:varchar(100);not null;column:changed_by"`
	ChangedByName string    `gorm:"type:varchar(200);column:changed_by_name"`
	Note          string    `gorm:"type:text"`
	ChangedAt     time.Time `gorm:"not null;column:changed_at"`
}

// TableName overrides the default table name to match the migration
func (StageHistoryEntry) TableName() string {
	return "opportunity_stage_history"
}

// BeforeCreate assigns a primary key and timestamp when missing
func (h *StageHistoryEntry) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	if h.ChangedAt.IsZero() {
		h.ChangedAt = time.Now().UTC()
	}
	return nil
}

// TargetMeasure selects which actual figure a target is compared against
type TargetMeasure string

const (
	MeasureRevenue TargetMeasure = "revenue"
	MeasureMargin  TargetMeasure = "margin"
)

// IsValid checks if the TargetMeasure is a valid enum value
func (m TargetMeasure) IsValid() bool {
	return m == MeasureRevenue || m == MeasureMargin
}

// SalesTarget is a quota assigned to a user profile for an inclusive date range
type SalesTarget struct {
	BaseModel
	AssignedTo  uuid.UUID       `gorm:"type:uuid;not null;index;column:assigned_to"`
	Amount      decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	Measure     TargetMeasure   `gorm:"type:varchar(20);not null;default:'revenue'"`
	PeriodStart time.Time       `gorm:"type:date;not null;column:period_start"`
	PeriodEnd   time.Time       `gorm:"type:date;not null;column:period_end"`
	Notes       string          `gorm:"type:text"`
	CreatedBy   string          `gorm:"type:varchar(100);column:created_by"`
}

// UserRoleType is the org role that determines dashboard scope
type UserRoleType string

const (
	RoleAccountManager UserRoleType = "account_manager"
	RoleManager        UserRoleType = "manager"
	RoleHead           UserRoleType = "head"
	RoleAdmin          UserRoleType = "admin"
	RoleAPIService     UserRoleType = "api_service"
)

// IsValid checks if the UserRoleType is a valid enum value
func (r UserRoleType) IsValid() bool {
	switch r {
	case RoleAccountManager, RoleManager, RoleHead, RoleAdmin, RoleAPIService:
		return true
	}
	return false
}

// UserProfile links an authenticated user to the org hierarchy
type UserProfile struct {
	BaseModel
	UserID       string       `gorm:"type:varchar(100);not null;uniqueIndex;column:user_id"`
	DisplayName  string       `gorm:"type:varchar(200);column:display_name"`
	Email        string       `gorm:"type:varchar(255)"`
	Role         UserRoleType `gorm:"type:varchar(50);not null;default:'account_manager'"`
	DepartmentID *uuid.UUID   `gorm:"type:uuid;index;column:department_id"`
	DivisionID   *uuid.UUID   `gorm:"type:uuid;index;column:division_id"`
	ManagerID    *uuid.UUID   `gorm:"type:uuid;index;column:manager_id"`
	HeadID       *uuid.UUID   `gorm:"type:uuid;index;column:head_id"`
	IsActive     bool         `gorm:"not null;default:true;column:is_active"`
}

// TeamMembership is an explicit manager to member mapping
type TeamMembership struct {
	BaseModel
	ManagerID uuid.UUID `gorm:"type:uuid;not null;index;column:manager_id"`
	MemberID  uuid.UUID `gorm:"type:uuid;not null;index;column:member_id"`
}

// AchievementSnapshot stores a computed achievement figure for reporting history
type AchievementSnapshot struct {
	BaseModel
	ProfileID   uuid.UUID       `gorm:"type:uuid;not null;index;column:profile_id"`
	Measure     TargetMeasure   `gorm:"type:varchar(20);not null"`
	WindowStart time.Time       `gorm:"type:date;not null;column:window_start"`
	WindowEnd   time.Time       `gorm:"type:date;not null;column:window_end"`
	Target      decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	Actual      decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	Percent     decimal.Decimal `gorm:"type:decimal(9,2);not null;default:0"`
	TakenAt     time.Time       `gorm:"not null;column:taken_at"`
}
