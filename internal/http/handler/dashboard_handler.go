package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/service"
	"go.uber.org/zap"
)

const defaultHistoryLimit = 12

type DashboardHandler struct {
	dashboardService *service.DashboardService
	targetService    *service.TargetService
	snapshotService  *service.SnapshotService
	scopeService     *service.ScopeService
	logger           *zap.Logger
	now              func() time.Time
}

func NewDashboardHandler(
	dashboardService *service.DashboardService,
	targetService *service.TargetService,
	snapshotService *service.SnapshotService,
	scopeService *service.ScopeService,
	logger *zap.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		targetService:    targetService,
		snapshotService:  snapshotService,
		scopeService:     scopeService,
		logger:           logger,
		now:              time.Now,
	}
}

// currentMonth returns the first and last calendar day of the month containing now
func currentMonth(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}

// windowParams reads a start/end date pair, defaulting to the current month
func (h *DashboardHandler) windowParams(w http.ResponseWriter, r *http.Request, startKey, endKey string) (time.Time, time.Time, bool) {
	start, end := currentMonth(h.now())
	q := r.URL.Query()

	if s := q.Get(startKey); s != "" {
		t, err := service.ParseDate(s)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s, expected YYYY-MM-DD", startKey))
			return time.Time{}, time.Time{}, false
		}
		start = t
	}
	if e := q.Get(endKey); e != "" {
		t, err := service.ParseDate(e)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s, expected YYYY-MM-DD", endKey))
			return time.Time{}, time.Time{}, false
		}
		end = t
	}
	return start, end, true
}

// @Summary Get forecast
// @Description Bucket open opportunities closing in the period by forecast category.
// @Description Opportunities without an expected close date are counted as undated and excluded from the buckets.
// @Description The weighted pipeline is the sum of amount times stage probability, shifted by the adjustment percent and clamped to 0-100.
// @Tags Dashboard
// @Produce json
// @Param periodStart query string false "Period start (YYYY-MM-DD), defaults to the first day of the current month"
// @Param periodEnd query string false "Period end (YYYY-MM-DD), defaults to the last day of the current month"
// @Param adjustment query int false "Probability adjustment in percentage points (-100 to 100)" default(0)
// @Success 200 {object} domain.ForecastDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /dashboard/forecast [get]
func (h *DashboardHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.windowParams(w, r, "periodStart", "periodEnd")
	if !ok {
		return
	}

	adjustment := 0
	if a := r.URL.Query().Get("adjustment"); a != "" {
		v, err := strconv.Atoi(a)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid adjustment, expected an integer")
			return
		}
		adjustment = v
	}

	forecast, err := h.dashboardService.Forecast(r.Context(), start, end, adjustment)
	if err != nil {
		respondDomainError(w, h.logger, err, "get forecast")
		return
	}

	respondJSON(w, http.StatusOK, forecast)
}

// @Summary Get target achievement
// @Description Roll up targets apportioned to the window against actuals, per member of the caller's scope.
// @Description A member without a target reports 0 percent.
// @Tags Dashboard
// @Produce json
// @Param windowStart query string false "Window start (YYYY-MM-DD), defaults to the first day of the current month"
// @Param windowEnd query string false "Window end (YYYY-MM-DD), defaults to the last day of the current month"
// @Param measure query string false "Target measure (revenue, margin)" default(revenue)
// @Param profileId query string false "Restrict to a single profile" format(uuid)
// @Success 200 {object} domain.AchievementDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /dashboard/achievement [get]
func (h *DashboardHandler) Achievement(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.windowParams(w, r, "windowStart", "windowEnd")
	if !ok {
		return
	}

	measure, ok := measureParam(w, r)
	if !ok {
		return
	}

	var profileID *uuid.UUID
	if p := r.URL.Query().Get("profileId"); p != "" {
		id, err := uuid.Parse(p)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid profileId")
			return
		}
		profileID = &id
	}

	report, err := h.targetService.Achievement(r.Context(), start, end, measure, profileID)
	if err != nil {
		respondDomainError(w, h.logger, err, "get achievement")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// @Summary Get achievement history
// @Description List monthly achievement snapshots of a profile, newest first
// @Tags Dashboard
// @Produce json
// @Param profileId query string true "Profile ID" format(uuid)
// @Param limit query int false "Maximum number of snapshots" default(12)
// @Success 200 {array} domain.AchievementSnapshotDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /dashboard/achievement/history [get]
func (h *DashboardHandler) AchievementHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	profileID, err := uuid.Parse(q.Get("profileId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid or missing profileId")
		return
	}

	limit := defaultHistoryLimit
	if l := q.Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 1 {
			respondWithError(w, http.StatusBadRequest, "Invalid limit, expected a positive integer")
			return
		}
		limit = v
	}

	history, err := h.snapshotService.History(r.Context(), profileID, limit)
	if err != nil {
		respondDomainError(w, h.logger, err, "get achievement history")
		return
	}

	respondJSON(w, http.StatusOK, history)
}

// @Summary Get leaderboard
// @Description Rank opportunity owners in the caller's scope by performance points. Equal points share a rank.
// @Tags Dashboard
// @Produce json
// @Success 200 {array} domain.LeaderboardEntryDTO
// @Failure 403 {object} domain.APIError
// @Failure 500 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /dashboard/leaderboard [get]
func (h *DashboardHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.dashboardService.Leaderboard(r.Context())
	if err != nil {
		respondDomainError(w, h.logger, err, "get leaderboard")
		return
	}

	respondJSON(w, http.StatusOK, board)
}

// @Summary Get overdue opportunities
// @Description List open opportunities that have stayed in their stage longer than its due days, longest first
// @Tags Dashboard
// @Produce json
// @Success 200 {array} domain.OpportunityDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /dashboard/overdue [get]
func (h *DashboardHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	overdue, err := h.dashboardService.Overdue(r.Context())
	if err != nil {
		respondDomainError(w, h.logger, err, "get overdue opportunities")
		return
	}

	respondJSON(w, http.StatusOK, overdue)
}

// @Summary Get org scope
// @Description Describe the caller's resolved org scope and the strategy that produced it
// @Tags Dashboard
// @Produce json
// @Success 200 {object} domain.ScopeDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /dashboard/scope [get]
func (h *DashboardHandler) Scope(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scopeService.Describe(r.Context())
	if err != nil {
		respondDomainError(w, h.logger, err, "resolve scope")
		return
	}

	respondJSON(w, http.StatusOK, scope)
}

func measureParam(w http.ResponseWriter, r *http.Request) (domain.TargetMeasure, bool) {
	m := r.URL.Query().Get("measure")
	if m == "" {
		return domain.MeasureRevenue, true
	}
	measure := domain.TargetMeasure(m)
	if !measure.IsValid() {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid measure: %s", m))
		return "", false
	}
	return measure, true
}
