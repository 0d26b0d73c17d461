package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/service"
	"go.uber.org/zap"
)

type TargetHandler struct {
	targetService *service.TargetService
	logger        *zap.Logger
}

func NewTargetHandler(targetService *service.TargetService, logger *zap.Logger) *TargetHandler {
	return &TargetHandler{
		targetService: targetService,
		logger:        logger,
	}
}

// @Summary List sales targets
// @Description List targets assigned within the caller's org scope, optionally overlapping a window
// @Tags Targets
// @Produce json
// @Param periodStart query string false "Window start (YYYY-MM-DD)"
// @Param periodEnd query string false "Window end (YYYY-MM-DD)"
// @Param measure query string false "Target measure (revenue, margin)"
// @Success 200 {array} domain.SalesTargetDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /targets [get]
func (h *TargetHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var windowStart, windowEnd *time.Time
	if s := q.Get("periodStart"); s != "" {
		t, err := service.ParseDate(s)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid periodStart, expected YYYY-MM-DD")
			return
		}
		windowStart = &t
	}
	if e := q.Get("periodEnd"); e != "" {
		t, err := service.ParseDate(e)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid periodEnd, expected YYYY-MM-DD")
			return
		}
		windowEnd = &t
	}

	var measure *domain.TargetMeasure
	if m := q.Get("measure"); m != "" {
		tm := domain.TargetMeasure(m)
		if !tm.IsValid() {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid measure: %s", m))
			return
		}
		measure = &tm
	}

	targets, err := h.targetService.List(r.Context(), windowStart, windowEnd, measure)
	if err != nil {
		respondDomainError(w, h.logger, err, "list targets")
		return
	}

	respondJSON(w, http.StatusOK, targets)
}

// @Summary Create sales target
// @Description Assign a revenue or margin target to a profile within the caller's scope
// @Tags Targets
// @Accept json
// @Produce json
// @Param target body domain.CreateTargetRequest true "Target data"
// @Success 201 {object} domain.SalesTargetDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /targets [post]
func (h *TargetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTargetRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	target, err := h.targetService.Create(r.Context(), &req)
	if err != nil {
		respondDomainError(w, h.logger, err, "create target")
		return
	}

	respondJSON(w, http.StatusCreated, target)
}
