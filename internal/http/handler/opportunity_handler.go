package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/repository"
	"github.com/straye-as/pipeline-api/internal/service"
	"go.uber.org/zap"
)

type OpportunityHandler struct {
	opportunityService *service.OpportunityService
	logger             *zap.Logger
}

func NewOpportunityHandler(opportunityService *service.OpportunityService, logger *zap.Logger) *OpportunityHandler {
	return &OpportunityHandler{
		opportunityService: opportunityService,
		logger:             logger,
	}
}

// @Summary List opportunities
// @Description List opportunities visible to the caller's org scope
// @Tags Opportunities
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param status query string false "Comma separated statuses (open, on_hold, won, lost, archived)"
// @Param stage query string false "Filter by stage name"
// @Param category query string false "Filter by forecast category (Pipeline, Best Case, Commit, Closed)"
// @Param closeFrom query string false "Expected close on or after (YYYY-MM-DD)"
// @Param closeTo query string false "Expected close on or before (YYYY-MM-DD)"
// @Param sortBy query string false "Sort field (createdAt, updatedAt, title, amount, probability, expectedCloseDate, stageEnteredAt)"
// @Param sortOrder query string false "Sort order (asc, desc)" default(desc)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.OpportunityDTO}
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /opportunities [get]
func (h *OpportunityHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	if pageSize < 1 {
		pageSize = 20
	}

	filters := &repository.OpportunityFilters{}

	if s := q.Get("status"); s != "" {
		for _, part := range strings.Split(s, ",") {
			status := domain.OpportunityStatus(strings.TrimSpace(part))
			if !status.IsValid() {
				respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid status: %s", part))
				return
			}
			filters.Statuses = append(filters.Statuses, status)
		}
	}

	if stage := q.Get("stage"); stage != "" {
		filters.Stage = &stage
	}

	if c := q.Get("category"); c != "" {
		category := domain.ForecastCategory(c)
		if !category.IsValid() {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid forecast category: %s", c))
			return
		}
		filters.Category = &category
	}

	if cf := q.Get("closeFrom"); cf != "" {
		t, err := service.ParseDate(cf)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid closeFrom date, expected YYYY-MM-DD")
			return
		}
		filters.CloseFrom = &t
	}
	if ct := q.Get("closeTo"); ct != "" {
		t, err := service.ParseDate(ct)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid closeTo date, expected YYYY-MM-DD")
			return
		}
		filters.CloseTo = &t
	}

	sort := repository.DefaultSortConfig()
	if sortBy := q.Get("sortBy"); sortBy != "" {
		sort.Field = sortBy
	}
	if order := q.Get("sortOrder"); order != "" {
		sort.Order = repository.ParseSortOrder(order)
	}

	result, err := h.opportunityService.List(r.Context(), page, pageSize, filters, sort)
	if err != nil {
		respondDomainError(w, h.logger, err, "list opportunities")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// @Summary Create opportunity
// @Description Create a new opportunity in the first stage of the pipeline
// @Tags Opportunities
// @Accept json
// @Produce json
// @Param opportunity body domain.CreateOpportunityRequest true "Opportunity data"
// @Success 201 {object} domain.OpportunityDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 500 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /opportunities [post]
func (h *OpportunityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOpportunityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	opp, err := h.opportunityService.Create(r.Context(), &req)
	if err != nil {
		respondDomainError(w, h.logger, err, "create opportunity")
		return
	}

	w.Header().Set("Location", "/api/v1/opportunities/"+opp.ID.String())
	respondJSON(w, http.StatusCreated, opp)
}

// @Summary Get opportunity
// @Description Get an opportunity by ID with its weighted amount and stage age
// @Tags Opportunities
// @Produce json
// @Param id path string true "Opportunity ID" format(uuid)
// @Success 200 {object} domain.OpportunityDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /opportunities/{id} [get]
func (h *OpportunityHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "opportunity")
	if !ok {
		return
	}

	opp, err := h.opportunityService.GetByID(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, err, "get opportunity")
		return
	}

	respondJSON(w, http.StatusOK, opp)
}

// @Summary Delete opportunity
// @Description Soft delete an opportunity
// @Tags Opportunities
// @Param id path string true "Opportunity ID" format(uuid)
// @Success 204
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /opportunities/{id} [delete]
func (h *OpportunityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "opportunity")
	if !ok {
		return
	}

	if err := h.opportunityService.Delete(r.Context(), id); err != nil {
		respondDomainError(w, h.logger, err, "delete opportunity")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// @Summary Advance stage
// @Description Move an open opportunity forward to a later open stage
// @Tags Opportunities
// @Accept json
// @Produce json
// @Param id path string true "Opportunity ID" format(uuid)
// @Param request body domain.AdvanceStageRequest true "Target stage"
// @Success 200 {object} domain.OpportunityDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /opportunities/{id}/advance [post]
func (h *OpportunityHandler) Advance(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "opportunity")
	if !ok {
		return
	}

	var req domain.AdvanceStageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	opp, err := h.opportunityService.AdvanceStage(r.Context(), id, &req)
	if err != nil {
		respondDomainError(w, h.logger, err, "advance opportunity")
		return
	}

	respondJSON(w, http.StatusOK, opp)
}

// @Summary Win opportunity
// @Description Close an open or held opportunity as won
// @Tags Opportunities
// @Accept json
// @Produce json
// @Param id path string true "Opportunity ID" format(uuid)
// @Param request body domain.TransitionRequest false "Notes and expected version"
// @Success 200 {object} domain.OpportunityDTO
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /opportunities/{id}/win [post]
func (h *OpportunityHandler) Win(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, "win opportunity", h.opportunityService.MarkWon)
}

// @Summary Lose opportunity
// @Description Close an open or held opportunity as lost with a categorized reason
// @Tags Opportunities
// @Accept json
// @Produce json
// @Param id path string true "Opportunity ID" format(uuid)
// @Param request body domain.LoseOpportunityRequest true "Loss reason"
// @Success 200 {object} domain.OpportunityDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /opportunities/{id}/lose [post]
func (h *OpportunityHandler) Lose(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "opportunity")
	if !ok {
		return
	}

	var req domain.LoseOpportunityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	opp, err := h.opportunityService.MarkLost(r.Context(), id, &req)
	if err != nil {
		respondDomainError(w, h.logger, err, "lose opportunity")
		return
	}

	respondJSON(w, http.StatusOK, opp)
}

// @Summary Reopen opportunity
// @Description Move a won or lost opportunity back to the last open stage
// @Tags Opportunities
// @Accept json
// @Produce json
// @Param id path string true "Opportunity ID" format(uuid)
// @Param request body domain.TransitionRequest false "Notes and expected version"
// @Success 200 {object} domain.OpportunityDTO
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /opportunities/{id}/reopen [post]
func (h *OpportunityHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, "reopen opportunity", h.opportunityService.Reopen)
}

// @Summary Hold opportunity
// @Description Put an open opportunity on hold
// @Tags Opportunities
// @Accept json
// @Produce json
// @Param id path string true "Opportunity ID" format(uuid)
// @Param request body domain.TransitionRequest false "Notes and expected version"
// @Success 200 {object} domain.OpportunityDTO
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /opportunities/{id}/hold [post]
func (h *OpportunityHandler) Hold(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, "hold opportunity", h.opportunityService.Hold)
}

// @Summary Resume opportunity
// @Description Resume a held opportunity in the stage it was held in
// @Tags Opportunities
// @Accept json
// @Produce json
// @Param id path string true "Opportunity ID" format(uuid)
// @Param request body domain.TransitionRequest false "Notes and expected version"
// @Success 200 {object} domain.OpportunityDTO
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /opportunities/{id}/resume [post]
func (h *OpportunityHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, "resume opportunity", h.opportunityService.Resume)
}

type transitionFunc func(ctx context.Context, id uuid.UUID, req *domain.TransitionRequest) (*domain.OpportunityDTO, error)

// simpleTransition handles the transitions whose body is optional
func (h *OpportunityHandler) simpleTransition(w http.ResponseWriter, r *http.Request, action string, fn transitionFunc) {
	id, ok := parseID(w, r, "opportunity")
	if !ok {
		return
	}

	var req domain.TransitionRequest
	if r.ContentLength != 0 {
		if !decodeAndValidate(w, r, &req) {
			return
		}
	}

	opp, err := fn(r.Context(), id, &req)
	if err != nil {
		respondDomainError(w, h.logger, err, action)
		return
	}

	respondJSON(w, http.StatusOK, opp)
}

// @Summary Get stage history
// @Description Get the stage history of an opportunity, oldest first
// @Tags Opportunities
// @Produce json
// @Param id path string true "Opportunity ID" format(uuid)
// @Success 200 {array} domain.StageHistoryDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /opportunities/{id}/history [get]
func (h *OpportunityHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "opportunity")
	if !ok {
		return
	}

	history, err := h.opportunityService.GetStageHistory(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, err, "get stage history")
		return
	}

	respondJSON(w, http.StatusOK, history)
}

// @Summary Get performance score
// @Description Get the performance points of an opportunity
// @Tags Opportunities
// @Produce json
// @Param id path string true "Opportunity ID" format(uuid)
// @Success 200 {object} domain.ScoreDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 500 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /opportunities/{id}/score [get]
func (h *OpportunityHandler) Score(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "opportunity")
	if !ok {
		return
	}

	score, err := h.opportunityService.GetScore(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, err, "get score")
		return
	}

	respondJSON(w, http.StatusOK, score)
}
