package handler

import (
	"net/http"

	"github.com/straye-as/pipeline-api/internal/service"
	"go.uber.org/zap"
)

type StageHandler struct {
	catalogService *service.CatalogService
	logger         *zap.Logger
}

func NewStageHandler(catalogService *service.CatalogService, logger *zap.Logger) *StageHandler {
	return &StageHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// @Summary List pipeline stages
// @Description List the stage catalog in pipeline order, including terminal stages
// @Tags Stages
// @Produce json
// @Success 200 {array} domain.StageDTO
// @Failure 500 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /stages [get]
func (h *StageHandler) List(w http.ResponseWriter, r *http.Request) {
	stages, err := h.catalogService.ListStages(r.Context())
	if err != nil {
		respondDomainError(w, h.logger, err, "list stages")
		return
	}

	respondJSON(w, http.StatusOK, stages)
}

// @Summary Refresh stage catalog
// @Description Drop the cached stage catalog so the next request reloads it from the database
// @Tags Stages
// @Produce json
// @Success 200 {array} domain.StageDTO
// @Failure 403 {object} domain.APIError
// @Failure 500 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /stages/refresh [post]
func (h *StageHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.catalogService.Invalidate(r.Context()); err != nil {
		respondDomainError(w, h.logger, err, "invalidate stage catalog")
		return
	}

	h.List(w, r)
}
