package handler

import (
	"errors"
	"net/http"

	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/service"
	"go.uber.org/zap"
)

type AuthHandler struct {
	scopeService *service.ScopeService
	logger       *zap.Logger
}

func NewAuthHandler(scopeService *service.ScopeService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		scopeService: scopeService,
		logger:       logger,
	}
}

// Me godoc
// @Summary Get current authenticated user
// @Description Returns the authenticated user with token roles and, when a profile exists, the resolved org scope
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.AuthUserDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	roles := userCtx.Roles
	if roles == nil {
		roles = []domain.UserRoleType{}
	}
	dto := domain.AuthUserDTO{
		UserID:      userCtx.UserID,
		DisplayName: userCtx.DisplayName,
		Email:       userCtx.Email,
		Roles:       roles,
	}

	scope, err := h.scopeService.Describe(r.Context())
	switch {
	case err == nil:
		dto.Scope = scope
	case errors.Is(err, service.ErrNoProfile):
		// users without a profile can still sign in
	default:
		respondDomainError(w, h.logger, err, "resolve scope")
		return
	}

	respondJSON(w, http.StatusOK, dto)
}
