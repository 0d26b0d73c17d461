package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/http/handler"
	"github.com/straye-as/pipeline-api/internal/repository"
	"github.com/straye-as/pipeline-api/internal/service"
	"github.com/straye-as/pipeline-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAuthHandler_Me(t *testing.T) {
	db := testutil.SetupTestDB(t)
	scopes := service.NewScopeService(repository.NewProfileRepository(db), true, zap.NewNop())
	h := handler.NewAuthHandler(scopes, zap.NewNop())
	testutil.CreateTestProfile(t, db, "am-1", domain.RoleAccountManager)

	t.Run("with profile", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil).WithContext(userContext("am-1"))
		rr := httptest.NewRecorder()
		h.Me(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var me domain.AuthUserDTO
		decode(t, rr, &me)
		assert.Equal(t, "am-1", me.UserID)
		require.NotNil(t, me.Scope)
		assert.Equal(t, "self", me.Scope.Strategy)
	})

	t.Run("without profile", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil).WithContext(userContext("newcomer"))
		rr := httptest.NewRecorder()
		h.Me(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var me domain.AuthUserDTO
		decode(t, rr, &me)
		assert.Nil(t, me.Scope)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.Me(rr, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
