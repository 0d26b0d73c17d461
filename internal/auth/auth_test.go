package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/config"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-signing-secret-0123456789"

func newManager() *auth.JWTManager {
	return auth.NewJWTManager(&config.AuthConfig{
		JWTSecret: testSecret,
		Issuer:    "straye-pipeline-api",
		TokenTTL:  60,
	})
}

func newMiddleware(apiKey string) *auth.Middleware {
	cfg := &config.Config{ApiKey: config.ApiKeyConfig{Value: apiKey}}
	return auth.NewMiddleware(cfg, newManager(), zap.NewNop())
}

func captureUser(captured **auth.UserContext) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWTManager_RoundTrip(t *testing.T) {
	m := newManager()
	user := &auth.UserContext{
		UserID:      "am-1",
		DisplayName: "Kari Nordmann",
		Email:       "kari@straye.no",
		Roles:       []domain.UserRoleType{domain.RoleAccountManager},
	}

	token, err := m.Generate(user, time.Now())
	require.NoError(t, err)

	got, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestJWTManager_Expired(t *testing.T) {
	m := newManager()
	token, err := m.Generate(&auth.UserContext{UserID: "am-1"}, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrExpiredToken)
}

func TestJWTManager_RejectsOtherSigningMethod(t *testing.T) {
	claims := jwt.RegisteredClaims{Subject: "am-1", Issuer: "straye-pipeline-api"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = newManager().ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWTManager_DropsUnknownRoles(t *testing.T) {
	claims := auth.Claims{
		Roles: []string{"manager", "superuser"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "mgr-1",
			Issuer:    "straye-pipeline-api",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	got, err := newManager().ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, []domain.UserRoleType{domain.RoleManager}, got.Roles)
}

func TestMiddleware_Authenticate(t *testing.T) {
	mw := newMiddleware("admin-key")

	t.Run("api key yields system user", func(t *testing.T) {
		var user *auth.UserContext
		req := httptest.NewRequest(http.MethodGet, "/api/v1/opportunities", nil)
		req.Header.Set("x-api-key", "admin-key")
		w := httptest.NewRecorder()

		mw.Authenticate(captureUser(&user)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, user)
		assert.True(t, user.IsSystem())
		assert.True(t, user.HasRole(domain.RoleAPIService))
	})

	t.Run("wrong api key", func(t *testing.T) {
		var user *auth.UserContext
		req := httptest.NewRequest(http.MethodGet, "/api/v1/opportunities", nil)
		req.Header.Set("x-api-key", "nope")
		w := httptest.NewRecorder()

		mw.Authenticate(captureUser(&user)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Nil(t, user)
	})

	t.Run("bearer token", func(t *testing.T) {
		token, err := newManager().Generate(&auth.UserContext{
			UserID: "am-1",
			Roles:  []domain.UserRoleType{domain.RoleAccountManager},
		}, time.Now())
		require.NoError(t, err)

		var user *auth.UserContext
		req := httptest.NewRequest(http.MethodGet, "/api/v1/opportunities", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		mw.Authenticate(captureUser(&user)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, user)
		assert.Equal(t, "am-1", user.UserID)
	})

	t.Run("missing header", func(t *testing.T) {
		var user *auth.UserContext
		w := httptest.NewRecorder()
		mw.Authenticate(captureUser(&user)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		var user *auth.UserContext
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic abc")
		w := httptest.NewRecorder()
		mw.Authenticate(captureUser(&user)).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestMiddleware_RequireRole(t *testing.T) {
	mw := newMiddleware("")
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	guarded := mw.RequireRole(domain.RoleManager, domain.RoleAdmin)(ok)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/targets", nil)
	ctx := auth.WithUserContext(req.Context(), &auth.UserContext{UserID: "am-1", Roles: []domain.UserRoleType{domain.RoleAccountManager}})
	w := httptest.NewRecorder()
	guarded.ServeHTTP(w, req.WithContext(ctx))
	assert.Equal(t, http.StatusForbidden, w.Code)

	ctx = auth.WithUserContext(req.Context(), &auth.UserContext{UserID: "mgr-1", Roles: []domain.UserRoleType{domain.RoleManager}})
	w = httptest.NewRecorder()
	guarded.ServeHTTP(w, req.WithContext(ctx))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	guarded.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
