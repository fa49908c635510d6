package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/middleware"
	"storefront/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "test_secret"

// =====================
// レスポンス確認用
// =====================

type mwErrorResponse struct {
	Error string `json:"error"`
}

type mwOKResponse struct {
	UserID       int64  `json:"user_id"`
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
}

// =====================
// UserRepository モック
// =====================

type UserRepoMock struct {
	mock.Mock
}

func (m *UserRepoMock) FindByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

var _ repository.UserRepository = (*UserRepoMock)(nil)

// =====================
// helper
// =====================

func mustMakeJWT(t *testing.T, secret string, claims jwt.MapClaims, method jwt.SigningMethod) string {
	t.Helper()

	if _, ok := claims["exp"]; !ok {
		claims["exp"] = 9999999999
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return s
}

func userClaims(sub int64, role string, tv int) jwt.MapClaims {
	return jwt.MapClaims{"sub": sub, "role": role, "tv": tv, "iat": 1}
}

func okHandler(c echo.Context) error {
	uid, _ := middleware.UserIDFrom(c)
	role, _ := c.Get(middleware.CtxUserRoleKey).(model.Role)
	tv, _ := c.Get(middleware.CtxTokenVersionKey).(int)
	return c.JSON(http.StatusOK, mwOKResponse{UserID: uid, Role: string(role), TokenVersion: tv})
}

func newEcho(mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.GET("/me", okHandler, mw...)
	return e
}

func runRequest(t *testing.T, e *echo.Echo, authHeader string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeMWError(t *testing.T, rec *httptest.ResponseRecorder) mwErrorResponse {
	t.Helper()
	var r mwErrorResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

func decodeMWOK(t *testing.T, rec *httptest.ResponseRecorder) mwOKResponse {
	t.Helper()
	var r mwOKResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

// =====================
// AuthJWT
// =====================

func TestAuthJWT_OK(t *testing.T) {
	e := newEcho(middleware.AuthJWT(testSecret))
	tok := mustMakeJWT(t, testSecret, userClaims(10, "USER", 2), jwt.SigningMethodHS256)

	rec := runRequest(t, e, "Bearer "+tok)

	assert.Equal(t, http.StatusOK, rec.Code)
	got := decodeMWOK(t, rec)
	assert.Equal(t, int64(10), got.UserID)
	assert.Equal(t, "USER", got.Role)
	assert.Equal(t, 2, got.TokenVersion)
}

func TestAuthJWT_StringSubAndMissingOptionalClaims(t *testing.T) {
	e := newEcho(middleware.AuthJWT(testSecret))
	tok := mustMakeJWT(t, testSecret, jwt.MapClaims{"sub": "42"}, jwt.SigningMethodHS256)

	rec := runRequest(t, e, "bearer "+tok)

	assert.Equal(t, http.StatusOK, rec.Code)
	got := decodeMWOK(t, rec)
	assert.Equal(t, int64(42), got.UserID)
	assert.Equal(t, "USER", got.Role)
	assert.Equal(t, 0, got.TokenVersion)
}

func TestAuthJWT_Rejects(t *testing.T) {
	e := newEcho(middleware.AuthJWT(testSecret))

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic abc"},
		{"empty token", "Bearer  "},
		{"garbage", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + mustMakeJWT(t, "other", userClaims(1, "USER", 0), jwt.SigningMethodHS256)},
		{"wrong alg", "Bearer " + mustMakeJWT(t, testSecret, userClaims(1, "USER", 0), jwt.SigningMethodHS512)},
		{"expired", "Bearer " + mustMakeJWT(t, testSecret, jwt.MapClaims{"sub": 1, "exp": 1}, jwt.SigningMethodHS256)},
		{"no sub", "Bearer " + mustMakeJWT(t, testSecret, jwt.MapClaims{"role": "USER"}, jwt.SigningMethodHS256)},
		{"zero sub", "Bearer " + mustMakeJWT(t, testSecret, userClaims(0, "USER", 0), jwt.SigningMethodHS256)},
		{"unknown role", "Bearer " + mustMakeJWT(t, testSecret, userClaims(1, "ROOT", 0), jwt.SigningMethodHS256)},
		{"negative tv", "Bearer " + mustMakeJWT(t, testSecret, userClaims(1, "USER", -1), jwt.SigningMethodHS256)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := runRequest(t, e, tc.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "unauthorized", decodeMWError(t, rec).Error)
		})
	}
}

// =====================
// TokenVersionGuard
// =====================

func TestTokenVersionGuard(t *testing.T) {
	cases := []struct {
		name     string
		user     *model.User
		err      error
		wantCode int
	}{
		{"match", &model.User{ID: 10, Role: model.RoleUser, TokenVersion: 2, IsActive: true}, nil, http.StatusOK},
		{"version mismatch", &model.User{ID: 10, Role: model.RoleUser, TokenVersion: 3, IsActive: true}, nil, http.StatusUnauthorized},
		{"inactive", &model.User{ID: 10, Role: model.RoleUser, TokenVersion: 2, IsActive: false}, nil, http.StatusUnauthorized},
		{"not found", nil, repository.ErrUserNotFound, http.StatusUnauthorized},
		{"db error", nil, errors.New("db down"), http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			users := new(UserRepoMock)
			users.On("FindByID", mock.Anything, int64(10)).Return(tc.user, tc.err)

			e := newEcho(middleware.AuthJWT(testSecret), middleware.TokenVersionGuard(users))
			tok := mustMakeJWT(t, testSecret, userClaims(10, "USER", 2), jwt.SigningMethodHS256)

			rec := runRequest(t, e, "Bearer "+tok)
			assert.Equal(t, tc.wantCode, rec.Code)
			users.AssertExpectations(t)
		})
	}
}

// =====================
// AdminRoleGuard
// =====================

func TestAdminRoleGuard_RoleComesFromDB(t *testing.T) {
	users := new(UserRepoMock)
	//トークンはADMINを名乗るがDBではUSER
	users.On("FindByID", mock.Anything, int64(10)).Return(&model.User{ID: 10, Role: model.RoleUser, IsActive: true}, nil)

	e := newEcho(middleware.AuthJWT(testSecret), middleware.TokenVersionGuard(users), middleware.AdminRoleGuard())
	tok := mustMakeJWT(t, testSecret, userClaims(10, "ADMIN", 0), jwt.SigningMethodHS256)

	rec := runRequest(t, e, "Bearer "+tok)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "admin only", decodeMWError(t, rec).Error)
}

func TestAdminRoleGuard_Admin(t *testing.T) {
	users := new(UserRepoMock)
	users.On("FindByID", mock.Anything, int64(1)).Return(&model.User{ID: 1, Role: model.RoleAdmin, IsActive: true}, nil)

	e := newEcho(middleware.AuthJWT(testSecret), middleware.TokenVersionGuard(users), middleware.AdminRoleGuard())
	tok := mustMakeJWT(t, testSecret, userClaims(1, "ADMIN", 0), jwt.SigningMethodHS256)

	rec := runRequest(t, e, "Bearer "+tok)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ADMIN", decodeMWOK(t, rec).Role)
}

func TestAdminRoleGuard_NoRole(t *testing.T) {
	e := newEcho(middleware.AdminRoleGuard())

	rec := runRequest(t, e, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =====================
// RequestID / RequestLogger
// =====================

func TestRequestIDAndLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := newEcho(middleware.RequestID(), middleware.RequestLogger(zap.New(core)))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))
	entries := logs.FilterMessage("request").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "abc-123", fields["request_id"])
		assert.Equal(t, int64(http.StatusOK), fields["status"])
		assert.Equal(t, "/me", fields["path"])
	}
}

func TestRequestID_Generated(t *testing.T) {
	e := newEcho(middleware.RequestID())

	rec := runRequest(t, e, "")
	assert.Len(t, rec.Header().Get("X-Request-Id"), 36)
}

func TestRequestLogger_ErrorStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := echo.New()
	e.Use(middleware.RequestLogger(zap.New(core)))
	e.GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "teapot")
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	entries := logs.FilterMessage("request").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, int64(http.StatusTeapot), entries[0].ContextMap()["status"])
	}
}
