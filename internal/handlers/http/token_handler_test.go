package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Suja2004/WebRTC/internal/core/domain"
	"github.com/Suja2004/WebRTC/internal/core/services"
	"github.com/Suja2004/WebRTC/internal/infrastructure/middleware"
	"github.com/Suja2004/WebRTC/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTokenRouter(t *testing.T) (*gin.Engine, services.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	auth := services.NewAuthService("test-secret", time.Hour)
	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(logger.NewContextLogger(zap.NewNop())))

	handler := NewTokenHandler(auth, time.Hour)
	handler.SetupRoutes(router, middleware.AuthMiddleware(auth))
	return router, auth
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

func TestIssueToken(t *testing.T) {
	router, auth := newTokenRouter(t)

	body := `{"name": "Alice", "email": "alice@example.com", "room": "standup"}`
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3600, resp.ExpiresIn)

	claims, err := auth.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "Alice", claims.Name)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, domain.RoomID("standup"), claims.Room)
}

func TestIssueTokenRejectsBlankName(t *testing.T) {
	router, _ := newTokenRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{"name": "   "}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshTokenReissuesClaims(t *testing.T) {
	router, auth := newTokenRouter(t)

	original, err := auth.GenerateGuestToken("Bob", "bob@example.com", "retro")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/token/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+original)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	claims, err := auth.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "Bob", claims.Name)
	assert.Equal(t, "bob@example.com", claims.Email)
	assert.Equal(t, domain.RoomID("retro"), claims.Room)
}

func TestRefreshTokenRequiresAuth(t *testing.T) {
	router, _ := newTokenRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/token/refresh", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/token/refresh", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
