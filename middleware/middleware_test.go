package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"colorgrid/services"
	"colorgrid/store"

	"github.com/gin-gonic/gin"
)

func newRouter(auth *services.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS())
	router.GET("/private", AuthMiddleware(auth), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUsername))
	})
	return router
}

func TestAuthMiddleware(t *testing.T) {
	auth := services.NewAuthService(store.NewMemoryStore(), "secret", time.Hour)
	router := newRouter(auth)
	token, _ := auth.IssueToken("alice")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "alice" {
		t.Errorf("expected 200 alice, got %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newRouter(services.NewAuthService(store.NewMemoryStore(), "secret", time.Hour))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/private", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
