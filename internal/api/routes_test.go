package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/shamar-morrison/showseek-backend/internal/config"
	"github.com/shamar-morrison/showseek-backend/internal/core"
	"github.com/shamar-morrison/showseek-backend/internal/models"
)

// newTestRouter wires the full route table the way main.go does, with a stub
// auth middleware in place of the Firebase token verifier.
func newTestRouter(es *stubEntitlementService, ws *stubWebhookService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	authMW := func(c *gin.Context) {
		c.Set("userID", "user-1")
		c.Next()
	}
	cfg := &config.Config{RevenueCatWebhookSecret: "hook-secret"}
	SetupRoutes(router, cfg, zap.NewNop(), authMW, es, ws)
	return router
}

func TestWebhookRouteWrongMethodIs405(t *testing.T) {
	router := newTestRouter(&stubEntitlementService{}, &stubWebhookService{})

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/api/v1/webhooks/revenuecat", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		})
	}
}

func TestHealthRoute(t *testing.T) {
	router := newTestRouter(&stubEntitlementService{}, &stubWebhookService{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "UP")
}

func TestPurchaseRoutesReachHandlers(t *testing.T) {
	es := &stubEntitlementService{
		outcome: &core.ValidationOutcome{Success: true, EntitlementType: models.EntitlementNone},
		status:  &models.Entitlement{EntitlementType: models.EntitlementNone},
	}
	router := newTestRouter(es, &stubWebhookService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/purchases/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", es.gotUserID)
}
