package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shamar-morrison/showseek-backend/internal/config"
	"github.com/shamar-morrison/showseek-backend/internal/core"
)

// SetupRoutes configures all the application routes with their handlers and
// middleware. Global middleware (logging, recovery, CORS) is applied to the
// router before this is called, in main.go; authMW is the ID-token verifier
// guarding the purchase endpoints.
func SetupRoutes(
	router *gin.Engine,
	appConfig *config.Config,
	logger *zap.Logger,
	authMW gin.HandlerFunc,
	entitlementService core.EntitlementService,
	webhookService core.WebhookService,
) {
	// RevenueCat expects 405 for non-POST hits on the webhook path.
	router.HandleMethodNotAllowed = true

	entitlementHandler := NewEntitlementHandler(entitlementService, logger)
	webhookHandler := NewWebhookHandler(webhookService, appConfig.RevenueCatWebhookSecret, logger)

	apiV1 := router.Group("/api/v1")
	{
		// User-initiated purchase endpoints; all require a Firebase ID token.
		purchasesGroup := apiV1.Group("/purchases", authMW)
		{
			purchasesGroup.POST("/validate", entitlementHandler.ValidatePurchase)
			purchasesGroup.POST("/sync", entitlementHandler.SyncPurchase)
			purchasesGroup.GET("/status", entitlementHandler.PurchaseStatus)
		}

		// Webhook endpoint: no Firebase auth, authenticated by shared secret
		// inside the handler.
		apiV1.POST("/webhooks/revenuecat", webhookHandler.HandleRevenueCatWebhook)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "ShowSeek backend is healthy."})
	})

	logger.Info("API routes configured successfully under /api/v1 and /health.")
}
