package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shamar-morrison/showseek-backend/internal/core"
	"github.com/shamar-morrison/showseek-backend/internal/models"
)

// WebhookHandler handles inbound RevenueCat webhooks. The endpoint is on an
// unauthenticated transport; the shared secret in the Authorization header is
// the only authentication.
type WebhookHandler struct {
	webhookService core.WebhookService
	secret         string
	logger         *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(ws core.WebhookService, secret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhookService: ws,
		secret:         secret,
		logger:         logger,
	}
}

// HandleRevenueCatWebhook handles POST /webhooks/revenuecat.
// Responses deliberately carry no internal error detail: RevenueCat only
// needs the status code to decide whether to redeliver.
func (h *WebhookHandler) HandleRevenueCatWebhook(c *gin.Context) {
	if !h.authorized(c.GetHeader("Authorization")) {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	var payload models.RevenueCatWebhook
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid webhook payload"})
		return
	}
	if payload.Event.AppUserID == "" || payload.Event.ID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Webhook event requires app_user_id and id"})
		return
	}

	status, err := h.webhookService.ProcessEvent(c.Request.Context(), payload.Event)
	if err != nil {
		h.logger.Error("webhook processing failed",
			zap.String("eventId", payload.Event.ID),
			zap.String("error", core.SanitizeError(err)),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Webhook processing failed"})
		return
	}

	c.JSON(http.StatusOK, WebhookResponse{OK: true, Status: status})
}

// authorized checks the bearer secret in constant time. A missing secret on
// either side always fails.
func (h *WebhookHandler) authorized(header string) bool {
	if h.secret == "" || header == "" {
		return false
	}
	token := header
	if len(header) >= 7 && strings.EqualFold(header[:7], "Bearer ") {
		token = header[7:]
	}
	if len(token) != len(h.secret) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}
