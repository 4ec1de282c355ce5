package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shamar-morrison/showseek-backend/internal/core"
)

// Default source labels recorded when the client omits one.
const (
	defaultValidateSource = "client-validate"
	defaultSyncSource     = "client-sync"
)

// EntitlementHandler handles purchase validation and sync endpoints.
type EntitlementHandler struct {
	entitlementService core.EntitlementService
	logger             *zap.Logger
}

// NewEntitlementHandler creates a new EntitlementHandler.
func NewEntitlementHandler(es core.EntitlementService, logger *zap.Logger) *EntitlementHandler {
	return &EntitlementHandler{
		entitlementService: es,
		logger:             logger,
	}
}

// mapEntitlementError converts a service error to an HTTP response. Anything
// not already structured is surfaced as a generic internal error; raw error
// detail never reaches the client.
func (h *EntitlementHandler) mapEntitlementError(c *gin.Context, err error) {
	structured, ok := core.AsError(err)
	if !ok {
		h.logger.Error("unclassified error in entitlement handler", zap.String("error", core.SanitizeError(err)))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "An unexpected internal server error occurred."})
		return
	}

	var httpStatus int
	switch structured.Code {
	case core.CodeFailedPrecondition:
		httpStatus = http.StatusBadRequest
	case core.CodeUnavailable:
		httpStatus = http.StatusServiceUnavailable
	case core.CodeUnauthenticated:
		httpStatus = http.StatusUnauthorized
	default:
		httpStatus = http.StatusInternalServerError
	}

	if httpStatus >= http.StatusInternalServerError {
		h.logger.Error("entitlement operation failed", zap.String("error", core.SanitizeError(err)))
	}

	c.JSON(httpStatus, ErrorResponse{
		Error: structured.Message,
		Details: &ErrorDetails{
			Reason:     structured.Reason,
			Retryable:  structured.Retryable,
			StatusCode: structured.StatusCode,
		},
	})
}

// ValidatePurchase handles POST /purchases/validate.
func (h *EntitlementHandler) ValidatePurchase(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}

	var req ValidatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload"})
		return
	}

	source := req.Source
	if source == "" {
		source = defaultValidateSource
	}

	outcome, err := h.entitlementService.Validate(c.Request.Context(), userID.(string), req.ProductID, req.PurchaseToken, source)
	if err != nil {
		h.mapEntitlementError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// SyncPurchase handles POST /purchases/sync.
func (h *EntitlementHandler) SyncPurchase(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}

	// The body is optional; an empty POST syncs with defaults.
	var req SyncPurchaseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload"})
			return
		}
	}

	source := req.Source
	if source == "" {
		source = defaultSyncSource
	}

	outcome, err := h.entitlementService.Sync(c.Request.Context(), userID.(string), req.AllowDowngrade, source)
	if err != nil {
		h.mapEntitlementError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// PurchaseStatus handles GET /purchases/status.
func (h *EntitlementHandler) PurchaseStatus(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}

	ent, err := h.entitlementService.Status(c.Request.Context(), userID.(string))
	if err != nil {
		h.mapEntitlementError(c, err)
		return
	}
	c.JSON(http.StatusOK, ent)
}
