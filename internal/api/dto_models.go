package api

// ErrorResponse is a generic structure for returning errors via API.
type ErrorResponse struct {
	Error   string        `json:"error"`             // A high-level error message or code
	Details *ErrorDetails `json:"details,omitempty"` // Machine-readable details, if available
}

// ErrorDetails carries the machine-readable part of a structured error so
// the client can decide between retrying and showing a terminal message.
type ErrorDetails struct {
	Reason     string `json:"reason,omitempty"`
	Retryable  bool   `json:"retryable"`
	StatusCode int    `json:"statusCode,omitempty"`
}

// ValidatePurchaseRequest is the body of POST /purchases/validate.
type ValidatePurchaseRequest struct {
	ProductID     string `json:"productId" binding:"required"`
	PurchaseToken string `json:"purchaseToken" binding:"required"`
	PurchaseType  string `json:"purchaseType,omitempty"` // "in-app" or "subs"; informational
	Source        string `json:"source,omitempty"`
}

// SyncPurchaseRequest is the body of POST /purchases/sync.
type SyncPurchaseRequest struct {
	Source         string `json:"source,omitempty"`
	AllowDowngrade bool   `json:"allowDowngrade,omitempty"`
}

// WebhookResponse acknowledges a RevenueCat webhook delivery.
type WebhookResponse struct {
	OK     bool   `json:"ok"`
	Status string `json:"status,omitempty"`
}
