package core

import (
	"context"

	"github.com/shamar-morrison/showseek-backend/internal/models"
)

// ValidationOutcome is the result of a Validate or Sync call. Success false
// means a transient upstream fault left the stored state untouched; the
// caller may retry later without losing access.
type ValidationOutcome struct {
	Success         bool                   `json:"success"`
	IsPremium       bool                   `json:"isPremium"`
	EntitlementType models.EntitlementType `json:"entitlementType"`
}

// PurchaseVerifier verifies purchase claims against the Play Developer API
// and performs idempotent acknowledgment.
type PurchaseVerifier interface {
	VerifyLifetime(ctx context.Context, productID, purchaseToken string) (*models.VerificationResult, error)
	VerifySubscription(ctx context.Context, productID, purchaseToken string) (*models.VerificationResult, error)
}

// EntitlementService orchestrates verification and persistence for
// user-initiated validation calls.
type EntitlementService interface {
	// Validate verifies a specific purchase claim and merges the outcome into
	// the user's entitlement record.
	Validate(ctx context.Context, userID, productID, purchaseToken, source string) (*ValidationOutcome, error)
	// Sync re-verifies the currently stored purchase. allowDowngrade gates the
	// no-token revocation path.
	Sync(ctx context.Context, userID string, allowDowngrade bool, source string) (*ValidationOutcome, error)
	// Status returns the stored entitlement without contacting the billing authority.
	Status(ctx context.Context, userID string) (*models.Entitlement, error)
}

// WebhookService reconciles one inbound RevenueCat event into the
// entitlement record. The returned status is one of the ledger statuses
// (processed, duplicate, stale).
type WebhookService interface {
	ProcessEvent(ctx context.Context, event models.RevenueCatEvent) (string, error)
}

// AuditService records premium audit entries.
type AuditService interface {
	RecordPremiumChange(ctx context.Context, entry models.PremiumAuditEntry) error
}
