package db

import (
	"context"

	"github.com/shamar-morrison/showseek-backend/internal/models"
)

// EntitlementRepository defines storage operations for the per-user
// entitlement record. Set performs a merge write; only the entitlement
// writer path in internal/core may call it.
type EntitlementRepository interface {
	// GetByUserID returns the stored record, or ErrNotFound if the user has
	// never had an entitlement written.
	GetByUserID(ctx context.Context, userID string) (*models.Entitlement, error)
	Set(ctx context.Context, userID string, ent *models.Entitlement) error
}

// EventTx is the transactional view handed to the webhook reconciler. All
// reads must happen before any write; the Firestore implementation enforces
// this ordering.
type EventTx interface {
	// LedgerEntry reads the ledger document for the event id. The bool reports
	// whether the entry already exists.
	LedgerEntry() (*models.WebhookEventRecord, bool, error)
	// Entitlement reads the user's entitlement record, or ErrNotFound.
	Entitlement() (*models.Entitlement, error)
	SetLedgerEntry(rec *models.WebhookEventRecord) error
	SetEntitlement(ent *models.Entitlement) error
}

// WebhookStore runs the per-event transaction covering the dedup ledger and
// the entitlement record. The dedup check, staleness check and entitlement
// write are only correct when indivisible.
type WebhookStore interface {
	RunEventTransaction(ctx context.Context, userID, eventID string, fn func(tx EventTx) error) error
}

// AuditRepository defines storage for the append-only premium audit trail.
type AuditRepository interface {
	Create(ctx context.Context, entry models.PremiumAuditEntry) error
}
