package db

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"

	"github.com/shamar-morrison/showseek-backend/internal/models"
)

const premiumAuditCollection = "premium_audit"

// firestoreAuditRepository implements AuditRepository using Firestore.
type firestoreAuditRepository struct {
	client *firestore.Client
}

// NewFirestoreAuditRepository creates a new audit repository.
func NewFirestoreAuditRepository(client *firestore.Client) AuditRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for AuditRepository.")
	}
	return &firestoreAuditRepository{client: client}
}

// Create appends a premium audit entry with an auto-generated document ID.
func (r *firestoreAuditRepository) Create(ctx context.Context, entry models.PremiumAuditEntry) error {
	_, _, err := r.client.Collection(premiumAuditCollection).Add(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to create premium audit entry for user '%s': %w", entry.UserID, err)
	}
	return nil
}
