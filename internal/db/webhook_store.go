package db

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/shamar-morrison/showseek-backend/internal/models"
)

const webhookEventsCollection = "revenuecat_events"

// firestoreWebhookStore implements WebhookStore using Firestore transactions.
type firestoreWebhookStore struct {
	client *firestore.Client
}

// NewFirestoreWebhookStore creates a new webhook store.
func NewFirestoreWebhookStore(client *firestore.Client) WebhookStore {
	if client == nil {
		log.Fatal("Firestore client is not initialized for WebhookStore.")
	}
	return &firestoreWebhookStore{client: client}
}

// RunEventTransaction executes fn inside a single Firestore transaction
// scoped to the event's ledger document and the user's entitlement document.
// Firestore retries the callback on contention, so fn must be pure apart from
// its reads and writes through the transaction.
func (s *firestoreWebhookStore) RunEventTransaction(ctx context.Context, userID, eventID string, fn func(tx EventTx) error) error {
	if userID == "" || eventID == "" {
		return errors.New("userID and eventID are required for an event transaction")
	}
	ledgerRef := s.client.Collection(webhookEventsCollection).Doc(eventID)
	entitlementRef := s.client.Collection(usersCollection).Doc(userID)

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(&firestoreEventTx{tx: tx, ledgerRef: ledgerRef, entitlementRef: entitlementRef})
	})
}

// firestoreEventTx adapts a *firestore.Transaction to the EventTx interface.
// Firestore requires every read in a transaction to happen before the first
// write; callers get reads and writes as separate methods and the reconciler
// naturally reads first.
type firestoreEventTx struct {
	tx             *firestore.Transaction
	ledgerRef      *firestore.DocumentRef
	entitlementRef *firestore.DocumentRef
}

func (t *firestoreEventTx) LedgerEntry() (*models.WebhookEventRecord, bool, error) {
	snap, err := t.tx.Get(t.ledgerRef)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read ledger entry '%s': %w", t.ledgerRef.ID, err)
	}
	var rec models.WebhookEventRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, true, fmt.Errorf("failed to decode ledger entry '%s': %w", t.ledgerRef.ID, err)
	}
	return &rec, true, nil
}

func (t *firestoreEventTx) Entitlement() (*models.Entitlement, error) {
	snap, err := t.tx.Get(t.entitlementRef)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("entitlement for user '%s' not found: %w", t.entitlementRef.ID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read entitlement for user '%s': %w", t.entitlementRef.ID, err)
	}
	var ent models.Entitlement
	if err := snap.DataTo(&ent); err != nil {
		return nil, fmt.Errorf("failed to decode entitlement for user '%s': %w", t.entitlementRef.ID, err)
	}
	return &ent, nil
}

func (t *firestoreEventTx) SetLedgerEntry(rec *models.WebhookEventRecord) error {
	return t.tx.Set(t.ledgerRef, rec)
}

func (t *firestoreEventTx) SetEntitlement(ent *models.Entitlement) error {
	return t.tx.Set(t.entitlementRef, entitlementData(ent), firestore.MergeAll)
}
