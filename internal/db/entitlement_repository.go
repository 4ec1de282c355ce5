package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/shamar-morrison/showseek-backend/internal/models"
)

const usersCollection = "users"

// ErrNotFound is returned when a document does not exist in Firestore.
var ErrNotFound = errors.New("document not found")

// firestoreEntitlementRepository implements EntitlementRepository using Firestore.
// The entitlement record lives on the users/{uid} document; merge writes keep
// fields owned by other subsystems (profile data written by the client) intact.
type firestoreEntitlementRepository struct {
	client *firestore.Client
}

// NewFirestoreEntitlementRepository creates a new entitlement repository.
func NewFirestoreEntitlementRepository(client *firestore.Client) EntitlementRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for EntitlementRepository.")
	}
	return &firestoreEntitlementRepository{client: client}
}

// GetByUserID retrieves the entitlement record for a user. A user who has
// never validated a purchase has no document (or no premium fields) yet; that
// case surfaces as ErrNotFound and callers treat it as the "none" entitlement.
func (r *firestoreEntitlementRepository) GetByUserID(ctx context.Context, userID string) (*models.Entitlement, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for GetByUserID operation")
	}
	docSnap, err := r.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("entitlement for user '%s' not found: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get entitlement for user '%s': %w", userID, err)
	}

	var ent models.Entitlement
	if err := docSnap.DataTo(&ent); err != nil {
		return nil, fmt.Errorf("failed to decode entitlement data for user '%s': %w", userID, err)
	}
	return &ent, nil
}

// Set persists the entitlement record with a merge write, creating the user
// document if it does not exist yet.
func (r *firestoreEntitlementRepository) Set(ctx context.Context, userID string, ent *models.Entitlement) error {
	if userID == "" {
		return errors.New("userID cannot be empty for Set operation")
	}
	_, err := r.client.Collection(usersCollection).Doc(userID).Set(ctx, entitlementData(ent), firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to set entitlement for user '%s': %w", userID, err)
	}
	return nil
}

// entitlementData flattens the record into map data for a MergeAll write;
// the Firestore client rejects MergeAll with struct data. Every
// entitlement-owned field is listed explicitly, with cleared optional fields
// mapped to the delete sentinel so stale values do not survive the merge.
// Fields owned by other subsystems on users/{uid} are untouched.
func entitlementData(ent *models.Entitlement) map[string]interface{} {
	return map[string]interface{}{
		"isPremium":       ent.IsPremium,
		"entitlementType": string(ent.EntitlementType),

		"purchaseToken": stringOrDelete(ent.PurchaseToken),
		"productId":     stringOrDelete(ent.ProductID),
		"orderId":       stringOrDelete(ent.OrderID),

		"subscriptionState": stringOrDelete(ent.SubscriptionState),
		"expiresAt":         timeOrDelete(ent.ExpiresAt),
		"expiredAt":         timeOrDelete(ent.ExpiredAt),
		"basePlanId":        stringOrDelete(ent.BasePlanID),
		"subscriptionType":  stringOrDelete(ent.SubscriptionType),

		"isInTrial":       ent.IsInTrial,
		"trialStartAt":    timeOrDelete(ent.TrialStartAt),
		"trialEndAt":      timeOrDelete(ent.TrialEndAt),
		"trialConsumedAt": timeOrDelete(ent.TrialConsumedAt),
		"hasUsedTrial":    ent.HasUsedTrial,

		"lastValidatedAt": ent.LastValidatedAt,

		"rcLastEventType":        stringOrDelete(ent.RCLastEventType),
		"rcLastEventId":          stringOrDelete(ent.RCLastEventID),
		"rcLastEventTimestampMs": int64OrDelete(ent.RCLastEventTimestampMs),
	}
}

func stringOrDelete(s string) interface{} {
	if s == "" {
		return firestore.Delete
	}
	return s
}

func timeOrDelete(t *time.Time) interface{} {
	if t == nil {
		return firestore.Delete
	}
	return *t
}

func int64OrDelete(v int64) interface{} {
	if v == 0 {
		return firestore.Delete
	}
	return v
}
