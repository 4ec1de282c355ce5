package db

import (
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shamar-morrison/showseek-backend/internal/models"
)

// The Firestore client rejects MergeAll writes unless the data is a map, so
// every entitlement write must go through entitlementData. These tests pin
// that contract and the field mapping.

func TestEntitlementDataIsMapData(t *testing.T) {
	data := entitlementData(&models.Entitlement{IsPremium: true})
	// A map literal satisfies the merge-write contract by construction; the
	// assertion guards against the payload type ever changing back.
	var _ map[string]interface{} = data
	require.NotNil(t, data)
}

func TestEntitlementDataFullRecord(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(30 * 24 * time.Hour)
	trialStart := now.Add(-7 * 24 * time.Hour)

	ent := &models.Entitlement{
		IsPremium:       true,
		EntitlementType: models.EntitlementSubscription,

		PurchaseToken: "tok",
		ProductID:     "premium_sub",
		OrderID:       "GPA.100",

		SubscriptionState: "SUBSCRIPTION_STATE_ACTIVE",
		ExpiresAt:         &expiry,
		BasePlanID:        "premium-monthly",
		SubscriptionType:  models.SubscriptionTypeMonthly,

		IsInTrial:       false,
		TrialConsumedAt: &trialStart,
		HasUsedTrial:    true,

		LastValidatedAt: now,

		RCLastEventType:        "RENEWAL",
		RCLastEventID:          "evt-1",
		RCLastEventTimestampMs: now.UnixMilli(),
	}

	data := entitlementData(ent)

	assert.Equal(t, true, data["isPremium"])
	assert.Equal(t, "subscription", data["entitlementType"])
	assert.Equal(t, "tok", data["purchaseToken"])
	assert.Equal(t, "premium_sub", data["productId"])
	assert.Equal(t, "GPA.100", data["orderId"])
	assert.Equal(t, "SUBSCRIPTION_STATE_ACTIVE", data["subscriptionState"])
	assert.Equal(t, expiry, data["expiresAt"])
	assert.Equal(t, "premium-monthly", data["basePlanId"])
	assert.Equal(t, "monthly", data["subscriptionType"])
	assert.Equal(t, false, data["isInTrial"])
	assert.Equal(t, trialStart, data["trialConsumedAt"])
	assert.Equal(t, true, data["hasUsedTrial"])
	assert.Equal(t, now, data["lastValidatedAt"])
	assert.Equal(t, "RENEWAL", data["rcLastEventType"])
	assert.Equal(t, "evt-1", data["rcLastEventId"])
	assert.Equal(t, now.UnixMilli(), data["rcLastEventTimestampMs"])
}

func TestEntitlementDataClearedFieldsDelete(t *testing.T) {
	// A lifetime grant clears every subscription and trial field; the merge
	// write must remove the stale values, not leave them behind.
	data := entitlementData(&models.Entitlement{
		IsPremium:       true,
		EntitlementType: models.EntitlementLifetime,
		ProductID:       "showseek_premium_lifetime",
	})

	for _, key := range []string{
		"subscriptionState", "expiresAt", "expiredAt", "basePlanId",
		"subscriptionType", "trialStartAt", "trialEndAt", "trialConsumedAt",
		"orderId", "purchaseToken",
		"rcLastEventType", "rcLastEventId", "rcLastEventTimestampMs",
	} {
		assert.Equal(t, firestore.Delete, data[key], "field %q must be deleted when cleared", key)
	}
	assert.Equal(t, "showseek_premium_lifetime", data["productId"])
}

func TestEntitlementDataCoversEveryStoredField(t *testing.T) {
	// One key per firestore-tagged field on the record; a new field added to
	// the model without a mapping here would silently never persist.
	data := entitlementData(&models.Entitlement{})
	assert.Len(t, data, 19)
}
