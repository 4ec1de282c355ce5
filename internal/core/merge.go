package core

import (
	"time"

	"github.com/shamar-morrison/showseek-backend/internal/models"
)

// NoneOverrides replaces specific fields when a "none" outcome is written.
// Fields left nil keep the value carried over from the existing record.
type NoneOverrides struct {
	SubscriptionState *string
	// ExpiresAt replaces the stored expiry when ExpiresAtSet is true (a nil
	// value with the flag set clears it).
	ExpiresAt    *time.Time
	ExpiresAtSet bool
}

// MergeVerified merges a successful verification result into the existing
// entitlement record and returns the record to persist. existing may be nil
// for a user who has never had an entitlement written.
//
// A legacy lifetime record is a one-way ratchet: an incoming non-premium
// outcome never downgrades it. Early adopters hold a discontinued one-time
// product that the billing authority no longer reports, so the only change
// such an outcome may make is trial-history bookkeeping.
func MergeVerified(existing *models.Entitlement, incoming *models.VerificationResult, lifetimeProductID string, now time.Time) models.Entitlement {
	prev := normalizeExisting(existing)

	if !incoming.IsPremium && isLegacyLifetime(&prev, lifetimeProductID) {
		return preserveLifetime(prev, incoming.IsInTrial, incoming.TrialStartAt, now)
	}

	merged := models.Entitlement{
		IsPremium:       incoming.IsPremium,
		EntitlementType: incoming.EntitlementType,
		PurchaseToken:   incoming.PurchaseToken,
		ProductID:       incoming.ProductID,
		OrderID:         incoming.OrderID,

		SubscriptionState: incoming.SubscriptionState,
		ExpiresAt:         incoming.ExpiresAt,
		BasePlanID:        incoming.BasePlanID,
		SubscriptionType:  incoming.SubscriptionType,

		IsInTrial:    incoming.IsInTrial,
		TrialStartAt: incoming.TrialStartAt,
		TrialEndAt:   incoming.TrialEndAt,

		LastValidatedAt: now,

		// Webhook ordering state belongs to the webhook path; validation
		// writes must not clobber it.
		RCLastEventType:        prev.RCLastEventType,
		RCLastEventID:          prev.RCLastEventID,
		RCLastEventTimestampMs: prev.RCLastEventTimestampMs,
	}

	if incoming.EntitlementType == models.EntitlementLifetime {
		// Lifetime grants never expire and carry no subscription state.
		merged.SubscriptionState = ""
		merged.ExpiresAt = nil
		merged.BasePlanID = ""
		merged.SubscriptionType = ""
		merged.IsInTrial = false
		merged.TrialStartAt = nil
		merged.TrialEndAt = nil
	}

	merged.ExpiredAt = computeExpiredAt(merged.ExpiresAt, now)
	applyTrialHistory(&merged, &prev, incoming.IsInTrial, incoming.TrialStartAt, now)
	return merged
}

// MergeNone writes an explicit "none" outcome: premium is revoked but the
// subscription and trial fields are preserved from the existing record except
// where overrides replace them. This is the sole path that removes premium
// without an active verification backing it.
func MergeNone(existing *models.Entitlement, ov NoneOverrides, lifetimeProductID string, now time.Time) models.Entitlement {
	prev := normalizeExisting(existing)

	if isLegacyLifetime(&prev, lifetimeProductID) {
		return preserveLifetime(prev, false, nil, now)
	}

	merged := prev
	merged.IsPremium = false
	merged.EntitlementType = models.EntitlementNone
	merged.IsInTrial = false
	merged.LastValidatedAt = now

	if ov.SubscriptionState != nil {
		merged.SubscriptionState = *ov.SubscriptionState
	}
	if ov.ExpiresAtSet {
		merged.ExpiresAt = ov.ExpiresAt
	}
	merged.ExpiredAt = computeExpiredAt(merged.ExpiresAt, now)
	applyTrialHistory(&merged, &prev, false, nil, now)
	return merged
}

// RefreshUnchanged rewrites the existing record as-is with a fresh
// lastValidatedAt, used when a sync confirms a legacy lifetime entitlement.
func RefreshUnchanged(existing *models.Entitlement, now time.Time) models.Entitlement {
	prev := normalizeExisting(existing)
	prev.LastValidatedAt = now
	applyTrialHistory(&prev, &prev, false, nil, now)
	return prev
}

// isLegacyLifetime reports whether the stored record represents the
// discontinued one-time premium product.
func isLegacyLifetime(e *models.Entitlement, lifetimeProductID string) bool {
	if e.EntitlementType == models.EntitlementLifetime {
		return true
	}
	return lifetimeProductID != "" && e.ProductID == lifetimeProductID
}

// preserveLifetime returns the lifetime record unchanged apart from trial
// bookkeeping and the validation timestamp.
func preserveLifetime(prev models.Entitlement, incomingTrial bool, incomingTrialStart *time.Time, now time.Time) models.Entitlement {
	kept := prev
	kept.LastValidatedAt = now
	applyTrialHistory(&kept, &prev, incomingTrial, incomingTrialStart, now)
	return kept
}

// applyTrialHistory enforces the trial-once invariant: hasUsedTrial is sticky
// once any trial has been observed, and trialConsumedAt records when the one
// allowed trial was burned.
func applyTrialHistory(merged, prev *models.Entitlement, newTrial bool, newTrialStart *time.Time, now time.Time) {
	hasUsed := newTrial || prev.TrialConsumed()
	merged.HasUsedTrial = hasUsed

	switch {
	case prev.TrialConsumedAt != nil:
		merged.TrialConsumedAt = prev.TrialConsumedAt
	case newTrial:
		if newTrialStart != nil {
			merged.TrialConsumedAt = newTrialStart
		} else {
			consumed := now
			merged.TrialConsumedAt = &consumed
		}
	case hasUsed:
		merged.TrialConsumedAt = prev.TrialStartAt
	}
}

// computeExpiredAt mirrors expiresAt into the compatibility key once the
// expiry has passed. It is the single source of that derivation.
func computeExpiredAt(expiresAt *time.Time, now time.Time) *time.Time {
	if expiresAt != nil && !expiresAt.After(now) {
		return expiresAt
	}
	return nil
}

func normalizeExisting(existing *models.Entitlement) models.Entitlement {
	if existing == nil {
		return models.Entitlement{EntitlementType: models.EntitlementNone}
	}
	prev := *existing
	if prev.EntitlementType == "" {
		prev.EntitlementType = models.EntitlementNone
	}
	return prev
}
