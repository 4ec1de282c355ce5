package models

import "time"

// EntitlementType describes what kind of purchase currently backs a user's premium access.
type EntitlementType string

const (
	EntitlementLifetime     EntitlementType = "lifetime"
	EntitlementSubscription EntitlementType = "subscription"
	EntitlementNone         EntitlementType = "none"
)

// Subscription billing-period identifiers, derived from the Play base plan.
const (
	SubscriptionTypeMonthly = "monthly"
	SubscriptionTypeYearly  = "yearly"
)

// Entitlement is the per-user premium record stored at users/{uid}.
// It is the single read-modify-write target of the validation, sync and
// webhook flows; only the merge functions in internal/core produce new
// versions of it, and only the entitlement repository persists them.
//
// ExpiresAt and ExpiredAt are a compatibility pair: ExpiredAt mirrors
// ExpiresAt once the expiry has passed, because older client builds read
// the second key. ExpiredAt is always recomputed from ExpiresAt on write,
// never derived independently.
type Entitlement struct {
	IsPremium       bool            `firestore:"isPremium" json:"isPremium"`
	EntitlementType EntitlementType `firestore:"entitlementType" json:"entitlementType"`

	PurchaseToken string `firestore:"purchaseToken,omitempty" json:"purchaseToken,omitempty"`
	ProductID     string `firestore:"productId,omitempty" json:"productId,omitempty"`
	OrderID       string `firestore:"orderId,omitempty" json:"orderId,omitempty"`

	SubscriptionState string     `firestore:"subscriptionState,omitempty" json:"subscriptionState,omitempty"`
	ExpiresAt         *time.Time `firestore:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	ExpiredAt         *time.Time `firestore:"expiredAt,omitempty" json:"expiredAt,omitempty"`
	BasePlanID        string     `firestore:"basePlanId,omitempty" json:"basePlanId,omitempty"`
	SubscriptionType  string     `firestore:"subscriptionType,omitempty" json:"subscriptionType,omitempty"`

	IsInTrial       bool       `firestore:"isInTrial" json:"isInTrial"`
	TrialStartAt    *time.Time `firestore:"trialStartAt,omitempty" json:"trialStartAt,omitempty"`
	TrialEndAt      *time.Time `firestore:"trialEndAt,omitempty" json:"trialEndAt,omitempty"`
	TrialConsumedAt *time.Time `firestore:"trialConsumedAt,omitempty" json:"trialConsumedAt,omitempty"`
	HasUsedTrial    bool       `firestore:"hasUsedTrial" json:"hasUsedTrial"`

	LastValidatedAt time.Time `firestore:"lastValidatedAt" json:"lastValidatedAt"`

	// Webhook-path bookkeeping used for per-user event ordering and dedup.
	RCLastEventType        string `firestore:"rcLastEventType,omitempty" json:"rcLastEventType,omitempty"`
	RCLastEventID          string `firestore:"rcLastEventId,omitempty" json:"rcLastEventId,omitempty"`
	RCLastEventTimestampMs int64  `firestore:"rcLastEventTimestampMs,omitempty" json:"rcLastEventTimestampMs,omitempty"`
}

// TrialConsumed reports whether the user has ever burned their free trial.
// HasUsedTrial is the canonical flag; TrialConsumedAt covers records written
// before the flag existed.
func (e *Entitlement) TrialConsumed() bool {
	return e.HasUsedTrial || e.TrialConsumedAt != nil
}

// VerificationResult is the ephemeral outcome of a Play purchase verification.
// Lifetime purchases carry only OrderID; subscription verifications populate
// the full set.
type VerificationResult struct {
	IsPremium       bool
	EntitlementType EntitlementType

	PurchaseToken string
	ProductID     string
	OrderID       string

	SubscriptionState string
	ExpiresAt         *time.Time
	ExpiredAt         *time.Time
	BasePlanID        string
	SubscriptionType  string

	IsInTrial    bool
	TrialStartAt *time.Time
	TrialEndAt   *time.Time
}
