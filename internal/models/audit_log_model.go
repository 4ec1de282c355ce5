package models

import "time"

// PremiumAuditEntry records one entitlement write (or blocked write) in the
// premium_audit collection. Entries are append-only and best-effort; a failed
// audit write never fails the entitlement operation it describes.
type PremiumAuditEntry struct {
	ID              string    `json:"id" firestore:"-"`
	Timestamp       time.Time `json:"timestamp" firestore:"timestamp,serverTimestamp"`
	UserID          string    `json:"userId" firestore:"userId"`
	Source          string    `json:"source" firestore:"source"` // e.g. "validate", "sync", "webhook"
	Reason          string    `json:"reason,omitempty" firestore:"reason,omitempty"`
	Blocked         bool      `json:"blocked" firestore:"blocked"`
	PremiumBefore   bool      `json:"premiumBefore" firestore:"premiumBefore"`
	PremiumAfter    bool      `json:"premiumAfter" firestore:"premiumAfter"`
	EntitlementType string    `json:"entitlementType,omitempty" firestore:"entitlementType,omitempty"`
	ProductID       string    `json:"productId,omitempty" firestore:"productId,omitempty"`
	OrderID         string    `json:"orderId,omitempty" firestore:"orderId,omitempty"`
}
