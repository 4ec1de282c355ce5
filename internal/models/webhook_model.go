package models

import "time"

// Webhook event ledger statuses. A ledger entry is written exactly once per
// distinct RevenueCat event id and is never updated afterwards.
const (
	WebhookStatusProcessed = "processed"
	WebhookStatusDuplicate = "duplicate"
	WebhookStatusStale     = "stale"
)

// WebhookEventRecord is the write-once ledger entry stored at
// revenuecat_events/{eventId}. Existence of the document id is the dedup key.
type WebhookEventRecord struct {
	AppUserID        string    `firestore:"appUserId" json:"appUserId"`
	EventTimestampMs int64     `firestore:"eventTimestampMs" json:"eventTimestampMs"`
	Type             string    `firestore:"type" json:"type"`
	Status           string    `firestore:"status" json:"status"`
	CreatedAt        time.Time `firestore:"createdAt,serverTimestamp" json:"createdAt"`
}

// RevenueCatWebhook is the inbound webhook envelope.
type RevenueCatWebhook struct {
	APIVersion string          `json:"api_version"`
	Event      RevenueCatEvent `json:"event"`
}

// RevenueCatEvent carries the subset of the RevenueCat event payload this
// backend consumes. Timestamps are epoch milliseconds.
type RevenueCatEvent struct {
	Type                  string `json:"type"`
	ID                    string `json:"id"`
	AppUserID             string `json:"app_user_id"`
	ProductID             string `json:"product_id"`
	ProductPlanIdentifier string `json:"product_plan_identifier"`
	PeriodType            string `json:"period_type"`
	EventTimestampMs      int64  `json:"event_timestamp_ms"`
	PurchasedAtMs         int64  `json:"purchased_at_ms"`
	ExpirationAtMs        int64  `json:"expiration_at_ms"`
	Environment           string `json:"environment"`
	Store                 string `json:"store"`
	TransactionID         string `json:"transaction_id"`
	StoreTransactionID    string `json:"store_transaction_id"`
	OriginalAppUserID     string `json:"original_app_user_id"`
}
