package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shamar-morrison/showseek-backend/internal/db"
	"github.com/shamar-morrison/showseek-backend/internal/models"
)

// RevenueCat event types that behave like an active renewal: the expiry in
// the event decides premium.
var activeRenewalEventTypes = map[string]bool{
	"INITIAL_PURCHASE": true,
	"RENEWAL":          true,
	"UNCANCELLATION":   true,
	"PRODUCT_CHANGE":   true,
}

const (
	eventTypeCancellation = "CANCELLATION"
	eventTypeBillingIssue = "BILLING_ISSUE"
	eventTypeExpiration   = "EXPIRATION"

	periodTypeTrial = "TRIAL"

	subscriptionStateActive       = "ACTIVE"
	subscriptionStateCancelled    = "CANCELLED"
	subscriptionStateBillingIssue = "BILLING_ISSUE"
)

// WebhookConfig carries the product catalogue the reconciler maps events
// against.
type WebhookConfig struct {
	LifetimeProductID string
	MonthlyBasePlanID string
	YearlyBasePlanID  string
}

// webhookService implements WebhookService. Each event is reconciled inside
// a single document-store transaction so the dedup check, the staleness
// check and the entitlement write are indivisible.
type webhookService struct {
	store  db.WebhookStore
	audit  AuditService
	logger *zap.Logger
	cfg    WebhookConfig
	now    func() time.Time
}

// NewWebhookService creates a new WebhookService.
func NewWebhookService(store db.WebhookStore, audit AuditService, logger *zap.Logger, cfg WebhookConfig) WebhookService {
	return &webhookService{
		store:  store,
		audit:  audit,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// ProcessEvent reconciles one inbound event. Replays of an already-processed
// event id return "duplicate" without touching the entitlement; events older
// than the last applied event return "stale" and write only a ledger entry.
func (s *webhookService) ProcessEvent(ctx context.Context, event models.RevenueCatEvent) (string, error) {
	if event.AppUserID == "" || event.ID == "" {
		return "", NewError(CodeFailedPrecondition, ReasonPurchaseValidationFailed,
			"webhook event requires app_user_id and id")
	}

	// Captured from inside the transaction closure. Firestore may retry the
	// closure on contention, so these are only read after it commits.
	var (
		status        string
		premiumBefore bool
		premiumAfter  bool
		wroteRecord   bool
	)

	txCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := s.store.RunEventTransaction(txCtx, event.AppUserID, event.ID, func(tx db.EventTx) error {
		status = ""
		wroteRecord = false

		_, exists, err := tx.LedgerEntry()
		if err != nil {
			return err
		}
		if exists {
			status = models.WebhookStatusDuplicate
			return nil
		}

		existing, err := tx.Entitlement()
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return err
		}
		premiumBefore = existing != nil && existing.IsPremium
		premiumAfter = premiumBefore

		eventTs := eventTimestampMs(event, s.now())

		if existing != nil && existing.RCLastEventTimestampMs != 0 && existing.RCLastEventTimestampMs > eventTs {
			// Out-of-order delivery: an older event must not clobber state
			// derived from a newer one. Record it and move on.
			status = models.WebhookStatusStale
			return tx.SetLedgerEntry(&models.WebhookEventRecord{
				AppUserID:        event.AppUserID,
				EventTimestampMs: eventTs,
				Type:             event.Type,
				Status:           models.WebhookStatusStale,
			})
		}

		merged := s.mapEvent(existing, event, eventTs)
		premiumAfter = merged.IsPremium
		wroteRecord = true

		if err := tx.SetEntitlement(&merged); err != nil {
			return err
		}
		status = models.WebhookStatusProcessed
		return tx.SetLedgerEntry(&models.WebhookEventRecord{
			AppUserID:        event.AppUserID,
			EventTimestampMs: eventTs,
			Type:             event.Type,
			Status:           models.WebhookStatusProcessed,
		})
	})
	if err != nil {
		return "", fmt.Errorf("webhook transaction for event '%s' failed: %w", event.ID, err)
	}

	if wroteRecord {
		s.logger.Info("premium write",
			zap.String("userId", event.AppUserID),
			zap.String("source", "webhook"),
			zap.String("reason", event.Type),
			zap.Bool("premiumBefore", premiumBefore),
			zap.Bool("premiumAfter", premiumAfter),
			zap.String("eventId", event.ID),
		)
		s.recordAudit(ctx, models.PremiumAuditEntry{
			UserID:        event.AppUserID,
			Source:        "webhook",
			Reason:        event.Type,
			PremiumBefore: premiumBefore,
			PremiumAfter:  premiumAfter,
			ProductID:     event.ProductID,
			OrderID:       event.TransactionID,
		})
	} else {
		s.logger.Info("webhook event skipped",
			zap.String("userId", event.AppUserID),
			zap.String("eventId", event.ID),
			zap.String("status", status),
		)
	}

	return status, nil
}

// mapEvent derives the new entitlement record from the event and the
// existing record. The legacy lifetime ratchet applies here the same way it
// does on the validation path.
func (s *webhookService) mapEvent(existing *models.Entitlement, event models.RevenueCatEvent, eventTs int64) models.Entitlement {
	prev := normalizeExisting(existing)
	now := s.now()

	var expiresAt *time.Time
	if event.ExpirationAtMs > 0 {
		t := time.UnixMilli(event.ExpirationAtMs).UTC()
		expiresAt = &t
	}

	// When the event carries an expiry, the expiry decides premium; without
	// one the existing grant carries over.
	premiumFromExpiry := prev.IsPremium
	if expiresAt != nil {
		premiumFromExpiry = event.ExpirationAtMs > now.UnixMilli()
	}

	isPremium := premiumFromExpiry
	var subscriptionState string
	switch {
	case activeRenewalEventTypes[event.Type]:
		subscriptionState = stateLabel(isPremium, subscriptionStateActive)
	case event.Type == eventTypeCancellation:
		subscriptionState = stateLabel(isPremium, subscriptionStateCancelled)
	case event.Type == eventTypeBillingIssue:
		subscriptionState = stateLabel(isPremium, subscriptionStateBillingIssue)
	case event.Type == eventTypeExpiration:
		isPremium = false
		subscriptionState = subscriptionStateExpired
	default:
		// Unrecognized event types keep the expiry-derived grant and the
		// stored state label.
		subscriptionState = prev.SubscriptionState
	}

	isInTrial := isPremium && event.PeriodType == periodTypeTrial
	var trialStartAt, trialEndAt *time.Time
	if isInTrial {
		if event.PurchasedAtMs > 0 {
			t := time.UnixMilli(event.PurchasedAtMs).UTC()
			trialStartAt = &t
		}
		trialEndAt = expiresAt
	}

	if !isPremium && isLegacyLifetime(&prev, s.cfg.LifetimeProductID) {
		kept := preserveLifetime(prev, isInTrial, trialStartAt, now)
		kept.RCLastEventType = event.Type
		kept.RCLastEventID = event.ID
		kept.RCLastEventTimestampMs = eventTs
		return kept
	}

	entitlementType := models.EntitlementSubscription
	if !isPremium {
		entitlementType = models.EntitlementNone
	}

	orderID := event.TransactionID
	if orderID == "" {
		orderID = event.StoreTransactionID
	}

	merged := models.Entitlement{
		IsPremium:       isPremium,
		EntitlementType: entitlementType,

		// The webhook carries no Play purchase token; the stored one remains
		// the handle the sync path re-verifies with.
		PurchaseToken: prev.PurchaseToken,
		ProductID:     coalesce(event.ProductID, prev.ProductID),
		OrderID:       coalesce(orderID, prev.OrderID),

		SubscriptionState: subscriptionState,
		ExpiresAt:         expiresAt,
		ExpiredAt:         computeExpiredAt(expiresAt, now),
		BasePlanID:        coalesce(event.ProductPlanIdentifier, prev.BasePlanID),
		SubscriptionType:  s.subscriptionTypeForBasePlan(coalesce(event.ProductPlanIdentifier, prev.BasePlanID)),

		IsInTrial:    isInTrial,
		TrialStartAt: trialStartAt,
		TrialEndAt:   trialEndAt,

		LastValidatedAt: now,

		RCLastEventType:        event.Type,
		RCLastEventID:          event.ID,
		RCLastEventTimestampMs: eventTs,
	}
	applyTrialHistory(&merged, &prev, isInTrial, trialStartAt, now)
	return merged
}

func (s *webhookService) subscriptionTypeForBasePlan(basePlanID string) string {
	switch basePlanID {
	case "":
		return ""
	case s.cfg.MonthlyBasePlanID:
		return models.SubscriptionTypeMonthly
	case s.cfg.YearlyBasePlanID:
		return models.SubscriptionTypeYearly
	default:
		return ""
	}
}

func (s *webhookService) recordAudit(ctx context.Context, entry models.PremiumAuditEntry) {
	if s.audit == nil {
		return
	}
	auditCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := s.audit.RecordPremiumChange(auditCtx, entry); err != nil {
		s.logger.Warn("failed to record premium audit entry",
			zap.String("userId", entry.UserID),
			zap.Error(err),
		)
	}
}

// eventTimestampMs picks the best available event timestamp for ordering.
func eventTimestampMs(event models.RevenueCatEvent, now time.Time) int64 {
	switch {
	case event.EventTimestampMs > 0:
		return event.EventTimestampMs
	case event.PurchasedAtMs > 0:
		return event.PurchasedAtMs
	case event.ExpirationAtMs > 0:
		return event.ExpirationAtMs
	default:
		return now.UnixMilli()
	}
}

func stateLabel(isPremium bool, activeLabel string) string {
	if isPremium {
		return activeLabel
	}
	return subscriptionStateExpired
}

func coalesce(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
