package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/androidpublisher/v3"

	"github.com/shamar-morrison/showseek-backend/internal/billing"
	"github.com/shamar-morrison/showseek-backend/internal/models"
)

// Play one-time product purchase states.
const (
	productPurchaseStatePurchased = 0
)

// Play v2 subscription states that still grant access. CANCELED keeps
// premium until the paid period runs out; only the expiry decides.
var entitledSubscriptionStates = map[string]bool{
	"SUBSCRIPTION_STATE_ACTIVE":          true,
	"SUBSCRIPTION_STATE_IN_GRACE_PERIOD": true,
	"SUBSCRIPTION_STATE_CANCELED":        true,
}

const acknowledgementStatePending = "ACKNOWLEDGEMENT_STATE_PENDING"

// VerifierConfig carries the product catalogue the verifier interprets
// purchases against.
type VerifierConfig struct {
	MonthlyBasePlanID   string
	YearlyBasePlanID    string
	MonthlyTrialOfferID string
}

// playVerifier implements PurchaseVerifier against a PlayClient.
type playVerifier struct {
	play   billing.PlayClient
	cfg    VerifierConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewPurchaseVerifier creates a new PurchaseVerifier.
func NewPurchaseVerifier(play billing.PlayClient, cfg VerifierConfig, logger *zap.Logger) PurchaseVerifier {
	return &playVerifier{
		play:   play,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// VerifyLifetime fetches a one-time product purchase, acknowledges it if
// needed and returns a lifetime verification result. Errors from the Play
// API propagate unmodified; the validation endpoint classifies them.
func (v *playVerifier) VerifyLifetime(ctx context.Context, productID, purchaseToken string) (*models.VerificationResult, error) {
	purchase, err := v.play.GetProductPurchase(ctx, productID, purchaseToken)
	if err != nil {
		return nil, err
	}

	if purchase.PurchaseState != productPurchaseStatePurchased {
		return nil, NewError(CodeFailedPrecondition, ReasonPurchaseNotPurchased,
			fmt.Sprintf("product purchase is in state %d, expected PURCHASED", purchase.PurchaseState))
	}

	if purchase.AcknowledgementState == 0 {
		if err := v.play.AcknowledgeProduct(ctx, productID, purchaseToken); err != nil {
			if !IsAlreadyAcknowledged(err) {
				return nil, err
			}
			// A concurrent call got there first; the purchase is acknowledged
			// either way.
			v.logger.Debug("product purchase already acknowledged by a concurrent call",
				zap.String("productId", productID))
		}
	}

	return &models.VerificationResult{
		IsPremium:       true,
		EntitlementType: models.EntitlementLifetime,
		ProductID:       productID,
		PurchaseToken:   purchaseToken,
		OrderID:         purchase.OrderId,
	}, nil
}

// VerifySubscription fetches the subscription purchase covering all line
// items under the token, selects the latest line item, acknowledges the
// purchase if pending and derives the structured verification result.
func (v *playVerifier) VerifySubscription(ctx context.Context, productID, purchaseToken string) (*models.VerificationResult, error) {
	sub, err := v.play.GetSubscriptionPurchase(ctx, purchaseToken)
	if err != nil {
		return nil, err
	}

	item, expiresAt, ok := latestLineItem(sub.LineItems)
	if !ok {
		return nil, NewError(CodeInternal, ReasonPurchaseValidationFailed,
			"subscription purchase has no line item with a parsable expiry")
	}

	// The line item's product id is authoritative for acknowledgment; the
	// requested id is only a fallback for older payloads that omit it.
	ackProductID := item.ProductId
	if ackProductID == "" {
		ackProductID = productID
	}

	if sub.AcknowledgementState == acknowledgementStatePending {
		if err := v.play.AcknowledgeSubscription(ctx, ackProductID, purchaseToken); err != nil {
			if !IsAlreadyAcknowledged(err) {
				return nil, err
			}
			v.logger.Debug("subscription purchase already acknowledged by a concurrent call",
				zap.String("productId", ackProductID))
		}
	}

	now := v.now()
	isPremium := entitledSubscriptionStates[sub.SubscriptionState] && expiresAt.After(now)

	var basePlanID, offerID string
	var offerTags []string
	if item.OfferDetails != nil {
		basePlanID = item.OfferDetails.BasePlanId
		offerID = item.OfferDetails.OfferId
		offerTags = item.OfferDetails.OfferTags
	}
	subscriptionType := v.subscriptionTypeForBasePlan(basePlanID)

	isInTrial := isPremium &&
		subscriptionType == models.SubscriptionTypeMonthly &&
		matchesTrialOffer(offerID, offerTags, v.cfg.MonthlyTrialOfferID)

	var trialStartAt, trialEndAt *time.Time
	if isInTrial {
		if start, err := time.Parse(time.RFC3339, sub.StartTime); err == nil {
			trialStartAt = &start
		}
		trialEndAt = &expiresAt
	}

	entitlementType := models.EntitlementSubscription
	if !isPremium {
		entitlementType = models.EntitlementNone
	}

	return &models.VerificationResult{
		IsPremium:         isPremium,
		EntitlementType:   entitlementType,
		ProductID:         ackProductID,
		PurchaseToken:     purchaseToken,
		OrderID:           sub.LatestOrderId,
		SubscriptionState: sub.SubscriptionState,
		ExpiresAt:         &expiresAt,
		ExpiredAt:         computeExpiredAt(&expiresAt, now),
		BasePlanID:        basePlanID,
		SubscriptionType:  subscriptionType,
		IsInTrial:         isInTrial,
		TrialStartAt:      trialStartAt,
		TrialEndAt:        trialEndAt,
	}, nil
}

// latestLineItem returns the line item with the maximum parsable expiry.
// Entries whose expiry cannot be parsed are ignored.
func latestLineItem(items []*androidpublisher.SubscriptionPurchaseLineItem) (*androidpublisher.SubscriptionPurchaseLineItem, time.Time, bool) {
	var best *androidpublisher.SubscriptionPurchaseLineItem
	var bestExpiry time.Time
	for _, item := range items {
		if item == nil {
			continue
		}
		expiry, err := time.Parse(time.RFC3339, item.ExpiryTime)
		if err != nil {
			continue
		}
		if best == nil || expiry.After(bestExpiry) {
			best = item
			bestExpiry = expiry
		}
	}
	return best, bestExpiry, best != nil
}

func (v *playVerifier) subscriptionTypeForBasePlan(basePlanID string) string {
	switch basePlanID {
	case "":
		return ""
	case v.cfg.MonthlyBasePlanID:
		return models.SubscriptionTypeMonthly
	case v.cfg.YearlyBasePlanID:
		return models.SubscriptionTypeYearly
	default:
		return ""
	}
}

// matchesTrialOffer compares the configured monthly trial offer against the
// line item's offer id and offer tags, case-insensitively. The match is kept
// deliberately narrow; a future offer encoding trial eligibility differently
// needs product confirmation before this broadens.
func matchesTrialOffer(offerID string, offerTags []string, trialOffer string) bool {
	if trialOffer == "" {
		return false
	}
	if strings.EqualFold(offerID, trialOffer) {
		return true
	}
	for _, tag := range offerTags {
		if strings.EqualFold(tag, trialOffer) {
			return true
		}
	}
	return false
}
