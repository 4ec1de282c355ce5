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

// opTimeout bounds every call to the billing authority and the document
// store. A timeout surfaces as a transient failure.
const opTimeout = 10 * time.Second

// Subscription state labels written on sync-revoke.
const subscriptionStateExpired = "EXPIRED"

// entitlementService implements EntitlementService.
//
// The read-then-write against the entitlement record is intentionally not
// transactional: concurrent validations for the same user are keyed by the
// same purchase token and converge to the same merged result.
type entitlementService struct {
	entitlements db.EntitlementRepository
	verifier     PurchaseVerifier
	audit        AuditService
	logger       *zap.Logger

	lifetimeProductID string
	now               func() time.Time
}

// NewEntitlementService creates a new EntitlementService.
func NewEntitlementService(
	entitlements db.EntitlementRepository,
	verifier PurchaseVerifier,
	audit AuditService,
	logger *zap.Logger,
	lifetimeProductID string,
) EntitlementService {
	return &entitlementService{
		entitlements:      entitlements,
		verifier:          verifier,
		audit:             audit,
		logger:            logger,
		lifetimeProductID: lifetimeProductID,
		now:               time.Now,
	}
}

// Validate verifies a purchase claim and merges the outcome into the user's
// entitlement record. The legacy lifetime product id forces lifetime mode;
// every other product id is treated as a subscription.
func (s *entitlementService) Validate(ctx context.Context, userID, productID, purchaseToken, source string) (*ValidationOutcome, error) {
	existing, err := s.readEntitlement(ctx, userID)
	if err != nil {
		return nil, err
	}

	if productID == s.lifetimeProductID {
		return s.validateLifetime(ctx, userID, productID, purchaseToken, source, existing)
	}
	return s.validateSubscription(ctx, userID, productID, purchaseToken, source, existing)
}

func (s *entitlementService) validateLifetime(ctx context.Context, userID, productID, purchaseToken, source string, existing *models.Entitlement) (*ValidationOutcome, error) {
	verifyCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	result, err := s.verifier.VerifyLifetime(verifyCtx, productID, purchaseToken)
	if err != nil {
		return nil, ClassifyBillingError(err)
	}

	merged := MergeVerified(existing, result, s.lifetimeProductID, s.now())
	if err := s.writeEntitlement(ctx, userID, source, "lifetime purchase validated", existing, &merged); err != nil {
		return nil, err
	}
	return outcomeFor(&merged), nil
}

func (s *entitlementService) validateSubscription(ctx context.Context, userID, productID, purchaseToken, source string, existing *models.Entitlement) (*ValidationOutcome, error) {
	verifyCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	result, err := s.verifier.VerifySubscription(verifyCtx, productID, purchaseToken)
	if err != nil {
		return nil, ClassifyBillingError(err)
	}

	// Trial guard: a second free trial on a different purchase is rejected.
	// Restoring the exact same purchase (same token or same order) is allowed
	// so a reinstall never locks a legitimate trial user out.
	if result.IsInTrial && existing != nil && existing.TrialConsumed() && !sameStoredPurchase(existing, purchaseToken, result.OrderID) {
		s.logger.Warn("premium validation rejected: trial already used",
			zap.String("userId", userID),
			zap.String("productId", productID),
			zap.String("source", source),
		)
		return nil, NewError(CodeFailedPrecondition, ReasonTrialAlreadyUsed,
			"free trial has already been used on this account")
	}

	merged := MergeVerified(existing, result, s.lifetimeProductID, s.now())
	if err := s.writeEntitlement(ctx, userID, source, "subscription purchase validated", existing, &merged); err != nil {
		return nil, err
	}
	return outcomeFor(&merged), nil
}

// Sync re-verifies the currently stored purchase against the billing
// authority. Transient upstream faults leave the stored state untouched and
// report success:false so the client can retry without losing access.
func (s *entitlementService) Sync(ctx context.Context, userID string, allowDowngrade bool, source string) (*ValidationOutcome, error) {
	existing, err := s.readEntitlement(ctx, userID)
	if err != nil {
		return nil, err
	}

	if existing != nil && isLegacyLifetime(existing, s.lifetimeProductID) {
		merged := RefreshUnchanged(existing, s.now())
		if err := s.writeEntitlement(ctx, userID, source, "legacy lifetime refreshed", existing, &merged); err != nil {
			return nil, err
		}
		return outcomeFor(&merged), nil
	}

	if existing != nil && existing.PurchaseToken != "" && existing.ProductID != "" {
		return s.syncStoredSubscription(ctx, userID, source, existing)
	}

	// No stored token. Refuse to revoke premium unless the caller explicitly
	// allowed it: a sync racing ahead of a purchase write must not clobber
	// the entitlement the purchase is about to grant.
	if existing != nil && existing.IsPremium && !allowDowngrade {
		s.logger.Warn("premium write blocked",
			zap.String("userId", userID),
			zap.String("source", source),
			zap.String("reason", "no stored purchase token and downgrade not allowed"),
			zap.Bool("premiumBefore", existing.IsPremium),
			zap.Bool("premiumAfter", existing.IsPremium),
		)
		s.recordAudit(ctx, models.PremiumAuditEntry{
			UserID:        userID,
			Source:        source,
			Reason:        "no-token downgrade guard",
			Blocked:       true,
			PremiumBefore: existing.IsPremium,
			PremiumAfter:  existing.IsPremium,
		})
		return outcomeFor(existing), nil
	}

	merged := MergeNone(existing, NoneOverrides{}, s.lifetimeProductID, s.now())
	if err := s.writeEntitlement(ctx, userID, source, "sync with no stored purchase", existing, &merged); err != nil {
		return nil, err
	}
	return outcomeFor(&merged), nil
}

func (s *entitlementService) syncStoredSubscription(ctx context.Context, userID, source string, existing *models.Entitlement) (*ValidationOutcome, error) {
	verifyCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	result, err := s.verifier.VerifySubscription(verifyCtx, existing.ProductID, existing.PurchaseToken)
	if err != nil {
		classified := ClassifyBillingError(err)
		switch {
		case classified.Reason == ReasonPurchaseNotFoundOrExpired:
			// Definitive: the purchase is genuinely gone, safe to revoke.
			state := subscriptionStateExpired
			merged := MergeNone(existing, NoneOverrides{SubscriptionState: &state}, s.lifetimeProductID, s.now())
			if err := s.writeEntitlement(ctx, userID, source, "stored purchase no longer exists", existing, &merged); err != nil {
				return nil, err
			}
			return outcomeFor(&merged), nil

		case classified.Retryable:
			// Transient: never revoke on a fault that may heal. No write.
			s.logger.Info("premium sync skipped on transient billing failure",
				zap.String("userId", userID),
				zap.String("source", source),
				zap.String("error", SanitizeError(err)),
			)
			outcome := outcomeFor(existing)
			outcome.Success = false
			return outcome, nil

		default:
			return nil, classified
		}
	}

	merged := MergeVerified(existing, result, s.lifetimeProductID, s.now())
	if err := s.writeEntitlement(ctx, userID, source, "stored purchase re-verified", existing, &merged); err != nil {
		return nil, err
	}
	return outcomeFor(&merged), nil
}

// Status returns the stored entitlement record, defaulting to the "none"
// entitlement for users who never validated a purchase.
func (s *entitlementService) Status(ctx context.Context, userID string) (*models.Entitlement, error) {
	existing, err := s.readEntitlement(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return &models.Entitlement{EntitlementType: models.EntitlementNone}, nil
	}
	return existing, nil
}

func (s *entitlementService) readEntitlement(ctx context.Context, userID string) (*models.Entitlement, error) {
	readCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	existing, err := s.entitlements.GetByUserID(readCtx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil
		}
		return nil, WrapError(CodeInternal, "", fmt.Sprintf("failed to read entitlement: %v", err), err)
	}
	return existing, nil
}

// writeEntitlement is the single persistence path for validation and sync.
// It emits the "premium write" audit line before the write and records the
// change in the audit trail after it.
func (s *entitlementService) writeEntitlement(ctx context.Context, userID, source, reason string, before, after *models.Entitlement) error {
	premiumBefore := before != nil && before.IsPremium
	s.logger.Info("premium write",
		zap.String("userId", userID),
		zap.String("source", source),
		zap.String("reason", reason),
		zap.Bool("premiumBefore", premiumBefore),
		zap.Bool("premiumAfter", after.IsPremium),
		zap.String("entitlementType", string(after.EntitlementType)),
	)

	writeCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := s.entitlements.Set(writeCtx, userID, after); err != nil {
		return WrapError(CodeInternal, "", fmt.Sprintf("failed to persist entitlement: %v", err), err)
	}

	s.recordAudit(ctx, models.PremiumAuditEntry{
		UserID:          userID,
		Source:          source,
		Reason:          reason,
		PremiumBefore:   premiumBefore,
		PremiumAfter:    after.IsPremium,
		EntitlementType: string(after.EntitlementType),
		ProductID:       after.ProductID,
		OrderID:         after.OrderID,
	})
	return nil
}

// recordAudit appends to the audit trail without ever failing the caller.
func (s *entitlementService) recordAudit(ctx context.Context, entry models.PremiumAuditEntry) {
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

// sameStoredPurchase reports whether the incoming purchase is a restore of
// the purchase already backing the entitlement.
func sameStoredPurchase(existing *models.Entitlement, purchaseToken, orderID string) bool {
	if existing.PurchaseToken != "" && existing.PurchaseToken == purchaseToken {
		return true
	}
	return orderID != "" && existing.OrderID == orderID
}

func outcomeFor(ent *models.Entitlement) *ValidationOutcome {
	entType := ent.EntitlementType
	if entType == "" {
		entType = models.EntitlementNone
	}
	return &ValidationOutcome{
		Success:         true,
		IsPremium:       ent.IsPremium,
		EntitlementType: entType,
	}
}
