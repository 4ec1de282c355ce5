package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/googleapi"

	"github.com/shamar-morrison/showseek-backend/internal/models"
)

// fakePlayClient implements billing.PlayClient for tests.
type fakePlayClient struct {
	product    *androidpublisher.ProductPurchase
	productErr error

	sub    *androidpublisher.SubscriptionPurchaseV2
	subErr error

	ackErr    error
	subAckErr error

	ackCalls    int
	subAckCalls int
	ackProduct  string
}

func (f *fakePlayClient) GetProductPurchase(ctx context.Context, productID, purchaseToken string) (*androidpublisher.ProductPurchase, error) {
	return f.product, f.productErr
}

func (f *fakePlayClient) AcknowledgeProduct(ctx context.Context, productID, purchaseToken string) error {
	f.ackCalls++
	return f.ackErr
}

func (f *fakePlayClient) GetSubscriptionPurchase(ctx context.Context, purchaseToken string) (*androidpublisher.SubscriptionPurchaseV2, error) {
	return f.sub, f.subErr
}

func (f *fakePlayClient) AcknowledgeSubscription(ctx context.Context, productID, purchaseToken string) error {
	f.subAckCalls++
	f.ackProduct = productID
	return f.subAckErr
}

func newTestVerifier(play *fakePlayClient, now time.Time) *playVerifier {
	return &playVerifier{
		play: play,
		cfg: VerifierConfig{
			MonthlyBasePlanID:   "premium-monthly",
			YearlyBasePlanID:    "premium-yearly",
			MonthlyTrialOfferID: "monthly-free-trial",
		},
		logger: zap.NewNop(),
		now:    func() time.Time { return now },
	}
}

func TestVerifyLifetimePurchased(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	play := &fakePlayClient{
		product: &androidpublisher.ProductPurchase{
			PurchaseState:        0,
			AcknowledgementState: 1,
			OrderId:              "GPA.LIFE",
		},
	}
	v := newTestVerifier(play, now)

	res, err := v.VerifyLifetime(context.Background(), "lifetime_product", "tok")
	require.NoError(t, err)
	assert.True(t, res.IsPremium)
	assert.Equal(t, models.EntitlementLifetime, res.EntitlementType)
	assert.Equal(t, "GPA.LIFE", res.OrderID)
	assert.Zero(t, play.ackCalls, "already acknowledged purchases are not re-acknowledged")
}

func TestVerifyLifetimeAcknowledgesPending(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	play := &fakePlayClient{
		product: &androidpublisher.ProductPurchase{PurchaseState: 0, AcknowledgementState: 0, OrderId: "GPA.LIFE"},
	}
	v := newTestVerifier(play, now)

	_, err := v.VerifyLifetime(context.Background(), "lifetime_product", "tok")
	require.NoError(t, err)
	assert.Equal(t, 1, play.ackCalls)
}

func TestVerifyLifetimeAcknowledgeRaceIsSwallowed(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	play := &fakePlayClient{
		product: &androidpublisher.ProductPurchase{PurchaseState: 0, AcknowledgementState: 0, OrderId: "GPA.LIFE"},
		ackErr:  &googleapi.Error{Code: 409, Message: "already acknowledged"},
	}
	v := newTestVerifier(play, now)

	res, err := v.VerifyLifetime(context.Background(), "lifetime_product", "tok")
	require.NoError(t, err)
	assert.True(t, res.IsPremium)
}

func TestVerifyLifetimeAcknowledgeErrorPropagates(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ackErr := &googleapi.Error{Code: 500, Message: "backend error"}
	play := &fakePlayClient{
		product: &androidpublisher.ProductPurchase{PurchaseState: 0, AcknowledgementState: 0},
		ackErr:  ackErr,
	}
	v := newTestVerifier(play, now)

	_, err := v.VerifyLifetime(context.Background(), "lifetime_product", "tok")
	require.Error(t, err)
	assert.ErrorIs(t, err, ackErr)
}

func TestVerifyLifetimeNotPurchased(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	play := &fakePlayClient{
		product: &androidpublisher.ProductPurchase{PurchaseState: 1},
	}
	v := newTestVerifier(play, now)

	_, err := v.VerifyLifetime(context.Background(), "lifetime_product", "tok")
	require.Error(t, err)
	structured, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, CodeFailedPrecondition, structured.Code)
	assert.Equal(t, ReasonPurchaseNotPurchased, structured.Reason)
	assert.False(t, structured.Retryable)
}

func TestVerifySubscriptionActive(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(30 * 24 * time.Hour)
	play := &fakePlayClient{
		sub: &androidpublisher.SubscriptionPurchaseV2{
			SubscriptionState:    "SUBSCRIPTION_STATE_ACTIVE",
			AcknowledgementState: "ACKNOWLEDGEMENT_STATE_ACKNOWLEDGED",
			LatestOrderId:        "GPA.100",
			StartTime:            now.Add(-24 * time.Hour).Format(time.RFC3339),
			LineItems: []*androidpublisher.SubscriptionPurchaseLineItem{
				{
					ProductId:  "premium_sub",
					ExpiryTime: expiry.Format(time.RFC3339),
					OfferDetails: &androidpublisher.OfferDetails{
						BasePlanId: "premium-yearly",
					},
				},
			},
		},
	}
	v := newTestVerifier(play, now)

	res, err := v.VerifySubscription(context.Background(), "premium_sub", "tok")
	require.NoError(t, err)
	assert.True(t, res.IsPremium)
	assert.Equal(t, models.EntitlementSubscription, res.EntitlementType)
	assert.Equal(t, models.SubscriptionTypeYearly, res.SubscriptionType)
	assert.Equal(t, "GPA.100", res.OrderID)
	assert.False(t, res.IsInTrial)
	assert.Nil(t, res.ExpiredAt)
}

func TestVerifySubscriptionPicksLatestLineItem(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	early := now.Add(24 * time.Hour)
	late := now.Add(60 * 24 * time.Hour)
	play := &fakePlayClient{
		sub: &androidpublisher.SubscriptionPurchaseV2{
			SubscriptionState:    "SUBSCRIPTION_STATE_ACTIVE",
			AcknowledgementState: "ACKNOWLEDGEMENT_STATE_PENDING",
			LineItems: []*androidpublisher.SubscriptionPurchaseLineItem{
				{ProductId: "old_sub", ExpiryTime: early.Format(time.RFC3339)},
				{ProductId: "broken", ExpiryTime: "not-a-timestamp"},
				{ProductId: "new_sub", ExpiryTime: late.Format(time.RFC3339)},
			},
		},
	}
	v := newTestVerifier(play, now)

	res, err := v.VerifySubscription(context.Background(), "requested_sub", "tok")
	require.NoError(t, err)
	assert.Equal(t, "new_sub", res.ProductID)
	require.NotNil(t, res.ExpiresAt)
	assert.True(t, res.ExpiresAt.Equal(late))
	assert.Equal(t, "new_sub", play.ackProduct, "acknowledgment targets the latest line item's product")
}

func TestVerifySubscriptionAckFallsBackToRequestedProduct(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(24 * time.Hour)
	play := &fakePlayClient{
		sub: &androidpublisher.SubscriptionPurchaseV2{
			SubscriptionState:    "SUBSCRIPTION_STATE_ACTIVE",
			AcknowledgementState: "ACKNOWLEDGEMENT_STATE_PENDING",
			LineItems: []*androidpublisher.SubscriptionPurchaseLineItem{
				{ExpiryTime: expiry.Format(time.RFC3339)},
			},
		},
	}
	v := newTestVerifier(play, now)

	_, err := v.VerifySubscription(context.Background(), "requested_sub", "tok")
	require.NoError(t, err)
	assert.Equal(t, "requested_sub", play.ackProduct)
}

func TestVerifySubscriptionNoParsableExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	play := &fakePlayClient{
		sub: &androidpublisher.SubscriptionPurchaseV2{
			SubscriptionState: "SUBSCRIPTION_STATE_ACTIVE",
			LineItems: []*androidpublisher.SubscriptionPurchaseLineItem{
				{ProductId: "premium_sub", ExpiryTime: "garbage"},
			},
		},
	}
	v := newTestVerifier(play, now)

	_, err := v.VerifySubscription(context.Background(), "premium_sub", "tok")
	require.Error(t, err)
	structured, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, CodeInternal, structured.Code)
}

func TestVerifySubscriptionCanceledButUnexpiredIsPremium(t *testing.T) {
	// A canceled subscription keeps access until the paid period runs out.
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(10 * 24 * time.Hour)
	play := &fakePlayClient{
		sub: &androidpublisher.SubscriptionPurchaseV2{
			SubscriptionState:    "SUBSCRIPTION_STATE_CANCELED",
			AcknowledgementState: "ACKNOWLEDGEMENT_STATE_ACKNOWLEDGED",
			LineItems: []*androidpublisher.SubscriptionPurchaseLineItem{
				{ProductId: "premium_sub", ExpiryTime: expiry.Format(time.RFC3339)},
			},
		},
	}
	v := newTestVerifier(play, now)

	res, err := v.VerifySubscription(context.Background(), "premium_sub", "tok")
	require.NoError(t, err)
	assert.True(t, res.IsPremium)
}

func TestVerifySubscriptionExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(-time.Hour)
	play := &fakePlayClient{
		sub: &androidpublisher.SubscriptionPurchaseV2{
			SubscriptionState:    "SUBSCRIPTION_STATE_EXPIRED",
			AcknowledgementState: "ACKNOWLEDGEMENT_STATE_ACKNOWLEDGED",
			LineItems: []*androidpublisher.SubscriptionPurchaseLineItem{
				{ProductId: "premium_sub", ExpiryTime: expiry.Format(time.RFC3339)},
			},
		},
	}
	v := newTestVerifier(play, now)

	res, err := v.VerifySubscription(context.Background(), "premium_sub", "tok")
	require.NoError(t, err)
	assert.False(t, res.IsPremium)
	assert.Equal(t, models.EntitlementNone, res.EntitlementType)
	require.NotNil(t, res.ExpiredAt)
}

func TestVerifySubscriptionTrialDetection(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-time.Hour)
	expiry := now.Add(7 * 24 * time.Hour)

	makeSub := func(offer *androidpublisher.OfferDetails) *androidpublisher.SubscriptionPurchaseV2 {
		return &androidpublisher.SubscriptionPurchaseV2{
			SubscriptionState:    "SUBSCRIPTION_STATE_ACTIVE",
			AcknowledgementState: "ACKNOWLEDGEMENT_STATE_ACKNOWLEDGED",
			StartTime:            start.Format(time.RFC3339),
			LineItems: []*androidpublisher.SubscriptionPurchaseLineItem{
				{ProductId: "premium_sub", ExpiryTime: expiry.Format(time.RFC3339), OfferDetails: offer},
			},
		}
	}

	tests := []struct {
		name      string
		offer     *androidpublisher.OfferDetails
		wantTrial bool
	}{
		{
			name:      "matching offer id, different case",
			offer:     &androidpublisher.OfferDetails{BasePlanId: "premium-monthly", OfferId: "Monthly-Free-Trial"},
			wantTrial: true,
		},
		{
			name:      "matching offer tag",
			offer:     &androidpublisher.OfferDetails{BasePlanId: "premium-monthly", OfferTags: []string{"intro", "monthly-free-trial"}},
			wantTrial: true,
		},
		{
			name:      "non-trial offer",
			offer:     &androidpublisher.OfferDetails{BasePlanId: "premium-monthly", OfferId: "winback-discount"},
			wantTrial: false,
		},
		{
			name:      "yearly plan never counts as the monthly trial",
			offer:     &androidpublisher.OfferDetails{BasePlanId: "premium-yearly", OfferId: "monthly-free-trial"},
			wantTrial: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestVerifier(&fakePlayClient{sub: makeSub(tt.offer)}, now)
			res, err := v.VerifySubscription(context.Background(), "premium_sub", "tok")
			require.NoError(t, err)
			assert.Equal(t, tt.wantTrial, res.IsInTrial)
			if tt.wantTrial {
				require.NotNil(t, res.TrialStartAt)
				assert.True(t, res.TrialStartAt.Equal(start))
				require.NotNil(t, res.TrialEndAt)
			} else {
				assert.Nil(t, res.TrialStartAt)
			}
		})
	}
}

func TestVerifySubscriptionFetchErrorPropagatesRaw(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fetchErr := &googleapi.Error{Code: 404, Message: "purchase token was not found"}
	v := newTestVerifier(&fakePlayClient{subErr: fetchErr}, now)

	_, err := v.VerifySubscription(context.Background(), "premium_sub", "tok")
	assert.ErrorIs(t, err, fetchErr)
}
