package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/option"
)

// Credential resolution failures. These are operator-facing configuration
// problems, never retryable.
var (
	ErrCredentialsMissing = errors.New("play service account secret is not configured")
	ErrCredentialsInvalid = errors.New("play service account secret is invalid")
)

// PlayClient is the narrow surface of the Play Developer API the verifier
// needs. Wrapping the generated androidpublisher service behind it keeps the
// verification logic testable without network access.
type PlayClient interface {
	// GetProductPurchase fetches a one-time product purchase by (productID, token).
	GetProductPurchase(ctx context.Context, productID, purchaseToken string) (*androidpublisher.ProductPurchase, error)
	// AcknowledgeProduct acknowledges a one-time product purchase.
	AcknowledgeProduct(ctx context.Context, productID, purchaseToken string) error
	// GetSubscriptionPurchase fetches the v2 subscription purchase covering all
	// line items under the token.
	GetSubscriptionPurchase(ctx context.Context, purchaseToken string) (*androidpublisher.SubscriptionPurchaseV2, error)
	// AcknowledgeSubscription acknowledges a subscription purchase for the given product.
	AcknowledgeSubscription(ctx context.Context, productID, purchaseToken string) error
}

// serviceAccountKey is the subset of a Google service account JSON key needed
// to judge whether the secret is usable at all.
type serviceAccountKey struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// ResolveClient turns an opaque service-account secret into an authorized
// PlayClient. The secret is validated up front so a misconfigured deployment
// fails with a clear credential error instead of an opaque API failure later.
func ResolveClient(ctx context.Context, serviceAccountJSON, packageName string) (PlayClient, error) {
	if serviceAccountJSON == "" {
		return nil, ErrCredentialsMissing
	}

	var key serviceAccountKey
	if err := json.Unmarshal([]byte(serviceAccountJSON), &key); err != nil {
		return nil, fmt.Errorf("%w: not valid JSON: %v", ErrCredentialsInvalid, err)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("%w: client_email and private_key are required", ErrCredentialsInvalid)
	}

	svc, err := androidpublisher.NewService(ctx,
		option.WithCredentialsJSON([]byte(serviceAccountJSON)),
		option.WithScopes(androidpublisher.AndroidpublisherScope),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialsInvalid, err)
	}

	return &playClient{svc: svc, packageName: packageName}, nil
}

// playClient implements PlayClient against the real androidpublisher service.
type playClient struct {
	svc         *androidpublisher.Service
	packageName string
}

func (c *playClient) GetProductPurchase(ctx context.Context, productID, purchaseToken string) (*androidpublisher.ProductPurchase, error) {
	return c.svc.Purchases.Products.Get(c.packageName, productID, purchaseToken).Context(ctx).Do()
}

func (c *playClient) AcknowledgeProduct(ctx context.Context, productID, purchaseToken string) error {
	req := &androidpublisher.ProductPurchasesAcknowledgeRequest{}
	return c.svc.Purchases.Products.Acknowledge(c.packageName, productID, purchaseToken, req).Context(ctx).Do()
}

func (c *playClient) GetSubscriptionPurchase(ctx context.Context, purchaseToken string) (*androidpublisher.SubscriptionPurchaseV2, error) {
	return c.svc.Purchases.Subscriptionsv2.Get(c.packageName, purchaseToken).Context(ctx).Do()
}

func (c *playClient) AcknowledgeSubscription(ctx context.Context, productID, purchaseToken string) error {
	req := &androidpublisher.SubscriptionPurchasesAcknowledgeRequest{}
	return c.svc.Purchases.Subscriptions.Acknowledge(c.packageName, productID, purchaseToken, req).Context(ctx).Do()
}
