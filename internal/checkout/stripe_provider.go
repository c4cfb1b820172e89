package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/manafoundation/wishlist-backend/pkg/db/models"
	pkgerrors "github.com/manafoundation/wishlist-backend/pkg/errors"
	stripeclient "github.com/manafoundation/wishlist-backend/pkg/stripe"
)

const currencyUSD = "usd"

// StripeProvider implements Provider against the Stripe Checkout API.
type StripeProvider struct {
	client  *stripeclient.Client
	timeout time.Duration
}

// NewStripeProvider wraps the shared Stripe client with a per-call timeout.
func NewStripeProvider(client *stripeclient.Client, timeout time.Duration) (*StripeProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StripeProvider{client: client, timeout: timeout}, nil
}

// EnsureItemPrice creates a product and a fixed unit price for the item.
// Callers cache the returned ids on the item row so this runs once per item.
func (p *StripeProvider) EnsureItemPrice(ctx context.Context, item *models.FundableItem) (string, string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	product, err := p.client.API().V1Products.Create(callCtx, &stripe.ProductCreateParams{
		Name: stripe.String(item.Title),
		Metadata: map[string]string{
			MetaItemID: item.ID.String(),
		},
	})
	if err != nil {
		return "", "", classifyStripeErr(err, "creating product")
	}

	price, err := p.client.API().V1Prices.Create(callCtx, &stripe.PriceCreateParams{
		Product:    stripe.String(product.ID),
		Currency:   stripe.String(currencyUSD),
		UnitAmount: stripe.Int64(item.UnitPriceCents),
	})
	if err != nil {
		return "", "", classifyStripeErr(err, "creating price")
	}

	return product.ID, price.ID, nil
}

// CreateSession builds one hosted checkout session.
func (p *StripeProvider) CreateSession(ctx context.Context, in ProviderSessionInput) (*SessionHandle, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionCreateParams{
		Mode:                     stripe.String(string(stripe.CheckoutSessionModePayment)),
		SubmitType:               stripe.String("donate"),
		CustomerEmail:            stripe.String(in.CustomerEmail),
		SuccessURL:               stripe.String(in.SuccessURL),
		CancelURL:                stripe.String(in.CancelURL),
		AllowPromotionCodes:      stripe.Bool(true),
		BillingAddressCollection: stripe.String("required"),
		Metadata:                 in.Metadata,
	}

	if in.PriceID != "" {
		params.LineItems = []*stripe.CheckoutSessionCreateLineItemParams{{
			Price:    stripe.String(in.PriceID),
			Quantity: stripe.Int64(in.Quantity),
		}}
	} else {
		params.LineItems = []*stripe.CheckoutSessionCreateLineItemParams{{
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency:   stripe.String(currencyUSD),
				UnitAmount: stripe.Int64(in.DynamicAmountCents),
				ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripe.String(in.DynamicName),
				},
			},
			Quantity: stripe.Int64(1),
		}}
	}

	session, err := p.client.API().V1CheckoutSessions.Create(callCtx, params)
	if err != nil {
		return nil, classifyStripeErr(err, "creating checkout session")
	}

	return &SessionHandle{SessionID: session.ID, RedirectURL: session.URL}, nil
}

func classifyStripeErr(err error, action string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, "payment provider timed out "+action)
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Type {
		case stripe.ErrorTypeInvalidRequest:
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment provider rejected the request")
		default:
			return pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, "payment provider error "+action)
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, "payment provider unreachable "+action)
}
