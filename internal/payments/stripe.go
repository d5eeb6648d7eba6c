package payments

import (
	"context"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"shop-backend/config"
)

// Intent is the client-usable result of creating a provider payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
}

// Provider creates provider-side payment intents pinned to a server-computed
// amount, with the order id carried as opaque metadata.
type Provider interface {
	CreateIntent(ctx context.Context, amount int64, currency, orderID string) (*Intent, error)
}

// StripeProvider implements Provider against the Stripe API.
type StripeProvider struct {
	api *client.API
}

// NewStripeProvider creates a Stripe-backed provider from config.
func NewStripeProvider(cfg config.StripeConfig) *StripeProvider {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &StripeProvider{api: api}
}

// CreateIntent creates a payment intent. Amount is in the currency's minor
// unit and always comes from the persisted order total, never from a client.
func (p *StripeProvider) CreateIntent(ctx context.Context, amount int64, currency, orderID string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", orderID)

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, err
	}

	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
	}, nil
}
