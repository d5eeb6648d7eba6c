package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"shop-backend/config"
	"shop-backend/internal/apperr"
	"shop-backend/internal/models"
	"shop-backend/internal/payments"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testWebhookSecret = "whsec_test_secret"

// fakeProvider records intent requests without calling out.
type fakeProvider struct {
	lastAmount   int64
	lastCurrency string
	lastOrderID  string
	err          error
}

func (f *fakeProvider) CreateIntent(_ context.Context, amount int64, currency, orderID string) (*payments.Intent, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastAmount = amount
	f.lastCurrency = currency
	f.lastOrderID = orderID
	return &payments.Intent{
		ID:           "pi_test_123",
		ClientSecret: "pi_test_123_secret",
		Amount:       amount,
	}, nil
}

func newTestPaymentService(orders OrderStore, users UserStore, provider payments.Provider, notifier Notifier, dedupe EventDeduper) *PaymentService {
	return NewPaymentService(orders, users, provider, notifier, dedupe, config.StripeConfig{
		WebhookSecret:  testWebhookSecret,
		PublishableKey: "pk_test_123",
	})
}

// signWebhookPayload builds a Stripe-Signature header valid for payload.
func signWebhookPayload(payload []byte) string {
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, testWebhookSecret)
	return fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))
}

func succeededIntentPayload(t *testing.T, eventID, intentID string, metadata map[string]string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":          eventID,
		"object":      "event",
		"api_version": stripe.APIVersion,
		"type":        "payment_intent.succeeded",
		"created":     time.Now().Unix(),
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":       intentID,
				"object":   "payment_intent",
				"status":   "succeeded",
				"metadata": metadata,
			},
		},
	})
	require.NoError(t, err)
	return body
}

func TestCreateIntentUsesPersistedTotal(t *testing.T) {
	owner := testBuyer()
	orders := newFakeOrders()
	order := &models.Order{UserID: owner.ID, TotalPrice: 220.00}
	require.NoError(t, orders.CreateOrder(context.Background(), order))

	provider := &fakeProvider{}
	svc := newTestPaymentService(orders, newFakeUsers(owner), provider, nil, nil)

	resp, err := svc.CreateIntent(context.Background(), owner, &CreateIntentRequest{OrderID: order.ID.Hex()})
	require.NoError(t, err)

	assert.Equal(t, int64(22000), provider.lastAmount, "amount is the stored total in minor units")
	assert.Equal(t, "usd", provider.lastCurrency)
	assert.Equal(t, order.ID.Hex(), provider.lastOrderID)
	assert.Equal(t, "pi_test_123_secret", resp.ClientSecret)
	assert.Equal(t, int64(22000), resp.Amount)
}

func TestCreateIntentOwnerOnly(t *testing.T) {
	owner := testBuyer()
	orders := newFakeOrders()
	order := &models.Order{UserID: owner.ID, TotalPrice: 65.00}
	require.NoError(t, orders.CreateOrder(context.Background(), order))

	svc := newTestPaymentService(orders, newFakeUsers(owner), &fakeProvider{}, nil, nil)

	stranger := &models.User{ID: primitive.NewObjectID()}
	_, err := svc.CreateIntent(context.Background(), stranger, &CreateIntentRequest{OrderID: order.ID.Hex()})
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	admin := &models.User{ID: primitive.NewObjectID(), IsAdmin: true}
	_, err = svc.CreateIntent(context.Background(), admin, &CreateIntentRequest{OrderID: order.ID.Hex()})
	require.Error(t, err, "intents are owner-only even for privileged users")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestCreateIntentUnknownOrder(t *testing.T) {
	svc := newTestPaymentService(newFakeOrders(), newFakeUsers(), &fakeProvider{}, nil, nil)

	_, err := svc.CreateIntent(context.Background(), testBuyer(), &CreateIntentRequest{OrderID: primitive.NewObjectID().Hex()})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	owner := testBuyer()
	orders := newFakeOrders()
	order := &models.Order{UserID: owner.ID, TotalPrice: 65.00}
	require.NoError(t, orders.CreateOrder(context.Background(), order))

	svc := newTestPaymentService(orders, newFakeUsers(owner), &fakeProvider{}, nil, nil)

	payload := succeededIntentPayload(t, "evt_1", "pi_1", map[string]string{"order_id": order.ID.Hex()})
	err := svc.HandleWebhook(context.Background(), payload, "t=12345,v1=deadbeef")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	stored, err := orders.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPaid, "an unverified delivery must not settle the order")
}

func TestHandleWebhookSettlesOrder(t *testing.T) {
	owner := testBuyer()
	orders := newFakeOrders()
	order := &models.Order{UserID: owner.ID, TotalPrice: 220.00}
	require.NoError(t, orders.CreateOrder(context.Background(), order))

	notifier := &fakeNotifier{}
	svc := newTestPaymentService(orders, newFakeUsers(owner), &fakeProvider{}, notifier, newFakeDeduper())

	payload := succeededIntentPayload(t, "evt_settle", "pi_settle", map[string]string{"order_id": order.ID.Hex()})
	require.NoError(t, svc.HandleWebhook(context.Background(), payload, signWebhookPayload(payload)))

	stored, err := orders.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPaid)
	require.NotNil(t, stored.PaidAt)
	assert.WithinDuration(t, time.Now(), *stored.PaidAt, time.Minute)
	require.NotNil(t, stored.PaymentResult)
	assert.Equal(t, "pi_settle", stored.PaymentResult.TransactionID)
	assert.Equal(t, "succeeded", stored.PaymentResult.Status)
	assert.Equal(t, owner.Email, stored.PaymentResult.PayerEmail, "payer email falls back to the order owner")

	require.Len(t, notifier.paid, 1)
	assert.Equal(t, order.ID.Hex(), notifier.paid[0].OrderID)
	assert.Equal(t, "pi_settle", notifier.paid[0].TransactionID)
}

func TestHandleWebhookRedeliveryIsIdempotent(t *testing.T) {
	owner := testBuyer()
	orders := newFakeOrders()
	order := &models.Order{UserID: owner.ID, TotalPrice: 65.00}
	require.NoError(t, orders.CreateOrder(context.Background(), order))

	notifier := &fakeNotifier{}
	svc := newTestPaymentService(orders, newFakeUsers(owner), &fakeProvider{}, notifier, newFakeDeduper())

	payload := succeededIntentPayload(t, "evt_dup", "pi_dup", map[string]string{"order_id": order.ID.Hex()})
	require.NoError(t, svc.HandleWebhook(context.Background(), payload, signWebhookPayload(payload)))
	require.NoError(t, svc.HandleWebhook(context.Background(), payload, signWebhookPayload(payload)))

	stored, err := orders.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPaid)
	assert.Len(t, notifier.paid, 1, "a redelivered event must not send a second notification")
}

func TestHandleWebhookIgnoresOtherEventTypes(t *testing.T) {
	owner := testBuyer()
	orders := newFakeOrders()
	order := &models.Order{UserID: owner.ID, TotalPrice: 65.00}
	require.NoError(t, orders.CreateOrder(context.Background(), order))

	svc := newTestPaymentService(orders, newFakeUsers(owner), &fakeProvider{}, nil, nil)

	body, err := json.Marshal(map[string]interface{}{
		"id":          "evt_other",
		"object":      "event",
		"api_version": stripe.APIVersion,
		"type":        "payment_intent.created",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":       "pi_other",
				"object":   "payment_intent",
				"metadata": map[string]string{"order_id": order.ID.Hex()},
			},
		},
	})
	require.NoError(t, err)

	require.NoError(t, svc.HandleWebhook(context.Background(), body, signWebhookPayload(body)))

	stored, err := orders.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPaid)
}

func TestHandleWebhookAcksMissingOrUnknownOrder(t *testing.T) {
	svc := newTestPaymentService(newFakeOrders(), newFakeUsers(), &fakeProvider{}, nil, nil)

	noMeta := succeededIntentPayload(t, "evt_nometa", "pi_nometa", nil)
	require.NoError(t, svc.HandleWebhook(context.Background(), noMeta, signWebhookPayload(noMeta)),
		"a delivery without an order reference is acknowledged, not retried")

	unknown := succeededIntentPayload(t, "evt_unknown", "pi_unknown", map[string]string{"order_id": primitive.NewObjectID().Hex()})
	require.NoError(t, svc.HandleWebhook(context.Background(), unknown, signWebhookPayload(unknown)))
}
