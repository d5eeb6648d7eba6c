package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"shop-backend/config"
	"shop-backend/internal/apperr"
	"shop-backend/internal/models"
	"shop-backend/internal/payments"
	"shop-backend/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const webhookDedupeTTL = 24 * time.Hour

// PaymentService bridges orders to the payment provider: it creates intents
// pinned to the persisted total and settles orders from verified webhooks.
type PaymentService struct {
	orders         OrderStore
	users          UserStore
	provider       payments.Provider
	publisher      Notifier
	dedupe         EventDeduper
	webhookSecret  string
	publishableKey string
	logger         *zap.Logger
}

// NewPaymentService creates a new payment service. Publisher and dedupe may
// be nil; both only affect the best-effort notification path.
func NewPaymentService(
	orders OrderStore,
	users UserStore,
	provider payments.Provider,
	publisher Notifier,
	dedupe EventDeduper,
	cfg config.StripeConfig,
) *PaymentService {
	return &PaymentService{
		orders:         orders,
		users:          users,
		provider:       provider,
		publisher:      publisher,
		dedupe:         dedupe,
		webhookSecret:  cfg.WebhookSecret,
		publishableKey: cfg.PublishableKey,
		logger:         util.GetLogger(),
	}
}

// PublishableKey returns the key for client-side provider SDK init.
func (s *PaymentService) PublishableKey() string {
	return s.publishableKey
}

// CreateIntentRequest represents a payment-intent request.
type CreateIntentRequest struct {
	OrderID  string `json:"orderId" binding:"required"`
	Currency string `json:"currency"`
}

// CreateIntentResponse is the client-usable intent result.
type CreateIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
	Amount       int64  `json:"amount"`
}

// CreateIntent creates a provider payment intent for an order the caller
// owns. The charged amount comes strictly from the persisted total; any
// client-supplied amount is ignored by construction.
func (s *PaymentService) CreateIntent(ctx context.Context, actor *models.User, req *CreateIntentRequest) (*CreateIntentResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CreateIntent")
	defer span.End()

	oid, err := primitive.ObjectIDFromHex(req.OrderID)
	if err != nil {
		return nil, apperr.Validation("invalid order id")
	}

	order, err := s.orders.GetOrderByID(ctx, oid)
	if err != nil {
		return nil, apperr.Internal("failed to load order", err)
	}
	if order == nil {
		return nil, apperr.NotFound("order not found")
	}
	if order.UserID != actor.ID {
		return nil, apperr.Forbidden("not allowed to pay for this order")
	}

	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = "usd"
	}

	// Convert to the currency's minor unit.
	amount := decimal.NewFromFloat(order.TotalPrice).Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	intent, err := s.provider.CreateIntent(ctx, amount, currency, order.ID.Hex())
	if err != nil {
		return nil, apperr.Upstream("failed to create payment intent", err)
	}

	util.PaymentIntentsCreatedTotal.Inc()
	s.logger.Info("Payment intent created",
		zap.String("order_id", order.ID.Hex()),
		zap.Int64("amount", amount),
		zap.String("currency", currency))

	return &CreateIntentResponse{
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
	}, nil
}

// HandleWebhook verifies and processes one provider webhook delivery. A bad
// signature is the only error surfaced to the provider; every failure after
// verification is logged and swallowed so the provider does not retry a
// delivery that cannot be acted on.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	ctx, span := util.StartSpan(ctx, "PaymentService.HandleWebhook")
	defer span.End()

	event, err := webhook.ConstructEvent(payload, sigHeader, s.webhookSecret)
	if err != nil {
		util.WebhookEventsTotal.WithLabelValues("invalid_signature").Inc()
		return apperr.Wrap(apperr.KindUnauthorized, "invalid webhook signature", err)
	}

	if event.Type != "payment_intent.succeeded" {
		util.WebhookEventsTotal.WithLabelValues("ignored").Inc()
		return nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		util.WebhookEventsTotal.WithLabelValues("malformed").Inc()
		s.logger.Error("Failed to decode payment intent from webhook", zap.Error(err))
		return nil
	}

	orderHex := intent.Metadata["order_id"]
	if orderHex == "" {
		util.WebhookEventsTotal.WithLabelValues("no_order").Inc()
		s.logger.Warn("Webhook intent carries no order id", zap.String("intent_id", intent.ID))
		return nil
	}

	oid, err := primitive.ObjectIDFromHex(orderHex)
	if err != nil {
		util.WebhookEventsTotal.WithLabelValues("no_order").Inc()
		s.logger.Warn("Webhook intent carries malformed order id",
			zap.String("intent_id", intent.ID),
			zap.String("order_id", orderHex))
		return nil
	}

	order, err := s.orders.GetOrderByID(ctx, oid)
	if err != nil {
		util.WebhookEventsTotal.WithLabelValues("store_error").Inc()
		s.logger.Error("Failed to load order for webhook",
			zap.String("order_id", orderHex),
			zap.Error(err))
		return nil
	}
	if order == nil {
		util.WebhookEventsTotal.WithLabelValues("order_missing").Inc()
		s.logger.Warn("Webhook references unknown order", zap.String("order_id", orderHex))
		return nil
	}

	owner, err := s.users.GetUserByID(ctx, order.UserID)
	if err != nil {
		s.logger.Warn("Failed to load order owner", zap.String("order_id", orderHex), zap.Error(err))
	}

	payerEmail := intent.ReceiptEmail
	if payerEmail == "" && owner != nil {
		payerEmail = owner.Email
	}

	now := time.Now()
	result := models.PaymentResult{
		TransactionID: intent.ID,
		Status:        string(intent.Status),
		UpdateTime:    now,
		PayerEmail:    payerEmail,
	}

	if err := s.orders.MarkOrderPaid(ctx, oid, result, now); err != nil {
		util.WebhookEventsTotal.WithLabelValues("store_error").Inc()
		s.logger.Error("Failed to settle order",
			zap.String("order_id", orderHex),
			zap.Error(err))
		return nil
	}

	util.OrdersPaidTotal.Inc()
	util.WebhookEventsTotal.WithLabelValues("settled").Inc()
	s.logger.Info("Order settled",
		zap.String("order_id", orderHex),
		zap.String("transaction_id", intent.ID))

	if s.firstDelivery(ctx, event.ID) {
		s.notifyOrderPaid(ctx, order, owner, intent.ID)
	}
	return nil
}

// firstDelivery reports whether this provider event id was seen before. A
// dedupe failure counts as first delivery: a duplicate email is the accepted
// outcome, a missed one is not.
func (s *PaymentService) firstDelivery(ctx context.Context, eventID string) bool {
	if s.dedupe == nil {
		return true
	}
	first, err := s.dedupe.MarkEventProcessed(ctx, eventID, webhookDedupeTTL)
	if err != nil {
		s.logger.Warn("Webhook dedupe check failed", zap.String("event_id", eventID), zap.Error(err))
		return true
	}
	if !first {
		s.logger.Info("Webhook event redelivered", zap.String("event_id", eventID))
	}
	return first
}

func (s *PaymentService) notifyOrderPaid(ctx context.Context, order *models.Order, owner *models.User, txID string) {
	if s.publisher == nil || owner == nil {
		return
	}

	event := &models.OrderPaidEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPaid,
			Timestamp: time.Now(),
		},
		OrderID:       order.ID.Hex(),
		Username:      owner.Username,
		Email:         owner.Email,
		TotalPrice:    order.TotalPrice,
		TransactionID: txID,
	}

	if err := s.publisher.PublishOrderPaid(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPaid event",
			zap.String("order_id", order.ID.Hex()),
			zap.Error(err))
	}
}
