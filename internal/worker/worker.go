package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"shop-backend/internal/broker"
	"shop-backend/internal/mailer"
	"shop-backend/internal/models"
	"shop-backend/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NotificationWorker consumes notification events and sends the matching
// emails. Delivery failures are logged and the message is still committed:
// the parent operation already succeeded and must not be retried for mail.
type NotificationWorker struct {
	consumer *broker.Consumer
	mailer   mailer.Mailer
	logger   *zap.Logger
}

// NewNotificationWorker creates a new notification worker.
func NewNotificationWorker(consumer *broker.Consumer, m mailer.Mailer) *NotificationWorker {
	return &NotificationWorker{
		consumer: consumer,
		mailer:   m,
		logger:   util.GetLogger(),
	}
}

// Start starts the worker.
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.HandleMessage)
}

// Stop stops the worker.
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

// HandleMessage renders and sends the email for one notification event.
// It never returns a delivery error; mail is best-effort by contract.
func (w *NotificationWorker) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var base models.BaseEvent
	if err := json.Unmarshal(msg.Value, &base); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch base.EventType {
	case models.EventTypeOrderPlaced:
		var event models.OrderPlacedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return fmt.Errorf("failed to unmarshal OrderPlaced event: %w", err)
		}
		w.send(event.Email,
			fmt.Sprintf("Order confirmation %s", event.OrderID),
			orderPlacedText(&event),
			orderPlacedHTML(&event))

	case models.EventTypeOrderPaid:
		var event models.OrderPaidEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return fmt.Errorf("failed to unmarshal OrderPaid event: %w", err)
		}
		w.send(event.Email,
			fmt.Sprintf("Payment received for order %s", event.OrderID),
			orderPaidText(&event),
			orderPaidHTML(&event))

	default:
		w.logger.Warn("Unhandled event type", zap.String("event_type", base.EventType))
	}

	return nil
}

func (w *NotificationWorker) send(to, subject, text, html string) {
	if err := w.mailer.Send(to, subject, text, html); err != nil {
		util.EmailsFailedTotal.Inc()
		w.logger.Error("Failed to send notification email",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err))
		return
	}
	util.EmailsSentTotal.Inc()
}

func orderPlacedText(e *models.OrderPlacedEvent) string {
	return fmt.Sprintf(
		"Hi %s,\n\nwe received your order %s (%d items, total %.2f).\nWe will let you know once payment is confirmed.\n",
		e.Username, e.OrderID, e.ItemCount, e.TotalPrice)
}

func orderPlacedHTML(e *models.OrderPlacedEvent) string {
	return fmt.Sprintf(
		"<p>Hi %s,</p><p>we received your order <strong>%s</strong> (%d items, total %.2f).</p><p>We will let you know once payment is confirmed.</p>",
		e.Username, e.OrderID, e.ItemCount, e.TotalPrice)
}

func orderPaidText(e *models.OrderPaidEvent) string {
	return fmt.Sprintf(
		"Hi %s,\n\npayment for order %s (total %.2f) was confirmed.\nTransaction: %s\n",
		e.Username, e.OrderID, e.TotalPrice, e.TransactionID)
}

func orderPaidHTML(e *models.OrderPaidEvent) string {
	return fmt.Sprintf(
		"<p>Hi %s,</p><p>payment for order <strong>%s</strong> (total %.2f) was confirmed.</p><p>Transaction: %s</p>",
		e.Username, e.OrderID, e.TotalPrice, e.TransactionID)
}
