package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"shop-backend/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to      string
	subject string
	text    string
	html    string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(to, subject, text, html string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, text: text, html: html})
	return nil
}

func newTestWorker(m *fakeMailer) *NotificationWorker {
	return NewNotificationWorker(nil, m)
}

func marshalEvent(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: value}
}

func TestHandleMessageOrderPlaced(t *testing.T) {
	m := &fakeMailer{}
	w := newTestWorker(m)

	msg := marshalEvent(t, models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-1",
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:    "abc123",
		Username:   "alice",
		Email:      "alice@example.com",
		TotalPrice: 220.00,
		ItemCount:  2,
	})

	require.NoError(t, w.HandleMessage(context.Background(), msg))
	require.Len(t, m.sent, 1)
	assert.Equal(t, "alice@example.com", m.sent[0].to)
	assert.Contains(t, m.sent[0].subject, "abc123")
	assert.Contains(t, m.sent[0].text, "alice")
	assert.Contains(t, m.sent[0].html, "<strong>abc123</strong>")
}

func TestHandleMessageOrderPaid(t *testing.T) {
	m := &fakeMailer{}
	w := newTestWorker(m)

	msg := marshalEvent(t, models.OrderPaidEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-2",
			EventType: models.EventTypeOrderPaid,
			Timestamp: time.Now(),
		},
		OrderID:       "abc123",
		Username:      "alice",
		Email:         "alice@example.com",
		TotalPrice:    220.00,
		TransactionID: "pi_123",
	})

	require.NoError(t, w.HandleMessage(context.Background(), msg))
	require.Len(t, m.sent, 1)
	assert.Contains(t, m.sent[0].subject, "Payment received")
	assert.Contains(t, m.sent[0].text, "pi_123")
}

func TestHandleMessageUnknownEventType(t *testing.T) {
	m := &fakeMailer{}
	w := newTestWorker(m)

	msg := marshalEvent(t, models.BaseEvent{
		EventID:   "evt-3",
		EventType: "SOMETHING_ELSE",
		Timestamp: time.Now(),
	})

	require.NoError(t, w.HandleMessage(context.Background(), msg))
	assert.Empty(t, m.sent)
}

func TestHandleMessageMalformedPayload(t *testing.T) {
	w := newTestWorker(&fakeMailer{})

	err := w.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")})
	assert.Error(t, err)
}

func TestHandleMessageSwallowsDeliveryFailure(t *testing.T) {
	m := &fakeMailer{err: errors.New("smtp connection refused")}
	w := newTestWorker(m)

	msg := marshalEvent(t, models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-4",
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:  "abc123",
		Username: "alice",
		Email:    "alice@example.com",
	})

	assert.NoError(t, w.HandleMessage(context.Background(), msg),
		"a failed delivery must not push the message back for retry")
	assert.Empty(t, m.sent)
}
