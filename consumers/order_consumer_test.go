package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/mailer"
	"storefront/models"
)

type stubUsers map[int]*models.User

func (s stubUsers) GetUser(_ context.Context, id int) (*models.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

type recordingMailer struct {
	err       error
	confirmed []int
	cancelled []int
	to        []string
}

func (m *recordingMailer) SendPasswordReset(context.Context, string, string) error { return m.err }

func (m *recordingMailer) SendOrderConfirmation(_ context.Context, to, _ string, event models.OrderEvent) error {
	if m.err != nil {
		return m.err
	}
	m.confirmed = append(m.confirmed, event.OrderID)
	m.to = append(m.to, to)
	return nil
}

func (m *recordingMailer) SendOrderCancellation(_ context.Context, to, _ string, event models.OrderEvent) error {
	if m.err != nil {
		return m.err
	}
	m.cancelled = append(m.cancelled, event.OrderID)
	m.to = append(m.to, to)
	return nil
}

var alice = stubUsers{7: {ID: 7, Username: "alice", Email: "alice@example.com"}}

func encode(t *testing.T, event models.OrderEvent) []byte {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return body
}

func event(kind string) models.OrderEvent {
	return models.OrderEvent{
		OrderID:  42,
		UserID:   7,
		Type:     kind,
		Total:    decimal.RequireFromString("19.98"),
		Occurred: time.Now().UTC(),
	}
}

func TestHandleSendsConfirmation(t *testing.T) {
	m := &recordingMailer{}
	c := NewOrderConsumer(alice, m)

	require.NoError(t, c.Handle(context.Background(), encode(t, event(models.EventOrderCreated))))
	assert.Equal(t, []int{42}, m.confirmed)
	assert.Equal(t, []string{"alice@example.com"}, m.to)
}

func TestHandleSendsCancellation(t *testing.T) {
	m := &recordingMailer{}
	c := NewOrderConsumer(alice, m)

	require.NoError(t, c.Handle(context.Background(), encode(t, event(models.EventOrderCancelled))))
	assert.Equal(t, []int{42}, m.cancelled)
	assert.Empty(t, m.confirmed)
}

func TestHandleMalformed(t *testing.T) {
	c := NewOrderConsumer(alice, &recordingMailer{})

	err := c.Handle(context.Background(), []byte("42|created"))
	assert.ErrorIs(t, err, ErrMalformedEvent)

	err = c.Handle(context.Background(), []byte(`{"type":"order.created"}`))
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestHandleMailDisabledIsNotAFailure(t *testing.T) {
	c := NewOrderConsumer(alice, mailer.Disabled{})
	assert.NoError(t, c.Handle(context.Background(), encode(t, event(models.EventOrderCreated))))
}

func TestHandleFailures(t *testing.T) {
	m := &recordingMailer{err: errors.New("smtp down")}
	c := NewOrderConsumer(alice, m)
	assert.Error(t, c.Handle(context.Background(), encode(t, event(models.EventOrderCreated))))

	unknownUser := event(models.EventOrderCreated)
	unknownUser.UserID = 99
	assert.Error(t, NewOrderConsumer(alice, &recordingMailer{}).Handle(context.Background(), encode(t, unknownUser)))
}

func TestHandleUnknownTypeIsSkipped(t *testing.T) {
	m := &recordingMailer{}
	c := NewOrderConsumer(alice, m)
	assert.NoError(t, c.Handle(context.Background(), encode(t, event("order.shipped"))))
	assert.Empty(t, m.to)
}

type ackRecorder struct {
	acked   int
	nacked  int
	requeue []bool
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acked++; return nil }

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *ackRecorder) Reject(_ uint64, requeue bool) error { return a.Nack(0, false, requeue) }

func TestProcessAcknowledgement(t *testing.T) {
	cases := []struct {
		name        string
		users       stubUsers
		body        func(t *testing.T) []byte
		redelivered bool
		wantAck     bool
		wantRequeue bool
	}{
		{
			name:    "delivered",
			users:   alice,
			body:    func(t *testing.T) []byte { return encode(t, event(models.EventOrderCreated)) },
			wantAck: true,
		},
		{
			name:        "transient failure is retried once",
			users:       stubUsers{},
			body:        func(t *testing.T) []byte { return encode(t, event(models.EventOrderCreated)) },
			wantRequeue: true,
		},
		{
			name:        "second failure is dead-lettered",
			users:       stubUsers{},
			body:        func(t *testing.T) []byte { return encode(t, event(models.EventOrderCreated)) },
			redelivered: true,
		},
		{
			name:  "malformed is dead-lettered at once",
			users: alice,
			body:  func(*testing.T) []byte { return []byte("42|created") },
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			acks := &ackRecorder{}
			c := NewOrderConsumer(tc.users, &recordingMailer{})
			c.process(context.Background(), amqp.Delivery{
				Acknowledger: acks,
				Body:         tc.body(t),
				Redelivered:  tc.redelivered,
			})

			if tc.wantAck {
				assert.Equal(t, 1, acks.acked)
				assert.Zero(t, acks.nacked)
				return
			}
			assert.Zero(t, acks.acked)
			assert.Equal(t, []bool{tc.wantRequeue}, acks.requeue)
		})
	}
}
