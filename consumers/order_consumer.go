package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"storefront/config"
	"storefront/mailer"
	"storefront/models"
)

// ErrMalformedEvent marks a message that can never be processed.
var ErrMalformedEvent = errors.New("malformed order event")

// UserLookup resolves the recipient of an order notification.
type UserLookup interface {
	GetUser(ctx context.Context, id int) (*models.User, error)
}

// OrderConsumer turns order events into customer notification emails.
type OrderConsumer struct {
	users   UserLookup
	mailer  mailer.Mailer
	timeout time.Duration
}

func NewOrderConsumer(users UserLookup, m mailer.Mailer) *OrderConsumer {
	return &OrderConsumer{users: users, mailer: m, timeout: 30 * time.Second}
}

// Start consumes the order queue and the dead letter queue until ctx is done
// or the channel closes.
func (oc *OrderConsumer) Start(ctx context.Context, ch *amqp.Channel, cfg *config.Config) error {
	msgs, err := ch.Consume(
		cfg.OrderQueue,
		"storefront", // consumer tag
		false,        // auto-ack
		false,        // exclusive
		false,        // no-local
		false,        // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("register order consumer: %w", err)
	}

	dlqMsgs, err := ch.Consume(
		cfg.DeadLetterQueue,
		"storefront-dlq", // consumer tag
		false,            // auto-ack
		false,            // exclusive
		false,            // no-local
		false,            // no-wait
		nil,
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to register dead letter consumer")
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					log.Warn().Msg("order queue delivery channel closed")
					return
				}
				oc.process(ctx, msg)
			}
		}
	}()

	if dlqMsgs != nil {
		go func() {
			for msg := range dlqMsgs {
				processDeadLetterMessage(msg)
			}
		}()
	}

	log.Info().Str("queue", cfg.OrderQueue).Msg("order consumer started")
	return nil
}

func (oc *OrderConsumer) process(ctx context.Context, msg amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic in order event processing")
			_ = msg.Nack(false, false)
		}
	}()

	if err := oc.Handle(ctx, msg.Body); err != nil {
		requeue := shouldRequeue(err, msg.Redelivered)
		log.Error().Err(err).Str("message_id", msg.MessageId).Bool("requeue", requeue).Msg("order event failed")
		if err := msg.Nack(false, requeue); err != nil {
			log.Error().Err(err).Msg("nack failed")
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		log.Error().Err(err).Msg("ack failed")
	}
}

// Handle processes one encoded order event. A nil return means the message is
// done with, including when email delivery is switched off.
func (oc *OrderConsumer) Handle(ctx context.Context, body []byte) error {
	var event models.OrderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.OrderID <= 0 || event.UserID <= 0 {
		return fmt.Errorf("%w: missing order or user id", ErrMalformedEvent)
	}

	logger := log.With().Int("order_id", event.OrderID).Str("type", event.Type).Logger()
	logger.Info().Msg("processing order event")

	ctx, cancel := context.WithTimeout(ctx, oc.timeout)
	defer cancel()

	user, err := oc.users.GetUser(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("look up user %d: %w", event.UserID, err)
	}

	switch event.Type {
	case models.EventOrderCreated:
		err = oc.mailer.SendOrderConfirmation(ctx, user.Email, user.Username, event)
	case models.EventOrderCancelled:
		err = oc.mailer.SendOrderCancellation(ctx, user.Email, user.Username, event)
	default:
		logger.Warn().Msg("unknown order event type, skipping")
		return nil
	}

	if errors.Is(err, mailer.ErrNotConfigured) {
		logger.Debug().Msg("email delivery disabled, notification skipped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("notify order %d: %w", event.OrderID, err)
	}

	logger.Info().Msg("order notification sent")
	return nil
}

// shouldRequeue gives a failed event one more delivery unless it can never
// succeed. A second failure sends it to the dead letter queue.
func shouldRequeue(err error, redelivered bool) bool {
	return !redelivered && !errors.Is(err, ErrMalformedEvent)
}

func processDeadLetterMessage(msg amqp.Delivery) {
	log.Warn().Str("type", msg.Type).Bytes("body", msg.Body).Msg("received dead letter")
	if err := msg.Ack(false); err != nil {
		log.Error().Err(err).Msg("ack dead letter failed")
	}
}
