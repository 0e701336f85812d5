package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sakif/tour-tracker/internal/apperror"
	"github.com/sakif/tour-tracker/internal/service"
)

const (
	consumerTag = "tour-tracker"
	prefetch    = 10

	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// RawHandler processes one queued event body.
type RawHandler interface {
	HandleRaw(ctx context.Context, body []byte) (*service.EnsureResult, error)
}

// Consumer reads raw Ticketmaster events from a durable AMQP queue and hands
// each one to a RawHandler.
//
// Acknowledgement:
//   - success: Ack
//   - malformed or invalid event: Nack without requeue, retrying cannot help
//   - anything else (store down, context cancelled): Nack with requeue
type Consumer struct {
	url     string
	queue   string
	handler RawHandler
	logger  *slog.Logger
	dial    func(url string) (*amqp.Connection, error)
}

func NewConsumer(url, queue string, handler RawHandler, logger *slog.Logger) *Consumer {
	return &Consumer{
		url:     url,
		queue:   queue,
		handler: handler,
		logger:  logger,
		dial:    amqp.Dial,
	}
}

// Run consumes until ctx is cancelled, reconnecting with a doubling backoff
// between 1s and 30s whenever the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := minBackoff
	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, err := c.dial(c.url)
		if err != nil {
			c.logger.WarnContext(ctx, "failed to dial broker",
				slog.String("error", err.Error()), slog.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = minBackoff

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if err == nil {
			return nil
		}
		c.logger.WarnContext(ctx, "consume loop ended, reconnecting", slog.String("error", err.Error()))
		if !sleep(ctx, backoff) {
			return nil
		}
	}
}

// consume returns nil when ctx is cancelled and an error when the channel
// dies under it.
func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("opening channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("setting qos: %w", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring queue %s: %w", c.queue, err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consuming %s: %w", c.queue, err)
	}

	c.logger.InfoContext(ctx, "consuming events", slog.String("queue", c.queue))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("deliveries channel closed")
			}
			c.handleDelivery(ctx, d)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	res, err := c.handler.HandleRaw(ctx, d.Body)
	switch {
	case err == nil:
		c.logger.DebugContext(ctx, "event stored",
			slog.Uint64("delivery_tag", d.DeliveryTag), slog.Int64("concert_id", res.ConcertID))
		if aerr := d.Ack(false); aerr != nil {
			c.logger.ErrorContext(ctx, "ack failed", slog.String("error", aerr.Error()))
		}

	case errors.Is(err, apperror.ErrValidation):
		c.logger.WarnContext(ctx, "dropping invalid event",
			slog.Uint64("delivery_tag", d.DeliveryTag), slog.String("error", err.Error()))
		if nerr := d.Nack(false, false); nerr != nil {
			c.logger.ErrorContext(ctx, "nack failed", slog.String("error", nerr.Error()))
		}

	default:
		c.logger.ErrorContext(ctx, "event failed, requeueing",
			slog.Uint64("delivery_tag", d.DeliveryTag), slog.String("error", err.Error()))
		if nerr := d.Nack(false, true); nerr != nil {
			c.logger.ErrorContext(ctx, "nack failed", slog.String("error", nerr.Error()))
		}
	}
}

func nextBackoff(d time.Duration) time.Duration {
	return min(d*2, maxBackoff)
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
