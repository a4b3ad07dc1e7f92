package events

import (
	"context"
	"maps"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/eygar/service-booking/internal/application"
	"github.com/eygar/service-booking/pkg/domain"
	"github.com/eygar/service-booking/pkg/events"
	"github.com/eygar/service-booking/pkg/kafka"
)

// PaymentConfirmer records a settled payment against a booking.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, bookingID uuid.UUID, details map[string]any) (*application.BookingDTO, error)
}

// PaymentEventConsumer listens to payment events and confirms the matching bookings.
type PaymentEventConsumer struct {
	consumer *kafka.Consumer
	service  PaymentConfirmer
	logger   *zap.Logger
}

// NewPaymentEventConsumer creates a new PaymentEventConsumer.
func NewPaymentEventConsumer(
	brokers []string,
	groupID string,
	service PaymentConfirmer,
	logger *zap.Logger,
) *PaymentEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, events.TopicPaymentEvents, logger)
	return &PaymentEventConsumer{
		consumer: consumer,
		service:  service,
		logger:   logger,
	}
}

// Start begins consuming payment events. This blocks until the context is cancelled.
func (c *PaymentEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *PaymentEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *PaymentEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from payment topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case events.PaymentSucceeded:
		return c.handlePaymentSucceeded(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled payment event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *PaymentEventConsumer) handlePaymentSucceeded(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt events.PaymentSucceededEvent
	if err := cloudEvent.ParseData(&evt); err != nil || evt.BookingID == uuid.Nil {
		c.logger.Error("failed to parse PaymentSucceededEvent data",
			zap.String("event_id", cloudEvent.ID),
			zap.Error(err),
		)
		return nil // Don't retry malformed data
	}

	c.logger.Info("processing payment succeeded event",
		zap.String("booking_id", evt.BookingID.String()),
		zap.String("payment_id", evt.PaymentID),
	)

	details := make(map[string]any, len(evt.PaymentDetails)+3)
	maps.Copy(details, evt.PaymentDetails)
	if evt.PaymentID != "" {
		details["payment_id"] = evt.PaymentID
	}
	if evt.AmountCents > 0 {
		details["amount_cents"] = evt.AmountCents
	}
	if evt.Currency != "" {
		details["currency"] = evt.Currency
	}

	bk, err := c.service.ConfirmPayment(ctx, evt.BookingID, details)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			c.logger.Warn("payment succeeded for unknown booking",
				zap.String("booking_id", evt.BookingID.String()),
			)
			return nil
		}
		c.logger.Error("failed to confirm booking payment",
			zap.String("booking_id", evt.BookingID.String()),
			zap.Error(err),
		)
		return err
	}

	if evt.AmountCents > 0 && evt.AmountCents != bk.TotalAmount {
		c.logger.Warn("payment amount differs from booking total",
			zap.String("booking_id", evt.BookingID.String()),
			zap.Int64("amount_cents", evt.AmountCents),
			zap.Int64("total_amount", bk.TotalAmount),
		)
	}

	c.logger.Info("booking payment confirmed from payment event",
		zap.String("booking_id", evt.BookingID.String()),
		zap.String("booking_status", bk.BookingStatus),
	)
	return nil
}
