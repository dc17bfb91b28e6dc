package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Ritik272004/PROJMANAGEMENT/internal/notify"
	pkgkafka "github.com/Ritik272004/PROJMANAGEMENT/pkg/kafka"
	"github.com/Ritik272004/PROJMANAGEMENT/pkg/logger"
)

// Source identifies events produced by the auth service.
const Source = "auth-service"

// TopicNotificationRequested carries mails for the mailer worker.
var TopicNotificationRequested = pkgkafka.Topic("auth", "notification.requested")

// NotificationPublisher is a notify.Sender that hands messages to the mailer
// worker over Kafka instead of talking to SMTP from the request path.
type NotificationPublisher struct {
	producer pkgkafka.Publisher
}

// NewNotificationPublisher creates a Kafka-backed sender.
func NewNotificationPublisher(producer pkgkafka.Publisher) *NotificationPublisher {
	return &NotificationPublisher{producer: producer}
}

// Name returns the transport name.
func (p *NotificationPublisher) Name() string {
	return "kafka"
}

// Send publishes msg as a notification.requested event keyed by recipient.
func (p *NotificationPublisher) Send(ctx context.Context, msg *notify.Message) error {
	evt, err := pkgkafka.NewEvent(TopicNotificationRequested, msg.To, "notification", Source, msg)
	if err != nil {
		return fmt.Errorf("build notification event: %w", err)
	}
	evt.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.producer.Publish(ctx, TopicNotificationRequested, evt); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// NotificationHandler delivers notification.requested events through sender.
func NotificationHandler(sender notify.Sender, log *slog.Logger) pkgkafka.Handler {
	return func(ctx context.Context, evt *pkgkafka.Event) error {
		if evt.EventType != TopicNotificationRequested {
			log.WarnContext(ctx, "unknown event type received",
				slog.String("event_type", evt.EventType),
				slog.String("event_id", evt.EventID),
			)
			return nil
		}

		var msg notify.Message
		if err := evt.UnmarshalData(&msg); err != nil {
			return fmt.Errorf("decode notification %s: %w", evt.EventID, err)
		}
		if msg.To == "" {
			return fmt.Errorf("notification %s has no recipient", evt.EventID)
		}

		if evt.CorrelationID != "" {
			ctx = logger.WithCorrelationID(ctx, evt.CorrelationID)
		}
		if err := sender.Send(ctx, &msg); err != nil {
			return fmt.Errorf("deliver notification %s: %w", evt.EventID, err)
		}

		log.InfoContext(ctx, "notification delivered",
			slog.String("event_id", evt.EventID),
			slog.String("kind", msg.Kind),
		)
		return nil
	}
}
