package notify

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-order-pipeline/internal/events"
	"github.com/imrishuroy/go-order-pipeline/internal/metrics"
)

// Sender delivers one event to one recipient. The actual transport
// (email, SNS, webhook) lives behind this interface.
type Sender interface {
	Send(ctx context.Context, sub Subscription, ev events.Event) error
}

// LogSender writes deliveries to the log. It stands in for a real
// transport in local runs.
type LogSender struct {
	Log *logrus.Logger
}

func (s *LogSender) Send(_ context.Context, sub Subscription, ev events.Event) error {
	fields := logrus.Fields{
		"recipient": sub.Email,
		"event":     ev.Kind(),
		"source":    events.Source,
	}
	if d := ev.Detail(); d != nil {
		fields["order_id"] = d.OrderID
	}
	s.Log.WithFields(fields).Info("notification delivered")
	return nil
}

// Publisher delivers lifecycle events to every confirmed subscription
// whose filter set includes the event kind.
type Publisher struct {
	registry *Registry
	sender   Sender
	recorder *metrics.Recorder
	log      *logrus.Logger
}

func NewPublisher(registry *Registry, sender Sender, recorder *metrics.Recorder, log *logrus.Logger) *Publisher {
	return &Publisher{
		registry: registry,
		sender:   sender,
		recorder: recorder,
		log:      log,
	}
}

// Publish fans ev out to matching confirmed subscribers. One recipient's
// delivery failure is logged and never blocks delivery to the others.
func (p *Publisher) Publish(ctx context.Context, ev events.Event) error {
	// exhaustive over the event variants; a new kind must be added here
	switch ev.(type) {
	case *events.OrderCreated, *events.OrderCompleted, *events.OrderFailed, *events.OrderUrgent:
	default:
		return fmt.Errorf("publish: unknown event variant %T", ev)
	}

	subs, err := p.registry.ListConfirmed(ctx)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}

	var delivered float64
	for _, sub := range subs {
		if !sub.Wants(ev.Kind()) {
			continue
		}
		if err := p.sender.Send(ctx, sub, ev); err != nil {
			p.log.WithFields(logrus.Fields{
				"recipient": sub.Email,
				"event":     ev.Kind(),
			}).WithError(err).Error("notification delivery failed")
			continue
		}
		delivered++
	}

	if delivered > 0 {
		p.recorder.Count(ctx, metrics.NotificationsDelivered, delivered)
	}
	return nil
}
