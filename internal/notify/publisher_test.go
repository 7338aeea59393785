package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-order-pipeline/internal/events"
	"github.com/imrishuroy/go-order-pipeline/internal/notify"
)

// recordingSender captures deliveries and optionally fails per recipient.
type recordingSender struct {
	deliveries []delivery
	failFor    map[string]error
}

type delivery struct {
	email string
	kind  events.Kind
}

func (s *recordingSender) Send(_ context.Context, sub notify.Subscription, ev events.Event) error {
	if err, ok := s.failFor[sub.Email]; ok {
		return err
	}
	s.deliveries = append(s.deliveries, delivery{email: sub.Email, kind: ev.Kind()})
	return nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func subscribeConfirmed(t *testing.T, registry *notify.Registry, email string, prefs map[string]bool) {
	t.Helper()
	sub, err := registry.Subscribe(context.Background(), email, prefs)
	require.NoError(t, err)
	_, err = registry.Confirm(context.Background(), sub.ConfirmToken)
	require.NoError(t, err)
}

func urgentEvent() *events.OrderUrgent {
	return &events.OrderUrgent{
		OrderDetail: events.OrderDetail{OrderID: "o1"},
		At:          time.Now(),
	}
}

func createdEvent() *events.OrderCreated {
	return &events.OrderCreated{
		OrderDetail: events.OrderDetail{OrderID: "o1"},
		At:          time.Now(),
	}
}

func TestPublisher_FilterSetControlsDelivery(t *testing.T) {
	ctx := context.Background()
	registry, _ := newRegistry(t)
	sender := &recordingSender{}
	pub := notify.NewPublisher(registry, sender, nil, quietLogger())

	subscribeConfirmed(t, registry, "ada@example.com", map[string]bool{"orderUrgent": false})

	// disabled kind: no delivery
	require.NoError(t, pub.Publish(ctx, urgentEvent()))
	assert.Empty(t, sender.deliveries)

	// kinds absent from the filter map default to enabled
	require.NoError(t, pub.Publish(ctx, createdEvent()))
	require.Len(t, sender.deliveries, 1)
	assert.Equal(t, "ada@example.com", sender.deliveries[0].email)
	assert.Equal(t, events.KindOrderCreated, sender.deliveries[0].kind)
}

func TestPublisher_PendingSubscriptionsGetNothing(t *testing.T) {
	ctx := context.Background()
	registry, _ := newRegistry(t)
	sender := &recordingSender{}
	pub := notify.NewPublisher(registry, sender, nil, quietLogger())

	_, err := registry.Subscribe(ctx, "pending@example.com", nil)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(ctx, createdEvent()))
	assert.Empty(t, sender.deliveries, "delivery is withheld until confirmation")
}

func TestPublisher_RecipientFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	registry, _ := newRegistry(t)
	sender := &recordingSender{failFor: map[string]error{
		"broken@example.com": errors.New("mailbox full"),
	}}
	pub := notify.NewPublisher(registry, sender, nil, quietLogger())

	subscribeConfirmed(t, registry, "broken@example.com", nil)
	subscribeConfirmed(t, registry, "ok@example.com", nil)

	require.NoError(t, pub.Publish(ctx, createdEvent()))
	require.Len(t, sender.deliveries, 1)
	assert.Equal(t, "ok@example.com", sender.deliveries[0].email)
}

func TestPublisher_AllVariantsAccepted(t *testing.T) {
	ctx := context.Background()
	registry, _ := newRegistry(t)
	sender := &recordingSender{}
	pub := notify.NewPublisher(registry, sender, nil, quietLogger())

	subscribeConfirmed(t, registry, "ada@example.com", nil)

	all := []events.Event{
		createdEvent(),
		&events.OrderCompleted{At: time.Now()},
		&events.OrderFailed{Reason: "x", At: time.Now()},
		urgentEvent(),
	}
	for _, ev := range all {
		require.NoError(t, pub.Publish(ctx, ev))
	}
	assert.Len(t, sender.deliveries, len(all))
}
