package notify_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-order-pipeline/internal/notify"
	"github.com/imrishuroy/go-order-pipeline/internal/storetest"
)

func newRegistry(t *testing.T) (*notify.Registry, *storetest.DynamoFake) {
	t.Helper()
	fake := storetest.NewDynamoFake().WithTable("subscriptions", "email")
	return notify.NewRegistry(fake, "subscriptions"), fake
}

func TestRegistry_SubscribeCreatesPendingSubscription(t *testing.T) {
	ctx := context.Background()
	registry, _ := newRegistry(t)

	sub, err := registry.Subscribe(ctx, "ada@example.com", map[string]bool{"orderUrgent": false})
	require.NoError(t, err)
	assert.Equal(t, notify.StatusPendingConfirmation, sub.Status)
	assert.NotEmpty(t, sub.ConfirmToken)
	assert.NotEmpty(t, sub.SubscriptionARN)
	assert.False(t, sub.Preferences["orderUrgent"])
}

func TestRegistry_SubscribeRejectsBadEmailBeforeAnyWrite(t *testing.T) {
	ctx := context.Background()
	registry, fake := newRegistry(t)

	for _, email := range []string{"", "not-an-email", "a@", "@example.com", "a b@example.com"} {
		_, err := registry.Subscribe(ctx, email, nil)
		assert.ErrorIs(t, err, notify.ErrInvalidEmail, "email %q", email)
	}
	assert.Equal(t, 0, fake.PutCalls, "a rejected email must not touch the registry")
}

func TestRegistry_ResubscribeReplacesPreferences(t *testing.T) {
	ctx := context.Background()
	registry, fake := newRegistry(t)

	first, err := registry.Subscribe(ctx, "ada@example.com", map[string]bool{"orderFailed": false})
	require.NoError(t, err)

	second, err := registry.Subscribe(ctx, "ada@example.com", map[string]bool{"orderFailed": true})
	require.NoError(t, err)
	assert.True(t, second.Preferences["orderFailed"])
	// identity is stable across a preference update
	assert.Equal(t, first.SubscriptionARN, second.SubscriptionARN)
	assert.Len(t, fake.Items("subscriptions"), 1)
}

func TestRegistry_ConfirmFlipsStatus(t *testing.T) {
	ctx := context.Background()
	registry, _ := newRegistry(t)

	sub, err := registry.Subscribe(ctx, "ada@example.com", nil)
	require.NoError(t, err)

	confirmed, err := registry.Confirm(ctx, sub.ConfirmToken)
	require.NoError(t, err)
	assert.Equal(t, notify.StatusConfirmed, confirmed.Status)

	got, err := registry.Get(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, notify.StatusConfirmed, got.Status)
}

func TestRegistry_ConfirmUnknownToken(t *testing.T) {
	registry, _ := newRegistry(t)
	_, err := registry.Confirm(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, notify.ErrNotFound)
}

func TestRegistry_UnsubscribeUnknownEmailLeavesRegistryUntouched(t *testing.T) {
	ctx := context.Background()
	registry, fake := newRegistry(t)

	_, err := registry.Subscribe(ctx, "ada@example.com", nil)
	require.NoError(t, err)

	err = registry.Unsubscribe(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, notify.ErrNotFound)
	assert.Len(t, fake.Items("subscriptions"), 1)
}

func TestRegistry_UnsubscribeRemovesSubscription(t *testing.T) {
	ctx := context.Background()
	registry, fake := newRegistry(t)

	_, err := registry.Subscribe(ctx, "ada@example.com", nil)
	require.NoError(t, err)
	require.NoError(t, registry.Unsubscribe(ctx, "ada@example.com"))
	assert.Empty(t, fake.Items("subscriptions"))

	got, err := registry.Get(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRegistry_ListConfirmed(t *testing.T) {
	ctx := context.Background()
	registry, _ := newRegistry(t)

	_, err := registry.Subscribe(ctx, "pending@example.com", nil)
	require.NoError(t, err)

	confirmedSub, err := registry.Subscribe(ctx, "confirmed@example.com", nil)
	require.NoError(t, err)
	_, err = registry.Confirm(ctx, confirmedSub.ConfirmToken)
	require.NoError(t, err)

	list, err := registry.ListConfirmed(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "confirmed@example.com", list[0].Email)
}
