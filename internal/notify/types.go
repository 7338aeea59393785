package notify

import (
	"errors"
	"time"

	"github.com/imrishuroy/go-order-pipeline/internal/events"
)

// Subscription statuses
const (
	StatusPendingConfirmation = "PENDING_CONFIRMATION"
	StatusConfirmed           = "CONFIRMED"
)

var (
	// ErrInvalidEmail rejects a malformed address before any registry mutation.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrNotFound indicates no subscription exists for the given email or token.
	ErrNotFound = errors.New("subscription not found")
)

// Subscription is the shape persisted in the subscriptions table.
// Delivery is withheld until the subscription is confirmed out-of-band.
type Subscription struct {
	Email string `dynamodbav:"email"` // PK
	// Preferences maps event kind -> enabled. A kind absent from the map
	// defaults to enabled.
	Preferences     map[string]bool `dynamodbav:"preferences,omitempty"`
	Status          string          `dynamodbav:"status"`
	ConfirmToken    string          `dynamodbav:"confirm_token,omitempty"`
	SubscriptionARN string          `dynamodbav:"subscription_arn"`
	CreatedAt       time.Time       `dynamodbav:"created_at"`
	UpdatedAt       time.Time       `dynamodbav:"updated_at"`
}

// Wants reports whether the subscriber's filter set includes the kind.
func (s Subscription) Wants(kind events.Kind) bool {
	if enabled, ok := s.Preferences[string(kind)]; ok {
		return enabled
	}
	return true
}
