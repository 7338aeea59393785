package notify

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-order-pipeline/internal/awsclient"
)

// Same pattern validator/v10 applies to the `email` tag; the registry
// re-checks because it must reject before any write even when called
// outside the HTTP layer.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// Registry encapsulates subscription operations against DynamoDB.
// All mutations are conditional writes, so concurrent subscribe and
// unsubscribe calls cannot lose updates.
type Registry struct {
	client    awsclient.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewRegistry returns a Registry bound to the subscriptions table.
func NewRegistry(client awsclient.DynamoDBAPI, tableName string) *Registry {
	return &Registry{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Subscribe creates a pending-confirmation subscription for email. The
// address is validated before anything is written. Subscribing an already
// registered address replaces its preferences and keeps its status.
func (r *Registry) Subscribe(ctx context.Context, email string, preferences map[string]bool) (*Subscription, error) {
	if !emailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}

	now := r.nowFunc()
	sub := Subscription{
		Email:           email,
		Preferences:     preferences,
		Status:          StatusPendingConfirmation,
		ConfirmToken:    uuid.NewString(),
		SubscriptionARN: fmt.Sprintf("arn:aws:sns:local:subscription/%s", uuid.NewString()),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	item, err := attributevalue.MarshalMap(sub)
	if err != nil {
		return nil, fmt.Errorf("marshal subscription: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &r.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(email)"),
	})
	if err != nil {
		if !isConditionalFailure(err) {
			return nil, fmt.Errorf("put subscription: %w", err)
		}
		return r.updatePreferences(ctx, email, preferences)
	}
	return &sub, nil
}

// updatePreferences atomically replaces the filter set of an existing
// subscription without touching its confirmation state.
func (r *Registry) updatePreferences(ctx context.Context, email string, preferences map[string]bool) (*Subscription, error) {
	prefs, err := attributevalue.Marshal(preferences)
	if err != nil {
		return nil, fmt.Errorf("marshal preferences: %w", err)
	}

	now := r.nowFunc()
	out, err := r.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &r.tableName,
		Key: map[string]types.AttributeValue{
			"email": &types.AttributeValueMemberS{Value: email},
		},
		UpdateExpression:    awsString("SET preferences = :p, updated_at = :ua"),
		ConditionExpression: awsString("attribute_exists(email)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p":  prefs,
			":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionalFailure(err) {
			// subscriber unsubscribed between our put and update
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update preferences: %w", err)
	}

	var sub Subscription
	if err := attributevalue.UnmarshalMap(out.Attributes, &sub); err != nil {
		return nil, fmt.Errorf("unmarshal subscription: %w", err)
	}
	return &sub, nil
}

// Confirm flips the subscription carrying token to CONFIRMED.
func (r *Registry) Confirm(ctx context.Context, token string) (*Subscription, error) {
	sub, err := r.findByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	now := r.nowFunc()
	out, err := r.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &r.tableName,
		Key: map[string]types.AttributeValue{
			"email": &types.AttributeValueMemberS{Value: sub.Email},
		},
		UpdateExpression:    awsString("SET #s = :confirmed, updated_at = :ua"),
		ConditionExpression: awsString("confirm_token = :token"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":confirmed": &types.AttributeValueMemberS{Value: StatusConfirmed},
			":token":     &types.AttributeValueMemberS{Value: token},
			":ua":        &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionalFailure(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("confirm subscription: %w", err)
	}

	var confirmed Subscription
	if err := attributevalue.UnmarshalMap(out.Attributes, &confirmed); err != nil {
		return nil, fmt.Errorf("unmarshal subscription: %w", err)
	}
	return &confirmed, nil
}

// Unsubscribe removes the subscription for email. Returns ErrNotFound if
// absent; the registry is left untouched in that case.
func (r *Registry) Unsubscribe(ctx context.Context, email string) error {
	_, err := r.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &r.tableName,
		Key: map[string]types.AttributeValue{
			"email": &types.AttributeValueMemberS{Value: email},
		},
		ConditionExpression: awsString("attribute_exists(email)"),
	})
	if err != nil {
		if isConditionalFailure(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

// Get fetches a subscription by email. Returns (nil, nil) if not found.
func (r *Registry) Get(ctx context.Context, email string) (*Subscription, error) {
	out, err := r.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &r.tableName,
		Key: map[string]types.AttributeValue{
			"email": &types.AttributeValueMemberS{Value: email},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var sub Subscription
	if err := attributevalue.UnmarshalMap(out.Item, &sub); err != nil {
		return nil, fmt.Errorf("unmarshal subscription: %w", err)
	}
	return &sub, nil
}

// ListConfirmed returns every confirmed subscription.
func (r *Registry) ListConfirmed(ctx context.Context) ([]Subscription, error) {
	out, err := r.client.Scan(ctx, &dyn.ScanInput{
		TableName:                &r.tableName,
		FilterExpression:         awsString("#s = :confirmed"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":confirmed": &types.AttributeValueMemberS{Value: StatusConfirmed},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scan subscriptions: %w", err)
	}

	subs := make([]Subscription, 0, len(out.Items))
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &subs); err != nil {
		return nil, fmt.Errorf("unmarshal subscriptions: %w", err)
	}
	return subs, nil
}

func (r *Registry) findByToken(ctx context.Context, token string) (*Subscription, error) {
	out, err := r.client.Scan(ctx, &dyn.ScanInput{
		TableName:        &r.tableName,
		FilterExpression: awsString("confirm_token = :token"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":token": &types.AttributeValueMemberS{Value: token},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scan by token: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, ErrNotFound
	}

	var sub Subscription
	if err := attributevalue.UnmarshalMap(out.Items[0], &sub); err != nil {
		return nil, fmt.Errorf("unmarshal subscription: %w", err)
	}
	return &sub, nil
}

func isConditionalFailure(err error) bool {
	var cc *types.ConditionalCheckFailedException
	if errors.As(err, &cc) {
		return true
	}
	var api smithy.APIError
	return errors.As(err, &api) && api.ErrorCode() == "ConditionalCheckFailedException"
}

func awsString(s string) *string { return &s }
