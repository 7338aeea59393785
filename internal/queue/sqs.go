package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/imrishuroy/go-order-pipeline/internal/awsclient"
)

// SQSQueue implements Queue on an SQS queue plus a companion dead-letter
// queue. Visibility locking and redelivery come from SQS itself; the
// receive count is read from the ApproximateReceiveCount attribute.
type SQSQueue struct {
	client            awsclient.SQSAPI
	queueURL          string
	deadLetterURL     string
	waitTime          time.Duration
	visibilityTimeout time.Duration
}

// NewSQS returns a queue bound to the given queue URLs.
func NewSQS(client awsclient.SQSAPI, queueURL, deadLetterURL string, waitTime, visibilityTimeout time.Duration) *SQSQueue {
	return &SQSQueue{
		client:            client,
		queueURL:          queueURL,
		deadLetterURL:     deadLetterURL,
		waitTime:          waitTime,
		visibilityTimeout: visibilityTimeout,
	}
}

// Enqueue sends one message. It returns once SQS has durably buffered it.
func (q *SQSQueue) Enqueue(ctx context.Context, body string, attributes map[string]string) error {
	return q.send(ctx, q.queueURL, body, attributes)
}

func (q *SQSQueue) send(ctx context.Context, queueURL, body string, attributes map[string]string) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    &queueURL,
		MessageBody: &body,
	}
	if len(attributes) > 0 {
		msgAttrs := map[string]sqstypes.MessageAttributeValue{}
		for k, v := range attributes {
			// string type for all attrs
			msgAttrs[k] = sqstypes.MessageAttributeValue{
				DataType:    awsString("String"),
				StringValue: awsString(v),
			}
		}
		input.MessageAttributes = msgAttrs
	}

	_, err := q.client.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// maxReceiveBatch is the largest batch SQS accepts per ReceiveMessage.
const maxReceiveBatch = 10

// Dequeue receives up to max messages, capped at the SQS per-call limit.
// Each returned message holds a visibility lock for the configured timeout.
func (q *SQSQueue) Dequeue(ctx context.Context, max int) ([]Message, error) {
	if max > maxReceiveBatch {
		max = maxReceiveBatch
	}
	if max < 1 {
		max = 1
	}

	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            &q.queueURL,
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     int32(q.waitTime / time.Second),
		VisibilityTimeout:   int32(q.visibilityTimeout / time.Second),
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
			sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
		},
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return nil, fmt.Errorf("receive message: %w", err)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msg := Message{
			Attributes:   map[string]string{},
			ReceiveCount: 1,
		}
		if m.MessageId != nil {
			msg.ID = *m.MessageId
		}
		if m.Body != nil {
			msg.Body = *m.Body
		}
		if m.ReceiptHandle != nil {
			msg.ReceiptHandle = *m.ReceiptHandle
		}
		for k, v := range m.MessageAttributes {
			if v.StringValue != nil {
				msg.Attributes[k] = *v.StringValue
			}
		}
		if rc, ok := m.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
			if n, err := strconv.Atoi(rc); err == nil {
				msg.ReceiveCount = n
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Ack deletes a processed message from the queue.
func (q *SQSQueue) Ack(ctx context.Context, msg Message) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &q.queueURL,
		ReceiptHandle: &msg.ReceiptHandle,
	})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// DeadLetter copies the message to the dead-letter queue and removes it
// from the main queue. The copy happens first so a crash in between leaves
// a duplicate rather than a lost message.
func (q *SQSQueue) DeadLetter(ctx context.Context, msg Message) error {
	if err := q.send(ctx, q.deadLetterURL, msg.Body, msg.Attributes); err != nil {
		return fmt.Errorf("dead-letter send: %w", err)
	}
	if err := q.Ack(ctx, msg); err != nil {
		return fmt.Errorf("dead-letter delete: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
