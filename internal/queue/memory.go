package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryMessage struct {
	id           string
	body         string
	attributes   map[string]string
	receiveCount int
	// invisibleUntil is the visibility deadline of the current delivery;
	// zero while the message has never been delivered or was requeued.
	invisibleUntil time.Time
	receiptHandle  string
}

// MemoryQueue is an in-process Queue with the same delivery semantics as
// the SQS implementation: per-message visibility deadlines, receive
// counting and a dead-letter store. It backs local runs and tests.
type MemoryQueue struct {
	mu                sync.Mutex
	messages          []*memoryMessage
	dead              []Message
	visibilityTimeout time.Duration
	nowFunc           func() time.Time
}

// NewMemory returns an empty in-memory queue.
func NewMemory(visibilityTimeout time.Duration) *MemoryQueue {
	return &MemoryQueue{
		visibilityTimeout: visibilityTimeout,
		nowFunc:           time.Now,
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, body string, attributes map[string]string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	attrs := map[string]string{}
	for k, v := range attributes {
		attrs[k] = v
	}
	q.messages = append(q.messages, &memoryMessage{
		id:         uuid.NewString(),
		body:       body,
		attributes: attrs,
	})
	return nil
}

// Dequeue returns up to max currently visible messages. Each returned
// message becomes invisible until the visibility timeout lapses and gets
// a fresh receipt handle; expired locks make the message deliverable again.
func (q *MemoryQueue) Dequeue(_ context.Context, max int) ([]Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.nowFunc()
	out := make([]Message, 0, max)
	for _, m := range q.messages {
		if len(out) >= max {
			break
		}
		if m.invisibleUntil.After(now) {
			continue
		}
		m.receiveCount++
		m.invisibleUntil = now.Add(q.visibilityTimeout)
		m.receiptHandle = uuid.NewString()

		out = append(out, Message{
			ID:            m.id,
			Body:          m.body,
			ReceiptHandle: m.receiptHandle,
			Attributes:    m.attributes,
			ReceiveCount:  m.receiveCount,
		})
	}
	return out, nil
}

// Ack deletes the message if the receipt handle still owns it. A stale
// handle (the message was redelivered in the meantime) is a no-op, like
// SQS deleting with an expired receipt.
func (q *MemoryQueue) Ack(_ context.Context, msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, m := range q.messages {
		if m.id == msg.ID && m.receiptHandle == msg.ReceiptHandle {
			q.messages = append(q.messages[:i], q.messages[i+1:]...)
			return nil
		}
	}
	return nil
}

// DeadLetter moves the message to the dead-letter store.
func (q *MemoryQueue) DeadLetter(_ context.Context, msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, m := range q.messages {
		if m.id == msg.ID {
			q.messages = append(q.messages[:i], q.messages[i+1:]...)
			break
		}
	}
	q.dead = append(q.dead, msg)
	return nil
}

// Len reports how many messages remain in the main queue, visible or not.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// DeadLetters returns a copy of the dead-letter store.
func (q *MemoryQueue) DeadLetters() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Message, len(q.dead))
	copy(out, q.dead)
	return out
}
