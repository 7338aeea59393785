package workflow

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-order-pipeline/internal/orders"
)

// PaymentResult is the outcome of a charge attempt. Approved=false is a
// business decline, not an error.
type PaymentResult struct {
	TransactionID string
	Approved      bool
}

// PaymentGateway charges an order. Implementations must be safe for use
// by concurrent executions.
type PaymentGateway interface {
	Charge(ctx context.Context, o orders.Order) (PaymentResult, error)
}

// SimulatedGateway approves a configurable fraction of charges after an
// artificial delay. It stands in for a real payment provider.
type SimulatedGateway struct {
	successRate float64
	latency     time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSimulatedGateway(successRate float64, latency time.Duration) *SimulatedGateway {
	return &SimulatedGateway{
		successRate: successRate,
		latency:     latency,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *SimulatedGateway) Charge(ctx context.Context, _ orders.Order) (PaymentResult, error) {
	if g.latency > 0 {
		select {
		case <-time.After(g.latency):
		case <-ctx.Done():
			return PaymentResult{}, ctx.Err()
		}
	}

	g.mu.Lock()
	roll := g.rnd.Float64()
	g.mu.Unlock()

	return PaymentResult{
		TransactionID: "txn-" + uuid.NewString(),
		Approved:      roll < g.successRate,
	}, nil
}
