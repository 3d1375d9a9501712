// Package paper is the DRY_RUN broker. Orders fill immediately at the decision
// price of the order's period; nothing leaves the process.
package paper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"live-trader/internal/broker"
	"live-trader/internal/interfaces"
	"live-trader/internal/logger"
	"live-trader/internal/types"
)

const Source = "paper"

var ErrNoPeriod = errors.New("paper broker: order has no period")

type Broker struct {
	prices interfaces.PriceSource

	mu   sync.Mutex
	book types.Positions
	seq  atomic.Int64
}

var _ interfaces.Broker = (*Broker)(nil)

// New returns a broker pricing fills from prices with an empty book.
func New(prices interfaces.PriceSource) *Broker {
	return &Broker{prices: prices, book: types.Positions{}}
}

func (b *Broker) Name() string { return Source }

// Seed replaces the simulated book, typically with the ledger's latest
// positions at start-up.
func (b *Broker) Seed(p types.Positions) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.book = p.Clone()
}

func (b *Broker) SubmitOrder(ctx context.Context, symbol string, side types.Side, qty float64) (types.OrderResult, error) {
	label, ok := broker.PeriodFrom(ctx)
	if !ok {
		return types.OrderResult{}, ErrNoPeriod
	}
	orderID := fmt.Sprintf("SIM-%d", b.seq.Add(1))
	if qty <= 0 {
		return types.OrderResult{OrderID: orderID, Status: types.OrderRejected, Message: "quantity must be positive"}, nil
	}
	price, ok := b.prices.Price(label, symbol)
	if !ok {
		logger.Warn(ctx, "Simulated order rejected, no price", "symbol", symbol, "period", label)
		return types.OrderResult{OrderID: orderID, Status: types.OrderRejected, Message: "no price for period"}, nil
	}

	b.mu.Lock()
	switch side {
	case types.SideBuy:
		b.book[symbol] += qty
		b.book[types.CashKey] -= qty * price
	case types.SideSell:
		b.book[symbol] -= qty
		b.book[types.CashKey] += qty * price
	}
	b.mu.Unlock()

	logger.Info(ctx, "Simulated order filled",
		"symbol", symbol,
		"side", side,
		"qty", qty,
		"price", price,
		"order_id", orderID,
	)
	return types.OrderResult{OrderID: orderID, Status: types.OrderFilled, FillPrice: price, Message: "dry-run"}, nil
}

func (b *Broker) GetPositions(ctx context.Context) (types.Positions, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.book.Clone(), nil
}
