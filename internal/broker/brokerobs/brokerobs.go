package brokerobs

import (
	"context"

	"live-trader/internal/interfaces"
	"live-trader/internal/logger"
	"live-trader/internal/trace"
	"live-trader/internal/types"
)

// observableBroker wraps a Broker with observability (logging & tracing)
type observableBroker struct {
	broker interfaces.Broker
}

// Compile-time interface check
var _ interfaces.Broker = (*observableBroker)(nil)

// Wrap wraps a broker with observability middleware
func Wrap(broker interfaces.Broker) interfaces.Broker {
	return &observableBroker{broker: broker}
}

func (ob *observableBroker) Name() string { return ob.broker.Name() }

// SubmitOrder places an order with observability
func (ob *observableBroker) SubmitOrder(ctx context.Context, symbol string, side types.Side, qty float64) (types.OrderResult, error) {
	ctx, span := trace.StartSpan(ctx, "broker.SubmitOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Submitting order",
		"broker", ob.broker.Name(),
		"symbol", symbol,
		"side", side,
		"qty", qty,
	)

	res, err := ob.broker.SubmitOrder(ctx, symbol, side, qty)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to submit order", err,
			"broker", ob.broker.Name(),
			"symbol", symbol,
			"side", side,
			"qty", qty,
		)
		return res, err
	}

	logger.InfoSkip(ctx, 1, "Order submitted",
		"symbol", symbol,
		"order_id", res.OrderID,
		"status", res.Status,
		"fill_price", res.FillPrice,
	)
	return res, nil
}

// GetPositions fetches broker-side holdings with observability
func (ob *observableBroker) GetPositions(ctx context.Context) (types.Positions, error) {
	ctx, span := trace.StartSpan(ctx, "broker.GetPositions")
	defer span.End()

	pos, err := ob.broker.GetPositions(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch broker positions", err, "broker", ob.broker.Name())
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Broker positions fetched", "broker", ob.broker.Name(), "count", len(pos))
	return pos, nil
}
