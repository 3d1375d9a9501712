package paper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-trader/internal/broker"
	"live-trader/internal/prices"
	"live-trader/internal/types"
)

func TestSubmitOrderFillsAtPeriodPrice(t *testing.T) {
	px := prices.Static{}
	px.Set("2025-03-03 10:00:00", "AAPL", 200)
	b := New(px)
	b.Seed(types.Positions{types.CashKey: 1000})

	ctx := broker.WithPeriod(context.Background(), "2025-03-03 10:00:00")
	res, err := b.SubmitOrder(ctx, "AAPL", types.SideBuy, 3)
	require.NoError(t, err)
	assert.Equal(t, types.OrderFilled, res.Status)
	assert.Equal(t, 200.0, res.FillPrice)
	assert.NotEmpty(t, res.OrderID)

	res, err = b.SubmitOrder(ctx, "AAPL", types.SideSell, 1)
	require.NoError(t, err)
	assert.Equal(t, types.OrderFilled, res.Status)

	pos, err := b.GetPositions(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Positions{types.CashKey: 600, "AAPL": 2}, pos)
}

func TestSubmitOrderRejections(t *testing.T) {
	b := New(prices.Static{})

	_, err := b.SubmitOrder(context.Background(), "AAPL", types.SideBuy, 1)
	assert.ErrorIs(t, err, ErrNoPeriod)

	ctx := broker.WithPeriod(context.Background(), "2025-03-03")
	res, err := b.SubmitOrder(ctx, "AAPL", types.SideBuy, 1)
	require.NoError(t, err)
	assert.Equal(t, types.OrderRejected, res.Status)

	res, err = b.SubmitOrder(ctx, "AAPL", types.SideBuy, 0)
	require.NoError(t, err)
	assert.Equal(t, types.OrderRejected, res.Status)
}
