package zerodha

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"live-trader/internal/types"
)

type fakeKite struct {
	placed   []kiteconnect.OrderParams
	history  []kiteconnect.Order
	placeErr error
	pos      kiteconnect.Positions
	margins  kiteconnect.AllMargins
}

func (f *fakeKite) PlaceOrder(variety string, p kiteconnect.OrderParams) (kiteconnect.OrderResponse, error) {
	if f.placeErr != nil {
		return kiteconnect.OrderResponse{}, f.placeErr
	}
	f.placed = append(f.placed, p)
	return kiteconnect.OrderResponse{OrderID: "K-1"}, nil
}

func (f *fakeKite) GetOrderHistory(string) ([]kiteconnect.Order, error) { return f.history, nil }

func (f *fakeKite) GetPositions() (kiteconnect.Positions, error) { return f.pos, nil }

func (f *fakeKite) GetUserMargins() (kiteconnect.AllMargins, error) { return f.margins, nil }

func quickParams() Params {
	return Params{Exchange: "NSE", PollAttempts: 2, PollInterval: time.Millisecond}
}

func TestSubmitOrderFilled(t *testing.T) {
	kc := &fakeKite{}
	kc.history = []kiteconnect.Order{{Status: "OPEN"}, {Status: "COMPLETE", AveragePrice: 101.5}}
	z := newWithClient(quickParams(), kc)

	res, err := z.SubmitOrder(context.Background(), "INFY", types.SideBuy, 4)
	require.NoError(t, err)
	assert.Equal(t, types.OrderFilled, res.Status)
	assert.Equal(t, 101.5, res.FillPrice)
	require.Len(t, kc.placed, 1)
	assert.Equal(t, "BUY", kc.placed[0].TransactionType)
	assert.Equal(t, 4, kc.placed[0].Quantity)
	assert.Equal(t, "CNC", kc.placed[0].Product)
}

func TestSubmitOrderRejectedAndPending(t *testing.T) {
	kc := &fakeKite{history: []kiteconnect.Order{{Status: "REJECTED", StatusMessage: "insufficient funds"}}}
	z := newWithClient(quickParams(), kc)
	res, err := z.SubmitOrder(context.Background(), "INFY", types.SideSell, 1)
	require.NoError(t, err)
	assert.Equal(t, types.OrderRejected, res.Status)
	assert.Equal(t, "insufficient funds", res.Message)

	kc.history = []kiteconnect.Order{{Status: "OPEN"}}
	res, err = z.SubmitOrder(context.Background(), "INFY", types.SideSell, 1)
	require.NoError(t, err)
	assert.Equal(t, types.OrderPending, res.Status)
}

func TestSubmitOrderValidation(t *testing.T) {
	kc := &fakeKite{}
	z := newWithClient(quickParams(), kc)

	res, err := z.SubmitOrder(context.Background(), "INFY", types.SideBuy, 1.5)
	require.NoError(t, err)
	assert.Equal(t, types.OrderRejected, res.Status)
	assert.Empty(t, kc.placed)

	kc.placeErr = errors.New("token expired")
	_, err = z.SubmitOrder(context.Background(), "INFY", types.SideBuy, 1)
	assert.ErrorContains(t, err, "token expired")
}

func TestNewZerodhaRequiresCredentials(t *testing.T) {
	_, err := NewZerodha(Params{APIKey: "k"})
	assert.Error(t, err)
}
