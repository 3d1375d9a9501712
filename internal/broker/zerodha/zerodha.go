package zerodha

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"live-trader/internal/interfaces"
	"live-trader/internal/logger"
	"live-trader/internal/types"
)

const (
	Source = "zerodha"

	varietyRegular  = "regular"
	orderTypeMarket = "MARKET"
	validityDay     = "DAY"

	statusComplete  = "COMPLETE"
	statusRejected  = "REJECTED"
	statusCancelled = "CANCELLED"
)

type Params struct {
	APIKey       string
	AccessToken  string
	Exchange     string // NSE, BSE
	Product      string // CNC, MIS
	Tag          string
	PollAttempts int
	PollInterval time.Duration
}

// kiteClient is the part of the Kite Connect client the broker uses.
type kiteClient interface {
	PlaceOrder(variety string, orderParams kiteconnect.OrderParams) (kiteconnect.OrderResponse, error)
	GetOrderHistory(orderID string) ([]kiteconnect.Order, error)
	GetPositions() (kiteconnect.Positions, error)
	GetUserMargins() (kiteconnect.AllMargins, error)
}

type Zerodha struct {
	p  Params
	kc kiteClient
}

var _ interfaces.Broker = (*Zerodha)(nil)

// NewZerodha returns a live broker. Credentials are required.
func NewZerodha(p Params) (*Zerodha, error) {
	if p.APIKey == "" || p.AccessToken == "" {
		return nil, errors.New("missing API key/access token")
	}
	kc := kiteconnect.New(p.APIKey)
	kc.SetAccessToken(p.AccessToken)
	return newWithClient(p, kc), nil
}

func newWithClient(p Params, kc kiteClient) *Zerodha {
	if p.Exchange == "" {
		p.Exchange = "NSE"
	}
	if p.Product == "" {
		p.Product = "CNC"
	}
	if p.PollAttempts <= 0 {
		p.PollAttempts = 5
	}
	if p.PollInterval <= 0 {
		p.PollInterval = time.Second
	}
	return &Zerodha{p: p, kc: kc}
}

func (z *Zerodha) Name() string { return Source }

// SubmitOrder places a market order and polls its history until it completes,
// is rejected, or the poll budget runs out (pending).
func (z *Zerodha) SubmitOrder(ctx context.Context, symbol string, side types.Side, qty float64) (types.OrderResult, error) {
	if qty <= 0 || qty != math.Trunc(qty) {
		return types.OrderResult{Status: types.OrderRejected, Message: "quantity must be a positive whole number"}, nil
	}

	params := kiteconnect.OrderParams{
		Exchange:        z.p.Exchange,
		Tradingsymbol:   symbol,
		TransactionType: strings.ToUpper(string(side)),
		Quantity:        int(qty),
		Product:         z.p.Product,
		OrderType:       orderTypeMarket,
		Validity:        validityDay,
		Tag:             z.p.Tag,
	}
	resp, err := z.kc.PlaceOrder(varietyRegular, params)
	if err != nil {
		return types.OrderResult{}, fmt.Errorf("kite place order %s: %w", symbol, err)
	}
	logger.Info(ctx, "Live order placed", "symbol", symbol, "side", side, "qty", qty, "order_id", resp.OrderID)

	for attempt := 0; attempt < z.p.PollAttempts; attempt++ {
		history, err := z.kc.GetOrderHistory(resp.OrderID)
		if err != nil {
			logger.Warn(ctx, "Order history lookup failed", "order_id", resp.OrderID, "error", err)
		} else if len(history) > 0 {
			last := history[len(history)-1]
			switch strings.ToUpper(last.Status) {
			case statusComplete:
				return types.OrderResult{
					OrderID:   resp.OrderID,
					Status:    types.OrderFilled,
					FillPrice: float64(last.AveragePrice),
				}, nil
			case statusRejected, statusCancelled:
				return types.OrderResult{
					OrderID: resp.OrderID,
					Status:  types.OrderRejected,
					Message: last.StatusMessage,
				}, nil
			}
		}
		select {
		case <-ctx.Done():
			return types.OrderResult{OrderID: resp.OrderID, Status: types.OrderPending}, ctx.Err()
		case <-time.After(z.p.PollInterval):
		}
	}
	return types.OrderResult{OrderID: resp.OrderID, Status: types.OrderPending, Message: "not filled yet"}, nil
}

// GetPositions returns net positions plus available equity cash.
func (z *Zerodha) GetPositions(ctx context.Context) (types.Positions, error) {
	pos, err := z.kc.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("kite positions: %w", err)
	}
	out := types.Positions{}
	for _, p := range pos.Net {
		if q := float64(p.Quantity); q != 0 {
			out[p.Tradingsymbol] += q
		}
	}
	margins, err := z.kc.GetUserMargins()
	if err != nil {
		return nil, fmt.Errorf("kite margins: %w", err)
	}
	out[types.CashKey] = float64(margins.Equity.Net)
	logger.Debug(ctx, "Fetched broker positions", "count", len(out))
	return out, nil
}
