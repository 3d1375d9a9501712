package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"live-trader/internal/logger"
	"live-trader/internal/types"
)

// riskManager checks an order against the ledger positions it would change.
type riskManager struct {
	maxPositionPct float64
}

func newRiskManager(maxPositionPct float64) *riskManager {
	return &riskManager{maxPositionPct: maxPositionPct}
}

// validateTrade returns "" when the order may go to the broker, or the
// no-trade reason.
func (rm *riskManager) validateTrade(ctx context.Context, current types.Positions, side types.Side, symbol string, qty, price float64, prices map[string]float64) string {
	notional := decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(price))

	switch side {
	case types.SideBuy:
		cash := decimal.NewFromFloat(current.Cash())
		if notional.GreaterThan(cash) {
			logger.Warn(ctx, "Trade blocked, insufficient cash",
				"event", "TRADE_BLOCKED_CASH",
				"symbol", symbol,
				"qty", qty,
				"price", price,
				"cash", current.Cash(),
			)
			return "insufficient_cash"
		}
		if rm.maxPositionPct > 0 {
			eq := decimal.NewFromFloat(equity(current, prices))
			after := decimal.NewFromFloat(current[symbol]).Add(decimal.NewFromFloat(qty)).Mul(decimal.NewFromFloat(price))
			limit := eq.Mul(decimal.NewFromFloat(rm.maxPositionPct)).Div(decimal.NewFromInt(100))
			if eq.IsPositive() && after.GreaterThan(limit) {
				logger.Warn(ctx, "Trade blocked by risk cap",
					"event", "TRADE_BLOCKED_RISK_CAP",
					"symbol", symbol,
					"exposure", after.InexactFloat64(),
					"risk_limit_pct", rm.maxPositionPct,
					"equity", eq.InexactFloat64(),
				)
				return "risk_cap"
			}
		}
	case types.SideSell:
		if qty > current[symbol] {
			logger.Warn(ctx, "Trade blocked, insufficient shares",
				"event", "TRADE_BLOCKED_SHARES",
				"symbol", symbol,
				"qty", qty,
				"held", current[symbol],
			)
			return "insufficient_shares"
		}
	}
	return ""
}
