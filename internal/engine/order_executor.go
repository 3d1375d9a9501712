package engine

import (
	"context"

	"live-trader/internal/interfaces"
	"live-trader/internal/tradelog"
	"live-trader/internal/types"
)

// orderExecutor places orders and writes the cycle log.
type orderExecutor struct {
	log *tradelog.Log
}

func newOrderExecutor(log *tradelog.Log) *orderExecutor {
	return &orderExecutor{log: log}
}

// submit places the order. Order logging happens in the broker middleware.
func (oe *orderExecutor) submit(ctx context.Context, b interfaces.Broker, symbol string, side types.Side, qty float64) (types.OrderResult, error) {
	return b.SubmitOrder(ctx, symbol, side, qty)
}

func (oe *orderExecutor) logDecision(cycleID string, in types.DecisionInput, d types.Decision) {
	if oe.log == nil {
		return
	}
	_ = oe.log.AppendDecision(tradelog.DecisionEntry{
		CycleID:    cycleID,
		Identity:   in.Identity,
		Label:      in.Label,
		Action:     d.Action,
		Symbol:     d.Symbol,
		Qty:        d.Qty,
		Reason:     d.Reason,
		Confidence: d.Confidence,
		Holdings:   in.Holdings,
		Prices:     in.Prices,
	})
}

func (oe *orderExecutor) logCycle(res *types.CycleResult) {
	if oe.log == nil {
		return
	}
	e := tradelog.Entry{
		CycleID:  res.CycleID,
		Identity: res.Identity,
		Label:    res.Label,
		Outcome:  string(res.Outcome),
		Reason:   res.Reason,
		RecordID: res.RecordID,
	}
	if d := res.Decision; d != nil {
		e.Symbol = d.Symbol
		e.Side = d.Action
		e.Qty = d.Qty
	}
	if o := res.Order; o != nil {
		e.OrderID = o.OrderID
		e.OrderStatus = string(o.Status)
		e.Price = o.FillPrice
	}
	_ = oe.log.Append(e)
}
