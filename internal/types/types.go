package types

import (
	"sort"
	"time"
)

// CashKey is the reserved Positions entry holding uninvested currency.
const CashKey = "CASH"

type ActionKind string

const (
	ActionInit    ActionKind = "init"
	ActionBuy     ActionKind = "buy"
	ActionSell    ActionKind = "sell"
	ActionNoTrade ActionKind = "no_trade"
	ActionSync    ActionKind = "sync"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Action describes what produced a ledger snapshot. It is stored under
// "this_action" in the ledger file.
type Action struct {
	Kind   ActionKind `json:"action"`
	Symbol string     `json:"symbol"`
	Amount float64    `json:"amount"`
	Price  float64    `json:"price,omitempty"`
	Source string     `json:"source,omitempty"`
}

func InitAction(cash float64) Action {
	return Action{Kind: ActionInit, Symbol: CashKey, Amount: cash}
}

func TradeAction(side Side, symbol string, qty, price float64, source string) Action {
	kind := ActionBuy
	if side == SideSell {
		kind = ActionSell
	}
	return Action{Kind: kind, Symbol: symbol, Amount: qty, Price: price, Source: source}
}

func NoTradeAction() Action {
	return Action{Kind: ActionNoTrade}
}

func SyncAction(source string) Action {
	return Action{Kind: ActionSync, Source: source}
}

func (a Action) IsTrade() bool {
	return a.Kind == ActionBuy || a.Kind == ActionSell
}

// Positions maps asset identifier to quantity held, plus CashKey.
type Positions map[string]float64

func (p Positions) Cash() float64 { return p[CashKey] }

func (p Positions) Clone() Positions {
	out := make(Positions, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Symbols returns the non-cash keys in sorted order.
func (p Positions) Symbols() []string {
	out := make([]string, 0, len(p))
	for k := range p {
		if k == CashKey {
			continue
		}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// HasHoldings reports whether any non-cash entry is positive.
func (p Positions) HasHoldings() bool {
	for k, v := range p {
		if k != CashKey && v > 0 {
			return true
		}
	}
	return false
}

// Equity is cash plus the market value of every priced holding. Unpriced
// holdings are left out.
func (p Positions) Equity(price func(symbol string) (float64, bool)) float64 {
	total := p.Cash()
	for k, v := range p {
		if k == CashKey || v == 0 {
			continue
		}
		if px, ok := price(k); ok {
			total += v * px
		}
	}
	return total
}

type PositionSnapshot struct {
	Date      string    `json:"date"`
	ID        int64     `json:"id"`
	Action    Action    `json:"this_action"`
	Positions Positions `json:"positions"`
}

type DecisionInput struct {
	Identity string             `json:"identity"`
	Label    string             `json:"label"`
	Holdings Positions          `json:"holdings"`
	Prices   map[string]float64 `json:"prices"`
}

type Decision struct {
	Action     string  `json:"action"`
	Symbol     string  `json:"symbol,omitempty"`
	Qty        float64 `json:"qty,omitempty"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

const (
	DecisionBuy  = "BUY"
	DecisionSell = "SELL"
	DecisionHold = "HOLD"
)

type OrderStatus string

const (
	OrderFilled   OrderStatus = "filled"
	OrderPending  OrderStatus = "pending"
	OrderRejected OrderStatus = "rejected"
)

type OrderResult struct {
	OrderID   string      `json:"order_id"`
	Status    OrderStatus `json:"status"`
	FillPrice float64     `json:"fill_price,omitempty"`
	Message   string      `json:"message,omitempty"`
}

type CycleOutcome string

const (
	OutcomeTraded  CycleOutcome = "traded"
	OutcomeNoTrade CycleOutcome = "no_trade"
	OutcomeSkipped CycleOutcome = "skipped"
	OutcomeFailed  CycleOutcome = "failed"
	OutcomeSynced  CycleOutcome = "synced"
)

// Reasons a cycle is skipped without touching the ledger.
const (
	SkipNonTradingDay   = "non_trading_day"
	SkipOutsideSession  = "outside_session"
	SkipNoValidLabel    = "no_valid_label"
	SkipAlreadyDone     = "already_processed"
	SkipCycleInProgress = "cycle_in_progress"
)

type CycleResult struct {
	CycleID   string        `json:"cycle_id"`
	Identity  string        `json:"identity"`
	Label     string        `json:"label,omitempty"`
	Outcome   CycleOutcome  `json:"outcome"`
	Reason    string        `json:"reason,omitempty"`
	RecordID  int64         `json:"record_id"`
	Decision  *Decision     `json:"decision,omitempty"`
	Order     *OrderResult  `json:"order,omitempty"`
	Positions Positions     `json:"positions,omitempty"`
	Equity    float64       `json:"equity,omitempty"`
	Duration  time.Duration `json:"duration"`
}
