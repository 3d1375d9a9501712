package eod

import "github.com/shopspring/decimal"

// aggRow is the day's trading in one symbol.
type aggRow struct {
	Symbol    string
	BuyQty    decimal.Decimal
	BuyValue  decimal.Decimal
	SellQty   decimal.Decimal
	SellValue decimal.Decimal
}

func (r *aggRow) buyAvg() decimal.Decimal {
	if r.BuyQty.IsZero() {
		return decimal.Zero
	}
	return r.BuyValue.Div(r.BuyQty)
}

func (r *aggRow) sellAvg() decimal.Decimal {
	if r.SellQty.IsZero() {
		return decimal.Zero
	}
	return r.SellValue.Div(r.SellQty)
}

// realizedPnL prices the matched quantity at the difference of the averages.
func (r *aggRow) realizedPnL() decimal.Decimal {
	matched := decimal.Min(r.BuyQty, r.SellQty)
	return matched.Mul(r.sellAvg().Sub(r.buyAvg()))
}
