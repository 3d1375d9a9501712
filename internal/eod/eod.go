package eod

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"live-trader/internal/calendar"
	"live-trader/internal/interfaces"
	"live-trader/internal/types"
)

var headers = []string{"symbol", "buy_qty", "buy_avg", "sell_qty", "sell_avg", "realized_pnl", "gross_buy_value", "gross_sell_value"}

type eodSummarizer struct {
	ledger   interfaces.Ledger
	resolver *calendar.Resolver
	dir      string
}

// SummarizeDay aggregates the identity's trade records dated on date into a
// CSV and returns its path. A day without trades writes nothing and returns
// an empty path.
func (s *eodSummarizer) SummarizeDay(ctx context.Context, identity, date string) (string, error) {
	if _, err := calendar.ParseLabel(date); err != nil {
		return "", err
	}
	date = calendar.LabelDate(date)

	records, err := s.ledger.Records(ctx, identity)
	if err != nil {
		return "", fmt.Errorf("eod %s %s: %w", identity, date, err)
	}

	aggs := map[string]*aggRow{}
	for _, r := range records {
		if !r.Action.IsTrade() || calendar.LabelDate(r.Date) != date {
			continue
		}
		row := aggs[r.Action.Symbol]
		if row == nil {
			row = &aggRow{Symbol: r.Action.Symbol}
			aggs[r.Action.Symbol] = row
		}
		qty := decimal.NewFromFloat(r.Action.Amount)
		value := qty.Mul(decimal.NewFromFloat(r.Action.Price))
		switch r.Action.Kind {
		case types.ActionBuy:
			row.BuyQty = row.BuyQty.Add(qty)
			row.BuyValue = row.BuyValue.Add(value)
		case types.ActionSell:
			row.SellQty = row.SellQty.Add(qty)
			row.SellValue = row.SellValue.Add(value)
		}
	}
	if len(aggs) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outPath := csvPath(s.dir, identity, date)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write(headers); err != nil {
		return "", err
	}
	var totalBuy, totalSell, totalPnL decimal.Decimal
	for _, k := range keys {
		r := aggs[k]
		pnl := r.realizedPnL()
		rec := []string{
			r.Symbol,
			r.BuyQty.String(),
			r.buyAvg().StringFixed(4),
			r.SellQty.String(),
			r.sellAvg().StringFixed(4),
			pnl.StringFixed(2),
			r.BuyValue.StringFixed(2),
			r.SellValue.StringFixed(2),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
		totalBuy = totalBuy.Add(r.BuyValue)
		totalSell = totalSell.Add(r.SellValue)
		totalPnL = totalPnL.Add(pnl)
	}
	if err := w.Write([]string{"TOTAL", "", "", "", "", totalPnL.StringFixed(2), totalBuy.StringFixed(2), totalSell.StringFixed(2)}); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return outPath, nil
}

// ShouldRunNow reports whether now is a trading day at or past its last
// decision hour.
func (s *eodSummarizer) ShouldRunNow(now time.Time) bool {
	if !s.resolver.IsTradingDay(now) {
		return false
	}
	return !now.Before(lastDecision(s.resolver, now))
}
