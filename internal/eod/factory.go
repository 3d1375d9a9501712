package eod

import (
	"live-trader/internal/calendar"
	"live-trader/internal/interfaces"
)

func NewSummarizer(l interfaces.Ledger, r *calendar.Resolver, dir string) interfaces.EodSummarizer {
	if dir == "" {
		dir = "logs/eod"
	}
	return &eodSummarizer{ledger: l, resolver: r, dir: dir}
}
