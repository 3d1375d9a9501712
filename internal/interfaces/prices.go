package interfaces

import "context"

// PriceSource looks up the decision price of symbol for a period label.
type PriceSource interface {
	Price(label, symbol string) (float64, bool)
}

// PriceRefresher is implemented by price sources that can pick up new bars
// while running.
type PriceRefresher interface {
	Refresh(ctx context.Context) (bool, error)
}
