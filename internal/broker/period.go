// Package broker holds what every broker adapter shares.
package broker

import "context"

type periodKey struct{}

// WithPeriod attaches the decision label an order is placed for. Simulated
// brokers price fills at that label.
func WithPeriod(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, periodKey{}, label)
}

// PeriodFrom returns the label set by WithPeriod.
func PeriodFrom(ctx context.Context) (string, bool) {
	label, ok := ctx.Value(periodKey{}).(string)
	return label, ok && label != ""
}
