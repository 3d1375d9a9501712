package calendar

import "fmt"

// Cadence knows the label that precedes another label in a ledger.
type Cadence interface {
	Name() string
	Preceding(label string) (string, error)
}

const (
	CadenceDaily  = "daily"
	CadenceHourly = "hourly"
)

type dailyCadence struct{}

func (dailyCadence) Name() string { return CadenceDaily }

func (dailyCadence) Preceding(label string) (string, error) {
	return PreviousWeekday(label)
}

type hourlyCadence struct{ r *Resolver }

func (hourlyCadence) Name() string { return CadenceHourly }

func (c hourlyCadence) Preceding(label string) (string, error) {
	return c.r.PrecedingLabel(label)
}

// Daily steps back by weekday.
func Daily() Cadence { return dailyCadence{} }

// Hourly steps back by decision hour of r.
func (r *Resolver) Hourly() Cadence { return hourlyCadence{r: r} }

// CadenceByName maps a config value to a Cadence.
func (r *Resolver) CadenceByName(name string) (Cadence, error) {
	switch name {
	case "", CadenceHourly:
		return r.Hourly(), nil
	case CadenceDaily:
		return Daily(), nil
	}
	return nil, fmt.Errorf("unknown cadence %q", name)
}
