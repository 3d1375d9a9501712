// Package calendar decides whether an instant is a valid trading decision
// point and computes the neighbouring session boundaries. It holds no mutable
// state; the only clock read is Resolver.Now.
package calendar

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// ErrInvalidWindow reports a malformed session window, label or instant.
var ErrInvalidWindow = errors.New("invalid trading window")

const (
	DefaultTimezone   = "America/New_York"
	DefaultOpen       = "09:30"
	DefaultClose      = "16:00"
	DefaultSearchDays = 10
)

// DefaultDecisionHours are the completed hours after the 09:30 open.
var DefaultDecisionHours = []int{10, 11, 12, 13, 14, 15, 16}

type Config struct {
	Timezone      string
	MarketOpen    string // HH:MM
	MarketClose   string // HH:MM
	DecisionHours []int
	Holidays      []string // YYYY-MM-DD
	SearchDays    int
	Now           func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Timezone:      DefaultTimezone,
		MarketOpen:    DefaultOpen,
		MarketClose:   DefaultClose,
		DecisionHours: append([]int(nil), DefaultDecisionHours...),
		Holidays:      append([]string(nil), USMarketHolidays...),
		SearchDays:    DefaultSearchDays,
	}
}

type Resolver struct {
	loc        *time.Location
	open       time.Duration
	close      time.Duration
	hours      []int
	holidays   map[string]struct{}
	searchDays int
	now        func() time.Time
}

// New validates cfg. Empty fields take the defaults of DefaultConfig, except
// Holidays: an empty list means no holidays.
func New(cfg Config) (*Resolver, error) {
	def := DefaultConfig()
	if cfg.Timezone == "" {
		cfg.Timezone = def.Timezone
	}
	if cfg.MarketOpen == "" {
		cfg.MarketOpen = def.MarketOpen
	}
	if cfg.MarketClose == "" {
		cfg.MarketClose = def.MarketClose
	}
	if len(cfg.DecisionHours) == 0 {
		cfg.DecisionHours = def.DecisionHours
	}
	if cfg.SearchDays <= 0 {
		cfg.SearchDays = def.SearchDays
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidWindow, cfg.Timezone, err)
	}
	open, err := parseClock(cfg.MarketOpen)
	if err != nil {
		return nil, err
	}
	closeAt, err := parseClock(cfg.MarketClose)
	if err != nil {
		return nil, err
	}
	if closeAt <= open {
		return nil, fmt.Errorf("%w: close %s is not after open %s", ErrInvalidWindow, cfg.MarketClose, cfg.MarketOpen)
	}

	hours := append([]int(nil), cfg.DecisionHours...)
	sort.Ints(hours)
	for i, h := range hours {
		top := time.Duration(h) * time.Hour
		if top < open || top > closeAt {
			return nil, fmt.Errorf("%w: decision hour %d outside session %s-%s", ErrInvalidWindow, h, cfg.MarketOpen, cfg.MarketClose)
		}
		if i > 0 && hours[i-1] == h {
			return nil, fmt.Errorf("%w: duplicate decision hour %d", ErrInvalidWindow, h)
		}
	}

	holidays := make(map[string]struct{}, len(cfg.Holidays))
	for _, d := range cfg.Holidays {
		if _, err := time.Parse(DateLayout, d); err != nil {
			return nil, fmt.Errorf("%w: holiday %q", ErrInvalidWindow, d)
		}
		holidays[d] = struct{}{}
	}

	return &Resolver{
		loc:        loc,
		open:       open,
		close:      closeAt,
		hours:      hours,
		holidays:   holidays,
		searchDays: cfg.SearchDays,
		now:        cfg.Now,
	}, nil
}

// MustDefault returns the US equities resolver and panics on error.
func MustDefault() *Resolver {
	r, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return r
}

func parseClock(s string) (time.Duration, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: clock %q", ErrInvalidWindow, s)
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: clock %q", ErrInvalidWindow, s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

func (r *Resolver) Location() *time.Location { return r.loc }

func (r *Resolver) DecisionHours() []int { return append([]int(nil), r.hours...) }

// Now is the current instant in the resolver's zone.
func (r *Resolver) Now() time.Time { return r.now().In(r.loc) }

func (r *Resolver) timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

func (r *Resolver) IsHoliday(t time.Time) bool {
	_, ok := r.holidays[FormatDate(t.In(r.loc))]
	return ok
}

func (r *Resolver) IsTradingDay(t time.Time) bool {
	t = t.In(r.loc)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !r.IsHoliday(t)
}

// IsInSession is inclusive at both ends of the session.
func (r *Resolver) IsInSession(t time.Time) bool {
	t = t.In(r.loc)
	if !r.IsTradingDay(t) {
		return false
	}
	tod := r.timeOfDay(t)
	return r.open <= tod && tod <= r.close
}

func (r *Resolver) isDecisionHour(h int) bool {
	for _, dh := range r.hours {
		if dh == h {
			return true
		}
	}
	return false
}

// CurrentPeriodLabel returns the hour bucket t belongs to, or false when t is
// outside the session or in an hour without a completed bar.
func (r *Resolver) CurrentPeriodLabel(t time.Time) (string, bool) {
	t = t.In(r.loc)
	if !r.IsInSession(t) {
		return "", false
	}
	if !r.isDecisionHour(t.Hour()) {
		return "", false
	}
	return FormatDate(t) + fmt.Sprintf(" %02d:00:00", t.Hour()), true
}

// NextDecisionInstant returns the first decision hour strictly after t. The
// search is bounded; past the bound it answers t plus one week.
func (r *Resolver) NextDecisionInstant(t time.Time) (time.Time, string) {
	t = t.In(r.loc)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, r.loc)
	for i := 0; i <= r.searchDays; i++ {
		d := day.AddDate(0, 0, i)
		if !r.IsTradingDay(d) {
			continue
		}
		for _, h := range r.hours {
			c := time.Date(d.Year(), d.Month(), d.Day(), h, 0, 0, 0, r.loc)
			if c.After(t) {
				return c, FormatHourLabel(c)
			}
		}
	}
	fallback := t.AddDate(0, 0, 7)
	return fallback, FormatHourLabel(fallback)
}

// SessionClose is the closing instant of t's date in the resolver's zone.
func (r *Resolver) SessionClose(t time.Time) time.Time {
	t = t.In(r.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, r.loc).Add(r.close)
}

// DecisionHoursFor lists the hour labels of t's date, or nil on a closed day.
func (r *Resolver) DecisionHoursFor(t time.Time) []string {
	t = t.In(r.loc)
	if !r.IsTradingDay(t) {
		return nil
	}
	date := FormatDate(t)
	out := make([]string, 0, len(r.hours))
	for _, h := range r.hours {
		out = append(out, fmt.Sprintf("%s %02d:00:00", date, h))
	}
	return out
}

// SecondsUntilNextHour is the wait from t to the next top of the hour.
func (r *Resolver) SecondsUntilNextHour(t time.Time) time.Duration {
	t = t.In(r.loc)
	next := t.Truncate(time.Hour).Add(time.Hour)
	return next.Sub(t)
}

func (r *Resolver) Format(t time.Time) string {
	return t.In(r.loc).Format("2006-01-02 15:04:05") + " ET"
}

// DateOf interprets a label's date part in the resolver's zone.
func (r *Resolver) DateOf(label string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, LabelDate(label), r.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: label %q", ErrInvalidWindow, label)
	}
	return t, nil
}

// PreviousWeekday steps back one calendar day, then over Saturday/Sunday.
// Holidays are not skipped.
func PreviousWeekday(date string) (string, error) {
	t, err := time.Parse(DateLayout, LabelDate(date))
	if err != nil {
		return "", fmt.Errorf("%w: date %q", ErrInvalidWindow, date)
	}
	t = t.AddDate(0, 0, -1)
	for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		t = t.AddDate(0, 0, -1)
	}
	return FormatDate(t), nil
}

// PrecedingLabel returns the decision hour before label: an earlier hour on
// the same day, else the last hour of the closest previous trading day.
func (r *Resolver) PrecedingLabel(label string) (string, error) {
	if !IsHourLabel(label) {
		return PreviousWeekday(label)
	}
	lt, err := ParseLabel(label)
	if err != nil {
		return "", err
	}
	day := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, r.loc)
	if r.IsTradingDay(day) {
		for i := len(r.hours) - 1; i >= 0; i-- {
			if r.hours[i] < lt.Hour() {
				return fmt.Sprintf("%s %02d:00:00", FormatDate(day), r.hours[i]), nil
			}
		}
	}
	last := r.hours[len(r.hours)-1]
	for i := 1; i <= r.searchDays; i++ {
		d := day.AddDate(0, 0, -i)
		if r.IsTradingDay(d) {
			return fmt.Sprintf("%s %02d:00:00", FormatDate(d), last), nil
		}
	}
	prev, err := PreviousWeekday(FormatDate(day))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %02d:00:00", prev, last), nil
}
