package calendar

import (
	"fmt"
	"time"
)

const (
	DateLayout      = "2006-01-02"
	HourLabelLayout = "2006-01-02 15:00:00"
	labelLayout     = "2006-01-02 15:04:05"
)

// ParseLabel accepts a daily label ("2024-03-01") or an hour-bucket label
// ("2024-03-01 10:00:00") and returns it as a wall-clock time in UTC. The
// result is only meant for chronological comparison between labels.
func ParseLabel(label string) (time.Time, error) {
	switch len(label) {
	case len(DateLayout):
		t, err := time.Parse(DateLayout, label)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: label %q: %v", ErrInvalidWindow, label, err)
		}
		return t, nil
	case len(labelLayout):
		t, err := time.Parse(labelLayout, label)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: label %q: %v", ErrInvalidWindow, label, err)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: label %q", ErrInvalidWindow, label)
}

// IsHourLabel reports whether label has the hour-bucket shape.
func IsHourLabel(label string) bool {
	return len(label) == len(labelLayout)
}

// LabelDate returns the date part of any label.
func LabelDate(label string) string {
	if len(label) < len(DateLayout) {
		return label
	}
	return label[:len(DateLayout)]
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func FormatHourLabel(t time.Time) string {
	return t.Format(HourLabelLayout)
}

// CompareLabels orders two labels chronologically. Unparseable labels fall
// back to string order.
func CompareLabels(a, b string) int {
	ta, errA := ParseLabel(a)
	tb, errB := ParseLabel(b)
	if errA != nil || errB != nil {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	}
	return ta.Compare(tb)
}
