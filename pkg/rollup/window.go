package rollup

import (
	"fmt"
	"time"
)

// Window is a half-open aggregation interval [Start, End). The aggregator
// carries no clock state; every job is a pure function of its window.
type Window struct {
	Start time.Time
	End   time.Time
}

// HourWindow returns the hour window containing t.
func HourWindow(t time.Time) Window {
	start := t.UTC().Truncate(time.Hour)
	return Window{Start: start, End: start.Add(time.Hour)}
}

// DayWindow returns the UTC day window containing t.
func DayWindow(t time.Time) Window {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.Add(24 * time.Hour)}
}

// PreviousHour returns the last complete hour window before t.
func PreviousHour(t time.Time) Window {
	return HourWindow(t.UTC().Add(-time.Hour))
}

// PreviousDay returns the last complete UTC day window before t.
func PreviousDay(t time.Time) Window {
	return DayWindow(t.UTC().Add(-24 * time.Hour))
}

// Minutes returns the window length in minutes, the uptime denominator.
func (w Window) Minutes() float64 {
	return w.End.Sub(w.Start).Minutes()
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}
