package search

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDate is returned when a year/month/day triple is not a calendar date.
var ErrInvalidDate = errors.New("invalid calendar date")

// Window is a span of whole seconds in local civil time. Start and End are
// both part of the window.
type Window struct {
	Start time.Time
	End   time.Time
}

// DayWindow returns the window from local midnight through 23:59:59 of the
// given date in loc. The final second is included, so a day in a
// fixed-offset location spans 86,400 instants.
func DayWindow(year int, month time.Month, day int, loc *time.Location) (Window, error) {
	start := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if y, m, d := start.Date(); y != year || m != month || d != day {
		return Window{}, fmt.Errorf("%w: %04d-%02d-%02d", ErrInvalidDate, year, int(month), day)
	}
	end := time.Date(year, month, day, 23, 59, 59, 0, loc)
	return Window{Start: start, End: end}, nil
}

// Seconds returns the number of one-second instants in the window.
func (w Window) Seconds() int {
	return int(w.End.Sub(w.Start)/time.Second) + 1
}

// At returns the instant i seconds after Start.
func (w Window) At(i int) time.Time {
	return w.Start.Add(time.Duration(i) * time.Second)
}

// Index returns the whole-second offset of t from Start.
func (w Window) Index(t time.Time) int {
	return int(t.Sub(w.Start) / time.Second)
}

// Contains reports whether t lies within [Start, End].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}
