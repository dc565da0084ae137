// Package window resolves the daily acquisition window and the ledger day key.
package window

import (
	"fmt"
	"time"
)

// The business day closes at 14:59:59 and the next one opens at 15:00:00.
const (
	closeHour   = 14
	closeMinute = 59
	closeSecond = 59
	openHour    = 15

	dayKeyLayout = "060102"
)

// Window is an acquisition range, inclusive on both ends.
type Window struct {
	Start time.Time
	End   time.Time
}

// Resolve returns the window for the calendar day of now in loc:
// 15:00:00 of the previous day through 14:59:59 of the same day.
// The window depends only on now's date, never on its clock time.
func Resolve(now time.Time, loc *time.Location) Window {
	now = now.In(loc)
	end := time.Date(now.Year(), now.Month(), now.Day(), closeHour, closeMinute, closeSecond, 0, loc)
	prev := end.Add(-24 * time.Hour)
	start := time.Date(prev.Year(), prev.Month(), prev.Day(), openHour, 0, 0, 0, loc)
	return Window{Start: start, End: end}
}

// Contains reports whether t falls inside [Start, End].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// DayKey names the destination sheet for now's date in loc, e.g. "250820".
func DayKey(now time.Time, loc *time.Location) string {
	return now.In(loc).Format(dayKeyLayout)
}
