// Package clock provides the service's notion of "today" and of the morning and
// afternoon halves of a day, in the service's configured time zone.
package clock

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// Calendar answers calendar questions relative to the current instant.
type Calendar interface {
	Now() time.Time
	// CurrentDate returns today's date as YYYY-MM-DD.
	CurrentDate() string
	IsBeforeNoon() bool
	// DayWindow returns [00:00, next 00:00) of today.
	DayWindow() (time.Time, time.Time)
	// HalfDayWindow returns [00:00, 12:00) before noon and [12:00, next 00:00) after.
	HalfDayWindow() (time.Time, time.Time)
}

type LocalCalendar struct {
	loc *time.Location
	now func() time.Time
}

func NewLocalCalendar(timeZone string) (*LocalCalendar, error) {
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", timeZone, err)
	}
	return &LocalCalendar{loc: loc, now: time.Now}, nil
}

// NewFixedCalendar returns a calendar whose clock is driven by now. Used by tests
// and by the CLI to evaluate a specific instant.
func NewFixedCalendar(loc *time.Location, now func() time.Time) *LocalCalendar {
	return &LocalCalendar{loc: loc, now: now}
}

func (c *LocalCalendar) Location() *time.Location {
	return c.loc
}

func (c *LocalCalendar) Now() time.Time {
	return c.now().In(c.loc)
}

func (c *LocalCalendar) CurrentDate() string {
	return c.Now().Format(DateLayout)
}

func (c *LocalCalendar) IsBeforeNoon() bool {
	return c.Now().Hour() < 12
}

func (c *LocalCalendar) DayWindow() (time.Time, time.Time) {
	start := startOfDay(c.Now())
	return start, start.AddDate(0, 0, 1)
}

func (c *LocalCalendar) HalfDayWindow() (time.Time, time.Time) {
	start, end := c.DayWindow()
	noon := start.Add(12 * time.Hour)
	if c.IsBeforeNoon() {
		return start, noon
	}
	return noon, end
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
