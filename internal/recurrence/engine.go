package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidWeekday indicates a weekday name could not be parsed.
var ErrInvalidWeekday = errors.New("recurrence: invalid weekday")

// ErrInvalidClock indicates a time of day is not in 24-hour HH:MM form.
var ErrInvalidClock = errors.New("recurrence: time must be HH:MM in 24-hour format")

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// String renders the clock as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Valid reports whether the clock lies within one day.
func (c Clock) Valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

// ParseClock parses "HH:MM" in 24-hour form.
func ParseClock(value string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 || len(parts[1]) != 2 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	c := Clock{Hour: hour, Minute: minute}
	if !c.Valid() {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	return c, nil
}

// ParseWeekday parses an English weekday name, case-insensitively.
func ParseWeekday(value string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(value))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("%w: %q", ErrInvalidWeekday, value)
}

// WeekdayName renders a weekday in the lowercase form used by configuration.
func WeekdayName(d time.Weekday) string {
	return strings.ToLower(d.String())
}

// Slot is a recurring weekly moment such as Wednesday 18:00.
type Slot struct {
	Weekday time.Weekday
	Clock   Clock
}

func (s Slot) String() string {
	return WeekdayName(s.Weekday) + " " + s.Clock.String()
}

// Engine expands weekly slots in a fixed location.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that interprets slots in loc. If loc is nil,
// UTC is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc}
}

// Location returns the engine's zone.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return time.UTC
	}
	return e.location
}

// Next returns the first occurrence of slot strictly after the given instant.
func (e *Engine) Next(slot Slot, after time.Time) time.Time {
	local := after.In(e.Location())
	days := (int(slot.Weekday) - int(local.Weekday()) + 7) % 7
	candidate := e.at(local, days, slot.Clock)
	if !candidate.After(after) {
		candidate = e.at(local, days+7, slot.Clock)
	}
	return candidate
}

// Previous returns the latest occurrence of slot at or before the given instant.
func (e *Engine) Previous(slot Slot, atOrBefore time.Time) time.Time {
	local := atOrBefore.In(e.Location())
	days := (int(local.Weekday()) - int(slot.Weekday) + 7) % 7
	candidate := e.at(local, -days, slot.Clock)
	if candidate.After(atOrBefore) {
		candidate = e.at(local, -days-7, slot.Clock)
	}
	return candidate
}

func (e *Engine) at(base time.Time, dayOffset int, clock Clock) time.Time {
	y, m, d := base.Date()
	return time.Date(y, m, d+dayOffset, clock.Hour, clock.Minute, 0, 0, e.Location())
}
