package scheduling

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Window is an operating window in minutes since midnight, half-open.
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether minute falls in [Start, End).
func (w Window) Contains(minute int) bool {
	return minute >= w.Start && minute < w.End
}

func (w Window) String() string {
	s, _ := ClockTime(w.Start)
	e, _ := ClockTime(w.End)
	return s + "-" + e
}

// DefaultOpenHours: weekdays 07:00-18:00, Saturday 08:00-12:00, Sunday closed.
var DefaultOpenHours = map[time.Weekday]DayHours{
	time.Sunday:    {Closed: true},
	time.Monday:    {Open: "07:00", Close: "18:00"},
	time.Tuesday:   {Open: "07:00", Close: "18:00"},
	time.Wednesday: {Open: "07:00", Close: "18:00"},
	time.Thursday:  {Open: "07:00", Close: "18:00"},
	time.Friday:    {Open: "07:00", Close: "18:00"},
	time.Saturday:  {Open: "08:00", Close: "12:00"},
}

// Calendar answers opening-hours questions for one tenant. All instants are
// converted to the tenant's location before their weekday or clock is read.
type Calendar struct {
	loc     *time.Location
	windows [7]*Window
}

// NewCalendar resolves the tenant's timezone and merges its overrides with the
// default policy.
func NewCalendar(cfg TenantConfig) (*Calendar, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, tz, err)
	}

	hours := make(map[time.Weekday]DayHours, 7)
	for d, h := range DefaultOpenHours {
		hours[d] = h
	}
	overrides, err := weekdayOverrides(cfg.OpenHours)
	if err != nil {
		return nil, err
	}
	for d, h := range overrides {
		hours[d] = h
	}

	cal := &Calendar{loc: loc}
	for d, h := range hours {
		w, open, err := h.window()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, strings.ToLower(d.String()), err)
		}
		if open {
			cal.windows[d] = &w
		}
	}
	return cal, nil
}

// Location is the tenant's timezone.
func (c *Calendar) Location() *time.Location { return c.loc }

// OperatingWindow returns the day's window, or false when the tenant is
// closed that day.
func (c *Calendar) OperatingWindow(day time.Weekday) (Window, bool) {
	w := c.windows[day]
	if w == nil {
		return Window{}, false
	}
	return *w, true
}

// IsOpenAt reports whether the instant's local time of day is inside that
// day's window.
func (c *Calendar) IsOpenAt(instant time.Time) bool {
	local := instant.In(c.loc)
	w, ok := c.OperatingWindow(local.Weekday())
	if !ok {
		return false
	}
	return w.Contains(minuteOfDay(local))
}

// Fits reports whether [start, start+d) lies inside a single day's window.
func (c *Calendar) Fits(start time.Time, d time.Duration) bool {
	local := start.In(c.loc)
	w, ok := c.OperatingWindow(local.Weekday())
	if !ok {
		return false
	}
	from := minuteOfDay(local)
	if !w.Contains(from) {
		return false
	}
	// Round partial minutes up so an appointment never ends past closing.
	span := int((d + time.Minute - 1) / time.Minute)
	if local.Second() > 0 || local.Nanosecond() > 0 {
		span++
	}
	return from+span <= w.End
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func (h DayHours) window() (Window, bool, error) {
	if h.Closed {
		return Window{}, false, nil
	}
	start, err := MinutesSinceMidnight(h.Open)
	if err != nil {
		return Window{}, false, fmt.Errorf("open: %w", err)
	}
	end, err := MinutesSinceMidnight(h.Close)
	if err != nil {
		return Window{}, false, fmt.Errorf("close: %w", err)
	}
	if start >= end {
		return Window{}, false, fmt.Errorf("open %s is not before close %s", h.Open, h.Close)
	}
	return Window{Start: start, End: end}, true, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// weekdayOverrides resolves weekday names. Two names for the same weekday
// ("mon" and "monday") are rejected.
func weekdayOverrides(open map[string]DayHours) (map[time.Weekday]DayHours, error) {
	names := make([]string, 0, len(open))
	for name := range open {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[time.Weekday]DayHours, len(open))
	seen := make(map[time.Weekday]string, len(open))
	for _, name := range names {
		d, ok := parseWeekday(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown weekday %q", ErrInvalidConfig, name)
		}
		if prev, dup := seen[d]; dup {
			return nil, fmt.Errorf("%w: %q and %q both set %s", ErrInvalidConfig, prev, name, strings.ToLower(d.String()))
		}
		seen[d] = name
		out[d] = open[name]
	}
	return out, nil
}

func parseWeekday(s string) (time.Weekday, bool) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	return d, ok
}
