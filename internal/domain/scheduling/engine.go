package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// Date is a civil calendar day, independent of any timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: date %q: expected YYYY-MM-DD", ErrInvalidFormat, s)
	}
	return DateOf(t), nil
}

// DateOf returns the civil date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

// At returns the instant minutes after local midnight on d in loc.
func (d Date) At(minutes int, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, minutes/60, minutes%60, 0, 0, loc)
}

// Engine evaluates scheduling rules for a single tenant configuration. It
// holds no mutable state and is safe for concurrent use.
type Engine struct {
	cfg TenantConfig
	cal *Calendar
}

// NewEngine validates cfg and prepares its calendar.
func NewEngine(cfg TenantConfig) (*Engine, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cal, err := NewCalendar(cfg)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, cal: cal}, nil
}

func (e *Engine) Config() TenantConfig { return e.cfg }

func (e *Engine) Calendar() *Calendar { return e.cal }

// AvailableSlots returns the bookable slots of the tenant's default duration
// for resourceID on day, ascending by start. Slots come from the time grid
// over the day's operating window; a slot is kept only if it ends by closing
// time and does not overlap a blocking appointment in existing.
func (e *Engine) AvailableSlots(resourceID string, day Date, existing []Appointment) ([]Slot, error) {
	if strings.TrimSpace(resourceID) == "" {
		return nil, fmt.Errorf("%w: resource_id is required", ErrInvalidAppointment)
	}
	if err := validateAll(existing); err != nil {
		return nil, err
	}

	slots := []Slot{}
	w, open := e.cal.OperatingWindow(day.Weekday())
	if !open {
		return slots, nil
	}
	openClock, _ := ClockTime(w.Start)
	closeClock, _ := ClockTime(w.End)
	clocks, err := GenerateSlots(openClock, closeClock, e.cfg.SlotStepMinutes)
	if err != nil {
		return nil, err
	}

	dur := e.cfg.DefaultDuration()
	loc := e.cal.Location()
	for _, clock := range clocks {
		m, err := MinutesSinceMidnight(clock)
		if err != nil {
			return nil, err
		}
		start := day.At(m, loc)
		// Clock times skipped by a DST jump normalise to a different minute.
		if minuteOfDay(start.In(loc)) != m {
			continue
		}
		if !e.cal.Fits(start, dur) {
			continue
		}
		candidate := Appointment{
			ResourceID:      resourceID,
			Start:           start,
			DurationMinutes: e.cfg.DefaultDurationMinutes,
			Status:          StatusScheduled,
		}
		if HasConflict(candidate, existing) {
			continue
		}
		slots = append(slots, Slot{Start: start, End: start.Add(dur)})
	}
	return slots, nil
}

// ValidateBooking decides whether candidate may be booked at now. Checks run
// in order: business hours, conflicts, then lead time. Structurally invalid
// input is an error, not a rejection.
func (e *Engine) ValidateBooking(candidate Appointment, existing []Appointment, now time.Time) (Decision, error) {
	if candidate.Status == "" {
		candidate.Status = StatusScheduled
	}
	if err := candidate.Validate(); err != nil {
		return Decision{}, err
	}
	if err := validateAll(existing); err != nil {
		return Decision{}, err
	}

	dur := time.Duration(candidate.DurationMinutes) * time.Minute
	if !e.cal.Fits(candidate.Start, dur) {
		local := candidate.Start.In(e.cal.Location())
		if w, ok := e.cal.OperatingWindow(local.Weekday()); ok {
			return reject(ReasonOutsideBusinessHours, "%s %s for %d minutes is outside opening hours %s",
				local.Weekday(), local.Format("15:04"), candidate.DurationMinutes, w), nil
		}
		return reject(ReasonOutsideBusinessHours, "closed on %s", local.Weekday()), nil
	}

	if conflicts := FindConflicts(candidate, existing); len(conflicts) > 0 {
		d := reject(ReasonSlotConflict, "overlaps %d existing appointment(s) on %s", len(conflicts), candidate.ResourceID)
		d.ConflictIDs = make([]uuid.UUID, 0, len(conflicts))
		for _, c := range conflicts {
			d.ConflictIDs = append(d.ConflictIDs, c.ID)
		}
		return d, nil
	}

	lead := candidate.Start.Sub(now)
	if lead < e.cfg.MinLead() {
		return reject(ReasonLeadTimeViolation, "starts in %s; minimum lead time is %s",
			lead.Round(time.Minute), e.cfg.MinLead()), nil
	}
	if lead > e.cfg.MaxAdvance() {
		return reject(ReasonLeadTimeViolation, "starts in %s; bookings open %d days ahead",
			lead.Round(time.Minute), e.cfg.MaxAdvanceDays), nil
	}

	return accept(), nil
}

// EstimateWaitMinutes approximates the wait at reference as the number of
// blocking appointments scheduled at or before reference times the tenant's
// default duration. It does not simulate the queue.
func (e *Engine) EstimateWaitMinutes(existing []Appointment, reference time.Time) int {
	n := 0
	for i := range existing {
		a := &existing[i]
		if a.Status.Blocking() && !a.Start.After(reference) {
			n++
		}
	}
	return n * e.cfg.DefaultDurationMinutes
}

func validateAll(existing []Appointment) error {
	for i := range existing {
		if err := existing[i].Validate(); err != nil {
			return fmt.Errorf("existing appointment %s: %w", existing[i].ID, err)
		}
	}
	return nil
}
