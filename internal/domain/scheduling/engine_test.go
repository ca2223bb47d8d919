package scheduling

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

// now is a Tuesday morning a week before the test appointments.
var now = time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultTenantConfig("acme"))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func candidateAt(start time.Time) Appointment {
	return Appointment{ResourceID: "dr-smith", Start: start, DurationMinutes: 30}
}

func TestValidateBooking_SundayRejected(t *testing.T) {
	e := newTestEngine(t)
	d, err := e.ValidateBooking(candidateAt(time.Date(2030, 1, 6, 10, 0, 0, 0, time.UTC)), nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Accepted || d.Reason != ReasonOutsideBusinessHours {
		t.Errorf("expected OUTSIDE_BUSINESS_HOURS, got %+v", d)
	}
}

func TestValidateBooking_TuesdayAccepted(t *testing.T) {
	e := newTestEngine(t)
	d, err := e.ValidateBooking(candidateAt(time.Date(2030, 1, 8, 9, 0, 0, 0, time.UTC)), nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Accepted {
		t.Errorf("expected acceptance, got %+v", d)
	}
}

func TestValidateBooking_RunsPastClosing(t *testing.T) {
	e := newTestEngine(t)
	c := candidateAt(time.Date(2030, 1, 8, 17, 45, 0, 0, time.UTC))
	d, _ := e.ValidateBooking(c, nil, now)
	if d.Reason != ReasonOutsideBusinessHours {
		t.Errorf("expected OUTSIDE_BUSINESS_HOURS, got %+v", d)
	}
}

func TestValidateBooking_Conflict(t *testing.T) {
	e := newTestEngine(t)
	existing := Appointment{
		ID: uuid.New(), ResourceID: "dr-smith", Status: StatusConfirmed,
		Start: time.Date(2030, 1, 8, 9, 15, 0, 0, time.UTC), DurationMinutes: 30,
	}
	d, err := e.ValidateBooking(candidateAt(time.Date(2030, 1, 8, 9, 0, 0, 0, time.UTC)), []Appointment{existing}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Reason != ReasonSlotConflict {
		t.Fatalf("expected SLOT_CONFLICT, got %+v", d)
	}
	if len(d.ConflictIDs) != 1 || d.ConflictIDs[0] != existing.ID {
		t.Errorf("expected conflict id %s, got %v", existing.ID, d.ConflictIDs)
	}
}

func TestValidateBooking_CheckOrder(t *testing.T) {
	e := newTestEngine(t)
	// Outside hours and too soon: hours are reported first.
	soon := time.Date(2030, 1, 1, 6, 0, 0, 0, time.UTC)
	d, _ := e.ValidateBooking(candidateAt(soon), nil, soon.Add(-10*time.Minute))
	if d.Reason != ReasonOutsideBusinessHours {
		t.Errorf("expected OUTSIDE_BUSINESS_HOURS first, got %+v", d)
	}

	// Conflicting and too soon: the conflict is reported first.
	start := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	existing := []Appointment{{ID: uuid.New(), ResourceID: "dr-smith", Start: start, DurationMinutes: 30, Status: StatusScheduled}}
	d, _ = e.ValidateBooking(candidateAt(start), existing, start.Add(-10*time.Minute))
	if d.Reason != ReasonSlotConflict {
		t.Errorf("expected SLOT_CONFLICT before lead time, got %+v", d)
	}
}

func TestValidateBooking_LeadTime(t *testing.T) {
	e := newTestEngine(t)
	start := time.Date(2030, 1, 8, 9, 0, 0, 0, time.UTC)

	d, _ := e.ValidateBooking(candidateAt(start), nil, start.Add(-30*time.Minute))
	if d.Reason != ReasonLeadTimeViolation {
		t.Errorf("expected LEAD_TIME_VIOLATION under minimum lead, got %+v", d)
	}

	d, _ = e.ValidateBooking(candidateAt(start), nil, start.Add(-time.Hour))
	if !d.Accepted {
		t.Errorf("exactly the minimum lead should be accepted, got %+v", d)
	}

	d, _ = e.ValidateBooking(candidateAt(start), nil, start.AddDate(0, 0, -91))
	if d.Reason != ReasonLeadTimeViolation {
		t.Errorf("expected LEAD_TIME_VIOLATION beyond the horizon, got %+v", d)
	}

	d, _ = e.ValidateBooking(candidateAt(start), nil, start.Add(time.Hour))
	if d.Reason != ReasonLeadTimeViolation {
		t.Errorf("expected LEAD_TIME_VIOLATION for a past start, got %+v", d)
	}
}

func TestValidateBooking_InvalidInput(t *testing.T) {
	e := newTestEngine(t)
	bad := []Appointment{
		{Start: now.Add(48 * time.Hour), DurationMinutes: 30},
		{ResourceID: "dr-smith", DurationMinutes: 30},
		{ResourceID: "dr-smith", Start: now.Add(48 * time.Hour), DurationMinutes: 0},
		{ResourceID: "dr-smith", Start: now.Add(48 * time.Hour), DurationMinutes: 30, Status: "LOST"},
	}
	for i, c := range bad {
		if _, err := e.ValidateBooking(c, nil, now); !errors.Is(err, ErrInvalidAppointment) {
			t.Errorf("case %d: expected ErrInvalidAppointment, got %v", i, err)
		}
	}
}

func TestValidateBooking_DurationUpperBound(t *testing.T) {
	e := newTestEngine(t)
	tuesday := time.Date(2030, 1, 8, 9, 0, 0, 0, time.UTC)
	existing := []Appointment{{
		ID: uuid.New(), ResourceID: "dr-smith", Start: tuesday.Add(30 * time.Minute),
		DurationMinutes: 30, Status: StatusScheduled,
	}}

	for _, minutes := range []int{MaxDurationMinutes + 1, 153722868} {
		c := candidateAt(tuesday)
		c.DurationMinutes = minutes
		d, err := e.ValidateBooking(c, existing, now)
		if !errors.Is(err, ErrInvalidAppointment) {
			t.Errorf("duration %d: expected ErrInvalidAppointment, got %v (decision %+v)", minutes, err, d)
		}
	}

	c := candidateAt(time.Date(2030, 1, 8, 7, 0, 0, 0, time.UTC))
	c.DurationMinutes = MaxDurationMinutes
	d, err := e.ValidateBooking(c, nil, now)
	if err != nil {
		t.Fatalf("unexpected error at the cap: %v", err)
	}
	if d.Accepted || d.Reason != ReasonOutsideBusinessHours {
		t.Errorf("expected a day-long booking to run past closing, got %+v", d)
	}
}

func TestValidateBooking_InvalidExisting(t *testing.T) {
	e := newTestEngine(t)
	existing := []Appointment{{ResourceID: "dr-smith", Start: now, DurationMinutes: -5, Status: StatusScheduled}}
	if _, err := e.ValidateBooking(candidateAt(time.Date(2030, 1, 8, 9, 0, 0, 0, time.UTC)), existing, now); !errors.Is(err, ErrInvalidAppointment) {
		t.Errorf("expected ErrInvalidAppointment, got %v", err)
	}
}

func TestAvailableSlots_TuesdayDefault(t *testing.T) {
	e := newTestEngine(t)
	day := Date{2030, time.January, 8}
	slots, err := e.AvailableSlots("dr-smith", day, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 07:00 to 18:00 in 30-minute steps.
	if len(slots) != 22 {
		t.Fatalf("expected 22 slots, got %d", len(slots))
	}
	if slots[0].Start.Hour() != 7 || slots[len(slots)-1].Start.Format("15:04") != "17:30" {
		t.Errorf("unexpected range %s..%s", slots[0].Start, slots[len(slots)-1].Start)
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i].Start.After(slots[i-1].Start) {
			t.Fatal("slots must be ascending")
		}
	}
}

func TestAvailableSlots_SkipsBlocked(t *testing.T) {
	e := newTestEngine(t)
	day := Date{2030, time.January, 8}
	existing := []Appointment{
		{ID: uuid.New(), ResourceID: "dr-smith", Start: day.At(9*60, time.UTC), DurationMinutes: 45, Status: StatusScheduled},
		{ID: uuid.New(), ResourceID: "dr-smith", Start: day.At(11*60, time.UTC), DurationMinutes: 30, Status: StatusCancelled},
	}
	slots, err := e.AvailableSlots("dr-smith", day, existing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 20 {
		t.Errorf("expected 20 slots, got %d", len(slots))
	}
	for _, s := range slots {
		hm := s.Start.Format("15:04")
		if hm == "09:00" || hm == "09:30" {
			t.Errorf("slot %s overlaps a booked appointment", hm)
		}
	}
}

func TestAvailableSlots_ClosedDay(t *testing.T) {
	e := newTestEngine(t)
	slots, err := e.AvailableSlots("dr-smith", Date{2030, time.January, 6}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slots == nil || len(slots) != 0 {
		t.Errorf("expected empty non-nil slots, got %#v", slots)
	}
}

func TestAvailableSlots_LongDurationDropsTail(t *testing.T) {
	cfg := DefaultTenantConfig("acme")
	cfg.DefaultDurationMinutes = 60
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	slots, _ := e.AvailableSlots("dr-smith", Date{2030, time.January, 12}, nil)
	// Saturday 08:00-12:00, hourly appointments on a 30-minute grid.
	if len(slots) != 7 {
		t.Errorf("expected 7 slots, got %d", len(slots))
	}
	if last := slots[len(slots)-1]; last.End.Format("15:04") != "12:00" {
		t.Errorf("last slot must end at closing, got %s", last.End)
	}
}

func TestAvailableSlots_DSTGap(t *testing.T) {
	cfg := DefaultTenantConfig("acme")
	cfg.Timezone = "America/New_York"
	cfg.OpenHours = map[string]DayHours{"sunday": {Open: "01:00", Close: "04:00"}}
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	// Clocks jump from 02:00 to 03:00 on 2030-03-10.
	slots, err := e.AvailableSlots("dr-smith", Date{2030, time.March, 10}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(slots))
	}
	loc := e.Calendar().Location()
	for _, s := range slots {
		if s.Start.In(loc).Hour() == 2 {
			t.Errorf("slot %s falls in the skipped hour", s.Start)
		}
	}
}

func TestAvailableSlots_RequiresResource(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.AvailableSlots(" ", Date{2030, time.January, 8}, nil); !errors.Is(err, ErrInvalidAppointment) {
		t.Errorf("expected ErrInvalidAppointment, got %v", err)
	}
}

func TestEstimateWaitMinutes(t *testing.T) {
	e := newTestEngine(t)
	ref := time.Date(2030, 1, 8, 10, 0, 0, 0, time.UTC)
	existing := []Appointment{
		{ResourceID: "dr-smith", Start: ref.Add(-90 * time.Minute), DurationMinutes: 30, Status: StatusScheduled},
		{ResourceID: "dr-smith", Start: ref.Add(-30 * time.Minute), DurationMinutes: 30, Status: StatusConfirmed},
		{ResourceID: "dr-smith", Start: ref, DurationMinutes: 30, Status: StatusInProgress},
		{ResourceID: "dr-smith", Start: ref.Add(-60 * time.Minute), DurationMinutes: 30, Status: StatusCancelled},
		{ResourceID: "dr-smith", Start: ref.Add(30 * time.Minute), DurationMinutes: 30, Status: StatusScheduled},
	}
	if got := e.EstimateWaitMinutes(existing, ref); got != 90 {
		t.Errorf("expected 90, got %d", got)
	}
}

func TestEstimateWaitMinutes_Empty(t *testing.T) {
	e := newTestEngine(t)
	if got := e.EstimateWaitMinutes(nil, now); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := DefaultTenantConfig("acme")
	cfg.MinLeadMinutes = -1
	if _, err := NewEngine(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2030-01-08")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Weekday() != time.Tuesday || d.String() != "2030-01-08" {
		t.Errorf("unexpected date %v (%s)", d, d.Weekday())
	}
	if _, err := ParseDate("08/01/2030"); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
}
