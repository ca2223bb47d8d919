package scheduling

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"
)

func TestNewCalendar_Defaults(t *testing.T) {
	cal, err := NewCalendar(DefaultTenantConfig("acme"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, open := cal.OperatingWindow(time.Sunday); open {
		t.Error("expected Sunday closed by default")
	}
	w, open := cal.OperatingWindow(time.Tuesday)
	if !open || w.String() != "07:00-18:00" {
		t.Errorf("unexpected Tuesday window %v (open=%v)", w, open)
	}
	w, _ = cal.OperatingWindow(time.Saturday)
	if w.String() != "08:00-12:00" {
		t.Errorf("unexpected Saturday window %v", w)
	}
}

func TestNewCalendar_Overrides(t *testing.T) {
	cfg := DefaultTenantConfig("acme")
	cfg.OpenHours = map[string]DayHours{
		"Sun":     {Open: "10:00", Close: "14:00"},
		"tuesday": {Closed: true},
	}
	cal, err := NewCalendar(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, open := cal.OperatingWindow(time.Tuesday); open {
		t.Error("expected Tuesday closed by override")
	}
	if w, open := cal.OperatingWindow(time.Sunday); !open || w.String() != "10:00-14:00" {
		t.Errorf("unexpected Sunday window %v", w)
	}
	if _, open := cal.OperatingWindow(time.Monday); !open {
		t.Error("expected Monday to keep its default window")
	}
}

func TestNewCalendar_InvalidOverride(t *testing.T) {
	cfg := DefaultTenantConfig("acme")
	cfg.OpenHours = map[string]DayHours{"monday": {Open: "18:00", Close: "07:00"}}
	if _, err := NewCalendar(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	cfg.OpenHours = map[string]DayHours{"someday": {Open: "07:00", Close: "18:00"}}
	if _, err := NewCalendar(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for unknown weekday, got %v", err)
	}
}

func TestNewCalendar_DuplicateWeekday(t *testing.T) {
	cfg := DefaultTenantConfig("acme")
	cfg.OpenHours = map[string]DayHours{
		"mon":    {Open: "09:00", Close: "10:00"},
		"Monday": {Closed: true},
	}
	for i := 0; i < 50; i++ {
		if _, err := NewCalendar(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("attempt %d: expected ErrInvalidConfig, got %v", i, err)
		}
	}
}

func TestNewCalendar_OverrideIsStable(t *testing.T) {
	cfg := DefaultTenantConfig("acme")
	cfg.OpenHours = map[string]DayHours{"mon": {Open: "09:00", Close: "10:00"}, "sun": {Open: "10:00", Close: "12:00"}}
	for i := 0; i < 50; i++ {
		cal, err := NewCalendar(cfg)
		if err != nil {
			t.Fatalf("NewCalendar: %v", err)
		}
		w, open := cal.OperatingWindow(time.Monday)
		if !open || w.Start != 9*60 || w.End != 10*60 {
			t.Fatalf("attempt %d: unexpected monday window %+v open=%v", i, w, open)
		}
	}
}

func TestNewCalendar_UnknownTimezone(t *testing.T) {
	cfg := DefaultTenantConfig("acme")
	cfg.Timezone = "Mars/Olympus_Mons"
	if _, err := NewCalendar(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestCalendar_IsOpenAt(t *testing.T) {
	cal, _ := NewCalendar(DefaultTenantConfig("acme"))
	if !cal.IsOpenAt(time.Date(2030, 1, 8, 7, 0, 0, 0, time.UTC)) {
		t.Error("expected open at 07:00 Tuesday")
	}
	if cal.IsOpenAt(time.Date(2030, 1, 8, 18, 0, 0, 0, time.UTC)) {
		t.Error("expected closed at 18:00 Tuesday")
	}
	if cal.IsOpenAt(time.Date(2030, 1, 6, 10, 0, 0, 0, time.UTC)) {
		t.Error("expected closed on Sunday")
	}
}

func TestCalendar_UsesTenantTimezone(t *testing.T) {
	cfg := DefaultTenantConfig("acme")
	cfg.Timezone = "America/New_York"
	cal, err := NewCalendar(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 13:00 UTC is 08:00 in New York in January.
	if !cal.IsOpenAt(time.Date(2030, 1, 8, 13, 0, 0, 0, time.UTC)) {
		t.Error("expected open at 08:00 local")
	}
	// 11:30 UTC is 06:30 local.
	if cal.IsOpenAt(time.Date(2030, 1, 8, 11, 30, 0, 0, time.UTC)) {
		t.Error("expected closed at 06:30 local")
	}
}

func TestCalendar_Fits(t *testing.T) {
	cal, _ := NewCalendar(DefaultTenantConfig("acme"))
	day := time.Date(2030, 1, 8, 0, 0, 0, 0, time.UTC)

	if !cal.Fits(day.Add(17*time.Hour+30*time.Minute), 30*time.Minute) {
		t.Error("17:30 for 30 minutes should end exactly at closing")
	}
	if cal.Fits(day.Add(17*time.Hour+45*time.Minute), 30*time.Minute) {
		t.Error("17:45 for 30 minutes runs past closing")
	}
	if cal.Fits(day.Add(17*time.Hour+30*time.Minute+30*time.Second), 30*time.Minute) {
		t.Error("a partial minute past closing must not fit")
	}
	if cal.Fits(day.Add(6*time.Hour+45*time.Minute), 30*time.Minute) {
		t.Error("start before opening must not fit")
	}
}
