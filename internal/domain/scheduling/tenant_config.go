package scheduling

import (
	"fmt"
	"strings"
	"time"
)

// Defaults applied when a tenant leaves a setting unset.
const (
	DefaultDurationMinutes       = 30
	DefaultSlotStepMinutes       = 30
	DefaultMinLeadMinutes        = 60
	DefaultMaxAdvanceDays        = 90
	DefaultMaxReschedules        = 3
	DefaultCancellationLeadHours = 24
	DefaultNotificationLeadHours = 24
	DefaultTimezone              = "UTC"

	// MaxAdvanceDaysLimit bounds the booking horizon to ten years.
	MaxAdvanceDaysLimit = 3650
)

// DayHours is one weekday's opening hours as HH:MM clocks. Closed wins over
// Open/Close.
type DayHours struct {
	Open   string `json:"open,omitempty"`
	Close  string `json:"close,omitempty"`
	Closed bool   `json:"closed,omitempty"`
}

// TenantConfig is the per-tenant rule set the engine evaluates. It is loaded
// by the caller and treated as read-only.
type TenantConfig struct {
	TenantID string `json:"tenant_id"`
	Timezone string `json:"timezone"`
	// OpenHours overrides the default calendar per weekday; keys are weekday
	// names ("monday" or "mon"). Weekdays without a key use the default.
	OpenHours              map[string]DayHours `json:"open_hours,omitempty"`
	DefaultDurationMinutes int                 `json:"default_duration_minutes"`
	SlotStepMinutes        int                 `json:"slot_step_minutes"`
	MinLeadMinutes         int                 `json:"min_lead_minutes"`
	MaxAdvanceDays         int                 `json:"max_advance_days"`
	MaxReschedules         int                 `json:"max_reschedules"`
	CancellationLeadHours  int                 `json:"cancellation_lead_hours"`
	NotificationLeadHours  int                 `json:"notification_lead_hours"`
}

// DefaultTenantConfig returns the configuration used for a tenant with no
// stored settings. Stored JSON is decoded on top of it so omitted keys keep
// these values.
func DefaultTenantConfig(tenantID string) TenantConfig {
	return TenantConfig{
		TenantID:               tenantID,
		Timezone:               DefaultTimezone,
		DefaultDurationMinutes: DefaultDurationMinutes,
		SlotStepMinutes:        DefaultSlotStepMinutes,
		MinLeadMinutes:         DefaultMinLeadMinutes,
		MaxAdvanceDays:         DefaultMaxAdvanceDays,
		MaxReschedules:         DefaultMaxReschedules,
		CancellationLeadHours:  DefaultCancellationLeadHours,
		NotificationLeadHours:  DefaultNotificationLeadHours,
	}
}

// WithDefaults fills settings that must be positive and are unset.
func (c TenantConfig) WithDefaults() TenantConfig {
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.DefaultDurationMinutes <= 0 {
		c.DefaultDurationMinutes = DefaultDurationMinutes
	}
	if c.SlotStepMinutes <= 0 {
		c.SlotStepMinutes = DefaultSlotStepMinutes
	}
	if c.MaxAdvanceDays <= 0 {
		c.MaxAdvanceDays = DefaultMaxAdvanceDays
	}
	return c
}

// Validate rejects settings the engine cannot evaluate.
func (c TenantConfig) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	if c.MinLeadMinutes < 0 || c.MaxReschedules < 0 || c.CancellationLeadHours < 0 || c.NotificationLeadHours < 0 {
		return fmt.Errorf("%w: lead times and limits must not be negative", ErrInvalidConfig)
	}
	if c.DefaultDurationMinutes > MaxDurationMinutes || c.SlotStepMinutes > MaxDurationMinutes {
		return fmt.Errorf("%w: duration and slot step must not exceed %d minutes", ErrInvalidConfig, MaxDurationMinutes)
	}
	if c.MaxAdvanceDays > MaxAdvanceDaysLimit {
		return fmt.Errorf("%w: max_advance_days must not exceed %d", ErrInvalidConfig, MaxAdvanceDaysLimit)
	}
	if c.MinLeadMinutes > MaxAdvanceDaysLimit*24*60 || c.CancellationLeadHours > MaxAdvanceDaysLimit*24 || c.NotificationLeadHours > MaxAdvanceDaysLimit*24 {
		return fmt.Errorf("%w: lead times must not exceed %d days", ErrInvalidConfig, MaxAdvanceDaysLimit)
	}
	if time.Duration(c.MinLeadMinutes)*time.Minute > c.MaxAdvance() {
		return fmt.Errorf("%w: minimum lead time exceeds the advance-booking horizon", ErrInvalidConfig)
	}
	overrides, err := weekdayOverrides(c.OpenHours)
	if err != nil {
		return err
	}
	for day, hours := range overrides {
		if _, _, err := hours.window(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, strings.ToLower(day.String()), err)
		}
	}
	return nil
}

func (c TenantConfig) DefaultDuration() time.Duration {
	return time.Duration(c.DefaultDurationMinutes) * time.Minute
}

func (c TenantConfig) MinLead() time.Duration {
	return time.Duration(c.MinLeadMinutes) * time.Minute
}

func (c TenantConfig) MaxAdvance() time.Duration {
	return time.Duration(c.MaxAdvanceDays) * 24 * time.Hour
}

func (c TenantConfig) CancellationLead() time.Duration {
	return time.Duration(c.CancellationLeadHours) * time.Hour
}

func (c TenantConfig) NotificationLead() time.Duration {
	return time.Duration(c.NotificationLeadHours) * time.Hour
}

// ReminderAt is when a reminder for the appointment becomes due.
func (c TenantConfig) ReminderAt(a *Appointment) time.Time {
	return a.Start.Add(-c.NotificationLead())
}
