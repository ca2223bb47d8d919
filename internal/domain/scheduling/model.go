package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusConfirmed  Status = "CONFIRMED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusNoShow     Status = "NO_SHOW"
)

var validStatuses = map[Status]bool{
	StatusScheduled: true, StatusConfirmed: true, StatusInProgress: true,
	StatusCompleted: true, StatusCancelled: true, StatusNoShow: true,
}

// ParseStatus accepts any letter case and '-' in place of '_'.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !validStatuses[st] {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidAppointment, s)
	}
	return st, nil
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool { return validStatuses[s] }

// Blocking reports whether an appointment in this status occupies its
// resource's time.
func (s Status) Blocking() bool {
	return s == StatusScheduled || s == StatusConfirmed || s == StatusInProgress
}

var transitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusInProgress, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted},
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Appointment maps to the appointment table.
type Appointment struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	Code               string    `db:"code" json:"code"`
	TenantID           string    `db:"tenant_id" json:"tenant_id"`
	ResourceID         string    `db:"resource_id" json:"resource_id"`
	PatientID          string    `db:"patient_id" json:"patient_id,omitempty"`
	Start              time.Time `db:"start_time" json:"start"`
	DurationMinutes    int       `db:"duration_minutes" json:"duration_minutes"`
	Status             Status    `db:"status" json:"status"`
	RescheduleCount    int       `db:"reschedule_count" json:"reschedule_count"`
	EncounterNumber    string    `db:"encounter_number" json:"encounter_number,omitempty"`
	CancellationReason string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// End is Start plus the estimated duration.
func (a *Appointment) End() time.Time {
	return a.Start.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// MaxDurationMinutes caps a single appointment at one day.
const MaxDurationMinutes = 24 * 60

// Validate checks the fields the engine relies on.
func (a *Appointment) Validate() error {
	if strings.TrimSpace(a.ResourceID) == "" {
		return fmt.Errorf("%w: resource_id is required", ErrInvalidAppointment)
	}
	if a.Start.IsZero() {
		return fmt.Errorf("%w: start is required", ErrInvalidAppointment)
	}
	if a.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %d", ErrInvalidAppointment, a.DurationMinutes)
	}
	if a.DurationMinutes > MaxDurationMinutes {
		return fmt.Errorf("%w: duration exceeds %d minutes, got %d", ErrInvalidAppointment, MaxDurationMinutes, a.DurationMinutes)
	}
	if !a.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidAppointment, a.Status)
	}
	return nil
}

// Slot is a candidate bookable interval. It is computed, never stored.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RejectReason explains why a booking was not accepted.
type RejectReason string

const (
	ReasonOutsideBusinessHours RejectReason = "OUTSIDE_BUSINESS_HOURS"
	ReasonSlotConflict         RejectReason = "SLOT_CONFLICT"
	ReasonLeadTimeViolation    RejectReason = "LEAD_TIME_VIOLATION"
	ReasonRescheduleLimit      RejectReason = "RESCHEDULE_LIMIT_EXCEEDED"
	ReasonCancellationTooLate  RejectReason = "CANCELLATION_TOO_LATE"
)

// Decision is the outcome of validating a booking. Rejection is a normal
// result, not an error.
type Decision struct {
	Accepted    bool         `json:"accepted"`
	Reason      RejectReason `json:"reason,omitempty"`
	Message     string       `json:"message,omitempty"`
	ConflictIDs []uuid.UUID  `json:"conflict_ids,omitempty"`
}

func accept() Decision { return Decision{Accepted: true} }

func reject(reason RejectReason, format string, args ...interface{}) Decision {
	return Decision{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// AppointmentFilter narrows appointment searches.
type AppointmentFilter struct {
	ResourceID string
	PatientID  string
	Status     Status
	From       time.Time
	To         time.Time
}
