package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/scheduler/internal/platform/identifier"
)

// maxCodeAttempts bounds appointment code regeneration after collisions.
const maxCodeAttempts = 3

// publishTimeout bounds how long a committed write waits on the broker.
const publishTimeout = 2 * time.Second

// Event types published after a successful write.
const (
	EventBooked        = "appointment.booked"
	EventRescheduled   = "appointment.rescheduled"
	EventCancelled     = "appointment.cancelled"
	EventStatusChanged = "appointment.status_changed"
)

// EventPublisher is satisfied by events.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event interface{}) error
}

// AppointmentEvent is the change-feed payload.
type AppointmentEvent struct {
	Type            string    `json:"type"`
	AppointmentID   uuid.UUID `json:"appointment_id"`
	Code            string    `json:"code"`
	TenantID        string    `json:"tenant_id"`
	ResourceID      string    `json:"resource_id"`
	PatientID       string    `json:"patient_id,omitempty"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Status          Status    `json:"status"`
	PreviousStatus  Status    `json:"previous_status,omitempty"`
	EncounterNumber string    `json:"encounter_number,omitempty"`
	ReminderAt      time.Time `json:"reminder_at"`
	OccurredAt      time.Time `json:"occurred_at"`
}

type Service struct {
	appointments AppointmentRepository
	configs      TenantConfigRepository
	ids          *identifier.Generator
	events       EventPublisher
	metrics      *Metrics
	logger       zerolog.Logger
	now          func() time.Time
}

func NewService(appts AppointmentRepository, configs TenantConfigRepository, ids *identifier.Generator,
	events EventPublisher, metrics *Metrics, logger zerolog.Logger) *Service {
	if ids == nil {
		ids = identifier.New()
	}
	return &Service{
		appointments: appts,
		configs:      configs,
		ids:          ids,
		events:       events,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// -- Tenant configuration --

func (s *Service) Config(ctx context.Context, tenantID string) (TenantConfig, error) {
	cfg, err := s.configs.Get(ctx, tenantID)
	if err != nil {
		return TenantConfig{}, err
	}
	return cfg.WithDefaults(), nil
}

func (s *Service) UpdateConfig(ctx context.Context, cfg TenantConfig) (TenantConfig, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return TenantConfig{}, err
	}
	if err := s.configs.Save(ctx, cfg); err != nil {
		return TenantConfig{}, fmt.Errorf("save tenant config: %w", err)
	}
	s.logger.Info().Str("tenant_id", cfg.TenantID).Str("timezone", cfg.Timezone).Msg("tenant scheduling config updated")
	return cfg, nil
}

func (s *Service) engine(ctx context.Context, tenantID string) (*Engine, error) {
	cfg, err := s.configs.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return NewEngine(cfg)
}

// -- Availability --

func (s *Service) AvailableSlots(ctx context.Context, tenantID, resourceID string, day Date) ([]Slot, error) {
	defer s.metrics.observeSlots(time.Now())

	eng, err := s.engine(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	from, to := dayBounds(day, eng.Calendar().Location())
	existing, err := s.appointments.ListForResource(ctx, resourceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return eng.AvailableSlots(resourceID, day, existing)
}

// EstimateWait approximates the wait in minutes for resourceID at the given
// instant from the appointments booked earlier that tenant-local day.
func (s *Service) EstimateWait(ctx context.Context, tenantID, resourceID string, at time.Time) (int, error) {
	if strings.TrimSpace(resourceID) == "" {
		return 0, fmt.Errorf("%w: resource_id is required", ErrInvalidAppointment)
	}
	eng, err := s.engine(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	loc := eng.Calendar().Location()
	from, to := dayBounds(DateOf(at.In(loc)), loc)
	existing, err := s.appointments.ListForResource(ctx, resourceID, from, to)
	if err != nil {
		return 0, fmt.Errorf("list appointments: %w", err)
	}
	return eng.EstimateWaitMinutes(existing, at), nil
}

// -- Booking --

// Validate is a dry run of Book: it reports the decision without writing.
func (s *Service) Validate(ctx context.Context, tenantID string, a *Appointment) (Decision, error) {
	eng, err := s.engine(ctx, tenantID)
	if err != nil {
		return Decision{}, err
	}
	s.prepare(tenantID, a, eng.Config())
	if err := a.Validate(); err != nil {
		return Decision{}, err
	}
	existing, err := s.appointments.ListForResource(ctx, a.ResourceID, a.Start, a.End())
	if err != nil {
		return Decision{}, fmt.Errorf("list appointments: %w", err)
	}
	d, err := eng.ValidateBooking(*a, existing, s.now())
	if err != nil {
		return Decision{}, err
	}
	s.metrics.observeDecision("validate", d)
	return d, nil
}

// Book validates and stores a new appointment. The conflict check and the
// insert run under the resource lock. On rejection nothing is written and the
// decision explains why.
func (s *Service) Book(ctx context.Context, tenantID string, a *Appointment) (Decision, error) {
	eng, err := s.engine(ctx, tenantID)
	if err != nil {
		return Decision{}, err
	}
	s.prepare(tenantID, a, eng.Config())
	a.Status = StatusScheduled
	a.RescheduleCount = 0
	if err := a.Validate(); err != nil {
		return Decision{}, err
	}

	var d Decision
	err = s.appointments.WithResourceLock(ctx, a.ResourceID, func(ctx context.Context) error {
		existing, err := s.appointments.ListForResource(ctx, a.ResourceID, a.Start, a.End())
		if err != nil {
			return fmt.Errorf("list appointments: %w", err)
		}
		d, err = eng.ValidateBooking(*a, existing, s.now())
		if err != nil || !d.Accepted {
			return err
		}
		return s.insertWithCode(ctx, a)
	})
	if err != nil {
		return Decision{}, err
	}
	s.metrics.observeDecision("book", d)
	if !d.Accepted {
		s.logger.Debug().Str("tenant_id", tenantID).Str("resource_id", a.ResourceID).
			Str("reason", string(d.Reason)).Msg("booking rejected")
		return d, nil
	}

	s.logger.Info().Str("tenant_id", tenantID).Str("code", a.Code).Str("resource_id", a.ResourceID).
		Time("start", a.Start).Msg("appointment booked")
	s.publish(ctx, EventBooked, a, "", eng.Config())
	return d, nil
}

func (s *Service) insertWithCode(ctx context.Context, a *Appointment) error {
	for attempt := 1; ; attempt++ {
		a.Code = s.ids.AppointmentCode()
		err := s.appointments.Create(ctx, a)
		if !errors.Is(err, ErrDuplicateCode) {
			return err
		}
		s.metrics.observeCollision()
		s.logger.Warn().Str("code", a.Code).Int("attempt", attempt).Msg("appointment code collision")
		if attempt == maxCodeAttempts {
			return fmt.Errorf("generate appointment code: %w", err)
		}
	}
}

func (s *Service) prepare(tenantID string, a *Appointment, cfg TenantConfig) {
	a.TenantID = tenantID
	a.ResourceID = strings.TrimSpace(a.ResourceID)
	if a.DurationMinutes == 0 {
		a.DurationMinutes = cfg.DefaultDurationMinutes
	}
}

// -- Changes to existing appointments --

// Reschedule moves an active appointment to newStart. A zero duration keeps
// the current one. The appointment returns to SCHEDULED and its reschedule
// count grows by one.
func (s *Service) Reschedule(ctx context.Context, tenantID string, id uuid.UUID, newStart time.Time, durationMinutes int) (*Appointment, Decision, error) {
	eng, err := s.engine(ctx, tenantID)
	if err != nil {
		return nil, Decision{}, err
	}
	cfg := eng.Config()

	var d Decision
	a, err := s.withAppointment(ctx, id, func(ctx context.Context, a *Appointment) error {
		if a.Status != StatusScheduled && a.Status != StatusConfirmed {
			return fmt.Errorf("%w: cannot reschedule a %s appointment", ErrInvalidTransition, a.Status)
		}
		if a.RescheduleCount >= cfg.MaxReschedules {
			d = reject(ReasonRescheduleLimit, "already rescheduled %d time(s); limit is %d", a.RescheduleCount, cfg.MaxReschedules)
			return nil
		}

		candidate := *a
		candidate.Start = newStart
		if durationMinutes != 0 {
			candidate.DurationMinutes = durationMinutes
		}
		candidate.Status = StatusScheduled
		if err := candidate.Validate(); err != nil {
			return err
		}
		existing, err := s.appointments.ListForResource(ctx, candidate.ResourceID, candidate.Start, candidate.End())
		if err != nil {
			return fmt.Errorf("list appointments: %w", err)
		}
		d, err = eng.ValidateBooking(candidate, existing, s.now())
		if err != nil || !d.Accepted {
			return err
		}

		candidate.RescheduleCount++
		if err := s.appointments.Update(ctx, &candidate); err != nil {
			return err
		}
		*a = candidate
		return nil
	})
	if err != nil {
		return nil, Decision{}, err
	}
	s.metrics.observeDecision("reschedule", d)
	if d.Accepted {
		s.logger.Info().Str("code", a.Code).Time("start", a.Start).Int("reschedule_count", a.RescheduleCount).
			Msg("appointment rescheduled")
		s.publish(ctx, EventRescheduled, a, "", cfg)
	}
	return a, d, nil
}

// Cancel cancels an active appointment. Cancelling inside the tenant's
// cancellation lead time is rejected.
func (s *Service) Cancel(ctx context.Context, tenantID string, id uuid.UUID, reason string) (*Appointment, Decision, error) {
	eng, err := s.engine(ctx, tenantID)
	if err != nil {
		return nil, Decision{}, err
	}
	cfg := eng.Config()

	var d Decision
	var previous Status
	a, err := s.withAppointment(ctx, id, func(ctx context.Context, a *Appointment) error {
		if !a.Status.CanTransition(StatusCancelled) {
			return fmt.Errorf("%w: cannot cancel a %s appointment", ErrInvalidTransition, a.Status)
		}
		if remaining := a.Start.Sub(s.now()); remaining < cfg.CancellationLead() {
			d = reject(ReasonCancellationTooLate, "starts in %s; cancellations close %s before start",
				remaining.Round(time.Minute), cfg.CancellationLead())
			return nil
		}
		previous = a.Status
		a.Status = StatusCancelled
		a.CancellationReason = strings.TrimSpace(reason)
		if err := s.appointments.Update(ctx, a); err != nil {
			return err
		}
		d = accept()
		return nil
	})
	if err != nil {
		return nil, Decision{}, err
	}
	s.metrics.observeDecision("cancel", d)
	if d.Accepted {
		s.logger.Info().Str("code", a.Code).Msg("appointment cancelled")
		s.publish(ctx, EventCancelled, a, previous, cfg)
	}
	return a, d, nil
}

// TransitionStatus moves an appointment along the lifecycle. Entering
// IN_PROGRESS assigns an encounter number.
func (s *Service) TransitionStatus(ctx context.Context, tenantID string, id uuid.UUID, next Status) (*Appointment, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidAppointment, next)
	}
	eng, err := s.engine(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	cfg := eng.Config()

	var previous Status
	a, err := s.withAppointment(ctx, id, func(ctx context.Context, a *Appointment) error {
		if !a.Status.CanTransition(next) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, a.Status, next)
		}
		previous = a.Status
		a.Status = next
		if next == StatusInProgress && a.EncounterNumber == "" {
			a.EncounterNumber = s.ids.EncounterNumber(tenantID, s.now().In(eng.Calendar().Location()))
		}
		return s.appointments.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("code", a.Code).Str("from", string(previous)).Str("to", string(next)).
		Msg("appointment status changed")
	s.publish(ctx, EventStatusChanged, a, previous, cfg)
	return a, nil
}

// withAppointment loads id, takes its resource lock, reloads it inside the
// lock and hands it to fn.
func (s *Service) withAppointment(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, a *Appointment) error) (*Appointment, error) {
	current, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var locked *Appointment
	err = s.appointments.WithResourceLock(ctx, current.ResourceID, func(ctx context.Context) error {
		a, err := s.appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, a); err != nil {
			return err
		}
		locked = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return locked, nil
}

// -- Queries --

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) Search(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.Search(ctx, f, limit, offset)
}

func (s *Service) publish(ctx context.Context, eventType string, a *Appointment, previous Status, cfg TenantConfig) {
	if s.events == nil {
		return
	}
	ev := AppointmentEvent{
		Type:            eventType,
		AppointmentID:   a.ID,
		Code:            a.Code,
		TenantID:        a.TenantID,
		ResourceID:      a.ResourceID,
		PatientID:       a.PatientID,
		Start:           a.Start,
		End:             a.End(),
		Status:          a.Status,
		PreviousStatus:  previous,
		EncounterNumber: a.EncounterNumber,
		ReminderAt:      cfg.ReminderAt(a),
		OccurredAt:      s.now().UTC(),
	}
	// The write is already committed; request cancellation must not drop the event.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.events.Publish(pubCtx, a.ResourceID, ev); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Str("code", a.Code).Msg("failed to publish appointment event")
	}
}

// dayBounds returns local midnight of day and of the following day in loc.
func dayBounds(day Date, loc *time.Location) (time.Time, time.Time) {
	from := time.Date(day.Year, day.Month, day.Day, 0, 0, 0, 0, loc)
	to := time.Date(day.Year, day.Month, day.Day+1, 0, 0, 0, 0, loc)
	return from, to
}
