package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrDuplicateCode is returned by Create when the appointment code is taken.
	ErrDuplicateCode = errors.New("appointment code already exists")
	// ErrOverlap is returned when the store itself refuses an overlapping
	// blocking appointment.
	ErrOverlap = errors.New("overlapping appointment")
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	// ListForResource returns the resource's appointments of any status whose
	// interval overlaps [from, to), ordered by start.
	ListForResource(ctx context.Context, resourceID string, from, to time.Time) ([]Appointment, error)
	Search(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error)
	// WithResourceLock runs fn while holding an exclusive lock on resourceID.
	// Repository calls made with the context passed to fn join the same
	// transaction, which commits only if fn returns nil.
	WithResourceLock(ctx context.Context, resourceID string, fn func(ctx context.Context) error) error
}

type TenantConfigRepository interface {
	// Get returns the stored settings merged over DefaultTenantConfig; a
	// tenant without stored settings gets the defaults.
	Get(ctx context.Context, tenantID string) (TenantConfig, error)
	Save(ctx context.Context, cfg TenantConfig) error
}
