package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/scheduler/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type txKey struct{}

func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

const (
	uniqueViolation    = "23505"
	exclusionViolation = "23P01"
)

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

// conn prefers an open resource-lock transaction, then the tenant-scoped
// connection set by the tenant middleware.
func (r *appointmentRepoPG) conn(ctx context.Context) queryable {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const apptCols = `id, code, tenant_id, resource_id, patient_id, start_time, duration_minutes,
	status, reschedule_count, encounter_number, cancellation_reason, created_at, updated_at`

func (r *appointmentRepoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	err := row.Scan(&a.ID, &a.Code, &a.TenantID, &a.ResourceID, &a.PatientID, &a.Start, &a.DurationMinutes,
		&status, &a.RescheduleCount, &a.EncounterNumber, &a.CancellationReason, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	insert := func(q queryable) error {
		return q.QueryRow(ctx, `
			INSERT INTO appointment (id, code, tenant_id, resource_id, patient_id, start_time, end_time,
				duration_minutes, status, reschedule_count, encounter_number, cancellation_reason)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			RETURNING created_at, updated_at`,
			a.ID, a.Code, a.TenantID, a.ResourceID, a.PatientID, a.Start, a.End(), a.DurationMinutes,
			string(a.Status), a.RescheduleCount, a.EncounterNumber, a.CancellationReason,
		).Scan(&a.CreatedAt, &a.UpdatedAt)
	}

	var err error
	if tx := txFromContext(ctx); tx != nil {
		// Savepoint so a duplicate code can be retried without aborting the
		// surrounding transaction.
		sp, spErr := tx.Begin(ctx)
		if spErr != nil {
			return fmt.Errorf("savepoint: %w", spErr)
		}
		if err = insert(sp); err != nil {
			_ = sp.Rollback(ctx)
		} else {
			err = sp.Commit(ctx)
		}
	} else {
		err = insert(r.conn(ctx))
	}
	return classifyWriteError(err)
}

func classifyWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == uniqueViolation && pgErr.ConstraintName == "appointment_code_key":
		return ErrDuplicateCode
	case pgErr.Code == exclusionViolation:
		return fmt.Errorf("%w: %s", ErrOverlap, pgErr.Detail)
	}
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET start_time=$2, end_time=$3, duration_minutes=$4, status=$5,
			reschedule_count=$6, encounter_number=$7, cancellation_reason=$8, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.Start, a.End(), a.DurationMinutes, string(a.Status), a.RescheduleCount,
		a.EncounterNumber, a.CancellationReason)
	if err != nil {
		return classifyWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) ListForResource(ctx context.Context, resourceID string, from, to time.Time) ([]Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+apptCols+` FROM appointment
		WHERE resource_id = $1
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time`, resourceID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) Search(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.ResourceID != "" {
		where += fmt.Sprintf(` AND resource_id = $%d`, idx)
		args = append(args, f.ResourceID)
		idx++
	}
	if f.PatientID != "" {
		where += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, f.PatientID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, string(f.Status))
		idx++
	}
	if !f.From.IsZero() {
		where += fmt.Sprintf(` AND start_time >= $%d`, idx)
		args = append(args, f.From)
		idx++
	}
	if !f.To.IsZero() {
		where += fmt.Sprintf(` AND start_time < $%d`, idx)
		args = append(args, f.To)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + apptCols + ` FROM appointment` + where +
		fmt.Sprintf(` ORDER BY start_time LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

// WithResourceLock takes a transaction-scoped advisory lock keyed on the
// current schema and resource, so bookings for one resource run one at a time
// across all server instances.
func (r *appointmentRepoPG) WithResourceLock(ctx context.Context, resourceID string, fn func(ctx context.Context) error) error {
	var tx pgx.Tx
	var err error
	if c := db.ConnFromContext(ctx); c != nil {
		tx, err = c.Begin(ctx)
	} else {
		tx, err = r.pool.Begin(ctx)
	}
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext(current_schema() || ':' || $1))`, resourceID); err != nil {
		return fmt.Errorf("lock resource %s: %w", resourceID, err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// =========== Tenant Config Repository ===========

type tenantConfigRepoPG struct{ pool *pgxpool.Pool }

func NewTenantConfigRepoPG(pool *pgxpool.Pool) TenantConfigRepository {
	return &tenantConfigRepoPG{pool: pool}
}

func (r *tenantConfigRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *tenantConfigRepoPG) Get(ctx context.Context, tenantID string) (TenantConfig, error) {
	cfg := DefaultTenantConfig(tenantID)
	var raw []byte
	err := r.conn(ctx).QueryRow(ctx, `SELECT settings FROM tenant_settings WHERE tenant_id = $1`, tenantID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return cfg, nil
	}
	if err != nil {
		return TenantConfig{}, fmt.Errorf("load tenant settings: %w", err)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return TenantConfig{}, fmt.Errorf("%w: decode settings for %s: %v", ErrInvalidConfig, tenantID, err)
	}
	cfg.TenantID = tenantID
	return cfg, nil
}

func (r *tenantConfigRepoPG) Save(ctx context.Context, cfg TenantConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode tenant settings: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO tenant_settings (tenant_id, settings) VALUES ($1, $2)
		ON CONFLICT (tenant_id) DO UPDATE SET settings = EXCLUDED.settings, updated_at = NOW()`,
		cfg.TenantID, raw)
	return err
}
