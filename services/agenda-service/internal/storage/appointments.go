package storage

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinicagenda/agenda/libs/db"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/model"
)

// SlotConstraint is the partial unique index guarding one live appointment per slot.
const SlotConstraint = "appointments_slot_uniq"

var (
	ErrNotFound     = errors.New("storage: appointment not found")
	ErrSlotConflict = errors.New("storage: slot already taken")
)

// RowQuerier is satisfied by pgx.Tx and the pool.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type AppointmentRepository struct {
	pool db.Querier
}

func NewAppointmentRepository(pool db.Querier) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const selectColumns = `
	SELECT id::text, professional_id, client_id, client_name, COALESCE(procedure_id, ''),
		appointment_date::text, appointment_time::text, price_cents, status, payment_status,
		COALESCE(notes, ''), created_at, updated_at
	FROM appointments`

func (r *AppointmentRepository) ListByDate(ctx context.Context, professionalID string, date civil.Date) ([]model.Appointment, error) {
	return r.list(ctx, selectColumns+`
		WHERE professional_id = $1 AND appointment_date = $2::date
		ORDER BY appointment_time ASC, id ASC
	`, professionalID, date.String())
}

// ListRange returns appointments with from <= date <= to.
func (r *AppointmentRepository) ListRange(ctx context.Context, professionalID string, from, to civil.Date) ([]model.Appointment, error) {
	return r.list(ctx, selectColumns+`
		WHERE professional_id = $1 AND appointment_date BETWEEN $2::date AND $3::date
		ORDER BY appointment_date ASC, appointment_time ASC, id ASC
	`, professionalID, from.String(), to.String())
}

func (r *AppointmentRepository) Get(ctx context.Context, professionalID, id string) (model.Appointment, error) {
	return r.get(ctx, r.pool, selectColumns+`
		WHERE id = $1 AND professional_id = $2
	`, id, professionalID)
}

func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx RowQuerier, professionalID, id string) (model.Appointment, error) {
	return r.get(ctx, tx, selectColumns+`
		WHERE id = $1 AND professional_id = $2
		FOR UPDATE
	`, id, professionalID)
}

// Create stores appt at minute precision. A slot-index violation returns ErrSlotConflict.
func (r *AppointmentRepository) Create(ctx context.Context, tx RowQuerier, appt model.Appointment) (model.Appointment, error) {
	clock, err := appt.Clock()
	if err != nil {
		return model.Appointment{}, fmt.Errorf("storage: create: %w", err)
	}
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	appt.Time = clock.String()

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, professional_id, client_id, client_name, procedure_id, appointment_date, appointment_time,
			 price_cents, status, payment_status, notes)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6::date, $7::time, $8, $9, $10, NULLIF($11, ''))
		RETURNING created_at, updated_at
	`, appt.ID, appt.ProfessionalID, appt.ClientID, appt.ClientName, appt.ProcedureID, appt.Date.String(), appt.Time,
		appt.PriceCents, string(appt.Status), string(appt.PaymentStatus), appt.Notes).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, SlotConstraint) {
			return model.Appointment{}, ErrSlotConflict
		}
		return model.Appointment{}, fmt.Errorf("storage: create: %w", err)
	}
	return appt, nil
}

// Update writes the mutable fields. Reviving a cancelled appointment onto a taken slot returns ErrSlotConflict.
func (r *AppointmentRepository) Update(ctx context.Context, tx RowQuerier, appt model.Appointment) (model.Appointment, error) {
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3,
			payment_status = $4,
			price_cents = $5,
			notes = NULLIF($6, ''),
			procedure_id = NULLIF($7, ''),
			updated_at = now()
		WHERE id = $1 AND professional_id = $2
		RETURNING updated_at
	`, appt.ID, appt.ProfessionalID, string(appt.Status), string(appt.PaymentStatus), appt.PriceCents, appt.Notes, appt.ProcedureID).Scan(&appt.UpdatedAt)
	if err != nil {
		switch {
		case db.IsNotFound(err):
			return model.Appointment{}, ErrNotFound
		case db.IsUniqueViolation(err, SlotConstraint):
			return model.Appointment{}, ErrSlotConflict
		}
		return model.Appointment{}, fmt.Errorf("storage: update: %w", err)
	}
	return appt, nil
}

func (r *AppointmentRepository) get(ctx context.Context, q RowQuerier, sql string, args ...any) (model.Appointment, error) {
	appt, err := scanAppointment(q.QueryRow(ctx, sql, args...))
	if err != nil {
		if db.IsNotFound(err) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) list(ctx context.Context, sql string, args ...any) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// scanAppointment leaves Date zero when the stored value cannot be parsed; derivation skips such rows.
func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		appt          model.Appointment
		rawDate       string
		status        string
		paymentStatus string
	)
	if err := row.Scan(
		&appt.ID,
		&appt.ProfessionalID,
		&appt.ClientID,
		&appt.ClientName,
		&appt.ProcedureID,
		&rawDate,
		&appt.Time,
		&appt.PriceCents,
		&status,
		&paymentStatus,
		&appt.Notes,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	); err != nil {
		return model.Appointment{}, err
	}
	if d, err := civil.ParseDate(rawDate); err == nil {
		appt.Date = d
	}
	appt.Status = model.Status(status)
	appt.PaymentStatus = model.PaymentStatus(paymentStatus)
	return appt, nil
}
