package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/telecare/telemed-api/internal/model"
	"github.com/telecare/telemed-api/pkg/errors"
)

const appointmentColumns = `
	id, doctor_id, patient_id, start_time, end_time, status,
	reason, cancel_reason, created_at, updated_at
`

// overlapExists is the conflict predicate: another blocking appointment
// for the same doctor whose half-open interval intersects the slot.
// Back-to-back slots (end = next start) pass.
const overlapExists = `
	SELECT 1 FROM appointments b
	WHERE b.doctor_id = %s
	AND b.id <> %s
	AND b.status IN ('pending', 'confirmed')
	AND b.start_time < %s
	AND b.end_time > %s
`

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	db, qctx, cancel, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var apt model.Appointment
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	if err := db.GetContext(qctx, &apt, query, id); err != nil {
		return nil, classify(err, "appointment")
	}
	return &apt, nil
}

func (r *appointmentRepository) CreateIfFree(ctx context.Context, apt *model.Appointment) error {
	db, qctx, cancel, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	apt.ID = uuid.New()
	apt.Status = model.AppointmentStatusPending
	apt.CreatedAt = time.Now()
	apt.UpdatedAt = apt.CreatedAt

	// Conditional insert: the row lands only if no blocking appointment
	// overlaps. The exclusion constraint on the table backstops the
	// race between two concurrent inserts that both saw a free slot.
	query := `
		INSERT INTO appointments (
			id, doctor_id, patient_id, start_time, end_time, status,
			reason, created_at, updated_at
		)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9
		WHERE NOT EXISTS (` +
		fmt.Sprintf(overlapExists, "$2", "$1", "$5", "$4") + `
		)
	`
	result, err := db.ExecContext(qctx, query,
		apt.ID, apt.DoctorID, apt.PatientID,
		apt.StartTime, apt.EndTime, apt.Status,
		apt.Reason, apt.CreatedAt, apt.UpdatedAt,
	)
	if err != nil {
		return classify(err, "appointment")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return classify(err, "appointment")
	}
	if rows == 0 {
		return errors.Conflict("slot overlaps an existing appointment")
	}
	return nil
}

func (r *appointmentRepository) Confirm(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	db, qctx, cancel, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	// CAS pending -> confirmed; the overlap invariant is re-checked in
	// the same statement so confirmation cannot commit a conflict.
	query := `
		UPDATE appointments a
		SET status = 'confirmed', updated_at = $2
		WHERE a.id = $1
		AND a.status = 'pending'
		AND NOT EXISTS (` +
		fmt.Sprintf(overlapExists, "a.doctor_id", "a.id", "a.end_time", "a.start_time") + `
		)
		RETURNING ` + appointmentColumns

	var apt model.Appointment
	err = db.GetContext(qctx, &apt, query, id, time.Now())
	if err == nil {
		return &apt, nil
	}
	if !stderrors.Is(err, sql.ErrNoRows) {
		return nil, classify(err, "appointment")
	}

	// CAS missed: inspect the current row to decide why.
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == model.AppointmentStatusConfirmed {
		return current, nil // already confirmed, idempotent
	}
	return nil, errors.Conflict(fmt.Sprintf("appointment cannot be confirmed from status %q", current.Status))
}

func (r *appointmentRepository) Cancel(ctx context.Context, id uuid.UUID, reason *string) (*model.Appointment, error) {
	db, qctx, cancel, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	query := `
		UPDATE appointments
		SET status = 'cancelled', cancel_reason = $2, updated_at = $3
		WHERE id = $1
		AND status IN ('pending', 'confirmed')
		RETURNING ` + appointmentColumns

	var apt model.Appointment
	err = db.GetContext(qctx, &apt, query, id, reason, time.Now())
	if err == nil {
		return &apt, nil
	}
	if !stderrors.Is(err, sql.ErrNoRows) {
		return nil, classify(err, "appointment")
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == model.AppointmentStatusCancelled {
		return current, nil // already cancelled, idempotent
	}
	return nil, errors.Conflict("cannot cancel a completed appointment")
}

func (r *appointmentRepository) Reschedule(ctx context.Context, id uuid.UUID, newStart, newEnd time.Time) (*model.Appointment, error) {
	db, qctx, cancel, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	// One conditional update: the interval moves only if the target
	// slot is free. On a miss the original row is untouched, so there
	// is no partial effect to compensate.
	query := `
		UPDATE appointments a
		SET start_time = $2, end_time = $3, updated_at = $4
		WHERE a.id = $1
		AND a.status IN ('pending', 'confirmed')
		AND NOT EXISTS (` +
		fmt.Sprintf(overlapExists, "a.doctor_id", "a.id", "$3", "$2") + `
		)
		RETURNING ` + appointmentColumns

	var apt model.Appointment
	err = db.GetContext(qctx, &apt, query, id, newStart, newEnd, time.Now())
	if err == nil {
		return &apt, nil
	}
	if !stderrors.Is(err, sql.ErrNoRows) {
		return nil, classify(err, "appointment")
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, errors.Conflict(fmt.Sprintf("appointment in status %q cannot be rescheduled", current.Status))
	}
	return nil, errors.Conflict("new slot overlaps an existing appointment")
}

func (r *appointmentRepository) Complete(ctx context.Context, id uuid.UUID) error {
	db, qctx, cancel, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	query := `
		UPDATE appointments
		SET status = 'completed', updated_at = $2
		WHERE id = $1
		AND status = 'confirmed'
	`
	// Zero rows is fine: the appointment is already terminal and a
	// repeated session end must stay idempotent.
	if _, err := db.ExecContext(qctx, query, id, time.Now()); err != nil {
		return classify(err, "appointment")
	}
	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	db, qctx, cancel, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filters.DoctorID != uuid.Nil {
		query += fmt.Sprintf(" AND doctor_id = $%d", argCount)
		args = append(args, filters.DoctorID)
		argCount++
	}
	if filters.PatientID != uuid.Nil {
		query += fmt.Sprintf(" AND patient_id = $%d", argCount)
		args = append(args, filters.PatientID)
		argCount++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filters.Status)
		argCount++
	}
	if !filters.From.IsZero() {
		query += fmt.Sprintf(" AND start_time >= $%d", argCount)
		args = append(args, filters.From)
		argCount++
	}
	if !filters.To.IsZero() {
		query += fmt.Sprintf(" AND start_time < $%d", argCount)
		args = append(args, filters.To)
		argCount++
	}

	query += " ORDER BY start_time ASC"

	appointments := []*model.Appointment{}
	if err := db.SelectContext(qctx, &appointments, query, args...); err != nil {
		return nil, classify(err, "appointments")
	}
	return appointments, nil
}
