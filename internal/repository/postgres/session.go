package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/telecare/telemed-api/internal/model"
	"github.com/telecare/telemed-api/pkg/errors"
)

const sessionColumns = `
	id, appointment_id, doctor_id, patient_id, room_id, status,
	started_at, ended_at, duration_minutes, created_at, updated_at
`

func (r *sessionRepository) GetByRoom(ctx context.Context, roomID string) (*model.VideoSession, error) {
	db, qctx, cancel, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var session model.VideoSession
	query := `SELECT ` + sessionColumns + ` FROM video_sessions WHERE room_id = $1`
	if err := db.GetContext(qctx, &session, query, roomID); err != nil {
		return nil, classify(err, "session")
	}
	return &session, nil
}

func (r *sessionRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.VideoSession, error) {
	db, qctx, cancel, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var session model.VideoSession
	query := `SELECT ` + sessionColumns + ` FROM video_sessions WHERE appointment_id = $1`
	if err := db.GetContext(qctx, &session, query, appointmentID); err != nil {
		return nil, classify(err, "session")
	}
	return &session, nil
}

func (r *sessionRepository) Create(ctx context.Context, session *model.VideoSession) error {
	db, qctx, cancel, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	session.ID = uuid.New()
	session.Status = model.SessionStatusWaiting
	session.CreatedAt = time.Now()
	session.UpdatedAt = session.CreatedAt

	// Unique indexes on room_id and appointment_id make this the
	// uniqueness primitive: a duplicate of either surfaces as a
	// conflict, never a silent overwrite.
	query := `
		INSERT INTO video_sessions (
			id, appointment_id, doctor_id, patient_id, room_id, status,
			duration_minutes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8)
	`
	_, err = db.ExecContext(qctx, query,
		session.ID, session.AppointmentID, session.DoctorID, session.PatientID,
		session.RoomID, session.Status, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return classify(err, "session")
	}
	return nil
}

func (r *sessionRepository) Activate(ctx context.Context, roomID string, startedAt time.Time) (*model.VideoSession, error) {
	db, qctx, cancel, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	// CAS waiting -> active. started_at is stamped exactly once; a
	// second join misses the guard and reads the current row instead.
	query := `
		UPDATE video_sessions
		SET status = 'active', started_at = $2, updated_at = $3
		WHERE room_id = $1
		AND status = 'waiting'
		RETURNING ` + sessionColumns

	var session model.VideoSession
	err = db.GetContext(qctx, &session, query, roomID, startedAt, time.Now())
	if err == nil {
		return &session, nil
	}
	if !stderrors.Is(err, sql.ErrNoRows) {
		return nil, classify(err, "session")
	}
	return nil, errors.Conflict("session is not waiting")
}

func (r *sessionRepository) End(ctx context.Context, roomID string, endedAt time.Time) (*model.VideoSession, error) {
	db, qctx, cancel, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	// CAS waiting|active -> ended. ended_at and the duration are set in
	// the same statement, so a cancelled request cannot leave a
	// half-written terminal state. A never-activated session (no-show)
	// bills zero minutes.
	query := `
		UPDATE video_sessions
		SET status = 'ended',
			ended_at = $2,
			duration_minutes = CASE
				WHEN started_at IS NULL THEN 0
				ELSE GREATEST(0, ROUND(EXTRACT(EPOCH FROM ($2::timestamptz - started_at)) / 60)::int)
			END,
			updated_at = $3
		WHERE room_id = $1
		AND status IN ('waiting', 'active')
		RETURNING ` + sessionColumns

	var session model.VideoSession
	err = db.GetContext(qctx, &session, query, roomID, endedAt, time.Now())
	if err == nil {
		return &session, nil
	}
	if !stderrors.Is(err, sql.ErrNoRows) {
		return nil, classify(err, "session")
	}
	return nil, errors.Conflict("session already ended")
}

func (r *sessionRepository) ListByStatus(ctx context.Context, status model.SessionStatus) ([]*model.VideoSession, error) {
	db, qctx, cancel, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	query := `SELECT ` + sessionColumns + ` FROM video_sessions WHERE status = $1 ORDER BY created_at ASC`
	sessions := []*model.VideoSession{}
	if err := db.SelectContext(qctx, &sessions, query, status); err != nil {
		return nil, classify(err, "sessions")
	}
	return sessions, nil
}
