package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/telecare/telemed-api/internal/model"
)

// UserRepository serves the doctor directory. Read-only: account
// creation and credential handling live outside this core.
type UserRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	ListDoctors(ctx context.Context, specialty string) ([]model.Doctor, error)
	ListSpecialties(ctx context.Context) ([]string, error)
}

// AppointmentRepository owns the appointments table. Every mutation is a
// single conditional write so concurrent callers cannot both succeed on
// conflicting slots.
type AppointmentRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	// CreateIfFree inserts the appointment only if no pending or
	// confirmed appointment for the same doctor overlaps [start,end).
	CreateIfFree(ctx context.Context, apt *model.Appointment) error
	// Confirm flips pending to confirmed, re-checking the overlap
	// invariant in the same statement.
	Confirm(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	// Cancel sets cancelled from pending or confirmed. Cancelling an
	// already-cancelled appointment returns the stored row unchanged.
	Cancel(ctx context.Context, id uuid.UUID, reason *string) (*model.Appointment, error)
	// Reschedule moves the interval in one conditional update; on
	// conflict the row is untouched.
	Reschedule(ctx context.Context, id uuid.UUID, newStart, newEnd time.Time) (*model.Appointment, error)
	// Complete marks a confirmed appointment completed (driven by
	// session end).
	Complete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
}

// SessionRepository owns the video_sessions table.
type SessionRepository interface {
	GetByRoom(ctx context.Context, roomID string) (*model.VideoSession, error)
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.VideoSession, error)
	// Create inserts a waiting session; duplicate room_id or a second
	// session for the same appointment surface as conflict errors.
	Create(ctx context.Context, session *model.VideoSession) error
	// Activate flips waiting to active and stamps started_at, once.
	Activate(ctx context.Context, roomID string, startedAt time.Time) (*model.VideoSession, error)
	// End flips waiting or active to ended, stamping ended_at and
	// computing the rounded duration in the same statement.
	End(ctx context.Context, roomID string, endedAt time.Time) (*model.VideoSession, error)
	ListByStatus(ctx context.Context, status model.SessionStatus) ([]*model.VideoSession, error)
}
