package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telecare/telemed-api/internal/model"
	"github.com/telecare/telemed-api/internal/repository"
	"github.com/telecare/telemed-api/internal/service/rbac"
	"github.com/telecare/telemed-api/pkg/errors"
	"github.com/telecare/telemed-api/pkg/metrics"
)

// roomIDAttempts bounds regeneration when a generated room id collides.
const roomIDAttempts = 3

// Service drives a video session through waiting -> active -> ended,
// strictly forward. Every transition is one conditional write.
type Service struct {
	repo         repository.SessionRepository
	appointments repository.AppointmentRepository
	rbac         *rbac.Service
	metrics      *metrics.Metrics
	logger       *zerolog.Logger
	now          func() time.Time
	newRoomID    func() string
}

func NewService(repo repository.SessionRepository, appointments repository.AppointmentRepository, rbacSvc *rbac.Service, m *metrics.Metrics, logger *zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		appointments: appointments,
		rbac:         rbacSvc,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
		newRoomID:    func() string { return "room-" + uuid.NewString() },
	}
}

// Create opens a waiting session for a confirmed appointment. Sessions
// are one-to-one with appointments and room ids are unique across all
// sessions ever created; a collision regenerates, never overwrites.
func (s *Service) Create(ctx context.Context, callerRole model.Role, appointmentID uuid.UUID) (*model.VideoSession, error) {
	if !s.rbac.HasPermission(callerRole, model.PermJoinSession) {
		return nil, errors.Permission("role is not allowed to open sessions")
	}

	apt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if apt.Status != model.AppointmentStatusConfirmed {
		return nil, errors.Validation(fmt.Sprintf("appointment must be confirmed to open a session, is %q", apt.Status))
	}

	if _, err := s.repo.GetByAppointment(ctx, appointmentID); err == nil {
		return nil, errors.Conflict("a session already exists for this appointment")
	} else if !errors.IsKind(err, errors.KindNotFound) {
		return nil, err
	}

	session := &model.VideoSession{
		AppointmentID: appointmentID,
		DoctorID:      apt.DoctorID,
		PatientID:     apt.PatientID,
	}

	var lastErr error
	for attempt := 0; attempt < roomIDAttempts; attempt++ {
		session.RoomID = s.newRoomID()
		lastErr = s.repo.Create(ctx, session)
		if lastErr == nil {
			s.logger.Info().
				Str("room_id", session.RoomID).
				Str("appointment_id", appointmentID.String()).
				Msg("session created")
			return session, nil
		}
		if !errors.IsKind(lastErr, errors.KindConflict) {
			return nil, lastErr
		}
		// Conflict: either the room id collided (retry with a fresh
		// one) or another caller created the appointment's session
		// first (the retry will hit the same unique index and give up).
	}
	return nil, lastErr
}

// Join signals a participant entering the room. The first join moves
// waiting to active and stamps startedAt exactly once; later joins are
// no-ops. Joining an ended session fails.
func (s *Service) Join(ctx context.Context, callerRole model.Role, roomID string) (*model.VideoSession, error) {
	if !s.rbac.HasPermission(callerRole, model.PermJoinSession) {
		return nil, errors.Permission("role is not allowed to join sessions")
	}

	session, err := s.repo.Activate(ctx, roomID, s.now())
	if err == nil {
		s.metrics.SessionsStarted.Inc()
		return session, nil
	}
	if !errors.IsKind(err, errors.KindConflict) {
		return nil, err
	}

	// CAS missed: the session is already past waiting.
	current, err := s.repo.GetByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case model.SessionStatusActive:
		return current, nil // second participant, nothing to change
	case model.SessionStatusEnded:
		return nil, errors.SessionClosed("cannot join an ended session")
	default:
		return nil, errors.Conflict("session is in an unexpected state")
	}
}

// End terminates the session and fixes its billable duration. Ending a
// session that never activated yields zero minutes; ending an
// activation-ended session also completes the linked appointment.
// Ending twice returns the stored record unchanged.
func (s *Service) End(ctx context.Context, callerRole model.Role, roomID string) (*model.VideoSession, error) {
	if !s.rbac.HasPermission(callerRole, model.PermJoinSession) {
		return nil, errors.Permission("role is not allowed to end sessions")
	}

	session, err := s.repo.End(ctx, roomID, s.now())
	if err != nil {
		if errors.IsKind(err, errors.KindConflict) {
			// Already ended: return the stored record, but re-run the
			// appointment completion first. A prior attempt may have
			// ended the session and then failed before completing, and
			// this retry is the only chance to pick that up.
			current, getErr := s.repo.GetByRoom(ctx, roomID)
			if getErr != nil {
				return nil, getErr
			}
			if err := s.completeAppointment(ctx, current); err != nil {
				return nil, err
			}
			return current, nil
		}
		return nil, err
	}

	s.metrics.SessionsEnded.Inc()
	s.metrics.SessionDuration.Observe(float64(session.DurationMinutes))

	if err := s.completeAppointment(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("room_id", roomID).
		Int("duration_minutes", session.DurationMinutes).
		Msg("session ended")
	return session, nil
}

// completeAppointment marks the linked appointment completed for a
// session that actually activated. The underlying update is CAS-guarded
// on confirmed, so repeating it is safe; a failure here is surfaced so
// the caller retries End and the completion with it.
func (s *Service) completeAppointment(ctx context.Context, session *model.VideoSession) error {
	if session.StartedAt == nil {
		return nil
	}
	if err := s.appointments.Complete(ctx, session.AppointmentID); err != nil {
		s.logger.Error().Err(err).
			Str("appointment_id", session.AppointmentID.String()).
			Msg("failed to complete appointment after session end")
		return err
	}
	return nil
}

// FindByAppointment returns the session opened for an appointment.
func (s *Service) FindByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.VideoSession, error) {
	return s.repo.GetByAppointment(ctx, appointmentID)
}

// FindByRoom returns the session behind a room id.
func (s *Service) FindByRoom(ctx context.Context, roomID string) (*model.VideoSession, error) {
	return s.repo.GetByRoom(ctx, roomID)
}

// FindByStatus lists sessions in one lifecycle state.
func (s *Service) FindByStatus(ctx context.Context, status model.SessionStatus) ([]*model.VideoSession, error) {
	if !status.Valid() {
		return nil, errors.Validation(fmt.Sprintf("unknown session status %q", status))
	}
	return s.repo.ListByStatus(ctx, status)
}
