package scheduler

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

const (
	MinAppointmentDuration = 15 * time.Minute
	MaxAppointmentDuration = 4 * time.Hour
)

// Service implements the booking protocol. Slot validation checks only
// existing appointments; there is no working-hours calendar input, so
// callers must not assume one was consulted.
type Service struct {
	repo    repository.AppointmentRepository
	users   repository.UserRepository
	rbac    *rbac.Service
	metrics *metrics.Metrics
	logger  *zerolog.Logger
	now     func() time.Time
}

func NewService(repo repository.AppointmentRepository, users repository.UserRepository, rbacSvc *rbac.Service, m *metrics.Metrics, logger *zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		rbac:    rbacSvc,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Book reserves a pending appointment for the slot. The insert is a
// single conditional write, so of two concurrent calls for overlapping
// slots exactly one succeeds and the other observes a conflict.
func (s *Service) Book(ctx context.Context, callerID uuid.UUID, callerRole model.Role, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	if !s.rbac.HasPermission(callerRole, model.PermBookAppointment) {
		return nil, errors.Permission("role is not allowed to book appointments")
	}

	if err := s.validateSlot(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	doctor, err := s.users.Get(ctx, req.DoctorID)
	if err != nil {
		if errors.IsKind(err, errors.KindNotFound) {
			return nil, errors.Validation("doctor does not exist")
		}
		return nil, fmt.Errorf("failed to look up doctor: %w", err)
	}
	if doctor.Role != model.RoleDoctor || !doctor.IsActive {
		return nil, errors.Validation("doctor is not active")
	}

	apt := &model.Appointment{
		DoctorID:  req.DoctorID,
		PatientID: callerID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Reason:    req.Reason,
	}

	if err := s.repo.CreateIfFree(ctx, apt); err != nil {
		if errors.IsKind(err, errors.KindConflict) {
			s.metrics.BookingConflicts.Inc()
			s.metrics.BookingsTotal.WithLabelValues("conflict").Inc()
		} else {
			s.metrics.BookingsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	s.metrics.BookingsTotal.WithLabelValues("booked").Inc()
	s.logger.Info().
		Str("appointment_id", apt.ID.String()).
		Str("doctor_id", apt.DoctorID.String()).
		Time("start", apt.StartTime).
		Msg("appointment booked")
	return apt, nil
}

// Confirm moves a pending appointment to confirmed. Idempotent on an
// already-confirmed appointment.
func (s *Service) Confirm(ctx context.Context, callerRole model.Role, id uuid.UUID) (*model.Appointment, error) {
	if !s.rbac.HasPermission(callerRole, model.PermManageAppointments) {
		return nil, errors.Permission("role is not allowed to confirm appointments")
	}
	return s.repo.Confirm(ctx, id)
}

// Cancel sets an appointment cancelled. Allowed for managers and for
// the owning patient; idempotent on an already-cancelled appointment.
func (s *Service) Cancel(ctx context.Context, callerID uuid.UUID, callerRole model.Role, id uuid.UUID, reason string) (*model.Appointment, error) {
	if !s.rbac.HasPermission(callerRole, model.PermManageAppointments) {
		apt, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if apt.PatientID != callerID {
			return nil, errors.Permission("only the owning patient may cancel this appointment")
		}
	}

	var cancelReason *string
	if reason != "" {
		cancelReason = &reason
	}
	return s.repo.Cancel(ctx, id, cancelReason)
}

// Reschedule moves an appointment to a new slot as one atomic
// operation; if the new slot conflicts the original stands unchanged.
func (s *Service) Reschedule(ctx context.Context, callerID uuid.UUID, callerRole model.Role, id uuid.UUID, req *model.RescheduleAppointmentRequest) (*model.Appointment, error) {
	if !s.rbac.HasPermission(callerRole, model.PermManageAppointments) {
		apt, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if apt.PatientID != callerID {
			return nil, errors.Permission("only the owning patient may reschedule this appointment")
		}
	}

	if err := s.validateSlot(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	return s.repo.Reschedule(ctx, id, req.StartTime, req.EndTime)
}

// Get fetches one appointment; non-managers only see their own.
func (s *Service) Get(ctx context.Context, callerID uuid.UUID, callerRole model.Role, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.rbac.HasPermission(callerRole, model.PermViewAllAppointments) && apt.PatientID != callerID {
		return nil, errors.Permission("not allowed to view this appointment")
	}
	return apt, nil
}

// List returns appointments matching the filters. Callers without the
// view-all permission are pinned to their own appointments.
func (s *Service) List(ctx context.Context, callerID uuid.UUID, callerRole model.Role, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	if !s.rbac.HasPermission(callerRole, model.PermViewAllAppointments) {
		if !s.rbac.HasPermission(callerRole, model.PermViewOwnAppointments) {
			return nil, errors.Permission("role is not allowed to list appointments")
		}
		filters.PatientID = callerID
	}
	return s.repo.List(ctx, filters)
}

func (s *Service) validateSlot(start, end time.Time) error {
	if !start.Before(end) {
		return errors.Validation("start time must be before end time")
	}
	if !start.After(s.now()) {
		return errors.Validation("appointment cannot be scheduled in the past")
	}
	duration := end.Sub(start)
	if duration < MinAppointmentDuration {
		return errors.Validation(fmt.Sprintf("appointment duration must be at least %v", MinAppointmentDuration))
	}
	if duration > MaxAppointmentDuration {
		return errors.Validation(fmt.Sprintf("appointment duration cannot exceed %v", MaxAppointmentDuration))
	}
	return nil
}
