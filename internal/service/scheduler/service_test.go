package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telecare/telemed-api/internal/model"
	"github.com/telecare/telemed-api/internal/service/rbac"
	"github.com/telecare/telemed-api/pkg/errors"
	"github.com/telecare/telemed-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("test", "scheduler")

// fakeAppointmentRepo enforces the same conditional-write contract as
// the postgres repository, serialized by a mutex so concurrent Book
// calls exercise the exactly-one-winner property.
type fakeAppointmentRepo struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*model.Appointment
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (r *fakeAppointmentRepo) overlapsLocked(doctorID uuid.UUID, excludeID uuid.UUID, start, end time.Time) bool {
	for _, apt := range r.appointments {
		if apt.DoctorID != doctorID || apt.ID == excludeID || !apt.Status.Blocking() {
			continue
		}
		if apt.StartTime.Before(end) && apt.EndTime.After(start) {
			return true
		}
	}
	return false
}

func (r *fakeAppointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	apt, ok := r.appointments[id]
	if !ok {
		return nil, errors.NotFound("appointment")
	}
	cp := *apt
	return &cp, nil
}

func (r *fakeAppointmentRepo) CreateIfFree(_ context.Context, apt *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.overlapsLocked(apt.DoctorID, uuid.Nil, apt.StartTime, apt.EndTime) {
		return errors.Conflict("slot overlaps an existing appointment")
	}
	apt.ID = uuid.New()
	apt.Status = model.AppointmentStatusPending
	cp := *apt
	r.appointments[apt.ID] = &cp
	return nil
}

func (r *fakeAppointmentRepo) Confirm(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	apt, ok := r.appointments[id]
	if !ok {
		return nil, errors.NotFound("appointment")
	}
	if apt.Status == model.AppointmentStatusConfirmed {
		cp := *apt
		return &cp, nil
	}
	if apt.Status != model.AppointmentStatusPending {
		return nil, errors.Conflict("appointment cannot be confirmed")
	}
	apt.Status = model.AppointmentStatusConfirmed
	cp := *apt
	return &cp, nil
}

func (r *fakeAppointmentRepo) Cancel(_ context.Context, id uuid.UUID, reason *string) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	apt, ok := r.appointments[id]
	if !ok {
		return nil, errors.NotFound("appointment")
	}
	if apt.Status == model.AppointmentStatusCancelled {
		cp := *apt
		return &cp, nil
	}
	if apt.Status == model.AppointmentStatusCompleted {
		return nil, errors.Conflict("cannot cancel a completed appointment")
	}
	apt.Status = model.AppointmentStatusCancelled
	apt.CancelReason = reason
	cp := *apt
	return &cp, nil
}

func (r *fakeAppointmentRepo) Reschedule(_ context.Context, id uuid.UUID, newStart, newEnd time.Time) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	apt, ok := r.appointments[id]
	if !ok {
		return nil, errors.NotFound("appointment")
	}
	if apt.Status.Terminal() {
		return nil, errors.Conflict("appointment cannot be rescheduled")
	}
	if r.overlapsLocked(apt.DoctorID, id, newStart, newEnd) {
		return nil, errors.Conflict("new slot overlaps an existing appointment")
	}
	apt.StartTime = newStart
	apt.EndTime = newEnd
	cp := *apt
	return &cp, nil
}

func (r *fakeAppointmentRepo) Complete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if apt, ok := r.appointments[id]; ok && apt.Status == model.AppointmentStatusConfirmed {
		apt.Status = model.AppointmentStatusCompleted
	}
	return nil
}

func (r *fakeAppointmentRepo) List(_ context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []*model.Appointment{}
	for _, apt := range r.appointments {
		if filters.DoctorID != uuid.Nil && apt.DoctorID != filters.DoctorID {
			continue
		}
		if filters.PatientID != uuid.Nil && apt.PatientID != filters.PatientID {
			continue
		}
		if filters.Status != "" && apt.Status != filters.Status {
			continue
		}
		cp := *apt
		result = append(result, &cp)
	}
	return result, nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]*model.User
}

func (r *fakeUserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("user")
	}
	return user, nil
}

func (r *fakeUserRepo) ListDoctors(context.Context, string) ([]model.Doctor, error) {
	return nil, nil
}

func (r *fakeUserRepo) ListSpecialties(context.Context) ([]string, error) {
	return nil, nil
}

func newTestService(t *testing.T) (*Service, *fakeAppointmentRepo, uuid.UUID) {
	t.Helper()
	repo := newFakeAppointmentRepo()
	doctorID := uuid.New()
	users := &fakeUserRepo{users: map[uuid.UUID]*model.User{
		doctorID: {Base: model.Base{ID: doctorID}, Role: model.RoleDoctor, IsActive: true},
	}}
	logger := zerolog.Nop()
	svc := NewService(repo, users, rbac.NewService(), testMetrics, &logger)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return svc, repo, doctorID
}

func slot(h, m, durMin int) (time.Time, time.Time) {
	start := time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
	return start, start.Add(time.Duration(durMin) * time.Minute)
}

func TestBook(t *testing.T) {
	svc, _, doctorID := newTestService(t)
	patientID := uuid.New()
	start, end := slot(10, 0, 30)

	apt, err := svc.Book(context.Background(), patientID, model.RolePatient, &model.CreateAppointmentRequest{
		DoctorID:  doctorID,
		StartTime: start,
		EndTime:   end,
		Reason:    "checkup",
	})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusPending, apt.Status)
	assert.Equal(t, patientID, apt.PatientID)
	assert.NotEqual(t, uuid.Nil, apt.ID)
}

func TestBookValidation(t *testing.T) {
	svc, _, doctorID := newTestService(t)
	patientID := uuid.New()

	tests := []struct {
		name       string
		start, end time.Time
		doctor     uuid.UUID
	}{
		{"start after end", time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), doctorID},
		{"start in the past", time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), time.Date(2026, 2, 1, 10, 30, 0, 0, time.UTC), doctorID},
		{"too short", time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 10, 5, 0, 0, time.UTC), doctorID},
		{"unknown doctor", time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC), uuid.New()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Book(context.Background(), patientID, model.RolePatient, &model.CreateAppointmentRequest{
				DoctorID:  tt.doctor,
				StartTime: tt.start,
				EndTime:   tt.end,
			})
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindValidation), "got %v", err)
		})
	}
}

func TestBookPermissionDenied(t *testing.T) {
	svc, _, doctorID := newTestService(t)
	start, end := slot(10, 0, 30)

	_, err := svc.Book(context.Background(), uuid.New(), model.RoleDoctor, &model.CreateAppointmentRequest{
		DoctorID:  doctorID,
		StartTime: start,
		EndTime:   end,
	})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindPermission))
}

func TestBookOverlapConflict(t *testing.T) {
	svc, _, doctorID := newTestService(t)
	start, end := slot(10, 0, 30)

	_, err := svc.Book(context.Background(), uuid.New(), model.RolePatient, &model.CreateAppointmentRequest{
		DoctorID: doctorID, StartTime: start, EndTime: end,
	})
	require.NoError(t, err)

	// Overlapping slot for the same doctor loses.
	overlapStart := start.Add(15 * time.Minute)
	_, err = svc.Book(context.Background(), uuid.New(), model.RolePatient, &model.CreateAppointmentRequest{
		DoctorID: doctorID, StartTime: overlapStart, EndTime: overlapStart.Add(30 * time.Minute),
	})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConflict))
}

func TestBookBackToBackSlots(t *testing.T) {
	svc, _, doctorID := newTestService(t)
	start, end := slot(10, 0, 30)

	_, err := svc.Book(context.Background(), uuid.New(), model.RolePatient, &model.CreateAppointmentRequest{
		DoctorID: doctorID, StartTime: start, EndTime: end,
	})
	require.NoError(t, err)

	// [10:00,10:30) and [10:30,11:00) do not overlap.
	_, err = svc.Book(context.Background(), uuid.New(), model.RolePatient, &model.CreateAppointmentRequest{
		DoctorID: doctorID, StartTime: end, EndTime: end.Add(30 * time.Minute),
	})
	assert.NoError(t, err)
}

func TestBookConcurrentSameSlotOneWinner(t *testing.T) {
	svc, _, doctorID := newTestService(t)
	start, end := slot(10, 0, 30)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Book(context.Background(), uuid.New(), model.RolePatient, &model.CreateAppointmentRequest{
				DoctorID: doctorID, StartTime: start, EndTime: end,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		if err == nil {
			wins++
		} else if errors.IsKind(err, errors.KindConflict) {
			conflicts++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, conflicts)
}

func TestConfirmIdempotent(t *testing.T) {
	svc, _, doctorID := newTestService(t)
	start, end := slot(10, 0, 30)

	apt, err := svc.Book(context.Background(), uuid.New(), model.RolePatient, &model.CreateAppointmentRequest{
		DoctorID: doctorID, StartTime: start, EndTime: end,
	})
	require.NoError(t, err)

	confirmed, err := svc.Confirm(context.Background(), model.RoleDoctor, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, confirmed.Status)

	again, err := svc.Confirm(context.Background(), model.RoleDoctor, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, again.Status)
}

func TestConfirmRequiresManagePermission(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Confirm(context.Background(), model.RolePatient, uuid.New())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindPermission))
}

func TestCancel(t *testing.T) {
	svc, _, doctorID := newTestService(t)
	patientID := uuid.New()
	start, end := slot(10, 0, 30)

	apt, err := svc.Book(context.Background(), patientID, model.RolePatient, &model.CreateAppointmentRequest{
		DoctorID: doctorID, StartTime: start, EndTime: end,
	})
	require.NoError(t, err)

	// Owning patient may cancel without manage permission.
	cancelled, err := svc.Cancel(context.Background(), patientID, model.RolePatient, apt.ID, "conflict of schedule")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "conflict of schedule", *cancelled.CancelReason)

	// Idempotent: a second cancel returns the same cancelled record.
	again, err := svc.Cancel(context.Background(), patientID, model.RolePatient, apt.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, again.Status)
}

func TestCancelByStrangerDenied(t *testing.T) {
	svc, _, doctorID := newTestService(t)
	start, end := slot(10, 0, 30)

	apt, err := svc.Book(context.Background(), uuid.New(), model.RolePatient, &model.CreateAppointmentRequest{
		DoctorID: doctorID, StartTime: start, EndTime: end,
	})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), uuid.New(), model.RolePatient, apt.ID, "")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindPermission))
}

func TestCancelFreesSlot(t *testing.T) {
	svc, _, doctorID := newTestService(t)
	patientID := uuid.New()
	start, end := slot(10, 0, 30)

	apt, err := svc.Book(context.Background(), patientID, model.RolePatient, &model.CreateAppointmentRequest{
		DoctorID: doctorID, StartTime: start, EndTime: end,
	})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), patientID, model.RolePatient, apt.ID, "")
	require.NoError(t, err)

	// Cancelled appointments no longer block the slot.
	_, err = svc.Book(context.Background(), uuid.New(), model.RolePatient, &model.CreateAppointmentRequest{
		DoctorID: doctorID, StartTime: start, EndTime: end,
	})
	assert.NoError(t, err)
}

func TestRescheduleConflictLeavesOriginalUnchanged(t *testing.T) {
	svc, repo, doctorID := newTestService(t)
	patientID := uuid.New()

	start1, end1 := slot(10, 0, 30)
	apt1, err := svc.Book(context.Background(), patientID, model.RolePatient, &model.CreateAppointmentRequest{
		DoctorID: doctorID, StartTime: start1, EndTime: end1,
	})
	require.NoError(t, err)

	start2, end2 := slot(11, 0, 30)
	_, err = svc.Book(context.Background(), uuid.New(), model.RolePatient, &model.CreateAppointmentRequest{
		DoctorID: doctorID, StartTime: start2, EndTime: end2,
	})
	require.NoError(t, err)

	// Moving apt1 onto apt2's slot must fail and leave apt1 untouched.
	_, err = svc.Reschedule(context.Background(), patientID, model.RolePatient, apt1.ID, &model.RescheduleAppointmentRequest{
		StartTime: start2, EndTime: end2,
	})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConflict))

	current, err := repo.Get(context.Background(), apt1.ID)
	require.NoError(t, err)
	assert.True(t, current.StartTime.Equal(start1))
	assert.True(t, current.EndTime.Equal(end1))
	assert.Equal(t, model.AppointmentStatusPending, current.Status)
}

func TestReschedule(t *testing.T) {
	svc, _, doctorID := newTestService(t)
	patientID := uuid.New()

	start, end := slot(10, 0, 30)
	apt, err := svc.Book(context.Background(), patientID, model.RolePatient, &model.CreateAppointmentRequest{
		DoctorID: doctorID, StartTime: start, EndTime: end,
	})
	require.NoError(t, err)

	newStart, newEnd := slot(14, 0, 30)
	moved, err := svc.Reschedule(context.Background(), patientID, model.RolePatient, apt.ID, &model.RescheduleAppointmentRequest{
		StartTime: newStart, EndTime: newEnd,
	})
	require.NoError(t, err)
	assert.True(t, moved.StartTime.Equal(newStart))
	assert.True(t, moved.EndTime.Equal(newEnd))
}

func TestListPinsPatientToOwnAppointments(t *testing.T) {
	svc, _, doctorID := newTestService(t)
	patientID := uuid.New()
	otherID := uuid.New()

	start1, end1 := slot(10, 0, 30)
	_, err := svc.Book(context.Background(), patientID, model.RolePatient, &model.CreateAppointmentRequest{
		DoctorID: doctorID, StartTime: start1, EndTime: end1,
	})
	require.NoError(t, err)

	start2, end2 := slot(11, 0, 30)
	_, err = svc.Book(context.Background(), otherID, model.RolePatient, &model.CreateAppointmentRequest{
		DoctorID: doctorID, StartTime: start2, EndTime: end2,
	})
	require.NoError(t, err)

	mine, err := svc.List(context.Background(), patientID, model.RolePatient, &model.AppointmentFilters{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, patientID, mine[0].PatientID)

	all, err := svc.List(context.Background(), uuid.New(), model.RoleDoctor, &model.AppointmentFilters{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
