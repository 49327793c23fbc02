package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func slot(startHour, endHour int) TimeSlot {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return TimeSlot{
		Start: day.Add(time.Duration(startHour) * time.Hour),
		End:   day.Add(time.Duration(endHour) * time.Hour),
	}
}

func TestTimeSlotOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b TimeSlot
		want bool
	}{
		{"identical", slot(10, 11), slot(10, 11), true},
		{"partial", slot(10, 12), slot(11, 13), true},
		{"contained", slot(10, 14), slot(11, 12), true},
		{"back to back", slot(10, 11), slot(11, 12), false},
		{"disjoint", slot(10, 11), slot(12, 13), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestAppointmentStatusHelpers(t *testing.T) {
	assert.True(t, AppointmentStatusPending.Blocking())
	assert.True(t, AppointmentStatusConfirmed.Blocking())
	assert.False(t, AppointmentStatusCancelled.Blocking())
	assert.False(t, AppointmentStatusCompleted.Blocking())

	assert.True(t, AppointmentStatusCancelled.Terminal())
	assert.True(t, AppointmentStatusCompleted.Terminal())
	assert.False(t, AppointmentStatusPending.Terminal())
	assert.False(t, AppointmentStatusConfirmed.Terminal())
}
