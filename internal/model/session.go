package model

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusWaiting SessionStatus = "waiting"
	SessionStatusActive  SessionStatus = "active"
	SessionStatusEnded   SessionStatus = "ended"
)

// Valid reports whether s is a known session status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusWaiting, SessionStatusActive, SessionStatusEnded:
		return true
	}
	return false
}

// VideoSession tracks one consultation room, one-to-one with a confirmed
// appointment. StartedAt is set exactly once on the first join, EndedAt
// exactly once on end; DurationMinutes is authoritative only once ended.
type VideoSession struct {
	Base
	AppointmentID   uuid.UUID     `db:"appointment_id" json:"appointment_id"`
	DoctorID        uuid.UUID     `db:"doctor_id" json:"doctor_id"`
	PatientID       uuid.UUID     `db:"patient_id" json:"patient_id"`
	RoomID          string        `db:"room_id" json:"room_id"`
	Status          SessionStatus `db:"status" json:"status"`
	StartedAt       *time.Time    `db:"started_at" json:"started_at,omitempty"`
	EndedAt         *time.Time    `db:"ended_at" json:"ended_at,omitempty"`
	DurationMinutes int           `db:"duration_minutes" json:"duration_minutes"`
}

type CreateSessionRequest struct {
	AppointmentID uuid.UUID `json:"appointment_id" binding:"required"`
}

type SessionFilters struct {
	AppointmentID uuid.UUID
	Status        SessionStatus
}
