package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/telecare/telemed-api/internal/repository"
)

type userRepository struct {
	base
}

type appointmentRepository struct {
	base
}

type sessionRepository struct {
	base
}

// base resolves the cached gateway connection and bounds every storage
// call with the configured query timeout. No call blocks indefinitely.
type base struct {
	gw           *Gateway
	queryTimeout time.Duration
}

func (b base) conn(ctx context.Context) (*sqlx.DB, context.Context, context.CancelFunc, error) {
	qctx, cancel := context.WithTimeout(ctx, b.queryTimeout)
	db, err := b.gw.Connect(qctx)
	if err != nil {
		cancel()
		return nil, nil, nil, classify(err, "storage")
	}
	return db, qctx, cancel, nil
}

func NewUserRepository(gw *Gateway, queryTimeout time.Duration) repository.UserRepository {
	return &userRepository{base{gw: gw, queryTimeout: queryTimeout}}
}

func NewAppointmentRepository(gw *Gateway, queryTimeout time.Duration) repository.AppointmentRepository {
	return &appointmentRepository{base{gw: gw, queryTimeout: queryTimeout}}
}

func NewSessionRepository(gw *Gateway, queryTimeout time.Duration) repository.SessionRepository {
	return &sessionRepository{base{gw: gw, queryTimeout: queryTimeout}}
}
