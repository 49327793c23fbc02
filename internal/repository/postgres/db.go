package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/telecare/telemed-api/config"
)

// Gateway is the process-wide handle to the store. The connection is
// opened lazily on first use; concurrent first callers wait on the same
// in-flight attempt instead of racing to open duplicates, and a failed
// attempt clears the marker so the next caller retries.
type Gateway struct {
	cfg config.DatabaseConfig

	mu       sync.Mutex
	db       *sqlx.DB
	inflight chan struct{}
	err      error
}

func NewGateway(cfg config.DatabaseConfig) *Gateway {
	return &Gateway{cfg: cfg}
}

// Connect returns the cached connection, establishing it under the
// configured timeout if this is the first use.
func (g *Gateway) Connect(ctx context.Context) (*sqlx.DB, error) {
	g.mu.Lock()
	if g.db != nil {
		db := g.db
		g.mu.Unlock()
		return db, nil
	}

	if g.inflight != nil {
		// Another caller is already connecting; wait for it.
		wait := g.inflight
		g.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		g.mu.Lock()
		db, err := g.db, g.err
		g.mu.Unlock()
		if db == nil && err == nil {
			err = fmt.Errorf("connection attempt aborted")
		}
		return db, err
	}

	done := make(chan struct{})
	g.inflight = done
	g.mu.Unlock()

	db, err := g.open(ctx)

	g.mu.Lock()
	g.db, g.err = db, err
	g.inflight = nil
	close(done)
	g.mu.Unlock()

	return db, err
}

func (g *Gateway) open(ctx context.Context) (*sqlx.DB, error) {
	connectCtx, cancel := context.WithTimeout(ctx, g.cfg.ConnectTimeout)
	defer cancel()

	db, err := sqlx.ConnectContext(connectCtx, "postgres", g.cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Close tears down the cached connection.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.db == nil {
		return nil
	}
	err := g.db.Close()
	g.db = nil
	g.err = nil
	return err
}

// Ping reports whether the store is reachable, for readiness checks.
func (g *Gateway) Ping(ctx context.Context) error {
	db, err := g.Connect(ctx)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}
