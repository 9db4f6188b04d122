package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jw6ventures/fleetcal/internal/logger"
)

// DB is the subset of pgxpool.Pool used by the repositories.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Store aggregates repositories backed by PostgreSQL.
type Store struct {
	pool DB

	Tasks       *TaskRepo
	Bookings    *BookingRepo
	Maintenance *MaintenanceRepo
}

// New wires concrete repository implementations with the shared connection
// pool. Change subscriptions hold a dedicated pool connection each.
func New(pool *pgxpool.Pool, log *logger.Logger) *Store {
	return newStore(pool, poolConnector(pool), log)
}

func newStore(db DB, connect connector, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("store")
	return &Store{
		pool:        db,
		Tasks:       &TaskRepo{db: db, changes: newListener(connect, taskChannel, log)},
		Bookings:    &BookingRepo{db: db, changes: newListener(connect, bookingChannel, log)},
		Maintenance: &MaintenanceRepo{db: db},
	}
}

// HealthCheck verifies that the underlying database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	defer observeDB(ctx, "db.healthcheck")()
	return s.pool.Ping(ctx)
}
