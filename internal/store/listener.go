package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jw6ventures/fleetcal/internal/calendar"
	"github.com/jw6ventures/fleetcal/internal/logger"
	"github.com/jw6ventures/fleetcal/internal/scheduler"
)

// NOTIFY channels written by the triggers in 002_change_notify.sql.
const (
	taskChannel    = "task_changes"
	bookingChannel = "booking_changes"
)

const (
	defaultReconnectDelay = 2 * time.Second
	releaseTimeout        = 5 * time.Second
)

// notifyConn is a dedicated connection that can LISTEN. Release returns it
// to the pool; a closed connection is destroyed by the pool instead.
type notifyConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
	Release()
}

type connector func(ctx context.Context) (notifyConn, error)

type pooledConn struct {
	*pgxpool.Conn
}

func (c pooledConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	return c.Conn.Conn().WaitForNotification(ctx)
}

func (c pooledConn) Close(ctx context.Context) error {
	return c.Conn.Conn().Close(ctx)
}

func poolConnector(pool *pgxpool.Pool) connector {
	return func(ctx context.Context) (notifyConn, error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return pooledConn{conn}, nil
	}
}

// listener turns NOTIFY payloads on one channel into scheduler.Change values.
// Each subscription holds its own connection. After a lost connection it
// reconnects and emits a synthetic change so the subscriber refetches
// whatever it missed.
type listener struct {
	connect connector
	channel string
	log     *logger.Logger
	retry   time.Duration
}

func newListener(connect connector, channel string, log *logger.Logger) *listener {
	return &listener{
		connect: connect,
		channel: channel,
		log:     log.With("channel", channel),
		retry:   defaultReconnectDelay,
	}
}

// subscribe blocks until the first LISTEN succeeds, then delivers changes on
// a background goroutine. The returned function stops delivery and waits for
// the goroutine to release its connection.
func (l *listener) subscribe(ctx context.Context, src calendar.SourceType, fn scheduler.ChangeHandler) (func(), error) {
	conn, err := l.listen(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.loop(ctx, conn, src, fn)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}, nil
}

func (l *listener) listen(ctx context.Context) (notifyConn, error) {
	conn, err := l.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", l.channel, err)
	}
	return conn, nil
}

func (l *listener) loop(ctx context.Context, conn notifyConn, src calendar.SourceType, fn scheduler.ChangeHandler) {
	defer func() {
		if conn != nil {
			l.release(conn)
		}
	}()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			l.log.Warn("listen connection lost; reconnecting", "error", err)
			l.discard(conn)
			conn = l.reconnect(ctx)
			if conn == nil {
				return
			}
			fn(scheduler.Change{Source: src})
			continue
		}
		fn(decodeChange(n.Payload, src))
	}
}

// release drops the LISTEN before the connection goes back to the pool, so
// the next borrower never sees this channel's notifications. A connection
// that cannot UNLISTEN is discarded instead.
func (l *listener) release(conn notifyConn) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if _, err := conn.Exec(ctx, "UNLISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		l.log.Warn("unlisten failed; closing connection", "error", err)
		_ = conn.Close(ctx)
	}
	conn.Release()
}

// discard closes a broken connection so the pool destroys it on release.
func (l *listener) discard(conn notifyConn) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	_ = conn.Close(ctx)
	conn.Release()
}

// reconnect retries until LISTEN succeeds or ctx ends, returning nil then.
func (l *listener) reconnect(ctx context.Context) notifyConn {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.retry):
		}
		conn, err := l.listen(ctx)
		if err == nil {
			l.log.Info("listen connection restored")
			return conn
		}
		l.log.Warn("reconnect failed", "error", err)
	}
}

// decodeChange parses a trigger payload. A malformed payload still yields a
// change for the channel's source, since the refetch does not need details.
func decodeChange(payload string, src calendar.SourceType) scheduler.Change {
	var ch scheduler.Change
	if err := json.Unmarshal([]byte(payload), &ch); err != nil || ch.Source != src {
		return scheduler.Change{Source: src}
	}
	return ch
}
