package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jw6ventures/fleetcal/internal/calendar"
	"github.com/jw6ventures/fleetcal/internal/logger"
	"github.com/jw6ventures/fleetcal/internal/metrics"
)

// BridgeOptions configures a Bridge.
type BridgeOptions struct {
	Logger *logger.Logger
	// TaskStatuses filters the task refetch; empty means all statuses.
	TaskStatuses []string
}

// Bridge keeps the task and booking events in the store in step with their
// change feeds. Every notification triggers a full refetch of its source;
// payloads are never patched in. Refetches run on a single worker, and
// notifications that arrive while a refetch is queued coalesce into it.
type Bridge struct {
	store    *calendar.EventStore
	norm     *calendar.Normalizer
	tasks    TaskSource
	bookings BookingSource
	log      *logger.Logger
	statuses []string

	// refreshMu holds one lock per source across list and replace, so a
	// slower refetch never overwrites a newer one.
	refreshMu map[calendar.SourceType]*sync.Mutex

	mu      sync.Mutex
	pending map[calendar.SourceType]bool
	wake    chan struct{}
	unsubs  []func()
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewBridge(store *calendar.EventStore, norm *calendar.Normalizer, tasks TaskSource, bookings BookingSource, opts BridgeOptions) *Bridge {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	if norm == nil {
		norm = calendar.NewNormalizer(nil, log)
	}
	return &Bridge{
		store:    store,
		norm:     norm,
		tasks:    tasks,
		bookings: bookings,
		log:      log.Named("changefeed"),
		statuses: opts.TaskStatuses,
		pending:  make(map[calendar.SourceType]bool),
		wake:     make(chan struct{}, 1),
		refreshMu: map[calendar.SourceType]*sync.Mutex{
			calendar.SourceTask:    {},
			calendar.SourceBooking: {},
		},
	}
}

// Start subscribes to both feeds and starts the refetch worker. The worker
// stops when ctx is cancelled or Stop is called.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.done != nil {
		b.mu.Unlock()
		return errors.New("change feed already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	b.mu.Unlock()

	unsubTasks, err := b.tasks.Subscribe(ctx, b.Notify)
	if err != nil {
		b.abort()
		return fmt.Errorf("subscribe to task changes: %w", err)
	}
	unsubBookings, err := b.bookings.Subscribe(ctx, b.Notify)
	if err != nil {
		unsubTasks()
		b.abort()
		return fmt.Errorf("subscribe to booking changes: %w", err)
	}

	b.mu.Lock()
	b.unsubs = []func(){unsubTasks, unsubBookings}
	done := b.done
	b.mu.Unlock()

	go b.run(ctx, done)
	b.log.Info("change feed started")
	return nil
}

// Stop unsubscribes from both feeds and waits for the worker to exit.
func (b *Bridge) Stop() {
	b.mu.Lock()
	unsubs := b.unsubs
	cancel := b.cancel
	done := b.done
	b.unsubs = nil
	b.cancel = nil
	b.done = nil
	b.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (b *Bridge) abort() {
	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.cancel = nil
	b.done = nil
	b.mu.Unlock()
}

// Notify queues a refetch for the change's source. It never blocks.
func (b *Bridge) Notify(ch Change) {
	if ch.Source != calendar.SourceTask && ch.Source != calendar.SourceBooking {
		b.log.Warn("ignoring change for source without feed", "source", ch.Source)
		return
	}
	metrics.ObserveChangeNotification(string(ch.Source))
	b.log.Debug("change received", "source", ch.Source, "op", ch.Op, "record_id", ch.RecordID)

	b.mu.Lock()
	b.pending[ch.Source] = true
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.wake:
		}

		for _, src := range b.takePending() {
			// Failures are logged inside Refresh; the next notification retries.
			_ = b.Refresh(ctx, src)
		}
	}
}

func (b *Bridge) takePending() []calendar.SourceType {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []calendar.SourceType
	for _, src := range []calendar.SourceType{calendar.SourceTask, calendar.SourceBooking} {
		if b.pending[src] {
			out = append(out, src)
			delete(b.pending, src)
		}
	}
	return out
}

// Refresh refetches and renormalizes one source and swaps it into the
// store. On error the store keeps its previous events for that source.
// Refreshes of the same source run one at a time.
func (b *Bridge) Refresh(ctx context.Context, src calendar.SourceType) error {
	lock, ok := b.refreshMu[src]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFeed, src)
	}
	lock.Lock()
	defer lock.Unlock()

	var (
		events []calendar.Event
		err    error
	)
	switch src {
	case calendar.SourceTask:
		var tasks []calendar.Task
		tasks, err = b.tasks.List(ctx, b.statuses...)
		if err == nil {
			events = b.norm.Tasks(tasks)
		}
	case calendar.SourceBooking:
		var bookings []calendar.Booking
		bookings, err = b.bookings.List(ctx)
		if err == nil {
			events = b.norm.Bookings(bookings)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFeed, src)
	}

	metrics.ObserveRefetch(string(src), err)
	if err != nil {
		b.log.Error("refetch failed; keeping previous events", "source", src, "error", err)
		return fmt.Errorf("refetch %s: %w", src, err)
	}

	b.store.ReplaceSource(src, events)
	publishCounts(b.store)
	b.log.Debug("source refreshed", "source", src, "events", len(events))
	return nil
}

// RefreshAll refreshes tasks and bookings, returning every failure.
func (b *Bridge) RefreshAll(ctx context.Context) error {
	return errors.Join(
		b.Refresh(ctx, calendar.SourceTask),
		b.Refresh(ctx, calendar.SourceBooking),
	)
}
