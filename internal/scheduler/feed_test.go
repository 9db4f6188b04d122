package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jw6ventures/fleetcal/internal/calendar"
)

func newTestBridge(tasks *fakeTasks, bookings *fakeBookings) (*Bridge, *calendar.EventStore) {
	store := calendar.NewEventStore()
	return NewBridge(store, calendar.NewNormalizer(time.UTC, nil), tasks, bookings, BridgeOptions{}), store
}

func booking(id, start string) calendar.Booking {
	return calendar.Booking{ID: id, CustomerName: "Cust " + id, StartAt: at(start), Status: "active"}
}

func TestRefreshFailureKeepsPreviousEvents(t *testing.T) {
	bookings := &fakeBookings{bookings: []calendar.Booking{booking("1", "2024-01-20T10:00:00Z")}}
	bridge, store := newTestBridge(newFakeTasks(), bookings)
	require.NoError(t, bridge.Refresh(context.Background(), calendar.SourceBooking))
	before := store.Snapshot()
	require.Len(t, before, 1)

	bookings.set(nil, errBackendDown)
	err := bridge.Refresh(context.Background(), calendar.SourceBooking)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBackendDown)
	assert.Equal(t, before, store.Snapshot())
}

func TestRefreshReplacesOnlyItsSource(t *testing.T) {
	tasks := newFakeTasks(calendar.Task{ID: "1", Title: "a", DueAt: at("2024-01-20T09:00:00Z")})
	bookings := &fakeBookings{bookings: []calendar.Booking{booking("1", "2024-01-20T10:00:00Z"), booking("2", "2024-01-21T10:00:00Z")}}
	bridge, store := newTestBridge(tasks, bookings)
	store.UpsertLocal(calendar.Event{ID: "custom-1", Source: calendar.SourceCustom, Date: jan20})
	require.NoError(t, bridge.RefreshAll(context.Background()))

	counts := store.CountBySource()
	assert.Equal(t, 1, counts[calendar.SourceTask])
	assert.Equal(t, 2, counts[calendar.SourceBooking])
	assert.Equal(t, 1, counts[calendar.SourceCustom])

	bookings.set([]calendar.Booking{booking("3", "2024-01-22T10:00:00Z")}, nil)
	require.NoError(t, bridge.Refresh(context.Background(), calendar.SourceBooking))

	_, ok := store.Get("booking-1")
	assert.False(t, ok)
	_, ok = store.Get("booking-3")
	assert.True(t, ok)
	_, ok = store.Get("task-1")
	assert.True(t, ok)
	_, ok = store.Get("custom-1")
	assert.True(t, ok)
}

func TestRefreshAllJoinsErrors(t *testing.T) {
	tasks := newFakeTasks()
	tasks.listErr = errBackendDown
	bridge, _ := newTestBridge(tasks, &fakeBookings{})

	err := bridge.RefreshAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBackendDown)

	assert.ErrorIs(t, bridge.Refresh(context.Background(), calendar.SourceMaintenance), ErrUnsupportedFeed)
}

func TestRefreshAppliesStatusFilter(t *testing.T) {
	tasks := newFakeTasks(
		calendar.Task{ID: "1", Status: calendar.TaskPending, DueAt: at("2024-01-20T09:00:00Z")},
		calendar.Task{ID: "2", Status: calendar.TaskCompleted, DueAt: at("2024-01-20T09:00:00Z")},
	)
	store := calendar.NewEventStore()
	bridge := NewBridge(store, calendar.NewNormalizer(time.UTC, nil), tasks, &fakeBookings{}, BridgeOptions{
		TaskStatuses: []string{calendar.TaskPending, calendar.TaskInProgress},
	})
	require.NoError(t, bridge.Refresh(context.Background(), calendar.SourceTask))

	_, ok := store.Get("task-1")
	assert.True(t, ok)
	_, ok = store.Get("task-2")
	assert.False(t, ok)
}

func TestNotifyTriggersRefetch(t *testing.T) {
	tasks := newFakeTasks()
	bookings := &fakeBookings{}
	bridge, store := newTestBridge(tasks, bookings)

	require.NoError(t, bridge.Start(context.Background()))
	defer bridge.Stop()

	bookings.set([]calendar.Booking{booking("9", "2024-01-20T10:00:00Z")}, nil)
	bookings.emit(Change{Source: calendar.SourceBooking, Op: OpInsert, RecordID: "9"})

	require.Eventually(t, func() bool {
		_, ok := store.Get("booking-9")
		return ok
	}, time.Second, 5*time.Millisecond)

	tasks.mu.Lock()
	tasks.tasks["5"] = calendar.Task{ID: "5", Title: "new", DueAt: at("2024-01-21T08:00:00Z")}
	tasks.mu.Unlock()
	tasks.emit(Change{Source: calendar.SourceTask, Op: OpUpdate, RecordID: "5"})

	require.Eventually(t, func() bool {
		_, ok := store.Get("task-5")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestNotifyCoalescesQueuedChanges(t *testing.T) {
	bookings := &fakeBookings{}
	bridge, _ := newTestBridge(newFakeTasks(), bookings)

	// Without a running worker, repeated notifications collapse into one
	// pending refetch per source.
	for i := 0; i < 5; i++ {
		bridge.Notify(Change{Source: calendar.SourceBooking, Op: OpUpdate})
	}
	bridge.Notify(Change{Source: calendar.SourceTask, Op: OpDelete})
	bridge.Notify(Change{Source: calendar.SourceMaintenance, Op: OpUpdate})

	assert.Equal(t, []calendar.SourceType{calendar.SourceTask, calendar.SourceBooking}, bridge.takePending())
	assert.Empty(t, bridge.takePending())
}

func TestStartAndStop(t *testing.T) {
	tasks := newFakeTasks()
	bookings := &fakeBookings{}
	bridge, _ := newTestBridge(tasks, bookings)

	require.NoError(t, bridge.Start(context.Background()))
	assert.Error(t, bridge.Start(context.Background()), "second start must fail")
	bridge.Stop()

	tasks.mu.Lock()
	assert.Equal(t, 1, tasks.unsubs)
	assert.Nil(t, tasks.handler)
	tasks.mu.Unlock()

	// Stopping twice is harmless and the bridge can be restarted.
	bridge.Stop()
	require.NoError(t, bridge.Start(context.Background()))
	bridge.Stop()
}

func TestStartUnwindsOnSubscribeFailure(t *testing.T) {
	tasks := newFakeTasks()
	bookings := &fakeBookings{subErr: errBackendDown}
	bridge, _ := newTestBridge(tasks, bookings)

	err := bridge.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBackendDown)

	tasks.mu.Lock()
	assert.Equal(t, 1, tasks.unsubs, "task subscription is released")
	tasks.mu.Unlock()

	bookings.mu.Lock()
	bookings.subErr = nil
	bookings.mu.Unlock()
	require.NoError(t, bridge.Start(context.Background()))
	bridge.Stop()
}

func TestWorkerStopsWithContext(t *testing.T) {
	bridge, _ := newTestBridge(newFakeTasks(), &fakeBookings{})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, bridge.Start(ctx))

	bridge.mu.Lock()
	done := bridge.done
	bridge.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after cancel")
	}
	bridge.Stop()
}

// gatedTasks parks the first List call after it has read the tasks, until
// release is closed.
type gatedTasks struct {
	*fakeTasks
	listed  chan struct{}
	release chan struct{}
	calls   int
}

func (g *gatedTasks) List(ctx context.Context, statuses ...string) ([]calendar.Task, error) {
	tasks, err := g.fakeTasks.List(ctx, statuses...)
	g.fakeTasks.mu.Lock()
	g.calls++
	first := g.calls == 1
	g.fakeTasks.mu.Unlock()
	if first {
		close(g.listed)
		<-g.release
	}
	return tasks, err
}

func TestOverlappingRefreshesKeepNewestList(t *testing.T) {
	inner := newFakeTasks(calendar.Task{ID: "1", Title: "old", DueAt: at("2024-01-20T09:00:00Z")})
	tasks := &gatedTasks{fakeTasks: inner, listed: make(chan struct{}), release: make(chan struct{})}
	store := calendar.NewEventStore()
	bridge := NewBridge(store, calendar.NewNormalizer(time.UTC, nil), tasks, &fakeBookings{}, BridgeOptions{})

	slowDone := make(chan error, 1)
	go func() { slowDone <- bridge.Refresh(context.Background(), calendar.SourceTask) }()
	<-tasks.listed

	inner.mu.Lock()
	task := inner.tasks["1"]
	task.Title = "new"
	inner.tasks["1"] = task
	inner.mu.Unlock()

	fastDone := make(chan error, 1)
	go func() { fastDone <- bridge.Refresh(context.Background(), calendar.SourceTask) }()

	select {
	case <-fastDone:
		t.Fatal("second refresh finished while the first still held its list")
	case <-time.After(50 * time.Millisecond):
	}

	close(tasks.release)
	require.NoError(t, <-slowDone)
	require.NoError(t, <-fastDone)

	ev, ok := store.Get("task-1")
	require.True(t, ok)
	assert.Equal(t, "new", ev.Title)
}

func storeEventsGauge(t *testing.T, source string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "fleetcal_store_events" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "source" && l.GetValue() == source {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("no fleetcal_store_events sample for %s", source)
	return 0
}

func TestRefreshPublishesStoreCounts(t *testing.T) {
	bookings := &fakeBookings{bookings: []calendar.Booking{
		booking("1", "2024-01-20T10:00:00Z"),
		booking("2", "2024-01-21T10:00:00Z"),
		booking("3", "2024-01-22T10:00:00Z"),
	}}
	bridge, _ := newTestBridge(newFakeTasks(), bookings)

	require.NoError(t, bridge.RefreshAll(context.Background()))
	assert.Equal(t, 3.0, storeEventsGauge(t, "booking"))
	assert.Equal(t, 0.0, storeEventsGauge(t, "task"))

	bookings.set([]calendar.Booking{booking("4", "2024-01-23T10:00:00Z")}, nil)
	require.NoError(t, bridge.Refresh(context.Background(), calendar.SourceBooking))
	assert.Equal(t, 1.0, storeEventsGauge(t, "booking"))
}
