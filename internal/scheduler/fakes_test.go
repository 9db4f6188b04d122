package scheduler

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/jw6ventures/fleetcal/internal/calendar"
)

var errBackendDown = errors.New("backend unavailable")

type fakeTasks struct {
	mu      sync.Mutex
	tasks   map[string]calendar.Task
	nextID  int
	listErr error
	failOps map[string]error

	creates []calendar.TaskFields
	updates map[string][]calendar.TaskFields
	deletes []string

	handler ChangeHandler
	unsubs  int
}

func newFakeTasks(tasks ...calendar.Task) *fakeTasks {
	f := &fakeTasks{
		tasks:   make(map[string]calendar.Task),
		nextID:  100,
		failOps: make(map[string]error),
		updates: make(map[string][]calendar.TaskFields),
	}
	for _, t := range tasks {
		f.tasks[t.ID] = t
	}
	return f
}

func (f *fakeTasks) fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOps[op] = err
}

func (f *fakeTasks) List(ctx context.Context, statuses ...string) ([]calendar.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	allowed := make(map[string]bool)
	for _, s := range statuses {
		allowed[s] = true
	}
	var out []calendar.Task
	for _, t := range f.tasks {
		if len(allowed) > 0 && !allowed[t.Status] {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTasks) Create(ctx context.Context, fields calendar.TaskFields) (calendar.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, fields)
	if err := f.failOps["create"]; err != nil {
		return calendar.Task{}, err
	}
	f.nextID++
	t := taskFromFields(strconv.Itoa(f.nextID), fields)
	f.tasks[t.ID] = t
	return t, nil
}

func (f *fakeTasks) Update(ctx context.Context, id string, fields calendar.TaskFields) (calendar.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[id] = append(f.updates[id], fields)
	if err := f.failOps["update"]; err != nil {
		return calendar.Task{}, err
	}
	prev, ok := f.tasks[id]
	if !ok {
		return calendar.Task{}, errors.New("no such task")
	}
	t := taskFromFields(id, fields)
	if fields.Status == "" {
		t.Status = prev.Status
	}
	t.CreatedAt = prev.CreatedAt
	f.tasks[id] = t
	return t, nil
}

func (f *fakeTasks) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	if err := f.failOps["delete"]; err != nil {
		return err
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeTasks) Subscribe(ctx context.Context, fn ChangeHandler) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOps["subscribe"]; err != nil {
		return nil, err
	}
	f.handler = fn
	return func() {
		f.mu.Lock()
		f.unsubs++
		f.handler = nil
		f.mu.Unlock()
	}, nil
}

func (f *fakeTasks) emit(ch Change) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(ch)
	}
}

func (f *fakeTasks) updatesFor(id string) []calendar.TaskFields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]calendar.TaskFields(nil), f.updates[id]...)
}

func (f *fakeTasks) deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

func taskFromFields(id string, fields calendar.TaskFields) calendar.Task {
	status := fields.Status
	if status == "" {
		status = calendar.TaskPending
	}
	return calendar.Task{
		ID:          id,
		Title:       fields.Title,
		Description: fields.Description,
		Status:      status,
		Priority:    fields.Priority,
		DueAt:       fields.DueAt,
		DueDate:     fields.DueDate,
		VehicleRef:  fields.VehicleRef,
		AssigneeRef: fields.AssigneeRef,
		CreatedAt:   time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC),
	}
}

type fakeBookings struct {
	mu       sync.Mutex
	bookings []calendar.Booking
	listErr  error
	subErr   error
	handler  ChangeHandler
	lists    int
}

func (f *fakeBookings) List(ctx context.Context) ([]calendar.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]calendar.Booking(nil), f.bookings...), nil
}

func (f *fakeBookings) Subscribe(ctx context.Context, fn ChangeHandler) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.handler = fn
	return func() {
		f.mu.Lock()
		f.handler = nil
		f.mu.Unlock()
	}, nil
}

func (f *fakeBookings) set(bookings []calendar.Booking, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookings = bookings
	f.listErr = err
}

func (f *fakeBookings) emit(ch Change) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(ch)
	}
}
