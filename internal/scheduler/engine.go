package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jw6ventures/fleetcal/internal/calendar"
	"github.com/jw6ventures/fleetcal/internal/logger"
	"github.com/jw6ventures/fleetcal/internal/metrics"
)

// defaultDraftStart is used when a draft is created from a month cell.
const defaultDraftStart = "09:00"

// Options configures an Engine. Zero values are usable.
type Options struct {
	Logger *logger.Logger
	// OnMaintenanceClick routes activation of a maintenance event to an
	// external detail view.
	OnMaintenanceClick func(maintenanceID string)
	// BaseContext is used for fire-and-forget persistence calls.
	BaseContext context.Context
	Now         func() time.Time
}

// Engine owns the drag session and the editor, and turns user intent into
// event store mutations and task collaborator calls. Local state is applied
// first; collaborator failures are logged and never rolled back.
type Engine struct {
	store *calendar.EventStore
	norm  *calendar.Normalizer
	tasks TaskSource
	log   *logger.Logger

	onMaintenanceClick func(string)
	baseCtx            context.Context
	now                func() time.Time

	mu     sync.Mutex
	drag   *dragSession
	editor *Editor

	pending sync.WaitGroup
}

func New(store *calendar.EventStore, norm *calendar.Normalizer, tasks TaskSource, opts Options) *Engine {
	e := &Engine{
		store:              store,
		norm:               norm,
		tasks:              tasks,
		log:                opts.Logger,
		onMaintenanceClick: opts.OnMaintenanceClick,
		baseCtx:            opts.BaseContext,
		now:                opts.Now,
	}
	if e.log == nil {
		e.log = logger.Nop()
	}
	e.log = e.log.Named("scheduler")
	if e.baseCtx == nil {
		e.baseCtx = context.Background()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.norm == nil {
		e.norm = calendar.NewNormalizer(nil, e.log)
	}
	return e
}

func (e *Engine) Store() *calendar.EventStore {
	return e.store
}

// Wait blocks until every in-flight persistence call has returned.
func (e *Engine) Wait() {
	e.pending.Wait()
}

// SetMaintenance replaces all maintenance events with the caller-supplied list.
func (e *Engine) SetMaintenance(records []calendar.MaintenanceTask) {
	e.store.ReplaceSource(calendar.SourceMaintenance, e.norm.Maintenance(records))
	e.publishCounts()
}

// Editor is the event currently open for editing.
type Editor struct {
	Event    calendar.Event `json:"event"`
	ReadOnly bool           `json:"readOnly"`
	IsNew    bool           `json:"isNew"`
}

// ActivationKind tells presentation code what activating an event did.
type ActivationKind string

const (
	ActivationEditor   ActivationKind = "editor"
	ActivationReadOnly ActivationKind = "read_only"
	ActivationExternal ActivationKind = "external"
)

type Activation struct {
	Kind   ActivationKind `json:"kind"`
	Editor *Editor        `json:"editor,omitempty"`
	// RecordID is set for external activations.
	RecordID string `json:"recordId,omitempty"`
}

// CreateEvent opens a draft custom event. The draft is not stored until
// SaveEvent succeeds.
func (e *Engine) CreateEvent(date calendar.Date, startTime string) (Editor, error) {
	if date.IsZero() {
		return Editor{}, ErrInvalidSlot
	}
	if startTime == "" {
		startTime = defaultDraftStart
	}
	if !calendar.ValidClock(startTime) {
		return Editor{}, ErrInvalidSlot
	}

	draft := calendar.Event{
		ID:         calendar.SourceCustom.IDPrefix() + uuid.NewString(),
		Date:       date,
		StartTime:  startTime,
		Source:     calendar.SourceCustom,
		CategoryID: calendar.CategoryBooking,
	}
	draft.EndTime = draft.EffectiveEndTime()

	ed := Editor{Event: draft, IsNew: true}
	e.mu.Lock()
	e.editor = &ed
	e.mu.Unlock()
	return ed, nil
}

// Activate handles a click on a stored event. Maintenance events are routed
// to OnMaintenanceClick without touching local state; bookings open
// read-only.
func (e *Engine) Activate(id string) (Activation, error) {
	ev, ok := e.store.Get(id)
	if !ok {
		return Activation{}, ErrEventNotFound
	}

	switch ev.Source {
	case calendar.SourceMaintenance:
		if e.onMaintenanceClick != nil {
			e.onMaintenanceClick(ev.SourceRecordID)
		}
		return Activation{Kind: ActivationExternal, RecordID: ev.SourceRecordID}, nil
	case calendar.SourceBooking:
		ed := Editor{Event: ev, ReadOnly: true}
		e.mu.Lock()
		e.editor = &ed
		e.mu.Unlock()
		return Activation{Kind: ActivationReadOnly, Editor: &ed}, nil
	default:
		ed := Editor{Event: ev}
		e.mu.Lock()
		e.editor = &ed
		e.mu.Unlock()
		return Activation{Kind: ActivationEditor, Editor: &ed}, nil
	}
}

// CurrentEditor returns the open editor, if any.
func (e *Engine) CurrentEditor() (Editor, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.editor == nil {
		return Editor{}, false
	}
	return *e.editor, true
}

// CloseEditor discards the open editor without saving.
func (e *Engine) CloseEditor() {
	e.mu.Lock()
	e.editor = nil
	e.mu.Unlock()
}

// SaveEvent persists a task or promotes a custom draft to a task. When the
// collaborator call fails the event is still stored locally and returned
// with a nil error.
func (e *Engine) SaveEvent(ctx context.Context, ev calendar.Event) (calendar.Event, error) {
	if !ev.Source.Writable() {
		return calendar.Event{}, ErrReadOnly
	}
	stored, exists := e.store.Get(ev.ID)
	if exists && !stored.Source.Writable() {
		return calendar.Event{}, ErrReadOnly
	}

	ev.Title = strings.TrimSpace(ev.Title)
	if ev.Title == "" {
		return calendar.Event{}, ErrTitleRequired
	}
	if err := validateSlot(ev); err != nil {
		return calendar.Event{}, err
	}
	if ev.EndTime == "" {
		ev.EndTime = ev.EffectiveEndTime()
	}
	if ev.CategoryID == "" {
		ev.CategoryID = calendar.CategoryBooking
	}
	if !ev.Priority.Valid() {
		ev.Priority = ""
	}

	fields := e.taskFields(ev, exists && stored.Completed)
	var (
		task calendar.Task
		err  error
		op   string
	)
	if ev.Source == calendar.SourceTask && ev.SourceRecordID != "" {
		op = "task.update"
		task, err = e.tasks.Update(ctx, ev.SourceRecordID, fields)
	} else {
		op = "task.create"
		task, err = e.tasks.Create(ctx, fields)
	}

	saved := ev
	if err != nil {
		metrics.ObservePersistFailure(op)
		e.log.Error("persisting event failed; keeping local copy", "event_id", ev.ID, "operation", op, "error", err)
		if ev.SourceRecordID == "" {
			saved.Source = calendar.SourceCustom
		}
		e.store.UpsertLocal(saved)
	} else if normalized, ok := e.norm.Task(task); ok {
		saved = e.withLocalOnly(normalized, ev)
		e.store.Swap(ev.ID, saved)
	} else {
		e.store.UpsertLocal(saved)
	}

	e.mu.Lock()
	if e.editor != nil && e.editor.Event.ID == ev.ID {
		e.editor = nil
	}
	e.mu.Unlock()

	e.publishCounts()
	return saved, nil
}

// DeleteEvent removes the event locally at once; a backing task is deleted
// asynchronously and failures are only logged.
func (e *Engine) DeleteEvent(id string) error {
	ev, ok := e.store.Get(id)
	if !ok {
		return ErrEventNotFound
	}
	if !ev.Source.Writable() {
		return ErrReadOnly
	}

	e.store.RemoveByID(id)

	e.mu.Lock()
	if e.editor != nil && e.editor.Event.ID == id {
		e.editor = nil
	}
	if e.drag != nil && e.drag.eventID == id {
		e.drag = nil
	}
	e.mu.Unlock()

	if ev.SourceRecordID != "" {
		recordID := ev.SourceRecordID
		e.persistAsync("task.delete", ev.ID, func(ctx context.Context) error {
			return e.tasks.Delete(ctx, recordID)
		})
	}
	e.publishCounts()
	return nil
}

// ToggleComplete flips completion of a task or custom event.
func (e *Engine) ToggleComplete(id string) (calendar.Event, error) {
	ev, ok := e.store.Get(id)
	if !ok {
		return calendar.Event{}, ErrEventNotFound
	}
	if !ev.Source.Writable() {
		return calendar.Event{}, ErrReadOnly
	}

	wasCompleted := ev.Completed
	ev.Completed = !ev.Completed
	e.store.UpsertLocal(ev)

	if ev.Source == calendar.SourceTask && ev.SourceRecordID != "" {
		fields := e.taskFields(ev, wasCompleted)
		recordID := ev.SourceRecordID
		e.persistAsync("task.update", ev.ID, func(ctx context.Context) error {
			_, err := e.tasks.Update(ctx, recordID, fields)
			return err
		})
	}
	return ev, nil
}

// taskFields maps an event onto task columns. Status stays empty for an
// open task that was already open, so an update keeps pending vs in_progress.
func (e *Engine) taskFields(ev calendar.Event, wasCompleted bool) calendar.TaskFields {
	fields := calendar.TaskFields{
		Title:       ev.Title,
		Description: ev.Description,
		Priority:    ev.Priority,
		VehicleRef:  ev.VehicleRef,
		AssigneeRef: ev.AssigneeRef,
	}
	if ev.AllDay() {
		fields.DueDate = ev.Date
	} else {
		fields.DueAt = e.dueAt(ev.Date, ev.StartTime)
	}
	switch {
	case ev.Completed:
		fields.Status = calendar.TaskCompleted
	case ev.SourceRecordID == "" || wasCompleted:
		fields.Status = calendar.TaskPending
	}
	return fields
}

// dueAt places startTime on date as wall-clock time in the display
// location, so DST transitions do not shift the stored instant.
func (e *Engine) dueAt(date calendar.Date, startTime string) *time.Time {
	mins, err := calendar.ClockMinutes(startTime)
	if err != nil {
		return nil
	}
	due := time.Date(date.Year, date.Month, date.Day, mins/60, mins%60, 0, 0, e.norm.Location())
	return &due
}

// withLocalOnly carries over fields the task table does not store.
func (e *Engine) withLocalOnly(normalized, local calendar.Event) calendar.Event {
	if local.CategoryID != "" {
		normalized.CategoryID = local.CategoryID
	}
	if normalized.StartTime == local.StartTime && local.EndTime != "" {
		normalized.EndTime = local.EndTime
	}
	return normalized
}

func (e *Engine) persistAsync(op, eventID string, fn func(ctx context.Context) error) {
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		if err := fn(e.baseCtx); err != nil {
			metrics.ObservePersistFailure(op)
			e.log.Error("background persistence failed; local change kept", "operation", op, "event_id", eventID, "error", err)
		}
	}()
}

func (e *Engine) publishCounts() {
	publishCounts(e.store)
}

func publishCounts(store *calendar.EventStore) {
	counts := store.CountBySource()
	labels := make(map[string]int, 4)
	for _, src := range []calendar.SourceType{calendar.SourceTask, calendar.SourceBooking, calendar.SourceMaintenance, calendar.SourceCustom} {
		labels[string(src)] = counts[src]
	}
	metrics.SetStoreEvents(labels)
}

func validateSlot(ev calendar.Event) error {
	if ev.Date.IsZero() {
		return ErrInvalidSlot
	}
	if ev.StartTime != "" && !calendar.ValidClock(ev.StartTime) {
		return ErrInvalidSlot
	}
	if ev.EndTime != "" {
		if !calendar.ValidClock(ev.EndTime) || ev.StartTime == "" || ev.EndTime < ev.StartTime {
			return ErrInvalidSlot
		}
	}
	return nil
}
