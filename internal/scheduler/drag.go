package scheduler

import (
	"context"

	"github.com/jw6ventures/fleetcal/internal/calendar"
	"github.com/jw6ventures/fleetcal/internal/metrics"
)

type dragSession struct {
	eventID     string
	originDate  calendar.Date
	originStart string

	hovering   bool
	hoverDate  calendar.Date
	hoverStart string
}

// DragState is a snapshot of the drag session for highlighting.
type DragState struct {
	Active      bool          `json:"active"`
	EventID     string        `json:"eventId,omitempty"`
	OriginDate  calendar.Date `json:"originDate,omitempty"`
	OriginStart string        `json:"originStart,omitempty"`
	Hovering    bool          `json:"hovering"`
	HoverDate   calendar.Date `json:"hoverDate,omitempty"`
	HoverStart  string        `json:"hoverStart,omitempty"`
}

// BeginDrag starts the single drag session. Read-only events and a second
// concurrent drag are rejected without changing the current session.
func (e *Engine) BeginDrag(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.drag != nil {
		metrics.ObserveDrag("rejected")
		return ErrDragInProgress
	}
	ev, ok := e.store.Get(id)
	if !ok {
		return ErrEventNotFound
	}
	if !ev.Draggable() {
		metrics.ObserveDrag("rejected")
		return ErrReadOnly
	}

	e.drag = &dragSession{
		eventID:     ev.ID,
		originDate:  ev.Date,
		originStart: ev.StartTime,
	}
	return nil
}

// HoverSlot records the candidate drop target. An empty startTime targets a
// whole day (month view).
func (e *Engine) HoverSlot(date calendar.Date, startTime string) error {
	if err := checkTarget(date, startTime); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.drag == nil {
		return ErrNotDragging
	}
	e.drag.hovering = true
	e.drag.hoverDate = date
	e.drag.hoverStart = startTime
	return nil
}

// Drop ends the session on the target slot and reports whether the event
// moved. Dropping on the origin slot counts as a cancel. An empty startTime
// keeps the event's time and changes only the day. Task-backed events are
// persisted in the background; a failure leaves the local move in place.
func (e *Engine) Drop(date calendar.Date, startTime string) (bool, error) {
	if err := checkTarget(date, startTime); err != nil {
		return false, err
	}

	e.mu.Lock()
	session := e.drag
	if session == nil {
		e.mu.Unlock()
		return false, ErrNotDragging
	}
	e.drag = nil

	if date == session.originDate && (startTime == "" || startTime == session.originStart) {
		e.mu.Unlock()
		metrics.ObserveDrag("cancelled")
		return false, nil
	}

	ev, ok := e.store.Get(session.eventID)
	if !ok {
		// Evicted by a refetch mid-drag.
		e.mu.Unlock()
		metrics.ObserveDrag("cancelled")
		return false, ErrEventNotFound
	}

	moved := reschedule(ev, date, startTime)
	e.store.UpsertLocal(moved)
	if e.editor != nil && e.editor.Event.ID == moved.ID {
		e.editor.Event = moved
	}
	e.mu.Unlock()

	metrics.ObserveDrag("moved")
	e.log.Debug("event rescheduled", "event_id", moved.ID, "date", moved.Date.String(), "start", moved.StartTime)

	if moved.Source == calendar.SourceTask && moved.SourceRecordID != "" {
		fields := e.taskFields(moved, false)
		recordID := moved.SourceRecordID
		e.persistAsync("task.update", moved.ID, func(ctx context.Context) error {
			_, err := e.tasks.Update(ctx, recordID, fields)
			return err
		})
	}
	return true, nil
}

// CancelDrag abandons the session. Nothing was mutated, so nothing is
// restored.
func (e *Engine) CancelDrag() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.drag == nil {
		return ErrNotDragging
	}
	e.drag = nil
	metrics.ObserveDrag("cancelled")
	return nil
}

func (e *Engine) DragState() DragState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.drag == nil {
		return DragState{}
	}
	return DragState{
		Active:      true,
		EventID:     e.drag.eventID,
		OriginDate:  e.drag.originDate,
		OriginStart: e.drag.originStart,
		Hovering:    e.drag.hovering,
		HoverDate:   e.drag.hoverDate,
		HoverStart:  e.drag.hoverStart,
	}
}

// reschedule moves ev to date/startTime, keeping its duration.
func reschedule(ev calendar.Event, date calendar.Date, startTime string) calendar.Event {
	ev.Date = date
	if startTime == "" || startTime == ev.StartTime {
		return ev
	}

	duration := 60
	if ev.StartTime != "" {
		start, errStart := calendar.ClockMinutes(ev.StartTime)
		end, errEnd := calendar.ClockMinutes(ev.EffectiveEndTime())
		if errStart == nil && errEnd == nil && end > start {
			duration = end - start
		}
	}
	ev.StartTime = startTime
	if end, err := calendar.AddMinutes(startTime, duration); err == nil {
		ev.EndTime = end
	}
	return ev
}

func checkTarget(date calendar.Date, startTime string) error {
	if date.IsZero() {
		return ErrInvalidSlot
	}
	if startTime != "" && !calendar.ValidClock(startTime) {
		return ErrInvalidSlot
	}
	return nil
}
