package calendar

import (
	"sort"
	"sync"
)

// EventStore holds the merged in-window events of every source. Each
// mutation runs in one critical section so readers never observe a partial
// replacement.
type EventStore struct {
	mu     sync.RWMutex
	events map[string]Event
}

func NewEventStore() *EventStore {
	return &EventStore{events: make(map[string]Event)}
}

// ReplaceSource swaps every event of src for batch. Events in batch that
// belong to another source are ignored.
func (s *EventStore) ReplaceSource(src SourceType, batch []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, ev := range s.events {
		if ev.Source == src {
			delete(s.events, id)
		}
	}
	for _, ev := range batch {
		if ev.Source != src {
			continue
		}
		s.events[ev.ID] = ev
	}
}

// UpsertLocal inserts or replaces a single event by id.
func (s *EventStore) UpsertLocal(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ID] = ev
}

// RemoveByID reports whether an event was removed.
func (s *EventStore) RemoveByID(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return false
	}
	delete(s.events, id)
	return true
}

// Swap removes oldID and stores ev atomically, used when a draft is promoted
// to a persisted record with a new id.
func (s *EventStore) Swap(oldID string, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, oldID)
	s.events[ev.ID] = ev
}

func (s *EventStore) Get(id string) (Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	return ev, ok
}

// QueryByDate returns the events on d ordered by source, start time and id.
func (s *EventStore) QueryByDate(d Date) []Event {
	s.mu.RLock()
	out := make([]Event, 0)
	for _, ev := range s.events {
		if ev.Date == d {
			out = append(out, ev)
		}
	}
	s.mu.RUnlock()

	SortEvents(out)
	return out
}

// QueryRange returns events with from <= date <= to, ordered by date first.
func (s *EventStore) QueryRange(from, to Date) []Event {
	s.mu.RLock()
	out := make([]Event, 0)
	for _, ev := range s.events {
		if ev.Date.Before(from) || to.Before(ev.Date) {
			continue
		}
		out = append(out, ev)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c < 0
		}
		return eventLess(out[i], out[j])
	})
	return out
}

// Snapshot returns every event, ordered as QueryRange would.
func (s *EventStore) Snapshot() []Event {
	s.mu.RLock()
	out := make([]Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c < 0
		}
		return eventLess(out[i], out[j])
	})
	return out
}

func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *EventStore) CountBySource() map[SourceType]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[SourceType]int, 4)
	for _, ev := range s.events {
		counts[ev.Source]++
	}
	return counts
}

// SortEvents orders events of a single day: source, then start time with
// all-day events first, then id.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return eventLess(events[i], events[j])
	})
}

func eventLess(a, b Event) bool {
	if ra, rb := a.Source.rank(), b.Source.rank(); ra != rb {
		return ra < rb
	}
	if a.StartTime != b.StartTime {
		return a.StartTime < b.StartTime
	}
	return a.ID < b.ID
}
