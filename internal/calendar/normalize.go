package calendar

import (
	"strings"
	"time"

	"github.com/jw6ventures/fleetcal/internal/logger"
)

// maintenanceStartTime is used because maintenance records carry no time of day.
const maintenanceStartTime = "09:00"

// Normalizer converts collaborator records into canonical events, projecting
// timestamps into a single wall-clock location.
type Normalizer struct {
	loc *time.Location
	log *logger.Logger
}

func NewNormalizer(loc *time.Location, log *logger.Logger) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Normalizer{loc: loc, log: log.Named("normalizer")}
}

func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Tasks normalizes task rows. A task without a due or creation timestamp is
// dropped.
func (n *Normalizer) Tasks(tasks []Task) []Event {
	out := make([]Event, 0, len(tasks))
	for _, t := range tasks {
		ev, ok := n.Task(t)
		if !ok {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func (n *Normalizer) Task(t Task) (Event, bool) {
	ev := Event{
		ID:             SourceTask.IDPrefix() + t.ID,
		Title:          t.Title,
		Description:    t.Description,
		Source:         SourceTask,
		CategoryID:     CategoryBooking,
		SourceRecordID: t.ID,
		Completed:      t.Status == TaskCompleted,
		VehicleRef:     t.VehicleRef,
		AssigneeRef:    t.AssigneeRef,
	}
	if t.Priority.Valid() {
		ev.Priority = t.Priority
	}

	switch {
	case t.DueAt != nil && !t.DueAt.IsZero():
		due := t.DueAt.In(n.loc)
		ev.Date = DateOf(due)
		ev.StartTime = due.Format("15:04")
		ev.EndTime = ev.EffectiveEndTime()
	case !t.DueDate.IsZero():
		ev.Date = t.DueDate
	case !t.CreatedAt.IsZero():
		ev.Date = DateOf(t.CreatedAt.In(n.loc))
	default:
		n.log.Warn("dropping task without date", "task_id", t.ID)
		return Event{}, false
	}
	return ev, true
}

func (n *Normalizer) Bookings(bookings []Booking) []Event {
	out := make([]Event, 0, len(bookings))
	for _, b := range bookings {
		ev, ok := n.Booking(b)
		if !ok {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func (n *Normalizer) Booking(b Booking) (Event, bool) {
	if b.StartAt == nil || b.StartAt.IsZero() {
		n.log.Warn("dropping booking without start", "booking_id", b.ID)
		return Event{}, false
	}
	start := b.StartAt.In(n.loc)

	ev := Event{
		ID:             SourceBooking.IDPrefix() + b.ID,
		Title:          bookingTitle(b),
		Description:    bookingDescription(b),
		Date:           DateOf(start),
		StartTime:      start.Format("15:04"),
		Source:         SourceBooking,
		CategoryID:     bookingCategory(b.Status),
		SourceRecordID: b.ID,
		Completed:      b.Status == "completed",
		VehicleRef:     b.VehicleID,
	}

	// Bookings spanning several days are clipped to the start day.
	if b.EndAt != nil && !b.EndAt.IsZero() {
		end := b.EndAt.In(n.loc)
		if DateOf(end) == ev.Date && end.After(start) {
			ev.EndTime = end.Format("15:04")
		}
	}
	if ev.EndTime == "" {
		ev.EndTime = ev.EffectiveEndTime()
	}
	return ev, true
}

func (n *Normalizer) Maintenance(records []MaintenanceTask) []Event {
	out := make([]Event, 0, len(records))
	for _, m := range records {
		ev, ok := n.MaintenanceTask(m)
		if !ok {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func (n *Normalizer) MaintenanceTask(m MaintenanceTask) (Event, bool) {
	if m.Date == nil || m.Date.IsZero() {
		n.log.Warn("dropping maintenance record without date", "maintenance_id", m.ID)
		return Event{}, false
	}

	// Maintenance dates are calendar days, not instants; no location shift.
	ev := Event{
		ID:             SourceMaintenance.IDPrefix() + m.ID,
		Title:          joinNonEmpty(" - ", vehicleName(m.VehicleMake, m.VehicleModel), m.MaintenanceType),
		Description:    maintenanceDescription(m),
		Date:           DateOf(*m.Date),
		StartTime:      maintenanceStartTime,
		Source:         SourceMaintenance,
		CategoryID:     CategoryMaintenance,
		SourceRecordID: m.ID,
		Completed:      m.Status == "completed",
		VehicleRef:     m.VehicleID,
		AssigneeRef:    m.Technician,
	}
	ev.EndTime = ev.EffectiveEndTime()
	return ev, true
}

func bookingTitle(b Booking) string {
	return joinNonEmpty(" - ", strings.TrimSpace(b.CustomerName), vehicleName(b.VehicleMake, b.VehicleModel))
}

func bookingDescription(b Booking) string {
	var parts []string
	if b.LicensePlate != "" {
		parts = append(parts, "Plate: "+b.LicensePlate)
	}
	if b.CustomerPhone != "" {
		parts = append(parts, "Phone: "+b.CustomerPhone)
	}
	if b.CustomerEmail != "" {
		parts = append(parts, "Email: "+b.CustomerEmail)
	}
	if b.Status != "" {
		parts = append(parts, "Status: "+b.Status)
	}
	return strings.Join(parts, "\n")
}

func maintenanceDescription(m MaintenanceTask) string {
	var parts []string
	if m.WorkPerformed != "" {
		parts = append(parts, m.WorkPerformed)
	}
	if m.LicensePlate != "" {
		parts = append(parts, "Plate: "+m.LicensePlate)
	}
	if m.Technician != "" {
		parts = append(parts, "Technician: "+m.Technician)
	}
	return strings.Join(parts, "\n")
}

func vehicleName(vehicleMake, model string) string {
	return joinNonEmpty(" ", strings.TrimSpace(vehicleMake), strings.TrimSpace(model))
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
