package calendar

import "time"

// SourceType identifies where an event came from and whether it may be
// edited through the scheduler.
type SourceType string

const (
	SourceTask        SourceType = "task"
	SourceBooking     SourceType = "booking"
	SourceMaintenance SourceType = "maintenance"
	SourceCustom      SourceType = "custom"
)

// Writable reports whether events of this source may be created, moved or
// deleted locally. Bookings and maintenance are read-only projections.
func (s SourceType) Writable() bool {
	return s == SourceTask || s == SourceCustom
}

func (s SourceType) Valid() bool {
	switch s {
	case SourceTask, SourceBooking, SourceMaintenance, SourceCustom:
		return true
	}
	return false
}

// IDPrefix is prepended to source record ids to build event ids.
func (s SourceType) IDPrefix() string {
	return string(s) + "-"
}

func (s SourceType) rank() int {
	switch s {
	case SourceTask:
		return 0
	case SourceBooking:
		return 1
	case SourceMaintenance:
		return 2
	default:
		return 3
	}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case "", PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Event is the canonical unit placed on the calendar grid.
type Event struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Date           Date       `json:"date"`
	StartTime      string     `json:"startTime,omitempty"`
	EndTime        string     `json:"endTime,omitempty"`
	Source         SourceType `json:"sourceType"`
	CategoryID     string     `json:"categoryId"`
	SourceRecordID string     `json:"sourceRecordId,omitempty"`
	Completed      bool       `json:"isCompleted"`
	Priority       Priority   `json:"priority,omitempty"`
	VehicleRef     string     `json:"vehicleRef,omitempty"`
	AssigneeRef    string     `json:"assigneeRef,omitempty"`
}

// Draggable reports whether the event may be rescheduled by drag and drop.
func (e Event) Draggable() bool {
	return e.Source.Writable()
}

func (e Event) AllDay() bool {
	return e.StartTime == ""
}

// EffectiveEndTime returns EndTime, or StartTime plus one hour when unset.
func (e Event) EffectiveEndTime() string {
	if e.EndTime != "" || e.StartTime == "" {
		return e.EndTime
	}
	end, err := AddMinutes(e.StartTime, 60)
	if err != nil {
		return ""
	}
	return end
}

// Task is a row from the task collaborator.
type Task struct {
	ID          string
	Title       string
	Description string
	Status      string
	Priority    Priority
	DueAt       *time.Time
	// DueDate is an all-day due date, used when DueAt is unset.
	DueDate     Date
	VehicleRef  string
	AssigneeRef string
	CreatedAt   time.Time
}

// Task statuses understood by the normalizer.
const (
	TaskPending    = "pending"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
)

// TaskFields is the writable subset of a task. At most one of DueAt and
// DueDate is set.
type TaskFields struct {
	Title       string
	Description string
	Status      string
	Priority    Priority
	DueAt       *time.Time
	DueDate     Date
	VehicleRef  string
	AssigneeRef string
}

// Booking is a rental booking joined with its vehicle.
type Booking struct {
	ID            string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	VehicleID     string
	VehicleMake   string
	VehicleModel  string
	LicensePlate  string
	StartAt       *time.Time
	EndAt         *time.Time
	Status        string
}

// MaintenanceTask is a maintenance record supplied by the caller.
type MaintenanceTask struct {
	ID              string
	VehicleID       string
	VehicleMake     string
	VehicleModel    string
	LicensePlate    string
	MaintenanceType string
	WorkPerformed   string
	Technician      string
	Date            *time.Time
	Status          string
}
