package scheduler

import (
	"context"

	"github.com/jw6ventures/fleetcal/internal/calendar"
)

// ChangeOp is the kind of row change carried by a push notification.
type ChangeOp string

const (
	OpInsert ChangeOp = "INSERT"
	OpUpdate ChangeOp = "UPDATE"
	OpDelete ChangeOp = "DELETE"
)

// Change is a push notification for one source. The bridge only uses Source;
// Op and RecordID are kept for logging.
type Change struct {
	Source   calendar.SourceType `json:"source"`
	Op       ChangeOp            `json:"op"`
	RecordID string              `json:"id"`
}

// ChangeHandler receives notifications. It must not block.
type ChangeHandler func(Change)

// TaskSource is the read/write task collaborator.
type TaskSource interface {
	// List returns tasks, optionally filtered to the given statuses.
	List(ctx context.Context, statuses ...string) ([]calendar.Task, error)
	Create(ctx context.Context, fields calendar.TaskFields) (calendar.Task, error)
	// Update writes fields; an empty Status leaves the stored status as is.
	Update(ctx context.Context, id string, fields calendar.TaskFields) (calendar.Task, error)
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context, fn ChangeHandler) (unsubscribe func(), err error)
}

// BookingSource is read-only to the scheduler.
type BookingSource interface {
	List(ctx context.Context) ([]calendar.Booking, error)
	Subscribe(ctx context.Context, fn ChangeHandler) (unsubscribe func(), err error)
}

// MaintenanceSource loads maintenance records for callers that supply them
// to Engine.SetMaintenance. The engine itself never fetches maintenance.
type MaintenanceSource interface {
	List(ctx context.Context) ([]calendar.MaintenanceTask, error)
}
