package store

import (
	"context"
	"fmt"

	"github.com/jw6ventures/fleetcal/internal/calendar"
	"github.com/jw6ventures/fleetcal/internal/scheduler"
)

// TaskRepo implements scheduler.TaskSource on the tasks table.
type TaskRepo struct {
	db      DB
	changes *listener
}

// List returns tasks ordered by id. With statuses given, only tasks in one of
// them are returned.
func (r *TaskRepo) List(ctx context.Context, statuses ...string) ([]calendar.Task, error) {
	defer observeDB(ctx, "tasks.list")()

	if statuses == nil {
		statuses = []string{}
	}
	q := `SELECT ` + taskColumns + ` FROM tasks
WHERE cardinality($1::text[]) = 0 OR status = ANY($1::text[])
ORDER BY id`
	rows, err := r.db.Query(ctx, q, statuses)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks, err := collect(rows, scanTask)
	if err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}
	return tasks, nil
}

// Create inserts a task. An empty status becomes pending.
func (r *TaskRepo) Create(ctx context.Context, fields calendar.TaskFields) (calendar.Task, error) {
	defer observeDB(ctx, "tasks.create")()

	q := `INSERT INTO tasks (title, description, status, priority, due_at, vehicle_id, assignee, due_date)
VALUES ($1, $2, COALESCE(NULLIF($3, ''), 'pending'), NULLIF($4, ''), $5, NULLIF($6, '')::bigint, NULLIF($7, ''), $8)
RETURNING ` + taskColumns
	t, err := scanTask(r.db.QueryRow(ctx, q,
		fields.Title,
		fields.Description,
		fields.Status,
		string(fields.Priority),
		fields.DueAt,
		fields.VehicleRef,
		fields.AssigneeRef,
		dueDateArg(fields.DueDate),
	))
	if err != nil {
		return calendar.Task{}, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// Update overwrites the task's writable columns. An empty status keeps the
// stored one.
func (r *TaskRepo) Update(ctx context.Context, id string, fields calendar.TaskFields) (calendar.Task, error) {
	defer observeDB(ctx, "tasks.update")()

	n, err := parseID(id)
	if err != nil {
		return calendar.Task{}, err
	}
	q := `UPDATE tasks SET
	title = $2,
	description = $3,
	status = COALESCE(NULLIF($4, ''), status),
	priority = NULLIF($5, ''),
	due_at = $6,
	vehicle_id = NULLIF($7, '')::bigint,
	assignee = NULLIF($8, ''),
	due_date = $9,
	updated_at = NOW()
WHERE id = $1
RETURNING ` + taskColumns
	t, err := scanTask(r.db.QueryRow(ctx, q,
		n,
		fields.Title,
		fields.Description,
		fields.Status,
		string(fields.Priority),
		fields.DueAt,
		fields.VehicleRef,
		fields.AssigneeRef,
		dueDateArg(fields.DueDate),
	))
	if err != nil {
		return calendar.Task{}, fmt.Errorf("update task %s: %w", id, mapErr(err))
	}
	return t, nil
}

func (r *TaskRepo) Delete(ctx context.Context, id string) error {
	defer observeDB(ctx, "tasks.delete")()

	n, err := parseID(id)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, n)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Subscribe delivers task change notifications until unsubscribe is called
// or ctx ends.
func (r *TaskRepo) Subscribe(ctx context.Context, fn scheduler.ChangeHandler) (func(), error) {
	return r.changes.subscribe(ctx, calendar.SourceTask, fn)
}

// BookingRepo implements scheduler.BookingSource. Bookings are joined with
// their vehicle for display.
type BookingRepo struct {
	db      DB
	changes *listener
}

func (r *BookingRepo) List(ctx context.Context) ([]calendar.Booking, error) {
	defer observeDB(ctx, "bookings.list")()

	q := `SELECT ` + bookingColumns + `
FROM bookings b
LEFT JOIN vehicles v ON v.id = b.vehicle_id
ORDER BY b.start_at NULLS LAST, b.id`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	bookings, err := collect(rows, scanBooking)
	if err != nil {
		return nil, fmt.Errorf("scan bookings: %w", err)
	}
	return bookings, nil
}

func (r *BookingRepo) Subscribe(ctx context.Context, fn scheduler.ChangeHandler) (func(), error) {
	return r.changes.subscribe(ctx, calendar.SourceBooking, fn)
}

// MaintenanceRepo loads maintenance records for Engine.SetMaintenance.
type MaintenanceRepo struct {
	db DB
}

func (r *MaintenanceRepo) List(ctx context.Context) ([]calendar.MaintenanceTask, error) {
	defer observeDB(ctx, "maintenance.list")()

	q := `SELECT ` + maintenanceColumns + `
FROM maintenance_tasks m
LEFT JOIN vehicles v ON v.id = m.vehicle_id
ORDER BY m.scheduled_on NULLS LAST, m.id`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list maintenance: %w", err)
	}
	records, err := collect(rows, scanMaintenance)
	if err != nil {
		return nil, fmt.Errorf("scan maintenance: %w", err)
	}
	return records, nil
}
