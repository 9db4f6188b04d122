package store

import (
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jw6ventures/fleetcal/internal/calendar"
)

// Column lists shared by SELECT and RETURNING clauses. Ids and foreign keys
// are rendered as text so callers never see database integer types.
const (
	taskColumns = `id::text, title, description, status, COALESCE(priority, ''), due_at, due_date,
	COALESCE(vehicle_id::text, ''), COALESCE(assignee, ''), created_at`

	bookingColumns = `b.id::text, b.customer_name, COALESCE(b.customer_phone, ''), COALESCE(b.customer_email, ''),
	COALESCE(b.vehicle_id::text, ''), COALESCE(v.make, ''), COALESCE(v.model, ''), COALESCE(v.license_plate, ''),
	b.start_at, b.end_at, b.status`

	maintenanceColumns = `m.id::text, COALESCE(m.vehicle_id::text, ''), COALESCE(v.make, ''), COALESCE(v.model, ''),
	COALESCE(v.license_plate, ''), m.maintenance_type, COALESCE(m.work_performed, ''), COALESCE(m.technician, ''),
	m.scheduled_on, m.status`
)

func scanTask(row pgx.Row) (calendar.Task, error) {
	var (
		t        calendar.Task
		priority string
		dueDate  *time.Time
	)
	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Status,
		&priority,
		&t.DueAt,
		&dueDate,
		&t.VehicleRef,
		&t.AssigneeRef,
		&t.CreatedAt,
	)
	t.Priority = calendar.Priority(priority)
	if dueDate != nil {
		t.DueDate = calendar.DateOf(*dueDate)
	}
	return t, err
}

// dueDateArg binds an all-day due date to a DATE parameter.
func dueDateArg(d calendar.Date) *time.Time {
	if d.IsZero() {
		return nil
	}
	v := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	return &v
}

func scanBooking(row pgx.Row) (calendar.Booking, error) {
	var b calendar.Booking
	err := row.Scan(
		&b.ID,
		&b.CustomerName,
		&b.CustomerPhone,
		&b.CustomerEmail,
		&b.VehicleID,
		&b.VehicleMake,
		&b.VehicleModel,
		&b.LicensePlate,
		&b.StartAt,
		&b.EndAt,
		&b.Status,
	)
	return b, err
}

func scanMaintenance(row pgx.Row) (calendar.MaintenanceTask, error) {
	var m calendar.MaintenanceTask
	err := row.Scan(
		&m.ID,
		&m.VehicleID,
		&m.VehicleMake,
		&m.VehicleModel,
		&m.LicensePlate,
		&m.MaintenanceType,
		&m.WorkPerformed,
		&m.Technician,
		&m.Date,
		&m.Status,
	)
	return m, err
}

// collect drains rows with scan, closing rows on every path.
func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
