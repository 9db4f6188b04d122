package store

import "github.com/jw6ventures/fleetcal/internal/scheduler"

var (
	_ scheduler.TaskSource        = (*TaskRepo)(nil)
	_ scheduler.BookingSource     = (*BookingRepo)(nil)
	_ scheduler.MaintenanceSource = (*MaintenanceRepo)(nil)
)
