package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(t *testing.T, s string) *time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return &v
}

func TestNormalizeBookingPending(t *testing.T) {
	n := NewNormalizer(time.UTC, nil)
	ev, ok := n.Booking(Booking{
		ID:           "b1",
		CustomerName: "Jane Roe",
		VehicleMake:  "BMW",
		VehicleModel: "X5",
		LicensePlate: "AB-123",
		StartAt:      ts(t, "2024-01-20T10:00:00Z"),
		EndAt:        ts(t, "2024-01-20T12:00:00Z"),
		Status:       "pending",
	})
	require.True(t, ok)

	assert.Equal(t, "booking-b1", ev.ID)
	assert.Equal(t, "Jane Roe - BMW X5", ev.Title)
	assert.Equal(t, CategoryDelivery, ev.CategoryID)
	assert.Equal(t, NewDate(2024, time.January, 20), ev.Date)
	assert.Equal(t, "10:00", ev.StartTime)
	assert.Equal(t, "12:00", ev.EndTime)
	assert.Equal(t, SourceBooking, ev.Source)
	assert.Equal(t, "b1", ev.SourceRecordID)
	assert.False(t, ev.Draggable())
	assert.Contains(t, ev.Description, "AB-123")
}

func TestNormalizeBookingCategories(t *testing.T) {
	n := NewNormalizer(time.UTC, nil)
	cases := map[string]string{
		"active":    CategoryBooking,
		"pending":   CategoryDelivery,
		"completed": CategoryPickup,
		"cancelled": CategoryBooking,
		"":          CategoryBooking,
	}
	for status, want := range cases {
		ev, ok := n.Booking(Booking{ID: "b", StartAt: ts(t, "2024-01-20T10:00:00Z"), Status: status})
		require.True(t, ok)
		assert.Equal(t, want, ev.CategoryID, "status %q", status)
	}
}

func TestNormalizeBookingMultiDayIsClipped(t *testing.T) {
	n := NewNormalizer(time.UTC, nil)
	ev, ok := n.Booking(Booking{
		ID:      "b2",
		StartAt: ts(t, "2024-01-20T10:00:00Z"),
		EndAt:   ts(t, "2024-01-23T09:00:00Z"),
	})
	require.True(t, ok)
	assert.Equal(t, NewDate(2024, time.January, 20), ev.Date)
	assert.Equal(t, "11:00", ev.EndTime)
}

func TestNormalizeBookingWithoutStartIsDropped(t *testing.T) {
	n := NewNormalizer(time.UTC, nil)
	out := n.Bookings([]Booking{
		{ID: "missing"},
		{ID: "ok", StartAt: ts(t, "2024-01-20T10:00:00Z")},
	})
	require.Len(t, out, 1)
	assert.Equal(t, "booking-ok", out[0].ID)
}

func TestNormalizeTaskWithDueDate(t *testing.T) {
	n := NewNormalizer(time.UTC, nil)
	ev, ok := n.Task(Task{
		ID:          "t1",
		Title:       "Inspect BMW",
		Status:      TaskCompleted,
		Priority:    PriorityHigh,
		DueAt:       ts(t, "2024-01-20T14:00:00Z"),
		AssigneeRef: "mike",
		VehicleRef:  "veh-1",
	})
	require.True(t, ok)

	assert.Equal(t, "task-t1", ev.ID)
	assert.Equal(t, SourceTask, ev.Source)
	assert.Equal(t, CategoryBooking, ev.CategoryID)
	assert.Equal(t, "14:00", ev.StartTime)
	assert.Equal(t, "15:00", ev.EndTime)
	assert.True(t, ev.Completed)
	assert.Equal(t, PriorityHigh, ev.Priority)
	assert.True(t, ev.Draggable())
}

func TestNormalizeTaskFallsBackToCreatedAt(t *testing.T) {
	n := NewNormalizer(time.UTC, nil)
	ev, ok := n.Task(Task{ID: "t2", Title: "Wash", CreatedAt: *ts(t, "2024-01-18T16:30:00Z"), Priority: "bogus"})
	require.True(t, ok)
	assert.Equal(t, NewDate(2024, time.January, 18), ev.Date)
	assert.Empty(t, ev.StartTime)
	assert.True(t, ev.AllDay())
	assert.Empty(t, ev.Priority)

	_, ok = n.Task(Task{ID: "t3"})
	assert.False(t, ok)
}

func TestNormalizeTaskAllDayDueDate(t *testing.T) {
	n := NewNormalizer(mustLoad(t, "America/New_York"), nil)
	ev, ok := n.Task(Task{
		ID:        "t3",
		Title:     "Register van",
		DueDate:   NewDate(2024, time.March, 10),
		CreatedAt: *ts(t, "2024-01-02T08:00:00Z"),
	})
	require.True(t, ok)

	assert.True(t, ev.AllDay())
	assert.Equal(t, NewDate(2024, time.March, 10), ev.Date, "date-only values are not shifted by the location")
	assert.Empty(t, ev.EndTime)
}

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestNormalizeTaskUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	n := NewNormalizer(loc, nil)
	ev, ok := n.Task(Task{ID: "t4", DueAt: ts(t, "2024-01-20T02:00:00Z")})
	require.True(t, ok)
	assert.Equal(t, NewDate(2024, time.January, 19), ev.Date)
	assert.Equal(t, "21:00", ev.StartTime)
}

func TestNormalizeMaintenance(t *testing.T) {
	n := NewNormalizer(time.FixedZone("west", -8*60*60), nil)
	day := time.Date(2024, time.January, 22, 0, 0, 0, 0, time.UTC)
	ev, ok := n.MaintenanceTask(MaintenanceTask{
		ID:              "m1",
		VehicleMake:     "Toyota",
		VehicleModel:    "Corolla",
		MaintenanceType: "Oil change",
		WorkPerformed:   "Replaced oil and filter",
		Date:            &day,
		Status:          "completed",
	})
	require.True(t, ok)

	assert.Equal(t, "maintenance-m1", ev.ID)
	assert.Equal(t, "Toyota Corolla - Oil change", ev.Title)
	assert.Equal(t, NewDate(2024, time.January, 22), ev.Date)
	assert.Equal(t, "09:00", ev.StartTime)
	assert.Equal(t, "10:00", ev.EndTime)
	assert.Equal(t, CategoryMaintenance, ev.CategoryID)
	assert.True(t, ev.Completed)
	assert.False(t, ev.Draggable())
	assert.Empty(t, ev.AssigneeRef, "missing technician degrades to empty")
	assert.Equal(t, "Replaced oil and filter", ev.Description)

	assert.Empty(t, n.Maintenance([]MaintenanceTask{{ID: "nodate"}}))
}

func TestCategoryFallback(t *testing.T) {
	assert.Equal(t, "Delivery", CategoryFor(CategoryDelivery).Name)
	unknown := CategoryFor("does-not-exist")
	assert.Equal(t, "Other", unknown.Name)
	assert.NotEmpty(t, unknown.BgColor)
	assert.Len(t, Categories(), 6)
	assert.False(t, KnownCategory("nope"))
}
