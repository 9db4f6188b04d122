package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	monthGridCells = 42

	firstSlotMinutes = 8 * 60
	lastSlotMinutes  = 21*60 + 30
	slotStepMinutes  = 30
)

// ErrInvalidClock is returned for malformed HH:MM or h:MM AM/PM values.
var ErrInvalidClock = errors.New("invalid clock time")

// GenerateMonthDays returns the 6x7 grid covering anchor's month, starting on
// the Sunday on or before the first of the month.
func GenerateMonthDays(anchor Date) []Date {
	first := NewDate(anchor.Year, anchor.Month, 1)
	start := first.AddDays(-int(first.Weekday()))

	days := make([]Date, monthGridCells)
	for i := range days {
		days[i] = start.AddDays(i)
	}
	return days
}

// GenerateTimeSlots returns the half-hour slots 08:00 through 21:30 in
// 12-hour display form.
func GenerateTimeSlots() []string {
	slots := make([]string, 0, (lastSlotMinutes-firstSlotMinutes)/slotStepMinutes+1)
	for m := firstSlotMinutes; m <= lastSlotMinutes; m += slotStepMinutes {
		label, _ := To12Hour(formatClock(m))
		slots = append(slots, label)
	}
	return slots
}

// To24Hour converts "h:MM AM" / "h:MM PM" to canonical "HH:MM".
func To24Hour(s string) (string, error) {
	s = strings.TrimSpace(s)
	clock, period, ok := strings.Cut(s, " ")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, m, err := splitClock(clock)
	if err != nil || h < 1 || h > 12 {
		return "", fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}

	switch strings.ToUpper(strings.TrimSpace(period)) {
	case "AM":
		if h == 12 {
			h = 0
		}
	case "PM":
		if h != 12 {
			h += 12
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return formatClock(h*60 + m), nil
}

// To12Hour converts canonical "HH:MM" to "h:MM AM/PM".
func To12Hour(s string) (string, error) {
	h, m, err := splitClock(strings.TrimSpace(s))
	if err != nil || h > 23 {
		return "", fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}

	period := "AM"
	if h >= 12 {
		period = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, m, period), nil
}

// ValidClock reports whether s is a canonical 24-hour HH:MM value.
func ValidClock(s string) bool {
	_, err := ClockMinutes(s)
	return err == nil
}

// ClockMinutes returns minutes since midnight for an HH:MM value.
func ClockMinutes(s string) (int, error) {
	h, m, err := splitClock(s)
	if err != nil || h > 23 || len(s) != 5 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return h*60 + m, nil
}

// AddMinutes shifts an HH:MM value, clamping to the same day.
func AddMinutes(s string, n int) (string, error) {
	mins, err := ClockMinutes(s)
	if err != nil {
		return "", err
	}
	mins += n
	if mins < 0 {
		mins = 0
	}
	if mins > 23*60+59 {
		mins = 23*60 + 59
	}
	return formatClock(mins), nil
}

func IsToday(d Date, now time.Time) bool {
	return d == DateOf(now)
}

func IsWeekend(d Date) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func IsSameMonth(a, b Date) bool {
	return a.Year == b.Year && a.Month == b.Month
}

func splitClock(s string) (int, int, error) {
	hs, ms, ok := strings.Cut(s, ":")
	if !ok || len(ms) != 2 || hs == "" || len(hs) > 2 {
		return 0, 0, ErrInvalidClock
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 {
		return 0, 0, ErrInvalidClock
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 0 || m > 59 {
		return 0, 0, ErrInvalidClock
	}
	return h, m, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
