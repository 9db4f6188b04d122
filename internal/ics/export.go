// Package ics renders calendar events as an iCalendar feed.
package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/jw6ventures/fleetcal/internal/calendar"
)

const productID = "-//jw6ventures//fleetcal//EN"

// Options controls feed rendering.
type Options struct {
	// Location interprets event wall-clock times. Defaults to UTC.
	Location *time.Location
	// Domain qualifies UIDs so they are globally unique.
	Domain string
	// Stamp is written as DTSTAMP on every event. Defaults to time.Now.
	Stamp time.Time
}

// Build converts events into a VCALENDAR. Timed events become DATE-TIME
// ranges in UTC; all-day events become single-day DATE ranges.
func Build(events []calendar.Event, opts Options) *ical.Calendar {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}
	domain := opts.Domain
	if domain == "" {
		domain = "fleetcal"
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, ev := range events {
		ve := cal.AddEvent(fmt.Sprintf("%s@%s", ev.ID, domain))
		ve.SetDtStampTime(stamp.UTC())
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}

		day := ev.Date.Time(loc)
		if ev.AllDay() {
			ve.SetAllDayStartAt(day)
			ve.SetAllDayEndAt(day.AddDate(0, 0, 1))
		} else {
			ve.SetStartAt(clockOn(day, ev.StartTime).UTC())
			ve.SetEndAt(clockOn(day, ev.EffectiveEndTime()).UTC())
		}

		ve.SetProperty(ical.ComponentPropertyCategories, strings.ToUpper(calendar.CategoryFor(ev.CategoryID).Name))
		ve.SetProperty(ical.ComponentPropertyStatus, "CONFIRMED")
		if ev.Completed {
			ve.SetProperty(ical.ComponentProperty("X-FLEETCAL-COMPLETED"), "TRUE")
		}
		if p := priority(ev.Priority); p > 0 {
			ve.SetProperty(ical.ComponentPropertyPriority, fmt.Sprint(p))
		}
		ve.SetProperty(ical.ComponentProperty("X-FLEETCAL-SOURCE"), string(ev.Source))
	}
	return cal
}

// Write serializes the feed for events to w.
func Write(w io.Writer, events []calendar.Event, opts Options) error {
	_, err := io.WriteString(w, Build(events, opts).Serialize())
	return err
}

// clockOn places an HH:MM wall-clock time on day, in day's location.
func clockOn(day time.Time, hhmm string) time.Time {
	mins, err := calendar.ClockMinutes(hhmm)
	if err != nil {
		return day
	}
	return time.Date(day.Year(), day.Month(), day.Day(), mins/60, mins%60, 0, 0, day.Location())
}

// priority maps onto the RFC 5545 1 (highest) to 9 (lowest) scale.
func priority(p calendar.Priority) int {
	switch p {
	case calendar.PriorityUrgent:
		return 1
	case calendar.PriorityHigh:
		return 3
	case calendar.PriorityMedium:
		return 5
	case calendar.PriorityLow:
		return 9
	}
	return 0
}
