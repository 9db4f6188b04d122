package scheduler

import "github.com/jw6ventures/fleetcal/internal/calendar"

// DayCell is one cell of the month grid.
type DayCell struct {
	Date      calendar.Date    `json:"date"`
	InMonth   bool             `json:"inMonth"`
	IsToday   bool             `json:"isToday"`
	IsWeekend bool             `json:"isWeekend"`
	Events    []calendar.Event `json:"events"`
	More      int              `json:"more"`
	DropHover bool             `json:"dropHover"`
}

// MonthView builds the 42-cell grid around anchor.
func (e *Engine) MonthView(anchor calendar.Date) []DayCell {
	now := e.now().In(e.norm.Location())
	drag := e.DragState()

	days := calendar.GenerateMonthDays(anchor)
	cells := make([]DayCell, len(days))
	for i, d := range days {
		visible, more := calendar.StackCell(e.store.QueryByDate(d), calendar.MonthCellLimit)
		cells[i] = DayCell{
			Date:      d,
			InMonth:   calendar.IsSameMonth(d, anchor),
			IsToday:   calendar.IsToday(d, now),
			IsWeekend: calendar.IsWeekend(d),
			Events:    visible,
			More:      more,
			DropHover: drag.Hovering && drag.HoverDate == d && drag.HoverStart == "",
		}
	}
	return cells
}

// SlotRow is one half-hour row of the day grid.
type SlotRow struct {
	Label     string           `json:"label"`
	Time      string           `json:"time"`
	Events    []calendar.Event `json:"events"`
	DropHover bool             `json:"dropHover"`
}

// DayView is the day grid: timed events bucketed into display slots, plus
// all-day events and events outside the slot range.
type DayView struct {
	Date    calendar.Date        `json:"date"`
	IsToday bool                 `json:"isToday"`
	AllDay  []calendar.Event     `json:"allDay"`
	Slots   []SlotRow            `json:"slots"`
	Other   []calendar.Event     `json:"outsideHours"`
	Layout  []calendar.Placement `json:"layout"`
}

func (e *Engine) DayView(date calendar.Date) DayView {
	now := e.now().In(e.norm.Location())
	drag := e.DragState()
	events := e.store.QueryByDate(date)

	view := DayView{
		Date:    date,
		IsToday: calendar.IsToday(date, now),
		AllDay:  []calendar.Event{},
		Other:   []calendar.Event{},
		Layout:  calendar.LayoutDay(events),
	}

	labels := calendar.GenerateTimeSlots()
	view.Slots = make([]SlotRow, len(labels))
	index := make(map[string]int, len(labels))
	for i, label := range labels {
		h24, _ := calendar.To24Hour(label)
		view.Slots[i] = SlotRow{
			Label:     label,
			Time:      h24,
			Events:    []calendar.Event{},
			DropHover: drag.Hovering && drag.HoverDate == date && drag.HoverStart == h24,
		}
		index[h24] = i
	}

	for _, ev := range events {
		if ev.AllDay() {
			view.AllDay = append(view.AllDay, ev)
			continue
		}
		i, ok := index[slotOf(ev.StartTime)]
		if !ok {
			view.Other = append(view.Other, ev)
			continue
		}
		view.Slots[i].Events = append(view.Slots[i].Events, ev)
	}
	return view
}

// slotOf rounds an HH:MM value down to its half-hour slot.
func slotOf(startTime string) string {
	mins, err := calendar.ClockMinutes(startTime)
	if err != nil {
		return ""
	}
	slot, _ := calendar.AddMinutes("00:00", mins-mins%30)
	return slot
}
