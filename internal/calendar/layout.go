package calendar

import "sort"

// MonthCellLimit is how many events a month cell shows before "+K more".
const MonthCellLimit = 3

// StackCell splits a day's events into the visible head and an overflow count.
func StackCell(events []Event, limit int) ([]Event, int) {
	if limit < 0 {
		limit = 0
	}
	if len(events) <= limit {
		return events, 0
	}
	return events[:limit], len(events) - limit
}

// Placement positions one timed event in a day column layout.
type Placement struct {
	Event   Event `json:"event"`
	Column  int   `json:"column"`
	Columns int   `json:"columns"`
	Start   int   `json:"startMinute"`
	End     int   `json:"endMinute"`
}

// LayoutDay assigns overlapping timed events to side-by-side columns. Events
// in one overlap cluster share the same Columns count. All-day events and
// events with unparsable times are skipped.
func LayoutDay(events []Event) []Placement {
	items := make([]Placement, 0, len(events))
	for _, ev := range events {
		start, err := ClockMinutes(ev.StartTime)
		if err != nil {
			continue
		}
		end, err := ClockMinutes(ev.EffectiveEndTime())
		if err != nil || end <= start {
			end = start + slotStepMinutes
		}
		items = append(items, Placement{Event: ev, Start: start, End: end})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Start != items[j].Start {
			return items[i].Start < items[j].Start
		}
		if items[i].End != items[j].End {
			return items[i].End > items[j].End
		}
		return items[i].Event.ID < items[j].Event.ID
	})

	var (
		clusterStart int
		clusterEnd   = -1
		columnEnds   []int
	)
	flush := func(upto int) {
		for k := clusterStart; k < upto; k++ {
			items[k].Columns = len(columnEnds)
		}
	}

	for i := range items {
		if items[i].Start >= clusterEnd {
			flush(i)
			clusterStart = i
			columnEnds = columnEnds[:0]
		}

		placed := false
		for c, colEnd := range columnEnds {
			if colEnd <= items[i].Start {
				items[i].Column = c
				columnEnds[c] = items[i].End
				placed = true
				break
			}
		}
		if !placed {
			items[i].Column = len(columnEnds)
			columnEnds = append(columnEnds, items[i].End)
		}
		if items[i].End > clusterEnd {
			clusterEnd = items[i].End
		}
	}
	flush(len(items))
	return items
}
