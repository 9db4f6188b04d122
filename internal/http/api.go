package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jw6ventures/fleetcal/internal/calendar"
	httperrors "github.com/jw6ventures/fleetcal/internal/http/errors"
	"github.com/jw6ventures/fleetcal/internal/ics"
	"github.com/jw6ventures/fleetcal/internal/scheduler"
)

const maxBodyBytes = 1 << 20

// Refresher triggers a full refetch of the pushed sources.
type Refresher interface {
	RefreshAll(ctx context.Context) error
}

// api exposes the scheduling engine as JSON endpoints.
type api struct {
	engine         *scheduler.Engine
	refresher      Refresher
	loc            *time.Location
	maintenanceURL string
	now            func() time.Time
}

type slotJSON struct {
	Label string `json:"label"`
	Time  string `json:"time"`
}

type slotTarget struct {
	Date      calendar.Date `json:"date"`
	StartTime string        `json:"startTime"`
}

type activationJSON struct {
	scheduler.Activation
	URL string `json:"url,omitempty"`
}

type maintenanceJSON struct {
	ID              string        `json:"id"`
	VehicleID       string        `json:"vehicleId"`
	VehicleMake     string        `json:"vehicleMake"`
	VehicleModel    string        `json:"vehicleModel"`
	LicensePlate    string        `json:"licensePlate"`
	MaintenanceType string        `json:"maintenanceType"`
	WorkPerformed   string        `json:"workPerformed"`
	Technician      string        `json:"technician"`
	Date            calendar.Date `json:"date"`
	Status          string        `json:"status"`
}

func (a *api) today() calendar.Date {
	return calendar.DateOf(a.now().In(a.loc))
}

func (a *api) categories(w http.ResponseWriter, r *http.Request) {
	httperrors.WriteJSON(w, http.StatusOK, calendar.Categories())
}

func (a *api) slots(w http.ResponseWriter, r *http.Request) {
	labels := calendar.GenerateTimeSlots()
	out := make([]slotJSON, 0, len(labels))
	for _, label := range labels {
		h24, err := calendar.To24Hour(label)
		if err != nil {
			httperrors.InternalError(w, r, err, "slot table is inconsistent")
			return
		}
		out = append(out, slotJSON{Label: label, Time: h24})
	}
	httperrors.WriteJSON(w, http.StatusOK, out)
}

func (a *api) month(w http.ResponseWriter, r *http.Request) {
	anchor, ok := a.dateParam(w, r, r.URL.Query().Get("anchor"))
	if !ok {
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, a.engine.MonthView(anchor))
}

func (a *api) day(w http.ResponseWriter, r *http.Request) {
	date, ok := a.dateParam(w, r, chi.URLParam(r, "date"))
	if !ok {
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, a.engine.DayView(date))
}

// exportICS serves the merged events in [from, to] as text/calendar. The
// window defaults to the visible month grid around today.
func (a *api) exportICS(w http.ResponseWriter, r *http.Request) {
	days := calendar.GenerateMonthDays(a.today())
	from, to := days[0], days[len(days)-1]

	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		d, ok := a.dateParam(w, r, v)
		if !ok {
			return
		}
		from = d
	}
	if v := q.Get("to"); v != "" {
		d, ok := a.dateParam(w, r, v)
		if !ok {
			return
		}
		to = d
	}
	if to.Before(from) {
		httperrors.BadRequestError(w, r, fmt.Errorf("range %s..%s", from, to), "to must not be before from")
		return
	}

	events := a.engine.Store().QueryRange(from, to)
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="fleetcal.ics"`)
	if err := ics.Write(w, events, ics.Options{Location: a.loc, Domain: r.Host, Stamp: a.now()}); err != nil {
		httperrors.LogError(r, "write ics feed", err)
	}
}

func (a *api) createDraft(w http.ResponseWriter, r *http.Request) {
	var in slotTarget
	if !decode(w, r, &in) {
		return
	}
	ed, err := a.engine.CreateEvent(in.Date, in.StartTime)
	if err != nil {
		httperrors.DomainError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusCreated, ed)
}

func (a *api) saveEvent(w http.ResponseWriter, r *http.Request) {
	var ev calendar.Event
	if !decode(w, r, &ev) {
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		ev.ID = id
	}
	if ev.ID == "" {
		httperrors.BadRequestError(w, r, errors.New("missing id"), "event id is required")
		return
	}
	saved, err := a.engine.SaveEvent(r.Context(), ev)
	if err != nil {
		httperrors.DomainError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, saved)
}

func (a *api) deleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.DeleteEvent(chi.URLParam(r, "id")); err != nil {
		httperrors.DomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) openEvent(w http.ResponseWriter, r *http.Request) {
	act, err := a.engine.Activate(chi.URLParam(r, "id"))
	if err != nil {
		httperrors.DomainError(w, r, err)
		return
	}
	out := activationJSON{Activation: act}
	if act.Kind == scheduler.ActivationExternal && a.maintenanceURL != "" {
		out.URL = strings.ReplaceAll(a.maintenanceURL, "{id}", act.RecordID)
	}
	httperrors.WriteJSON(w, http.StatusOK, out)
}

func (a *api) toggleComplete(w http.ResponseWriter, r *http.Request) {
	ev, err := a.engine.ToggleComplete(chi.URLParam(r, "id"))
	if err != nil {
		httperrors.DomainError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, ev)
}

func (a *api) currentEditor(w http.ResponseWriter, r *http.Request) {
	ed, ok := a.engine.CurrentEditor()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, ed)
}

func (a *api) closeEditor(w http.ResponseWriter, r *http.Request) {
	a.engine.CloseEditor()
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) dragState(w http.ResponseWriter, r *http.Request) {
	httperrors.WriteJSON(w, http.StatusOK, a.engine.DragState())
}

func (a *api) beginDrag(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ID string `json:"id"`
	}
	if !decode(w, r, &in) {
		return
	}
	if err := a.engine.BeginDrag(in.ID); err != nil {
		httperrors.DomainError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, a.engine.DragState())
}

func (a *api) hoverDrag(w http.ResponseWriter, r *http.Request) {
	var in slotTarget
	if !decode(w, r, &in) {
		return
	}
	if err := a.engine.HoverSlot(in.Date, in.StartTime); err != nil {
		httperrors.DomainError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, a.engine.DragState())
}

func (a *api) dropDrag(w http.ResponseWriter, r *http.Request) {
	var in slotTarget
	if !decode(w, r, &in) {
		return
	}
	moved, err := a.engine.Drop(in.Date, in.StartTime)
	if err != nil {
		httperrors.DomainError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, map[string]bool{"moved": moved})
}

func (a *api) cancelDrag(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.CancelDrag(); err != nil {
		httperrors.DomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// setMaintenance replaces the maintenance events with the posted list.
func (a *api) setMaintenance(w http.ResponseWriter, r *http.Request) {
	var in []maintenanceJSON
	if !decode(w, r, &in) {
		return
	}
	records := make([]calendar.MaintenanceTask, 0, len(in))
	for _, m := range in {
		rec := calendar.MaintenanceTask{
			ID:              m.ID,
			VehicleID:       m.VehicleID,
			VehicleMake:     m.VehicleMake,
			VehicleModel:    m.VehicleModel,
			LicensePlate:    m.LicensePlate,
			MaintenanceType: m.MaintenanceType,
			WorkPerformed:   m.WorkPerformed,
			Technician:      m.Technician,
			Status:          m.Status,
		}
		if !m.Date.IsZero() {
			d := m.Date.Time(time.UTC)
			rec.Date = &d
		}
		records = append(records, rec)
	}
	a.engine.SetMaintenance(records)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) refresh(w http.ResponseWriter, r *http.Request) {
	if a.refresher == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := a.refresher.RefreshAll(r.Context()); err != nil {
		httperrors.LogError(r, "manual refresh failed", err)
		httperrors.WriteJSON(w, http.StatusBadGateway, map[string]string{"error": "refresh failed; previous events kept"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// dateParam parses a YYYY-MM-DD value; empty means today.
func (a *api) dateParam(w http.ResponseWriter, r *http.Request, v string) (calendar.Date, bool) {
	if v == "" {
		return a.today(), true
	}
	d, err := calendar.ParseDate(v)
	if err != nil {
		httperrors.BadRequestError(w, r, err, "dates must be YYYY-MM-DD")
		return calendar.Date{}, false
	}
	return d, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		httperrors.BadRequestError(w, r, err, "invalid JSON body")
		return false
	}
	return true
}
