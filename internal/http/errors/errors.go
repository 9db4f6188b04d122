package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jw6ventures/fleetcal/internal/logger"
	"github.com/jw6ventures/fleetcal/internal/scheduler"
	"github.com/jw6ventures/fleetcal/internal/store"
)

var log atomic.Pointer[logger.Logger]

func init() {
	log.Store(logger.Nop())
}

// SetLogger sets the logger used by every helper in this package.
func SetLogger(l *logger.Logger) {
	if l == nil {
		l = logger.Nop()
	}
	log.Store(l.Named("http"))
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Load().Warn("encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	WriteJSON(w, status, errorBody{Error: message, RequestID: middleware.GetReqID(r.Context())})
}

func InternalError(w http.ResponseWriter, r *http.Request, err error, message string) {
	LogError(r, message, err)
	// Return generic error to client
	writeError(w, r, http.StatusInternalServerError, "internal server error")
}

func BadRequestError(w http.ResponseWriter, r *http.Request, err error, clientMessage string) {
	log.Load().Warn("bad request", "request_id", middleware.GetReqID(r.Context()), "error", err)
	writeError(w, r, http.StatusBadRequest, clientMessage)
}

// DomainError maps a scheduler or store error onto a status code. Unknown
// errors are treated as internal.
func DomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, ok := statusFor(err)
	if !ok {
		InternalError(w, r, err, "request failed")
		return
	}
	LogInfo(r, "request rejected: "+err.Error())
	writeError(w, r, status, err.Error())
}

func statusFor(err error) (int, bool) {
	switch {
	case stderrors.Is(err, scheduler.ErrEventNotFound), stderrors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, true
	case stderrors.Is(err, scheduler.ErrReadOnly),
		stderrors.Is(err, scheduler.ErrDragInProgress),
		stderrors.Is(err, scheduler.ErrNotDragging):
		return http.StatusConflict, true
	case stderrors.Is(err, scheduler.ErrTitleRequired), stderrors.Is(err, scheduler.ErrInvalidSlot):
		return http.StatusUnprocessableEntity, true
	case stderrors.Is(err, scheduler.ErrUnsupportedFeed):
		return http.StatusBadRequest, true
	}
	return 0, false
}

func LogError(r *http.Request, message string, err error) {
	log.Load().Error(message, "request_id", middleware.GetReqID(r.Context()), "error", err)
}

func LogInfo(r *http.Request, message string) {
	log.Load().Info(message, "request_id", middleware.GetReqID(r.Context()))
}
