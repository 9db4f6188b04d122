package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ctxKey string

const (
	routeLabelKey   ctxKey = "metrics_route"
	requestIDCtxKey ctxKey = "metrics_request_id"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetcal_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route"})

	httpErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetcal_http_errors_total",
		Help: "Total number of HTTP requests resulting in server errors.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleetcal_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	dbLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleetcal_db_latency_seconds",
		Help:    "Histogram of database operation latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "route"})

	dragOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetcal_drag_outcomes_total",
		Help: "Drag sessions by outcome (moved, cancelled, rejected).",
	}, []string{"outcome"})

	persistFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetcal_persist_failures_total",
		Help: "Collaborator persistence calls that failed after a local change was applied.",
	}, []string{"operation"})

	refetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetcal_refetch_total",
		Help: "Change-feed triggered refetches by source and result.",
	}, []string{"source", "result"})

	changeNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetcal_change_notifications_total",
		Help: "Push notifications received per source.",
	}, []string{"source"})

	storeEvents = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fleetcal_store_events",
		Help: "Events currently held in the event store per source.",
	}, []string{"source"})
)

// Middleware records request metrics and enriches the context with labels for downstream instrumentation.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := middleware.GetReqID(r.Context())

			ctx := r.Context()
			if reqID != "" {
				ctx = context.WithValue(ctx, requestIDCtxKey, reqID)
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			// The route pattern is only complete once chi has matched the request.
			route := routePattern(r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			method := r.Method
			duration := time.Since(start).Seconds()
			statusCode := strconv.Itoa(status)

			httpRequestsTotal.WithLabelValues(method, route).Inc()
			httpRequestDuration.WithLabelValues(method, route, statusCode).Observe(duration)
			if status >= http.StatusInternalServerError {
				httpErrorsTotal.WithLabelValues(method, route, statusCode).Inc()
			}
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// WithRoute labels ctx so DB latency observations can be attributed to a route.
func WithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, routeLabelKey, route)
}

// ObserveDBLatency records database latency for a given operation, associating it with request labels when available.
func ObserveDBLatency(ctx context.Context, operation string, start time.Time) {
	route := routeFromContext(ctx)
	dbLatency.WithLabelValues(operation, route).Observe(time.Since(start).Seconds())
}

func ObserveDrag(outcome string) {
	dragOutcomes.WithLabelValues(outcome).Inc()
}

func ObservePersistFailure(operation string) {
	persistFailures.WithLabelValues(operation).Inc()
}

func ObserveRefetch(source string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	refetchTotal.WithLabelValues(source, result).Inc()
}

func ObserveChangeNotification(source string) {
	changeNotifications.WithLabelValues(source).Inc()
}

// SetStoreEvents publishes per-source event counts.
func SetStoreEvents(counts map[string]int) {
	for source, n := range counts {
		storeEvents.WithLabelValues(source).Set(float64(n))
	}
}

// RequestIDFromContext extracts the request ID stored by the metrics middleware.
func RequestIDFromContext(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDCtxKey).(string); ok {
		return reqID
	}
	return ""
}

func routeFromContext(ctx context.Context) string {
	if route, ok := ctx.Value(routeLabelKey).(string); ok && route != "" {
		return route
	}
	if rctx := chi.RouteContext(ctx); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
