package obs

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	appInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "studio",
			Subsystem: "app",
			Name:      "info",
			Help:      "Static app info for deployment verification.",
		},
		[]string{"service", "version"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"method", "route", "code"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "studio",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "batch",
			Name:      "total",
			Help:      "Completed batches by final status.",
		},
		[]string{"source", "status"},
	)
	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "batch",
			Name:      "uploads_total",
			Help:      "Upload phase results.",
		},
		[]string{"result"},
	)
	outcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "batch",
			Name:      "outcomes_total",
			Help:      "Processing phase results.",
		},
		[]string{"result"},
	)
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "batch",
			Name:      "operations_total",
			Help:      "Executed operation steps by status.",
		},
		[]string{"operation", "status"},
	)
	phaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "studio",
			Subsystem: "batch",
			Name:      "phase_duration_seconds",
			Help:      "Batch phase duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"phase"},
	)
	queueJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Queued batch jobs processed.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		appInfo, httpRequestsTotal, httpRequestDuration,
		batchesTotal, uploadsTotal, outcomesTotal, operationsTotal, phaseDuration,
		queueJobsTotal,
	)
}

func SetAppInfo(service, version string) {
	if version == "" {
		version = "dev"
	}
	appInfo.WithLabelValues(service, version).Set(1)
}

// MetricsMiddleware - 요청 수/지연 기록 (route 라벨은 mux 템플릿)
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := routeLabel(r)
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.code)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.code = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Flush - streaming/websocket 업그레이드 경로용
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack - websocket 업그레이드
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.code = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Unwrap - http.ResponseController가 원본 writer에 접근
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func RecordUpload(ok bool) {
	uploadsTotal.WithLabelValues(result(ok)).Inc()
}

func RecordOutcome(ok bool) {
	outcomesTotal.WithLabelValues(result(ok)).Inc()
}

func RecordStep(operation, status string) {
	operationsTotal.WithLabelValues(operation, status).Inc()
}

func RecordBatch(source, status string) {
	batchesTotal.WithLabelValues(source, status).Inc()
}

func ObservePhase(phase string, start time.Time) {
	phaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}

func RecordQueueJob(err error) {
	queueJobsTotal.WithLabelValues(result(err == nil)).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
