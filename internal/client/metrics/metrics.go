// Package metrics holds the Prometheus collectors of the readkeeper client.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ReconcileOperations counts remote highlight operations by outcome.
	// Labels: op (create, merge, update, delete, refetch, progress), outcome (ok, network, validation, not_found)
	ReconcileOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "readkeeper",
		Subsystem: "reconcile",
		Name:      "operations_total",
		Help:      "Remote highlight operations by outcome",
	}, []string{"op", "outcome"})

	// ReconcileLatency measures remote call latency.
	// Labels: op
	ReconcileLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "readkeeper",
		Subsystem: "reconcile",
		Name:      "latency_seconds",
		Help:      "Remote highlight call latency in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
	}, []string{"op"})

	// InFlight is the number of remote calls currently outstanding.
	InFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "readkeeper",
		Subsystem: "reconcile",
		Name:      "in_flight",
		Help:      "Outstanding remote highlight calls",
	})

	// ProgressPushes counts reading-progress pushes by outcome.
	ProgressPushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "readkeeper",
		Subsystem: "progress",
		Name:      "pushes_total",
		Help:      "Reading progress pushes by outcome",
	}, []string{"outcome"})

	// GeometryDecodeFailures counts patches skipped by the overlap check.
	GeometryDecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "readkeeper",
		Subsystem: "overlap",
		Name:      "decode_failures_total",
		Help:      "Highlight patches that could not be decoded",
	})

	// ContentDownloads counts document content downloads by outcome.
	ContentDownloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "readkeeper",
		Subsystem: "content",
		Name:      "downloads_total",
		Help:      "Document content downloads by outcome",
	}, []string{"outcome"})
)

// ObserveCall records one finished remote call.
func ObserveCall(op, outcome string, started time.Time) {
	ReconcileOperations.WithLabelValues(op, outcome).Inc()
	ReconcileLatency.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// Serve exposes /metrics on addr until ctx is done. An empty addr disables it.
func Serve(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
