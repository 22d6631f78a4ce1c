// Package telemetry — метрики Prometheus для оценщиков и бенчмарка.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shiwa/timecard-mini/pmu-freq/internal/pmu"
)

var (
	Registry = prometheus.NewRegistry()

	EstimatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pmu",
			Name:      "estimates_total",
			Help:      "Total number of output records produced.",
		},
		[]string{"estimator"},
	)

	StatusFlagsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pmu",
			Name:      "status_flags_total",
			Help:      "Output records with a given status flag set.",
		},
		[]string{"estimator", "flag"},
	)

	InputErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pmu",
			Name:      "input_errors_total",
			Help:      "Snapshots rejected by an estimator (missing channel or node).",
		},
		[]string{"estimator"},
	)

	FrequencyHz = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pmu",
			Name:      "frequency_hz",
			Help:      "Latest frequency estimate.",
		},
		[]string{"estimator"},
	)

	RocofHzS = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pmu",
			Name:      "rocof_hz_per_second",
			Help:      "Latest RoCoF estimate.",
		},
		[]string{"estimator"},
	)

	UpdateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pmu",
			Name:      "update_duration_seconds",
			Help:      "Time spent in a single estimator update.",
			// 100ns .. ~3ms
			Buckets: prometheus.ExponentialBuckets(1e-7, 2, 15),
		},
		[]string{"estimator"},
	)

	BenchmarkRMSE = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pmu",
			Name:      "benchmark_rmse_hz",
			Help:      "Frequency RMSE against the synthetic truth.",
		},
		[]string{"scenario", "estimator"},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "pmu",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

var flags = []pmu.Status{pmu.StatusDataError, pmu.StatusClockNotSynced, pmu.StatusPLLUnlocked, pmu.StatusOverRange}

func init() {
	Registry.MustRegister(EstimatesTotal, StatusFlagsTotal, InputErrorsTotal, FrequencyHz, RocofHzS, UpdateDuration, BenchmarkRMSE, uptime)
}

// MetricsHandler отдаёт /metrics
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Observe учитывает одну выходную запись и длительность обновления
func Observe(estimator string, o pmu.Output, d time.Duration) {
	EstimatesTotal.WithLabelValues(estimator).Inc()
	FrequencyHz.WithLabelValues(estimator).Set(o.FrequencyHz)
	RocofHzS.WithLabelValues(estimator).Set(o.RocofHzS)
	UpdateDuration.WithLabelValues(estimator).Observe(d.Seconds())
	for _, f := range flags {
		if o.Status.Has(f) {
			StatusFlagsTotal.WithLabelValues(estimator, f.String()).Inc()
		}
	}
}

// InputError учитывает отвергнутый снимок
func InputError(estimator string) {
	InputErrorsTotal.WithLabelValues(estimator).Inc()
}

// Serve поднимает HTTP /metrics на addr и останавливает его при отмене ctx.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
