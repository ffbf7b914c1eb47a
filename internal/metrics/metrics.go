// Package metrics exposes Prometheus counters for uploads and bot traffic.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/lessonbot/core/logger"
)

const namespace = "lessonbot"

// Metrics implements upload.Observer and counts handled updates.
type Metrics struct {
	registry *prometheus.Registry

	sessionsStarted prometheus.Counter
	sessionsEnded   *prometheus.CounterVec
	booksCreated    prometheus.Counter
	lessonsAdded    prometheus.Counter
	storageErrors   *prometheus.CounterVec
	updates         *prometheus.CounterVec
	sendFailures    *prometheus.CounterVec
}

// New registers collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		sessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_sessions_started_total",
			Help:      "Upload sessions opened by admins.",
		}),
		sessionsEnded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_sessions_ended_total",
			Help:      "Upload sessions closed, by outcome.",
		}, []string{"outcome"}),
		booksCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "books_created_total",
			Help:      "Books committed to the store.",
		}),
		lessonsAdded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lessons_added_total",
			Help:      "Lessons committed to the store.",
		}),
		storageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Store failures seen by the upload workflow, by operation.",
		}, []string{"op"}),
		updates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Telegram updates received, by kind.",
		}, []string{"kind"}),
		sendFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Outbound Telegram calls that exhausted their retries, by action and error kind.",
		}, []string{"action", "kind"}),
	}
}

// TrackActiveSessions registers a gauge sampled from fn at scrape time.
func (m *Metrics) TrackActiveSessions(fn func() int) {
	if m == nil || fn == nil {
		return
	}
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "upload_sessions_active",
		Help:      "Upload sessions currently held in memory.",
	}, func() float64 { return float64(fn()) })
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
}

func (m *Metrics) SessionEnded(outcome string, _ int) {
	if m == nil {
		return
	}
	m.sessionsEnded.WithLabelValues(outcome).Inc()
}

func (m *Metrics) BookCreated() {
	if m == nil {
		return
	}
	m.booksCreated.Inc()
}

func (m *Metrics) LessonCommitted() {
	if m == nil {
		return
	}
	m.lessonsAdded.Inc()
}

func (m *Metrics) StorageFailed(op string) {
	if m == nil {
		return
	}
	m.storageErrors.WithLabelValues(op).Inc()
}

// UpdateReceived counts one inbound update of the given kind.
func (m *Metrics) UpdateReceived(kind string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(kind).Inc()
}

// SendFailed counts one outbound call the sender gave up on.
func (m *Metrics) SendFailed(action, kind string) {
	if m == nil {
		return
	}
	m.sendFailures.WithLabelValues(action, kind).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on listen until ctx is cancelled. An empty listen
// address disables the endpoint.
func (m *Metrics) Serve(ctx context.Context, listen string) error {
	if listen == "" {
		<-ctx.Done()
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, logger.CompMetrics, "metrics.listen", slog.String("listen", listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error(ctx, logger.CompMetrics, "metrics.listen", slog.String("status", "fail"), logger.Err(err))
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
