package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics exposes observer activity for scraping in forever mode.
type Metrics struct {
	registry *prometheus.Registry

	AwardsTotal *prometheus.GaugeVec
	FetchErrors *prometheus.CounterVec
	RunDuration prometheus.Summary
	LastSuccess prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.AwardsTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "election_observer",
		Name:      "awards_total",
		Help:      "Known badge awards per tracked badge",
	}, []string{"site", "badge"})

	m.FetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "election_observer",
		Name:      "fetch_errors_total",
		Help:      "Failed incremental fetches per tracked badge",
	}, []string{"site", "badge"})

	m.RunDuration = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: "election_observer",
		Name:      "run_duration_seconds",
		Help:      "Time spent per update cycle",
	})

	m.LastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "election_observer",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last fully successful update cycle",
	})

	m.registry.MustRegister(m.AwardsTotal, m.FetchErrors, m.RunDuration, m.LastSuccess)
	return m
}

func (m *Metrics) Handler() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Serve runs the metrics endpoint until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics endpoint listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
