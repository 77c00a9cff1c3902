// Package metrics provides Prometheus instrumentation for the overlay
// registries. Gauges follow registry occupancy and counters track committed
// changes and expired notifications.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmylchreest/overlayd/internal/model"
	"github.com/jmylchreest/overlayd/internal/registry"
)

var (
	// ActiveSessions tracks the number of sessions currently in each registry.
	ActiveSessions = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "overlayd_active_sessions",
		Help: "Current number of sessions held by a registry",
	}, []string{"registry"}) // registry = "dialog", "notification"

	// ChangesTotal counts registry change notifications. Class name updates
	// notify observers too and are counted alongside mutations.
	ChangesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "overlayd_registry_changes_total",
		Help: "Total number of registry change notifications, including class name updates",
	}, []string{"registry"})

	// ExpiredTotal counts notifications removed by the expiry sweep.
	ExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "overlayd_notifications_expired_total",
		Help: "Total number of notifications closed by expiry",
	})
)

func init() {
	prometheus.MustRegister(
		ActiveSessions,
		ChangesTotal,
		ExpiredTotal,
	)
}

// Observable is a registry that can be instrumented.
type Observable interface {
	Kind() string
	Len() int
	Subscribe(fn registry.Observer) registry.Subscription
}

// Observe keeps the gauges for r current. The returned subscription can be
// passed to the registry's Unsubscribe.
func Observe(r Observable) registry.Subscription {
	kind := r.Kind()
	ActiveSessions.WithLabelValues(kind).Set(float64(r.Len()))
	return r.Subscribe(func() {
		ChangesTotal.WithLabelValues(kind).Inc()
		ActiveSessions.WithLabelValues(kind).Set(float64(r.Len()))
	})
}

// ObserveExpiry counts notifications removed by expiry sweeps.
func ObserveExpiry(r *registry.NotificationRegistry) {
	r.OnExpired(func(expired []*model.NotificationSession) {
		ExpiredTotal.Add(float64(len(expired)))
	})
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics endpoint listening", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
