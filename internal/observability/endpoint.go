// endpoint.go optional Prometheus scrape endpoint
package observability

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/birdfeeder-go/internal/logging"
)

// Endpoint serves the Prometheus metrics over HTTP. It is disabled by
// default; the device has no other network surface.
type Endpoint struct {
	server  *http.Server
	metrics *Metrics
	log     *slog.Logger
}

// NewEndpoint creates a metrics endpoint listening on addr.
func NewEndpoint(addr string, metrics *Metrics) *Endpoint {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	return &Endpoint{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		metrics: metrics,
		log:     logging.ForService("observability"),
	}
}

// Start serves the endpoint until the context is cancelled.
func (e *Endpoint) Start(ctx context.Context) {
	go func() {
		e.log.Info("metrics endpoint listening", "addr", e.server.Addr)
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("metrics endpoint failed", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.server.Shutdown(shutdownCtx)
	}()
}
