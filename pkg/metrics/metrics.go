// Package metrics exposes the Prometheus metrics of the Kaltura client.
// All metrics are defined in their respective packages (client, session,
// cache, pagination, ratelimit) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation, the registry and an HTTP handler.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the default Prometheus registry used by the Kaltura client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics handler for Registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// HealthHandler answers liveness probes of long running commands.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// Serve exposes /metrics and /health on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", HealthHandler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
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

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - kaltura_requests_total{action, status} (Counter): Calls by service.action and outcome
//   - kaltura_request_duration_seconds{action} (Histogram): Call duration including retries
//   - kaltura_errors_total{class} (Counter): Errors by class (transient, rejected, session, circuit_open, cancelled, other)
//   - kaltura_integrity_warnings_total{kind} (Counter): Count mismatches and duplicate referenceIds
//
// Retry Metrics (pkg/client):
//   - kaltura_retries_total{action} (Counter): Retry attempts
//   - kaltura_retry_delay_seconds{action} (Histogram): Waits between attempts
//   - kaltura_retry_exhausted_total{action} (Counter): Calls that failed every attempt
//
// Circuit Breaker Metrics (pkg/client):
//   - kaltura_circuit_breaker_state{name} (Gauge): 0 closed, 1 half-open, 2 open
//   - kaltura_circuit_breaker_transitions_total{name, from, to} (Counter): State changes
//
// Session Metrics (pkg/session):
//   - kaltura_session_negotiations_total{strategy, result} (Counter): success, failure or shared
//   - kaltura_session_age_seconds (Gauge): Age of the session in use
//   - kaltura_session_invalidations_total (Counter): Sessions rejected by the service
//
// Cache Metrics (pkg/cache):
//   - kaltura_cache_hits_total{kind} (Counter): Hits for shared sessions and referenceIds
//   - kaltura_cache_misses_total{kind} (Counter): Misses
//   - kaltura_cache_size_bytes (Gauge): Size of the last stored entry
//   - kaltura_cache_errors_total{operation} (Counter): Redis failures
//
// Export Metrics (pkg/pagination):
//   - kaltura_export_pages_total{export} (Counter): Pages fetched
//   - kaltura_export_records_total{export} (Counter): Records received before deduplication
//   - kaltura_export_reanchors_total{export} (Counter): Result window ceiling escapes
//   - kaltura_export_runs_total{export, result} (Counter): Finished exports
//   - kaltura_batch_fetches_total{result} (Counter): Id batch lookups
//
// Rate Limit Metrics (pkg/ratelimit):
//   - kaltura_rate_limit_waits_total (Counter): Calls delayed by the limiter
//   - kaltura_rate_limit_wait_seconds (Histogram): Time spent waiting
//
// Example Prometheus Queries:
//
//   # Transient error rate
//   rate(kaltura_errors_total{class="transient"}[5m])
//
//   # P95 call latency
//   histogram_quantile(0.95, rate(kaltura_request_duration_seconds_bucket[5m]))
//
//   # Re-anchors per export run
//   rate(kaltura_export_reanchors_total[1h]) / rate(kaltura_export_runs_total[1h])
//
//   # Breaker open
//   kaltura_circuit_breaker_state == 2
