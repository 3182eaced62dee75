package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	defaultMu sync.Mutex
	defaultM  *Metrics
)

// GetDefault returns the process-wide Metrics instance registered on
// the global prometheus registerer, creating it on first use.
func GetDefault() *Metrics {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultM == nil {
		defaultM = NewMetrics(prometheus.DefaultRegisterer)
	}
	return defaultM
}

// NewRegistry builds an isolated registry with a Metrics instance
// registered on it. Tests use this to keep collectors out of the
// global registerer, which rejects duplicate registration.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	return reg, NewMetrics(reg)
}

// Handler serves the global registerer's metrics over HTTP. flowbench
// itself mounts no endpoint; this is for embedding callers.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves a specific registry.
func HandlerFor(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Reset discards the process-wide instance so the next GetDefault
// rebuilds it. Registering the same collectors twice on the global
// registerer panics, so tests must pair Reset with an isolated
// registry or run in one process.
func Reset() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultM = nil
}
