// Package metrics exposes the service's Prometheus collectors and the
// standalone server that publishes them.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors groups every metric the service records. A single instance
// is created per MetricsServer and handed to the components that update it.
type Collectors struct {
	WebhookDeliveries *prometheus.CounterVec
	CredentialMints   *prometheus.CounterVec
	ConfigFetches     *prometheus.CounterVec
	PlanEntries       prometheus.Counter
}

// NewCollectors registers the service collectors on reg.
func NewCollectors(namespace string, reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		WebhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Webhook deliveries by event type and terminal planner state.",
		}, []string{"event", "state"}),
		CredentialMints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_mints_total",
			Help:      "Signed assertion and access token mints by kind and outcome.",
		}, []string{"kind", "outcome"}),
		ConfigFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_fetches_total",
			Help:      "Repository configuration fetches by outcome.",
		}, []string{"outcome"}),
		PlanEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_entries_total",
			Help:      "Propagation plan entries emitted.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.WebhookDeliveries, c.CredentialMints, c.ConfigFetches, c.PlanEntries)
	}
	return c
}

// Nop returns collectors that are not registered anywhere. Components use
// it when no metrics were wired in.
func Nop() *Collectors {
	return NewCollectors("nop", nil)
}

type MetricsServer struct {
	Collectors *Collectors

	srv *http.Server
}

func New(namespace, listenAddr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	collectors := NewCollectors(namespace, registry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &MetricsServer{
		Collectors: collectors,
		srv: &http.Server{
			Addr:              listenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
