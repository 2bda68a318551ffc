// Package metrics records admission outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"statusgate/internal/models"
)

// Recorder receives admission events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Decision(outcome models.Outcome, stage string)
	AuditDropped()
}

// NoOp discards everything, so callers never need a nil check.
type NoOp struct{}

func (NoOp) Decision(models.Outcome, string) {}
func (NoOp) AuditDropped()                   {}

// Prometheus exposes admission metrics on its own registry.
type Prometheus struct {
	registry  *prometheus.Registry
	decisions *prometheus.CounterVec
	dropped   prometheus.Counter
}

// NewPrometheus registers the admission collectors. trackedWindows, when not
// nil, is sampled on every scrape.
func NewPrometheus(trackedWindows func() int) *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statusgate_admission_decisions_total",
				Help: "Admission decisions by outcome and deciding stage",
			},
			[]string{"outcome", "stage"},
		),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statusgate_audit_events_dropped_total",
			Help: "Audit events dropped because the publish buffer was full",
		}),
	}
	p.registry.MustRegister(p.decisions, p.dropped)

	if trackedWindows != nil {
		p.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "statusgate_rate_limit_tracked_identities",
				Help: "Client identities with an open rate-limit window",
			},
			func() float64 { return float64(trackedWindows()) },
		))
	}
	return p
}

func (p *Prometheus) Decision(outcome models.Outcome, stage string) {
	p.decisions.WithLabelValues(string(outcome), stage).Inc()
}

func (p *Prometheus) AuditDropped() {
	p.dropped.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}
