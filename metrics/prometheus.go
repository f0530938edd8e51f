// Package metrics exposes facilitator activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	x402 "github.com/x402-foundation/x402-cardano"
)

const namespace = "x402"

// Outcomes recorded for settle and status calls
const (
	OutcomeConfirmed = "confirmed"
	OutcomePending   = "pending"
	OutcomeFailed    = "failed"
)

// PrometheusRecorder records facilitator and ledger activity on its own registry
type PrometheusRecorder struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	backend  *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a recorder with a fresh registry
func NewPrometheusRecorder() *PrometheusRecorder {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facilitator_requests_total",
			Help:      "Facilitator operations by outcome and reason",
		},
		[]string{"operation", "outcome", "reason"},
	)

	latency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "facilitator_latency_seconds",
			Help:      "Facilitator operation latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	backend := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_backend_seconds",
			Help:      "Ledger indexer call latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"call", "result"},
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		requests,
		latency,
		backend,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &PrometheusRecorder{
		registry: registry,
		requests: requests,
		latency:  latency,
		backend:  backend,
	}
}

// Registry returns the underlying registry
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Instrument registers hooks on f that record every verify, settle and status call
func (p *PrometheusRecorder) Instrument(f *x402.Facilitator) {
	f.OnAfterVerify(func(ctx x402.FacilitatorVerifyResultContext) {
		outcome := "valid"
		if !ctx.Result.IsValid {
			outcome = "invalid"
		}
		p.requests.WithLabelValues(x402.OperationVerify, outcome, ctx.Result.InvalidReason).Inc()
		p.latency.WithLabelValues(x402.OperationVerify).Observe(ctx.Duration.Seconds())
	})
	f.OnAfterSettle(func(ctx x402.FacilitatorSettleResultContext) {
		p.requests.WithLabelValues(ctx.Operation, Outcome(ctx.Result), reasonLabel(ctx.Result)).Inc()
		p.latency.WithLabelValues(ctx.Operation).Observe(ctx.Duration.Seconds())
	})
}

// ObserveBackendCall records one ledger backend call. It satisfies ledger.CallObserver.
func (p *PrometheusRecorder) ObserveBackendCall(call string, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.backend.WithLabelValues(call, result).Observe(d.Seconds())
}

// Outcome classifies a settle or status response
func Outcome(resp x402.SettleResponse) string {
	switch {
	case resp.Success:
		return OutcomeConfirmed
	case resp.Pending:
		return OutcomePending
	default:
		return OutcomeFailed
	}
}

// reasonLabel keeps label cardinality bounded: ledger messages are free text
func reasonLabel(resp x402.SettleResponse) string {
	switch resp.ErrorReason {
	case "",
		x402.ReasonInvalidPayload,
		x402.ReasonInvalidVersionSchemeNetwork,
		x402.ReasonInvalidPaymentRequirements,
		x402.ReasonInvalidTransactionState,
		x402.ReasonUnexpectedSettleError:
		return resp.ErrorReason
	default:
		return "ledger_rejected"
	}
}
