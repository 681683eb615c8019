package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "schoolportal", Name: "http_request_duration_seconds", Help: "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	ReactionToggles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolportal", Name: "reaction_toggles_total", Help: "Reaction toggles by outcome",
	}, []string{"outcome"})

	ApprovalDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolportal", Name: "approval_decisions_total", Help: "Approval transitions by subject and decision",
	}, []string{"subject", "decision"})

	AuthorizationDenials = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolportal", Name: "authorization_denials_total", Help: "Denied authorization checks by result",
	}, []string{"result"})

	SideEffectFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolportal", Name: "side_effect_failures_total", Help: "Best-effort side effects that failed",
	}, []string{"kind"})

	JobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolportal", Name: "job_runs_total", Help: "Scheduled job runs by job and result",
	}, []string{"job", "result"})
)

func init() {
	prometheus.MustRegister(HTTPDuration, ReactionToggles, ApprovalDecisions, AuthorizationDenials, SideEffectFailures, JobRuns)
}

func Handler() http.Handler { return promhttp.Handler() }

func SideEffectFailed(kind string) { SideEffectFailures.WithLabelValues(kind).Inc() }
