// Package metrics records run outcomes as Prometheus metrics.
//
// The CLI is short-lived, so nothing is scraped. Instead a run writes its
// metrics to a file in the text exposition format for node_exporter's
// textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/policy"
	"github.com/agentstation/tally/pkg/reconcile"
)

const namespace = "tally"

// Recorder holds the metrics of one process on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	groups       *prometheus.CounterVec
	outside      prometheus.Counter
	checks       *prometheus.CounterVec
	duration     *prometheus.GaugeVec
	lastRun      *prometheus.GaugeVec
	fingerprints prometheus.Counter
}

// New creates a recorder.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		// runs counts finished commands.
		// Labels: command (diff, recon, check, fingerprint), status (pass, warn, fail, baseline_created, error)
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by command and outcome",
		}, []string{"command", "status"}),

		groups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_total",
			Help:      "Reconciled groups by bucket",
		}, []string{"bucket"}),

		outside: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diffs_outside_tolerance_total",
			Help:      "Compared cells differing by more than the tolerance",
		}),

		checks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Policy checks by status",
		}, []string{"status"}),

		duration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}, []string{"command"}),

		lastRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}, []string{"command"}),

		fingerprints: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fingerprints_total",
			Help:      "Content trees fingerprinted",
		}),
	}
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveResult records the bucket counts of a reconciliation.
func (r *Recorder) ObserveResult(res *reconcile.Result) {
	if res == nil {
		return
	}
	for _, bc := range res.Summary.Buckets {
		r.groups.WithLabelValues(bc.Bucket.String()).Add(float64(bc.Count))
	}
	r.outside.Add(float64(res.Summary.DiffOutsideTolerance))
}

// ObserveVerdict records each check of a verdict.
func (r *Recorder) ObserveVerdict(v *policy.Verdict) {
	if v == nil {
		return
	}
	for _, c := range v.Checks {
		r.checks.WithLabelValues(string(c.Status)).Inc()
	}
}

// ObserveFingerprints records n fingerprinted trees.
func (r *Recorder) ObserveFingerprints(n int) {
	r.fingerprints.Add(float64(n))
}

// ObserveRun records a finished command.
func (r *Recorder) ObserveRun(command, status string, started time.Time) {
	r.runs.WithLabelValues(command, status).Inc()
	r.duration.WithLabelValues(command).Set(time.Since(started).Seconds())
	r.lastRun.WithLabelValues(command).SetToCurrentTime()
}

// WriteTextfile writes every metric to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}
