// Package metrics exports the watchdog state in the node_exporter textfile
// format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ec2_autostop"

// Recorder collects watchdog gauges and writes them to a textfile. A nil
// Recorder discards everything.
type Recorder struct {
	path     string
	registry *prometheus.Registry

	idleSeconds      prometheus.Gauge
	lastActivity     prometheus.Gauge
	uptimeSeconds    prometheus.Gauge
	thresholdSeconds prometheus.Gauge
	stopAttempts     prometheus.Counter
	stopFailures     prometheus.Counter
}

// New returns a Recorder writing to path, or nil when path is empty.
func New(path string) *Recorder {
	if path == "" {
		return nil
	}
	r := &Recorder{
		path:     path,
		registry: prometheus.NewRegistry(),
		idleSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "idle_seconds",
			Help:      "Seconds since the last observed activity.",
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_activity_timestamp_seconds",
			Help:      "Unix time of the last observed activity.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the instance was launched, as of the last check.",
		}),
		thresholdSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "idle_threshold_seconds",
			Help:      "Idle time after which the instance is stopped.",
		}),
		stopAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stop_attempts_total",
			Help:      "Stop requests sent for this instance.",
		}),
		stopFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stop_failures_total",
			Help:      "Stop requests that failed.",
		}),
	}
	r.registry.MustRegister(r.idleSeconds, r.lastActivity, r.uptimeSeconds,
		r.thresholdSeconds, r.stopAttempts, r.stopFailures)
	return r
}

func (r *Recorder) Threshold(d time.Duration) {
	if r == nil {
		return
	}
	r.thresholdSeconds.Set(d.Seconds())
}

func (r *Recorder) Uptime(d time.Duration) {
	if r == nil {
		return
	}
	r.uptimeSeconds.Set(d.Seconds())
}

// Idle records the idle time and when activity was last seen. A zero
// last leaves the timestamp gauge at 0.
func (r *Recorder) Idle(idle time.Duration, last time.Time) {
	if r == nil {
		return
	}
	r.idleSeconds.Set(idle.Seconds())
	if last.IsZero() {
		r.lastActivity.Set(0)
	} else {
		r.lastActivity.Set(float64(last.UnixNano()) / float64(time.Second))
	}
}

func (r *Recorder) StopAttempt(err error) {
	if r == nil {
		return
	}
	r.stopAttempts.Inc()
	if err != nil {
		r.stopFailures.Inc()
	}
}

// Flush writes the current values to the textfile atomically.
func (r *Recorder) Flush() error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(r.path, r.registry)
}
