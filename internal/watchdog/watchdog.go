// Package watchdog runs the idle loop: wait until the instance has been up
// for the idle threshold, then check for activity and stop the instance
// once nothing has happened for that long.
package watchdog

import (
	"context"
	"log/slog"
	"time"

	"github.com/ericpauley/ec2-autostop/internal/activity"
	"github.com/ericpauley/ec2-autostop/internal/instance"
	"github.com/ericpauley/ec2-autostop/internal/metrics"
)

type Prober interface {
	LastActive(ctx context.Context) activity.Record
}

type Options struct {
	Controller instance.Controller
	Prober     Prober
	InstanceID string
	Threshold  time.Duration
	Hibernate  bool
	Logger     *slog.Logger
	Metrics    *metrics.Recorder

	// Now and Sleep default to the wall clock.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

type Watchdog struct {
	controller instance.Controller
	prober     Prober
	instanceID string
	threshold  time.Duration
	hibernate  bool
	log        *slog.Logger
	metrics    *metrics.Recorder
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

func New(opts Options) *Watchdog {
	w := &Watchdog{
		controller: opts.Controller,
		prober:     opts.Prober,
		instanceID: opts.InstanceID,
		threshold:  opts.Threshold,
		hibernate:  opts.Hibernate,
		log:        opts.Logger,
		metrics:    opts.Metrics,
		now:        opts.Now,
		sleep:      opts.Sleep,
	}
	if w.log == nil {
		w.log = slog.New(slog.DiscardHandler)
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.sleep == nil {
		w.sleep = Sleep
	}
	w.metrics.Threshold(w.threshold)
	return w
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run loops until ctx is cancelled or a sleep fails and returns that error.
func (w *Watchdog) Run(ctx context.Context) error {
	for {
		if err := w.bootWait(ctx); err != nil {
			return err
		}
		if err := w.idleLoop(ctx); err != nil {
			return err
		}
	}
}

// bootWait sleeps until the instance has been up for the idle threshold.
// When the launch time is unknown there is no wait.
func (w *Watchdog) bootWait(ctx context.Context) error {
	launch, err := w.controller.LaunchTime(ctx, w.instanceID)
	if err != nil {
		w.log.Error("Failed to get launch time of current machine", "instance", w.instanceID, "error", err)
		return ctx.Err()
	}
	uptime := w.now().Sub(launch)
	w.metrics.Uptime(uptime)
	w.log.Info("Machine has started", "seconds", round(uptime))
	if uptime < w.threshold {
		return w.sleep(ctx, w.threshold-uptime)
	}
	return nil
}

// idleLoop checks for activity until a stop has been issued and its
// threshold-long grace period has passed.
func (w *Watchdog) idleLoop(ctx context.Context) error {
	for {
		wait, stopped := w.check(ctx)
		if err := w.sleep(ctx, wait); err != nil {
			return err
		}
		if stopped {
			return nil
		}
	}
}

// check probes activity once. It stops the instance when the idle time
// has reached the threshold and returns how long to sleep before the next
// step.
func (w *Watchdog) check(ctx context.Context) (time.Duration, bool) {
	latest := w.prober.LastActive(ctx)
	idle := w.now().Sub(latest.Timestamp)
	w.metrics.Idle(idle, latest.Timestamp)
	defer w.flushMetrics()

	if idle < w.threshold {
		w.log.Info("File accessed recently", "file", latest.File, "seconds", round(idle))
		return w.threshold - idle, false
	}

	w.log.Warn("No activity within idle threshold", "max_idle_minutes", w.threshold.Minutes())
	w.log.Warn("About to stop current instance", "instance", w.instanceID, "hibernate", w.hibernate)
	err := w.controller.Stop(ctx, w.instanceID, w.hibernate)
	w.metrics.StopAttempt(err)
	if err != nil {
		w.log.Error("Failed to stop current instance", "instance", w.instanceID, "error", err)
	}
	return w.threshold, true
}

func (w *Watchdog) flushMetrics() {
	if err := w.metrics.Flush(); err != nil {
		w.log.Debug("Failed to write metrics", "error", err)
	}
}

func round(d time.Duration) float64 {
	return float64(d.Round(100*time.Millisecond)) / float64(time.Second)
}
