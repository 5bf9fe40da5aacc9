// Package connectivity decides when the outbox should be drained. It turns
// platform online signals, wake-ups and its own health probes into at most
// one sync at a time.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openmined/solvesync/internal/events"
)

const (
	DefaultSettleDelay      = 2 * time.Second
	DefaultProbeInterval    = 30 * time.Second
	DefaultMaxProbeInterval = 5 * time.Minute
)

// TriggerResult is the outcome of one sync trigger.
type TriggerResult string

const (
	TriggerTriggered TriggerResult = "triggered"
	TriggerBusy      TriggerResult = "busy"
	TriggerEmpty     TriggerResult = "empty"
	TriggerOffline   TriggerResult = "offline"
)

// Prober checks whether the server can be reached.
type Prober interface {
	Ping(ctx context.Context) error
}

// Counter reports how many mutations are pending.
type Counter interface {
	Count(ctx context.Context) int
}

// SyncFunc drains the queue. It is never called concurrently by a Detector.
type SyncFunc func(ctx context.Context)

type Config struct {
	SettleDelay      time.Duration
	ProbeInterval    time.Duration
	MaxProbeInterval time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.SettleDelay <= 0 {
		out.SettleDelay = DefaultSettleDelay
	}
	if out.ProbeInterval <= 0 {
		out.ProbeInterval = DefaultProbeInterval
	}
	if out.MaxProbeInterval < out.ProbeInterval {
		out.MaxProbeInterval = max(DefaultMaxProbeInterval, out.ProbeInterval)
	}
	return out
}

type Detector struct {
	cfg    Config
	prober Prober
	queue  Counter
	sync   SyncFunc
	events events.Publisher
	online atomic.Bool
	// observed is set once a probe or a report has recorded a state
	observed atomic.Bool
	muSync   sync.Mutex
	wg       sync.WaitGroup
}

func NewDetector(cfg Config, prober Prober, queue Counter, syncFn SyncFunc, pub events.Publisher) *Detector {
	if pub == nil {
		pub = events.Discard
	}
	return &Detector{
		cfg:    cfg.withDefaults(),
		prober: prober,
		queue:  queue,
		sync:   syncFn,
		events: pub,
	}
}

// Start runs the probe loop until ctx is done.
func (d *Detector) Start(ctx context.Context) error {
	slog.Info("connectivity start", "probeInterval", d.cfg.ProbeInterval, "settleDelay", d.cfg.SettleDelay)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.probeLoop(ctx)
	}()

	return nil
}

// Stop waits for the probe loop and any sync it started to return.
func (d *Detector) Stop() {
	d.wg.Wait()
	slog.Info("connectivity stop")
}

// Online reports the last observed connectivity state.
func (d *Detector) Online() bool {
	return d.online.Load()
}

// Offline reports whether the server was last observed unreachable. It is
// false until the first probe or report.
func (d *Detector) Offline() bool {
	return d.observed.Load() && !d.online.Load()
}

// ReportOffline records a failure observed outside the probe, e.g. a direct
// mutation that could not reach the server.
func (d *Detector) ReportOffline() {
	d.setOnline(false)
}

// NotifyOnline handles a platform online transition. Connectivity is checked
// again after the settle delay and the sync is skipped if it flapped back off.
func (d *Detector) NotifyOnline(ctx context.Context) TriggerResult {
	timer := time.NewTimer(d.cfg.SettleDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return TriggerOffline
	case <-timer.C:
	}

	if !d.check(ctx) {
		slog.Debug("connectivity flapped offline after settle")
		return TriggerOffline
	}
	return d.trigger(ctx, "online")
}

// Wake handles an external request to sync now.
func (d *Detector) Wake(ctx context.Context) TriggerResult {
	if !d.check(ctx) {
		slog.Info("sync wake skipped", "result", TriggerOffline)
		return TriggerOffline
	}
	return d.trigger(ctx, "wake")
}

func (d *Detector) trigger(ctx context.Context, source string) TriggerResult {
	if !d.muSync.TryLock() {
		slog.Debug("sync trigger dropped", "source", source, "result", TriggerBusy)
		return TriggerBusy
	}
	defer d.muSync.Unlock()

	count := d.queue.Count(ctx)
	if count == 0 {
		slog.Debug("sync trigger skipped", "source", source, "result", TriggerEmpty)
		return TriggerEmpty
	}

	slog.Info("sync trigger", "source", source, "pending", count)
	d.sync(ctx)
	return TriggerTriggered
}

// Busy reports whether a sync started by this detector is in flight.
func (d *Detector) Busy() bool {
	if d.muSync.TryLock() {
		d.muSync.Unlock()
		return false
	}
	return true
}

func (d *Detector) probeLoop(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.cfg.ProbeInterval
	bo.MaxInterval = d.cfg.MaxProbeInterval
	bo.MaxElapsedTime = 0
	bo.Reset()

	// using a timer and not a ticker so a slow sync never queues probes
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			wasOnline := d.Online()
			online := d.check(ctx)

			next := d.cfg.ProbeInterval
			if online {
				bo.Reset()
				if !wasOnline {
					d.NotifyOnline(ctx)
				} else {
					// deferred or skipped mutations stay queued while the server is reachable
					d.trigger(ctx, "probe")
				}
			} else {
				next = bo.NextBackOff()
			}
			timer.Reset(next)
		}
	}
}

// check probes the server and records the result.
func (d *Detector) check(ctx context.Context) bool {
	err := d.prober.Ping(ctx)
	if err != nil {
		slog.Debug("connectivity probe failed", "error", err)
	}
	online := err == nil
	d.setOnline(online)
	return online
}

func (d *Detector) setOnline(online bool) {
	d.observed.Store(true)
	if d.online.Swap(online) == online {
		return
	}
	slog.Info("connectivity changed", "online", online)
	d.events.Publish(events.TopicConnectivityChanged, events.ConnectivityChanged{Online: online})
}
