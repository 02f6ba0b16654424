// Package poller drives address detection and rule reconciliation, either
// once or on a fixed interval until cancelled.
//
// Cancellation is only observed between ticks. A pass that has started
// runs to completion on a context detached from the caller's, so a stop
// request never leaves a target half reconciled.
package poller

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"grimm.is/dynwall/internal/clock"
	"grimm.is/dynwall/internal/config"
	"grimm.is/dynwall/internal/geoip"
	"grimm.is/dynwall/internal/health"
	"grimm.is/dynwall/internal/logging"
	"grimm.is/dynwall/internal/metrics"
	"grimm.is/dynwall/internal/resolver"
)

// State of a Loop. Stopped is terminal.
type State int32

const (
	Idle State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// ErrAlreadyStarted is returned when a Loop is run a second time.
var ErrAlreadyStarted = errors.New("poll loop already started")

// AddressResolver detects the public addresses of the enabled families.
type AddressResolver interface {
	Resolve(ctx context.Context, families []resolver.Family) resolver.AddressSet
}

// RuleReconciler pushes an address set to the configured rules.
type RuleReconciler interface {
	Reconcile(ctx context.Context, targets []config.Target, addrs resolver.AddressSet) bool
}

// Options configures a Loop.
type Options struct {
	Families []resolver.Family
	Targets  []config.Target
	// Delay between ticks; values below config.MinDelay are raised to it.
	Delay   time.Duration
	Clock   clock.Clock
	Logger  *logging.Logger
	Locator *geoip.Locator
}

// Loop owns the previous address set for the lifetime of a repeating run.
type Loop struct {
	resolver   AddressResolver
	reconciler RuleReconciler
	families   []resolver.Family
	targets    []config.Target
	delay      time.Duration
	clock      clock.Clock
	logger     *logging.Logger
	metrics    *metrics.Registry
	locator    *geoip.Locator

	state    atomic.Int32
	lastTick atomic.Int64
	previous resolver.AddressSet
}

// New creates a Loop in the Idle state.
func New(res AddressResolver, rec RuleReconciler, opts Options) *Loop {
	l := &Loop{
		resolver:   res,
		reconciler: rec,
		families:   opts.Families,
		targets:    opts.Targets,
		delay:      ClampDelay(opts.Delay),
		clock:      opts.Clock,
		logger:     opts.Logger,
		metrics:    metrics.Get(),
		locator:    opts.Locator,
	}
	if l.clock == nil {
		l.clock = &clock.RealClock{}
	}
	if l.logger == nil {
		l.logger = logging.WithComponent("poller")
	}
	return l
}

// ClampDelay raises d to config.MinDelay.
func ClampDelay(d time.Duration) time.Duration {
	if d < config.MinDelay {
		return config.MinDelay
	}
	return d
}

// Delay returns the effective interval.
func (l *Loop) Delay() time.Duration { return l.delay }

// State returns the current state.
func (l *Loop) State() State { return State(l.state.Load()) }

func (l *Loop) start() error {
	if !l.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return ErrAlreadyStarted
	}
	return nil
}

// RunOnce resolves and reconciles exactly once, then stops. It reports the
// reconciler's result.
func (l *Loop) RunOnce(ctx context.Context) (bool, error) {
	if err := l.start(); err != nil {
		return false, err
	}
	defer l.state.Store(int32(Stopped))

	ctx = context.WithoutCancel(ctx)
	start := l.clock.Now()
	addrs := l.resolver.Resolve(ctx, l.families)
	l.logChange(l.logger, addrs)
	ok := l.reconciler.Reconcile(ctx, l.targets, addrs)
	l.metrics.RecordTick(true, l.clock.Since(start))
	return ok, nil
}

// Run ticks every Delay until ctx is cancelled. Reconciliation only runs
// when the detected set differs from the previous tick's.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.start(); err != nil {
		return err
	}
	defer l.state.Store(int32(Stopped))

	l.logger.Info(fmt.Sprintf("Updating %s records every %d seconds", familyBanner(l.families), int(l.delay.Seconds())))

	passCtx := context.WithoutCancel(ctx)
	next := l.clock.Now()
	for {
		l.tick(passCtx)

		next = next.Add(l.delay)
		wait := l.clock.Until(next)
		if wait <= 0 {
			// Pass overran the interval; restart the schedule from now.
			next = l.clock.Now().Add(l.delay)
			wait = l.delay
		}

		if ctx.Err() != nil {
			l.stop()
			return nil
		}
		select {
		case <-ctx.Done():
			l.stop()
			return nil
		case <-l.clock.After(wait):
		}
	}
}

func (l *Loop) stop() {
	l.state.Store(int32(Stopping))
	l.logger.Info("Stopping")
}

func (l *Loop) tick(ctx context.Context) {
	log := l.logger.WithFields(map[string]any{"tick": uuid.NewString()})
	start := l.clock.Now()
	defer func() { l.lastTick.Store(l.clock.Now().UnixNano()) }()

	addrs := l.resolver.Resolve(ctx, l.families)
	if addrs.Equal(l.previous) {
		log.Debug("Addresses unchanged", "addresses", addrs.String())
		l.metrics.RecordTick(false, l.clock.Since(start))
		return
	}

	l.logChange(log, addrs)
	l.reconciler.Reconcile(ctx, l.targets, addrs)
	l.previous = addrs
	l.metrics.RecordTick(true, l.clock.Since(start))
	log.Debug("Pass complete", "duration", l.clock.Since(start))
}

func (l *Loop) logChange(log *logging.Logger, addrs resolver.AddressSet) {
	l.metrics.RecordAddresses(addrs.ByFamily(), l.clock.Now())

	args := []any{"addresses", addrs.String()}
	if l.locator != nil {
		for _, a := range addrs {
			if cc := l.locator.Country(a); cc != "" {
				args = append(args, "country_"+familyOf(a), cc)
			}
		}
	}
	log.Info("Address changed", args...)
}

func familyOf(a netip.Addr) string {
	if resolver.IPv6.Matches(a) {
		return resolver.IPv6.String()
	}
	return resolver.IPv4.String()
}

func familyBanner(families []resolver.Family) string {
	c := config.Config{}
	for _, f := range families {
		switch f {
		case resolver.IPv4:
			c.IPv4 = true
		case resolver.IPv6:
			c.IPv6 = true
		}
	}
	return c.Families()
}

// LastTick returns when the most recent pass finished, or the zero time.
func (l *Loop) LastTick() time.Time {
	n := l.lastTick.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// HealthCheck reports the loop as unhealthy once it stops and as degraded
// when no pass has finished within two intervals.
func (l *Loop) HealthCheck(context.Context) health.Check {
	now := l.clock.Now()
	check := health.Check{Status: health.StatusHealthy, LastChecked: now}

	switch state := l.State(); state {
	case Idle:
		check.Status = health.StatusDegraded
		check.Message = "not started"
		return check
	case Stopping, Stopped:
		check.Status = health.StatusUnhealthy
		check.Message = state.String()
		return check
	}

	last := l.LastTick()
	switch {
	case last.IsZero():
		check.Message = "first pass in progress"
	case now.Sub(last) > 2*l.delay:
		check.Status = health.StatusDegraded
		check.Message = fmt.Sprintf("no pass finished since %s", last.Format(time.RFC3339))
	default:
		check.Message = fmt.Sprintf("last pass %s", last.Format(time.RFC3339))
	}
	return check
}
