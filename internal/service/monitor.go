package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"raywatch/internal/domain"
	"raywatch/internal/log"
)

// ErrorPolicy decides what the monitor does after a failed cycle
type ErrorPolicy string

const (
	// PolicyContinue logs the failure, treats the cycle as empty and keeps going
	PolicyContinue ErrorPolicy = "continue"
	// PolicyExit stops the monitor and returns the CycleError
	PolicyExit ErrorPolicy = "exit"
)

// ParseErrorPolicy validates s. An empty string means PolicyContinue.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch ErrorPolicy(s) {
	case "", PolicyContinue:
		return PolicyContinue, nil
	case PolicyExit:
		return PolicyExit, nil
	}
	return "", fmt.Errorf("unknown error policy %q", s)
}

// CycleError is an unexpected failure of a whole cycle
type CycleError struct {
	CycleID string
	Err     error
	// Panic is the recovered value when the cycle panicked
	Panic any
}

func (e *CycleError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("cycle %s panicked: %v", e.CycleID, e.Panic)
	}
	return fmt.Sprintf("cycle %s failed: %v", e.CycleID, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}

// Monitor drives the orchestrator at a fixed interval and publishes each
// cycle's events. It owns the scan state.
type Monitor struct {
	orch     *Orchestrator
	bus      *EventBus
	interval time.Duration
	policy   ErrorPolicy

	// previous holds the addresses of the last completed scan. Only the
	// monitor's own goroutine touches it.
	previous domain.AddressSet

	newCycleID func() string

	statsMu sync.RWMutex
	stats   Stats
}

// Stats summarises the monitor's progress
type Stats struct {
	Cycles        int64     `json:"cycles"`
	FailedCycles  int64     `json:"failed_cycles"`
	LastCycleID   string    `json:"last_cycle_id,omitempty"`
	LastCycleAt   time.Time `json:"last_cycle_at,omitzero"`
	LastCycleErr  string    `json:"last_cycle_error,omitempty"`
	KnownChargers int       `json:"known_chargers"`
}

// NewMonitor creates a monitor
func NewMonitor(orch *Orchestrator, bus *EventBus, interval time.Duration, policy ErrorPolicy) *Monitor {
	if policy == "" {
		policy = PolicyContinue
	}
	return &Monitor{
		orch:       orch,
		bus:        bus,
		interval:   interval,
		policy:     policy,
		previous:   domain.NewAddressSet(),
		newCycleID: uuid.NewString,
	}
}

// Stats returns a snapshot of the monitor's progress
func (m *Monitor) Stats() Stats {
	m.statsMu.RLock()
	defer m.statsMu.RUnlock()
	return m.stats
}

func (m *Monitor) recordStats(id string, known int, err error) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	m.stats.Cycles++
	m.stats.LastCycleID = id
	m.stats.LastCycleAt = time.Now()
	m.stats.KnownChargers = known
	m.stats.LastCycleErr = ""
	if err != nil {
		m.stats.FailedCycles++
		m.stats.LastCycleErr = err.Error()
	}
}

// Previous returns a copy of the scan state
func (m *Monitor) Previous() domain.AddressSet {
	return m.previous.Clone()
}

// Run repeats cycles until ctx is cancelled. Cancellation is only observed
// between cycles and during the sleep; a cycle in flight always completes.
// Run returns nil on cancellation, or the CycleError that stopped it under
// PolicyExit.
func (m *Monitor) Run(ctx context.Context) error {
	log.Ctx(ctx).InfoContext(ctx, "monitor started",
		slog.Duration("interval", m.interval),
		slog.String("error_policy", string(m.policy)))

	for {
		if ctx.Err() != nil {
			log.Ctx(ctx).InfoContext(ctx, "monitor stopped")
			return nil
		}

		if err := m.RunOnce(ctx); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "cycle failed", slog.Any("error", err))
			if m.policy == PolicyExit {
				return err
			}
		}

		if !sleep(ctx, m.interval) {
			log.Ctx(ctx).InfoContext(ctx, "monitor stopped")
			return nil
		}
	}
}

// RunOnce runs a single cycle and publishes its events. Failures are
// returned as a *CycleError. A cycle that panics leaves the scan state
// untouched.
func (m *Monitor) RunOnce(ctx context.Context) (err error) {
	id := m.newCycleID()
	cctx := WithCycleID(context.WithoutCancel(ctx), id)
	cctx = log.WithAttrs(cctx, slog.String("cycle", id))
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			log.Ctx(cctx).ErrorContext(cctx, "cycle panicked",
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())))
			err = &CycleError{CycleID: id, Panic: p}
		}

		result := "ok"
		if err != nil {
			result = "error"
		}
		m.orch.recorder.ObserveCycle(result, time.Since(start))
		m.recordStats(id, len(m.previous), err)
	}()

	res := m.orch.RunCycle(cctx, m.previous)
	m.previous = res.Baseline

	var errs []error
	for _, ev := range res.Events {
		if perr := m.bus.Publish(cctx, ev); perr != nil {
			errs = append(errs, perr)
		}
	}

	log.Ctx(cctx).DebugContext(cctx, "cycle complete",
		slog.Int("scanned", len(res.Scanned)),
		slog.Int("polled", len(res.Units)),
		slog.Int("reached", len(res.Devices)),
		slog.Int("events", len(res.Events)),
		slog.Duration("elapsed", time.Since(start)))

	if len(errs) > 0 {
		return &CycleError{CycleID: id, Err: errors.Join(errs...)}
	}
	return nil
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
