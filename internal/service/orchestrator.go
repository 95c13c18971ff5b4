package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"raywatch/internal/domain"
	"raywatch/internal/log"
)

// Scanner discovers units on the network
type Scanner interface {
	Scan(ctx context.Context, target string) ([]domain.Unit, error)
}

// Poller logs in to one unit and fetches its status
type Poller interface {
	Poll(ctx context.Context, unit domain.Unit) (domain.DeviceInfo, error)
}

// Recorder collects cycle statistics
type Recorder interface {
	ObserveCycle(result string, elapsed time.Duration)
	ObservePoll(result string)
	SetUnits(n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCycle(string, time.Duration) {}
func (nopRecorder) ObservePoll(string)                 {}
func (nopRecorder) SetUnits(int)                       {}

// OrchestratorConfig configures a poll cycle
type OrchestratorConfig struct {
	// Target is the CIDR range or address handed to the scanner
	Target string
	// Fallback units are polled when the scan finds nothing
	Fallback []domain.Unit
	// MaxConcurrent bounds concurrent polls; zero runs one per unit
	MaxConcurrent int
	// EmitAppeared adds charger_appeared events for new scanned addresses
	EmitAppeared bool
}

// Orchestrator runs discovery, polling and reconciliation for one cycle
type Orchestrator struct {
	scanner  Scanner
	poller   Poller
	cfg      OrchestratorConfig
	recorder Recorder

	mu       sync.RWMutex
	fallback []domain.Unit
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(scanner Scanner, poller Poller, cfg OrchestratorConfig) *Orchestrator {
	o := &Orchestrator{
		scanner:  scanner,
		poller:   poller,
		cfg:      cfg,
		recorder: nopRecorder{},
	}
	o.SetFallback(cfg.Fallback)
	return o
}

// SetRecorder sets the statistics collector
func (o *Orchestrator) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	o.recorder = r
}

// SetFallback replaces the fallback device list. It takes effect on the next
// cycle.
func (o *Orchestrator) SetFallback(units []domain.Unit) {
	fallback := make([]domain.Unit, len(units))
	for i, u := range units {
		u.Source = domain.UnitSourceFallback
		if u.Hostname == "" {
			u.Hostname = domain.UnknownHostname
		}
		fallback[i] = u
	}

	o.mu.Lock()
	o.fallback = fallback
	o.mu.Unlock()
}

// Fallback returns a copy of the fallback device list
func (o *Orchestrator) Fallback() []domain.Unit {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]domain.Unit(nil), o.fallback...)
}

// CycleResult is everything one cycle produced
type CycleResult struct {
	// Scanned is the scanner's result, the only input to reconciliation
	Scanned []domain.Unit
	// Units is what was polled: Scanned, or the fallback list
	Units        []domain.Unit
	UsedFallback bool
	ScanErr      error
	// Devices holds the successful polls, sorted by address
	Devices []domain.DeviceInfo
	// Events holds removed and appeared events followed by status updates
	Events []domain.Event
	// Baseline is the address set to compare the next cycle against
	Baseline domain.AddressSet
}

type pollResult struct {
	unit domain.Unit
	info domain.DeviceInfo
	err  error
}

// RunCycle performs one discovery and poll pass against the addresses seen
// by the previous scan. A scan failure counts as an empty scan and a unit
// failure only drops that unit.
func (o *Orchestrator) RunCycle(ctx context.Context, previous domain.AddressSet) CycleResult {
	var res CycleResult

	scanned, err := o.scanner.Scan(ctx, o.cfg.Target)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "scan failed", slog.Any("error", err))
		res.ScanErr = err
		scanned = nil
	}
	res.Scanned = scanned
	res.Units = scanned

	if len(scanned) == 0 {
		if fallback := o.Fallback(); len(fallback) > 0 {
			log.Ctx(ctx).InfoContext(ctx, "no units discovered, using fallback devices", slog.Int("count", len(fallback)))
			res.Units = fallback
			res.UsedFallback = true
		}
	}
	o.recorder.SetUnits(len(res.Units))

	res.Devices = o.pollAll(ctx, res.Units)

	rec := Reconcile(previous, scanned)
	res.Baseline = rec.Baseline

	for _, addr := range rec.Removed {
		log.Ctx(ctx).InfoContext(ctx, "charger removed", slog.String("ip", addr))
		res.Events = append(res.Events, domain.Removed(addr))
	}
	if o.cfg.EmitAppeared {
		for _, u := range rec.Appeared {
			log.Ctx(ctx).InfoContext(ctx, "charger appeared", slog.String("ip", u.Address))
			res.Events = append(res.Events, domain.Appeared(u))
		}
	}
	for _, info := range res.Devices {
		res.Events = append(res.Events, domain.StatusUpdate(info))
	}

	return res
}

// pollAll polls every unit concurrently and waits for all of them
func (o *Orchestrator) pollAll(ctx context.Context, units []domain.Unit) []domain.DeviceInfo {
	if len(units) == 0 {
		return nil
	}

	results := make(chan pollResult, len(units))

	var g errgroup.Group
	if o.cfg.MaxConcurrent > 0 {
		g.SetLimit(o.cfg.MaxConcurrent)
	}
	for _, u := range units {
		g.Go(func() error {
			results <- o.pollOne(ctx, u)
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	var devices []domain.DeviceInfo
	for r := range results {
		if r.err != nil {
			o.recorder.ObservePoll("error")
			log.Ctx(ctx).WarnContext(ctx, "skipping unit",
				slog.String("ip", r.unit.Address),
				slog.Any("error", r.err))
			continue
		}
		o.recorder.ObservePoll("ok")
		devices = append(devices, r.info)
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].IP < devices[j].IP
	})
	return devices
}

// pollOne polls a single unit, turning a panic into an error
func (o *Orchestrator) pollOne(ctx context.Context, u domain.Unit) (r pollResult) {
	r.unit = u
	defer func() {
		if p := recover(); p != nil {
			log.Ctx(ctx).ErrorContext(ctx, "poll panicked",
				slog.String("ip", u.Address),
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())))
			r.err = fmt.Errorf("poll panicked: %v", p)
		}
	}()

	r.info, r.err = o.poller.Poll(ctx, u)
	return r
}
