package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"raywatch/internal/domain"
)

// fakeScanner returns one scripted result per call, repeating the last
type fakeScanner struct {
	mu      sync.Mutex
	results [][]domain.Unit
	errs    []error
	calls   int
}

func (f *fakeScanner) Scan(ctx context.Context, target string) ([]domain.Unit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if len(f.results) == 0 {
		return nil, err
	}
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i], err
}

// fakePoller succeeds for every unit except those listed in fail
type fakePoller struct {
	mu     sync.Mutex
	fail   map[string]error
	panics map[string]bool
	delay  time.Duration
	polled []string
}

func (f *fakePoller) Poll(ctx context.Context, unit domain.Unit) (domain.DeviceInfo, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.polled = append(f.polled, unit.Address)
	f.mu.Unlock()

	if f.panics[unit.Address] {
		panic("poller bug")
	}
	if err := f.fail[unit.Address]; err != nil {
		return domain.DeviceInfo{}, err
	}
	return domain.NewDeviceInfo(unit, map[string]any{domain.AttrStatus: "Charging"}), nil
}

func (f *fakePoller) Polled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.polled...)
}

// recordingSink keeps every event it receives
type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (s *recordingSink) Emit(ctx context.Context, ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Event(nil), s.events...)
}

var errUnreachable = errors.New("unreachable")
