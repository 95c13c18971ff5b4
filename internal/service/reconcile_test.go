package service

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"raywatch/internal/domain"
)

func units(addrs ...string) []domain.Unit {
	out := make([]domain.Unit, len(addrs))
	for i, a := range addrs {
		out[i] = domain.Unit{Address: a, Hostname: "ray-" + a, Source: domain.UnitSourceScan}
	}
	return out
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name         string
		previous     domain.AddressSet
		scanned      []domain.Unit
		wantRemoved  []string
		wantAppeared []string
	}{
		{
			name:        "unit gone",
			previous:    domain.NewAddressSet("10.0.0.5", "10.0.0.6"),
			scanned:     units("10.0.0.5"),
			wantRemoved: []string{"10.0.0.6"},
		},
		{
			name:         "first cycle",
			previous:     nil,
			scanned:      units("10.0.0.5", "10.0.0.6"),
			wantAppeared: []string{"10.0.0.5", "10.0.0.6"},
		},
		{
			name:        "empty scan removes everything",
			previous:    domain.NewAddressSet("10.0.0.5", "10.0.0.6"),
			scanned:     nil,
			wantRemoved: []string{"10.0.0.5", "10.0.0.6"},
		},
		{
			name:         "swap",
			previous:     domain.NewAddressSet("10.0.0.5"),
			scanned:      units("10.0.0.7"),
			wantRemoved:  []string{"10.0.0.5"},
			wantAppeared: []string{"10.0.0.7"},
		},
		{
			name:     "unchanged",
			previous: domain.NewAddressSet("10.0.0.5"),
			scanned:  units("10.0.0.5", "10.0.0.5"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Reconcile(tt.previous, tt.scanned)

			assert.ElementsMatch(t, tt.wantRemoved, rec.Removed)
			var appeared []string
			for _, u := range rec.Appeared {
				appeared = append(appeared, u.Address)
			}
			assert.ElementsMatch(t, tt.wantAppeared, appeared)
			assert.Equal(t, domain.AddressesOf(tt.scanned), rec.Baseline)
		})
	}
}

func TestReconcile_OrderIndependentAndPure(t *testing.T) {
	previous := domain.NewAddressSet("10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4")
	scanned := units("10.0.0.2", "10.0.0.4", "10.0.0.9", "10.0.0.8")
	want := Reconcile(previous, scanned)

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]domain.Unit(nil), scanned...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := Reconcile(previous, shuffled)
		assert.Equal(t, want.Removed, got.Removed)
		assert.Equal(t, want.Baseline, got.Baseline)
	}

	assert.Equal(t, domain.NewAddressSet("10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4"), previous, "previous must not be modified")
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.3"}, want.Removed)
}
