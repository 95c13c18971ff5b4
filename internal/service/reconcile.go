package service

import (
	"raywatch/internal/domain"
)

// Reconciliation is the outcome of comparing one scan with the previous one
type Reconciliation struct {
	// Removed holds addresses of the previous scan missing from this one,
	// sorted
	Removed []string
	// Appeared holds scanned units that were not in the previous scan
	Appeared []domain.Unit
	// Baseline is the address set of this scan. It replaces the previous
	// set unconditionally.
	Baseline domain.AddressSet
}

// Reconcile compares the scanned units against the addresses of the
// previous scan. It never modifies previous.
func Reconcile(previous domain.AddressSet, scanned []domain.Unit) Reconciliation {
	baseline := domain.AddressesOf(scanned)

	var appeared []domain.Unit
	seen := make(map[string]struct{}, len(scanned))
	for _, u := range scanned {
		if _, dup := seen[u.Address]; dup {
			continue
		}
		seen[u.Address] = struct{}{}
		if !previous.Has(u.Address) {
			appeared = append(appeared, u)
		}
	}

	return Reconciliation{
		Removed:  previous.Minus(baseline).Sorted(),
		Appeared: appeared,
		Baseline: baseline,
	}
}
