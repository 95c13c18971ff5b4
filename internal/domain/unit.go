package domain

import (
	"sort"
	"strings"
)

// UnknownHostname is used when a unit's hostname could not be resolved.
const UnknownHostname = "Unknown"

// UnitSource records how a unit entered the cycle
type UnitSource string

const (
	UnitSourceScan     UnitSource = "scan"
	UnitSourceFallback UnitSource = "fallback"
)

// Unit is a discovered or manually configured charger
type Unit struct {
	Address  string     `json:"ip" yaml:"ip"`
	MAC      string     `json:"mac,omitempty" yaml:"mac,omitempty"`
	Hostname string     `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	Source   UnitSource `json:"source,omitempty" yaml:"-"`
}

// DisplayHostname returns the hostname or UnknownHostname when empty
func (u Unit) DisplayHostname() string {
	if strings.TrimSpace(u.Hostname) == "" {
		return UnknownHostname
	}
	return u.Hostname
}

// AddressSet is a set of unit network addresses
type AddressSet map[string]struct{}

// NewAddressSet builds a set from the given addresses
func NewAddressSet(addrs ...string) AddressSet {
	s := make(AddressSet, len(addrs))
	for _, a := range addrs {
		s[a] = struct{}{}
	}
	return s
}

// AddressesOf returns the set of addresses of the given units
func AddressesOf(units []Unit) AddressSet {
	s := make(AddressSet, len(units))
	for _, u := range units {
		s[u.Address] = struct{}{}
	}
	return s
}

// Has reports whether addr is in the set
func (s AddressSet) Has(addr string) bool {
	_, ok := s[addr]
	return ok
}

// Minus returns the addresses in s that are not in other
func (s AddressSet) Minus(other AddressSet) AddressSet {
	out := make(AddressSet)
	for a := range s {
		if !other.Has(a) {
			out[a] = struct{}{}
		}
	}
	return out
}

// Sorted returns the addresses in ascending order
func (s AddressSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Clone returns a copy of the set
func (s AddressSet) Clone() AddressSet {
	out := make(AddressSet, len(s))
	for a := range s {
		out[a] = struct{}{}
	}
	return out
}
