package discovery

import "strings"

// Default vendor identifiers
const (
	DefaultMACPrefix      = "02:df:9a"
	DefaultHostnamePrefix = "ray-"
)

// Matcher decides whether a host that answered the probe is a charger.
// An empty prefix disables that half of the rule.
type Matcher struct {
	MACPrefix      string
	HostnamePrefix string
}

// DefaultMatcher returns the stock vendor rule
func DefaultMatcher() Matcher {
	return Matcher{MACPrefix: DefaultMACPrefix, HostnamePrefix: DefaultHostnamePrefix}
}

// Match reports whether mac or hostname identifies a charger. The MAC prefix
// ignores case; the hostname prefix does not.
func (m Matcher) Match(mac, hostname string) bool {
	if hasPrefixFold(mac, m.MACPrefix) {
		return true
	}
	return m.HostnamePrefix != "" && strings.HasPrefix(hostname, m.HostnamePrefix)
}

func hasPrefixFold(s, prefix string) bool {
	if prefix == "" || len(s) < len(prefix) {
		return false
	}
	return strings.EqualFold(s[:len(prefix)], prefix)
}
