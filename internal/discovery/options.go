package discovery

import "time"

// Option is a functional option for configuring Scanner
type Option func(*Scanner)

// WithTimeout sets how long to wait for ARP replies
func WithTimeout(d time.Duration) Option {
	return func(s *Scanner) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithGrace sets the extra time allowed for nmap start-up and teardown on
// top of the reply timeout
func WithGrace(d time.Duration) Option {
	return func(s *Scanner) {
		if d >= 0 {
			s.grace = d
		}
	}
}

// WithResolveTimeout bounds the reverse lookup done for hosts nmap could not
// name
func WithResolveTimeout(d time.Duration) Option {
	return func(s *Scanner) {
		s.resolveTimeout = d
	}
}

// WithMatcher sets the vendor classification rule
func WithMatcher(m Matcher) Option {
	return func(s *Scanner) {
		s.matcher = m
	}
}

// WithBinaryPath points at a specific nmap binary instead of $PATH
func WithBinaryPath(path string) Option {
	return func(s *Scanner) {
		s.binaryPath = path
	}
}

// WithObserver registers a collector for scan counts
func WithObserver(o Observer) Option {
	return func(s *Scanner) {
		s.observer = o
	}
}
