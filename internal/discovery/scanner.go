package discovery

import (
	"context"
	"errors"
	"net"
	"sort"
	"strings"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"golang.org/x/sync/errgroup"

	"raywatch/internal/domain"
	"raywatch/internal/log"
)

const (
	defaultTimeout        = 3 * time.Second
	defaultGrace          = 10 * time.Second
	defaultResolveTimeout = time.Second

	// maxLookups bounds concurrent reverse lookups for unnamed hosts
	maxLookups = 16
)

// Observer receives scan diagnostics
type Observer interface {
	ObserveScan(replies, matched int)
	ObserveScanError(kind string)
}

// Scanner performs ARP ping sweeps with nmap
type Scanner struct {
	matcher        Matcher
	timeout        time.Duration
	grace          time.Duration
	resolveTimeout time.Duration
	binaryPath     string
	observer       Observer

	// replaced in tests
	checkPrivilege func() error
	run            func(ctx context.Context, opts ...nmap.Option) (*nmap.Run, []string, error)
	lookupAddr     func(ctx context.Context, addr string) ([]string, error)
}

// NewScanner creates a scanner using the default vendor rule and timeouts
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		matcher:        DefaultMatcher(),
		timeout:        defaultTimeout,
		grace:          defaultGrace,
		resolveTimeout: defaultResolveTimeout,
		checkPrivilege: checkRawSocket,
		run:            runNmap,
		lookupAddr:     net.DefaultResolver.LookupAddr,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Scan probes target (a CIDR range or single address) and returns the
// chargers that answered, de-duplicated and sorted by address.
func (s *Scanner) Scan(ctx context.Context, target string) ([]domain.Unit, error) {
	logger := log.Ctx(ctx).With("target", target)

	if strings.TrimSpace(target) == "" {
		return nil, s.fail(&ScanError{Kind: KindTransport, Target: target, Err: errors.New("no scan target")})
	}

	if err := s.checkPrivilege(); err != nil {
		return nil, s.fail(&ScanError{Kind: KindPermission, Target: target, Err: err})
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout+s.grace)
	defer cancel()

	opts := []nmap.Option{
		nmap.WithTargets(target),
		nmap.WithPingScan(),
		nmap.WithCustomArguments("-PR"),
		nmap.WithHostTimeout(s.timeout),
	}
	if s.binaryPath != "" {
		opts = append(opts, nmap.WithBinaryPath(s.binaryPath))
	}

	logger.Debug("starting ARP scan", "timeout", s.timeout)
	result, warnings, err := s.run(ctx, opts...)
	if len(warnings) > 0 {
		logger.Warn("nmap reported warnings", "warnings", warnings)
	}
	if err != nil {
		return nil, s.fail(classify(target, err))
	}
	if result == nil {
		return nil, s.fail(&ScanError{Kind: KindTransport, Target: target, Err: errors.New("nil scan result")})
	}

	units, replies := s.processResults(ctx, result)

	logger.Info("scan complete", "replies", replies, "matched", len(units))
	if s.observer != nil {
		s.observer.ObserveScan(replies, len(units))
	}

	return units, nil
}

func (s *Scanner) fail(err *ScanError) error {
	if s.observer != nil {
		s.observer.ObserveScanError(string(err.Kind))
	}
	return err
}

// reply is one host that answered the probe
type reply struct {
	addr     string
	mac      string
	hostname string
}

// processResults classifies the hosts of an nmap run. It returns the
// matching units and the number of hosts that replied.
func (s *Scanner) processResults(ctx context.Context, result *nmap.Run) ([]domain.Unit, int) {
	seen := make(map[string]struct{})
	var replies []*reply

	for _, host := range result.Hosts {
		if host.Status.State != "up" || len(host.Addresses) == 0 {
			continue
		}

		r := &reply{}
		for _, addr := range host.Addresses {
			switch addr.AddrType {
			case "ipv4":
				if r.addr == "" {
					r.addr = addr.Addr
				}
			case "mac":
				if r.mac == "" {
					r.mac = addr.Addr
				}
			}
		}
		if r.addr == "" {
			r.addr = host.Addresses[0].Addr
		}

		if _, dup := seen[r.addr]; dup {
			continue
		}
		seen[r.addr] = struct{}{}

		for _, hn := range host.Hostnames {
			if hn.Name != "" && (hn.Type == "" || strings.EqualFold(hn.Type, "PTR") || strings.EqualFold(hn.Type, "user")) {
				r.hostname = trimDot(hn.Name)
				break
			}
		}

		replies = append(replies, r)
	}

	s.resolveMissing(ctx, replies)

	var units []domain.Unit
	for _, r := range replies {
		if !s.matcher.Match(r.mac, r.hostname) {
			continue
		}
		hostname := r.hostname
		if hostname == "" {
			hostname = domain.UnknownHostname
		}
		units = append(units, domain.Unit{
			Address:  r.addr,
			MAC:      r.mac,
			Hostname: hostname,
			Source:   domain.UnitSourceScan,
		})
	}

	sortUnits(units)
	return units, len(replies)
}

// resolveMissing reverse-resolves the replies nmap left unnamed. Failures
// leave the hostname empty.
func (s *Scanner) resolveMissing(ctx context.Context, replies []*reply) {
	if s.lookupAddr == nil || s.resolveTimeout <= 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(maxLookups)

	for _, r := range replies {
		if r.hostname != "" {
			continue
		}
		g.Go(func() error {
			lctx, cancel := context.WithTimeout(ctx, s.resolveTimeout)
			defer cancel()

			names, err := s.lookupAddr(lctx, r.addr)
			if err != nil || len(names) == 0 {
				log.Ctx(ctx).Debug("reverse lookup failed", "ip", r.addr, "error", err)
				return nil
			}
			r.hostname = trimDot(names[0])
			return nil
		})
	}
	_ = g.Wait()
}

func trimDot(name string) string {
	return strings.TrimSuffix(name, ".")
}

func sortUnits(units []domain.Unit) {
	sort.Slice(units, func(i, j int) bool {
		return addrLess(units[i].Address, units[j].Address)
	})
}

// addrLess orders IP addresses numerically, falling back to string order
func addrLess(a, b string) bool {
	ipA, ipB := net.ParseIP(a), net.ParseIP(b)
	if ipA == nil || ipB == nil {
		return a < b
	}
	return string(ipA.To16()) < string(ipB.To16())
}

// runNmap executes one nmap run
func runNmap(ctx context.Context, opts ...nmap.Option) (*nmap.Run, []string, error) {
	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}

	result, warnings, err := scanner.Run()
	var w []string
	if warnings != nil {
		w = *warnings
	}
	return result, w, err
}
