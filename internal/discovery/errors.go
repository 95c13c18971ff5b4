package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	nmap "github.com/Ullaakut/nmap/v3"
)

// ScanErrorKind classifies a failed scan
type ScanErrorKind string

const (
	KindPermission ScanErrorKind = "permission"
	KindTransport  ScanErrorKind = "transport"
)

var (
	// ErrScanPermission matches scans that lacked raw socket privilege
	ErrScanPermission = errors.New("insufficient privilege for layer-2 scan")
	// ErrScanTransport matches every other probe failure
	ErrScanTransport = errors.New("layer-2 scan failed")
)

// ScanError is returned by Scanner.Scan
type ScanError struct {
	Kind   ScanErrorKind
	Target string
	Err    error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s (%s): %v", e.Target, e.Kind, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is match the sentinel for the error's kind.
func (e *ScanError) Is(target error) bool {
	switch target {
	case ErrScanPermission:
		return e.Kind == KindPermission
	case ErrScanTransport:
		return e.Kind == KindTransport
	}
	return false
}

// classify maps an nmap failure onto a ScanError
func classify(target string, err error) *ScanError {
	switch {
	case errors.Is(err, nmap.ErrNmapNotInstalled):
		return &ScanError{Kind: KindTransport, Target: target, Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, nmap.ErrScanTimeout):
		return &ScanError{Kind: KindTransport, Target: target, Err: fmt.Errorf("scan deadline exceeded: %w", err)}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "root privileges") || strings.Contains(msg, "operation not permitted") {
		return &ScanError{Kind: KindPermission, Target: target, Err: err}
	}
	return &ScanError{Kind: KindTransport, Target: target, Err: err}
}
