package antivirus

import (
	"context"
	"errors"
)

// ErrInfected is returned by Check when a scanner flags the content.
var ErrInfected = errors.New("artifact rejected by malware scan")

// ErrScannerUnavailable reports a daemon that does not answer PING.
var ErrScannerUnavailable = errors.New("antivirus scanner unavailable")

// ScanResult contains the result of a malware scan
type ScanResult struct {
	Infected    bool   // True if malware was detected
	ThreatName  string // Name of detected threat (empty if clean)
	ScannerName string
	Error       error // scanners fail closed: Error implies Infected
}

// Scanner is the interface for pluggable antivirus implementations.
// Reject-on-detect, no quarantine.
type Scanner interface {
	Scan(ctx context.Context, filename string, data []byte) ScanResult
	Name() string
	Available(ctx context.Context) bool
}

// Check scans data and turns a positive or failed scan into an error.
func Check(ctx context.Context, s Scanner, filename string, data []byte) error {
	res := s.Scan(ctx, filename, data)
	if res.Error != nil {
		return errors.Join(ErrInfected, res.Error)
	}
	if res.Infected {
		return errors.Join(ErrInfected, errors.New(res.ThreatName))
	}
	return nil
}

// NoOpScanner always reports clean. Development only.
type NoOpScanner struct{}

var _ Scanner = (*NoOpScanner)(nil)

func NewNoOpScanner() *NoOpScanner {
	return &NoOpScanner{}
}

func (n *NoOpScanner) Scan(ctx context.Context, filename string, data []byte) ScanResult {
	return ScanResult{ScannerName: n.Name()}
}

func (n *NoOpScanner) Name() string {
	return "noop"
}

func (n *NoOpScanner) Available(ctx context.Context) bool {
	return true
}
