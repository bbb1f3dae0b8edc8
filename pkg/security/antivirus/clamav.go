package antivirus

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// ClamAVScanner streams content to a clamd daemon with INSTREAM.
type ClamAVScanner struct {
	address string // host:port or a unix socket path
	timeout time.Duration
}

var _ Scanner = (*ClamAVScanner)(nil)

func NewClamAVScanner(address string, timeout time.Duration) *ClamAVScanner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ClamAVScanner{address: address, timeout: timeout}
}

func (c *ClamAVScanner) Name() string {
	return "clamav"
}

func (c *ClamAVScanner) dial(ctx context.Context) (net.Conn, error) {
	network := "tcp"
	if strings.HasPrefix(c.address, "/") {
		network = "unix"
	}
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, network, c.address)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)
	return conn, nil
}

func (c *ClamAVScanner) Available(ctx context.Context) bool {
	conn, err := c.dial(ctx)
	if err != nil {
		return false
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("zPING\x00")); err != nil {
		return false
	}
	buf := make([]byte, 16)
	n, err := conn.Read(buf)
	if err != nil {
		return false
	}
	return strings.HasPrefix(string(buf[:n]), "PONG")
}

func (c *ClamAVScanner) Scan(ctx context.Context, filename string, data []byte) ScanResult {
	result := ScanResult{ScannerName: c.Name()}
	fail := func(err error) ScanResult {
		result.Infected = true
		result.Error = err
		return result
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return fail(fmt.Errorf("failed to connect to clamd: %w", err))
	}
	defer conn.Close()

	size := make([]byte, 4)
	binary.BigEndian.PutUint32(size, uint32(len(data)))

	for _, chunk := range [][]byte{[]byte("zINSTREAM\x00"), size, data, {0, 0, 0, 0}} {
		if _, err := conn.Write(chunk); err != nil {
			return fail(fmt.Errorf("failed to stream to clamd: %w", err))
		}
	}

	reply := make([]byte, 1024)
	n, err := conn.Read(reply)
	if err != nil && err != io.EOF {
		return fail(fmt.Errorf("failed to read response: %w", err))
	}
	return parseReply(result, strings.Trim(string(reply[:n]), "\x00\r\n "))
}

// parseReply handles "stream: OK", "stream: <name> FOUND" and "... ERROR".
func parseReply(result ScanResult, reply string) ScanResult {
	switch {
	case strings.HasSuffix(reply, "FOUND"):
		result.Infected = true
		if _, threat, ok := strings.Cut(reply, ":"); ok {
			result.ThreatName = strings.TrimSuffix(strings.TrimSpace(threat), " FOUND")
		}
	case strings.HasSuffix(reply, "ERROR"):
		result.Infected = true
		result.Error = fmt.Errorf("scan error: %s", reply)
	case !strings.HasSuffix(reply, "OK"):
		result.Infected = true
		result.Error = fmt.Errorf("unexpected clamd reply: %q", reply)
	}
	return result
}
