package serial

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"
)

// tcpPort adapts a TCP connection to the Port interface, for use with
// serial-over-TCP bridges and the lk220-sim simulator.
//
// Read timeouts are implemented with read deadlines; a deadline expiry is
// reported as (0, nil) to match physical port semantics.
type tcpPort struct {
	conn net.Conn

	mu      sync.Mutex
	timeout time.Duration
}

var _ Port = (*tcpPort)(nil)

// DialTCP connects to a serial-over-TCP endpoint within the given timeout.
func DialTCP(address string, timeout time.Duration) (Port, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, fmt.Errorf("serial: dial %s: %w", address, err)
	}

	return &tcpPort{conn: conn}, nil
}

func (p *tcpPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	d := p.timeout
	p.mu.Unlock()

	if d > 0 {
		if err := p.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
			return 0, err
		}
	} else {
		if err := p.conn.SetReadDeadline(time.Time{}); err != nil {
			return 0, err
		}
	}

	n, err := p.conn.Read(buf)
	if err != nil && isDeadlineExceeded(err) {
		return n, nil
	}

	return n, err
}

func (p *tcpPort) Write(buf []byte) (int, error) {
	return p.conn.Write(buf)
}

func (p *tcpPort) Close() error {
	return p.conn.Close()
}

func (p *tcpPort) SetReadTimeout(d time.Duration) error {
	p.mu.Lock()
	p.timeout = d
	p.mu.Unlock()

	return nil
}

// ResetInputBuffer drains bytes already queued on the connection by reading
// with a very short deadline until nothing more arrives.
func (p *tcpPort) ResetInputBuffer() error {
	buf := make([]byte, 256)

	for {
		if err := p.conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
			return err
		}

		if _, err := p.conn.Read(buf); err != nil {
			if isDeadlineExceeded(err) {
				return nil
			}

			return err
		}
	}
}

func isDeadlineExceeded(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
