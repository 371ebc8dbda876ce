// Package serial provides the byte transports the chiller adaptor runs on.
//
// The LK220 speaks a line-oriented ASCII protocol over RS-232. This package
// abstracts the byte channel behind the [Port] interface so the adaptor can
// run against a physical serial port, a serial-over-TCP bridge (for the
// simulator or hardware serial servers), or an in-memory loopback in tests.
package serial

import (
	"io"
	"time"
)

// Port is a byte-oriented, half-duplex channel to the instrument.
//
// Read semantics follow go.bug.st/serial: when a read timeout has been set
// via SetReadTimeout and no data arrives within it, Read returns (0, nil).
// A zero or negative timeout means reads block until data arrives.
type Port interface {
	io.ReadWriteCloser

	// SetReadTimeout sets the timeout applied to subsequent Read calls.
	SetReadTimeout(d time.Duration) error

	// ResetInputBuffer discards any unread bytes buffered on the receive side.
	ResetInputBuffer() error
}
