package lk220

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/chillerlab/go-lk220/logger"
	"github.com/chillerlab/go-lk220/serial"
	"github.com/chillerlab/go-lk220/sim"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logLevel := os.Getenv("LOG_LEVEL")

	var level logger.Level

	switch logLevel {
	case "debug":
		level = logger.DebugLevel
	case "warn":
		level = logger.WarnLevel
	case "error":
		level = logger.ErrorLevel
	default:
		level = logger.InfoLevel
	}

	logger.SetLevel(level)

	os.Exit(m.Run())
}

// newSimController creates a Controller wired over an in-memory pipe to the
// given emulated device, with the emulator goroutine already serving.
// The controller is not yet opened.
func newSimController(t *testing.T, dev *sim.Device, opts ...ConnOption) *Controller {
	t.Helper()

	host, devEnd := serial.Pipe()
	go func() {
		_ = dev.ServePort(devEnd)
	}()

	t.Cleanup(func() {
		_ = host.Close()
		_ = devEnd.Close()
	})

	defaults := []ConnOption{
		WithPort(host),
		WithReplyTimeout(500 * time.Millisecond),
	}

	cfg, err := NewConnectionConfig("sim://"+t.Name(), append(defaults, opts...)...)
	require.NoError(t, err)

	c, err := NewController(cfg)
	require.NoError(t, err)

	return c
}

// newRawController creates a Controller forced into the Opened state whose
// port is one end of a pipe, and returns the remote end for scripting raw
// replies. It bypasses the Open bring-up sequence to exercise the
// transaction engine in isolation.
func newRawController(t *testing.T, opts ...ConnOption) (*Controller, serial.Port) {
	t.Helper()

	host, remote := serial.Pipe()
	t.Cleanup(func() {
		_ = host.Close()
		_ = remote.Close()
	})

	defaults := []ConnOption{
		WithPort(host),
		WithReplyTimeout(200 * time.Millisecond),
	}

	cfg, err := NewConnectionConfig("raw://"+t.Name(), append(defaults, opts...)...)
	require.NoError(t, err)

	c, err := NewController(cfg)
	require.NoError(t, err)

	c.port = host
	c.opState.Set(OpenedState)

	return c, remote
}

// readCommand reads one CR-terminated command from the remote end of a
// scripted transport, failing the test on transport error.
func readCommand(t *testing.T, p serial.Port) string {
	t.Helper()

	var sb strings.Builder

	buf := make([]byte, 1)

	for {
		n, err := p.Read(buf)
		require.NoError(t, err)

		if n == 0 {
			continue
		}

		if buf[0] == '\r' {
			return sb.String()
		}

		sb.WriteByte(buf[0])
	}
}

// mustWrite writes data to p, failing the test on error.
func mustWrite(t *testing.T, p serial.Port, data string) {
	t.Helper()

	_, err := p.Write([]byte(data))
	require.NoError(t, err)
}
