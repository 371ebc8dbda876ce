package lk220

import (
	"strings"
	"testing"
	"time"

	"github.com/chillerlab/go-lk220/serial"
	"github.com/chillerlab/go-lk220/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_BringUp(t *testing.T) {
	dev := sim.New()
	c := newSimController(t, dev,
		WithControlMode(ControlModeLocal),
		WithControlSensor(SensorExternal),
		WithTempWindow(0.1),
	)

	require.NoError(t, c.Open())
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, OpenedState, c.State())

	id, err := c.Identity()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "THORLABS LK220"))

	mode, err := c.ControlMode()
	require.NoError(t, err)
	assert.Equal(t, ControlModeLocal, mode)

	sensor, err := c.ControlSensor()
	require.NoError(t, err)
	assert.Equal(t, SensorExternal, sensor)

	window, err := c.TempWindow()
	require.NoError(t, err)
	assert.InDelta(t, 0.1, window, 1e-9)

	reg, ok := Lookup(c.cfg.PortName())
	require.True(t, ok)
	assert.Same(t, c, reg)
}

func TestOpen_IdentityMismatch(t *testing.T) {
	dev := sim.New()
	dev.SetIdentity("ACME FROSTBOX HV 0.1")

	c := newSimController(t, dev)

	err := c.Open()
	require.ErrorIs(t, err, ErrIdentity)
	assert.Equal(t, ClosedState, c.State())

	// A failed open terminates the instance.
	err = c.Open()
	require.ErrorIs(t, err, ErrConnClosed)
}

func TestSetTargetTemp_RoundTrip(t *testing.T) {
	dev := sim.New()
	c := newSimController(t, dev)
	require.NoError(t, c.Open())
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.SetTargetTemp(22))

	got, err := c.TargetTemp()
	require.NoError(t, err)
	assert.InDelta(t, 22.0, got, 1e-9)

	// Values are quantized to the device's 0.1 degC resolution.
	require.NoError(t, c.SetTargetTemp(21.93))

	got, err = c.TargetTemp()
	require.NoError(t, err)
	assert.InDelta(t, 21.9, got, 1e-9)
}

func TestSetTargetTemp_VerifyMismatch(t *testing.T) {
	c, remote := newRawController(t)

	// Ack the setter, then answer the read-back with a value the device
	// never accepted.
	cmds := make(chan string, 2)
	go func() {
		cmds <- readCommand(t, remote)
		mustWrite(t, remote, "> \r\n")

		cmds <- readCommand(t, remote)
		mustWrite(t, remote, "19.0\r> \r\n")
	}()

	err := c.SetTargetTemp(22)
	require.ErrorIs(t, err, ErrVerify)
	assert.Contains(t, err.Error(), "19.0")
	assert.Contains(t, err.Error(), "22.0")
	assert.Equal(t, uint64(1), c.GetMetrics().VerifyErrCount.Load())

	assert.Equal(t, "TSET=220", <-cmds)
	assert.Equal(t, "TSET?", <-cmds)
}

func TestSetControlMode_VerifyMismatch(t *testing.T) {
	c, remote := newRawController(t)

	go func() {
		readCommand(t, remote) // MOD=2
		mustWrite(t, remote, "> \r\n")

		readCommand(t, remote) // MOD?
		mustWrite(t, remote, "0\r> \r\n")
	}()

	err := c.SetControlMode(ControlModeTrig)
	require.ErrorIs(t, err, ErrVerify)
	assert.Equal(t, uint64(1), c.GetMetrics().VerifyErrCount.Load())
}

func TestSetTargetTemp_OutOfRange(t *testing.T) {
	dev := sim.New()
	c := newSimController(t, dev)
	require.NoError(t, c.Open())
	t.Cleanup(func() { _ = c.Close() })

	sent := c.GetMetrics().CmdSendCount.Load()

	err := c.SetTargetTemp(50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")

	err = c.SetTargetTemp(-10)
	require.Error(t, err)

	// Range violations are rejected before touching the wire.
	assert.Equal(t, sent, c.GetMetrics().CmdSendCount.Load())
}

func TestSetTempWindow_RoundTrip(t *testing.T) {
	dev := sim.New()
	c := newSimController(t, dev)
	require.NoError(t, c.Open())
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.SetTempWindow(0.5))

	got, err := c.TempWindow()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-9)

	require.Error(t, c.SetTempWindow(9))
}

func TestControlModeAndSensor_SetGet(t *testing.T) {
	dev := sim.New()
	c := newSimController(t, dev)
	require.NoError(t, c.Open())
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.SetControlMode(ControlModeTrig))

	mode, err := c.ControlMode()
	require.NoError(t, err)
	assert.Equal(t, ControlModeTrig, mode)

	require.NoError(t, c.SetControlSensor(SensorInternal))

	sensor, err := c.ControlSensor()
	require.NoError(t, err)
	assert.Equal(t, SensorInternal, sensor)

	require.Error(t, c.SetControlMode(ControlMode(9)))
	require.Error(t, c.SetControlSensor(ControlSensor(9)))
}

func TestEnable(t *testing.T) {
	dev := sim.New()
	c := newSimController(t, dev)
	require.NoError(t, c.Open())
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.SetEnable(true))
	assert.True(t, dev.Enabled())

	on, err := c.Enabled()
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, c.SetEnable(false))
	assert.False(t, dev.Enabled())
}

func TestActualTemp(t *testing.T) {
	dev := sim.New()
	dev.SetActualTemp(23.4)

	c := newSimController(t, dev)
	require.NoError(t, c.Open())
	t.Cleanup(func() { _ = c.Close() })

	got, err := c.ActualTemp()
	require.NoError(t, err)
	assert.InDelta(t, 23.4, got, 1e-9)
}

func TestDeviceStatus_Opaque(t *testing.T) {
	dev := sim.New()
	dev.SetStatusWord("FF3C")

	c := newSimController(t, dev)
	require.NoError(t, c.Open())
	t.Cleanup(func() { _ = c.Close() })

	status, err := c.DeviceStatus()
	require.NoError(t, err)
	assert.Equal(t, "FF3C", status)
}

func TestCommands_Listing(t *testing.T) {
	dev := sim.New()
	c := newSimController(t, dev)
	require.NoError(t, c.Open())
	t.Cleanup(func() { _ = c.Close() })

	listing, err := c.Commands()
	require.NoError(t, err)
	assert.Len(t, listing, commandListLines)
}

func TestTimeout_MutedDevice(t *testing.T) {
	dev := sim.New()
	c := newSimController(t, dev, WithReplyTimeout(200*time.Millisecond))
	require.NoError(t, c.Open())
	t.Cleanup(func() { _ = c.Close() })

	dev.SetMute(true)

	start := time.Now()
	_, err := c.ActualTemp()
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrReplyTimeout)
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)

	// The connection stays open; once the device talks again the next
	// command succeeds.
	dev.SetMute(false)

	_, err = c.ActualTemp()
	require.NoError(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	dev := sim.New()
	c := newSimController(t, dev)
	require.NoError(t, c.Open())

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, ClosedState, c.State())

	_, err := c.ActualTemp()
	require.ErrorIs(t, err, ErrConnClosed)

	// Closed is terminal: reopening requires a new Controller.
	require.ErrorIs(t, c.Open(), ErrConnClosed)

	_, ok := Lookup(c.cfg.PortName())
	assert.False(t, ok)
}

func TestOpen_CloseDuringBringUp(t *testing.T) {
	host, remote := serial.Pipe()
	t.Cleanup(func() {
		_ = host.Close()
		_ = remote.Close()
	})

	cfg, err := NewConnectionConfig("raw://"+t.Name(),
		WithPort(host),
		WithReplyTimeout(500*time.Millisecond),
	)
	require.NoError(t, err)

	c, err := NewController(cfg)
	require.NoError(t, err)

	// Serve the bring-up sequence by hand, then close the controller from
	// another goroutine while Open is still waiting on the last reply.
	closed := make(chan error, 1)
	go func() {
		readCommand(t, remote) // IDN?
		mustWrite(t, remote, sim.DefaultIdentity+"\r> \r\n")

		readCommand(t, remote) // MOD=0
		mustWrite(t, remote, "> \r\n")
		readCommand(t, remote) // MOD?
		mustWrite(t, remote, "0\r> \r\n")

		readCommand(t, remote) // SENS=1
		mustWrite(t, remote, "> \r\n")
		readCommand(t, remote) // SENS?
		mustWrite(t, remote, "1\r> \r\n")

		readCommand(t, remote) // WINDOW=1
		mustWrite(t, remote, "> \r\n")
		readCommand(t, remote) // WINDOW?
		mustWrite(t, remote, "0.1\r> \r\n")

		readCommand(t, remote) // TSET? priming
		closed <- c.Close()
	}()

	err = c.Open()
	require.ErrorIs(t, err, ErrConnClosed)
	require.NoError(t, <-closed)
	assert.Equal(t, ClosedState, c.State())

	// The losing Open must not leave a registry entry behind.
	_, ok := Lookup(c.cfg.PortName())
	assert.False(t, ok)
}

func TestOpen_PortInUse(t *testing.T) {
	dev := sim.New()
	c1 := newSimController(t, dev)
	require.NoError(t, c1.Open())
	t.Cleanup(func() { _ = c1.Close() })

	// Second controller claiming the same port name must be refused.
	dev2 := sim.New()
	host2 := newSimController(t, dev2)
	host2.cfg.portName = c1.cfg.PortName()

	err := host2.Open()
	require.ErrorIs(t, err, ErrPortInUse)
	assert.Equal(t, ClosedState, host2.State())

	// The original owner is unaffected.
	_, err = c1.ActualTemp()
	require.NoError(t, err)
}
