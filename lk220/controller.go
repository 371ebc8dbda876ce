package lk220

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"github.com/chillerlab/go-lk220/logger"
	"github.com/chillerlab/go-lk220/serial"
)

// Controller is the adaptor for one LK220 chiller on one serial port.
//
// All operations are synchronous: each formats a command, runs it through
// the transaction engine, and parses the reply. The connection is owned
// exclusively by the Controller from Open to Close, and at most one
// transaction is in flight at a time.
type Controller struct {
	cfg    *ConnectionConfig
	logger logger.Logger

	port serial.Port

	opState AtomicOpState
	txGate  txGate

	// terminated is set once Close (or a failed Open) tears the instance
	// down; a terminated Controller cannot be reopened.
	terminated atomic.Bool

	identity string

	metrics ConnectionMetrics
}

// NewController creates a Controller from the given configuration.
// The serial port is not touched until Open.
func NewController(cfg *ConnectionConfig) (*Controller, error) {
	if cfg == nil {
		return nil, errors.New("lk220: connection config is nil")
	}

	return &Controller{
		cfg:    cfg,
		logger: cfg.logger,
	}, nil
}

// Open establishes the serial connection and runs the device bring-up
// sequence: verify identity, apply the configured control mode, control
// sensor and temperature window, and prime the target temperature.
//
// A failed Open terminates the instance; construct a new Controller to
// try again.
func (c *Controller) Open() error {
	if c.terminated.Load() {
		return fmt.Errorf("%w: controller is terminated, create a new one", ErrConnClosed)
	}

	if !c.opState.ToOpening() {
		return fmt.Errorf("lk220: cannot open connection in %s state", c.opState.String())
	}

	port := c.cfg.port
	if port == nil {
		var err error

		port, err = serial.Open(c.cfg.portName, c.cfg.baudRate)
		if err != nil {
			c.terminated.Store(true)
			c.opState.Set(ClosedState)

			return fmt.Errorf("lk220: no connection on port %s: %w", c.cfg.portName, err)
		}
	}

	c.port = port

	if !registerController(c.cfg.portName, c) {
		c.port = nil
		c.terminated.Store(true)
		c.opState.Set(ClosedState)
		_ = port.Close()

		return fmt.Errorf("%w: %s", ErrPortInUse, c.cfg.portName)
	}

	if err := c.initDevice(); err != nil {
		c.teardown()

		return err
	}

	if !c.opState.ToOpened() {
		// Close ran while the bring-up sequence was still in flight.
		c.teardown()

		return fmt.Errorf("%w: closed while opening", ErrConnClosed)
	}

	c.logger.Info("lk220: connection opened",
		"port", c.cfg.portName,
		"identity", c.identity,
		"controlMode", c.cfg.controlMode.String(),
		"controlSensor", c.cfg.controlSensor.String(),
	)

	return nil
}

// initDevice runs the bring-up command sequence while the connection is in
// the Opening state.
func (c *Controller) initDevice() error {
	id, err := c.Identity()
	if err != nil {
		return err
	}

	if !strings.HasPrefix(id, identityPrefix) {
		return fmt.Errorf("%w: %q", ErrIdentity, id)
	}

	if err := c.SetControlMode(c.cfg.controlMode); err != nil {
		return err
	}

	if err := c.SetControlSensor(c.cfg.controlSensor); err != nil {
		return err
	}

	if err := c.SetTempWindow(c.cfg.tempWindow); err != nil {
		return err
	}

	// Prime the target temperature so the first user-visible state is the
	// device's, not a zero value.
	if _, err := c.TargetTemp(); err != nil {
		return err
	}

	return nil
}

// teardown releases the port and terminates the instance.
func (c *Controller) teardown() {
	c.terminated.Store(true)

	unregisterController(c.cfg.portName, c)

	if c.port != nil {
		_ = c.port.Close()
	}

	c.opState.ToClosing()
	c.opState.ToClosed()
}

// Close closes the serial connection. It is idempotent; the Controller is
// terminated afterwards and cannot be reopened.
func (c *Controller) Close() error {
	c.terminated.Store(true)

	if c.opState.IsClosed() {
		return nil
	}

	if !c.opState.ToClosing() {
		// Lost the race with another Close or a teardown.
		return nil
	}

	unregisterController(c.cfg.portName, c)

	var err error
	if c.port != nil {
		err = c.port.Close()
	}

	c.opState.ToClosed()
	c.logger.Info("lk220: connection closed", "port", c.cfg.portName)

	return err
}

// State returns the lifecycle state of the connection.
func (c *Controller) State() OpState {
	return c.opState.Get()
}

// GetMetrics returns the metrics associated with the connection.
func (c *Controller) GetMetrics() *ConnectionMetrics {
	return &c.metrics
}

// GetLogger returns the logger associated with the connection.
func (c *Controller) GetLogger() logger.Logger {
	return c.logger
}

// --- Instrument operations ---

// Identity queries the device identification string, e.g.
// "THORLABS LK220 HV 1.20 FV 1.36".
func (c *Controller) Identity() (string, error) {
	lines, err := c.transact(cmdIdentity, 1)
	if err != nil {
		return "", err
	}

	c.identity = lines[0]

	return lines[0], nil
}

// Commands queries the firmware's command listing and returns the lines
// verbatim.
func (c *Controller) Commands() ([]string, error) {
	return c.transact(cmdCommandList, commandListLines)
}

// ControlMode queries the current control mode.
func (c *Controller) ControlMode() (ControlMode, error) {
	lines, err := c.transact(cmdGetMode, 1)
	if err != nil {
		return 0, err
	}

	m, err := parseControlMode(lines[0])
	if err != nil {
		c.metrics.incParseErrCount()

		return 0, err
	}

	return m, nil
}

// SetControlMode sets the control mode and verifies it by read-back.
func (c *Controller) SetControlMode(m ControlMode) error {
	if !m.valid() {
		return fmt.Errorf("lk220: invalid control mode %d", m)
	}

	if _, err := c.transact(cmdSetMode+m.wire(), 0); err != nil {
		return err
	}

	got, err := c.ControlMode()
	if err != nil {
		return err
	}

	if got != m {
		c.metrics.incVerifyErrCount()

		return fmt.Errorf("%w: control mode is %s, want %s", ErrVerify, got, m)
	}

	return nil
}

// ControlSensor queries which sensor provides the actual temperature.
func (c *Controller) ControlSensor() (ControlSensor, error) {
	lines, err := c.transact(cmdGetSensor, 1)
	if err != nil {
		return 0, err
	}

	s, err := parseControlSensor(lines[0])
	if err != nil {
		c.metrics.incParseErrCount()

		return 0, err
	}

	return s, nil
}

// SetControlSensor selects the control sensor and verifies it by read-back.
func (c *Controller) SetControlSensor(s ControlSensor) error {
	if !s.valid() {
		return fmt.Errorf("lk220: invalid control sensor %d", s)
	}

	if _, err := c.transact(cmdSetSensor+s.wire(), 0); err != nil {
		return err
	}

	got, err := c.ControlSensor()
	if err != nil {
		return err
	}

	if got != s {
		c.metrics.incVerifyErrCount()

		return fmt.Errorf("%w: control sensor is %s, want %s", ErrVerify, got, s)
	}

	return nil
}

// TempWindow queries the temperature window in degC.
func (c *Controller) TempWindow() (float64, error) {
	return c.queryTemp(cmdGetWindow)
}

// SetTempWindow sets the temperature window in degC. The value is
// quantized to 0.1 degC and verified by read-back.
func (c *Controller) SetTempWindow(v float64) error {
	if v < MinTempWindow || v > MaxTempWindow {
		return fmt.Errorf("lk220: temp window %.2f out of range [%.1f, %.1f]", v, MinTempWindow, MaxTempWindow)
	}

	return c.setTemp(cmdSetWindow, v, c.TempWindow)
}

// TargetTemp queries the target temperature (setpoint) in degC.
func (c *Controller) TargetTemp() (float64, error) {
	return c.queryTemp(cmdGetTarget)
}

// SetTargetTemp sets the target temperature in degC. The value is
// quantized to 0.1 degC and verified by read-back.
func (c *Controller) SetTargetTemp(v float64) error {
	if v < MinTargetTemp || v > MaxTargetTemp {
		return fmt.Errorf("lk220: target temp %.2f out of range [%.1f, %.1f]", v, MinTargetTemp, MaxTargetTemp)
	}

	return c.setTemp(cmdSetTarget, v, c.TargetTemp)
}

// ActualTemp queries the actual temperature in degC, read from the
// configured control sensor.
func (c *Controller) ActualTemp() (float64, error) {
	return c.queryTemp(cmdGetActual)
}

// Enabled queries whether the chiller is running.
func (c *Controller) Enabled() (bool, error) {
	lines, err := c.transact(cmdGetEnable, 1)
	if err != nil {
		return false, err
	}

	on, err := parseBool(lines[0])
	if err != nil {
		c.metrics.incParseErrCount()

		return false, err
	}

	return on, nil
}

// SetEnable starts (true) or stops (false) the chiller.
func (c *Controller) SetEnable(on bool) error {
	v := "0"
	if on {
		v = "1"
	}

	_, err := c.transact(cmdSetEnable+v, 0)

	return err
}

// DeviceStatus queries the device state word and returns it verbatim.
//
// The encoding is undocumented by the vendor; the reply is passed through
// as opaque data, never decoded or defaulted.
func (c *Controller) DeviceStatus() (string, error) {
	lines, err := c.transact(cmdGetStatus, 1)
	if err != nil {
		return "", err
	}

	return lines[0], nil
}

// --- helpers ---

func (c *Controller) queryTemp(cmd string) (float64, error) {
	lines, err := c.transact(cmd, 1)
	if err != nil {
		return 0, err
	}

	v, err := parseTemp(lines[0])
	if err != nil {
		c.metrics.incParseErrCount()

		return 0, err
	}

	return v, nil
}

// setTemp writes a temperature setter in tenths-of-a-degree encoding and
// verifies the value by read-back within the device's 0.1 degC resolution.
func (c *Controller) setTemp(cmd string, v float64, readBack func() (float64, error)) error {
	want := quantizeTemp(v)

	if _, err := c.transact(cmd+encodeTenths(want), 0); err != nil {
		return err
	}

	got, err := readBack()
	if err != nil {
		return err
	}

	if math.Abs(got-want) > 0.051 {
		c.metrics.incVerifyErrCount()

		return fmt.Errorf("%w: %s read back %.1f, want %.1f", ErrVerify, strings.TrimSuffix(cmd, "="), got, want)
	}

	return nil
}
