package lk220

import (
	"errors"
	"fmt"
	"time"

	"github.com/chillerlab/go-lk220/logger"
	"github.com/chillerlab/go-lk220/serial"
)

// Defaults match the vendor tooling: 115200 baud and a 2 second reply
// window.
const (
	DefaultBaudRate     = 115200
	DefaultReplyTimeout = 2 * time.Second

	DefaultControlMode   = ControlModeLocal
	DefaultControlSensor = SensorExternal
	DefaultTempWindow    = 0.1 // degC
)

// Reply timeout limits. The lower bound keeps a slow USB-serial adapter
// from producing spurious timeouts; the upper bound is a sanity cap.
const (
	MinReplyTimeout = 50 * time.Millisecond
	MaxReplyTimeout = 120 * time.Second
)

// ConnectionConfig holds all configuration for a Controller.
type ConnectionConfig struct {
	portName string
	baudRate int

	// replyTimeout bounds one whole transaction: all expected reply lines
	// plus the trailing prompt.
	replyTimeout time.Duration

	// promptCheck enables verification of the "> \r\n" prompt the firmware
	// sends after every exchange.
	promptCheck bool

	// Initial device configuration applied during Open.
	controlMode   ControlMode
	controlSensor ControlSensor
	tempWindow    float64

	// port, when non-nil, is used instead of opening the OS device named
	// by portName. Used for the TCP bridge and for tests.
	port serial.Port

	logger logger.Logger
}

// NewConnectionConfig creates a Controller configuration for the given
// serial port name.
//
// opts are functional options applied in order; see With* functions.
func NewConnectionConfig(portName string, opts ...ConnOption) (*ConnectionConfig, error) {
	if portName == "" {
		return nil, errors.New("lk220: port name is empty")
	}

	cfg := &ConnectionConfig{
		portName:      portName,
		baudRate:      DefaultBaudRate,
		replyTimeout:  DefaultReplyTimeout,
		promptCheck:   true,
		controlMode:   DefaultControlMode,
		controlSensor: DefaultControlSensor,
		tempWindow:    DefaultTempWindow,
		logger:        logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// --- Getters ---

// PortName returns the configured serial port name.
func (cfg *ConnectionConfig) PortName() string { return cfg.portName }

// BaudRate returns the configured baud rate.
func (cfg *ConnectionConfig) BaudRate() int { return cfg.baudRate }

// ReplyTimeout returns the per-transaction reply timeout.
func (cfg *ConnectionConfig) ReplyTimeout() time.Duration { return cfg.replyTimeout }

// PromptCheck returns whether the trailing prompt is verified.
func (cfg *ConnectionConfig) PromptCheck() bool { return cfg.promptCheck }

// ControlMode returns the control mode applied during Open.
func (cfg *ConnectionConfig) ControlMode() ControlMode { return cfg.controlMode }

// ControlSensor returns the control sensor applied during Open.
func (cfg *ConnectionConfig) ControlSensor() ControlSensor { return cfg.controlSensor }

// TempWindow returns the temperature window applied during Open.
func (cfg *ConnectionConfig) TempWindow() float64 { return cfg.tempWindow }

// GetLogger returns the configured logger.
func (cfg *ConnectionConfig) GetLogger() logger.Logger { return cfg.logger }

// --- ConnOption ---

// ConnOption is a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc func(*ConnectionConfig) error

func (f connOptFunc) apply(cfg *ConnectionConfig) error { return f(cfg) }

// WithBaudRate sets the serial baud rate.
func WithBaudRate(baud int) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if baud <= 0 {
			return fmt.Errorf("lk220: baud rate %d must be positive", baud)
		}
		cfg.baudRate = baud

		return nil
	})
}

// WithReplyTimeout sets the per-transaction reply timeout.
func WithReplyTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d < MinReplyTimeout || d > MaxReplyTimeout {
			return fmt.Errorf("lk220: reply timeout %v out of range [%v, %v]", d, MinReplyTimeout, MaxReplyTimeout)
		}
		cfg.replyTimeout = d

		return nil
	})
}

// WithPromptCheck enables or disables verification of the "> \r\n" prompt
// after each exchange. Enabled by default; disable only for firmware that
// does not emit the prompt.
func WithPromptCheck(enabled bool) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		cfg.promptCheck = enabled

		return nil
	})
}

// WithControlMode sets the control mode applied during Open.
func WithControlMode(m ControlMode) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if !m.valid() {
			return fmt.Errorf("lk220: invalid control mode %d", m)
		}
		cfg.controlMode = m

		return nil
	})
}

// WithControlSensor sets the control sensor applied during Open.
func WithControlSensor(s ControlSensor) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if !s.valid() {
			return fmt.Errorf("lk220: invalid control sensor %d", s)
		}
		cfg.controlSensor = s

		return nil
	})
}

// WithTempWindow sets the temperature window applied during Open.
func WithTempWindow(v float64) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if v < MinTempWindow || v > MaxTempWindow {
			return fmt.Errorf("lk220: temp window %.2f out of range [%.1f, %.1f]", v, MinTempWindow, MaxTempWindow)
		}
		cfg.tempWindow = v

		return nil
	})
}

// WithPort injects an already-open transport instead of opening the OS
// serial device named in the config. The Controller takes ownership and
// closes it on Close.
func WithPort(p serial.Port) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if p == nil {
			return errors.New("lk220: port must not be nil")
		}
		cfg.port = p

		return nil
	})
}

// WithLogger sets the logger for the connection.
func WithLogger(l logger.Logger) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if l == nil {
			return errors.New("lk220: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
