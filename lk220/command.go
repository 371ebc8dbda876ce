package lk220

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Command verbs understood by the LK220 controller firmware. Queries end
// with '?'; setters take "VERB=value". Every command is terminated with a
// carriage return on the wire.
const (
	cmdIdentity    = "IDN?"
	cmdCommandList = "COMMAND?"
	cmdGetMode     = "MOD?"
	cmdSetMode     = "MOD="
	cmdGetSensor   = "SENS?"
	cmdSetSensor   = "SENS="
	cmdGetWindow   = "WINDOW?"
	cmdSetWindow   = "WINDOW="
	cmdGetTarget   = "TSET?"
	cmdSetTarget   = "TSET="
	cmdGetActual   = "TACT?"
	cmdGetEnable   = "EN?"
	cmdSetEnable   = "EN="
	cmdGetStatus   = "STAT?"
)

// commandListLines is the number of lines the COMMAND? capability listing
// spans on firmware 1.36.
const commandListLines = 36

// Value ranges accepted by the controller.
const (
	MinTargetTemp = -5.0 // degC
	MaxTargetTemp = 45.0 // degC

	MinTempWindow = 0.1 // degC
	MaxTempWindow = 5.0 // degC
)

// identityPrefix is the start of the IDN? reply on every known firmware
// revision; the trailing hardware/firmware versions vary.
const identityPrefix = "THORLABS LK220"

// ControlMode selects how the target temperature and Run/Stop are driven.
type ControlMode int

const (
	// ControlModeLocal: target temperature and Run/Stop respond to the
	// front-panel knob and software commands.
	ControlModeLocal ControlMode = iota
	// ControlModeLocalAnalog: target temperature is set by the Analog IN
	// port; Run/Stop by knob and software.
	ControlModeLocalAnalog
	// ControlModeTrig: target temperature by knob and software; Run/Stop
	// by the Trigger IN port.
	ControlModeTrig
	// ControlModeTrigAnalog: target temperature by Analog IN; Run/Stop by
	// Trigger IN.
	ControlModeTrigAnalog
)

func (m ControlMode) String() string {
	switch m {
	case ControlModeLocal:
		return "Local"
	case ControlModeLocalAnalog:
		return "Local-Analog"
	case ControlModeTrig:
		return "Trig"
	case ControlModeTrigAnalog:
		return "Trig-Analog"
	default:
		return "Unknown"
	}
}

func (m ControlMode) valid() bool {
	return m >= ControlModeLocal && m <= ControlModeTrigAnalog
}

// wire returns the single-digit encoding the firmware expects.
func (m ControlMode) wire() string {
	return strconv.Itoa(int(m))
}

func parseControlMode(s string) (ControlMode, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || !ControlMode(n).valid() {
		return 0, fmt.Errorf("%w: control mode %q", ErrParse, s)
	}

	return ControlMode(n), nil
}

// ControlSensor selects which temperature sensor closes the control loop.
type ControlSensor int

const (
	// SensorInternal: the internal sensor measuring output coolant
	// temperature provides the actual temperature reading.
	SensorInternal ControlSensor = iota
	// SensorExternal: the external TSP-TH sensor on the front panel
	// provides the actual temperature reading.
	SensorExternal
)

func (s ControlSensor) String() string {
	switch s {
	case SensorInternal:
		return "Internal"
	case SensorExternal:
		return "External"
	default:
		return "Unknown"
	}
}

func (s ControlSensor) valid() bool {
	return s == SensorInternal || s == SensorExternal
}

func (s ControlSensor) wire() string {
	return strconv.Itoa(int(s))
}

func parseControlSensor(s string) (ControlSensor, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || !ControlSensor(n).valid() {
		return 0, fmt.Errorf("%w: control sensor %q", ErrParse, s)
	}

	return ControlSensor(n), nil
}

// quantizeTemp rounds a temperature to the 0.1 degC resolution the
// controller works in.
func quantizeTemp(v float64) float64 {
	return math.Round(v*10) / 10
}

// encodeTenths converts a temperature to the integer tenths-of-a-degree
// representation used by setter commands (22.0 degC -> "220").
func encodeTenths(v float64) string {
	return strconv.Itoa(int(math.Round(v * 10)))
}

// parseTemp parses a temperature reply, which the firmware reports in
// plain degrees ("21.5").
func parseTemp(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: temperature %q", ErrParse, s)
	}

	return v, nil
}

// parseBool parses a 0/1 reply.
func parseBool(s string) (bool, error) {
	switch strings.TrimSpace(s) {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, fmt.Errorf("%w: boolean %q", ErrParse, s)
	}
}
