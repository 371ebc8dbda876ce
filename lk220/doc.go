// Package lk220 provides a device adaptor for the Thorlabs LK220
// thermoelectric liquid chiller.
//
// The LK220 is controlled over RS-232 with a line-oriented ASCII protocol:
// the host sends a command terminated by a carriage return, the controller
// answers with zero or more CR-terminated reply lines followed by a
// "> \r\n" prompt. The protocol is strictly half-duplex with a single
// outstanding command.
//
// # Transactions
//
// The core of the package is the transaction engine: one command-send /
// reply-receive cycle bounded by a configurable reply timeout. On timeout
// the engine fails with [ErrReplyTimeout] and leaves the connection open;
// it never retries on its own, since the idempotency of vendor commands is
// not documented. Overlapping calls fail fast with [ErrBusy].
//
// # Lifecycle
//
// A [Controller] owns its serial port exclusively from [Controller.Open]
// to [Controller.Close]. Open verifies the device identity and applies the
// configured control mode, control sensor and temperature window. Close is
// terminal; talking to the device again requires a new Controller.
//
// # Usage
//
//	cfg, err := lk220.NewConnectionConfig("COM12",
//		lk220.WithControlMode(lk220.ControlModeLocal),
//		lk220.WithControlSensor(lk220.SensorExternal),
//	)
//	if err != nil { ... }
//
//	chiller, err := lk220.NewController(cfg)
//	if err != nil { ... }
//	if err := chiller.Open(); err != nil { ... }
//	defer chiller.Close()
//
//	if err := chiller.SetTargetTemp(22); err != nil { ... }
//	temp, err := chiller.ActualTemp()
//
// The device state word returned by [Controller.DeviceStatus] is not
// decoded; its byte encoding is undocumented by the vendor and is passed
// through as opaque data.
package lk220
