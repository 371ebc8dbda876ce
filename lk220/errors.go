package lk220

import "errors"

// Sentinel errors for the LK220 command/reply protocol.
var (
	// ErrReplyTimeout indicates no terminated reply arrived within the
	// configured reply timeout. The connection stays open; whether a retry
	// is safe depends on the command and is left to the caller.
	ErrReplyTimeout = errors.New("lk220: reply timeout")

	// ErrParse indicates a reply was received but was not in the expected
	// shape. The command has already been executed by the device.
	ErrParse = errors.New("lk220: parse error")

	// ErrPromptMissing indicates the device did not send its "> " prompt
	// after a reply, so the transaction framing is suspect.
	ErrPromptMissing = errors.New("lk220: prompt not received")

	// ErrBusy indicates another transaction is in flight. The protocol is
	// half-duplex; commands must not overlap.
	ErrBusy = errors.New("lk220: transaction already in flight")

	// ErrConnClosed indicates the connection is closed or was never opened.
	ErrConnClosed = errors.New("lk220: connection closed")

	// ErrPortInUse indicates another Controller already owns the port.
	ErrPortInUse = errors.New("lk220: port already in use")

	// ErrVerify indicates a setter's read-back did not match the value
	// that was written.
	ErrVerify = errors.New("lk220: read-back verification failed")

	// ErrIdentity indicates the device on the port did not identify itself
	// as an LK220.
	ErrIdentity = errors.New("lk220: unexpected device identity")
)
