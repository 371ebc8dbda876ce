package lk220

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	// terminator ends each command and each reply line.
	terminator = '\r'

	// promptLine is emitted by the firmware after the reply lines of every
	// exchange, including exchanges that produce no reply lines.
	promptLine = "> \r\n"
)

// transact performs one half-duplex command/reply cycle: write the command
// with its terminator, read replyLines CR-terminated lines, then consume
// the trailing prompt. The whole cycle is bounded by the configured reply
// timeout.
//
// On ErrReplyTimeout the port is left open; retrying is the caller's
// decision since command idempotency varies. A concurrent transact call
// fails fast with ErrBusy rather than interleaving bytes on the wire.
func (c *Controller) transact(cmd string, replyLines int) ([]string, error) {
	st := c.opState.Get()
	if st != OpeningState && st != OpenedState {
		return nil, fmt.Errorf("%w: state %s", ErrConnClosed, st)
	}

	if !c.txGate.enter() {
		return nil, fmt.Errorf("%w: %s rejected", ErrBusy, cmd)
	}
	defer c.txGate.leave()

	port := c.port
	if port == nil {
		return nil, ErrConnClosed
	}

	// Stale bytes from an earlier timed-out exchange would be mistaken for
	// this command's reply.
	if err := port.ResetInputBuffer(); err != nil {
		c.logger.Warn("lk220: failed to reset input buffer", "error", err)
	}

	c.logger.Debug("lk220: sending command", "cmd", cmd)
	c.metrics.incCmdSendCount()

	if err := c.writeAll([]byte(cmd + string(terminator))); err != nil {
		return nil, fmt.Errorf("lk220: write %s: %w", cmd, err)
	}

	deadline := time.Now().Add(c.cfg.replyTimeout)

	var lines []string
	if replyLines > 0 {
		lines = make([]string, 0, replyLines)
	}

	for i := 0; i < replyLines; i++ {
		raw, err := c.readLine(deadline, terminator)
		if err != nil {
			return nil, err
		}

		lines = append(lines, strings.TrimSuffix(raw, string(terminator)))
	}

	if c.cfg.promptCheck {
		raw, err := c.readLine(deadline, '\n')
		if err != nil {
			return nil, err
		}

		if raw != promptLine {
			return nil, fmt.Errorf("%w: got %q", ErrPromptMissing, raw)
		}
	}

	c.metrics.incReplyRecvCount()
	c.logger.Debug("lk220: transaction complete", "cmd", cmd, "reply", lines)

	return lines, nil
}

// readLine reads bytes until delim, bounded by deadline. The returned
// string includes the delimiter.
//
// Each Read is issued with the remaining time as the port's read timeout;
// a (0, nil) return means the timeout elapsed with no data (go.bug.st
// semantics, mirrored by the pipe and TCP ports).
func (c *Controller) readLine(deadline time.Time, delim byte) (string, error) {
	var sb strings.Builder

	buf := make([]byte, 1)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.metrics.incTimeoutCount()

			return "", fmt.Errorf("%w: no %q within %v", ErrReplyTimeout, delim, c.cfg.replyTimeout)
		}

		if err := c.port.SetReadTimeout(remaining); err != nil {
			return "", fmt.Errorf("lk220: set read timeout: %w", err)
		}

		n, err := c.port.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return "", fmt.Errorf("%w: %v", ErrConnClosed, err)
			}

			return "", fmt.Errorf("lk220: read: %w", err)
		}

		if n == 0 {
			c.metrics.incTimeoutCount()

			return "", fmt.Errorf("%w: no %q within %v", ErrReplyTimeout, delim, c.cfg.replyTimeout)
		}

		sb.WriteByte(buf[0])

		if buf[0] == delim {
			return sb.String(), nil
		}
	}
}

// writeAll writes all bytes in data to the port.
func (c *Controller) writeAll(data []byte) error {
	for written := 0; written < len(data); {
		n, err := c.port.Write(data[written:])
		written += n

		if err != nil {
			return err
		}
	}

	return nil
}
