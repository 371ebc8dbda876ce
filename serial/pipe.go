package serial

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// Pipe creates an in-memory, synchronous duplex channel whose two ends both
// implement Port. Bytes written to one end become readable on the other.
//
// It is intended for tests and simulators: one end plays the adaptor, the
// other plays the instrument.
func Pipe() (Port, Port) {
	a := newPipeEnd()
	b := newPipeEnd()
	a.peer = b
	b.peer = a

	return a, b
}

type pipeEnd struct {
	peer *pipeEnd

	mu      sync.Mutex
	buf     bytes.Buffer
	timeout time.Duration

	dataCh    chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

var _ Port = (*pipeEnd)(nil)

func newPipeEnd() *pipeEnd {
	return &pipeEnd{
		dataCh: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (e *pipeEnd) Read(p []byte) (int, error) {
	e.mu.Lock()
	d := e.timeout
	e.mu.Unlock()

	var timeoutC <-chan time.Time

	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()

		timeoutC = timer.C
	}

	for {
		e.mu.Lock()
		if e.buf.Len() > 0 {
			n, _ := e.buf.Read(p)
			e.mu.Unlock()

			return n, nil
		}
		e.mu.Unlock()

		select {
		case <-e.closed:
			return 0, io.EOF
		case <-e.peer.closed:
			return 0, io.EOF
		case <-timeoutC:
			// Timeout expiry mirrors physical port semantics: (0, nil).
			return 0, nil
		case <-e.dataCh:
		}
	}
}

func (e *pipeEnd) Write(p []byte) (int, error) {
	peer := e.peer

	select {
	case <-e.closed:
		return 0, io.ErrClosedPipe
	case <-peer.closed:
		return 0, io.ErrClosedPipe
	default:
	}

	peer.mu.Lock()
	peer.buf.Write(p)
	peer.mu.Unlock()

	// Coalescing is fine here: a pending signal already wakes the reader,
	// which re-checks the buffer.
	select {
	case peer.dataCh <- struct{}{}:
	default:
	}

	return len(p), nil
}

func (e *pipeEnd) Close() error {
	e.closeOnce.Do(func() {
		close(e.closed)
	})

	return nil
}

func (e *pipeEnd) SetReadTimeout(d time.Duration) error {
	e.mu.Lock()
	e.timeout = d
	e.mu.Unlock()

	return nil
}

func (e *pipeEnd) ResetInputBuffer() error {
	e.mu.Lock()
	e.buf.Reset()
	e.mu.Unlock()

	return nil
}
