package serial

import (
	"fmt"

	bugst "go.bug.st/serial"
)

// physicalPort wraps a go.bug.st/serial port. The embedded port already
// satisfies Port; the wrapper only adds the port name for diagnostics.
type physicalPort struct {
	bugst.Port
	name string
}

var _ Port = (*physicalPort)(nil)

// Open opens the named OS serial device (e.g. "COM12" or "/dev/ttyUSB0")
// at the given baud rate with an 8N1 frame.
func Open(name string, baudRate int) (Port, error) {
	mode := &bugst.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}

	port, err := bugst.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", name, err)
	}

	return &physicalPort{Port: port, name: name}, nil
}

func (p *physicalPort) String() string {
	return p.name
}
