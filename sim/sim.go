// Package sim emulates the serial command surface of a Thorlabs LK220
// chiller controller.
//
// It implements the device side of the line protocol: commands arrive
// CR-terminated, replies are CR-terminated lines followed by the "> \r\n"
// prompt. The emulator backs the lk220 package's tests and the lk220-sim
// binary, so development does not require hardware on a bench.
package sim

import (
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
)

// DefaultIdentity matches the IDN? reply of the hardware the adaptor was
// developed against.
const DefaultIdentity = "THORLABS LK220 HV 1.20 FV 1.36"

const prompt = "> \r\n"

// Device is an in-memory LK220 controller.
//
// All accessors are safe for concurrent use; a test may inspect or mutate
// state while a ServePort goroutine is running.
type Device struct {
	mu sync.Mutex

	identity string
	mode     int
	sensor   int
	window   float64 // degC
	target   float64 // degC
	actual   float64 // degC
	enabled  bool
	status   string

	// mute drops replies entirely, simulating a wedged controller.
	mute bool
}

// New creates a Device with power-on defaults.
func New() *Device {
	return &Device{
		identity: DefaultIdentity,
		mode:     0, // Local
		sensor:   1, // External
		window:   0.1,
		target:   20.0,
		actual:   23.4,
		status:   "2A00",
	}
}

// ServePort answers commands on rw until a read error occurs (typically
// EOF when the peer closes). It returns the terminating read error.
func (d *Device) ServePort(rw io.ReadWriter) error {
	var line strings.Builder

	buf := make([]byte, 1)

	for {
		n, err := rw.Read(buf)
		if err != nil {
			return err
		}

		if n == 0 {
			continue
		}

		if buf[0] != '\r' {
			line.WriteByte(buf[0])

			continue
		}

		cmd := line.String()
		line.Reset()

		if d.muted() {
			continue
		}

		var out strings.Builder
		for _, reply := range d.handle(cmd) {
			out.WriteString(reply)
			out.WriteByte('\r')
		}
		out.WriteString(prompt)

		if _, err := io.WriteString(rw, out.String()); err != nil {
			return err
		}
	}
}

// handle executes one command and returns its reply lines. Setters and
// unknown commands produce no reply lines, only the prompt.
func (d *Device) handle(cmd string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch cmd {
	case "IDN?":
		return []string{d.identity}
	case "COMMAND?":
		return commandListing[:]
	case "MOD?":
		return []string{strconv.Itoa(d.mode)}
	case "SENS?":
		return []string{strconv.Itoa(d.sensor)}
	case "WINDOW?":
		return []string{formatTemp(d.window)}
	case "TSET?":
		return []string{formatTemp(d.target)}
	case "TACT?":
		return []string{formatTemp(d.actual)}
	case "EN?":
		return []string{boolWire(d.enabled)}
	case "STAT?":
		return []string{d.status}
	}

	if arg, ok := strings.CutPrefix(cmd, "MOD="); ok {
		if n, err := strconv.Atoi(arg); err == nil && n >= 0 && n <= 3 {
			d.mode = n
		}

		return nil
	}

	if arg, ok := strings.CutPrefix(cmd, "SENS="); ok {
		if n, err := strconv.Atoi(arg); err == nil && (n == 0 || n == 1) {
			d.sensor = n
		}

		return nil
	}

	if arg, ok := strings.CutPrefix(cmd, "WINDOW="); ok {
		if n, err := strconv.Atoi(arg); err == nil {
			d.window = float64(n) / 10
		}

		return nil
	}

	if arg, ok := strings.CutPrefix(cmd, "TSET="); ok {
		if n, err := strconv.Atoi(arg); err == nil {
			d.target = float64(n) / 10
		}

		return nil
	}

	if arg, ok := strings.CutPrefix(cmd, "EN="); ok {
		switch arg {
		case "0":
			d.enabled = false
		case "1":
			d.enabled = true
		}

		return nil
	}

	// Unknown commands are swallowed; the real controller still prompts.
	return nil
}

// Tick advances the thermal model one step: when enabled, the coolant
// temperature drifts toward the target by at most 0.3 degC.
func (d *Device) Tick() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.enabled {
		return
	}

	diff := d.target - d.actual
	step := math.Min(math.Abs(diff), 0.3)
	d.actual += math.Copysign(step, diff)
}

// --- test and tooling accessors ---

func (d *Device) SetIdentity(id string) {
	d.mu.Lock()
	d.identity = id
	d.mu.Unlock()
}

func (d *Device) SetActualTemp(v float64) {
	d.mu.Lock()
	d.actual = v
	d.mu.Unlock()
}

func (d *Device) ActualTemp() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.actual
}

func (d *Device) TargetTemp() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.target
}

func (d *Device) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.enabled
}

// SetStatusWord sets the raw reply to STAT?.
func (d *Device) SetStatusWord(s string) {
	d.mu.Lock()
	d.status = s
	d.mu.Unlock()
}

// SetMute makes the device swallow commands without replying, which the
// adaptor observes as a reply timeout.
func (d *Device) SetMute(mute bool) {
	d.mu.Lock()
	d.mute = mute
	d.mu.Unlock()
}

func (d *Device) muted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.mute
}

func formatTemp(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func boolWire(b bool) string {
	if b {
		return "1"
	}

	return "0"
}

// commandListing is the 36-line COMMAND? capability listing reported by
// firmware 1.36.
var commandListing = [36]string{
	"IDN?      query device identification",
	"COMMAND?  list available commands",
	"MOD?      query control mode",
	"MOD=      set control mode (0-3)",
	"SENS?     query control sensor",
	"SENS=     set control sensor (0-1)",
	"WINDOW?   query temperature window",
	"WINDOW=   set temperature window (1-50, 0.1C units)",
	"TSET?     query target temperature",
	"TSET=     set target temperature (-50-450, 0.1C units)",
	"TACT?     query actual temperature",
	"EN?       query run state",
	"EN=       set run state (0-1)",
	"STAT?     query device state word",
	"TINT?     query internal sensor temperature",
	"TEXT?     query external sensor temperature",
	"PUMP?     query pump speed level",
	"PUMP=     set pump speed level (1-3)",
	"FAN?      query fan speed",
	"FSPD?     query flow speed",
	"ILIM?     query current limit",
	"ILIM=     set current limit",
	"PGAIN?    query proportional gain",
	"PGAIN=    set proportional gain",
	"IGAIN?    query integral gain",
	"IGAIN=    set integral gain",
	"DGAIN?    query derivative gain",
	"DGAIN=    set derivative gain",
	"ALARM?    query alarm flags",
	"ALMCLR    clear alarm flags",
	"MUTE?     query beeper state",
	"MUTE=     set beeper state (0-1)",
	"LOCK?     query front panel lock",
	"LOCK=     set front panel lock (0-1)",
	"VER?      query protocol version",
	"SN?       query serial number",
}
