package trak

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/birdlab/gotrak/pkg/pose"
)

const (
	// DefaultBaudRate is the standard baud rate for the tracker bridge.
	DefaultBaudRate = 115200
	// DefaultReadTimeout bounds every request/response exchange.
	DefaultReadTimeout = 500 * time.Millisecond
	// MaxSensors is the sensor port count on an ATC3DG-class unit.
	MaxSensors = 4

	helloCommand  = "HELLO"
	helloResponse = "TRAK"
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(names))
	for _, name := range names {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// Serial is a Transport over a serial line speaking the tracker bridge's
// line protocol: one command per line out, one response line back, bounded
// by a read deadline.
type Serial struct {
	port     string
	baudRate int
	timeout  time.Duration

	mu          sync.Mutex
	conn        serial.Port
	connected   bool
	numSensors  int
	attached    uint32
	transmitter bool
}

// NewSerial creates a serial transport for the given port. Zero baudRate and
// timeout select the defaults.
func NewSerial(port string, baudRate int, timeout time.Duration) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if timeout == 0 {
		timeout = DefaultReadTimeout
	}
	return &Serial{
		port:     port,
		baudRate: baudRate,
		timeout:  timeout,
	}
}

// Open opens the port and runs the enumeration handshake.
func (d *Serial) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	mode := &serial.Mode{BaudRate: d.baudRate}
	conn, err := serial.Open(d.port, mode)
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %v", ErrDeviceUnavailable, d.port, err)
	}
	d.conn = conn

	if err := d.handshake(); err != nil {
		_ = conn.Close()
		d.conn = nil
		return err
	}

	d.connected = true
	log.Debugf("opened tracker on %s: %d sensors, transmitter=%v", d.port, d.numSensors, d.transmitter)
	return nil
}

// Close releases the port. Safe to call repeatedly and after a failed Open.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.Errorf("error closing serial port: %v", err)
		}
		d.conn = nil
	}
	d.connected = false
	return nil
}

// Connected returns whether the transport is currently open.
func (d *Serial) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// NumSensors returns the sensor count reported during the open handshake.
func (d *Serial) NumSensors() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.numSensors
}

// SensorAttached reports whether the sensor port has a receiver plugged in.
func (d *Serial) SensorAttached(id int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id < 0 || id >= d.numSensors {
		return false
	}
	return d.attached&(1<<uint(id)) != 0
}

// TransmitterAttached reports whether the field transmitter is present.
func (d *Serial) TransmitterAttached() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transmitter
}

// SetMeasurementRate configures the device-internal sampling rate.
func (d *Serial) SetMeasurementRate(hz float64) error {
	return d.configure(fmt.Sprintf("CFG,RATE,%.3f", hz))
}

// SetMaxRange configures the device-wide maximum tracking range.
func (d *Serial) SetMaxRange(r pose.MaxRange) error {
	return d.configure("CFG,RANGE," + r.String())
}

// SetOutputMode configures the orientation representation for one sensor.
func (d *Serial) SetOutputMode(id int, m pose.OutputMode) error {
	if err := d.checkSensor(id); err != nil {
		return err
	}
	return d.configure(fmt.Sprintf("CFG,MODE,%d,%s", id, m))
}

// SetHemisphere configures the expected hemisphere for one sensor.
func (d *Serial) SetHemisphere(id int, h pose.Hemisphere) error {
	if err := d.checkSensor(id); err != nil {
		return err
	}
	return d.configure(fmt.Sprintf("CFG,HEMI,%d,%s", id, h))
}

// ReadRaw polls one sensor and returns the payload after the "P,<id>,"
// response prefix.
func (d *Serial) ReadRaw(id int) ([]byte, error) {
	if err := d.checkSensor(id); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	line, err := d.exchange(fmt.Sprintf("RD,%d", id))
	if err != nil {
		return nil, err
	}
	payload, err := parseReadResponse(line, id)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (d *Serial) checkSensor(id int) error {
	d.mu.Lock()
	n := d.numSensors
	d.mu.Unlock()
	if id < 0 || id >= n {
		return fmt.Errorf("%w: %d (have %d)", ErrUnknownSensor, id, n)
	}
	return nil
}

// configure runs one CFG exchange and maps ERR responses to ErrConfigRejected.
func (d *Serial) configure(cmd string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	line, err := d.exchange(cmd)
	if err != nil {
		return err
	}
	return parseConfigResponse(line)
}

// exchange writes one command line and reads one response line. Callers hold
// d.mu.
func (d *Serial) exchange(cmd string) (string, error) {
	if !d.connected && d.conn == nil {
		return "", ErrNotConnected
	}
	if _, err := d.conn.Write([]byte(cmd + "\n")); err != nil {
		return "", fmt.Errorf("failed to send %q: %w", cmd, err)
	}
	return d.readLine()
}

// readLine reads bytes until a newline, bounded by the transport deadline.
// go.bug.st/serial signals an expired read timeout as a zero-byte read.
func (d *Serial) readLine() (string, error) {
	deadline := time.Now().Add(d.timeout)
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", fmt.Errorf("%w after %v", ErrReadTimeout, d.timeout)
		}
		if err := d.conn.SetReadTimeout(remaining); err != nil {
			return "", fmt.Errorf("failed to set read deadline: %w", err)
		}
		n, err := d.conn.Read(buf)
		if err != nil {
			return "", fmt.Errorf("failed to read from serial port: %w", err)
		}
		if n == 0 {
			return "", fmt.Errorf("%w after %v", ErrReadTimeout, d.timeout)
		}
		if buf[0] == '\n' {
			return strings.TrimRight(sb.String(), "\r"), nil
		}
		sb.WriteByte(buf[0])
	}
}

// handshake sends HELLO and parses the enumeration response. Callers hold
// d.mu.
func (d *Serial) handshake() error {
	line, err := d.exchange(helloCommand)
	if err != nil {
		return fmt.Errorf("%w: handshake failed: %v", ErrDeviceUnavailable, err)
	}
	n, attached, tx, err := parseHello(line)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	d.numSensors = n
	d.attached = attached
	d.transmitter = tx
	return nil
}

// parseHello parses the handshake response.
// Format: TRAK,<num_sensors>,<attached_bitmask>,<transmitter 0|1>
func parseHello(line string) (numSensors int, attached uint32, transmitter bool, err error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 4 || parts[0] != helloResponse {
		return 0, 0, false, fmt.Errorf("unexpected handshake response %q", line)
	}

	n, err := strconv.Atoi(parts[1])
	if err != nil || n < 0 || n > MaxSensors {
		return 0, 0, false, fmt.Errorf("invalid sensor count %q", parts[1])
	}
	mask, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return 0, 0, false, fmt.Errorf("invalid attachment mask %q", parts[2])
	}
	switch parts[3] {
	case "0":
		transmitter = false
	case "1":
		transmitter = true
	default:
		return 0, 0, false, fmt.Errorf("invalid transmitter flag %q", parts[3])
	}
	return n, uint32(mask), transmitter, nil
}

// parseConfigResponse maps an OK/ERR response line to an error.
func parseConfigResponse(line string) error {
	line = strings.TrimSpace(line)
	if line == "OK" {
		return nil
	}
	if reason, found := strings.CutPrefix(line, "ERR,"); found {
		return fmt.Errorf("%w: %s", ErrConfigRejected, reason)
	}
	return fmt.Errorf("%w: unexpected response %q", ErrConfigRejected, line)
}

// parseReadResponse strips the "P,<id>," prefix and verifies the echoed id.
func parseReadResponse(line string, id int) ([]byte, error) {
	rest, found := strings.CutPrefix(strings.TrimSpace(line), "P,")
	if !found {
		if reason, isErr := strings.CutPrefix(strings.TrimSpace(line), "ERR,"); isErr {
			return nil, fmt.Errorf("%w: %s", ErrConfigRejected, reason)
		}
		return nil, fmt.Errorf("unexpected read response %q", line)
	}
	idStr, payload, found := strings.Cut(rest, ",")
	if !found {
		return nil, fmt.Errorf("truncated read response %q", line)
	}
	echo, err := strconv.Atoi(idStr)
	if err != nil || echo != id {
		return nil, fmt.Errorf("read response for sensor %q, expected %d", idStr, id)
	}
	return []byte(payload), nil
}
