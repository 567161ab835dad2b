package trak

import "github.com/birdlab/gotrak/pkg/pose"

// Transport owns the connection to a tracker (real or simulated). A
// transport has exactly one logical owner; no concurrent callers may share
// one handle.
type Transport interface {
	// Open establishes the connection and enumerates the attached
	// sensors and transmitter. Fails with ErrDeviceUnavailable.
	Open() error
	// Close releases the connection. Idempotent; a no-op after a failed
	// Open.
	Close() error
	Connected() bool

	// Enumeration, valid after a successful Open.
	NumSensors() int
	SensorAttached(id int) bool
	TransmitterAttached() bool

	// Configuration writes. The device may refuse a value with
	// ErrConfigRejected; an out-of-range id fails with ErrUnknownSensor.
	SetMeasurementRate(hz float64) error
	SetMaxRange(r pose.MaxRange) error
	SetOutputMode(id int, m pose.OutputMode) error
	SetHemisphere(id int, h pose.Hemisphere) error

	// ReadRaw polls one sensor and returns the raw sample payload. Fails
	// with ErrReadTimeout when the device misses the deadline.
	ReadRaw(id int) ([]byte, error)
}

// Ensure Serial implements Transport.
var _ Transport = (*Serial)(nil)

// Ensure Mock implements Transport.
var _ Transport = (*Mock)(nil)
