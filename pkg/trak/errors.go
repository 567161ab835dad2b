package trak

import "errors"

// Error taxonomy for the transport and everything above it. Callers match
// with errors.Is; wrapped variants carry detail.
var (
	// ErrDeviceUnavailable means the hardware is absent, permissions are
	// insufficient, or the device did not answer the open handshake. Fatal
	// at open.
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrConfigRejected means the device refused a configuration value.
	// Recoverable: retry with a corrected value.
	ErrConfigRejected = errors.New("configuration rejected")

	// ErrInvalidParameter means a value failed local validation before it
	// ever reached the device. State is left unchanged.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrUnknownSensor means a sensor id outside the enumerated range.
	ErrUnknownSensor = errors.New("unknown sensor id")

	// ErrReadTimeout means the device did not answer a read within the
	// polling deadline. Transient per read; fatal once a session's retry
	// budget is exhausted.
	ErrReadTimeout = errors.New("read timed out")

	// ErrNotConnected means an operation was attempted on a closed transport.
	ErrNotConnected = errors.New("not connected")
)
