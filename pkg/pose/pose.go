package pose

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OutputMode selects the orientation representation a sensor reports.
type OutputMode int

const (
	// ModeUnset means no output mode has been configured yet.
	ModeUnset OutputMode = iota
	// ModeQuaternion reports orientation as a unit quaternion [w x y z].
	ModeQuaternion
	// ModeEuler reports orientation as azimuth/elevation/roll in degrees.
	ModeEuler
	// ModeMatrix reports orientation as a row-major 3x3 rotation matrix.
	ModeMatrix
)

// String returns the wire token for the mode.
func (m OutputMode) String() string {
	switch m {
	case ModeQuaternion:
		return "QUAT"
	case ModeEuler:
		return "EULER"
	case ModeMatrix:
		return "MATRIX"
	default:
		return "UNSET"
	}
}

// ParseOutputMode parses a mode name. Accepts both wire tokens and the
// lowercase names used in configuration files.
func ParseOutputMode(s string) (OutputMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "QUAT", "QUATERNION":
		return ModeQuaternion, nil
	case "EULER", "ANGLES":
		return ModeEuler, nil
	case "MATRIX":
		return ModeMatrix, nil
	default:
		return ModeUnset, fmt.Errorf("unknown output mode %q", s)
	}
}

// Fields returns the number of orientation values the mode carries on the wire.
func (m OutputMode) Fields() int {
	switch m {
	case ModeQuaternion:
		return 4
	case ModeEuler:
		return 3
	case ModeMatrix:
		return 9
	default:
		return 0
	}
}

// Hemisphere selects which half-space of the transmitter's field the sensor
// is expected to occupy.
type Hemisphere int

const (
	// HemisphereFront is the default hemisphere.
	HemisphereFront Hemisphere = iota
	// HemisphereRear is the hemisphere behind the transmitter.
	HemisphereRear
)

func (h Hemisphere) String() string {
	if h == HemisphereRear {
		return "REAR"
	}
	return "FRONT"
}

// ParseHemisphere parses a hemisphere name.
func ParseHemisphere(s string) (Hemisphere, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FRONT":
		return HemisphereFront, nil
	case "REAR", "BACK":
		return HemisphereRear, nil
	default:
		return HemisphereFront, fmt.Errorf("unknown hemisphere %q", s)
	}
}

// MaxRange is the device-wide maximum tracking range.
type MaxRange int

const (
	// Range36In limits tracking to 36 inches from the transmitter.
	Range36In MaxRange = iota
	// Range72In limits tracking to 72 inches from the transmitter.
	Range72In
)

func (r MaxRange) String() string {
	if r == Range72In {
		return "72"
	}
	return "36"
}

// ParseMaxRange parses a range name ("36", "36in", "72", "72in").
func ParseMaxRange(s string) (MaxRange, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "36", "36in":
		return Range36In, nil
	case "72", "72in":
		return Range72In, nil
	default:
		return Range36In, fmt.Errorf("unknown max range %q", s)
	}
}

// Vec3 is a position in device units relative to the transmitter.
type Vec3 struct {
	X, Y, Z float64
}

// Orientation is the closed set of orientation representations. Exactly one
// concrete type exists per OutputMode.
type Orientation interface {
	Mode() OutputMode
}

// Quaternion is a unit quaternion in [w x y z] order.
type Quaternion [4]float64

// Mode implements Orientation.
func (Quaternion) Mode() OutputMode { return ModeQuaternion }

// Euler carries azimuth, elevation and roll in degrees.
type Euler struct {
	Azimuth, Elevation, Roll float64
}

// Mode implements Orientation.
func (Euler) Mode() OutputMode { return ModeEuler }

// Matrix3 is a row-major 3x3 rotation matrix.
type Matrix3 [9]float64

// Mode implements Orientation.
func (Matrix3) Mode() OutputMode { return ModeMatrix }

// Sample is one pose reading from one sensor. Either Orientation is set and
// Err is nil, or Err carries the failure and Orientation is nil; success is
// derived from the error, never stored separately.
type Sample struct {
	SensorID    int
	Timestamp   time.Time
	Position    Vec3
	Orientation Orientation
	Err         error
}

// OK reports whether the read succeeded.
func (s Sample) OK() bool { return s.Err == nil }

// Failed builds a failed sample for the given sensor.
func Failed(sensorID int, ts time.Time, err error) Sample {
	return Sample{SensorID: sensorID, Timestamp: ts, Err: err}
}

// Sweep is one round of sampling across all enumerated sensors, in
// enumeration order.
type Sweep struct {
	Timestamp time.Time
	Samples   []Sample
}

// OK reports whether every sample in the sweep succeeded. Partial results
// are still present when it returns false.
func (s Sweep) OK() bool {
	for _, smp := range s.Samples {
		if !smp.OK() {
			return false
		}
	}
	return true
}

// Decode parses a raw sample payload (comma-separated floats: x,y,z followed
// by the orientation fields of the given mode) into a position and
// orientation.
func Decode(mode OutputMode, payload []byte) (Vec3, Orientation, error) {
	want := mode.Fields()
	if want == 0 {
		return Vec3{}, nil, fmt.Errorf("output mode not configured")
	}

	parts := strings.Split(strings.TrimSpace(string(payload)), ",")
	if len(parts) != 3+want {
		return Vec3{}, nil, fmt.Errorf("invalid payload: expected %d values for %s, got %d", 3+want, mode, len(parts))
	}

	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Vec3{}, nil, fmt.Errorf("invalid payload field %d: %w", i, err)
		}
		vals[i] = v
	}

	pos := Vec3{X: vals[0], Y: vals[1], Z: vals[2]}
	o := vals[3:]

	switch mode {
	case ModeQuaternion:
		return pos, Quaternion{o[0], o[1], o[2], o[3]}, nil
	case ModeEuler:
		return pos, Euler{Azimuth: o[0], Elevation: o[1], Roll: o[2]}, nil
	case ModeMatrix:
		var m Matrix3
		copy(m[:], o)
		return pos, m, nil
	}
	return Vec3{}, nil, fmt.Errorf("unknown output mode %d", mode)
}

// Encode renders a position and orientation into the wire payload format
// consumed by Decode. Used by simulated transports.
func Encode(pos Vec3, o Orientation) []byte {
	var sb strings.Builder
	appendF := func(v float64) {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(v, 'f', 6, 64))
	}
	appendF(pos.X)
	appendF(pos.Y)
	appendF(pos.Z)
	switch v := o.(type) {
	case Quaternion:
		for _, f := range v {
			appendF(f)
		}
	case Euler:
		appendF(v.Azimuth)
		appendF(v.Elevation)
		appendF(v.Roll)
	case Matrix3:
		for _, f := range v {
			appendF(f)
		}
	}
	return []byte(sb.String())
}
