package trak

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/birdlab/gotrak/pkg/config"
	"github.com/birdlab/gotrak/pkg/pose"
)

// Mock simulates a tracker for testing and development. Each simulated
// sensor orbits the transmitter on a circle at a sensor-specific height and
// phase, so successive reads produce a smooth, recognizable trajectory.
type Mock struct {
	cfg *config.MockConfig

	mu        sync.Mutex
	connected bool
	startTime time.Time

	rate     float64
	maxRange pose.MaxRange

	modes       []pose.OutputMode
	hemispheres []pose.Hemisphere

	// Failure injection for tests.
	readErrs  map[int]error
	failAfter int // After this many successful reads every read times out; <0 disables
	reads     int
}

// NewMock creates a new simulated transport.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}
	return &Mock{
		cfg:       cfg,
		rate:      100.0,
		readErrs:  make(map[int]error),
		failAfter: -1,
	}
}

// Open simulates opening the device.
func (m *Mock) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.connected = true
	m.startTime = time.Now()
	m.modes = make([]pose.OutputMode, m.cfg.Sensors)
	m.hemispheres = make([]pose.Hemisphere, m.cfg.Sensors)
	m.reads = 0
	return nil
}

// Close stops the simulated device. Idempotent.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}
	m.connected = false
	return nil
}

// Connected returns whether the transport is currently open.
func (m *Mock) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// NumSensors returns the simulated sensor count.
func (m *Mock) NumSensors() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return 0
	}
	return m.cfg.Sensors
}

// SensorAttached reports attachment for a simulated sensor. All simulated
// sensors are attached.
func (m *Mock) SensorAttached(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected && id >= 0 && id < m.cfg.Sensors
}

// TransmitterAttached reports whether a transmitter is simulated.
func (m *Mock) TransmitterAttached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected && m.cfg.Transmitter
}

// SetMeasurementRate accepts rates inside the device range and rejects the
// rest, like the real hardware.
func (m *Mock) SetMeasurementRate(hz float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	if hz < config.MinMeasurementRate || hz > config.MaxMeasurementRate {
		return fmt.Errorf("%w: rate %.1f Hz outside %.0f-%.0f", ErrConfigRejected,
			hz, config.MinMeasurementRate, config.MaxMeasurementRate)
	}
	m.rate = hz
	return nil
}

// MeasurementRate returns the currently applied device rate.
func (m *Mock) MeasurementRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

// SetMaxRange stores the device-wide range.
func (m *Mock) SetMaxRange(r pose.MaxRange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	if r != pose.Range36In && r != pose.Range72In {
		return fmt.Errorf("%w: range %d", ErrConfigRejected, r)
	}
	m.maxRange = r
	return nil
}

// SetOutputMode stores the orientation representation for one sensor.
func (m *Mock) SetOutputMode(id int, mode pose.OutputMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSensorLocked(id); err != nil {
		return err
	}
	if mode.Fields() == 0 {
		return fmt.Errorf("%w: output mode %d", ErrConfigRejected, mode)
	}
	m.modes[id] = mode
	return nil
}

// SetHemisphere stores the hemisphere for one sensor.
func (m *Mock) SetHemisphere(id int, h pose.Hemisphere) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSensorLocked(id); err != nil {
		return err
	}
	m.hemispheres[id] = h
	return nil
}

// ReadRaw produces one simulated sample payload for the sensor, encoded in
// the sensor's configured output mode.
func (m *Mock) ReadRaw(id int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSensorLocked(id); err != nil {
		return nil, err
	}
	if err, ok := m.readErrs[id]; ok {
		return nil, err
	}
	if m.failAfter >= 0 && m.reads >= m.failAfter {
		return nil, fmt.Errorf("%w: simulated device unresponsive", ErrReadTimeout)
	}
	mode := m.modes[id]
	if mode == pose.ModeUnset {
		return nil, fmt.Errorf("%w: output mode not configured for sensor %d", ErrConfigRejected, id)
	}

	m.reads++
	pos, orient := m.simulate(id, mode, time.Since(m.startTime))
	return pose.Encode(pos, orient), nil
}

// FailSensor makes every read of one sensor fail with the given error.
// A nil error restores normal reads.
func (m *Mock) FailSensor(id int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.readErrs, id)
		return
	}
	m.readErrs[id] = err
}

// FailAllReadsAfter makes every read time out once n further successful
// reads have completed. n=0 fails immediately; a negative n disables.
func (m *Mock) FailAllReadsAfter(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 0 {
		m.failAfter = -1
		return
	}
	m.failAfter = m.reads + n
}

func (m *Mock) checkSensorLocked(id int) error {
	if !m.connected {
		return ErrNotConnected
	}
	if id < 0 || id >= m.cfg.Sensors {
		return fmt.Errorf("%w: %d (have %d)", ErrUnknownSensor, id, m.cfg.Sensors)
	}
	return nil
}

// simulate computes the sensor's pose at the given elapsed time: a circular
// orbit around the transmitter, rotating about the vertical axis so the
// sensor always faces the orbit tangent. Callers hold m.mu.
func (m *Mock) simulate(id int, mode pose.OutputMode, elapsed time.Duration) (pose.Vec3, pose.Orientation) {
	period := m.cfg.OrbitPeriod.Seconds()
	if period <= 0 {
		period = 20.0
	}
	phase := float64(id) * 2 * math.Pi / float64(max(m.cfg.Sensors, 1))
	angle := 2*math.Pi*elapsed.Seconds()/period + phase

	// Deterministic pseudo-noise, same trick as a noisy ADC line.
	noise := (math.Sin(float64(elapsed.Nanoseconds())*0.001) +
		math.Cos(float64(elapsed.Nanoseconds())*0.0013)) *
		m.cfg.NoiseLevel * 0.5

	pos := pose.Vec3{
		X: m.cfg.Radius*math.Cos(angle) + noise,
		Y: m.cfg.Radius*math.Sin(angle) + noise,
		Z: 1.0 + float64(id)*0.5,
	}

	switch mode {
	case pose.ModeEuler:
		return pos, pose.Euler{
			Azimuth:   math.Mod(angle*180/math.Pi, 360),
			Elevation: 0,
			Roll:      0,
		}
	case pose.ModeMatrix:
		c, s := math.Cos(angle), math.Sin(angle)
		return pos, pose.Matrix3{
			c, -s, 0,
			s, c, 0,
			0, 0, 1,
		}
	default:
		half := angle / 2
		return pos, pose.Quaternion{math.Cos(half), 0, 0, math.Sin(half)}
	}
}
