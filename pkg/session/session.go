// Package session orchestrates a tracker sampling session end to end:
// open and enumerate, configure every sensor, run the polling loop at the
// configured cadence, and shut down cleanly.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"

	"github.com/birdlab/gotrak/pkg/config"
	"github.com/birdlab/gotrak/pkg/pose"
	"github.com/birdlab/gotrak/pkg/registry"
	"github.com/birdlab/gotrak/pkg/trak"
)

// State is the session lifecycle state.
type State int

const (
	// StateUninitialized is the zero state before Open succeeds.
	StateUninitialized State = iota
	// StateConfiguring means the transport is open and enumerated but the
	// sampling configuration has not been fully applied yet.
	StateConfiguring
	// StateSampling means the session is ready to poll or stream.
	StateSampling
	// StateStopped is terminal: the handle has been released.
	StateStopped
	// StateFailed is terminal: open or enumeration failed.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfiguring:
		return "configuring"
	case StateSampling:
		return "sampling"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrNotSampling is returned when polling or streaming is attempted outside
// the sampling state.
var ErrNotSampling = errors.New("session is not sampling")

// ErrStreaming is returned when a second streaming loop is started on a
// session that already has one.
var ErrStreaming = errors.New("session is already streaming")

// Option configures a Session at open time.
type Option func(*Session)

// WithClock substitutes the wall clock, letting tests drive the streaming
// ticker deterministically.
func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clk = c }
}

// Session is the single logical owner of one transport handle. All methods
// must be called from one goroutine; the immutable sweeps handed out are the
// only values that may cross threads.
type Session struct {
	cfg *config.Config
	tr  trak.Transport
	reg *registry.Registry
	clk clock.Clock

	mu        sync.Mutex
	state     State
	streaming bool
	closeOnce sync.Once
}

// Open opens the transport, enumerates its sensors and returns a session in
// the configuring state. On open failure, or when zero sensors are
// enumerated, the handle is released and the error carries the failed state.
func Open(cfg *config.Config, tr trak.Transport, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", trak.ErrInvalidParameter, err)
	}

	s := &Session{
		cfg:   cfg,
		tr:    tr,
		clk:   clock.New(),
		state: StateUninitialized,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := tr.Open(); err != nil {
		s.state = StateFailed
		return nil, err
	}

	reg, err := registry.New(tr)
	if err != nil {
		s.fail()
		return nil, err
	}
	if reg.NumSensors() == 0 {
		s.fail()
		return nil, fmt.Errorf("%w: no sensors enumerated", trak.ErrDeviceUnavailable)
	}

	s.reg = reg
	s.state = StateConfiguring
	log.Infof("session open: %d sensors, transmitter=%v", reg.NumSensors(), reg.TransmitterAttached())
	return s, nil
}

// fail releases the handle and parks the session in the terminal failed
// state. Used only during Open.
func (s *Session) fail() {
	s.closeOnce.Do(func() {
		if err := s.tr.Close(); err != nil {
			log.Errorf("error releasing transport: %v", err)
		}
	})
	s.state = StateFailed
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Registry exposes the sensor registry for per-sensor queries.
func (s *Session) Registry() *registry.Registry {
	return s.reg
}

// Configure applies the configured measurement rate, range and per-sensor
// output modes and hemispheres. On full success the session transitions to
// sampling; on any failure the state is left unchanged so the caller may
// correct the configuration and retry.
func (s *Session) Configure() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConfiguring && s.state != StateSampling {
		return fmt.Errorf("cannot configure in state %s", s.state)
	}

	if err := s.reg.SetMeasurementRate(s.cfg.Session.MeasurementRateHz); err != nil {
		return fmt.Errorf("failed to set measurement rate: %w", err)
	}
	mr, err := s.cfg.ParsedMaxRange()
	if err != nil {
		return fmt.Errorf("%w: %v", trak.ErrInvalidParameter, err)
	}
	if err := s.reg.SetMaxRange(mr); err != nil {
		return fmt.Errorf("failed to set max range: %w", err)
	}

	for _, d := range s.reg.Descriptors() {
		mode, err := s.cfg.SensorMode(d.ID)
		if err != nil {
			return fmt.Errorf("%w: sensor %d: %v", trak.ErrInvalidParameter, d.ID, err)
		}
		if err := s.reg.SetOutputMode(d.ID, mode); err != nil {
			return fmt.Errorf("failed to set sensor %d output mode: %w", d.ID, err)
		}
		hemi, err := s.cfg.SensorHemisphere(d.ID)
		if err != nil {
			return fmt.Errorf("%w: sensor %d: %v", trak.ErrInvalidParameter, d.ID, err)
		}
		if err := s.reg.SetHemisphere(d.ID, hemi); err != nil {
			return fmt.Errorf("failed to set sensor %d hemisphere: %w", d.ID, err)
		}
	}

	s.state = StateSampling
	log.Debugf("session configured: rate=%.1f Hz, range=%sin", s.cfg.Session.MeasurementRateHz, mr)
	return nil
}

// ConfigureSensor reconfigures a single sensor while the session is open.
func (s *Session) ConfigureSensor(id int, mode pose.OutputMode, hemi pose.Hemisphere) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConfiguring && s.state != StateSampling {
		return fmt.Errorf("cannot configure in state %s", s.state)
	}
	if err := s.reg.SetOutputMode(id, mode); err != nil {
		return err
	}
	return s.reg.SetHemisphere(id, hemi)
}

// PollOnce performs one sweep over all sensors. Per-sensor failures are
// reported inline in the sweep, never as the returned error.
func (s *Session) PollOnce() (pose.Sweep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSampling {
		return pose.Sweep{}, fmt.Errorf("%w: state %s", ErrNotSampling, s.state)
	}
	return s.reg.SampleAll(), nil
}

// Stream runs the polling loop at the configured cadence, handing each
// complete sweep to fn. Cancellation is honored only at tick boundaries, so
// no partial sweep is ever delivered. The loop ends when:
//
//   - ctx is cancelled: the session stops cleanly and Stream returns nil;
//   - fn returns an error: the session stops and Stream returns that error;
//   - every sensor times out for retry-budget consecutive sweeps: the
//     session stops and Stream returns an ErrReadTimeout-wrapped error.
//
// In every case the handle is released exactly once.
func (s *Session) Stream(ctx context.Context, fn func(pose.Sweep) error) error {
	s.mu.Lock()
	if s.state != StateSampling {
		s.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrNotSampling, s.state)
	}
	if s.streaming {
		s.mu.Unlock()
		return ErrStreaming
	}
	s.streaming = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.streaming = false
		s.mu.Unlock()
	}()

	ticker := s.clk.Ticker(s.cfg.Session.PollInterval)
	defer ticker.Stop()

	budget := s.cfg.Session.RetryBudget
	consecutiveTimeouts := 0

	for {
		select {
		case <-ctx.Done():
			log.Infof("streaming cancelled")
			return s.Close()
		case <-ticker.C:
		}

		sweep := s.reg.SampleAll()

		if allTimedOut(sweep) {
			consecutiveTimeouts++
		} else {
			consecutiveTimeouts = 0
		}

		// The sweep is complete even when every read failed; deliver it
		// before deciding whether the failure is fatal.
		if err := fn(sweep); err != nil {
			_ = s.Close()
			return err
		}

		if consecutiveTimeouts >= budget {
			log.Errorf("device unresponsive for %d consecutive sweeps, stopping", consecutiveTimeouts)
			_ = s.Close()
			return fmt.Errorf("%w: %d consecutive sweeps lost", trak.ErrReadTimeout, consecutiveTimeouts)
		}
	}
}

// Close stops the session and releases the transport handle. Idempotent;
// repeated calls are no-ops.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.tr.Close()
	})

	s.mu.Lock()
	if s.state != StateFailed {
		s.state = StateStopped
	}
	s.mu.Unlock()
	return err
}

// allTimedOut reports whether every sample in the sweep failed with a read
// timeout. Sweeps with mixed failures or any success do not count against
// the retry budget.
func allTimedOut(sweep pose.Sweep) bool {
	if len(sweep.Samples) == 0 {
		return false
	}
	for _, smp := range sweep.Samples {
		if !errors.Is(smp.Err, trak.ErrReadTimeout) {
			return false
		}
	}
	return true
}
