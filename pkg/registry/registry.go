// Package registry maintains per-sensor configuration state and translates
// raw transport reads into typed pose samples.
package registry

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/birdlab/gotrak/pkg/pose"
	"github.com/birdlab/gotrak/pkg/trak"
)

// Descriptor is the per-sensor configuration record. Mutated only through
// the registry's setters.
type Descriptor struct {
	ID         int
	Attached   bool
	Mode       pose.OutputMode
	Hemisphere pose.Hemisphere
}

// Registry tracks configuration for each enumerated sensor and produces pose
// samples. It shares the single-owner discipline of the transport it wraps:
// one caller at a time.
type Registry struct {
	tr          trak.Transport
	descriptors []Descriptor
	rate        float64
	maxRange    pose.MaxRange
}

// New enumerates the transport's sensors and builds a registry over them.
// The transport must already be open.
func New(tr trak.Transport) (*Registry, error) {
	if !tr.Connected() {
		return nil, trak.ErrNotConnected
	}

	n := tr.NumSensors()
	descriptors := make([]Descriptor, n)
	for i := range descriptors {
		descriptors[i] = Descriptor{
			ID:       i,
			Attached: tr.SensorAttached(i),
		}
	}

	return &Registry{
		tr:          tr,
		descriptors: descriptors,
	}, nil
}

// Descriptors returns a copy of the enumerated sensor records, in
// enumeration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// NumSensors returns the enumerated sensor count.
func (r *Registry) NumSensors() int {
	return len(r.descriptors)
}

// TransmitterAttached reports whether the field transmitter is present.
func (r *Registry) TransmitterAttached() bool {
	return r.tr.TransmitterAttached()
}

// SetOutputMode configures the orientation representation for one sensor.
// The descriptor is updated only after the device accepts the change.
func (r *Registry) SetOutputMode(id int, mode pose.OutputMode) error {
	if err := r.checkSensor(id); err != nil {
		return err
	}
	if mode.Fields() == 0 {
		return fmt.Errorf("%w: output mode %d", trak.ErrInvalidParameter, mode)
	}
	if err := r.tr.SetOutputMode(id, mode); err != nil {
		return err
	}
	r.descriptors[id].Mode = mode
	return nil
}

// SetHemisphere configures the expected hemisphere for one sensor.
func (r *Registry) SetHemisphere(id int, h pose.Hemisphere) error {
	if err := r.checkSensor(id); err != nil {
		return err
	}
	if h != pose.HemisphereFront && h != pose.HemisphereRear {
		return fmt.Errorf("%w: hemisphere %d", trak.ErrInvalidParameter, h)
	}
	if err := r.tr.SetHemisphere(id, h); err != nil {
		return err
	}
	r.descriptors[id].Hemisphere = h
	return nil
}

// SetMeasurementRate validates and applies the device-internal sampling
// rate. A rejected or invalid rate leaves the previous one in place.
func (r *Registry) SetMeasurementRate(hz float64) error {
	if hz <= 0 {
		return fmt.Errorf("%w: measurement rate %.3f Hz", trak.ErrInvalidParameter, hz)
	}
	if err := r.tr.SetMeasurementRate(hz); err != nil {
		return err
	}
	r.rate = hz
	return nil
}

// MeasurementRate returns the last successfully applied rate, or zero when
// none has been applied.
func (r *Registry) MeasurementRate() float64 {
	return r.rate
}

// SetMaxRange validates and applies the device-wide maximum range.
func (r *Registry) SetMaxRange(mr pose.MaxRange) error {
	if mr != pose.Range36In && mr != pose.Range72In {
		return fmt.Errorf("%w: max range %d", trak.ErrInvalidParameter, mr)
	}
	if err := r.tr.SetMaxRange(mr); err != nil {
		return err
	}
	r.maxRange = mr
	return nil
}

// MaxRange returns the last successfully applied range.
func (r *Registry) MaxRange() pose.MaxRange {
	return r.maxRange
}

// Sample polls one sensor and decodes the result according to its
// configured output mode. Transport failures are captured in the returned
// sample rather than propagated, so one bad sensor never aborts a sweep.
// An out-of-range id is a programmer error and is returned as such.
func (r *Registry) Sample(id int) (pose.Sample, error) {
	if err := r.checkSensor(id); err != nil {
		return pose.Sample{}, err
	}
	return r.sample(id), nil
}

func (r *Registry) sample(id int) pose.Sample {
	ts := time.Now()
	mode := r.descriptors[id].Mode
	if mode == pose.ModeUnset {
		return pose.Failed(id, ts, fmt.Errorf("%w: output mode not configured", trak.ErrInvalidParameter))
	}

	raw, err := r.tr.ReadRaw(id)
	if err != nil {
		log.Debugf("sensor %d read failed: %v", id, err)
		return pose.Failed(id, ts, err)
	}

	pos, orient, err := pose.Decode(mode, raw)
	if err != nil {
		log.Debugf("sensor %d decode failed: %v", id, err)
		return pose.Failed(id, ts, err)
	}

	return pose.Sample{
		SensorID:    id,
		Timestamp:   ts,
		Position:    pos,
		Orientation: orient,
	}
}

// SampleAll performs one sweep: one sample per enumerated sensor, in
// enumeration order. Partial results are always returned; the sweep's OK is
// the conjunction of its samples'.
func (r *Registry) SampleAll() pose.Sweep {
	sweep := pose.Sweep{
		Timestamp: time.Now(),
		Samples:   make([]pose.Sample, 0, len(r.descriptors)),
	}
	for i := range r.descriptors {
		sweep.Samples = append(sweep.Samples, r.sample(i))
	}
	return sweep
}

func (r *Registry) checkSensor(id int) error {
	if id < 0 || id >= len(r.descriptors) {
		return fmt.Errorf("%w: %d (have %d)", trak.ErrUnknownSensor, id, len(r.descriptors))
	}
	return nil
}
