package stream

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdlab/gotrak/pkg/pose"
)

func sweepAt(ts time.Time, positions ...pose.Vec3) pose.Sweep {
	s := pose.Sweep{Timestamp: ts}
	for i, p := range positions {
		s.Samples = append(s.Samples, pose.Sample{
			SensorID:    i,
			Timestamp:   ts,
			Position:    p,
			Orientation: pose.Quaternion{1, 0, 0, 0},
		})
	}
	return s
}

func drain(ch <-chan pose.Sweep) []pose.Sweep {
	var out []pose.Sweep
	for s := range ch {
		out = append(out, s)
	}
	return out
}

func TestSmoother_MovingAverage(t *testing.T) {
	in := make(chan pose.Sweep, 4)
	out := NewSmoother(2, 4)(in)

	now := time.Now()
	in <- sweepAt(now, pose.Vec3{X: 0})
	in <- sweepAt(now, pose.Vec3{X: 2})
	in <- sweepAt(now, pose.Vec3{X: 4})
	close(in)

	got := drain(out)
	require.Len(t, got, 3)
	assert.InDelta(t, 0.0, got[0].Samples[0].Position.X, 1e-9, "first sample averages only itself")
	assert.InDelta(t, 1.0, got[1].Samples[0].Position.X, 1e-9, "(0+2)/2")
	assert.InDelta(t, 3.0, got[2].Samples[0].Position.X, 1e-9, "window slides to (2+4)/2")
}

func TestSmoother_PerSensorWindows(t *testing.T) {
	in := make(chan pose.Sweep, 2)
	out := NewSmoother(2, 2)(in)

	now := time.Now()
	in <- sweepAt(now, pose.Vec3{X: 0}, pose.Vec3{X: 100})
	in <- sweepAt(now, pose.Vec3{X: 2}, pose.Vec3{X: 200})
	close(in)

	got := drain(out)
	require.Len(t, got, 2)
	assert.InDelta(t, 1.0, got[1].Samples[0].Position.X, 1e-9)
	assert.InDelta(t, 150.0, got[1].Samples[1].Position.X, 1e-9, "sensors average independently")
}

func TestSmoother_FailedSamplesPassThrough(t *testing.T) {
	in := make(chan pose.Sweep, 3)
	out := NewSmoother(3, 3)(in)

	now := time.Now()
	in <- sweepAt(now, pose.Vec3{X: 2})
	failed := pose.Sweep{Timestamp: now, Samples: []pose.Sample{
		pose.Failed(0, now, errors.New("timeout")),
	}}
	in <- failed
	in <- sweepAt(now, pose.Vec3{X: 4})
	close(in)

	got := drain(out)
	require.Len(t, got, 3)
	assert.False(t, got[1].Samples[0].OK(), "failure marker survives smoothing")
	// The failed sample never entered the window: (2+4)/2, not (2+0+4)/3.
	assert.InDelta(t, 3.0, got[2].Samples[0].Position.X, 1e-9)
}

func TestSmoother_WindowOfOneIsIdentity(t *testing.T) {
	in := make(chan pose.Sweep, 2)
	out := NewSmoother(0, 2)(in)

	now := time.Now()
	in <- sweepAt(now, pose.Vec3{X: 5})
	in <- sweepAt(now, pose.Vec3{X: 7})
	close(in)

	got := drain(out)
	require.Len(t, got, 2)
	assert.InDelta(t, 5.0, got[0].Samples[0].Position.X, 1e-9)
	assert.InDelta(t, 7.0, got[1].Samples[0].Position.X, 1e-9)
}

func TestDownsampler(t *testing.T) {
	in := make(chan pose.Sweep, 7)
	out := NewDownsampler(3, 7)(in)

	now := time.Now()
	for i := 0; i < 7; i++ {
		in <- sweepAt(now.Add(time.Duration(i)*time.Millisecond), pose.Vec3{X: float64(i)})
	}
	close(in)

	got := drain(out)
	require.Len(t, got, 3, "sweeps 0, 3 and 6")
	assert.InDelta(t, 0.0, got[0].Samples[0].Position.X, 1e-9)
	assert.InDelta(t, 3.0, got[1].Samples[0].Position.X, 1e-9)
	assert.InDelta(t, 6.0, got[2].Samples[0].Position.X, 1e-9)
}

func TestDownsampler_EveryOneIsPassthrough(t *testing.T) {
	in := make(chan pose.Sweep, 2)
	out := NewDownsampler(1, 2)(in)

	now := time.Now()
	in <- sweepAt(now, pose.Vec3{})
	in <- sweepAt(now, pose.Vec3{})
	close(in)

	assert.Len(t, drain(out), 2)
}

func TestChain(t *testing.T) {
	in := make(chan pose.Sweep, 6)
	out := Chain(
		NewSmoother(2, 6),
		NewDownsampler(2, 6),
	)(in)

	now := time.Now()
	for i := 0; i < 6; i++ {
		in <- sweepAt(now, pose.Vec3{X: float64(i * 2)})
	}
	close(in)

	got := drain(out)
	require.Len(t, got, 3)
	// Smoothing runs before decimation: sweep 2 carries avg(2,4)=3.
	assert.InDelta(t, 3.0, got[1].Samples[0].Position.X, 1e-9)
}