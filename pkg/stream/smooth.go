package stream

import (
	"github.com/birdlab/gotrak/pkg/pose"
)

// NewSmoother creates a stage that replaces each successful sample's
// position with the moving average of that sensor's last windowSize
// successful positions. Orientation passes through untouched; failed samples
// pass through untouched and do not enter the window. This reduces jitter
// from field distortion without adding latency to the failure signal.
func NewSmoother(windowSize int, bufSize int) Stage {
	if windowSize <= 0 {
		windowSize = 1
	}
	if bufSize <= 0 {
		bufSize = 16
	}

	return func(in <-chan pose.Sweep) <-chan pose.Sweep {
		out := make(chan pose.Sweep, bufSize)

		go func() {
			defer close(out)

			windows := make(map[int][]pose.Vec3)
			for sweep := range in {
				smoothed := pose.Sweep{
					Timestamp: sweep.Timestamp,
					Samples:   make([]pose.Sample, len(sweep.Samples)),
				}
				for i, smp := range sweep.Samples {
					if !smp.OK() {
						smoothed.Samples[i] = smp
						continue
					}

					w := append(windows[smp.SensorID], smp.Position)
					if len(w) > windowSize {
						w = w[1:]
					}
					windows[smp.SensorID] = w

					smp.Position = average(w)
					smoothed.Samples[i] = smp
				}
				out <- smoothed
			}
		}()

		return out
	}
}

func average(positions []pose.Vec3) pose.Vec3 {
	var sum pose.Vec3
	for _, p := range positions {
		sum.X += p.X
		sum.Y += p.Y
		sum.Z += p.Z
	}
	n := float64(len(positions))
	return pose.Vec3{X: sum.X / n, Y: sum.Y / n, Z: sum.Z / n}
}
