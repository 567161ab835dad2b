package stream

import (
	"github.com/birdlab/gotrak/pkg/pose"
)

// NewDownsampler creates a stage that forwards every Nth sweep, starting
// with the first. Useful for display-rate decimation when the polling
// cadence is faster than the consumer needs.
func NewDownsampler(every int, bufSize int) Stage {
	if every <= 1 {
		return func(in <-chan pose.Sweep) <-chan pose.Sweep { return in }
	}
	if bufSize <= 0 {
		bufSize = 16
	}

	return func(in <-chan pose.Sweep) <-chan pose.Sweep {
		out := make(chan pose.Sweep, bufSize)

		go func() {
			defer close(out)

			count := 0
			for sweep := range in {
				if count%every == 0 {
					out <- sweep
				}
				count++
			}
		}()

		return out
	}
}
