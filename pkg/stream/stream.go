// Package stream provides post-processing stages for sweep streams. Fan-out
// and decimation happen here, after the single sampling loop, rather than by
// sharing the transport handle.
package stream

import (
	"github.com/birdlab/gotrak/pkg/pose"
)

// Stage is a function type that transforms one sweep stream into another.
type Stage func(in <-chan pose.Sweep) <-chan pose.Sweep

// Chain composes stages left to right.
func Chain(stages ...Stage) Stage {
	return func(in <-chan pose.Sweep) <-chan pose.Sweep {
		out := in
		for _, s := range stages {
			out = s(out)
		}
		return out
	}
}
