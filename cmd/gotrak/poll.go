package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/birdlab/gotrak/pkg/pose"
	"github.com/birdlab/gotrak/pkg/session"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "open a session and print one sweep",
	Example: `  gotrak poll --mock
  gotrak poll -p /dev/ttyUSB0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		sess, err := session.Open(cfg, newTransport(cmd, cfg))
		if err != nil {
			return err
		}
		defer func() { _ = sess.Close() }()

		if err := sess.Configure(); err != nil {
			return err
		}

		reg := sess.Registry()
		fmt.Printf("sensors: %d, transmitter attached: %v\n", reg.NumSensors(), reg.TransmitterAttached())
		for _, d := range reg.Descriptors() {
			fmt.Printf("sensor %d: attached=%v mode=%s hemisphere=%s\n", d.ID, d.Attached, d.Mode, d.Hemisphere)
		}

		sweep, err := sess.PollOnce()
		if err != nil {
			return err
		}
		printSweep(sweep)
		return nil
	},
}

func printSweep(sweep pose.Sweep) {
	for _, s := range sweep.Samples {
		if !s.OK() {
			fmt.Printf("sensor %d: read failed: %v\n", s.SensorID, s.Err)
			continue
		}
		fmt.Printf("sensor %d: pos=(%8.4f, %8.4f, %8.4f) %s\n",
			s.SensorID, s.Position.X, s.Position.Y, s.Position.Z, formatOrientation(s.Orientation))
	}
}

func formatOrientation(o pose.Orientation) string {
	switch v := o.(type) {
	case pose.Quaternion:
		return fmt.Sprintf("quat=(%.4f, %.4f, %.4f, %.4f)", v[0], v[1], v[2], v[3])
	case pose.Euler:
		return fmt.Sprintf("azimuth=%.2f elevation=%.2f roll=%.2f", v.Azimuth, v.Elevation, v.Roll)
	case pose.Matrix3:
		return fmt.Sprintf("matrix=[%.3f %.3f %.3f; %.3f %.3f %.3f; %.3f %.3f %.3f]",
			v[0], v[1], v[2], v[3], v[4], v[5], v[6], v[7], v[8])
	default:
		return "no orientation"
	}
}
