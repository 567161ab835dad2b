package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/birdlab/gotrak/pkg/pose"
	"github.com/birdlab/gotrak/pkg/session"
	"github.com/birdlab/gotrak/pkg/stream"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "stream sweeps continuously until interrupted",
	Long: `stream opens a session and polls all sensors at the configured
cadence, printing each sweep. Stop with Ctrl+C, or bound the run with
--duration. --smooth applies a moving average to positions and --every
decimates the printed output.`,
	Example: `  gotrak stream --mock
  gotrak stream --mock --duration 5s --smooth 4 --every 10`,
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

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if d, _ := cmd.Flags().GetDuration("duration"); d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}

		smooth, _ := cmd.Flags().GetInt("smooth")
		every, _ := cmd.Flags().GetInt("every")

		// The session loop feeds the stage pipeline; the printer drains it.
		sweeps := make(chan pose.Sweep, 16)
		pipeline := stream.Chain(
			stream.NewSmoother(smooth, 16),
			stream.NewDownsampler(every, 16),
		)(sweeps)

		var wg sync.WaitGroup
		wg.Add(1)
		count := 0
		start := time.Now()
		go func() {
			defer wg.Done()
			for sweep := range pipeline {
				count++
				fmt.Printf("\nsweep %d (t=%.2fs, ok=%v):\n", count, sweep.Timestamp.Sub(start).Seconds(), sweep.OK())
				printSweep(sweep)
			}
		}()

		err = sess.Stream(ctx, func(sweep pose.Sweep) error {
			select {
			case sweeps <- sweep:
			default:
				log.Warnln("sweep channel full, dropping sweep")
			}
			return nil
		})
		close(sweeps)
		wg.Wait()

		log.Infof("streamed for %v, printed %d sweeps", time.Since(start).Round(time.Millisecond), count)
		return err
	},
}
