package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sonified/cymatics-ifft-simulation/internal/engine"
)

type renderFlags struct {
	frames int
	out    string
	every  int
	tps    int
}

func newRenderCommand(st *state) *cobra.Command {
	var rf renderFlags
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Simulate without a window and write PNG frames",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rf.frames < 1 {
				return fmt.Errorf("--frames must be at least 1, got %d", rf.frames)
			}
			tps := rf.tps
			if tps <= 0 {
				tps = st.cfg.Runtime.TPS
			}

			s, err := openSession(st, false)
			if err != nil {
				return err
			}
			defer s.Close()

			sink, err := engine.NewPNGSink(st.logger, rf.out, rf.every)
			if err != nil {
				return err
			}
			runner, err := engine.NewRunner(st.logger, s.pipeline, s.producer, sink, engine.RunnerConfig{
				Frames:        rf.frames,
				TPS:           tps,
				StatsInterval: st.cfg.Runtime.StatsInterval,
			})
			if err != nil {
				return err
			}
			if err := runner.Run(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d frames to %s\n", sink.Written(), rf.out)
			return err
		},
	}
	f := cmd.Flags()
	f.IntVar(&rf.frames, "frames", 120, "number of frames to simulate")
	f.StringVar(&rf.out, "out", "frames", "output directory for PNG frames")
	f.IntVar(&rf.every, "every", 1, "write every Nth frame")
	f.IntVar(&rf.tps, "tps", 0, "tick rate (default: runtime.tps)")
	return cmd
}
