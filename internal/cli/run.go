package cli

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Sonified/cymatics-ifft-simulation/internal/app"
)

func newRunCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Open the interactive window",
		Long: `Open a window showing the plate. Keys: V cycles the visualization,
R resets the field, P pauses, +/- scale the force, Tab toggles the overlay.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(st, true)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			var g errgroup.Group
			g.Go(func() error { return s.producer.Run(ctx) })
			g.Go(func() error { return logStats(ctx, s.pipeline, st.cfg.Runtime.StatsInterval) })

			game := app.New(ctx, st.logger, s.pipeline, app.Options{
				TPS:         st.cfg.Runtime.TPS,
				WindowScale: st.cfg.Runtime.WindowScale,
				Debug:       st.cfg.Runtime.Debug,
			})
			runErr := app.Run(game)
			cancel()
			if err := g.Wait(); runErr == nil {
				runErr = err
			}
			s.pipeline.LogStats()
			return runErr
		},
	}
}
