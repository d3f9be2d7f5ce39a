package cmds

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/kraken-agui/pkg/app"
	"github.com/go-go-golems/kraken-agui/pkg/server"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the AG-UI run endpoint, tool discovery and direct tool invocation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd, modeFlags, map[string]string{"addr": "server.addr", "tagged": "stream.tagged"})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			metrics := server.NewMetrics()
			a, err := app.Build(s,
				app.WithToolObserver(metrics.ObserveTool),
				app.WithRunObserver(metrics.ObserveRun),
			)
			if err != nil {
				return err
			}

			opts := []server.Option{server.WithMetrics(metrics)}
			if s.Events.Tap {
				sink, stopTap, err := startEventTap(ctx, viper.GetBool("verbose"))
				if err != nil {
					return err
				}
				defer stopTap()
				opts = append(opts, server.WithEventSinks(sink))
			}

			return server.New(a, opts...).ListenAndServe(ctx, s.Server.Addr)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default :3001)")
	cmd.Flags().Bool("tagged", false, "Always name SSE events with an event: line")
	addModeFlags(cmd)
	return cmd
}
