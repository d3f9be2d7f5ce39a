package cmds

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/kraken-agui/pkg/app"
	"github.com/go-go-golems/kraken-agui/pkg/conversation"
	"github.com/go-go-golems/kraken-agui/pkg/events"
	"github.com/go-go-golems/kraken-agui/pkg/run"
	"github.com/go-go-golems/kraken-agui/pkg/stream"
)

func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <utterance>",
		Short: "Run the assistant once in-process and print the event stream",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd, modeFlags)
			if err != nil {
				return err
			}
			a, err := app.Build(s)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if s.Events.Tap {
				sink, stopTap, err := startEventTap(ctx, viper.GetBool("verbose"))
				if err != nil {
					return err
				}
				defer stopTap()
				ctx = events.WithEventSinks(ctx, sink)
			}

			tagged, _ := cmd.Flags().GetBool("tagged")
			threadID, _ := cmd.Flags().GetString("thread-id")
			em := stream.NewEmitter(os.Stdout,
				stream.WithTagged(tagged),
				stream.WithValidation(s.Stream.Validate),
				stream.WithBuffer(s.Stream.Buffer),
			)

			r := a.Coordinator.Run(ctx, &run.Input{
				ThreadID: threadID,
				Messages: conversation.Conversation{conversation.NewUserMessage(strings.Join(args, " "))},
			}, em)
			if err := em.Close(); err != nil {
				return errors.Wrap(err, "could not write events")
			}
			if r.Status == run.StatusErrored {
				return errors.Errorf("run %s failed: %s", r.RunID, run.ErrorMessage(r.Err))
			}
			return nil
		},
	}
	cmd.Flags().Bool("tagged", false, "Name every frame with an event: line")
	cmd.Flags().String("thread-id", "", "Thread id to report (default: random)")
	addModeFlags(cmd)
	return cmd
}
