package cmds

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/kraken-agui/pkg/events"
	"github.com/go-go-golems/kraken-agui/pkg/settings"
)

// modeFlags maps the flags shared by the commands that run the assistant to
// their settings keys.
var modeFlags = map[string]string{
	"strategy":     "selector.strategy",
	"rules-file":   "selector.rules_file",
	"output":       "compose.output",
	"narrator":     "compose.narrator",
	"second-pass":  "compose.second_pass",
	"error-style":  "run.error_style",
	"account-file": "kraken.account_file",
	"kraken-url":   "kraken.base_url",
	"model":        "openai.model",
	"max-parallel": "tools.max_parallel",
	"events-tap":   "events.tap",
}

func addModeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("strategy", "", "Tool selection strategy (model, heuristic)")
	f.String("rules-file", "", "YAML file with heuristic selection rules")
	f.String("output", "", "How tool results reach the client (widget, text)")
	f.String("narrator", "", "Text narrator (template, model)")
	f.Bool("second-pass", false, "Ask the model for a summary after widgets were sent")
	f.String("error-style", "", "How run failures are reported (text, event)")
	f.String("account-file", "", "YAML snapshot serving the private Kraken endpoints")
	f.String("kraken-url", "", "Kraken API base URL")
	f.String("model", "", "OpenAI model")
	f.Int("max-parallel", 0, "Maximum number of tools run concurrently")
	f.Bool("events-tap", false, "Log every protocol event through the in-process event bus")
}

// bindFlags binds the flags of cmd that were set on the command line. Only
// changed flags are bound so unset flags never shadow the config file.
func bindFlags(cmd *cobra.Command, bindings map[string]string) error {
	for flag, key := range bindings {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return errors.Wrapf(err, "could not bind --%s", flag)
		}
	}
	return nil
}

func loadSettings(cmd *cobra.Command, bindings ...map[string]string) (*settings.Settings, error) {
	for _, b := range bindings {
		if err := bindFlags(cmd, b); err != nil {
			return nil, err
		}
	}
	return settings.Load(viper.GetViper())
}

// startEventTap starts an in-process event router that logs every protocol
// event. The returned function stops it.
func startEventTap(ctx context.Context, verbose bool) (events.EventSink, func(), error) {
	router, err := events.NewEventRouter(events.WithVerbose(verbose))
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not create event router")
	}
	router.AddHandler("log-protocol-events", events.TopicProtocolEvents, router.LogEvents)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := router.Run(ctx); err != nil {
			log.Error().Err(err).Msg("event router failed")
		}
	}()

	select {
	case <-router.Running():
	case <-done:
		cancel()
		return nil, nil, errors.New("event router stopped before it was running")
	}

	stop := func() {
		cancel()
		_ = router.Close()
		<-done
	}
	return router.Sink(), stop, nil
}
