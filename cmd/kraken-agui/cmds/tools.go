package cmds

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/kraken-agui/pkg/app"
	"github.com/go-go-golems/kraken-agui/pkg/compose"
	"github.com/go-go-golems/kraken-agui/pkg/inference/tools"
	"github.com/go-go-golems/kraken-agui/pkg/selector"
)

func NewToolsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and invoke the account tools",
	}
	cmd.PersistentFlags().String("format", "json", "Output format (json, yaml)")
	cmd.AddCommand(newToolsListCommand(), newToolsCallCommand())
	return cmd
}

func printValue(w io.Writer, format string, v interface{}) error {
	switch format {
	case "yaml":
		// round-trip through JSON so the json tags decide the field names
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic interface{}
		if err := json.Unmarshal(b, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(generic)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return errors.Errorf("unknown output format %q", format)
	}
}

func buildToolsApp(cmd *cobra.Command) (*app.App, error) {
	s, err := loadSettings(cmd, modeFlags)
	if err != nil {
		return nil, err
	}
	// listing and calling tools never needs the reasoning service
	s.Selector.Strategy = selector.StrategyHeuristic
	s.Compose.Narrator = compose.NarratorTemplate
	s.Compose.SecondPass = false
	return app.Build(s)
}

func newToolsListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the tool catalog as served by GET /api/tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildToolsApp(cmd)
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			return printValue(cmd.OutOrStdout(), format, a.Registry.ListTools())
		},
	}
	addModeFlags(cmd)
	return cmd
}

func newToolsCallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <name> [json-arguments]",
		Short: "Invoke one tool and print its result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildToolsApp(cmd)
			if err != nil {
				return err
			}

			raw := "{}"
			if len(args) == 2 {
				raw = args[1]
			}
			if raw == "-" {
				b, err := io.ReadAll(os.Stdin)
				if err != nil {
					return errors.Wrap(err, "could not read arguments from stdin")
				}
				raw = string(b)
			}
			raw = strings.TrimSpace(raw)
			if !json.Valid([]byte(raw)) && raw != "" {
				return errors.Errorf("arguments are not valid JSON: %s", raw)
			}

			e := tools.NewExecutor(a.Settings.Tools)
			res, err := e.ExecuteToolCall(cmd.Context(), tools.ToolCall{
				ID:        "cli",
				Name:      args[0],
				Arguments: json.RawMessage(raw),
			}, a.Registry)
			if err != nil {
				return err
			}
			if res.Failed() {
				return errors.Wrapf(res.Err, "%s failed", args[0])
			}

			format, _ := cmd.Flags().GetString("format")
			if err := printValue(cmd.OutOrStdout(), format, res.Result); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s took %s\n", args[0], res.Duration)
			return nil
		},
	}
	addModeFlags(cmd)
	return cmd
}
