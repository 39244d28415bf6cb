package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"signalbot/internal/notify"
)

func newWatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream bot events as they happen",
		Long: `Follow the server's event stream until interrupted.

Event types: signals_generated, trades_executed, bot_toggled, strategy_updated.
Repeat --type to follow several. With --json each event is one line of JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			names, _ := cmd.Flags().GetStringSlice("type")
			types := make([]notify.EventType, 0, len(names))
			for _, n := range names {
				t := notify.EventType(strings.TrimSpace(n))
				if !t.Valid() {
					return fmt.Errorf("unknown event type %q", n)
				}
				types = append(types, t)
			}

			if !output.IsJSON() {
				output.Dim("Watching %s (Ctrl+C to stop)", app.Config.Client.Addr)
			}
			err := app.Client().Events(cmd.Context(), func(e notify.Event) error {
				if output.IsJSON() {
					return output.JSONLine(e)
				}
				renderEvent(output, e)
				return nil
			}, types...)
			if err != nil {
				return fmt.Errorf("watch events: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringSlice("type", nil, "event types to follow (default: all)")
	return cmd
}

func renderEvent(output *Output, e notify.Event) {
	ts := e.Timestamp.UTC().Format(timestampLayout)
	output.Printf("%s  %s  %s\n", output.paint(dim, ts), output.paint(bold, e.Title), e.Message)
}
