package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"signalbot/internal/api"
	"signalbot/internal/models"
	"signalbot/internal/resilience"
)

// addBotCommands adds the commands that drive a running server.
func addBotCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newExecuteCmd(app))
	rootCmd.AddCommand(newStateCmd(app))
	rootCmd.AddCommand(newTradesCmd(app))
	rootCmd.AddCommand(newSignalsCmd(app))
	rootCmd.AddCommand(newToggleCmd(app))
	rootCmd.AddCommand(newStrategyCmd(app))
	rootCmd.AddCommand(newSummaryCmd(app))
	rootCmd.AddCommand(newHealthCmd(app))
}

func newAnalyzeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze market data and record trade signals",
		Long: `Submit market data to the server's analysis strategy.

The fixed strategy ignores its input. The momentum strategy expects a JSON
array of quotes: [{"pair":"BTC/USD","price":101,"prev_price":100}].
Use --file - to read from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			file, _ := cmd.Flags().GetString("file")
			raw, err := readInput(cmd, file)
			if err != nil {
				return err
			}

			signals, err := app.Client().AnalyzeMarket(cmd.Context(), raw)
			if err != nil {
				return fmt.Errorf("analyze market: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(signals)
			}
			output.Success("✓ Generated %d signal(s)", len(signals))
			renderSignals(output, signals)
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "", "market data file (- for stdin)")
	return cmd
}

func newExecuteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "execute",
		Short: "Execute every signal above the confidence threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			trades, err := app.Client().ExecuteTrades(cmd.Context())
			if err != nil {
				return fmt.Errorf("execute trades: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(trades)
			}
			if len(trades) == 0 {
				output.Warning("No signals qualified for execution")
				return nil
			}
			output.Success("✓ Executed %d trade(s)", len(trades))
			renderTrades(output, trades)
			return nil
		},
	}
}

func newStateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the bot state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			st, err := app.Client().GetBotState(cmd.Context())
			if err != nil {
				return fmt.Errorf("get bot state: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(st)
			}
			renderState(output, st)
			return nil
		},
	}
}

func newTradesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "trades",
		Short: "List recorded trades",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			trades, err := app.Client().GetTradeHistory(cmd.Context())
			if err != nil {
				return fmt.Errorf("get trade history: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(trades)
			}
			renderTrades(output, trades)
			return nil
		},
	}
}

func newSignalsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "signals",
		Short: "List recorded trade signals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			signals, err := app.Client().GetSignals(cmd.Context())
			if err != nil {
				return fmt.Errorf("get signals: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(signals)
			}
			renderSignals(output, signals)
			return nil
		},
	}
}

func newToggleCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:       "toggle <on|off>",
		Short:     "Activate or deactivate trade execution",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			active, err := parseOnOff(args[0])
			if err != nil {
				return err
			}

			st, err := app.Client().ToggleBot(cmd.Context(), active)
			if err != nil {
				return fmt.Errorf("toggle bot: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(st)
			}
			output.Printf("Bot is now %s\n", output.Active(st.Active))
			return nil
		},
	}
}

func newStrategyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "strategy <name> <risk>",
		Short: "Set the strategy label and risk level",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			risk, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid risk level %q: %w", args[1], err)
			}

			st, err := app.Client().UpdateStrategy(cmd.Context(), args[0], risk)
			if err != nil {
				return fmt.Errorf("update strategy: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(st)
			}
			output.Success("✓ Strategy set to %s (risk %.2f)", st.Strategy, st.RiskLevel)
			return nil
		},
	}
}

func newSummaryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show signal and trade statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			sum, err := app.Client().Summary(cmd.Context())
			if err != nil {
				return fmt.Errorf("get summary: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(sum)
			}
			renderSummary(output, sum)
			return nil
		},
	}
}

func newHealthCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			h, err := app.Client().Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("health check: %w", err)
			}

			if output.IsJSON() {
				if err := output.JSON(h); err != nil {
					return err
				}
			} else {
				renderHealth(output, h)
			}
			if resilience.HealthStatus(h.Status) == resilience.HealthStatusUnhealthy {
				return fmt.Errorf("server is unhealthy")
			}
			return nil
		},
	}
}

func readInput(cmd *cobra.Command, file string) ([]byte, error) {
	switch file {
	case "":
		return nil, nil
	case "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	default:
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		return data, nil
	}
}

func renderSignals(output *Output, signals []models.TradeSignal) {
	if len(signals) == 0 {
		output.Dim("No signals recorded")
		return
	}
	table := NewTable(output, "TIME", "PAIR", "ACTION", "CONFIDENCE", "PRICE")
	for _, s := range signals {
		table.AddRow(
			FormatTimestamp(s.Timestamp),
			TruncateString(s.Pair, 16),
			output.Action(s.Action),
			FormatConfidence(s.Confidence),
			FormatPrice(s.Price),
		)
	}
	table.Render()
}

func renderTrades(output *Output, trades []models.Trade) {
	if len(trades) == 0 {
		output.Dim("No trades recorded")
		return
	}
	table := NewTable(output, "ID", "TIME", "PAIR", "ACTION", "CONFIDENCE", "PRICE", "EXECUTED", "P/L")
	for _, t := range trades {
		table.AddRow(
			strconv.FormatUint(t.ID, 10),
			FormatTimestamp(t.Timestamp),
			TruncateString(t.Signal.Pair, 16),
			output.Action(t.Signal.Action),
			FormatConfidence(t.Signal.Confidence),
			FormatPrice(t.Signal.Price),
			strconv.FormatBool(t.Executed),
			FormatProfitLoss(t.ProfitLoss),
		)
	}
	table.Render()
}

func renderState(output *Output, st models.BotState) {
	output.Bold("Bot State")
	output.Printf("  Status:          %s\n", output.Active(st.Active))
	output.Printf("  Strategy:        %s\n", st.Strategy)
	output.Printf("  Risk Level:      %.2f\n", st.RiskLevel)
	output.Printf("  Balance:         %.2f\n", st.Balance)
	output.Printf("  Last Analysis:   %s\n", FormatOptionalTimestamp(st.LastAnalysis))
}

func renderSummary(output *Output, sum models.Summary) {
	output.Bold("Summary")
	output.Printf("  Status:          %s\n", output.Active(sum.Active))
	output.Printf("  Strategy:        %s (risk %.2f)\n", sum.Strategy, sum.RiskLevel)
	output.Printf("  Signals:         %d\n", sum.SignalCount)
	output.Printf("  Trades:          %d (%d buy / %d sell)\n", sum.TradeCount, sum.BuyTrades, sum.SellTrades)
	output.Printf("  Avg Confidence:  %s\n", FormatConfidence(sum.AvgConfidence))
	output.Printf("  Last Analysis:   %s\n", FormatOptionalTimestamp(sum.LastAnalysis))
	output.Printf("  Last Trade:      %s\n", FormatOptionalTimestamp(sum.LastTradeAt))
}

func renderHealth(output *Output, h api.HealthResponse) {
	switch resilience.HealthStatus(h.Status) {
	case resilience.HealthStatusHealthy:
		output.Success("● %s", h.Status)
	case resilience.HealthStatusDegraded:
		output.Warning("● %s", h.Status)
	default:
		output.Error("● %s", h.Status)
	}
	output.Printf("  Bot:             %s\n", output.Active(h.Active))
	output.Printf("  Analyzer:        %s\n", h.Analyzer)
	output.Printf("  Uptime:          %s\n", FormatDuration(time.Duration(h.UptimeSeconds*float64(time.Second))))

	if len(h.Components) == 0 {
		return
	}
	output.Println()
	table := NewTable(output, "COMPONENT", "STATUS", "LATENCY", "MESSAGE")
	for _, c := range h.Components {
		table.AddRow(c.Name, string(c.Status), c.Latency.String(), c.Message)
	}
	table.Render()
}
