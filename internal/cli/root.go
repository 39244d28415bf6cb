package cli

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"signalbot/internal/client"
	"signalbot/internal/config"
	"signalbot/internal/logging"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-01"
)

// App holds the application dependencies shared by every command.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	ConfigDir string
}

// Client returns an API client for the server configured in [client].
func (a *App) Client() *client.Client {
	return client.NewClient(a.Config.Client.Addr, client.WithTimeout(a.Config.Client.Timeout))
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "signalbot",
		Short: "Signal bot - market analysis and simulated trade execution",
		Long: `signalbot turns market data into trade signals and records simulated trades
for the signals it is confident about.

Run 'signalbot serve' to start the HTTP API. Every other command talks to a
running server at the address in [client] addr, or --addr.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.load(cmd)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/signalbot)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("addr", "", "server address for client commands (overrides [client] addr)")

	addCoreCommands(rootCmd, app)
	addServeCommand(rootCmd, app)
	addBotCommands(rootCmd, app)
	addLLMCommands(rootCmd, app)
	rootCmd.AddCommand(newWatchCmd(app))

	return rootCmd
}

func (a *App) load(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	if dir == "" {
		dir = config.DefaultConfigDir()
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Client.Addr = addr
	}

	a.Config = cfg
	a.ConfigDir = dir
	a.Logger = logging.NewLoggerWithConfig(logConfig(cfg.Logging))

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logging.SetDebugLevel()
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}
	a.Logger.Debug().Str("config_dir", dir).Msg("Configuration loaded")
	return nil
}

func logConfig(lc config.LoggingConfig) logging.LogConfig {
	return logging.LogConfig{
		Level:      lc.Level,
		Console:    true,
		JSON:       lc.JSON,
		File:       lc.File,
		FilePath:   lc.FilePath,
		MaxSize:    lc.MaxSize,
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAge,
	}
}

func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("signalbot v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := redacted(app.Config)
			if output.IsJSON() {
				return output.JSON(cfg)
			}
			showConfig(output, cfg)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := config.TemplatePath(app.ConfigDir)
			if output.IsJSON() {
				return output.JSON(map[string]string{"dir": app.ConfigDir, "path": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			// Load already validated; re-check in case env overrides changed things.
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Bot")
	output.Printf("  Analyzer:        %s\n", cfg.Bot.Analyzer)
	output.Printf("  Strategy:        %s\n", cfg.Bot.Strategy)
	output.Printf("  Risk Level:      %.2f\n", cfg.Bot.RiskLevel)
	output.Println()

	output.Bold("Server")
	output.Printf("  Listen:          %s\n", cfg.Server.Addr())
	output.Printf("  Rate Limit:      %.1f req/s (burst %d)\n", cfg.Server.RateLimit, cfg.Server.RateBurst)
	output.Printf("  Client Addr:     %s\n", cfg.Client.Addr)
	output.Println()

	output.Bold("Language Model")
	output.Printf("  Model:           %s\n", cfg.LLM.Model)
	output.Printf("  Endpoint:        %s\n", orDefault(cfg.LLM.BaseURL, "api.openai.com"))
	output.Printf("  Configured:      %v\n", cfg.LLMConfigured())
	if key := cfg.Credentials.OpenAI.APIKey; key != "" {
		output.Printf("  API Key:         %s\n", logging.MaskCredential(key))
	}
	output.Println()

	output.Bold("Persistence")
	output.Printf("  Driver:          %s\n", cfg.Persistence.Driver)
	switch cfg.Persistence.Driver {
	case "sqlite":
		output.Printf("  Path:            %s\n", cfg.Persistence.Path)
	case "redis":
		output.Printf("  Redis:           %s (db %d)\n", cfg.Persistence.Redis.Addr, cfg.Persistence.Redis.DB)
	}
	output.Printf("  Interval:        %s\n", cfg.Persistence.SnapshotInterval)
	output.Println()

	output.Bold("Events")
	output.Printf("  Log:             %v\n", cfg.Events.Log)
	output.Printf("  Webhook:         %v\n", cfg.Events.Webhook.Enabled)
	if cfg.Events.Webhook.Enabled {
		output.Printf("  Webhook URL:     %s\n", cfg.Events.Webhook.URL)
	}
	output.Printf("  Kafka:           %v\n", cfg.Events.Kafka.Enabled)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Logging.Level)
	if cfg.Logging.File {
		output.Printf("  File:            %s\n", filepath.Clean(cfg.Logging.FilePath))
	}
}

// redacted returns a copy of cfg that is safe to print.
func redacted(cfg *config.Config) *config.Config {
	c := *cfg
	c.Persistence.Redis.Password = logging.MaskCredential(c.Persistence.Redis.Password)
	c.Events.Webhook.URL = logging.RedactURL(c.Events.Webhook.URL)
	return &c
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// parseOnOff accepts on/off style arguments.
func parseOnOff(s string) (bool, error) {
	switch s {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}
