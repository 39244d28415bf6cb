package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"signalbot/internal/agents"
	"signalbot/internal/api"
	"signalbot/internal/bot"
	"signalbot/internal/config"
	sberrors "signalbot/internal/errors"
	"signalbot/internal/metrics"
	"signalbot/internal/models"
	"signalbot/internal/notify"
	"signalbot/internal/resilience"
	"signalbot/internal/store"
	"signalbot/internal/stream"
	"signalbot/internal/trading"
)

const (
	healthCheckTimeout = 2 * time.Second
	slowPing           = 500 * time.Millisecond
	snapshotTimeout    = 10 * time.Second
)

func addServeCommand(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the bot and its HTTP API",
		Long: `Run the bot and serve its operations over HTTP.

State is restored from the configured snapshot store at start, saved every
snapshot_interval and once more on shutdown. Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), app)
		},
	})
}

func runServer(ctx context.Context, app *App) error {
	fxApp := fx.New(
		serveModule(app.Config, app.Logger),
		fx.WithLogger(func() fxevent.Logger { return &fxLogger{logger: app.Logger} }),
	)

	startCtx, cancel := context.WithTimeout(ctx, fxApp.StartTimeout())
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	select {
	case sig := <-fxApp.Wait():
		app.Logger.Info().Stringer("signal", sig.Signal).Msg("Shutting down")
	case <-ctx.Done():
		app.Logger.Info().Msg("Shutting down")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), fxApp.StopTimeout())
	defer cancel()
	return fxApp.Stop(stopCtx)
}

// serveModule wires the bot service, its collaborators, snapshot persistence
// and the HTTP server.
func serveModule(cfg *config.Config, logger zerolog.Logger) fx.Option {
	return fx.Module("serve",
		fx.Supply(cfg, logger),
		fx.Provide(
			newStateStore,
			fx.Annotate(trading.NewSystemClock, fx.As(new(trading.Clock))),
			newStrategy,
			newLanguageModel,
			stream.NewHub,
			newNotifier,
			metrics.New,
			newSnapshotter,
			newHealthChecker,
			newBotService,
			newAPIServer,
		),
		fx.Invoke(registerSnapshots, registerServer),
	)
}

func newStateStore(cfg *config.Config) *store.StateStore {
	s := store.NewStateStore()
	s.UpdateState(func(st *models.BotState) {
		if cfg.Bot.Strategy != "" {
			st.Strategy = cfg.Bot.Strategy
		}
		st.RiskLevel = cfg.Bot.RiskLevel
	})
	return s
}

func newStrategy(cfg *config.Config) (trading.Strategy, error) {
	return trading.NewStrategy(cfg.Bot.Analyzer)
}

// newLanguageModel returns a nil model when no endpoint is configured; the
// bot then answers prompts with ErrLLMUnavailable.
func newLanguageModel(cfg *config.Config, logger zerolog.Logger) agents.LanguageModel {
	if !cfg.LLMConfigured() {
		logger.Info().Msg("No language model configured, prompt and chat are disabled")
		return nil
	}
	return agents.NewOpenAIClient(agents.ClientConfig{
		APIKey:  cfg.Credentials.OpenAI.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	}, logger)
}

// newNotifier fans events out to the configured channels and to live
// /api/events subscribers.
func newNotifier(cfg *config.Config, hub *stream.Hub, logger zerolog.Logger) (*notify.MultiNotifier, error) {
	mn, err := notify.NewMultiNotifier(cfg.Events, logger)
	if err != nil {
		return nil, err
	}
	mn.AddChannel(hub)
	return mn, nil
}

// newSnapshotter returns nil for the none driver.
func newSnapshotter(cfg *config.Config) (store.Snapshotter, error) {
	p := cfg.Persistence
	switch p.Driver {
	case "sqlite":
		return store.NewSQLiteSnapshotter(p.Path)
	case "redis":
		return store.NewRedisSnapshotter(store.RedisConfig{
			Addr:     p.Redis.Addr,
			Password: p.Redis.Password,
			DB:       p.Redis.DB,
			Prefix:   p.Redis.Prefix,
		})
	default:
		return nil, nil
	}
}

func newHealthChecker(snap store.Snapshotter, notifier *notify.MultiNotifier) *resilience.HealthChecker {
	hc := resilience.NewHealthChecker(healthCheckTimeout)
	if snap != nil {
		hc.RegisterComponent("snapshot", resilience.PingCheck(snap.Ping, slowPing))
	}
	for _, b := range notifier.Breakers() {
		hc.RegisterComponent("events:"+b.Name(), resilience.BreakerCheck(b))
	}
	return hc
}

type serviceParams struct {
	fx.In

	Logger   zerolog.Logger
	Store    *store.StateStore
	Clock    trading.Clock
	Strategy trading.Strategy
	LLM      agents.LanguageModel
	Notifier *notify.MultiNotifier
	Metrics  *metrics.Recorder
}

func newBotService(p serviceParams) *bot.Service {
	return bot.NewService(bot.Deps{
		Store:    p.Store,
		Clock:    p.Clock,
		Strategy: p.Strategy,
		LLM:      p.LLM,
		Notifier: p.Notifier,
		Metrics:  p.Metrics,
		Logger:   p.Logger,
	})
}

func newAPIServer(cfg *config.Config, logger zerolog.Logger, svc *bot.Service, health *resilience.HealthChecker, hub *stream.Hub, rec *metrics.Recorder) (*api.Server, error) {
	return api.NewServer(
		api.NewHandler(svc, health).WithEvents(hub),
		api.WithConfig(cfg.Server),
		api.WithLogger(logger),
		api.WithMetrics(rec),
	)
}

func registerServer(lc fx.Lifecycle, srv *api.Server, hub *stream.Hub, notifier *notify.MultiNotifier) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return srv.Start()
		},
		OnStop: func(ctx context.Context) error {
			// Open event streams hold their connections until the hub
			// closes them, so the server cannot drain before this.
			hub.Stop()
			return errors.Join(srv.Stop(ctx), notifier.Close())
		},
	})
}

// persister restores the bot from a Snapshotter and keeps it saved.
type persister struct {
	snap     store.Snapshotter
	svc      *bot.Service
	interval time.Duration
	logger   zerolog.Logger

	stop chan struct{}
	done chan struct{}
}

// registerSnapshots is appended before the server so that on shutdown the
// final save runs after the server has drained.
func registerSnapshots(lc fx.Lifecycle, cfg *config.Config, snap store.Snapshotter, svc *bot.Service, logger zerolog.Logger) {
	if snap == nil {
		return
	}
	p := &persister{
		snap:     snap,
		svc:      svc,
		interval: cfg.Persistence.SnapshotInterval,
		logger:   logger.With().Str("component", "snapshot").Str("driver", cfg.Persistence.Driver).Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	lc.Append(fx.Hook{OnStart: p.start, OnStop: p.shutdown})
}

func (p *persister) start(ctx context.Context) error {
	if err := p.restore(ctx); err != nil {
		_ = p.snap.Close()
		return err
	}
	if p.interval <= 0 {
		close(p.done)
		return nil
	}
	go p.run()
	return nil
}

func (p *persister) restore(ctx context.Context) error {
	var (
		snap  store.Snapshot
		found bool
	)
	err := resilience.DefaultRetry().Do(ctx, func(ctx context.Context) error {
		var err error
		snap, found, err = p.snap.Load(ctx)
		return err
	})
	if err != nil {
		return sberrors.Wrap(err, "restoring snapshot")
	}
	if !found {
		p.logger.Info().Msg("No snapshot found, starting with a fresh state")
		return nil
	}
	p.svc.Restore(snap)
	return nil
}

func (p *persister) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
			if err := p.save(ctx); err != nil {
				p.logger.Warn().Err(err).Msg("Periodic snapshot failed")
			}
			cancel()
		}
	}
}

func (p *persister) save(ctx context.Context) error {
	start := time.Now()
	snap := p.svc.Snapshot()
	if err := p.snap.Save(ctx, snap); err != nil {
		return fmt.Errorf("%w: %w", sberrors.ErrSnapshotFailed, err)
	}
	p.logger.Debug().
		Int("signals", len(snap.Signals)).
		Int("trades", len(snap.Trades)).
		Dur("duration", time.Since(start)).
		Msg("Snapshot saved")
	return nil
}

func (p *persister) shutdown(ctx context.Context) error {
	close(p.stop)
	<-p.done

	err := p.save(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("Final snapshot failed")
	}
	return errors.Join(err, p.snap.Close())
}

// fxLogger routes fx lifecycle events to zerolog.
type fxLogger struct {
	logger zerolog.Logger
}

func (l *fxLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			l.logger.Error().Err(e.Err).Str("callee", e.FunctionName).Msg("OnStart hook failed")
		} else {
			l.logger.Debug().Str("callee", e.FunctionName).Dur("runtime", e.Runtime).Msg("OnStart hook executed")
		}
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			l.logger.Error().Err(e.Err).Str("callee", e.FunctionName).Msg("OnStop hook failed")
		} else {
			l.logger.Debug().Str("callee", e.FunctionName).Dur("runtime", e.Runtime).Msg("OnStop hook executed")
		}
	case *fxevent.Provided:
		if e.Err != nil {
			l.logger.Error().Err(e.Err).Str("constructor", e.ConstructorName).Msg("Provide failed")
		}
	case *fxevent.Invoked:
		if e.Err != nil {
			l.logger.Error().Err(e.Err).Str("function", e.FunctionName).Msg("Invoke failed")
		}
	case *fxevent.RollingBack:
		l.logger.Error().Err(e.StartErr).Msg("Start failed, rolling back")
	case *fxevent.Started:
		if e.Err != nil {
			l.logger.Error().Err(e.Err).Msg("Start failed")
		} else {
			l.logger.Debug().Msg("Started")
		}
	}
}
