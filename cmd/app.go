package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/greyhoundforty/blueterm/internal"
	"github.com/greyhoundforty/blueterm/internal/cloud"
	"github.com/greyhoundforty/blueterm/internal/config"
	"github.com/greyhoundforty/blueterm/internal/iam"
	"github.com/greyhoundforty/blueterm/internal/session"
	"github.com/greyhoundforty/blueterm/internal/ui"
)

// app is one authenticated session wired end to end.
type app struct {
	cfg       *config.Config
	prefs     internal.Preferences
	store     *iam.Store
	refresher *iam.Refresher
	coord     *session.Coordinator
	executor  *session.Executor
	scheduler *session.Scheduler
}

func loadConfig() (*config.Config, internal.Preferences, error) {
	prefs, err := internal.LoadPreferences()
	if err != nil {
		logger.Warn("using default preferences", zap.Error(err))
	}
	cfg, err := config.Load(config.Sources{
		APIKey:         flagAPIKey,
		Region:         flagRegion,
		RefreshSeconds: flagRefresh,
		Family:         flagFamily,
		Debug:          flagDebug,
		LastRegion:     prefs.LastRegion,
		LastFamily:     prefs.LastFamily,
		LookupKey:      internal.GetAPIKey,
	})
	if err != nil {
		return nil, prefs, err
	}
	logger.Debug("configuration loaded", zap.Stringer("config", cfg))
	return cfg, prefs, nil
}

// newApp builds the session. Nothing talks to the network yet.
func newApp() (*app, error) {
	cfg, prefs, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store := iam.NewStore(iam.DefaultSafetyMargin, nil)
	client := iam.NewClient(iam.WithClientLogger(logger))
	providers := cloud.NewProviders(store, store, cloud.WithLogger(logger))

	coord, err := session.NewCoordinator(providers, session.Options{
		Family:        cfg.Family,
		DefaultRegion: cfg.DefaultRegion,
		AutoRefresh:   prefs.AutoRefreshEnabled,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	refresher := iam.NewRefresher(store, client, cfg.APIKey,
		iam.WithLogger(logger),
		iam.WithNotify(authReporter(store, coord.ReportAuth, logger)))

	scheduler := session.NewScheduler(coord, cfg.RefreshInterval,
		session.WithSchedulerLogger(logger),
		session.WithEnabled(prefs.AutoRefreshEnabled),
		session.WithToggleHook(coord.SetAutoRefresh))

	return &app{
		cfg:       cfg,
		prefs:     prefs,
		store:     store,
		refresher: refresher,
		coord:     coord,
		executor:  session.NewExecutor(coord, logger),
		scheduler: scheduler,
	}, nil
}

type tokenSource interface {
	CurrentToken() (string, error)
}

// authReporter forwards refresh outcomes to report. A failed exchange only
// marks the session unauthorized once the installed token is unusable; until
// then the refresher keeps retrying and requests keep working.
func authReporter(tokens tokenSource, report func(error), log *zap.Logger) func(error) {
	return func(err error) {
		if err == nil {
			report(nil)
			return
		}
		if _, tokErr := tokens.CurrentToken(); tokErr == nil {
			log.Warn("token refresh failed, current token still valid", zap.Error(err))
			return
		}
		report(err)
	}
}

// login performs the first token exchange in the foreground.
func (a *app) login(ctx context.Context) error {
	_, err := ui.Spin("Authenticating with IBM Cloud…", func() (struct{}, error) {
		return struct{}{}, a.refresher.Authenticate(ctx)
	})
	return err
}

// background runs the token refresher and the refresh scheduler until ctx ends.
func (a *app) background(ctx context.Context) func() error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.refresher.Run(gctx) })
	g.Go(func() error { return a.scheduler.Run(gctx) })
	return func() error {
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

func runDashboard(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := a.login(ctx); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	wait := a.background(ctx)
	// The first load runs behind the dashboard's loading view.
	go func() {
		if err := a.coord.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("initial load failed", zap.Error(err))
		}
	}()

	err = ui.Run(ctx, ui.Deps{
		Coordinator:     a.coord,
		Executor:        a.executor,
		Scheduler:       a.scheduler,
		Token:           a.refresher,
		Preferences:     a.prefs,
		SavePreferences: internal.UpdatePreferences,
		Logger:          logger,
	})
	cancel()
	a.coord.Close()
	if werr := wait(); werr != nil && err == nil {
		err = werr
	}
	return err
}

// oneShot authenticates and loads the regions and resources of the configured
// selection, for the non-interactive commands.
func oneShot(ctx context.Context) (*app, error) {
	a, err := newApp()
	if err != nil {
		return nil, err
	}
	if err := a.refresher.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	return a, nil
}
