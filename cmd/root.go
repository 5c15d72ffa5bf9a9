// Package cmd defines the jobscout CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobscout/internal/app"
	"github.com/JakeFAU/jobscout/internal/config"
	"github.com/JakeFAU/jobscout/internal/jobs"
	"github.com/JakeFAU/jobscout/internal/logging"
	"github.com/JakeFAU/jobscout/internal/search"
)

var cfgFile string

type appKeyType string

const appKey appKeyType = "app"

// App is the slice of the application container the commands use.
// Tests swap in a fake through newApp.
type App interface {
	Close()
	Logger() *zap.Logger
	Config() config.Config
	Handler() http.Handler
	Search(ctx context.Context, career, location string) ([]jobs.Listing, search.Outcome, error)
	Sweep(ctx context.Context) (int64, error)
	RunSweeper(ctx context.Context, interval time.Duration)
	WarmProxies(ctx context.Context) int
}

// newApp is the application factory. It is a variable so tests can replace it.
var newApp = func(ctx context.Context, path string) (App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobscout",
		Short: "Aggregates job listings from several public job boards.",
		Long: `jobscout searches LinkedIn, Indeed, Computrabajo and OCC Mundial in
parallel for a career from the catalog, merges and deduplicates the results,
and caches them. Run "serve" for the HTTP API or "search" for a one-off query.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newCleanupCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "jobscout: %v\n", err)
		os.Exit(1)
	}
}
