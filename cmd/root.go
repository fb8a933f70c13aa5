// Package cmd defines and implements the CLI commands for the jobscout
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/local-job-scraper/internal/app"
	"github.com/JakeFAU/local-job-scraper/internal/config"
	"github.com/JakeFAU/local-job-scraper/internal/crawler"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// ProfileRunner executes profile runs.
type ProfileRunner interface {
	Run(ctx context.Context, profile crawler.Profile) (crawler.RunResult, error)
	RunAll(ctx context.Context, profiles []crawler.Profile) ([]crawler.RunResult, error)
}

// App is the slice of the application container the commands use. Tests
// inject a fake through newApp.
type App interface {
	Close()
	Logger() *zap.Logger
	Config() config.Config
	Runner() ProfileRunner
}

type appAdapter struct {
	*app.App
}

func (a appAdapter) Runner() ProfileRunner {
	return a.App.Runner()
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfgPath string, console io.Writer) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, console)
	if err != nil {
		return nil, err
	}
	return appAdapter{App: a}, nil
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobscout",
		Short: "Find local employers and check their career pages for matching jobs.",
		Long: `jobscout searches a places API around a configured location for the
business types in a profile, resolves each company's website, looks for a
careers page, and reports which companies mention the profile's job keywords.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile, cmd.OutOrStdout())
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

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml when present)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newProfilesCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
