// Package cmd defines and implements the CLI commands for the digest executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/research-digest/internal/app"
	"github.com/JakeFAU/research-digest/internal/config"
	"github.com/JakeFAU/research-digest/internal/logging"
	"github.com/JakeFAU/research-digest/internal/pipeline"
)

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "configs/digest.yaml"

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is the slice of the application the commands use.
// It lets tests inject a fake instead of the real container.
type App interface {
	Close()
	Logger() *zap.Logger
	Run(ctx context.Context) (pipeline.Result, error)
	Prune(ctx context.Context) ([]string, error)
}

// newApp loads configuration and builds the application. Tests replace it.
var newApp = func(ctx context.Context, cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Builds a daily research digest from preprint, citation and feed sources.",
		Long: `digest queries arXiv, PubMed, Crossref and a list of syndication feeds for the
configured topics, scores and ranks the results, and writes a dated JSON record and
Markdown brief. Artifacts older than the retention window are pruned on each run.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", DefaultConfigPath, "path to the YAML config file")

	cmd.AddCommand(newRunCmd(), newPruneCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// withApp resolves the App for a command and closes it when the command
// returns. Cobra skips post-run hooks on error, so closing happens here.
func withApp(fn func(cmd *cobra.Command, appInstance App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		appInstance, err := resolveApp(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()
		return fn(cmd, appInstance)
	}
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
