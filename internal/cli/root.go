// Package cli implements the docfixtures command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	testfixtures "github.com/kurakura967/go-docstore-testfixtures"
	"github.com/kurakura967/go-docstore-testfixtures/internal/config"
	"github.com/kurakura967/go-docstore-testfixtures/internal/store"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	backend    string

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCommand creates and returns the root cobra command for docfixtures
func NewRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "docfixtures",
		Short: "Seed and verify document store collections",
		Long: `docfixtures clears, seeds and checks collections of a document store
from JSON or YAML fixture files.

The store is selected by the configuration file (YAML or TOML):
sqlite, mongodb, elasticsearch or memory.`,
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "docfixtures.yml", "Path to the configuration file")
	cmd.PersistentFlags().StringVar(&a.backend, "backend", "", "Override the configured backend")

	cmd.AddCommand(a.newClearCommand())
	cmd.AddCommand(a.newInitCommand())
	cmd.AddCommand(a.newCheckCommand())
	cmd.AddCommand(a.newLoadCommand())

	return cmd
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.backend != "" {
		cfg.Backend = a.backend
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

// withOrchestrator opens the configured store and runs fn against it.
func (a *app) withOrchestrator(ctx context.Context, fn func(*testfixtures.Orchestrator) error) error {
	gateway, closeStore, err := store.Open(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", a.cfg.Backend, err)
	}
	defer closeStore()

	opts := []testfixtures.Option{
		testfixtures.WithContext(ctx),
		testfixtures.WithLogger(a.logger),
	}
	if a.cfg.Fixtures.Directory != "" {
		opts = append(opts, testfixtures.Directory(a.cfg.Fixtures.Directory))
	}

	o, err := testfixtures.New(gateway, opts...)
	if err != nil {
		return err
	}
	return fn(o)
}
