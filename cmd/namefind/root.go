package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/namefind/internal/api"
	"github.com/jackzampolin/namefind/internal/config"
	"github.com/jackzampolin/namefind/internal/home"
	"github.com/jackzampolin/namefind/internal/jobs"
	"github.com/jackzampolin/namefind/internal/svcctx"
	"github.com/jackzampolin/namefind/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "namefind",
	Short: "Incremental named-entity candidate detection for annotated documents",
	Long: `namefind proposes named-entity candidates for a document and keeps them
in step with the names a user has already confirmed.

Confirmed names are document annotations of the configured entity types.
They are never proposed again, and with recall boosting enabled every other
occurrence of a confirmed name is forced into the candidate list.

Documents are YAML files holding the text and its annotations. Sentences and
tokens are derived automatically when the file carries none.`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.namefind/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "namefind home directory (default: ~/.namefind)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "table", "output format: table, yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn or error (default: log_level from config)",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(confirmCmd)
	rootCmd.AddCommand(watchCmd)
}

// setupServices loads configuration, builds the logger and starts the CPU
// pool. The pool stops when ctx is cancelled.
func setupServices(ctx context.Context) (context.Context, *svcctx.Services, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, nil, err
	}

	bootstrap := newLogger(slog.LevelInfo)
	mgr, err := config.NewManager(cfgFile, h.Path(), bootstrap)
	if err != nil {
		return nil, nil, err
	}
	cfg := mgr.Get()

	levelName := logLevel
	if levelName == "" {
		levelName = cfg.LogLevel
	}
	level, err := config.ParseLogLevel(levelName)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(level)
	slog.SetDefault(logger)

	if f := mgr.FileUsed(); f != "" {
		logger.Debug("using config file", "path", f)
	}

	pool := jobs.NewCPUWorkerPool(jobs.CPUWorkerPoolConfig{
		Name:        "detect",
		Logger:      logger,
		WorkerCount: cfg.Workers,
	})
	go pool.Start(ctx)

	svc := &svcctx.Services{
		Config: mgr,
		Pool:   pool,
		Logger: logger,
		Home:   h,
	}
	return svcctx.WithServices(ctx, svc), svc, nil
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// typeNames lists the annotation types a document must be able to resolve.
func typeNames(d config.DetectionCfg) []string {
	names := append([]string{d.SentenceType, d.TokenType}, d.AdditionalSentenceTypes...)
	return append(names, d.EntityTypes...)
}

func requireServices(ctx context.Context) (*svcctx.Services, error) {
	svc := svcctx.ServicesFrom(ctx)
	if svc == nil {
		return nil, fmt.Errorf("services not initialized")
	}
	return svc, nil
}
