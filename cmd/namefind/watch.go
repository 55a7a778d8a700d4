package main

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/namefind/internal/api"
	"github.com/jackzampolin/namefind/internal/config"
)

var watchDelay time.Duration

// emitReport prints the report of each watch cycle.
var emitReport = func(r api.EntityReport) error {
	return api.Output(r)
}

var watchCmd = &cobra.Command{
	Use:   "watch <document>",
	Short: "Re-run detection whenever the document or config changes",
	Long: `Load a document, run detection and print the candidates, then keep
watching. Saving the document or the config file re-runs detection after a
short quiet period.

Examples:
  namefind watch chapter1.yaml
  namefind watch chapter1.yaml --delay 1s`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, svc, err := setupServices(cmd.Context())
		if err != nil {
			return err
		}
		logger := svc.Logger

		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		s, err := openSession(ctx, path)
		if err != nil {
			return err
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create file watcher: %w", err)
		}
		defer watcher.Close()
		// Watch the directory so editors that replace the file are still seen.
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}

		trigger := make(chan struct{}, 1)
		fire := func() {
			select {
			case trigger <- struct{}{}:
			default:
			}
		}
		var reload atomic.Bool
		debounced := debounce.New(watchDelay)

		svc.Config.OnChange(func(*config.Config) {
			debounced(fire)
		})
		if svc.Config.FileUsed() != "" {
			svc.Config.WatchConfig()
		}

		fire()
		for {
			select {
			case <-ctx.Done():
				return nil

			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(ev.Name) != path {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					reload.Store(true)
					debounced(fire)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				logger.Warn("file watcher error", "error", err)

			case <-trigger:
				if reload.Swap(false) {
					if err := s.reload(ctx); err != nil {
						logger.Warn("document reload failed", "document", path, "error", err)
						continue
					}
				}
				if err := s.view.Detect(ctx); err != nil {
					logger.Warn("detection failed", "document", path, "error", err)
				}
				report, err := s.report(ctx)
				if err != nil {
					return err
				}
				if err := emitReport(report); err != nil {
					return err
				}
			}
		}
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDelay, "delay", 300*time.Millisecond, "quiet period before re-running detection")
}
