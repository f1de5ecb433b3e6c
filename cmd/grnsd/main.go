// Command grnsd runs the HTTP/JSON task-graph server: it opens the
// embedded store, binds one project's Engine to the API surface, and
// serves until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sabaini/grns/internal/api"
	"github.com/sabaini/grns/internal/config"
	"github.com/sabaini/grns/internal/engine"
	"github.com/sabaini/grns/internal/store"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "grnsd",
	Short: "grnsd serves the task-graph HTTP/JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cfgFile)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: discovered under .grns/)")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "grnsd: %v\n", err)
		os.Exit(1)
	}
}

func serve(cfgFile string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logrus.New()
	if lvl, lerr := logrus.ParseLevel(cfg.Log.Level); lerr == nil {
		logger.SetLevel(lvl)
	}
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return fmt.Errorf("prepare store directory: %w", err)
	}

	db, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	eng := engine.New(db, logger, cfg.Project.Prefix)
	srv := api.New(eng, cfg, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-stop:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}
