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
	"github.com/sabaini/grns/internal/engine"
	"github.com/sabaini/grns/internal/store"
)

var srvCmd = &cobra.Command{
	Use:   "srv",
	Short: "Run the HTTP/JSON server in-process using the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logrus.New()
		if lvl, lerr := logrus.ParseLevel(cfg.Log.Level); lerr == nil {
			logger.SetLevel(lvl)
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
		go func() { errCh <- srv.Start() }()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case <-stop:
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.API.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		}
	},
}
