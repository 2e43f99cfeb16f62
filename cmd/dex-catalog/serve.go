package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devblac/dex-catalog/internal/allowlist"
	"github.com/devblac/dex-catalog/internal/api"
	"github.com/devblac/dex-catalog/internal/artifact"
	"github.com/devblac/dex-catalog/internal/fetch"
	"github.com/devblac/dex-catalog/internal/health"
	"github.com/devblac/dex-catalog/internal/logging"
	"github.com/devblac/dex-catalog/internal/metrics"
	"github.com/devblac/dex-catalog/internal/storage"
	"github.com/devblac/dex-catalog/internal/storage/postgres"
)

var (
	serveAddr    string
	serveOrigins []string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "HTTP listen address")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "cors-origin", nil, "Allowed CORS origins (default any)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the published catalog over a read-only HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log, err := logging.New(cfg.Global.LogLevel)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
		ctx := cmd.Context()

		registry, err := buildRegistry(cfg)
		if err != nil {
			return err
		}
		// display names only; the catalog is served without them
		protocols, err := allowlist.Load(ctx, cfg.Allowlist.Location(), fetch.DefaultClient())
		if err != nil {
			log.Warn("allowlist unavailable", zap.Error(err))
		}

		store, err := storage.Open(cfg.Global.DBPath)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer store.Close()

		outputDir := func(context.Context) error {
			_, err := os.Stat(cfg.Global.OutputDir)
			return err
		}
		checker := health.Checker{DBPing: store.Ping, OutputDir: outputDir}
		if cfg.Mirror.PostgresDSN != "" {
			m, err := postgres.NewMirror(ctx, cfg.Mirror.PostgresDSN)
			if err != nil {
				return fmt.Errorf("open mirror: %w", err)
			}
			defer m.Close()
			checker.MirrorPing = m.Ping
		}

		srv, err := api.New(api.Options{
			Artifacts:      artifact.NewWriter(cfg.Global.OutputDir, true),
			Chains:         registry,
			Protocols:      protocols,
			Runs:           store,
			Health:         checker,
			Metrics:        metrics.Init().Handler(),
			AllowedOrigins: serveOrigins,
			Logger:         log,
		})
		if err != nil {
			return err
		}

		httpSrv := &http.Server{
			Addr:              serveAddr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 3 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() { errCh <- httpSrv.ListenAndServe() }()
		log.Info("serving catalog", zap.String("addr", serveAddr), zap.String("output_dir", cfg.Global.OutputDir))

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	},
}
