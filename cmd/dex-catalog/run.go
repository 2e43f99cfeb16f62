package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devblac/dex-catalog/internal/allowlist"
	"github.com/devblac/dex-catalog/internal/artifact"
	"github.com/devblac/dex-catalog/internal/engine"
	"github.com/devblac/dex-catalog/internal/fetch"
	"github.com/devblac/dex-catalog/internal/logging"
	"github.com/devblac/dex-catalog/internal/metrics"
	"github.com/devblac/dex-catalog/internal/sink"
	"github.com/devblac/dex-catalog/internal/source"
	"github.com/devblac/dex-catalog/internal/storage"
	"github.com/devblac/dex-catalog/internal/storage/postgres"
)

var (
	flagDryRun      bool
	flagReport      string
	flagMetricsPush string
)

func init() {
	runCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Compute outcomes without writing artifacts or notifying")
	runCmd.Flags().StringVar(&flagReport, "report", "", "Write the JSON run report to this path")
	runCmd.Flags().StringVar(&flagMetricsPush, "metrics-push", "", "Pushgateway URL to push run metrics to")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch all sources and publish the catalog once",
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
		client := fetch.DefaultClient()
		protocols, err := allowlist.Load(ctx, cfg.Allowlist.Location(), client)
		if err != nil {
			return err
		}
		adapters, err := source.BuildAll(cfg.Sources, source.Options{Client: client})
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Global.DBPath)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer store.Close()

		built, err := sink.NewNotifiers(cfg.Sinks, store)
		if err != nil {
			return err
		}
		notifiers := make([]engine.Notifier, 0, len(built))
		for _, n := range built {
			notifiers = append(notifiers, n)
		}

		var mirror engine.Mirror
		if cfg.Mirror.PostgresDSN != "" && !flagDryRun {
			m, err := postgres.NewMirror(ctx, cfg.Mirror.PostgresDSN)
			if err != nil {
				return fmt.Errorf("open mirror: %w", err)
			}
			defer m.Close()
			mirror = m
		}

		mtr := metrics.Init()
		runner, err := engine.NewRunner(engine.Options{
			Protocols:      protocols,
			Chains:         registry,
			Adapters:       adapters,
			Writer:         artifact.NewWriter(cfg.Global.OutputDir, flagDryRun),
			AdapterTimeout: cfg.Global.AdapterTimeout,
			Timeouts:       sourceTimeouts(cfg),
			MaxRetries:     cfg.Global.MaxRetries,
			RetryBackoff:   cfg.Global.RetryBackoff,
			Concurrency:    cfg.Global.Concurrency,
			Prune:          cfg.Global.Prune,
			Logger:         log,
			Ledger:         store,
			Mirror:         mirror,
			Notifiers:      notifiers,
			Observer:       mtr,
		})
		if err != nil {
			return err
		}

		rep, err := runner.Run(ctx)
		if err != nil {
			log.Error("run failed", zap.Error(err))
			return err
		}

		if flagReport != "" {
			f, err := os.Create(flagReport)
			if err != nil {
				return fmt.Errorf("create report: %w", err)
			}
			werr := rep.WriteJSON(f)
			if cerr := f.Close(); werr == nil {
				werr = cerr
			}
			if werr != nil {
				return fmt.Errorf("write report: %w", werr)
			}
		}
		if err := rep.WriteText(cmd.OutOrStdout()); err != nil {
			return err
		}

		if flagMetricsPush != "" {
			if err := mtr.Push(ctx, flagMetricsPush, "dex_catalog"); err != nil {
				log.Warn("metrics push failed", zap.Error(err))
			}
		}

		if code := rep.ExitCode(); code != 0 {
			return exitError{code: code}
		}
		return nil
	},
}
