package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/devblac/dex-catalog/internal/catalog"
	"github.com/devblac/dex-catalog/internal/chains"
	"github.com/devblac/dex-catalog/internal/config"
)

var (
	cfgPath string
	rootCmd = &cobra.Command{
		Use:   "dex-catalog",
		Short: "Build a per-chain catalog of DEX contract deployments",
	}
)

func init() {
	cobra.EnableCommandSorting = false

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgPath, "config", "c", "config.yaml", "Path to config file")
	pf.String(config.KeyOutputDir, "", "Artifact output directory (overrides global.output_dir)")
	pf.String(config.KeyDBPath, "", "SQLite run ledger path (overrides global.db_path)")
	pf.String(config.KeyLogLevel, "", "Log level: debug, info, warn, error")
	pf.Int(config.KeyConcurrency, 0, "Adapters fetched in parallel")
	pf.Duration(config.KeyAdapterTimeout, 0, "Timeout per adapter attempt")
	pf.Int(config.KeyMaxRetries, 0, "Retries per adapter after the first attempt")
	pf.Bool(config.KeyPrune, true, "Remove artifacts no source supports any more")

	rootCmd.AddCommand(
		versionCmd,
		initCmd,
		validateCmd,
		runCmd,
		stateCmd,
		exportCmd,
		serveCmd,
	)
}

// exitError carries a non-zero exit status without an error message.
type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// Execute runs the root command tree.
func Execute(ctx context.Context) error {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var ee exitError
		if !errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, err)
		}
		return err
	}
	return nil
}

// loadConfig reads the config file and layers flag and CATALOG_* overrides on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.ApplyOverrides(cfg, cmd.Flags()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildRegistry(cfg *config.Config) (*chains.Registry, error) {
	extra := make([]chains.Chain, 0, len(cfg.Chains))
	for _, c := range cfg.Chains {
		extra = append(extra, chains.Chain{ID: catalog.ChainID(c.ID), Name: c.Name, Aliases: c.Aliases})
	}
	reg, err := chains.Default().WithExtra(extra)
	if err != nil {
		return nil, fmt.Errorf("chain registry: %w", err)
	}
	return reg, nil
}

func sourceTimeouts(cfg *config.Config) map[string]time.Duration {
	out := map[string]time.Duration{}
	for _, s := range cfg.EnabledSources() {
		if s.Timeout > 0 {
			out[s.ID] = s.Timeout
		}
	}
	return out
}
