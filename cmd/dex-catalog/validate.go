package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devblac/dex-catalog/internal/allowlist"
	"github.com/devblac/dex-catalog/internal/fetch"
	"github.com/devblac/dex-catalog/internal/sink"
	"github.com/devblac/dex-catalog/internal/source"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config, allowlist and adapter definitions without fetching sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}
		fmt.Fprintf(out, "config OK (version %d)\n", cfg.Version)

		registry, err := buildRegistry(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "chains: %d registered (%d from config)\n", registry.Len(), len(cfg.Chains))

		client := fetch.DefaultClient()
		protocols, err := allowlist.Load(cmd.Context(), cfg.Allowlist.Location(), client)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "allowlist: %d protocols from %s\n", protocols.Len(), cfg.Allowlist.Location())

		failures := 0
		for _, src := range cfg.Sources {
			if !src.IsEnabled() {
				fmt.Fprintf(out, "- source %s (%s): disabled\n", src.ID, src.Type)
				continue
			}
			if _, err := source.Build(src, source.Options{Client: client}); err != nil {
				failures++
				fmt.Fprintf(out, "- source %s (%s): ERROR %v\n", src.ID, src.Type, err)
				continue
			}
			fmt.Fprintf(out, "- source %s (%s): trust %d OK\n", src.ID, src.Type, src.Trust)
		}
		for _, s := range cfg.Sinks {
			if _, err := sink.Build(s); err != nil {
				failures++
				fmt.Fprintf(out, "- sink %s (%s): ERROR %v\n", s.ID, s.Type, err)
				continue
			}
			fmt.Fprintf(out, "- sink %s (%s): on %s OK\n", s.ID, s.Type, s.On)
		}

		if failures > 0 {
			return fmt.Errorf("validate: %d definition(s) failed", failures)
		}

		fmt.Fprintln(out, "validate: success")
		return nil
	},
}
