package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initDir string

func init() {
	initCmd.Flags().StringVar(&initDir, "dir", ".", "Directory to scaffold into")
}

const sampleConfig = `version: 1
global:
  output_dir: ./deployments
  db_path: ./catalog.db
  log_level: info
  adapter_timeout: 60s
  max_retries: 2
  retry_backoff: 1s
  concurrency: 4
  prune: true

allowlist:
  path: ./protocols.yaml

chains: []

sources:
  - id: uniswap-official
    type: uniswap
    location: https://raw.githubusercontent.com/Uniswap/contracts/main/deployments
    files: [1.json, 10.json, 137.json, 8453.json, 42161.json]
    trust: 3
    protocol: uniswap
  - id: balancer-official
    type: balancer
    location: ./vendor/balancer-deployments
    networks: [mainnet, optimism, arbitrum, base]
    trust: 3
    protocol: balancer
  - id: curated
    type: curated
    location: ./curated.yaml
    trust: 2

sinks: []
#  - id: ops
#    type: slack
#    webhook_url: https://hooks.slack.com/services/XXX
#    on: degraded

mirror:
  postgres_dsn: ""
`

const sampleProtocols = `protocols:
  - slug: uniswap
    display_name: Uniswap
    versions: [v2, v3, v4]
  - slug: balancer
    display_name: Balancer
    versions: [v2, v3]
  - slug: curve
    display_name: Curve
`

const sampleCurated = `entries:
  - protocol: uniswap-v3
    chain: ethereum
    contract: UniswapV3Factory
    address: "0x1F98431c8aD98523631AE4a59f267346ea31F984"
    note: verified against etherscan
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold sample config, allowlist and curated source files",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(initDir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", initDir, err)
		}
		files := []struct {
			name    string
			content string
		}{
			{"config.yaml", sampleConfig},
			{"protocols.yaml", sampleProtocols},
			{"curated.yaml", sampleCurated},
		}
		out := cmd.OutOrStdout()
		for _, f := range files {
			path := filepath.Join(initDir, f.name)
			if err := writeNew(path, f.content); err != nil {
				if errors.Is(err, fs.ErrExist) {
					return fmt.Errorf("init: %s already exists, not overwriting", path)
				}
				return fmt.Errorf("init: %w", err)
			}
			fmt.Fprintf(out, "wrote %s\n", path)
		}
		return nil
	},
}

func writeNew(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
