package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/devblac/dex-catalog/internal/storage"
)

var (
	exportKind   string
	exportFormat string
	exportRun    string
	exportOut    string
)

func init() {
	exportCmd.Flags().StringVar(&exportKind, "kind", "conflicts", "What to export: conflicts|artifacts")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv|json")
	exportCmd.Flags().StringVar(&exportRun, "run", "", "Run id for conflicts (default latest)")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "Output file (default stdout)")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export conflicts or published artifacts from the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(exportFormat)
		if format != "csv" && format != "json" {
			return fmt.Errorf("export: unsupported format %q", exportFormat)
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Global.DBPath)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer store.Close()

		var w io.Writer = cmd.OutOrStdout()
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("create %s: %w", exportOut, err)
			}
			defer f.Close()
			w = f
		}

		ctx := cmd.Context()
		switch strings.ToLower(exportKind) {
		case "conflicts":
			rows, err := store.Conflicts(ctx, exportRun)
			if err != nil {
				return err
			}
			if format == "json" {
				return writeJSONRows(w, rows)
			}
			return writeConflictsCSV(w, rows)
		case "artifacts":
			rows, err := store.Artifacts(ctx)
			if err != nil {
				return err
			}
			if format == "json" {
				return writeJSONRows(w, rows)
			}
			return writeArtifactsCSV(w, rows)
		default:
			return fmt.Errorf("export: unsupported kind %q", exportKind)
		}
	},
}

func writeJSONRows(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeConflictsCSV emits one line per competing claim.
func writeConflictsCSV(w io.Writer, rows []storage.ConflictRow) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"run_id", "protocol", "chain_id", "contract", "address", "source", "confidence"})
	for _, r := range rows {
		for _, c := range r.Claims {
			_ = cw.Write([]string{
				r.RunID, r.Protocol, strconv.FormatUint(r.ChainID, 10), r.Contract,
				c.Address, c.SourceID, strconv.Itoa(c.Confidence),
			})
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeArtifactsCSV(w io.Writer, rows []storage.Artifact) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"protocol", "chain_id", "path", "cid", "run_id", "updated_at"})
	for _, a := range rows {
		_ = cw.Write([]string{
			a.Protocol, strconv.FormatUint(a.ChainID, 10), a.Path, a.CID, a.RunID,
			a.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	cw.Flush()
	return cw.Error()
}
