// Package report describes the outcome of one catalog run.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/devblac/dex-catalog/internal/catalog"
)

// Adapter statuses.
const (
	AdapterOK     = "ok"
	AdapterFailed = "failed"
)

// Run statuses.
const (
	StatusClean    = "clean"
	StatusDegraded = "degraded"
)

// Exit codes for the CLI.
const (
	ExitClean    = 0
	ExitFatal    = 1
	ExitDegraded = 2
)

type AdapterResult struct {
	ID         string       `json:"id"`
	Confidence int          `json:"confidence"`
	Status     string       `json:"status"`
	Attempts   int          `json:"attempts"`
	Records    int          `json:"records"`
	DurationMS int64        `json:"duration_ms"`
	ErrorKind  catalog.Kind `json:"error_kind,omitempty"`
	Error      string       `json:"error,omitempty"`
	Warnings   []string     `json:"warnings,omitempty"`
}

type Records struct {
	Fetched    int `json:"fetched"`
	Normalized int `json:"normalized"`
	Dropped    int `json:"dropped"`
}

// Drop is a raw record rejected by normalization.
type Drop struct {
	SourceID string       `json:"source"`
	Protocol string       `json:"protocol"`
	Chain    string       `json:"chain"`
	Contract string       `json:"contract"`
	Address  string       `json:"address"`
	Kind     catalog.Kind `json:"kind"`
	Reason   string       `json:"reason"`
}

// Claim is one source's address for a merge key.
type Claim struct {
	SourceID   string `json:"source"`
	Address    string `json:"address"`
	Confidence int    `json:"confidence"`
}

// Override records lower-trust claims discarded in favour of a higher tier.
type Override struct {
	Key       string   `json:"key"`
	Address   string   `json:"address"`
	Sources   []string `json:"sources"`
	Overruled []Claim  `json:"overruled"`
}

// Conflict is a merge key that published nothing.
type Conflict struct {
	Key      string          `json:"key"`
	Protocol string          `json:"protocol"`
	ChainID  catalog.ChainID `json:"chain_id"`
	Contract string          `json:"contract"`
	Claims   []Claim         `json:"claims"`
}

type Files struct {
	Written   int `json:"written"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
	Kept      int `json:"kept"`
	Failed    int `json:"failed"`
}

// FileResult is one artifact file outcome. Protocol and ChainID are empty
// for the index.
type FileResult struct {
	Path     string          `json:"path"`
	Protocol string          `json:"protocol,omitempty"`
	ChainID  catalog.ChainID `json:"chain_id,omitempty"`
	Status   string          `json:"status"`
	CID      string          `json:"cid,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Report is the full account of a run. Every non-fatal error ends up here.
type Report struct {
	RunID       string          `json:"run_id"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	DryRun      bool            `json:"dry_run"`
	Adapters    []AdapterResult `json:"adapters"`
	Records     Records         `json:"records"`
	Drops       []Drop          `json:"drops,omitempty"`
	Overrides   []Override      `json:"overrides,omitempty"`
	Conflicts   []Conflict      `json:"conflicts,omitempty"`
	Files       Files           `json:"files"`
	FileResults []FileResult    `json:"file_results,omitempty"`
}

// New starts a report with a fresh run id.
func New(startedAt time.Time, dryRun bool) *Report {
	return &Report{RunID: uuid.NewString(), StartedAt: startedAt.UTC(), DryRun: dryRun}
}

// FailedAdapters returns the ids of adapters that contributed nothing.
func (r *Report) FailedAdapters() []string {
	var out []string
	for _, a := range r.Adapters {
		if a.Status == AdapterFailed {
			out = append(out, a.ID)
		}
	}
	return out
}

// Degraded reports whether the run published less than it should have:
// an adapter failed, a key was in conflict, or a file could not be written.
func (r *Report) Degraded() bool {
	return len(r.FailedAdapters()) > 0 || len(r.Conflicts) > 0 || r.Files.Failed > 0
}

// Status returns StatusClean or StatusDegraded.
func (r *Report) Status() string {
	if r.Degraded() {
		return StatusDegraded
	}
	return StatusClean
}

// ExitCode maps the run status to the CLI exit code.
func (r *Report) ExitCode() int {
	if r.Degraded() {
		return ExitDegraded
	}
	return ExitClean
}

// Summary is the compact view used by notifications, metrics and the ledger.
type Summary struct {
	RunID          string        `json:"run_id"`
	Status         string        `json:"status"`
	DryRun         bool          `json:"dry_run"`
	Duration       time.Duration `json:"duration"`
	Adapters       int           `json:"adapters"`
	FailedAdapters []string      `json:"failed_adapters,omitempty"`
	Records        Records       `json:"records"`
	Overrides      int           `json:"overrides"`
	Conflicts      int           `json:"conflicts"`
	Files          Files         `json:"files"`
}

func (r *Report) Summary() Summary {
	return Summary{
		RunID:          r.RunID,
		Status:         r.Status(),
		DryRun:         r.DryRun,
		Duration:       r.FinishedAt.Sub(r.StartedAt),
		Adapters:       len(r.Adapters),
		FailedAdapters: r.FailedAdapters(),
		Records:        r.Records,
		Overrides:      len(r.Overrides),
		Conflicts:      len(r.Conflicts),
		Files:          r.Files,
	}
}

// WriteJSON emits the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// WriteText emits a human summary. Conflicts list every competing address
// with its sources so an operator can settle them.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %s", r.RunID, r.Status())
	if r.DryRun {
		b.WriteString(" (dry run)")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "records: fetched=%d normalized=%d dropped=%d\n", r.Records.Fetched, r.Records.Normalized, r.Records.Dropped)
	fmt.Fprintf(&b, "files: written=%d unchanged=%d removed=%d kept=%d failed=%d\n",
		r.Files.Written, r.Files.Unchanged, r.Files.Removed, r.Files.Kept, r.Files.Failed)

	b.WriteString("\nadapters:\n")
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	for _, a := range r.Adapters {
		detail := fmt.Sprintf("%d records", a.Records)
		if a.Status == AdapterFailed {
			detail = fmt.Sprintf("%s: %s", a.ErrorKind, a.Error)
		}
		fmt.Fprintf(tw, "  %s\ttrust %d\t%s\t%s\n", a.ID, a.Confidence, a.Status, detail)
	}
	_ = tw.Flush()

	if len(r.Conflicts) > 0 {
		b.WriteString("\nconflicts:\n")
		for _, c := range r.Conflicts {
			fmt.Fprintf(&b, "  %s\n", c.Key)
			for _, cl := range c.Claims {
				fmt.Fprintf(&b, "    %s  %s (trust %d)\n", cl.Address, cl.SourceID, cl.Confidence)
			}
		}
	}

	if len(r.Overrides) > 0 {
		b.WriteString("\noverrides:\n")
		for _, o := range r.Overrides {
			fmt.Fprintf(&b, "  %s = %s (%s)\n", o.Key, o.Address, strings.Join(o.Sources, ", "))
			for _, cl := range o.Overruled {
				fmt.Fprintf(&b, "    overruled %s  %s (trust %d)\n", cl.Address, cl.SourceID, cl.Confidence)
			}
		}
	}

	if len(r.Drops) > 0 {
		b.WriteString("\ndropped records:\n")
		for _, d := range r.Drops {
			fmt.Fprintf(&b, "  [%s] %s %s/%s/%s: %s\n", d.Kind, d.SourceID, d.Protocol, d.Chain, d.Contract, d.Reason)
		}
	}

	for _, f := range r.FileResults {
		if f.Error != "" {
			fmt.Fprintf(&b, "\nfile %s failed: %s\n", f.Path, f.Error)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
