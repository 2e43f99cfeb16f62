// Package artifact renders resolved deployments to JSON files, one per
// protocol and chain, and keeps the published tree in sync with a run.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/devblac/dex-catalog/internal/catalog"
)

// ProtocolsDir is the subdirectory of the output root holding artifacts.
const ProtocolsDir = "protocols"

// Status is what happened to one artifact file.
type Status string

const (
	StatusWritten   Status = "written"
	StatusUnchanged Status = "unchanged"
	StatusRemoved   Status = "removed"
	StatusKept      Status = "kept"
	StatusFailed    Status = "failed"
)

// Outcome describes one file touched (or considered) by a write.
type Outcome struct {
	Pair   catalog.Pair `json:"pair"`
	Path   string       `json:"path"`
	Status Status       `json:"status"`
	CID    string       `json:"cid,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// document is the on-disk artifact shape. Field order keeps keys sorted.
type document struct {
	ChainID   catalog.ChainID   `json:"chain_id"`
	Contracts map[string]string `json:"contracts"`
	Name      string            `json:"name"`
}

// Encode renders a deployment deterministically: indented JSON with
// lexicographic keys and a trailing newline.
func Encode(d catalog.Deployment) []byte {
	contracts := d.Contracts
	if contracts == nil {
		contracts = map[string]string{}
	}
	data, err := json.MarshalIndent(document{ChainID: d.ChainID, Contracts: contracts, Name: d.Protocol}, "", "  ")
	if err != nil {
		// string maps and scalars always marshal
		panic(fmt.Sprintf("encode deployment: %v", err))
	}
	return append(data, '\n')
}

// Decode parses an artifact produced by Encode.
func Decode(data []byte) (catalog.Deployment, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return catalog.Deployment{}, fmt.Errorf("decode artifact: %w", err)
	}
	return catalog.Deployment{Protocol: doc.Name, ChainID: doc.ChainID, Contracts: doc.Contracts}, nil
}

// RelPath returns the slash-separated artifact path of a pair relative to
// the output root.
func RelPath(p catalog.Pair) string {
	return path.Join(ProtocolsDir, p.Protocol, p.ChainID.String()+".json")
}

// Writer owns the artifact tree under one output root.
type Writer struct {
	root   string
	dryRun bool
}

// NewWriter builds a writer. In dry-run mode outcomes are computed but the
// tree is never modified.
func NewWriter(root string, dryRun bool) *Writer {
	return &Writer{root: root, dryRun: dryRun}
}

// Root returns the output root.
func (w *Writer) Root() string { return w.root }

// DryRun reports whether the writer leaves the disk untouched.
func (w *Writer) DryRun() bool { return w.dryRun }

func (w *Writer) abs(rel string) string {
	return filepath.Join(w.root, filepath.FromSlash(rel))
}

// Write publishes one deployment. Identical existing content is left alone
// so reruns cause no churn.
func (w *Writer) Write(ctx context.Context, d catalog.Deployment) (Outcome, error) {
	data := Encode(d)
	out := Outcome{Pair: d.Pair(), Path: RelPath(d.Pair()), CID: contentIDString(data)}
	status, err := w.put(ctx, out.Path, data)
	out.Status = status
	if err != nil {
		out.Error = err.Error()
	}
	return out, err
}

// Read loads the artifact of a pair, returning fs.ErrNotExist (wrapped) if
// it has never been published.
func (w *Writer) Read(p catalog.Pair) (catalog.Deployment, []byte, error) {
	data, err := os.ReadFile(w.abs(RelPath(p)))
	if err != nil {
		return catalog.Deployment{}, nil, err
	}
	d, err := Decode(data)
	return d, data, err
}

func (w *Writer) put(ctx context.Context, rel string, data []byte) (Status, error) {
	if err := ctx.Err(); err != nil {
		return StatusFailed, catalog.WrapError(catalog.KindWriteError, "write "+rel, err)
	}
	target := w.abs(rel)
	existing, err := os.ReadFile(target)
	switch {
	case err == nil && bytes.Equal(existing, data):
		return StatusUnchanged, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return StatusFailed, catalog.WrapError(catalog.KindWriteError, "read existing "+rel, err)
	}
	if w.dryRun {
		return StatusWritten, nil
	}
	if err := atomicWrite(target, data); err != nil {
		return StatusFailed, catalog.WrapError(catalog.KindWriteError, "write "+rel, err)
	}
	return StatusWritten, nil
}

// atomicWrite replaces target with data via a synced temp file in the same
// directory, so readers see either the old or the new content.
func atomicWrite(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Existing lists the pairs currently published under the root, ordered.
func (w *Writer) Existing() ([]catalog.Pair, error) {
	base := w.abs(ProtocolsDir)
	slugs, err := os.ReadDir(base)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	var pairs []catalog.Pair
	for _, s := range slugs {
		if !s.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(base, s.Name()))
		if err != nil {
			return nil, fmt.Errorf("list artifacts of %s: %w", s.Name(), err)
		}
		for _, f := range files {
			name := f.Name()
			if f.IsDir() || !strings.HasSuffix(name, ".json") {
				continue
			}
			id, err := strconv.ParseUint(strings.TrimSuffix(name, ".json"), 10, 64)
			if err != nil {
				continue
			}
			pairs = append(pairs, catalog.Pair{Protocol: s.Name(), ChainID: catalog.ChainID(id)})
		}
	}
	sortPairs(pairs)
	return pairs, nil
}

func (w *Writer) remove(ctx context.Context, p catalog.Pair) Outcome {
	out := Outcome{Pair: p, Path: RelPath(p), Status: StatusRemoved}
	if err := ctx.Err(); err != nil {
		out.Status = StatusFailed
		out.Error = catalog.WrapError(catalog.KindWriteError, "remove "+out.Path, err).Error()
		return out
	}
	if w.dryRun {
		return out
	}
	target := w.abs(out.Path)
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		out.Status = StatusFailed
		out.Error = catalog.WrapError(catalog.KindWriteError, "remove "+out.Path, err).Error()
		return out
	}
	// drop the protocol directory once it is empty; a non-empty one stays
	_ = os.Remove(filepath.Dir(target))
	return out
}
