package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/devblac/dex-catalog/internal/catalog"
)

// IndexPath is the index of published artifacts, relative to the root.
var IndexPath = path.Join(ProtocolsDir, "index.json")

// SyncOptions controls stale artifact handling.
type SyncOptions struct {
	// Prune removes artifacts for pairs no source supports any more.
	Prune bool
	// AdapterFailed disables pruning: an outage must not erase the catalog.
	AdapterFailed bool
	// Conflicted pairs are removed when stale regardless of Prune.
	Conflicted map[catalog.Pair]bool
}

// SyncResult lists the outcome of every file a sync considered.
type SyncResult struct {
	Outcomes []Outcome `json:"outcomes"`
	Index    Outcome   `json:"index"`
}

// Count returns the number of artifact outcomes with status s.
func (r SyncResult) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Index maps protocol slug to chain ID to artifact CID.
type Index map[string]map[string]string

// Sync writes every deployment, then removes or keeps stale artifacts and
// refreshes the index. Per-file failures are reported in the outcomes and
// never stop the other files.
func (w *Writer) Sync(ctx context.Context, deployments []catalog.Deployment, opts SyncOptions) SyncResult {
	var res SyncResult
	index := Index{}
	current := make(map[catalog.Pair]bool, len(deployments))

	sorted := append([]catalog.Deployment(nil), deployments...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Pair().Less(sorted[j].Pair()) })

	for _, d := range sorted {
		current[d.Pair()] = true
		out, err := w.Write(ctx, d)
		res.Outcomes = append(res.Outcomes, out)
		if err == nil {
			index.add(d.Pair(), out.CID)
			continue
		}
		// the previous artifact, if any, is still what readers see
		if _, data, rerr := w.Read(d.Pair()); rerr == nil {
			index.add(d.Pair(), contentIDString(data))
		}
	}

	existing, err := w.Existing()
	if err != nil {
		res.Outcomes = append(res.Outcomes, Outcome{
			Path:   ProtocolsDir,
			Status: StatusFailed,
			Error:  catalog.WrapError(catalog.KindWriteError, "scan stale artifacts", err).Error(),
		})
	}
	for _, p := range existing {
		if current[p] {
			continue
		}
		if opts.Conflicted[p] || (opts.Prune && !opts.AdapterFailed) {
			out := w.remove(ctx, p)
			res.Outcomes = append(res.Outcomes, out)
			if out.Status == StatusRemoved {
				continue
			}
		} else {
			res.Outcomes = append(res.Outcomes, Outcome{Pair: p, Path: RelPath(p), Status: StatusKept})
		}
		if _, data, rerr := w.Read(p); rerr == nil {
			index.add(p, contentIDString(data))
		}
	}

	res.Index = w.writeIndex(ctx, index)
	return res
}

func (idx Index) add(p catalog.Pair, cid string) {
	chains := idx[p.Protocol]
	if chains == nil {
		chains = map[string]string{}
		idx[p.Protocol] = chains
	}
	chains[p.ChainID.String()] = cid
}

func (w *Writer) writeIndex(ctx context.Context, idx Index) Outcome {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return Outcome{Path: IndexPath, Status: StatusFailed, Error: fmt.Sprintf("encode index: %v", err)}
	}
	data = append(data, '\n')
	out := Outcome{Path: IndexPath, CID: contentIDString(data)}
	status, err := w.put(ctx, IndexPath, data)
	out.Status = status
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

// ReadIndex loads the published index. A missing index is empty.
func (w *Writer) ReadIndex() (Index, error) {
	data, err := os.ReadFile(w.abs(IndexPath))
	if os.IsNotExist(err) {
		return Index{}, nil
	}
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return idx, nil
}

func sortPairs(pairs []catalog.Pair) {
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Less(pairs[j]) })
}
