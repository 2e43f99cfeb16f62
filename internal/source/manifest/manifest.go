// Package manifest reads an aggregator-library manifest: a single JSON
// document mapping protocol to chain to contract name to address.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/devblac/dex-catalog/internal/catalog"
	"github.com/devblac/dex-catalog/internal/fetch"
)

type Config struct {
	ID    string
	Trust int
	// File is the manifest path relative to the location. Empty means the
	// location itself is the manifest.
	File string
}

// Document is the manifest shape.
type Document map[string]map[string]map[string]string

// Adapter implements the manifest source.
type Adapter struct {
	cfg  Config
	tree fetch.Tree
	now  func() time.Time
}

func New(cfg Config, tree fetch.Tree, now func() time.Time) *Adapter {
	if now == nil {
		now = time.Now
	}
	return &Adapter{cfg: cfg, tree: tree, now: now}
}

func (a *Adapter) ID() string      { return a.cfg.ID }
func (a *Adapter) Confidence() int { return a.cfg.Trust }

func (a *Adapter) Fetch(ctx context.Context) ([]catalog.RawRecord, []catalog.AdapterWarning, error) {
	data, err := a.tree.ReadFile(ctx, a.cfg.File)
	if err != nil {
		return nil, nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, catalog.WrapError(catalog.KindSourceMalformed, fmt.Sprintf("decode manifest %s", a.tree.Location()), err)
	}

	fetchedAt := a.now().UTC()
	var (
		records  []catalog.RawRecord
		warnings []catalog.AdapterWarning
	)
	for _, protocol := range sortedKeys(doc) {
		chains := doc[protocol]
		if len(chains) == 0 {
			warnings = append(warnings, catalog.AdapterWarning{SourceID: a.cfg.ID, Message: fmt.Sprintf("protocol %s lists no chains", protocol)})
			continue
		}
		for _, chain := range sortedKeys(chains) {
			contracts := chains[chain]
			for _, name := range sortedKeys(contracts) {
				records = append(records, catalog.RawRecord{
					Protocol:   protocol,
					Chain:      chain,
					Contract:   name,
					Address:    contracts[name],
					SourceID:   a.cfg.ID,
					Confidence: a.cfg.Trust,
					FetchedAt:  fetchedAt,
				})
			}
		}
	}
	return records, warnings, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
