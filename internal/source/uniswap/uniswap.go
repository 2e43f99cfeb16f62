// Package uniswap reads the per-chain deployment files of a Uniswap-style
// repository: one JSON document per chain with a "latest" contract map.
package uniswap

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/devblac/dex-catalog/internal/catalog"
	"github.com/devblac/dex-catalog/internal/fetch"
)

// DefaultProtocol is used when the source config names no protocol.
const DefaultProtocol = "uniswap"

type Config struct {
	ID       string
	Trust    int
	Protocol string
	// Files lists the chain documents to read. Empty means every *.json
	// file in the location, which requires a listable tree.
	Files []string
}

type chainDeployment struct {
	ChainID json.RawMessage            `json:"chainId"`
	Latest  map[string]contractAddress `json:"latest"`
}

type contractAddress struct {
	Address string `json:"address"`
}

// Adapter implements the uniswap source.
type Adapter struct {
	cfg  Config
	tree fetch.Tree
	now  func() time.Time
}

func New(cfg Config, tree fetch.Tree, now func() time.Time) *Adapter {
	if cfg.Protocol == "" {
		cfg.Protocol = DefaultProtocol
	}
	if now == nil {
		now = time.Now
	}
	return &Adapter{cfg: cfg, tree: tree, now: now}
}

func (a *Adapter) ID() string      { return a.cfg.ID }
func (a *Adapter) Confidence() int { return a.cfg.Trust }

// Fetch reads every chain document. A document that does not parse is
// skipped with a warning; failing to read one fails the whole fetch so it
// can be retried.
func (a *Adapter) Fetch(ctx context.Context) ([]catalog.RawRecord, []catalog.AdapterWarning, error) {
	files := a.cfg.Files
	if len(files) == 0 {
		names, err := a.tree.ReadDir(ctx, ".")
		if err != nil {
			return nil, nil, err
		}
		for _, n := range names {
			if strings.HasSuffix(strings.ToLower(n), ".json") {
				files = append(files, n)
			}
		}
	}
	if len(files) == 0 {
		return nil, nil, catalog.NewError(catalog.KindSourceMalformed, fmt.Sprintf("no deployment files in %s", a.tree.Location()))
	}

	fetchedAt := a.now().UTC()
	var (
		records  []catalog.RawRecord
		warnings []catalog.AdapterWarning
		parsed   int
	)
	for _, name := range files {
		data, err := a.tree.ReadFile(ctx, name)
		if err != nil {
			return nil, nil, err
		}

		var doc chainDeployment
		if err := json.Unmarshal(data, &doc); err != nil {
			warnings = append(warnings, a.warn("%s: %v", name, err))
			continue
		}
		chain := chainString(doc.ChainID)
		if chain == "" {
			warnings = append(warnings, a.warn("%s: missing chainId", name))
			continue
		}
		parsed++

		contracts := make([]string, 0, len(doc.Latest))
		for c := range doc.Latest {
			contracts = append(contracts, c)
		}
		sort.Strings(contracts)
		for _, c := range contracts {
			records = append(records, catalog.RawRecord{
				Protocol:   a.cfg.Protocol,
				Chain:      chain,
				Contract:   c,
				Address:    doc.Latest[c].Address,
				SourceID:   a.cfg.ID,
				Confidence: a.cfg.Trust,
				FetchedAt:  fetchedAt,
			})
		}
	}

	if parsed == 0 {
		return nil, warnings, catalog.NewError(catalog.KindSourceMalformed, fmt.Sprintf("no parseable deployment files in %s", a.tree.Location()))
	}
	return records, warnings, nil
}

func (a *Adapter) warn(format string, args ...any) catalog.AdapterWarning {
	return catalog.AdapterWarning{SourceID: a.cfg.ID, Message: fmt.Sprintf(format, args...)}
}

// chainString accepts the chain id as a JSON string or number and returns it
// verbatim.
func chainString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
