// Package curated reads the manually maintained YAML list of deployments.
package curated

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devblac/dex-catalog/internal/catalog"
	"github.com/devblac/dex-catalog/internal/fetch"
)

type Config struct {
	ID    string
	Trust int
	// File is the list path relative to the location. Empty means the
	// location itself is the list.
	File string
}

// Entry is one curated claim. Note is free text for maintainers.
type Entry struct {
	Protocol string `yaml:"protocol"`
	Chain    string `yaml:"chain"`
	Contract string `yaml:"contract"`
	Address  string `yaml:"address"`
	Note     string `yaml:"note,omitempty"`
}

// File is the curated list document.
type File struct {
	Entries []Entry `yaml:"entries"`
}

// Adapter implements the curated source.
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

// Fetch returns entries in file order. Entries missing a field are skipped
// with a warning.
func (a *Adapter) Fetch(ctx context.Context) ([]catalog.RawRecord, []catalog.AdapterWarning, error) {
	data, err := a.tree.ReadFile(ctx, a.cfg.File)
	if err != nil {
		return nil, nil, err
	}
	var doc File
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, catalog.WrapError(catalog.KindSourceMalformed, fmt.Sprintf("decode curated list %s", a.tree.Location()), err)
	}

	fetchedAt := a.now().UTC()
	var (
		records  []catalog.RawRecord
		warnings []catalog.AdapterWarning
	)
	for i, e := range doc.Entries {
		if missing := e.missing(); len(missing) > 0 {
			warnings = append(warnings, catalog.AdapterWarning{
				SourceID: a.cfg.ID,
				Message:  fmt.Sprintf("entry %d: missing %s", i, strings.Join(missing, ", ")),
			})
			continue
		}
		records = append(records, catalog.RawRecord{
			Protocol:   e.Protocol,
			Chain:      e.Chain,
			Contract:   e.Contract,
			Address:    e.Address,
			SourceID:   a.cfg.ID,
			Confidence: a.cfg.Trust,
			FetchedAt:  fetchedAt,
		})
	}
	return records, warnings, nil
}

func (e Entry) missing() []string {
	var out []string
	for _, f := range []struct{ name, value string }{
		{"protocol", e.Protocol},
		{"chain", e.Chain},
		{"contract", e.Contract},
		{"address", e.Address},
	} {
		if strings.TrimSpace(f.value) == "" {
			out = append(out, f.name)
		}
	}
	return out
}
