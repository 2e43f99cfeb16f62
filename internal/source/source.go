// Package source defines the adapter contract and builds adapters from
// configuration.
package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/devblac/dex-catalog/internal/catalog"
	"github.com/devblac/dex-catalog/internal/config"
	"github.com/devblac/dex-catalog/internal/fetch"
	"github.com/devblac/dex-catalog/internal/source/balancer"
	"github.com/devblac/dex-catalog/internal/source/curated"
	"github.com/devblac/dex-catalog/internal/source/manifest"
	"github.com/devblac/dex-catalog/internal/source/uniswap"
)

// Adapter reads one upstream source and reports its claims verbatim.
// Chain identifiers and contract names are not interpreted; records carry
// the adapter's id and trust tier.
type Adapter interface {
	ID() string
	Confidence() int
	Fetch(ctx context.Context) ([]catalog.RawRecord, []catalog.AdapterWarning, error)
}

// Options carries shared dependencies for adapter construction.
type Options struct {
	Client *http.Client
	Now    func() time.Time
}

// Build constructs the adapter described by cfg.
func Build(cfg config.Source, opts Options) (Adapter, error) {
	tree, err := fetch.Open(cfg.Location, opts.Client)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", cfg.ID, err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	switch cfg.Type {
	case config.SourceUniswap:
		return uniswap.New(uniswap.Config{ID: cfg.ID, Trust: cfg.Trust, Protocol: cfg.Protocol, Files: cfg.Files}, tree, now), nil
	case config.SourceBalancer:
		return balancer.New(balancer.Config{ID: cfg.ID, Trust: cfg.Trust, Protocol: cfg.Protocol, Networks: cfg.Networks}, tree, now), nil
	case config.SourceManifest:
		return manifest.New(manifest.Config{ID: cfg.ID, Trust: cfg.Trust, File: firstOr(cfg.Files, "")}, tree, now), nil
	case config.SourceCurated:
		return curated.New(curated.Config{ID: cfg.ID, Trust: cfg.Trust, File: firstOr(cfg.Files, "")}, tree, now), nil
	default:
		return nil, fmt.Errorf("source %s: unsupported type %q", cfg.ID, cfg.Type)
	}
}

// BuildAll constructs every enabled source in configuration order.
func BuildAll(sources []config.Source, opts Options) ([]Adapter, error) {
	out := make([]Adapter, 0, len(sources))
	for _, s := range sources {
		if !s.IsEnabled() {
			continue
		}
		a, err := Build(s, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func firstOr(values []string, def string) string {
	if len(values) > 0 {
		return values[0]
	}
	return def
}
