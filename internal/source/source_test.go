package source

import (
	"testing"

	"github.com/devblac/dex-catalog/internal/config"
	"github.com/devblac/dex-catalog/internal/source/balancer"
)

func TestBuildAllSkipsDisabledSources(t *testing.T) {
	off := false
	sources := []config.Source{
		{ID: "uni", Type: config.SourceUniswap, Location: "./uniswap/deployments", Trust: 3},
		{ID: "bal", Type: config.SourceBalancer, Location: "./balancer", Trust: 3, Enabled: &off},
		{ID: "agg", Type: config.SourceManifest, Location: "https://example.test/manifest.json", Trust: 1},
		{ID: "cur", Type: config.SourceCurated, Location: "./curated.yaml", Trust: 5},
	}

	adapters, err := BuildAll(sources, Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(adapters) != 3 {
		t.Fatalf("adapters = %d", len(adapters))
	}
	for i, want := range []struct {
		id    string
		trust int
	}{{"uni", 3}, {"agg", 1}, {"cur", 5}} {
		if adapters[i].ID() != want.id || adapters[i].Confidence() != want.trust {
			t.Fatalf("adapter %d = %s/%d", i, adapters[i].ID(), adapters[i].Confidence())
		}
	}
}

func TestBuildRejectsUnknownType(t *testing.T) {
	if _, err := Build(config.Source{ID: "x", Type: "graphql", Location: "."}, Options{}); err == nil {
		t.Fatalf("expected unsupported type error")
	}
	if _, err := Build(config.Source{ID: "x", Type: config.SourceCurated}, Options{}); err == nil {
		t.Fatalf("expected missing location error")
	}
}

func TestBuildPassesBalancerNetworks(t *testing.T) {
	a, err := Build(config.Source{
		ID:       "bal",
		Type:     config.SourceBalancer,
		Location: "./balancer",
		Trust:    3,
		Networks: []string{"mainnet", "optimism"},
	}, Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	b, ok := a.(*balancer.Adapter)
	if !ok {
		t.Fatalf("adapter type = %T", a)
	}
	if got := b.Networks(); len(got) != 2 || got[0] != "mainnet" || got[1] != "optimism" {
		t.Fatalf("networks = %v", got)
	}
}
