package chains

import (
	"testing"

	"github.com/devblac/dex-catalog/internal/catalog"
)

func TestAliasesResolveToSameChain(t *testing.T) {
	reg := Default()

	tests := []struct {
		want    catalog.ChainID
		aliases []string
	}{
		{56, []string{"bsc", "bnb", "bnb-chain", "BNB Chain", " bnb_chain ", "binance-smart-chain", "56", "eip155:56"}},
		{1, []string{"mainnet", "ethereum", "Ethereum", "ETH", "eth.mainnet", "1"}},
		{42161, []string{"arbitrum", "arbitrum-one", "Arbitrum One", "arbitrum_one", "arb1"}},
		{8453, []string{"base", "BASE", "8453"}},
		{43114, []string{"avalanche", "avax", "Avalanche C-Chain", "c-chain"}},
	}

	for _, tt := range tests {
		for _, alias := range tt.aliases {
			got, err := reg.Resolve(alias)
			if err != nil {
				t.Errorf("Resolve(%q) error: %v", alias, err)
				continue
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %d, want %d", alias, got, tt.want)
			}
		}
	}
}

func TestUnknownAliasFails(t *testing.T) {
	reg := Default()

	for _, alias := range []string{"", "   ", "not-a-chain", "999999999", "eip155:424242"} {
		_, err := reg.Resolve(alias)
		if err == nil {
			t.Errorf("Resolve(%q) expected error", alias)
			continue
		}
		if !catalog.IsKind(err, catalog.KindUnknownChainAlias) {
			t.Errorf("Resolve(%q) error kind = %q", alias, catalog.KindOf(err))
		}
	}
}

func TestNameReverseLookup(t *testing.T) {
	reg := Default()

	name, ok := reg.Name(56)
	if !ok || name != "bsc" {
		t.Fatalf("Name(56) = %q, %v", name, ok)
	}
	if _, ok := reg.Name(424242); ok {
		t.Fatalf("expected unknown id to miss")
	}
}

func TestNewRejectsAmbiguousAlias(t *testing.T) {
	_, err := New([]Chain{
		{ID: 1, Name: "ethereum", Aliases: []string{"main"}},
		{ID: 2, Name: "other", Aliases: []string{"Main"}},
	})
	if err == nil {
		t.Fatalf("expected duplicate alias to be rejected")
	}
}

func TestWithExtraAddsWithoutMutatingBase(t *testing.T) {
	base := Default()
	ext, err := base.WithExtra([]Chain{
		{ID: 8453, Aliases: []string{"coinbase-l2"}},
		{ID: 424242, Name: "devnet", Aliases: []string{"local-devnet"}},
	})
	if err != nil {
		t.Fatalf("with extra: %v", err)
	}

	if id, err := ext.Resolve("coinbase-l2"); err != nil || id != 8453 {
		t.Fatalf("extended alias: id=%d err=%v", id, err)
	}
	if id, err := ext.Resolve("local_devnet"); err != nil || id != 424242 {
		t.Fatalf("extra chain: id=%d err=%v", id, err)
	}
	if _, err := base.Resolve("coinbase-l2"); err == nil {
		t.Fatalf("base registry must stay unchanged")
	}
	if name, _ := ext.Name(8453); name != "base" {
		t.Fatalf("extra aliases must not rename a chain, got %q", name)
	}

	if _, err := base.WithExtra([]Chain{{ID: 10, Aliases: []string{"bsc"}}}); err == nil {
		t.Fatalf("expected alias collision with builtin to fail")
	}
}

func TestNormalizeAlias(t *testing.T) {
	tests := map[string]string{
		"  BNB Chain ":      "bnb-chain",
		"bnb__chain":        "bnb-chain",
		"Avalanche C.Chain": "avalanche-c-chain",
		"polygon/pos":       "polygon-pos",
		"-base-":            "base",
	}
	for in, want := range tests {
		if got := NormalizeAlias(in); got != want {
			t.Errorf("NormalizeAlias(%q) = %q, want %q", in, got, want)
		}
	}
}
