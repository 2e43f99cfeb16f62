package balancer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/devblac/dex-catalog/internal/catalog"
	"github.com/devblac/dex-catalog/internal/fetch"
)

const (
	vaultV2    = "0xBA12222222228d8Ba445958a75a0704d566BF2C8"
	vaultV3    = "0xbA1333333333a1BA1108E8412f11850A5C319bA9"
	routerOld  = "0x5C6fb490BDFD3246EB0bB062c168DeCAF4bD9FDd"
	routerNew  = "0xAE563E3f8219521950555F5962419C8919758Ea2"
	routerSame = "0x0BF61f706105EA44694f2e92986bD01C39930280"
)

var fixedNow = func() time.Time { return time.Date(2025, 4, 11, 0, 0, 0, 0, time.UTC) }

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "addresses"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(root, "addresses", name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return root
}

const mainnetFile = `{
  "20210418-vault": {"version": "v2", "status": "ACTIVE", "contracts": [{"name": "Vault", "address": "` + vaultV2 + `"}]},
  "20220325-batch-relayer": {"version": "v2", "status": "DEPRECATED", "contracts": [{"name": "BatchRelayer", "address": "` + routerOld + `"}]},
  "20241204-v3-vault": {"version": "v3", "status": "ACTIVE", "contracts": [{"name": "Vault", "address": "` + vaultV3 + `"}]},
  "20241205-v3-router": {"version": "v3", "status": "ACTIVE", "contracts": [{"name": "Router", "address": "` + routerOld + `"}]},
  "20250307-v3-router-v2": {"version": "v3", "status": "ACTIVE", "contracts": [{"name": "Router", "address": "` + routerNew + `"}]},
  "20250411-balancer-registry-initializer-v2": {"version": "v3", "status": "SCRIPT", "contracts": [{"name": "Router", "address": "` + routerSame + `"}]},
  "latest-router": {"version": "v3", "status": "ACTIVE", "contracts": [{"name": "Router", "address": "` + routerSame + `"}]}
}`

func TestFetchPicksLatestActivePerVersion(t *testing.T) {
	root := writeRepo(t, map[string]string{
		".supported-networks.json": `{"mainnet": {"chainId": 1}, "ethereum": {"chainId": 1}, "gnosis": {"chainId": 100}}`,
		"mainnet.json":             mainnetFile,
		"ethereum.json":            mainnetFile,
		"gnosis.json":              `not json`,
	})

	a := New(Config{ID: "balancer-repo", Trust: 3}, fetch.NewLocalTree(root), fixedNow)
	records, warnings, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	got := map[string]string{}
	for _, r := range records {
		if r.Chain != "1" {
			t.Fatalf("unexpected chain %q (duplicate chain id should be skipped)", r.Chain)
		}
		got[r.Protocol+"/"+r.Contract] = r.Address
	}
	want := map[string]string{
		"balancer-v2/Vault":  vaultV2,
		"balancer-v3/Vault":  vaultV3,
		"balancer-v3/Router": routerNew,
	}
	if len(got) != len(want) {
		t.Fatalf("records = %v", got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}

	// ethereum wins chain 1 (sorted first), gnosis does not decode, and the
	// undated ACTIVE signature is skipped.
	if len(warnings) != 3 {
		t.Fatalf("warnings = %+v", warnings)
	}
}

func TestEqualDatesPreferGreaterSignature(t *testing.T) {
	deployments := map[string]deployment{
		"20250101-a-router": {Version: "v2", Status: "ACTIVE", Contracts: []contract{{Name: "Router", Address: routerOld}}},
		"20250101-b-router": {Version: "v2", Status: "ACTIVE", Contracts: []contract{{Name: "Router", Address: routerNew}}},
	}
	latest, skipped := latestContracts(deployments)
	if len(skipped) != 0 || len(latest) != 1 || latest[0].Address != routerNew {
		t.Fatalf("latest = %+v skipped = %v", latest, skipped)
	}
}

func TestSignatureDate(t *testing.T) {
	tests := []struct {
		sig  string
		want time.Time
		ok   bool
	}{
		{"20250411-balancer-registry-initializer-v2", time.Date(2025, 4, 11, 0, 0, 0, 0, time.UTC), true},
		{"20231225-some-deployment", time.Date(2023, 12, 25, 0, 0, 0, 0, time.UTC), true},
		{"20231325-bad-month", time.Time{}, false},
		{"invalid-signature", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := SignatureDate(tt.sig)
		if ok != tt.ok || !got.Equal(tt.want) {
			t.Errorf("SignatureDate(%q) = %v, %v", tt.sig, got, ok)
		}
	}
}

func TestFetchFailsWithoutNetworkIndex(t *testing.T) {
	a := New(Config{ID: "b", Trust: 1}, fetch.NewLocalTree(t.TempDir()), fixedNow)
	if _, _, err := a.Fetch(context.Background()); !catalog.IsKind(err, catalog.KindSourceUnavailable) {
		t.Fatalf("expected SourceUnavailable, got %v", err)
	}

	root := writeRepo(t, map[string]string{".supported-networks.json": `not json`})
	a = New(Config{ID: "b", Trust: 1}, fetch.NewLocalTree(root), fixedNow)
	if _, _, err := a.Fetch(context.Background()); !catalog.IsKind(err, catalog.KindSourceMalformed) {
		t.Fatalf("expected SourceMalformed, got %v", err)
	}
}

func TestFetchRestrictsNetworks(t *testing.T) {
	root := writeRepo(t, map[string]string{
		".supported-networks.json": `{"mainnet": {"chainId": 1}, "gnosis": {"chainId": 100}}`,
		"mainnet.json":             mainnetFile,
	})
	a := New(Config{ID: "b", Trust: 1, Protocol: "bal", Networks: []string{"mainnet"}}, fetch.NewLocalTree(root), fixedNow)
	records, warnings, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 3 || records[0].Protocol != "bal-v2" {
		t.Fatalf("records = %+v", records)
	}
	if len(warnings) != 1 {
		t.Fatalf("only the undated signature should warn: %+v", warnings)
	}
}

func TestFetchUsesIndexChainID(t *testing.T) {
	root := writeRepo(t, map[string]string{
		".supported-networks.json":   `{"polygon-zkevm-mainnet": {"chainId": 1101}, "nameless": {}}`,
		"polygon-zkevm-mainnet.json": `{"20230404-vault": {"version": "v2", "status": "ACTIVE", "contracts": [{"name": "Vault", "address": "` + vaultV2 + `"}]}}`,
	})
	a := New(Config{ID: "b", Trust: 1}, fetch.NewLocalTree(root), fixedNow)
	records, warnings, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 1 || records[0].Chain != "1101" {
		t.Fatalf("records = %+v", records)
	}
	if len(warnings) != 1 {
		t.Fatalf("network without chainId should warn: %+v", warnings)
	}
}

func TestUnreadableNetworkFileFailsFetch(t *testing.T) {
	root := writeRepo(t, map[string]string{
		".supported-networks.json": `{"mainnet": {"chainId": 1}, "optimism": {"chainId": 10}}`,
		"mainnet.json":             mainnetFile,
	})
	a := New(Config{ID: "b", Trust: 1}, fetch.NewLocalTree(root), fixedNow)
	records, _, err := a.Fetch(context.Background())
	if !catalog.IsKind(err, catalog.KindSourceUnavailable) {
		t.Fatalf("expected SourceUnavailable, got %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("partial records leaked: %+v", records)
	}
}
