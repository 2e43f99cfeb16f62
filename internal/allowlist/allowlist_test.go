package allowlist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/devblac/dex-catalog/internal/catalog"
)

const sampleFeed = `
protocols:
  - slug: uniswap
    display_name: Uniswap
    versions: [v2, v3]
  - slug: Curve
  - slug: balancer
    versions: [v2, v3]
`

func TestParseAndLookup(t *testing.T) {
	l, err := Parse([]byte(sampleFeed))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if l.Len() != 3 {
		t.Fatalf("len = %d", l.Len())
	}

	tests := []struct {
		slug string
		want string
		ok   bool
	}{
		{"uniswap", "uniswap", true},
		{"uniswap-v3", "uniswap", true},
		{"Uniswap_V3", "uniswap", true},
		{"uniswap-v4", "", false},
		{"curve", "curve", true},
		{"curve-v2", "", false},
		{"balancer-v2", "balancer", true},
		{"sushiswap", "", false},
	}
	for _, tt := range tests {
		p, ok := l.Lookup(tt.slug)
		if ok != tt.ok {
			t.Errorf("Lookup(%q) ok = %v, want %v", tt.slug, ok, tt.ok)
			continue
		}
		if ok && p.Slug != tt.want {
			t.Errorf("Lookup(%q) = %q, want %q", tt.slug, p.Slug, tt.want)
		}
	}

	if p, _ := l.Lookup("curve"); p.DisplayName != "curve" {
		t.Fatalf("display name should default to slug, got %q", p.DisplayName)
	}
	ps := l.Protocols()
	if ps[0].Slug != "balancer" || ps[2].Slug != "uniswap" {
		t.Fatalf("protocols not sorted: %+v", ps)
	}
}

func TestParseTopLevelList(t *testing.T) {
	l, err := Parse([]byte(`[{"slug": "pancakeswap", "versions": ["v3"]}]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := l.Lookup("pancakeswap-v3"); !ok {
		t.Fatalf("expected versioned slug to be accepted")
	}
}

func TestNewRejectsOverlappingSlugs(t *testing.T) {
	_, err := New([]catalog.Protocol{
		{Slug: "balancer", Versions: []string{"v2"}},
		{Slug: "balancer-v2"},
	})
	if err == nil {
		t.Fatalf("expected overlap to be rejected")
	}
}

func TestLoadFailuresAreFatalKind(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(context.Background(), filepath.Join(dir, "missing.yaml"), nil)
	if !catalog.IsKind(err, catalog.KindAllowlistUnavailable) {
		t.Fatalf("missing file: got %v", err)
	}

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("protocols: []\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err = Load(context.Background(), empty, nil)
	if !catalog.IsKind(err, catalog.KindAllowlistUnavailable) {
		t.Fatalf("empty list: got %v", err)
	}
}

func TestLoadOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feeds/protocols.yaml" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	l, err := Load(context.Background(), srv.URL+"/feeds/protocols.yaml", srv.Client())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := l.Lookup("uniswap-v2"); !ok {
		t.Fatalf("expected uniswap-v2")
	}

	_, err = Load(context.Background(), srv.URL+"/feeds/other.yaml", srv.Client())
	if !catalog.IsKind(err, catalog.KindAllowlistUnavailable) {
		t.Fatalf("404: got %v", err)
	}
}

func TestCanonicalSlug(t *testing.T) {
	tests := map[string]string{
		" Uniswap V3 ": "uniswap-v3",
		"balancer__v2": "balancer-v2",
		"-curve-":      "curve",
		"PancakeSwap":  "pancakeswap",
	}
	for in, want := range tests {
		if got := CanonicalSlug(in); got != want {
			t.Errorf("CanonicalSlug(%q) = %q, want %q", in, got, want)
		}
	}
}
