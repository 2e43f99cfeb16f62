// Package allowlist loads the external feed of protocols that are in scope
// for publication.
package allowlist

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/devblac/dex-catalog/internal/catalog"
	"github.com/devblac/dex-catalog/internal/fetch"
)

// List is the immutable set of protocols a run may publish.
type List struct {
	protocols []catalog.Protocol
	accepted  map[string]catalog.Protocol
}

type document struct {
	Protocols []catalog.Protocol `yaml:"protocols"`
}

// New validates protocols and indexes every slug they accept. An entry with
// versions accepts "<slug>-<version>" for each version as well as its bare slug.
func New(protocols []catalog.Protocol) (*List, error) {
	l := &List{accepted: make(map[string]catalog.Protocol, len(protocols)*2)}
	for i, p := range protocols {
		p.Slug = CanonicalSlug(p.Slug)
		if p.Slug == "" {
			return nil, fmt.Errorf("protocol %d: slug is required", i)
		}
		if p.DisplayName == "" {
			p.DisplayName = p.Slug
		}
		versions := make([]string, 0, len(p.Versions))
		for _, v := range p.Versions {
			if v = CanonicalSlug(v); v != "" {
				versions = append(versions, v)
			}
		}
		p.Versions = versions

		ids := []string{p.Slug}
		for _, v := range versions {
			ids = append(ids, p.Slug+"-"+v)
		}
		for _, id := range ids {
			if prev, ok := l.accepted[id]; ok {
				return nil, fmt.Errorf("protocol slug %q claimed by both %q and %q", id, prev.Slug, p.Slug)
			}
			l.accepted[id] = p
		}
		l.protocols = append(l.protocols, p)
	}
	sort.Slice(l.protocols, func(i, j int) bool { return l.protocols[i].Slug < l.protocols[j].Slug })
	return l, nil
}

// Parse decodes a YAML or JSON feed. Both a top-level list and a document
// with a "protocols" key are accepted.
func Parse(data []byte) (*List, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("allowlist is empty")
	}

	var protocols []catalog.Protocol
	if trimmed[0] == '[' || trimmed[0] == '-' {
		if err := yaml.Unmarshal(trimmed, &protocols); err != nil {
			return nil, fmt.Errorf("parse allowlist: %w", err)
		}
	} else {
		var doc document
		if err := yaml.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("parse allowlist: %w", err)
		}
		protocols = doc.Protocols
	}
	if len(protocols) == 0 {
		return nil, fmt.Errorf("allowlist has no protocols")
	}
	return New(protocols)
}

// Load reads the feed at location (file path or URL). Any failure is an
// AllowlistUnavailable error: without the list nothing can be validated.
func Load(ctx context.Context, location string, client *http.Client) (*List, error) {
	dir, name := filepath.Split(location)
	if strings.Contains(location, "://") {
		idx := strings.LastIndex(location, "/")
		dir, name = location[:idx], location[idx+1:]
	}
	if dir == "" {
		dir = "."
	}

	tree, err := fetch.Open(dir, client)
	if err != nil {
		return nil, catalog.WrapError(catalog.KindAllowlistUnavailable, "open allowlist", err)
	}
	data, err := tree.ReadFile(ctx, name)
	if err != nil {
		return nil, catalog.WrapError(catalog.KindAllowlistUnavailable, "read allowlist "+location, err)
	}
	l, err := Parse(data)
	if err != nil {
		return nil, catalog.WrapError(catalog.KindAllowlistUnavailable, "load allowlist "+location, err)
	}
	return l, nil
}

// Lookup returns the protocol entry that accepts slug.
func (l *List) Lookup(slug string) (catalog.Protocol, bool) {
	p, ok := l.accepted[CanonicalSlug(slug)]
	return p, ok
}

// Protocols returns the entries ordered by slug.
func (l *List) Protocols() []catalog.Protocol {
	return append([]catalog.Protocol(nil), l.protocols...)
}

// Len returns the number of entries.
func (l *List) Len() int { return len(l.protocols) }

// CanonicalSlug lowercases s and joins words with single dashes.
func CanonicalSlug(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(strings.TrimSpace(s)), func(r rune) bool {
		return r == ' ' || r == '_' || r == '-' || r == '\t'
	})
	return strings.Join(fields, "-")
}
