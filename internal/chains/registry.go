// Package chains maps the many names sources use for a blockchain onto its
// canonical numeric chain ID.
package chains

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/devblac/dex-catalog/internal/catalog"
)

// Chain is one registry entry. Name is the canonical display name and is
// always resolvable as an alias.
type Chain struct {
	ID      catalog.ChainID `json:"id" yaml:"id"`
	Name    string          `json:"name" yaml:"name"`
	Aliases []string        `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

// Registry resolves chain identifiers. It is immutable after construction.
type Registry struct {
	byAlias map[string]catalog.ChainID
	byID    map[catalog.ChainID]Chain
}

// New builds a registry and rejects aliases claimed by two different IDs.
func New(entries []Chain) (*Registry, error) {
	r := &Registry{
		byAlias: make(map[string]catalog.ChainID, len(entries)*3),
		byID:    make(map[catalog.ChainID]Chain, len(entries)),
	}
	for _, c := range entries {
		if err := r.add(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Default returns the built-in registry.
func Default() *Registry {
	r, err := New(builtin)
	if err != nil {
		panic(fmt.Sprintf("chains: builtin table invalid: %v", err))
	}
	return r
}

// WithExtra returns a new registry with extra entries layered on top.
// An extra entry for a known ID only adds aliases.
func (r *Registry) WithExtra(extra []Chain) (*Registry, error) {
	out := &Registry{
		byAlias: make(map[string]catalog.ChainID, len(r.byAlias)+len(extra)*2),
		byID:    make(map[catalog.ChainID]Chain, len(r.byID)+len(extra)),
	}
	for k, v := range r.byAlias {
		out.byAlias[k] = v
	}
	for k, v := range r.byID {
		v.Aliases = append([]string(nil), v.Aliases...)
		out.byID[k] = v
	}
	for _, c := range extra {
		if err := out.add(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Registry) add(c Chain) error {
	if c.ID == 0 {
		return fmt.Errorf("chain %q: id is required", c.Name)
	}
	existing, known := r.byID[c.ID]
	if !known {
		if c.Name == "" {
			return fmt.Errorf("chain %d: name is required", c.ID)
		}
		existing = Chain{ID: c.ID, Name: NormalizeAlias(c.Name)}
	}

	names := append([]string{c.Name}, c.Aliases...)
	for _, raw := range names {
		alias := NormalizeAlias(raw)
		if alias == "" {
			continue
		}
		if id, ok := r.byAlias[alias]; ok && id != c.ID {
			return fmt.Errorf("alias %q maps to both %d and %d", alias, id, c.ID)
		}
		if _, ok := r.byAlias[alias]; !ok && alias != existing.Name {
			existing.Aliases = append(existing.Aliases, alias)
		}
		r.byAlias[alias] = c.ID
	}
	r.byID[c.ID] = existing
	return nil
}

// Resolve maps an identifier to its canonical chain ID. Names and aliases are
// matched case-insensitively; decimal IDs and eip155:<id> resolve when the ID
// is registered.
func (r *Registry) Resolve(identifier string) (catalog.ChainID, error) {
	alias := NormalizeAlias(identifier)
	if alias == "" {
		return 0, catalog.NewError(catalog.KindUnknownChainAlias, "empty chain identifier")
	}
	if id, ok := r.byAlias[alias]; ok {
		return id, nil
	}

	numeric := strings.TrimPrefix(alias, "eip155:")
	if n, err := strconv.ParseUint(numeric, 10, 64); err == nil {
		if _, ok := r.byID[catalog.ChainID(n)]; ok {
			return catalog.ChainID(n), nil
		}
	}
	return 0, catalog.NewError(catalog.KindUnknownChainAlias, fmt.Sprintf("unknown chain %q", identifier))
}

// Name returns the canonical display name of a chain ID.
func (r *Registry) Name(id catalog.ChainID) (string, bool) {
	c, ok := r.byID[id]
	return c.Name, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id catalog.ChainID) bool {
	_, ok := r.byID[id]
	return ok
}

// Chains lists every registered chain ordered by ID.
func (r *Registry) Chains() []Chain {
	out := make([]Chain, 0, len(r.byID))
	for _, c := range r.byID {
		aliases := append([]string(nil), c.Aliases...)
		sort.Strings(aliases)
		c.Aliases = aliases
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered chains.
func (r *Registry) Len() int { return len(r.byID) }

// NormalizeAlias lowercases and trims an identifier and folds the separator
// variants sources use ("_", " ", ".", "/") into single dashes.
func NormalizeAlias(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	dash := false
	for _, r := range s {
		switch r {
		case '-', '_', ' ', '.', '/', '\t':
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = true
		default:
			b.WriteRune(r)
			dash = false
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
