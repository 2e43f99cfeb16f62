// Package resolve merges normalized claims into one address per merge key,
// or a conflict when the most trusted sources disagree.
package resolve

import (
	"sort"

	"github.com/devblac/dex-catalog/internal/catalog"
)

// Basis explains why a key's address was accepted.
type Basis string

const (
	BasisConsensus Basis = "consensus"
	BasisTrust     Basis = "trust"
)

// Decision is the accepted address for one key.
type Decision struct {
	Key       catalog.Key      `json:"key"`
	Address   string           `json:"address"`
	Basis     Basis            `json:"basis"`
	Sources   []string         `json:"sources"`
	Overruled []catalog.Record `json:"overruled,omitempty"`
}

// Result is the outcome of one resolution pass. Deployments are ordered by
// (protocol, chain); decisions and conflicts by key.
type Result struct {
	Deployments []catalog.Deployment
	Decisions   []Decision
	Conflicts   []catalog.Conflict
}

// ConflictPairs returns the artifact pairs that own at least one conflicted key.
func (r Result) ConflictPairs() map[catalog.Pair]bool {
	out := make(map[catalog.Pair]bool, len(r.Conflicts))
	for _, c := range r.Conflicts {
		out[c.Key.Pair()] = true
	}
	return out
}

// Overruled returns decisions where lower-trust claims were discarded.
func (r Result) Overruled() []Decision {
	var out []Decision
	for _, d := range r.Decisions {
		if len(d.Overruled) > 0 {
			out = append(out, d)
		}
	}
	return out
}

// Resolve groups records by merge key and decides each group independently.
// The result depends only on the set of records, not their order.
func Resolve(records []catalog.Record) Result {
	groups := make(map[catalog.Key][]catalog.Record)
	for _, r := range records {
		groups[r.Key()] = append(groups[r.Key()], r)
	}

	keys := make([]catalog.Key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	var res Result
	byPair := make(map[catalog.Pair]map[string]string)
	for _, k := range keys {
		claims := groups[k]
		sortClaims(claims)

		d, ok := decide(k, claims)
		if !ok {
			res.Conflicts = append(res.Conflicts, catalog.Conflict{Key: k, Claims: claims})
			continue
		}
		res.Decisions = append(res.Decisions, d)

		contracts := byPair[k.Pair()]
		if contracts == nil {
			contracts = make(map[string]string)
			byPair[k.Pair()] = contracts
		}
		contracts[k.Contract] = d.Address
	}

	pairs := make([]catalog.Pair, 0, len(byPair))
	for p := range byPair {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Less(pairs[j]) })
	for _, p := range pairs {
		res.Deployments = append(res.Deployments, catalog.Deployment{
			Protocol:  p.Protocol,
			ChainID:   p.ChainID,
			Contracts: byPair[p],
		})
	}
	return res
}

func decide(k catalog.Key, claims []catalog.Record) (Decision, bool) {
	if agree(claims) {
		return Decision{Key: k, Address: claims[0].Address, Basis: BasisConsensus, Sources: sources(claims)}, true
	}

	top := claims[0].Confidence
	for _, c := range claims[1:] {
		if c.Confidence > top {
			top = c.Confidence
		}
	}
	var winners, losers []catalog.Record
	for _, c := range claims {
		if c.Confidence == top {
			winners = append(winners, c)
		} else {
			losers = append(losers, c)
		}
	}
	if !agree(winners) {
		return Decision{}, false
	}
	return Decision{
		Key:       k,
		Address:   winners[0].Address,
		Basis:     BasisTrust,
		Sources:   sources(winners),
		Overruled: losers,
	}, true
}

func agree(claims []catalog.Record) bool {
	for _, c := range claims[1:] {
		if c.Address != claims[0].Address {
			return false
		}
	}
	return true
}

func sources(claims []catalog.Record) []string {
	seen := make(map[string]bool, len(claims))
	var out []string
	for _, c := range claims {
		if !seen[c.SourceID] {
			seen[c.SourceID] = true
			out = append(out, c.SourceID)
		}
	}
	sort.Strings(out)
	return out
}

// sortClaims orders claims by trust (highest first), then address and source.
func sortClaims(claims []catalog.Record) {
	sort.Slice(claims, func(i, j int) bool {
		a, b := claims[i], claims[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Address != b.Address {
			return a.Address < b.Address
		}
		return a.SourceID < b.SourceID
	})
}
