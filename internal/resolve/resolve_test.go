package resolve

import (
	"reflect"
	"testing"

	"github.com/devblac/dex-catalog/internal/catalog"
)

const (
	addrA = "0xAAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"
	addrB = "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"
)

func rec(protocol string, chain catalog.ChainID, contract, addr, source string, trust int) catalog.Record {
	return catalog.Record{Protocol: protocol, ChainID: chain, Contract: contract, Address: addr, SourceID: source, Confidence: trust}
}

func TestAgreementIsConsensusRegardlessOfTrust(t *testing.T) {
	res := Resolve([]catalog.Record{
		rec("uniswap-v3", 8453, "poolfactory", addrA, "a", 1),
		rec("uniswap-v3", 8453, "poolfactory", addrA, "b", 5),
	})
	if len(res.Conflicts) != 0 {
		t.Fatalf("unexpected conflicts: %+v", res.Conflicts)
	}
	if len(res.Decisions) != 1 || res.Decisions[0].Basis != BasisConsensus {
		t.Fatalf("decisions = %+v", res.Decisions)
	}
	if got := res.Decisions[0].Sources; !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("sources = %v", got)
	}
	if res.Deployments[0].Contracts["poolfactory"] != addrA {
		t.Fatalf("deployment = %+v", res.Deployments[0])
	}
}

func TestHigherTrustWins(t *testing.T) {
	res := Resolve([]catalog.Record{
		rec("uniswap-v3", 8453, "poolfactory", addrB, "b", 1),
		rec("uniswap-v3", 8453, "poolfactory", addrA, "a", 2),
	})
	if len(res.Conflicts) != 0 {
		t.Fatalf("unexpected conflicts: %+v", res.Conflicts)
	}
	d := res.Decisions[0]
	if d.Address != addrA || d.Basis != BasisTrust {
		t.Fatalf("decision = %+v", d)
	}
	if len(d.Overruled) != 1 || d.Overruled[0].SourceID != "b" {
		t.Fatalf("overruled = %+v", d.Overruled)
	}
	if len(res.Overruled()) != 1 {
		t.Fatalf("expected one overruled decision")
	}
}

func TestEqualTrustDisagreementConflicts(t *testing.T) {
	res := Resolve([]catalog.Record{
		rec("curve", 1, "router", addrA, "a", 1),
		rec("curve", 1, "router", addrB, "b", 1),
		rec("curve", 1, "registry", addrA, "a", 1),
	})
	if len(res.Conflicts) != 1 {
		t.Fatalf("conflicts = %+v", res.Conflicts)
	}
	c := res.Conflicts[0]
	if c.Key.String() != "curve/1/router" || len(c.Claims) != 2 {
		t.Fatalf("conflict = %+v", c)
	}
	if len(res.Deployments) != 1 {
		t.Fatalf("deployments = %+v", res.Deployments)
	}
	if _, ok := res.Deployments[0].Contracts["router"]; ok {
		t.Fatalf("conflicted contract must not be published")
	}
	if !res.ConflictPairs()[catalog.Pair{Protocol: "curve", ChainID: 1}] {
		t.Fatalf("conflict pair missing")
	}
}

func TestOnlyConflictedKeyLeavesNoDeployment(t *testing.T) {
	res := Resolve([]catalog.Record{
		rec("curve", 1, "router", addrA, "a", 1),
		rec("curve", 1, "router", addrB, "b", 1),
	})
	if len(res.Deployments) != 0 {
		t.Fatalf("deployments = %+v", res.Deployments)
	}
}

func TestTopTierDisagreementIgnoresLowerAgreement(t *testing.T) {
	res := Resolve([]catalog.Record{
		rec("curve", 1, "router", addrA, "a", 3),
		rec("curve", 1, "router", addrB, "b", 3),
		rec("curve", 1, "router", addrA, "c", 1),
		rec("curve", 1, "router", addrA, "d", 1),
	})
	if len(res.Conflicts) != 1 || len(res.Decisions) != 0 {
		t.Fatalf("expected conflict, got %+v", res)
	}
}

func permuteIndices(n int) [][]int {
	var out [][]int
	idx := make([]int, n)
	for i := 0; i < n; i++ {
		idx[i] = i
	}
	var gen func(int)
	gen = func(i int) {
		if i == n {
			out = append(out, append([]int(nil), idx...))
			return
		}
		for j := i; j < n; j++ {
			idx[i], idx[j] = idx[j], idx[i]
			gen(i + 1)
			idx[i], idx[j] = idx[j], idx[i]
		}
	}
	gen(0)
	return out
}

func TestResolveIsOrderIndependent(t *testing.T) {
	inputs := []catalog.Record{
		rec("uniswap-v3", 8453, "poolfactory", addrA, "a", 2),
		rec("uniswap-v3", 8453, "poolfactory", addrB, "b", 1),
		rec("curve", 1, "router", addrA, "a", 1),
		rec("curve", 1, "router", addrB, "c", 1),
		rec("uniswap-v3", 1, "quoter_v2", addrB, "c", 1),
	}

	var golden *Result
	for _, p := range permuteIndices(len(inputs)) {
		shuffled := make([]catalog.Record, 0, len(inputs))
		for _, i := range p {
			shuffled = append(shuffled, inputs[i])
		}
		res := Resolve(shuffled)
		if golden == nil {
			golden = &res
			continue
		}
		if !reflect.DeepEqual(res, *golden) {
			t.Fatalf("result changed for permutation %v:\n%+v\nvs\n%+v", p, res, *golden)
		}
	}
}
