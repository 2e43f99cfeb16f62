// Package normalize turns raw adapter claims into canonical records.
package normalize

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ethereum/go-ethereum/common"

	"github.com/devblac/dex-catalog/internal/allowlist"
	"github.com/devblac/dex-catalog/internal/catalog"
	"github.com/devblac/dex-catalog/internal/chains"
)

// Drop is a raw record that failed normalization.
type Drop struct {
	Raw  catalog.RawRecord
	Kind catalog.Kind
	Err  error
}

// Normalizer validates raw records against the allowlist and chain registry.
type Normalizer struct {
	protocols *allowlist.List
	chains    *chains.Registry
}

// New builds a normalizer. Both inputs are read-only for its lifetime.
func New(protocols *allowlist.List, registry *chains.Registry) *Normalizer {
	return &Normalizer{protocols: protocols, chains: registry}
}

// Normalize canonicalizes one record. Failures concern only that record.
func (n *Normalizer) Normalize(raw catalog.RawRecord) (catalog.Record, error) {
	slug := allowlist.CanonicalSlug(raw.Protocol)
	if _, ok := n.protocols.Lookup(slug); !ok {
		return catalog.Record{}, catalog.NewError(catalog.KindUnknownProtocol, fmt.Sprintf("protocol %q is not allowlisted", raw.Protocol))
	}

	chainID, err := n.chains.Resolve(raw.Chain)
	if err != nil {
		return catalog.Record{}, err
	}

	contract := ContractName(raw.Contract)
	if contract == "" {
		return catalog.Record{}, catalog.NewError(catalog.KindInvalidContractName, fmt.Sprintf("contract name %q is empty after canonicalization", raw.Contract))
	}

	addr, err := Address(raw.Address)
	if err != nil {
		return catalog.Record{}, err
	}

	return catalog.Record{
		Protocol:   slug,
		ChainID:    chainID,
		Contract:   contract,
		Address:    addr,
		SourceID:   raw.SourceID,
		Confidence: raw.Confidence,
	}, nil
}

// All normalizes raws in order, splitting them into accepted records and drops.
func (n *Normalizer) All(raws []catalog.RawRecord) ([]catalog.Record, []Drop) {
	records := make([]catalog.Record, 0, len(raws))
	var drops []Drop
	for _, raw := range raws {
		rec, err := n.Normalize(raw)
		if err != nil {
			drops = append(drops, Drop{Raw: raw, Kind: catalog.KindOf(err), Err: err})
			continue
		}
		records = append(records, rec)
	}
	return records, drops
}

// ContractName maps spelling variants of a contract name onto one lowercase
// token with every separator removed: "PoolFactory", "Pool Factory",
// "POOL_FACTORY" and "poolfactory" all become "poolfactory". Word
// boundaries are not inferred from letter case, so "NonfungiblePositionManager"
// and "NonFungiblePositionManager" collapse too.
func ContractName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Address validates a hex address and returns its EIP-55 checksum form.
// Mixed-case input must already carry a valid checksum.
func Address(s string) (string, error) {
	in := strings.TrimSpace(s)
	if !strings.HasPrefix(in, "0x") && !strings.HasPrefix(in, "0X") {
		return "", catalog.NewError(catalog.KindInvalidAddress, fmt.Sprintf("address %q lacks 0x prefix", s))
	}
	hex := in[2:]
	if len(hex) != 2*common.AddressLength {
		return "", catalog.NewError(catalog.KindInvalidAddress, fmt.Sprintf("address %q has %d hex digits, want %d", s, len(hex), 2*common.AddressLength))
	}
	if !common.IsHexAddress(in) {
		return "", catalog.NewError(catalog.KindInvalidAddress, fmt.Sprintf("address %q is not hex", s))
	}

	addr := common.HexToAddress(in)
	if addr == (common.Address{}) {
		return "", catalog.NewError(catalog.KindInvalidAddress, "zero address")
	}

	checksummed := addr.Hex()
	if hasUpper(hex) && hasLower(hex) && checksummed[2:] != hex {
		return "", catalog.NewError(catalog.KindInvalidAddress, fmt.Sprintf("address %q fails its checksum", s))
	}
	return checksummed, nil
}

func hasUpper(s string) bool { return strings.ToLower(s) != s }
func hasLower(s string) bool { return strings.ToUpper(s) != s }
