package catalog

import (
	"fmt"
	"time"
)

// ChainID is the canonical numeric chain identifier used for every artifact path.
type ChainID uint64

func (c ChainID) String() string { return fmt.Sprintf("%d", uint64(c)) }

// Protocol is one entry of the allowlist feed.
type Protocol struct {
	Slug        string   `json:"slug" yaml:"slug"`
	DisplayName string   `json:"display_name" yaml:"display_name"`
	Versions    []string `json:"versions,omitempty" yaml:"versions,omitempty"`
}

// RawRecord is a single deployment claim exactly as an adapter found it.
type RawRecord struct {
	Protocol   string
	Chain      string
	Contract   string
	Address    string
	SourceID   string
	Confidence int
	FetchedAt  time.Time
}

// Record is a normalized claim: chain resolved, name and address canonical.
type Record struct {
	Protocol   string  `json:"protocol"`
	ChainID    ChainID `json:"chain_id"`
	Contract   string  `json:"contract"`
	Address    string  `json:"address"`
	SourceID   string  `json:"source"`
	Confidence int     `json:"confidence"`
}

// Key returns the merge key of the record.
func (r Record) Key() Key {
	return Key{Protocol: r.Protocol, ChainID: r.ChainID, Contract: r.Contract}
}

// Key identifies "the same fact" claimed by possibly many sources.
type Key struct {
	Protocol string  `json:"protocol"`
	ChainID  ChainID `json:"chain_id"`
	Contract string  `json:"contract"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%s", k.Protocol, uint64(k.ChainID), k.Contract)
}

// Less orders keys by protocol, chain, then contract.
func (k Key) Less(o Key) bool {
	if k.Protocol != o.Protocol {
		return k.Protocol < o.Protocol
	}
	if k.ChainID != o.ChainID {
		return k.ChainID < o.ChainID
	}
	return k.Contract < o.Contract
}

// Pair identifies one artifact file.
type Pair struct {
	Protocol string  `json:"protocol"`
	ChainID  ChainID `json:"chain_id"`
}

func (p Pair) String() string { return fmt.Sprintf("%s/%d", p.Protocol, uint64(p.ChainID)) }

// Less orders pairs by protocol then chain.
func (p Pair) Less(o Pair) bool {
	if p.Protocol != o.Protocol {
		return p.Protocol < o.Protocol
	}
	return p.ChainID < o.ChainID
}

// Pair returns the artifact pair the key belongs to.
func (k Key) Pair() Pair { return Pair{Protocol: k.Protocol, ChainID: k.ChainID} }

// Deployment is the resolved contract set of one protocol on one chain.
type Deployment struct {
	Protocol  string
	ChainID   ChainID
	Contracts map[string]string
}

// Pair returns the artifact pair of the deployment.
func (d Deployment) Pair() Pair { return Pair{Protocol: d.Protocol, ChainID: d.ChainID} }

// Conflict is a merge key whose top-trust claims disagree.
type Conflict struct {
	Key    Key      `json:"key"`
	Claims []Record `json:"claims"`
}

// AdapterWarning is a non-fatal issue an adapter hit while parsing its source.
type AdapterWarning struct {
	SourceID string `json:"source"`
	Message  string `json:"message"`
}
