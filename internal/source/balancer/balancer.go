// Package balancer reads a Balancer-style deployments repository: a network
// index plus one file per network listing dated deployment tasks.
package balancer

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/devblac/dex-catalog/internal/catalog"
	"github.com/devblac/dex-catalog/internal/fetch"
)

// DefaultProtocol is used when the source config names no protocol.
const DefaultProtocol = "balancer"

const (
	addressesDir      = "addresses"
	networksIndex     = ".supported-networks.json"
	statusActive      = "ACTIVE"
	signatureDateForm = "20060102"
)

type Config struct {
	ID       string
	Trust    int
	Protocol string
	// Networks restricts the fetch to these network names. Empty means all.
	Networks []string
}

type networkInfo struct {
	ChainID uint64 `json:"chainId"`
}

type deployment struct {
	Version   string     `json:"version"`
	Status    string     `json:"status"`
	Contracts []contract `json:"contracts"`
}

type contract struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Adapter implements the balancer source.
type Adapter struct {
	cfg  Config
	tree fetch.Tree
	now  func() time.Time
}

func New(cfg Config, tree fetch.Tree, now func() time.Time) *Adapter {
	if cfg.Protocol == "" {
		cfg.Protocol = DefaultProtocol
	}
	if now == nil {
		now = time.Now
	}
	return &Adapter{cfg: cfg, tree: tree, now: now}
}

func (a *Adapter) ID() string      { return a.cfg.ID }
func (a *Adapter) Confidence() int { return a.cfg.Trust }

// Networks returns the configured network filter.
func (a *Adapter) Networks() []string { return append([]string(nil), a.cfg.Networks...) }

// Fetch emits, for every network and version, the address of each contract
// from its most recent ACTIVE deployment. Versions become protocol slugs
// ("balancer-v2", "balancer-v3") and the chain is the chainId the network
// index declares. A network file that cannot be read fails the whole fetch;
// one that does not decode is skipped with a warning.
func (a *Adapter) Fetch(ctx context.Context) ([]catalog.RawRecord, []catalog.AdapterWarning, error) {
	data, err := a.tree.ReadFile(ctx, path.Join(addressesDir, networksIndex))
	if err != nil {
		return nil, nil, err
	}
	var networks map[string]networkInfo
	if err := json.Unmarshal(data, &networks); err != nil {
		return nil, nil, catalog.WrapError(catalog.KindSourceMalformed, "decode "+networksIndex, err)
	}

	names := make([]string, 0, len(networks))
	for n := range networks {
		if a.wanted(n) {
			names = append(names, n)
		}
	}
	sort.Strings(names)

	fetchedAt := a.now().UTC()
	var (
		records  []catalog.RawRecord
		warnings []catalog.AdapterWarning
	)
	claimed := map[uint64]string{}
	for _, network := range names {
		if err := ctx.Err(); err != nil {
			return nil, nil, catalog.WrapError(catalog.KindSourceUnavailable, "fetch "+a.cfg.ID, err)
		}
		id := networks[network].ChainID
		if id == 0 {
			warnings = append(warnings, a.warn("network %s: missing chainId", network))
			continue
		}
		if prev, ok := claimed[id]; ok {
			warnings = append(warnings, a.warn("network %s: chain id %d already claimed by %s", network, id, prev))
			continue
		}
		claimed[id] = network

		data, err := a.tree.ReadFile(ctx, path.Join(addressesDir, network+".json"))
		if err != nil {
			return nil, nil, err
		}
		var deployments map[string]deployment
		if err := json.Unmarshal(data, &deployments); err != nil {
			warnings = append(warnings, a.warn("network %s: decode: %v", network, err))
			continue
		}

		latest, skipped := latestContracts(deployments)
		for _, sig := range skipped {
			warnings = append(warnings, a.warn("network %s: signature %q has no yyyymmdd date", network, sig))
		}
		for _, c := range latest {
			records = append(records, catalog.RawRecord{
				Protocol:   a.cfg.Protocol + "-" + c.Version,
				Chain:      strconv.FormatUint(id, 10),
				Contract:   c.Name,
				Address:    c.Address,
				SourceID:   a.cfg.ID,
				Confidence: a.cfg.Trust,
				FetchedAt:  fetchedAt,
			})
		}
	}
	return records, warnings, nil
}

func (a *Adapter) wanted(network string) bool {
	if len(a.cfg.Networks) == 0 {
		return true
	}
	for _, n := range a.cfg.Networks {
		if n == network {
			return true
		}
	}
	return false
}

func (a *Adapter) warn(format string, args ...any) catalog.AdapterWarning {
	return catalog.AdapterWarning{SourceID: a.cfg.ID, Message: fmt.Sprintf(format, args...)}
}

// picked is the winning deployment of one contract for one version.
type picked struct {
	Version   string
	Name      string
	Address   string
	Signature string
	Date      time.Time
}

// latestContracts picks, per version and contract name, the address from the
// latest-dated ACTIVE deployment. Equal dates fall back to the greater
// signature. Signatures without a leading date are returned as skipped.
// The result is ordered by version then contract name.
func latestContracts(deployments map[string]deployment) ([]picked, []string) {
	sigs := make([]string, 0, len(deployments))
	for sig := range deployments {
		sigs = append(sigs, sig)
	}
	sort.Strings(sigs)

	type key struct{ version, name string }
	best := map[key]picked{}
	var skipped []string
	for _, sig := range sigs {
		d := deployments[sig]
		if !strings.EqualFold(d.Status, statusActive) {
			continue
		}
		version := strings.ToLower(strings.TrimSpace(d.Version))
		if version == "" {
			continue
		}
		date, ok := SignatureDate(sig)
		if !ok {
			skipped = append(skipped, sig)
			continue
		}
		for _, c := range d.Contracts {
			k := key{version: version, name: c.Name}
			cur, seen := best[k]
			if seen && (date.Before(cur.Date) || (date.Equal(cur.Date) && sig < cur.Signature)) {
				continue
			}
			best[k] = picked{Version: version, Name: c.Name, Address: c.Address, Signature: sig, Date: date}
		}
	}

	out := make([]picked, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Version != out[j].Version {
			return out[i].Version < out[j].Version
		}
		return out[i].Name < out[j].Name
	})
	return out, skipped
}

// SignatureDate parses the leading yyyymmdd segment of a deployment signature
// such as "20250411-balancer-registry-initializer-v2".
func SignatureDate(signature string) (time.Time, bool) {
	head, _, _ := strings.Cut(signature, "-")
	if len(head) != len(signatureDateForm) {
		return time.Time{}, false
	}
	date, err := time.Parse(signatureDateForm, head)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}
