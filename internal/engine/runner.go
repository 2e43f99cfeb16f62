// Package engine runs one catalog refresh: fetch, normalize, resolve, publish.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/devblac/dex-catalog/internal/allowlist"
	"github.com/devblac/dex-catalog/internal/artifact"
	"github.com/devblac/dex-catalog/internal/catalog"
	"github.com/devblac/dex-catalog/internal/chains"
	"github.com/devblac/dex-catalog/internal/fetch"
	"github.com/devblac/dex-catalog/internal/normalize"
	"github.com/devblac/dex-catalog/internal/report"
	"github.com/devblac/dex-catalog/internal/resolve"
	"github.com/devblac/dex-catalog/internal/source"
)

// Ledger persists run reports.
type Ledger interface {
	RecordRun(ctx context.Context, r *report.Report) error
}

// Mirror receives the published catalog after a non-dry run.
type Mirror interface {
	Sync(ctx context.Context, runID string, deployments []catalog.Deployment, removed []catalog.Pair) error
}

// Notifier is told about every finished run and decides itself whether to speak.
type Notifier interface {
	Notify(ctx context.Context, r *report.Report) error
}

// Observer records run metrics.
type Observer interface {
	Observe(r *report.Report)
}

// Options is everything a run needs. It is read, never mutated.
type Options struct {
	Protocols *allowlist.List
	Chains    *chains.Registry
	Adapters  []source.Adapter
	Writer    *artifact.Writer

	AdapterTimeout time.Duration
	Timeouts       map[string]time.Duration // per adapter id, overrides AdapterTimeout
	MaxRetries     int
	RetryBackoff   time.Duration
	Concurrency    int
	Prune          bool

	Now    func() time.Time
	Logger *zap.Logger

	Ledger    Ledger
	Mirror    Mirror
	Notifiers []Notifier
	Observer  Observer
}

// Runner executes one catalog refresh.
type Runner struct {
	opts       Options
	normalizer *normalize.Normalizer
}

// NewRunner validates opts and fills defaults.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Protocols == nil {
		return nil, fmt.Errorf("runner: allowlist is required")
	}
	if opts.Chains == nil {
		return nil, fmt.Errorf("runner: chain registry is required")
	}
	if opts.Writer == nil {
		return nil, fmt.Errorf("runner: artifact writer is required")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{
		opts:       opts,
		normalizer: normalize.New(opts.Protocols, opts.Chains),
	}, nil
}

// fetched is one adapter's slot. Each goroutine owns exactly one.
type fetched struct {
	result  report.AdapterResult
	records []catalog.RawRecord
}

// Run fetches every source, resolves the claims and syncs the artifact
// tree. The returned error is reserved for fatal conditions; a run that
// published with gaps returns a degraded report and nil.
func (r *Runner) Run(ctx context.Context) (*report.Report, error) {
	log := r.opts.Logger
	rep := report.New(r.opts.Now(), r.opts.Writer.DryRun())
	log = log.With(zap.String("run_id", rep.RunID))
	log.Info("run started", zap.Int("adapters", len(r.opts.Adapters)), zap.Bool("dry_run", rep.DryRun))

	slots := r.fetchAll(ctx, log)
	if err := ctx.Err(); err != nil {
		log.Warn("run cancelled before publishing", zap.Error(err))
		return nil, fmt.Errorf("run cancelled: %w", err)
	}

	var raws []catalog.RawRecord
	adapterFailed := false
	for _, s := range slots {
		rep.Adapters = append(rep.Adapters, s.result)
		raws = append(raws, s.records...)
		if s.result.Status == report.AdapterFailed {
			adapterFailed = true
		}
	}

	records, drops := r.normalizer.All(raws)
	rep.Records = report.Records{Fetched: len(raws), Normalized: len(records), Dropped: len(drops)}
	for _, d := range drops {
		rep.Drops = append(rep.Drops, report.Drop{
			SourceID: d.Raw.SourceID,
			Protocol: d.Raw.Protocol,
			Chain:    d.Raw.Chain,
			Contract: d.Raw.Contract,
			Address:  d.Raw.Address,
			Kind:     d.Kind,
			Reason:   d.Err.Error(),
		})
	}
	if len(drops) > 0 {
		log.Warn("records dropped", zap.Int("count", len(drops)))
	}

	resolved := resolve.Resolve(records)
	for _, d := range resolved.Overruled() {
		rep.Overrides = append(rep.Overrides, report.Override{
			Key:       d.Key.String(),
			Address:   d.Address,
			Sources:   d.Sources,
			Overruled: claims(d.Overruled),
		})
	}
	for _, c := range resolved.Conflicts {
		rep.Conflicts = append(rep.Conflicts, report.Conflict{
			Key:      c.Key.String(),
			Protocol: c.Key.Protocol,
			ChainID:  c.Key.ChainID,
			Contract: c.Key.Contract,
			Claims:   claims(c.Claims),
		})
		log.Warn("conflict", zap.String("merge_key", c.Key.String()), zap.Int("claims", len(c.Claims)))
	}

	synced := r.opts.Writer.Sync(ctx, resolved.Deployments, artifact.SyncOptions{
		Prune:         r.opts.Prune,
		AdapterFailed: adapterFailed,
		Conflicted:    resolved.ConflictPairs(),
	})
	recordFiles(rep, synced)

	rep.FinishedAt = r.opts.Now().UTC()
	log.Info("run finished",
		zap.String("status", rep.Status()),
		zap.Int("written", rep.Files.Written),
		zap.Int("unchanged", rep.Files.Unchanged),
		zap.Int("removed", rep.Files.Removed),
		zap.Int("conflicts", len(rep.Conflicts)),
	)

	r.afterRun(ctx, log, rep, resolved.Deployments, synced)
	return rep, nil
}

func (r *Runner) fetchAll(ctx context.Context, log *zap.Logger) []fetched {
	slots := make([]fetched, len(r.opts.Adapters))
	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, a := range r.opts.Adapters {
		i, a := i, a
		g.Go(func() error {
			slots[i] = r.fetchOne(ctx, a)
			res := slots[i].result
			if res.Status == report.AdapterFailed {
				log.Warn("adapter failed",
					zap.String("adapter", res.ID),
					zap.String("kind", string(res.ErrorKind)),
					zap.Int("attempts", res.Attempts),
					zap.String("error", res.Error),
				)
			} else {
				log.Info("adapter fetched",
					zap.String("adapter", res.ID),
					zap.Int("records", res.Records),
					zap.Int("warnings", len(res.Warnings)),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	return slots
}

func (r *Runner) fetchOne(ctx context.Context, a source.Adapter) fetched {
	start := r.opts.Now()
	timeout := r.opts.AdapterTimeout
	if t := r.opts.Timeouts[a.ID()]; t > 0 {
		timeout = t
	}
	var (
		raws     []catalog.RawRecord
		warnings []catalog.AdapterWarning
	)
	attempts, err := fetch.Retry(ctx, r.opts.MaxRetries, r.opts.RetryBackoff, func(ctx context.Context) error {
		actx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		recs, warns, err := a.Fetch(actx)
		if err != nil {
			return err
		}
		raws, warnings = recs, warns
		return nil
	})

	res := report.AdapterResult{
		ID:         a.ID(),
		Confidence: a.Confidence(),
		Status:     report.AdapterOK,
		Attempts:   attempts,
		DurationMS: r.opts.Now().Sub(start).Milliseconds(),
	}
	for _, w := range warnings {
		res.Warnings = append(res.Warnings, w.Message)
	}
	if err != nil {
		res.Status = report.AdapterFailed
		res.ErrorKind = failureKind(err)
		res.Error = err.Error()
		res.Warnings = nil
		return fetched{result: res}
	}
	res.Records = len(raws)
	return fetched{result: res, records: raws}
}

// failureKind classifies an adapter error. Anything untyped, timeouts
// included, counts as the source being unavailable.
func failureKind(err error) catalog.Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return catalog.KindSourceUnavailable
	}
	if k := catalog.KindOf(err); k != "" {
		return k
	}
	return catalog.KindSourceUnavailable
}

func claims(records []catalog.Record) []report.Claim {
	out := make([]report.Claim, 0, len(records))
	for _, rec := range records {
		out = append(out, report.Claim{SourceID: rec.SourceID, Address: rec.Address, Confidence: rec.Confidence})
	}
	return out
}

func recordFiles(rep *report.Report, synced artifact.SyncResult) {
	add := func(o artifact.Outcome) {
		rep.FileResults = append(rep.FileResults, report.FileResult{
			Path:     o.Path,
			Protocol: o.Pair.Protocol,
			ChainID:  o.Pair.ChainID,
			Status:   string(o.Status),
			CID:      o.CID,
			Error:    o.Error,
		})
	}
	for _, o := range synced.Outcomes {
		add(o)
		switch o.Status {
		case artifact.StatusWritten:
			rep.Files.Written++
		case artifact.StatusUnchanged:
			rep.Files.Unchanged++
		case artifact.StatusRemoved:
			rep.Files.Removed++
		case artifact.StatusKept:
			rep.Files.Kept++
		case artifact.StatusFailed:
			rep.Files.Failed++
		}
	}
	add(synced.Index)
	if synced.Index.Status == artifact.StatusFailed {
		rep.Files.Failed++
	}
}

// afterRun feeds the finished report to the optional hooks. Hook failures
// are logged; they never change what was published.
func (r *Runner) afterRun(ctx context.Context, log *zap.Logger, rep *report.Report, deployments []catalog.Deployment, synced artifact.SyncResult) {
	if r.opts.Ledger != nil {
		if err := r.opts.Ledger.RecordRun(ctx, rep); err != nil {
			log.Error("record run in ledger", zap.Error(err))
		}
	}

	if r.opts.Mirror != nil && !rep.DryRun {
		published, removed := mirrorable(deployments, synced)
		if err := r.opts.Mirror.Sync(ctx, rep.RunID, published, removed); err != nil {
			log.Error("mirror catalog", zap.Error(err))
		}
	}

	for _, n := range r.opts.Notifiers {
		if err := n.Notify(ctx, rep); err != nil {
			log.Warn("notify", zap.Error(err))
		}
	}

	if r.opts.Observer != nil {
		r.opts.Observer.Observe(rep)
	}
}

// mirrorable returns the deployments that are now on disk and the pairs
// whose artifacts were removed.
func mirrorable(deployments []catalog.Deployment, synced artifact.SyncResult) ([]catalog.Deployment, []catalog.Pair) {
	ok := make(map[catalog.Pair]bool)
	var removed []catalog.Pair
	for _, o := range synced.Outcomes {
		switch o.Status {
		case artifact.StatusWritten, artifact.StatusUnchanged:
			ok[o.Pair] = true
		case artifact.StatusRemoved:
			removed = append(removed, o.Pair)
		}
	}
	var published []catalog.Deployment
	for _, d := range deployments {
		if ok[d.Pair()] {
			published = append(published, d)
		}
	}
	return published, removed
}
