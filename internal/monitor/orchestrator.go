// Package monitor runs one search across every configured source, merges
// and deduplicates the results and persists them in a single batch.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/ppiankov/gazette/internal/dedupe"
	"github.com/ppiankov/gazette/internal/logger"
	"github.com/ppiankov/gazette/internal/model"
	"github.com/ppiankov/gazette/internal/sources"
	"github.com/ppiankov/gazette/internal/store"
	"github.com/ppiankov/gazette/internal/worker"
)

var (
	// ErrNoNames is returned before any I/O when no usable name was given
	ErrNoNames = errors.New("at least one attorney name is required")
	// ErrPersist wraps every persistence failure; it is the only error a run can fail with
	ErrPersist = errors.New("persist publications")
	// ErrNoGateway is returned by New without a persistence gateway
	ErrNoGateway = errors.New("persistence gateway is required")
	// ErrAdapterPanic marks a source whose adapter panicked; it counts as zero records
	ErrAdapterPanic = errors.New("adapter panicked")
)

const (
	DefaultWorkers        = 8
	MaxWorkers            = 32
	DefaultPersistTimeout = 30 * time.Second
)

// abandonedReason marks sources cut off by the caller's deadline
const abandonedReason = "abandoned: run deadline reached"

// Options tune an Orchestrator
type Options struct {
	Workers        int
	DedupePrefix   int
	PersistTimeout time.Duration // Persistence runs even after the caller's deadline, bounded by this
	Recorder       store.RunRecorder
	Logger         *slog.Logger
	Meter          metric.Meter
	Now            func() time.Time
}

// Orchestrator drives monitoring runs
type Orchestrator struct {
	adapters []sources.Adapter
	gateway  store.Gateway
	opts     Options
	log      *slog.Logger
	metrics  *metrics
	newRunID func() string
}

// New creates an Orchestrator over adapters in configuration order
func New(adapters []sources.Adapter, gateway store.Gateway, opts Options) (*Orchestrator, error) {
	if gateway == nil {
		return nil, ErrNoGateway
	}

	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Workers > MaxWorkers {
		opts.Workers = MaxWorkers
	}
	if opts.DedupePrefix <= 0 {
		opts.DedupePrefix = dedupe.PrefixLength
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = DefaultPersistTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m, err := newMetrics(opts.Meter)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	return &Orchestrator{
		adapters: adapters,
		gateway:  gateway,
		opts:     opts,
		log:      logger.OrDiscard(opts.Logger).With("component", "monitor"),
		metrics:  m,
		newRunID: func() string { return uuid.New().String() },
	}, nil
}

// Run searches every selected source for names and persists the deduplicated
// result for ownerID. An empty jurisdiction list selects every source.
// Adapter failures never fail a run; only persistence errors do.
func (o *Orchestrator) Run(ctx context.Context, names []string, jurisdictions []string, ownerID string) (*model.RunSummary, error) {
	names = cleanNames(names)
	if len(names) == 0 {
		return nil, ErrNoNames
	}

	filter := cleanJurisdictions(jurisdictions)
	selected := o.selectAdapters(filter)

	summary := &model.RunSummary{
		RunID:     o.newRunID(),
		OwnerID:   ownerID,
		Sources:   make([]string, len(selected)),
		Reports:   make([]model.SourceReport, len(selected)),
		StartedAt: o.opts.Now(),
	}
	for i, a := range selected {
		d := a.Descriptor()
		summary.Sources[i] = d.Name
		summary.Reports[i] = model.SourceReport{ID: d.ID, Name: d.Name, Error: abandonedReason}
	}

	log := o.log.With("run_id", summary.RunID)
	log.Info("run started", "names", len(names), "sources", len(selected), "filter", strings.Join(filter, ","))

	batches := o.fanOut(ctx, log, selected, names, filter, summary.Reports)

	var merged []model.Publication
	for _, batch := range batches {
		merged = append(merged, batch...)
	}
	pubs := dedupe.WithPrefix(merged, o.opts.DedupePrefix)
	summary.Count = len(pubs)

	// the caller's deadline stops the search, not the write of what was gathered
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.PersistTimeout)
	defer cancel()

	if len(pubs) > 0 {
		if err := o.gateway.InsertPublications(persistCtx, ownerID, pubs, model.DefaultFlags()); err != nil {
			log.Error("persist failed", "records", len(pubs), "err", err)
			return nil, fmt.Errorf("%w: %w", ErrPersist, err)
		}
	}

	summary.FinishedAt = o.opts.Now()

	if o.opts.Recorder != nil {
		if err := o.opts.Recorder.RecordRun(persistCtx, summary); err != nil {
			log.Warn("run log not written", "err", err)
		}
	}

	log.Info("run finished",
		"gathered", len(merged),
		"count", summary.Count,
		"elapsed", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond),
	)

	return summary, nil
}

// selectAdapters returns national adapters first, then regional adapters in
// the filter (all when the filter is empty), each group in configuration order
func (o *Orchestrator) selectAdapters(filter []string) []sources.Adapter {
	wanted := make(map[string]bool, len(filter))
	for _, f := range filter {
		wanted[f] = true
	}

	var national, regional []sources.Adapter
	for _, a := range o.adapters {
		d := a.Descriptor()
		if d.IsNational() {
			national = append(national, a)
			continue
		}
		if len(wanted) == 0 || wanted[d.Jurisdiction] {
			regional = append(regional, a)
		}
	}

	return append(national, regional...)
}

// fanOut runs one job per adapter on the worker pool and returns each
// adapter's publications at its own index. Sources abandoned by ctx keep the
// abandoned reason in reports.
func (o *Orchestrator) fanOut(ctx context.Context, log *slog.Logger, selected []sources.Adapter, names, filter []string, reports []model.SourceReport) [][]model.Publication {
	pool := worker.NewPool(ctx, o.opts.Workers)
	pool.Start()

	for i, a := range selected {
		pool.Submit(&sourceJob{
			index:         i,
			adapter:       a,
			names:         names,
			jurisdictions: filter,
		})
	}

	batches := make([][]model.Publication, len(selected))
	for _, r := range pool.Wait() {
		res, ok := r.(*sourceResult)
		if !ok {
			continue
		}
		if errors.Is(res.err, ErrAdapterPanic) {
			reports[res.index].Duration = res.elapsed
			reports[res.index].Error = res.err.Error()
			log.Error("source failed", "source", reports[res.index].ID, "err", res.err)
			continue
		}
		if res.err != nil {
			continue
		}

		batches[res.index] = res.pubs
		reports[res.index].Records = len(res.pubs)
		reports[res.index].Duration = res.elapsed
		reports[res.index].Error = ""
		o.metrics.recordSource(ctx, reports[res.index].ID, len(res.pubs), res.elapsed)
	}

	for _, rep := range reports {
		if rep.Error == abandonedReason {
			o.metrics.recordAbandoned(ctx, rep.ID)
			log.Warn("source abandoned", "source", rep.ID)
		}
	}

	return batches
}

// sourceJob searches one adapter for every name
type sourceJob struct {
	index         int
	adapter       sources.Adapter
	names         []string
	jurisdictions []string
}

// sourceResult carries one adapter's publications back to the run
type sourceResult struct {
	index   int
	pubs    []model.Publication
	elapsed time.Duration
	err     error
}

func (r *sourceResult) GetError() error {
	return r.err
}

// Execute implements worker.Job. A panicking adapter yields ErrAdapterPanic
// instead of taking the run down.
func (j *sourceJob) Execute(ctx context.Context) (result worker.Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = &sourceResult{
				index:   j.index,
				elapsed: time.Since(start),
				err:     fmt.Errorf("%w: %v", ErrAdapterPanic, r),
			}
		}
	}()

	pubs := j.adapter.Search(ctx, j.names, j.jurisdictions)

	res := &sourceResult{index: j.index, elapsed: time.Since(start)}
	if err := ctx.Err(); err != nil {
		// whatever the adapter gathered before the deadline is discarded
		res.err = err
		return res
	}
	res.pubs = pubs
	return res
}

// cleanNames trims names and drops blanks and repeats, keeping order
func cleanNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.Join(strings.Fields(n), " ")
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// cleanJurisdictions upper-cases codes and drops blanks and repeats
func cleanJurisdictions(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	var out []string
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
