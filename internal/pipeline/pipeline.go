package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/member-locator/internal/domain"
	"github.com/couchcryptid/member-locator/internal/observability"
	"github.com/jonboulle/clockwork"
)

// MemberSource loads the member records to locate.
type MemberSource interface {
	Members(ctx context.Context) ([]domain.Member, error)
}

// MemberDumper writes the loaded members before enrichment.
type MemberDumper interface {
	Dump(ctx context.Context, members []domain.Member) error
}

// Enricher resolves the location of one member.
type Enricher interface {
	Enrich(ctx context.Context, m domain.Member) (domain.EnrichedMember, DropReason)
}

// Sink receives the list of resolved members at the end of a run.
type Sink interface {
	Name() string
	Write(ctx context.Context, members []domain.EnrichedMember) error
}

// CacheThinner deletes a random share of a cache namespace.
type CacheThinner interface {
	Thin(namespace string, percent float64) (int, error)
}

// Options tunes a run.
type Options struct {
	// Fast skips cache thinning.
	Fast           bool
	ThinPercent    float64
	ThinNamespaces []string
	// Clock stamps the run status and times the run. Nil means the wall clock.
	Clock clockwork.Clock
}

// Pipeline runs one batch: thin the cache, load members, enrich them one by
// one and hand the resolved ones to every sink.
type Pipeline struct {
	source   MemberSource
	enricher Enricher
	sinks    []Sink
	thinner  CacheThinner
	dumper   MemberDumper
	opts     Options
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool

	mu     sync.Mutex
	status Status
}

// Status is a snapshot of the current or last run.
type Status struct {
	Running    bool      `json:"running"`
	Total      int       `json:"total"`
	Processed  int       `json:"processed"`
	Resolved   int       `json:"resolved"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	LastError  string    `json:"last_error,omitempty"`
}

// New creates a Pipeline. thinner and dumper may be nil.
func New(source MemberSource, enricher Enricher, sinks []Sink, thinner CacheThinner, dumper MemberDumper, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		source:   source,
		enricher: enricher,
		sinks:    sinks,
		thinner:  thinner,
		dumper:   dumper,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
	}
}

// Ready reports whether at least one member has been processed.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// CheckReadiness returns nil if the pipeline has processed at least one member,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any members yet")
	}
	return nil
}

// Status returns a snapshot of the run progress.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Pipeline) update(fn func(*Status)) {
	p.mu.Lock()
	fn(&p.status)
	p.mu.Unlock()
}

// Run executes one complete batch. Cancelling ctx stops the run between two
// members; nothing is written to the sinks then. Sink failures do not stop
// the other sinks and are returned together.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	clock := p.opts.Clock
	start := clock.Now()
	p.logger.Info("pipeline started", "fast", p.opts.Fast)
	p.metrics.PipelineRunning.Set(1)
	p.update(func(s *Status) { *s = Status{Running: true, StartedAt: start} })
	defer func() {
		p.metrics.PipelineRunning.Set(0)
		p.update(func(s *Status) {
			s.Running = false
			s.FinishedAt = clock.Now()
			if err != nil {
				s.LastError = err.Error()
			}
		})
	}()

	if !p.opts.Fast {
		p.thin()
	}

	members, err := p.source.Members(ctx)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	p.metrics.MembersLoaded.Add(float64(len(members)))
	p.logger.Info("members loaded", "members", len(members))
	p.update(func(s *Status) { s.Total = len(members) })

	if p.dumper != nil {
		if err := p.dumper.Dump(ctx, members); err != nil {
			p.logger.Warn("member dump failed", "error", err)
		}
	}

	resolved, err := p.enrichAll(ctx, members)
	if err != nil {
		p.logger.Info("pipeline stopping", "reason", err)
		return err
	}

	var errs []error
	for _, s := range p.sinks {
		if err := s.Write(ctx, resolved); err != nil {
			p.logger.Error("sink write failed", "sink", s.Name(), "error", err)
			p.metrics.SinkWrites.WithLabelValues(s.Name(), "error").Inc()
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name(), err))
			continue
		}
		p.metrics.SinkWrites.WithLabelValues(s.Name(), "success").Inc()
	}

	elapsed := clock.Since(start)
	p.metrics.RunDuration.Observe(elapsed.Seconds())
	p.logger.Info("pipeline finished",
		"members", len(members),
		"resolved", len(resolved),
		"dropped", len(members)-len(resolved),
		"duration", elapsed,
	)
	return errors.Join(errs...)
}

// thin redistributes cache expiry by deleting a random share of each
// configured namespace. Failures are logged; the run goes on.
func (p *Pipeline) thin() {
	if p.thinner == nil || p.opts.ThinPercent <= 0 {
		return
	}
	for _, ns := range p.opts.ThinNamespaces {
		n, err := p.thinner.Thin(ns, p.opts.ThinPercent)
		if err != nil {
			p.logger.Warn("cache thinning failed", "namespace", ns, "error", err)
			continue
		}
		p.metrics.CacheThinned.WithLabelValues(ns).Add(float64(n))
	}
}

// enrichAll runs the enricher over every member in order and keeps the
// resolved ones.
func (p *Pipeline) enrichAll(ctx context.Context, members []domain.Member) ([]domain.EnrichedMember, error) {
	resolved := make([]domain.EnrichedMember, 0, len(members))
	for i, m := range members {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, reason := p.enricher.Enrich(ctx, m)
		p.metrics.MembersProcessed.Inc()
		p.ready.Store(true)

		if reason != Kept {
			p.metrics.MembersDropped.WithLabelValues(reason.String()).Inc()
			p.logger.Debug("member dropped", "uid", m.UID, "location", m.Location, "reason", reason.String())
		} else {
			p.metrics.MembersResolved.Inc()
			resolved = append(resolved, out)
		}
		p.update(func(s *Status) {
			s.Processed = i + 1
			s.Resolved = len(resolved)
		})

		p.logger.Info("member processed", "index", i+1, "total", len(members))
	}
	return resolved, nil
}
