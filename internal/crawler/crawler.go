// Package crawler runs a query through every selected source, one after the
// other, and collects the best candidate of each.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakuzeng/anime-cover-crawler/internal/config"
	"github.com/sakuzeng/anime-cover-crawler/internal/models"
	"github.com/sakuzeng/anime-cover-crawler/internal/resolver"
	"github.com/sakuzeng/anime-cover-crawler/internal/scraper"
	"github.com/sakuzeng/anime-cover-crawler/internal/util"
)

var (
	// ErrInvalidQuery is returned for a blank query
	ErrInvalidQuery = errors.New("invalid query: anime name cannot be empty")
	// ErrUnknownSource is returned when a requested source is not registered
	ErrUnknownSource = errors.New("unknown source")
)

// Stage tells an observer what the crawler is doing
type Stage int

const (
	StageFetching Stage = iota
	StageResolved
	StageSkipped
)

// Event is reported to the observer around every source
type Event struct {
	RunID     string
	Source    models.SourceID
	Stage     Stage
	Index     int
	Total     int
	Candidate *models.Candidate
}

// Crawler is the multi-source orchestrator
type Crawler struct {
	cfg      *config.Config
	registry *scraper.Registry
	resolver *resolver.Resolver
	watch    *util.Stopwatch
	observer func(Event)
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures a Crawler
type Option func(*Crawler)

// WithObserver receives an Event before and after each source
func WithObserver(fn func(Event)) Option {
	return func(c *Crawler) { c.observer = fn }
}

// WithStopwatch records resolve timings
func WithStopwatch(sw *util.Stopwatch) Option {
	return func(c *Crawler) { c.watch = sw }
}

// New creates a crawler over registry. Thresholds, timeout and the
// inter-source delay come from cfg.
func New(cfg *config.Config, registry *scraper.Registry, res *resolver.Resolver, opts ...Option) *Crawler {
	c := &Crawler{
		cfg:      cfg,
		registry: registry,
		resolver: res,
		sleep:    util.SleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sources returns the ids queried when ResolveAll gets no explicit list
func (c *Crawler) Sources() []models.SourceID {
	var ids []models.SourceID
	for _, id := range c.cfg.EnabledSources() {
		if _, ok := c.registry.Get(id); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// ResolveAll queries the given sources (all enabled ones when ids is empty)
// in configuration order and returns one candidate per source that found a
// match. Failing sources are skipped. When the overall timeout expires the
// remaining sources are skipped and the partial result is returned.
func (c *Crawler) ResolveAll(ctx context.Context, query string, ids []models.SourceID) (models.RankedResultSet, error) {
	var results models.RankedResultSet

	query = strings.TrimSpace(query)
	if query == "" {
		return results, ErrInvalidQuery
	}
	plan, err := c.plan(ids)
	if err != nil {
		return results, err
	}

	runID := uuid.NewString()
	rlog := util.With("run", runID[:8])
	rlog.Info("Searching covers", "query", query, "sources", len(plan))

	if timeout := c.cfg.Search.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// skipFrom reports plan[i:] as skipped once the time budget is gone
	skipFrom := func(i int) {
		rlog.Warn("Search time budget exhausted, skipping remaining sources", "skipped", len(plan)-i)
		for _, rest := range plan[i:] {
			c.notify(Event{RunID: runID, Source: rest.ID(), Stage: StageSkipped, Index: i, Total: len(plan)})
		}
	}

	for i, src := range plan {
		id := src.ID()
		if ctx.Err() != nil {
			skipFrom(i)
			break
		}

		c.notify(Event{RunID: runID, Source: id, Stage: StageFetching, Index: i, Total: len(plan)})
		raws := src.Fetch(ctx, query)
		if ctx.Err() != nil {
			// budget ran out mid-fetch
			skipFrom(i)
			break
		}

		stop := c.watch.Track("resolve:" + string(id))
		cand := c.resolver.Resolve(ctx, query, raws, c.cfg.Search.MinSimilarity, c.cfg.Search.MaxSimilarity, src.TieBreak())
		stop()

		c.notify(Event{RunID: runID, Source: id, Stage: StageResolved, Index: i, Total: len(plan), Candidate: cand})
		if cand == nil {
			rlog.Debug("No matching candidate", "source", id, "query", query, "raw", len(raws))
			continue
		}

		rlog.Debug("Candidate selected", "source", id, "title", cand.Title, "similarity", cand.SimilarityScore,
			"quality", fmt.Sprintf("%.0f", cand.QualityScore))
		results.Add(*cand)

		if i < len(plan)-1 {
			_ = c.sleep(ctx, c.cfg.Search.InterSourceDelay)
		}
	}

	rlog.Info("Search finished", "query", query, "found", results.Len())
	return results, nil
}

// plan resolves the requested ids into sources, in configuration order
func (c *Crawler) plan(ids []models.SourceID) ([]*scraper.Source, error) {
	if len(ids) == 0 {
		ids = c.Sources()
		var out []*scraper.Source
		for _, id := range ids {
			s, _ := c.registry.Get(id)
			out = append(out, s)
		}
		return out, nil
	}

	wanted := make(map[models.SourceID]bool, len(ids))
	for _, id := range ids {
		if _, ok := c.registry.Get(id); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSource, id)
		}
		wanted[id] = true
	}

	var out []*scraper.Source
	for _, id := range c.order() {
		if wanted[id] {
			s, _ := c.registry.Get(id)
			out = append(out, s)
		}
	}
	return out, nil
}

// order is the configured source order followed by any other registered id
func (c *Crawler) order() []models.SourceID {
	seen := make(map[models.SourceID]bool)
	var out []models.SourceID
	for _, id := range c.cfg.EnabledSources() {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range c.registry.IDs() {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func (c *Crawler) notify(ev Event) {
	if c.observer != nil {
		c.observer(ev)
	}
}

// Close releases every source's session
func (c *Crawler) Close() error {
	return c.registry.Close()
}
