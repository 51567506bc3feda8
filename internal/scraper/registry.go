package scraper

import (
	"fmt"

	"github.com/sakuzeng/anime-cover-crawler/internal/config"
	"github.com/sakuzeng/anime-cover-crawler/internal/models"
	"github.com/sakuzeng/anime-cover-crawler/internal/util"
)

// Registry holds the wrapped sources keyed by id, remembering registration
// order
type Registry struct {
	order   []models.SourceID
	sources map[models.SourceID]*Source
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{sources: make(map[models.SourceID]*Source)}
}

// NewRegistryFromConfig builds every built-in source and every configured
// portal, each with its own session, pacing and tie-break policy
func NewRegistryFromConfig(cfg *config.Config, watch *util.Stopwatch) *Registry {
	r := NewRegistry()
	retry := RetryPolicy{MaxRetries: cfg.Search.Retry.MaxRetries, Backoff: cfg.Search.Retry.Backoff}

	wrap := func(a Adapter) *Source {
		sc := cfg.Source(a.ID())
		return NewSource(a,
			WithPacing(Pacing{Delay: sc.Delay, Jitter: sc.Jitter}),
			WithRetry(retry),
			WithTieBreak(models.TieBreak(sc.TieBreak)),
			WithSourceStopwatch(watch),
		)
	}
	opts := func(id models.SourceID) Options {
		sc := cfg.Source(id)
		return Options{
			UserAgent:   cfg.HTTP.UserAgent,
			Timeout:     cfg.HTTP.Timeout,
			MinInterval: sc.Delay,
			MaxResults:  sc.MaxResults,
		}
	}

	r.Register(wrap(NewBilibiliClient(opts(models.SourceBilibili))))
	r.Register(wrap(NewAniListClient(opts(models.SourceAniList))))
	r.Register(wrap(NewBangumiClient(opts(models.SourceBangumi))))
	r.Register(wrap(NewMyAnimeListClient(opts(models.SourceMyAnimeList))))
	r.Register(wrap(NewAniDBClient(opts(models.SourceAniDB))))
	for _, p := range cfg.Portals {
		r.Register(wrap(NewPortalClient(p, opts(models.PortalSource(p.Name)))))
	}
	return r
}

// Register adds or replaces a source
func (r *Registry) Register(s *Source) {
	id := s.ID()
	if old, exists := r.sources[id]; exists {
		_ = old.Close()
	} else {
		r.order = append(r.order, id)
	}
	r.sources[id] = s
}

// Get returns the source with the given id
func (r *Registry) Get(id models.SourceID) (*Source, bool) {
	s, ok := r.sources[id]
	return s, ok
}

// IDs returns the registered ids in registration order
func (r *Registry) IDs() []models.SourceID {
	out := make([]models.SourceID, len(r.order))
	copy(out, r.order)
	return out
}

// Close releases every source's session
func (r *Registry) Close() error {
	var firstErr error
	for _, id := range r.order {
		if err := r.sources[id].Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", id, err)
		}
	}
	return firstErr
}
