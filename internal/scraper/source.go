package scraper

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/sakuzeng/anime-cover-crawler/internal/models"
	"github.com/sakuzeng/anime-cover-crawler/internal/util"
)

// RetryPolicy bounds how often a failing fetch is attempted
type RetryPolicy struct {
	// MaxRetries is the total number of attempts, at least 1
	MaxRetries int
	// Backoff is the pause between attempts
	Backoff time.Duration
}

// DefaultRetryPolicy tries three times, two seconds apart
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, Backoff: 2 * time.Second}

// Pacing is the pause taken before a source is queried
type Pacing struct {
	Delay  time.Duration
	Jitter time.Duration
}

// Source wraps an Adapter with pacing, retries and an error boundary. Its
// Fetch never fails: errors are logged and turn into an empty result.
type Source struct {
	adapter  Adapter
	pacing   Pacing
	retry    RetryPolicy
	tieBreak models.TieBreak
	watch    *util.Stopwatch

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(limit time.Duration) time.Duration
}

// SourceOption configures a Source
type SourceOption func(*Source)

// WithPacing sets the pre-fetch delay and jitter
func WithPacing(p Pacing) SourceOption {
	return func(s *Source) { s.pacing = p }
}

// WithRetry sets the retry policy
func WithRetry(p RetryPolicy) SourceOption {
	return func(s *Source) {
		if p.MaxRetries < 1 {
			p.MaxRetries = 1
		}
		s.retry = p
	}
}

// WithTieBreak sets how the source's candidates are ranked
func WithTieBreak(t models.TieBreak) SourceOption {
	return func(s *Source) {
		if t.Valid() {
			s.tieBreak = t
		}
	}
}

// WithSourceStopwatch records fetch timings
func WithSourceStopwatch(sw *util.Stopwatch) SourceOption {
	return func(s *Source) { s.watch = sw }
}

// NewSource wraps adapter
func NewSource(adapter Adapter, opts ...SourceOption) *Source {
	s := &Source{
		adapter:  adapter,
		retry:    DefaultRetryPolicy,
		tieBreak: models.TieBreakSimilarity,
		sleep:    util.SleepContext,
		jitter:   randomJitter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the wrapped adapter's id
func (s *Source) ID() models.SourceID {
	return s.adapter.ID()
}

// TieBreak returns the ranking policy of this source
func (s *Source) TieBreak() models.TieBreak {
	return s.tieBreak
}

// Fetch paces, then calls the adapter until it succeeds or the retry policy
// is exhausted. Failures are logged and yield nil.
func (s *Source) Fetch(ctx context.Context, query string) []models.RawCandidate {
	id := s.adapter.ID()
	srcLog := util.With("source", id)

	wait := s.pacing.Delay + s.jitter(s.pacing.Jitter)
	if wait > 0 {
		srcLog.Debug("Pacing before source", "wait", wait)
		if err := s.sleep(ctx, wait); err != nil {
			srcLog.Warn("Source skipped", "error", err)
			return nil
		}
	}

	defer s.watch.Track("fetch:" + string(id))()

	var lastErr error
	for attempt := 1; attempt <= s.retry.MaxRetries; attempt++ {
		raws, err := s.adapter.Fetch(ctx, query)
		if err == nil {
			srcLog.Debug("Source returned candidates", "count", len(raws), "attempt", attempt)
			return raws
		}
		lastErr = err
		s.watch.Count("fetch_error:" + string(id))

		if ctx.Err() != nil || IsPermanent(err) {
			break
		}
		if attempt < s.retry.MaxRetries {
			srcLog.Debug("Source attempt failed, retrying", "attempt", attempt, "error", err)
			if err := s.sleep(ctx, s.retry.Backoff); err != nil {
				break
			}
		}
	}

	srcLog.Warn("Source unavailable", "error", lastErr)
	return nil
}

// Close releases the adapter's session
func (s *Source) Close() error {
	return s.adapter.Close()
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit)
}
