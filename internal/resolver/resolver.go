// Package resolver picks the best candidate a single source returned for a
// query.
package resolver

import (
	"context"

	"github.com/sakuzeng/anime-cover-crawler/internal/matcher"
	"github.com/sakuzeng/anime-cover-crawler/internal/models"
	"github.com/sakuzeng/anime-cover-crawler/internal/quality"
)

// Prober measures an image; *quality.Prober satisfies it
type Prober interface {
	Probe(ctx context.Context, url string) models.ImageProfile
}

// Resolver matches raw candidates against a query and ranks the survivors
type Resolver struct {
	prober Prober
}

// New creates a resolver that measures images with prober
func New(prober Prober) *Resolver {
	return &Resolver{prober: prober}
}

// Resolve returns the best of one source's raw candidates, or nil.
//
// The first candidate (in source order) whose title exactly matches the
// query wins outright with similarity 100; nothing after it is looked at.
// Otherwise candidates scoring within [min, max] are probed and ranked by the
// tie-break policy.
func (r *Resolver) Resolve(ctx context.Context, query string, raws []models.RawCandidate, minScore, maxScore int, policy models.TieBreak) *models.Candidate {
	if len(raws) == 0 {
		return nil
	}
	normQuery := matcher.Normalize(query)

	scored := make([]models.Candidate, 0, len(raws))
	for _, raw := range raws {
		if raw.ImageURL == "" {
			continue
		}
		c := models.Candidate{
			RawCandidate:    raw,
			NormalizedTitle: matcher.Normalize(raw.Title),
		}
		if matcher.IsExactMatch(query, raw.Title) {
			c.ExactMatch = true
			c.SimilarityScore = 100
			r.measure(ctx, &c)
			return &c
		}
		c.SimilarityScore = matcher.Score(normQuery, c.NormalizedTitle)
		scored = append(scored, c)
	}

	var best *models.Candidate
	for i := range scored {
		c := &scored[i]
		if c.SimilarityScore < minScore || c.SimilarityScore > maxScore {
			continue
		}
		r.measure(ctx, c)
		if best == nil || better(c, best, policy) {
			best = c
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

func (r *Resolver) measure(ctx context.Context, c *models.Candidate) {
	c.Profile = r.prober.Probe(ctx, c.ImageURL)
	c.QualityScore = quality.Score(c.Profile)
}

// better reports whether a beats the current best b. Ties keep b, the
// earlier candidate.
func better(a, b *models.Candidate, policy models.TieBreak) bool {
	if policy == models.TieBreakQuality {
		if a.QualityScore != b.QualityScore {
			return a.QualityScore > b.QualityScore
		}
		return a.SimilarityScore > b.SimilarityScore
	}
	if a.SimilarityScore != b.SimilarityScore {
		return a.SimilarityScore > b.SimilarityScore
	}
	return a.QualityScore > b.QualityScore
}
