package models

import (
	"fmt"
	"sort"
)

// RawCandidate is one search hit as returned by a source adapter
type RawCandidate struct {
	Title    string
	ImageURL string
	Source   SourceID

	// Optional metadata carried for display
	AltTitles  []string
	PageURL    string
	ExternalID string
}

// ImageProfile describes a probed image. The zero value means the probe failed.
type ImageProfile struct {
	Width  int
	Height int
	SizeMB float64
	Format string
}

// IsZero reports whether the profile is the "probe failed" value
func (p ImageProfile) IsZero() bool {
	return p.Width == 0 && p.Height == 0 && p.SizeMB == 0
}

// Resolution formats the dimensions as WxH
func (p ImageProfile) Resolution() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

// Candidate is a raw candidate that survived matching and was probed
type Candidate struct {
	RawCandidate

	NormalizedTitle string
	SimilarityScore int
	ExactMatch      bool
	Profile         ImageProfile
	QualityScore    float64
}

// RankedResultSet holds at most one candidate per source, in source order
type RankedResultSet struct {
	Candidates []Candidate
}

// Add appends a candidate, replacing an earlier one from the same source
func (r *RankedResultSet) Add(c Candidate) {
	for i := range r.Candidates {
		if r.Candidates[i].Source == c.Source {
			r.Candidates[i] = c
			return
		}
	}
	r.Candidates = append(r.Candidates, c)
}

// Len returns the number of candidates
func (r RankedResultSet) Len() int {
	return len(r.Candidates)
}

// IsEmpty reports whether no source produced a candidate
func (r RankedResultSet) IsEmpty() bool {
	return len(r.Candidates) == 0
}

// SortedByQuality returns a copy ordered by descending QualityScore. Equal
// scores keep source order.
func (r RankedResultSet) SortedByQuality() []Candidate {
	out := make([]Candidate, len(r.Candidates))
	copy(out, r.Candidates)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].QualityScore > out[j].QualityScore
	})
	return out
}

// Best returns the highest quality candidate
func (r RankedResultSet) Best() (Candidate, bool) {
	sorted := r.SortedByQuality()
	if len(sorted) == 0 {
		return Candidate{}, false
	}
	return sorted[0], true
}

// BySource returns the candidate produced by the given source
func (r RankedResultSet) BySource(id SourceID) (Candidate, bool) {
	for _, c := range r.Candidates {
		if c.Source == id {
			return c, true
		}
	}
	return Candidate{}, false
}
