// Package types provides public type definitions for the covercrawler library
package types

import (
	"github.com/sakuzeng/anime-cover-crawler/internal/models"
)

// Cover is the best match one source found for a query
type Cover struct {
	// Title is the title as the source lists it
	Title string
	// AltTitles holds other titles the source knows the anime by
	AltTitles []string
	// ImageURL is the full size cover image
	ImageURL string
	// PageURL is the anime's page on the source, when known
	PageURL string
	// Source identifies where this cover came from
	Source Source
	// Similarity is the title similarity to the query, 0 to 100
	Similarity int
	// ExactMatch is set when the title matched the query exactly
	ExactMatch bool
	// Width and Height are the image dimensions, 0 when the probe failed
	Width  int
	Height int
	// SizeMB is the image size in megabytes
	SizeMB float64
	// Format is the decoded image format, e.g. "jpeg"
	Format string
	// Quality is width * height * SizeMB; higher is better
	Quality float64
}

// FromInternalCandidate converts a resolved candidate to a Cover
func FromInternalCandidate(c models.Candidate) *Cover {
	return &Cover{
		Title:      c.Title,
		AltTitles:  append([]string(nil), c.AltTitles...),
		ImageURL:   c.ImageURL,
		PageURL:    c.PageURL,
		Source:     Source(c.Source),
		Similarity: c.SimilarityScore,
		ExactMatch: c.ExactMatch,
		Width:      c.Profile.Width,
		Height:     c.Profile.Height,
		SizeMB:     c.Profile.SizeMB,
		Format:     c.Profile.Format,
		Quality:    c.QualityScore,
	}
}

// FromInternalResultSet converts a result set, best quality first
func FromInternalResultSet(set models.RankedResultSet) []*Cover {
	sorted := set.SortedByQuality()
	out := make([]*Cover, 0, len(sorted))
	for _, c := range sorted {
		out = append(out, FromInternalCandidate(c))
	}
	return out
}
