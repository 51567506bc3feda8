package resolver

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakuzeng/anime-cover-crawler/internal/models"
)

// fakeProber returns canned profiles and remembers which URLs it was asked for
type fakeProber struct {
	mu       sync.Mutex
	profiles map[string]models.ImageProfile
	probed   []string
}

func (f *fakeProber) Probe(_ context.Context, url string) models.ImageProfile {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = append(f.probed, url)
	return f.profiles[url]
}

func raw(title, image string) models.RawCandidate {
	return models.RawCandidate{Title: title, ImageURL: image, Source: models.SourceAniList}
}

func TestResolve_ScenarioA_SubstringIsExact(t *testing.T) {
	t.Parallel()

	p := &fakeProber{profiles: map[string]models.ImageProfile{
		"https://img/frieren.jpg": {Width: 1000, Height: 1400, SizeMB: 0.5},
	}}
	r := New(p)

	got := r.Resolve(context.Background(), "Frieren",
		[]models.RawCandidate{raw("Frieren: Beyond Journey's End", "https://img/frieren.jpg")},
		80, 100, models.TieBreakSimilarity)

	require.NotNil(t, got)
	assert.True(t, got.ExactMatch)
	assert.Equal(t, 100, got.SimilarityScore)
	assert.Greater(t, got.SimilarityScore, 80)
	assert.InDelta(t, 700000.0, got.QualityScore, 1e-6)
	assert.Equal(t, "frierenbeyondjourneysend", got.NormalizedTitle)
}

func TestResolve_ScenarioB_ExactMatchShortCircuits(t *testing.T) {
	t.Parallel()

	p := &fakeProber{profiles: map[string]models.ImageProfile{
		"https://img/1.jpg": {Width: 10, Height: 10, SizeMB: 0.01},
		"https://img/2.jpg": {Width: 4000, Height: 6000, SizeMB: 9},
	}}
	r := New(p)

	got := r.Resolve(context.Background(), "Naruto", []models.RawCandidate{
		raw("Boruto", "https://img/0.jpg"),
		raw("NARUTO", "https://img/1.jpg"),
		raw("Naruto", "https://img/2.jpg"),
	}, 80, 100, models.TieBreakSimilarity)

	require.NotNil(t, got)
	assert.Equal(t, "NARUTO", got.Title)
	assert.True(t, got.ExactMatch)
	assert.Equal(t, []string{"https://img/1.jpg"}, p.probed, "later candidates are never probed")
}

func TestResolve_ExactMatchWinsRegardlessOfQuality(t *testing.T) {
	t.Parallel()

	p := &fakeProber{profiles: map[string]models.ImageProfile{
		"https://img/close.jpg": {Width: 4000, Height: 6000, SizeMB: 10},
	}}
	r := New(p)

	got := r.Resolve(context.Background(), "Bleach", []models.RawCandidate{
		raw("Bleech", "https://img/close.jpg"),
		raw("bleach", "https://img/unreachable.jpg"),
	}, 80, 100, models.TieBreakQuality)

	require.NotNil(t, got)
	assert.Equal(t, "bleach", got.Title)
	assert.Zero(t, got.QualityScore, "an unreachable image still wins when exact")
}

func TestResolve_ThresholdFiltering(t *testing.T) {
	t.Parallel()

	r := New(&fakeProber{})

	got := r.Resolve(context.Background(), "Attack on Titan", []models.RawCandidate{
		raw("Spy x Family", "https://img/a.jpg"),
		raw("One Piece", "https://img/b.jpg"),
	}, 80, 100, models.TieBreakSimilarity)
	assert.Nil(t, got)

	got = r.Resolve(context.Background(), "Attack on Titan", nil, 80, 100, models.TieBreakSimilarity)
	assert.Nil(t, got)
}

func TestResolve_MaxThresholdExcludes(t *testing.T) {
	t.Parallel()

	r := New(&fakeProber{})

	// "kitten" vs "sitting" scores 57
	got := r.Resolve(context.Background(), "kitten", []models.RawCandidate{raw("sitting", "https://img/s.jpg")}, 0, 50, models.TieBreakSimilarity)
	assert.Nil(t, got)

	got = r.Resolve(context.Background(), "kitten", []models.RawCandidate{raw("sitting", "https://img/s.jpg")}, 50, 60, models.TieBreakSimilarity)
	require.NotNil(t, got)
	assert.Equal(t, 57, got.SimilarityScore)
}

func TestResolve_SimilarityPolicy(t *testing.T) {
	t.Parallel()

	p := &fakeProber{profiles: map[string]models.ImageProfile{
		"https://img/a.jpg": {Width: 100, Height: 100, SizeMB: 1},
		"https://img/b.jpg": {Width: 1000, Height: 1000, SizeMB: 1},
		"https://img/c.jpg": {Width: 2000, Height: 2000, SizeMB: 1},
	}}
	r := New(p)

	// query normalizes to "shingekinokyojin"
	raws := []models.RawCandidate{
		raw("Shingeki no Kyojim", "https://img/a.jpg"), // 94
		raw("Shingeki no Kyojxm", "https://img/b.jpg"), // 88
		raw("Shingeki no Kyojen", "https://img/c.jpg"), // 94, better image
	}

	got := r.Resolve(context.Background(), "Shingeki no Kyojin", raws, 80, 100, models.TieBreakSimilarity)
	require.NotNil(t, got)
	assert.Equal(t, "https://img/c.jpg", got.ImageURL, "equal similarity falls back to quality")

	got = r.Resolve(context.Background(), "Shingeki no Kyojin", raws[:2], 80, 100, models.TieBreakSimilarity)
	require.NotNil(t, got)
	assert.Equal(t, "https://img/a.jpg", got.ImageURL, "higher similarity beats a better image")
}

func TestResolve_QualityPolicy(t *testing.T) {
	t.Parallel()

	p := &fakeProber{profiles: map[string]models.ImageProfile{
		"https://img/a.jpg": {Width: 100, Height: 100, SizeMB: 1},
		"https://img/b.jpg": {Width: 1000, Height: 1000, SizeMB: 1},
	}}
	r := New(p)

	got := r.Resolve(context.Background(), "Shingeki no Kyojin", []models.RawCandidate{
		raw("Shingeki no Kyojim", "https://img/a.jpg"),
		raw("Shingeki no Kyojxm", "https://img/b.jpg"),
	}, 80, 100, models.TieBreakQuality)

	require.NotNil(t, got)
	assert.Equal(t, "https://img/b.jpg", got.ImageURL)
}

func TestResolve_TiesKeepSourceOrder(t *testing.T) {
	t.Parallel()

	r := New(&fakeProber{})

	got := r.Resolve(context.Background(), "abcd", []models.RawCandidate{
		raw("abce", "https://img/first.jpg"),
		raw("abcf", "https://img/second.jpg"),
	}, 70, 100, models.TieBreakSimilarity)

	require.NotNil(t, got)
	assert.Equal(t, "https://img/first.jpg", got.ImageURL)
}

func TestResolve_SkipsCandidatesWithoutImage(t *testing.T) {
	t.Parallel()

	p := &fakeProber{}
	r := New(p)

	got := r.Resolve(context.Background(), "Naruto", []models.RawCandidate{raw("Naruto", "")}, 80, 100, models.TieBreakSimilarity)
	assert.Nil(t, got)
	assert.Empty(t, p.probed)
}
