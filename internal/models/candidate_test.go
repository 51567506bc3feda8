package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankedResultSet_SortedByQualityIsStable(t *testing.T) {
	t.Parallel()

	var set RankedResultSet
	set.Add(Candidate{RawCandidate: RawCandidate{Source: SourceBilibili}, QualityScore: 10})
	set.Add(Candidate{RawCandidate: RawCandidate{Source: SourceAniList}, QualityScore: 30})
	set.Add(Candidate{RawCandidate: RawCandidate{Source: SourceBangumi}, QualityScore: 10})

	sorted := set.SortedByQuality()
	require.Len(t, sorted, 3)
	assert.Equal(t, SourceAniList, sorted[0].Source)
	assert.Equal(t, SourceBilibili, sorted[1].Source, "ties keep source order")
	assert.Equal(t, SourceBangumi, sorted[2].Source)

	// the underlying order is untouched
	assert.Equal(t, SourceBilibili, set.Candidates[0].Source)

	best, ok := set.Best()
	require.True(t, ok)
	assert.Equal(t, SourceAniList, best.Source)
}

func TestRankedResultSet_AddKeepsOnePerSource(t *testing.T) {
	t.Parallel()

	var set RankedResultSet
	set.Add(Candidate{RawCandidate: RawCandidate{Source: SourceAniList, Title: "old"}})
	set.Add(Candidate{RawCandidate: RawCandidate{Source: SourceAniList, Title: "new"}})

	require.Equal(t, 1, set.Len())
	c, ok := set.BySource(SourceAniList)
	require.True(t, ok)
	assert.Equal(t, "new", c.Title)
}

func TestRankedResultSet_Empty(t *testing.T) {
	t.Parallel()

	var set RankedResultSet
	assert.True(t, set.IsEmpty())
	_, ok := set.Best()
	assert.False(t, ok)
	assert.Empty(t, set.SortedByQuality())
}

func TestSourceID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id      SourceID
		portal  bool
		builtin bool
		display string
	}{
		{SourceBilibili, false, true, "Bilibili"},
		{SourceMyAnimeList, false, true, "MyAnimeList"},
		{PortalSource(" AGE "), true, false, "age"},
		{SourceID("portal:"), false, false, "portal:"},
		{SourceID("nope"), false, false, "nope"},
	}
	for _, tc := range tests {
		t.Run(string(tc.id), func(t *testing.T) {
			assert.Equal(t, tc.portal, tc.id.IsPortal())
			assert.Equal(t, tc.builtin, tc.id.IsBuiltin())
			assert.Equal(t, tc.display, tc.id.DisplayName())
		})
	}
}

func TestImageProfile(t *testing.T) {
	t.Parallel()

	assert.True(t, ImageProfile{}.IsZero())
	p := ImageProfile{Width: 1000, Height: 1400, SizeMB: 0.5}
	assert.False(t, p.IsZero())
	assert.Equal(t, "1000x1400", p.Resolution())
}
