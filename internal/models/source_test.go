package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSourceID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    SourceID
		wantErr bool
	}{
		{in: "anilist", want: SourceAniList},
		{in: " Bilibili ", want: SourceBilibili},
		{in: "mal", want: SourceMyAnimeList},
		{in: "bgm", want: SourceBangumi},
		{in: "portal:AGE", want: "portal:age"},
		{in: "portal:", wantErr: true},
		{in: "crunchyroll", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSourceID(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSourceList(t *testing.T) {
	t.Parallel()

	ids, err := ParseSourceList("anilist, mal,,anilist,portal:yhdm")
	require.NoError(t, err)
	assert.Equal(t, []SourceID{SourceAniList, SourceMyAnimeList, "portal:yhdm"}, ids)

	ids, err = ParseSourceList("")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = ParseSourceList("anilist,nope")
	assert.Error(t, err)
}

func TestSourceID_Kinds(t *testing.T) {
	t.Parallel()

	assert.True(t, SourceAniDB.IsBuiltin())
	assert.False(t, SourceAniDB.IsPortal())
	assert.True(t, PortalSource(" Yhdm ").IsPortal())
	assert.Equal(t, "yhdm", PortalSource("Yhdm").DisplayName())
	assert.Equal(t, "MyAnimeList", SourceMyAnimeList.DisplayName())
	assert.True(t, TieBreakQuality.Valid())
	assert.False(t, TieBreak("newest").Valid())
}
