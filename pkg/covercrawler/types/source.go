package types

import (
	"github.com/sakuzeng/anime-cover-crawler/internal/models"
)

// Source identifies a cover source
type Source string

const (
	// SourceBilibili is the Bilibili bangumi search
	SourceBilibili = Source(models.SourceBilibili)
	// SourceAniList is the AniList GraphQL API
	SourceAniList = Source(models.SourceAniList)
	// SourceBangumi is the bgm.tv API
	SourceBangumi = Source(models.SourceBangumi)
	// SourceMyAnimeList is MyAnimeList through the Jikan API
	SourceMyAnimeList = Source(models.SourceMyAnimeList)
	// SourceAniDB is the AniDB website
	SourceAniDB = Source(models.SourceAniDB)
)

// PortalSource returns the source of a portal configured under name
func PortalSource(name string) Source {
	return Source(models.PortalSource(name))
}

// String returns the display name of the source
func (s Source) String() string {
	return models.SourceID(s).DisplayName()
}

// IsPortal reports whether the source is a configured video portal
func (s Source) IsPortal() bool {
	return models.SourceID(s).IsPortal()
}

// ToSourceID converts the public Source type to the internal id
func (s Source) ToSourceID() models.SourceID {
	return models.SourceID(s)
}

// ParseSource parses names like "anilist", "mal" or "portal:name"
func ParseSource(s string) (Source, error) {
	id, err := models.ParseSourceID(s)
	if err != nil {
		return "", err
	}
	return Source(id), nil
}
