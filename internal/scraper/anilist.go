package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/sakuzeng/anime-cover-crawler/internal/models"
)

const AniListAPI = "https://graphql.anilist.co"

const anilistSearchQuery = `query ($search: String, $perPage: Int) {
	Page(perPage: $perPage) {
		media(search: $search, type: ANIME) {
			id
			siteUrl
			title { native romaji english }
			synonyms
			coverImage { extraLarge large }
		}
	}
}`

// AniListClient searches AniList's GraphQL API
type AniListClient struct {
	*session
}

func NewAniListClient(opts Options) *AniListClient {
	return &AniListClient{session: newSession(opts, AniListAPI)}
}

type anilistSearchResponse struct {
	Data struct {
		Page struct {
			Media []struct {
				ID      int    `json:"id"`
				SiteURL string `json:"siteUrl"`
				Title   struct {
					Native  string `json:"native"`
					Romaji  string `json:"romaji"`
					English string `json:"english"`
				} `json:"title"`
				Synonyms   []string `json:"synonyms"`
				CoverImage struct {
					ExtraLarge string `json:"extraLarge"`
					Large      string `json:"large"`
				} `json:"coverImage"`
			} `json:"media"`
		} `json:"Page"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *AniListClient) ID() models.SourceID { return models.SourceAniList }

// Fetch returns one candidate per matching media. The native title is
// preferred, then romaji, then english.
func (c *AniListClient) Fetch(ctx context.Context, query string) ([]models.RawCandidate, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"query": anilistSearchQuery,
		"variables": map[string]interface{}{
			"search":  query,
			"perPage": c.maxResults,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	var resp anilistSearchResponse
	if err := c.getJSON(req, &resp); err != nil {
		return nil, errors.Wrap(err, "anilist search")
	}
	if len(resp.Errors) > 0 {
		return nil, errors.Errorf("anilist search: %s", resp.Errors[0].Message)
	}

	var raws []models.RawCandidate
	for _, m := range resp.Data.Page.Media {
		title := firstNonEmpty(m.Title.Native, m.Title.Romaji, m.Title.English)
		image := firstNonEmpty(m.CoverImage.ExtraLarge, m.CoverImage.Large)
		if title == "" || image == "" {
			continue
		}
		alts := append([]string{m.Title.Native, m.Title.Romaji, m.Title.English}, m.Synonyms...)
		raws = append(raws, models.RawCandidate{
			Title:      title,
			ImageURL:   image,
			Source:     models.SourceAniList,
			AltTitles:  otherTitles(title, alts...),
			PageURL:    m.SiteURL,
			ExternalID: formatID(int64(m.ID)),
		})
	}
	return c.limit(raws), nil
}

func (c *AniListClient) Close() error { return c.close() }
