package scraper

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/sakuzeng/anime-cover-crawler/internal/models"
)

// JikanAPI is the unofficial MyAnimeList REST API
const JikanAPI = "https://api.jikan.moe/v4"

// MyAnimeListClient searches MyAnimeList through Jikan
type MyAnimeListClient struct {
	*session
}

func NewMyAnimeListClient(opts Options) *MyAnimeListClient {
	return &MyAnimeListClient{session: newSession(opts, JikanAPI)}
}

type jikanImageSet struct {
	ImageURL      string `json:"image_url"`
	SmallImageURL string `json:"small_image_url"`
	LargeImageURL string `json:"large_image_url"`
}

type jikanSearchResponse struct {
	Data []struct {
		MalID         int64  `json:"mal_id"`
		URL           string `json:"url"`
		Title         string `json:"title"`
		TitleEnglish  string `json:"title_english"`
		TitleJapanese string `json:"title_japanese"`
		Images        struct {
			JPG  jikanImageSet `json:"jpg"`
			WebP jikanImageSet `json:"webp"`
		} `json:"images"`
	} `json:"data"`
}

func (c *MyAnimeListClient) ID() models.SourceID { return models.SourceMyAnimeList }

// Fetch returns MAL entries for the query, preferring the large jpg cover
func (c *MyAnimeListClient) Fetch(ctx context.Context, query string) ([]models.RawCandidate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", formatID(int64(c.maxResults)))
	searchURL := c.baseURL + "/anime?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	var resp jikanSearchResponse
	if err := c.getJSON(req, &resp); err != nil {
		return nil, errors.Wrap(err, "jikan search")
	}

	var raws []models.RawCandidate
	for _, a := range resp.Data {
		title := firstNonEmpty(a.Title, a.TitleEnglish)
		image := firstNonEmpty(
			a.Images.JPG.LargeImageURL,
			a.Images.JPG.ImageURL,
			a.Images.WebP.LargeImageURL,
			a.Images.WebP.ImageURL,
		)
		if title == "" || image == "" {
			continue
		}
		raws = append(raws, models.RawCandidate{
			Title:      title,
			ImageURL:   image,
			Source:     models.SourceMyAnimeList,
			AltTitles:  otherTitles(title, a.TitleEnglish, a.TitleJapanese),
			PageURL:    a.URL,
			ExternalID: formatID(a.MalID),
		})
	}
	return c.limit(raws), nil
}

func (c *MyAnimeListClient) Close() error { return c.close() }
