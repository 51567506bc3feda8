package scraper

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/sakuzeng/anime-cover-crawler/internal/models"
)

const BangumiAPI = "https://api.bgm.tv"

// bangumiTypeAnime is the subject type of animation on bgm.tv
const bangumiTypeAnime = "2"

// BangumiClient searches bgm.tv subjects
type BangumiClient struct {
	*session
}

func NewBangumiClient(opts Options) *BangumiClient {
	return &BangumiClient{session: newSession(opts, BangumiAPI)}
}

type bangumiSearchResponse struct {
	Results int `json:"results"`
	List    []struct {
		ID     int64  `json:"id"`
		URL    string `json:"url"`
		Name   string `json:"name"`
		NameCN string `json:"name_cn"`
		Images *struct {
			Large  string `json:"large"`
			Common string `json:"common"`
			Medium string `json:"medium"`
		} `json:"images"`
	} `json:"list"`
	Code  int    `json:"code"`
	Error string `json:"error"`
}

func (c *BangumiClient) ID() models.SourceID { return models.SourceBangumi }

// Fetch searches anime subjects. The Chinese name wins over the original one.
// bgm.tv answers an empty search with 404, which is reported as no results.
func (c *BangumiClient) Fetch(ctx context.Context, query string) ([]models.RawCandidate, error) {
	params := url.Values{}
	params.Set("type", bangumiTypeAnime)
	params.Set("responseGroup", "small")
	params.Set("max_results", formatID(int64(c.maxResults)))
	searchURL := c.baseURL + "/search/subject/" + url.PathEscape(query) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	var resp bangumiSearchResponse
	if err := c.getJSON(req, &resp); err != nil {
		if statusCode(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "bangumi search")
	}
	if resp.Code == http.StatusNotFound {
		return nil, nil
	}

	var raws []models.RawCandidate
	for _, s := range resp.List {
		if s.Images == nil {
			continue
		}
		title := firstNonEmpty(s.NameCN, s.Name)
		image := firstNonEmpty(s.Images.Large, s.Images.Common)
		if title == "" || image == "" {
			continue
		}
		raws = append(raws, models.RawCandidate{
			Title:      title,
			ImageURL:   httpsURL(image),
			Source:     models.SourceBangumi,
			AltTitles:  otherTitles(title, s.Name),
			PageURL:    httpsURL(s.URL),
			ExternalID: formatID(s.ID),
		})
	}
	return c.limit(raws), nil
}

func (c *BangumiClient) Close() error { return c.close() }
