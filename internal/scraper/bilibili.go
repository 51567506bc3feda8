package scraper

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/pkg/errors"

	"github.com/sakuzeng/anime-cover-crawler/internal/models"
	"github.com/sakuzeng/anime-cover-crawler/internal/util"
)

const (
	BilibiliHome = "https://www.bilibili.com"
	BilibiliAPI  = "https://api.bilibili.com"
)

// BilibiliClient searches Bilibili's bangumi index
type BilibiliClient struct {
	*session
	homeURL string
	warmed  sync.Once
}

// NewBilibiliClient creates a Bilibili adapter. BaseURL replaces both the API
// root and the homepage used for the cookie warm-up.
func NewBilibiliClient(opts Options) *BilibiliClient {
	s := newSession(opts, BilibiliAPI)
	home := BilibiliHome
	if opts.BaseURL != "" {
		home = s.baseURL
	}
	return &BilibiliClient{session: s, homeURL: home}
}

type bilibiliSearchResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Result []struct {
			Title    string `json:"title"`
			OrgTitle string `json:"org_title"`
			Cover    string `json:"cover"`
			URL      string `json:"url"`
			MediaID  int64  `json:"media_id"`
			SeasonID int64  `json:"season_id"`
		} `json:"result"`
	} `json:"data"`
}

func (c *BilibiliClient) ID() models.SourceID { return models.SourceBilibili }

// Fetch queries the media_bangumi search. Titles keep the <em class="keyword">
// highlighting; the matcher strips it.
func (c *BilibiliClient) Fetch(ctx context.Context, query string) ([]models.RawCandidate, error) {
	c.warmed.Do(func() { c.warmUp(ctx) })

	params := url.Values{}
	params.Set("search_type", "media_bangumi")
	params.Set("keyword", query)
	searchURL := c.baseURL + "/x/web-interface/search/type?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Referer", c.homeURL+"/")
	req.Header.Set("Origin", c.homeURL)

	var resp bilibiliSearchResponse
	if err := c.getJSON(req, &resp); err != nil {
		return nil, errors.Wrap(err, "bilibili search")
	}
	if resp.Code != 0 {
		return nil, errors.Errorf("bilibili search: code %d: %s", resp.Code, resp.Message)
	}

	raws := make([]models.RawCandidate, 0, len(resp.Data.Result))
	for _, r := range resp.Data.Result {
		if r.Cover == "" {
			continue
		}
		raws = append(raws, models.RawCandidate{
			Title:      r.Title,
			ImageURL:   httpsURL(r.Cover),
			Source:     models.SourceBilibili,
			AltTitles:  otherTitles(r.Title, r.OrgTitle),
			PageURL:    r.URL,
			ExternalID: formatID(r.MediaID),
		})
	}
	return c.limit(raws), nil
}

// warmUp loads the homepage once so the API sees the buvid cookies a
// browser would carry. Failure is not fatal.
func (c *BilibiliClient) warmUp(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.homeURL+"/", nil)
	if err != nil {
		return
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	resp, err := c.do(req)
	if err != nil {
		util.Debug("Bilibili warm-up failed", "error", err)
		return
	}
	_ = resp.Body.Close()
	util.Debug("Bilibili session warmed up", "status", resp.StatusCode)
}

func (c *BilibiliClient) Close() error { return c.close() }
