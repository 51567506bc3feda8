package scraper

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/gocolly/colly/v2"
	"github.com/pkg/errors"

	"github.com/sakuzeng/anime-cover-crawler/internal/models"
	"github.com/sakuzeng/anime-cover-crawler/internal/util"
)

const AniDBBase = "https://anidb.net"

// anidbThumb matches resized thumbnails such as
// /images/65x100/12345.jpg-thumb.jpg so they can be swapped for the original
var anidbThumb = regexp.MustCompile(`/images/\d+x\d+/(\d+\.(?:jpe?g|png|webp))-thumb\.\w+$`)

// AniDBClient scrapes AniDB's HTML anime search with colly
type AniDBClient struct {
	*session
	collector *colly.Collector
}

func NewAniDBClient(opts Options) *AniDBClient {
	s := newSession(opts, AniDBBase)

	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.AllowURLRevisit(),
	)
	c.SetClient(s.client)

	return &AniDBClient{session: s, collector: c}
}

func (c *AniDBClient) ID() models.SourceID { return models.SourceAniDB }

// Fetch reads the rows of the search result table. A query matching a single
// anime is redirected by AniDB to that anime's page, which is parsed too.
func (c *AniDBClient) Fetch(ctx context.Context, query string) ([]models.RawCandidate, error) {
	params := url.Values{}
	params.Set("adb.search", query)
	params.Set("do.search", "1")
	searchURL := c.baseURL + "/anime/?" + params.Encode()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limiter")
	}

	var (
		mu        sync.Mutex
		raws      []models.RawCandidate
		scrapeErr error
	)
	collector := c.collector.Clone()
	collector.Context = ctx

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	collector.OnHTML("table.animelist tbody tr", func(e *colly.HTMLElement) {
		title := strings.TrimSpace(e.ChildText("td.name a"))
		thumb := firstNonEmpty(e.ChildAttr("td.thumb img", "src"), e.ChildAttr("td.thumb img", "data-src"))
		if title == "" || thumb == "" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		raws = append(raws, models.RawCandidate{
			Title:    title,
			ImageURL: anidbFullImage(e.Request.AbsoluteURL(thumb)),
			Source:   models.SourceAniDB,
			PageURL:  e.Request.AbsoluteURL(e.ChildAttr("td.name a", "href")),
		})
	})

	collector.OnHTML("div.g_section.info", func(e *colly.HTMLElement) {
		title := strings.TrimSpace(e.ChildText(`span[itemprop="name"]`))
		image := e.ChildAttr(`div.image img[itemprop="image"]`, "src")
		if title == "" {
			title = strings.TrimPrefix(strings.TrimSpace(e.DOM.Parents().Find("h1.anime").First().Text()), "Anime: ")
		}
		if title == "" || image == "" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		raws = append(raws, models.RawCandidate{
			Title:    title,
			ImageURL: e.Request.AbsoluteURL(image),
			Source:   models.SourceAniDB,
			PageURL:  e.Request.URL.String(),
		})
	})

	collector.OnError(func(r *colly.Response, err error) {
		util.Debug("AniDB request failed", "url", r.Request.URL.String(), "status", r.StatusCode, "error", err)
		if r.StatusCode >= 400 && r.StatusCode < 500 && r.StatusCode != 429 {
			scrapeErr = Permanent(errors.Wrapf(err, "anidb search: status %d", r.StatusCode))
			return
		}
		scrapeErr = errors.Wrap(err, "anidb search")
	})

	visitErr := collector.Visit(searchURL)
	collector.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if scrapeErr != nil {
		return nil, scrapeErr
	}
	if visitErr != nil {
		return nil, errors.Wrap(visitErr, "anidb search")
	}
	return c.limit(raws), nil
}

// anidbFullImage turns a thumbnail URL into the full-size cover URL
func anidbFullImage(u string) string {
	if m := anidbThumb.FindStringSubmatchIndex(u); m != nil {
		return u[:m[0]] + "/images/main/" + u[m[2]:m[3]]
	}
	return u
}

func (c *AniDBClient) Close() error { return c.close() }
