package scraper

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/sakuzeng/anime-cover-crawler/internal/config"
	"github.com/sakuzeng/anime-cover-crawler/internal/models"
	"github.com/sakuzeng/anime-cover-crawler/internal/util"
)

// imageAttrFallbacks are tried when the configured attribute is empty;
// lazy-loading portals keep the real URL in a data attribute
var imageAttrFallbacks = []string{"data-original", "data-src", "data-lazy-src", "src"}

// PortalClient scrapes a configured HTML video portal
type PortalClient struct {
	*session
	cfg config.PortalConfig
	id  models.SourceID
}

// NewPortalClient creates an adapter for the portal described by cfg
func NewPortalClient(cfg config.PortalConfig, opts Options) *PortalClient {
	if opts.MaxResults == 0 {
		opts.MaxResults = cfg.MaxResults
	}
	return &PortalClient{
		session: newSession(opts, ""),
		cfg:     cfg,
		id:      models.PortalSource(cfg.Name),
	}
}

func (c *PortalClient) ID() models.SourceID { return c.id }

// Fetch loads the search page and reads one candidate per item. Items
// without an image are completed from the og:image of their detail page.
func (c *PortalClient) Fetch(ctx context.Context, query string) ([]models.RawCandidate, error) {
	searchURL := strings.ReplaceAll(c.cfg.SearchURL, config.QueryPlaceholder, url.QueryEscape(query))
	if c.baseURL != "" {
		searchURL = rebase(searchURL, c.baseURL)
	}

	doc, base, err := c.fetchDocument(ctx, searchURL)
	if err != nil {
		return nil, errors.Wrapf(err, "portal %s search", c.cfg.Name)
	}

	var raws []models.RawCandidate
	doc.Find(c.cfg.ItemSelector).EachWithBreak(func(i int, item *goquery.Selection) bool {
		if len(raws) >= c.maxResults {
			return false
		}
		title := c.itemTitle(item)
		if title == "" {
			return true
		}
		raws = append(raws, models.RawCandidate{
			Title:    title,
			ImageURL: resolveRef(base, c.itemImage(item)),
			Source:   c.id,
			PageURL:  resolveRef(base, c.itemLink(item)),
		})
		return true
	})

	out := raws[:0]
	for _, raw := range raws {
		if raw.ImageURL == "" && raw.PageURL != "" {
			raw.ImageURL = c.ogImage(ctx, raw.PageURL)
		}
		if raw.ImageURL != "" {
			out = append(out, raw)
		}
	}
	return out, nil
}

func (c *PortalClient) itemTitle(item *goquery.Selection) string {
	sel := item
	if c.cfg.TitleSelector != "" {
		sel = item.Find(c.cfg.TitleSelector).First()
	}
	if title, ok := sel.Attr("title"); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	return strings.Join(strings.Fields(sel.Text()), " ")
}

func (c *PortalClient) itemImage(item *goquery.Selection) string {
	sel := item
	if c.cfg.ImageSelector != "" {
		sel = item.Find(c.cfg.ImageSelector).First()
	}
	if v, ok := sel.Attr(c.cfg.ImageAttr); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	for _, attr := range imageAttrFallbacks {
		if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	// background-image covers
	if style, ok := sel.Attr("style"); ok {
		if i := strings.Index(style, "url("); i >= 0 {
			rest := style[i+4:]
			if j := strings.Index(rest, ")"); j >= 0 {
				return strings.Trim(rest[:j], `'" `)
			}
		}
	}
	return ""
}

func (c *PortalClient) itemLink(item *goquery.Selection) string {
	selector := c.cfg.LinkSelector
	if selector == "" {
		selector = "a"
	}
	if href, ok := item.Attr("href"); ok {
		return href
	}
	href, _ := item.Find(selector).First().Attr("href")
	return href
}

// ogImage reads the og:image of a detail page; failures return ""
func (c *PortalClient) ogImage(ctx context.Context, pageURL string) string {
	doc, base, err := c.fetchDocument(ctx, pageURL)
	if err != nil {
		util.Debug("Portal detail page failed", "source", c.id, "url", pageURL, "error", err)
		return ""
	}
	for _, sel := range []string{`meta[property="og:image"]`, `meta[name="og:image"]`, `meta[name="twitter:image"]`} {
		if content, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(content) != "" {
			return resolveRef(base, strings.TrimSpace(content))
		}
	}
	return ""
}

func (c *PortalClient) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	if ref := util.RefererFor(pageURL); ref != "" {
		req.Header.Set("Referer", ref)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, nil, errors.Wrap(err, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return nil, nil, err
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to parse HTML")
	}
	return doc, resp.Request.URL, nil
}

// resolveRef resolves a possibly relative reference against base
func resolveRef(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}

// rebase swaps scheme and host of rawURL for those of base
func rebase(rawURL, base string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	b, err := url.Parse(base)
	if err != nil {
		return rawURL
	}
	u.Scheme, u.Host = b.Scheme, b.Host
	return u.String()
}

func (c *PortalClient) Close() error { return c.close() }
