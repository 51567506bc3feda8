// Package covercrawler provides a public API for searching anime covers
// across several sources and saving the best ones.
// This package can be used as a library in other Go projects.
package covercrawler

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/sakuzeng/anime-cover-crawler/internal/config"
	"github.com/sakuzeng/anime-cover-crawler/internal/crawler"
	"github.com/sakuzeng/anime-cover-crawler/internal/downloader"
	"github.com/sakuzeng/anime-cover-crawler/internal/models"
	"github.com/sakuzeng/anime-cover-crawler/internal/quality"
	"github.com/sakuzeng/anime-cover-crawler/internal/resolver"
	"github.com/sakuzeng/anime-cover-crawler/internal/scraper"
	"github.com/sakuzeng/anime-cover-crawler/internal/util"
	"github.com/sakuzeng/anime-cover-crawler/pkg/covercrawler/types"
)

// Client is the main client for searching and downloading covers
type Client struct {
	cfg        *config.Config
	crawler    *crawler.Crawler
	downloader *downloader.Downloader
	session    *http.Client
}

// NewClient creates a client with the default settings plus any
// ANIME_COVER_* environment overrides
func NewClient() *Client {
	return newClient(config.Default())
}

// NewClientFromFile creates a client from a config file. An empty path
// searches the usual locations.
func NewClientFromFile(path string) (*Client, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return newClient(cfg), nil
}

func newClient(cfg *config.Config) *Client {
	// image probes and downloads share one session
	session := util.NewSession(cfg.HTTP.Timeout)
	prober := quality.NewProber(session, quality.WithUserAgent(cfg.HTTP.UserAgent))
	return &Client{
		cfg:        cfg,
		crawler:    crawler.New(cfg, scraper.NewRegistryFromConfig(cfg, nil), resolver.New(prober)),
		downloader: downloader.New(cfg.Download, session, cfg.HTTP.UserAgent),
		session:    session,
	}
}

// SetOutputDir changes the directory Download writes to
func (c *Client) SetOutputDir(dir string) {
	c.cfg.Download.Dir = dir
	c.downloader = downloader.New(c.cfg.Download, c.session, c.cfg.HTTP.UserAgent)
}

// Search queries the given sources, or every enabled source when none is
// given, and returns the best cover of each source that found a match,
// highest quality first. An empty slice means nothing matched.
func (c *Client) Search(ctx context.Context, query string, sources ...types.Source) ([]*types.Cover, error) {
	ids := make([]models.SourceID, 0, len(sources))
	for _, s := range sources {
		ids = append(ids, s.ToSourceID())
	}

	results, err := c.crawler.ResolveAll(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	return types.FromInternalResultSet(results), nil
}

// Download saves a cover returned by Search and returns the file path.
// label is used as the file name prefix.
func (c *Client) Download(ctx context.Context, cover *types.Cover, label string) (string, error) {
	if cover == nil {
		return "", errors.New("nil cover")
	}
	path, ok := c.downloader.Download(ctx, cover.ImageURL, label, cover.Source.ToSourceID())
	if !ok {
		return "", errors.Errorf("failed to download cover from %s", cover.Source)
	}
	return path, nil
}

// AvailableSources returns the sources Search queries by default
func (c *Client) AvailableSources() []types.Source {
	ids := c.crawler.Sources()
	out := make([]types.Source, 0, len(ids))
	for _, id := range ids {
		out = append(out, types.Source(id))
	}
	return out
}

// Close releases the HTTP sessions held by the client
func (c *Client) Close() error {
	util.CloseSession(c.session)
	return c.crawler.Close()
}
