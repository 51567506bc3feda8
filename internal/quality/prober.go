// Package quality measures cover images and turns the measurements into a
// comparable score.
package quality

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/webp" // register decoder

	"github.com/sakuzeng/anime-cover-crawler/internal/models"
	"github.com/sakuzeng/anime-cover-crawler/internal/util"
)

const (
	bytesPerMB = 1024 * 1024

	// maxImageBytes caps a single probe download
	maxImageBytes = 50 * bytesPerMB

	defaultCacheTTL  = 30 * time.Minute
	defaultCacheSize = 256
)

// Score returns Width * Height * SizeMB. A failed probe scores 0.
func Score(p models.ImageProfile) float64 {
	if p.Width <= 0 || p.Height <= 0 || p.SizeMB <= 0 {
		return 0
	}
	return float64(p.Width) * float64(p.Height) * p.SizeMB
}

// Prober downloads images to learn their dimensions and size. Results are
// memoised per URL so an image shared between sources is fetched once.
type Prober struct {
	client    *http.Client
	userAgent string
	cache     *util.TTLCache[models.ImageProfile]
	watch     *util.Stopwatch
}

// Option configures a Prober
type Option func(*Prober)

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) Option {
	return func(p *Prober) {
		if ua != "" {
			p.userAgent = ua
		}
	}
}

// WithStopwatch records probe timings
func WithStopwatch(sw *util.Stopwatch) Option {
	return func(p *Prober) { p.watch = sw }
}

// NewProber creates a prober using client, or a fresh session when nil
func NewProber(client *http.Client, opts ...Option) *Prober {
	if client == nil {
		client = util.NewSession(0)
	}
	p := &Prober{
		client:    client,
		userAgent: util.DefaultUserAgent,
		cache:     util.NewTTLCache[models.ImageProfile](defaultCacheTTL, defaultCacheSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe fetches url and returns its profile. Any failure yields the zero
// profile and a warning; Probe never fails.
func (p *Prober) Probe(ctx context.Context, url string) models.ImageProfile {
	if url == "" {
		return models.ImageProfile{}
	}
	if profile, ok := p.cache.Get(url); ok {
		p.watch.Count("probe_cache_hit")
		util.Debug("Probe cache hit", "url", url)
		return profile
	}

	defer p.watch.Track("probe")()
	profile, err := p.fetch(ctx, url)
	if err != nil {
		util.Warn("Image probe failed", "url", url, "error", err)
		return models.ImageProfile{}
	}

	p.cache.Set(url, profile)
	util.Debug("Probed image", "url", url, "resolution", profile.Resolution(), "size_mb", profile.SizeMB, "format", profile.Format)
	return profile
}

func (p *Prober) fetch(ctx context.Context, url string) (models.ImageProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.ImageProfile{}, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	if ref := util.RefererFor(url); ref != "" {
		req.Header.Set("Referer", ref)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return models.ImageProfile{}, errors.Wrap(err, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.ImageProfile{}, errors.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return models.ImageProfile{}, errors.Wrap(err, "failed to read image")
	}
	if len(data) == 0 {
		return models.ImageProfile{}, errors.New("empty body")
	}
	if len(data) > maxImageBytes {
		return models.ImageProfile{}, errors.Errorf("image larger than %d bytes", maxImageBytes)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return models.ImageProfile{}, errors.Wrap(err, "failed to decode image header")
	}

	return models.ImageProfile{
		Width:  cfg.Width,
		Height: cfg.Height,
		SizeMB: float64(len(data)) / bytesPerMB,
		Format: format,
	}, nil
}
