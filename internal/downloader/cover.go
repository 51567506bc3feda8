// Package downloader saves cover images to disk
package downloader

import (
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/sakuzeng/anime-cover-crawler/internal/config"
	"github.com/sakuzeng/anime-cover-crawler/internal/models"
	"github.com/sakuzeng/anime-cover-crawler/internal/util"
)

// timestampLayout is the YYYYmmdd_HHMMSS suffix of saved files
const timestampLayout = "20060102_150405"

// copyBufferSize matches the chunk size covers are streamed in
const copyBufferSize = 8192

// ProgressFunc is called as bytes arrive; total is -1 when unknown
type ProgressFunc func(received, total int64)

// Downloader streams images into a flat output directory
type Downloader struct {
	dir          string
	client       *http.Client
	userAgent    string
	convertJPEG  bool
	maxDimension int
	now          func() time.Time
	encode       jpegEncoder
}

// Result is the outcome of one download in a batch
type Result struct {
	Candidate models.Candidate
	Path      string
	OK        bool
}

// New creates a downloader writing into cfg.Dir. A nil client gets its own
// session.
func New(cfg config.DownloadConfig, client *http.Client, userAgent string) *Downloader {
	if client == nil {
		client = util.NewSession(0)
	}
	if userAgent == "" {
		userAgent = util.DefaultUserAgent
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "covers"
	}
	return &Downloader{
		dir:          dir,
		client:       client,
		userAgent:    userAgent,
		convertJPEG:  cfg.ConvertJPEG,
		maxDimension: cfg.MaxDimension,
		now:          time.Now,
		encode:       jpeg.Encode,
	}
}

// Dir returns the output directory
func (d *Downloader) Dir() string {
	return d.dir
}

// FileName returns the name a cover for label from source would be saved
// under at time t. Downloads within the same second overwrite each other.
func FileName(label string, source models.SourceID, t time.Time) string {
	return fmt.Sprintf("%s_%s_%s.jpg",
		util.SanitizeForFilename(label),
		util.SanitizeForFilename(string(source)),
		t.Format(timestampLayout))
}

// Download saves url and returns the written path. Failures are logged and
// reported as ("", false).
func (d *Downloader) Download(ctx context.Context, url, label string, source models.SourceID) (string, bool) {
	return d.DownloadWithProgress(ctx, url, label, source, nil)
}

// DownloadWithProgress is Download with a progress callback
func (d *Downloader) DownloadWithProgress(ctx context.Context, url, label string, source models.SourceID, onProgress ProgressFunc) (string, bool) {
	path, err := d.download(ctx, url, label, source, onProgress)
	if err != nil {
		util.Error("Download failed", "url", url, "source", source, "error", err)
		return "", false
	}
	util.Info("Cover saved", "path", path, "source", source)
	return path, true
}

// DownloadAll saves every candidate; one failure never stops the others
func (d *Downloader) DownloadAll(ctx context.Context, candidates []models.Candidate, label string) []Result {
	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		path, ok := d.Download(ctx, c.ImageURL, label, c.Source)
		results = append(results, Result{Candidate: c, Path: path, OK: ok})
	}
	return results
}

func (d *Downloader) download(ctx context.Context, url, label string, source models.SourceID, onProgress ProgressFunc) (string, error) {
	if url == "" {
		return "", errors.New("empty image url")
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create output directory")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", d.userAgent)
	if ref := util.RefererFor(url); ref != "" {
		req.Header.Set("Referer", ref)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("server returned: %s", resp.Status)
	}

	tmp, err := os.CreateTemp(d.dir, ".cover-*.part")
	if err != nil {
		return "", errors.Wrap(err, "failed to create temp file")
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	body := io.Reader(resp.Body)
	if onProgress != nil {
		body = &progressReader{r: resp.Body, total: resp.ContentLength, fn: onProgress}
	}
	if _, err := io.CopyBuffer(tmp, body, make([]byte, copyBufferSize)); err != nil {
		_ = tmp.Close()
		return "", errors.Wrap(err, "failed to write image")
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrap(err, "failed to close file")
	}

	if d.convertJPEG || d.maxDimension > 0 {
		if err := postProcess(tmpPath, d.convertJPEG, d.maxDimension, d.encode); err != nil {
			util.Warn("Keeping original image, post-processing failed", "url", url, "error", err)
		}
	}

	finalPath := filepath.Join(d.dir, FileName(label, source, d.now()))
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", errors.Wrap(err, "failed to move file into place")
	}
	committed = true
	return finalPath, nil
}

// progressReader reports every read to fn
type progressReader struct {
	r        io.Reader
	total    int64
	received int64
	fn       ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.received += int64(n)
		p.fn(p.received, p.total)
	}
	return n, err
}

// FileInfo reports size in MB and the image dimensions of a saved cover
func FileInfo(path string) (models.ImageProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.ImageProfile{}, err
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return models.ImageProfile{}, err
	}
	profile := models.ImageProfile{SizeMB: float64(st.Size()) / (1024 * 1024)}
	if cfg, format, err := decodeConfig(f); err == nil {
		profile.Width, profile.Height, profile.Format = cfg.Width, cfg.Height, format
	}
	return profile, nil
}
