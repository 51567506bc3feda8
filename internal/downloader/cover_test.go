package downloader

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakuzeng/anime-cover-crawler/internal/config"
	"github.com/sakuzeng/anime-cover-crawler/internal/models"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{G: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func newTestDownloader(t *testing.T, srv *httptest.Server, cfg config.DownloadConfig) *Downloader {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = filepath.Join(t.TempDir(), "covers")
	}
	d := New(cfg, srv.Client(), "")
	d.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) }
	return d
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestFileName(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, "Frieren_anilist_20240309_140507.jpg", FileName("Frieren", models.SourceAniList, ts))
	assert.Equal(t, "Re_Zero_portalage_20240309_140507.jpg", FileName("Re / Zero", "portal:age", ts))
}

func TestDownload_Success(t *testing.T) {
	t.Parallel()

	data := jpegBytes(t, 40, 60)
	var referer atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer.Store(r.Header.Get("Referer"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	d := newTestDownloader(t, srv, config.DownloadConfig{})

	var lastReceived, lastTotal atomic.Int64
	path, ok := d.DownloadWithProgress(context.Background(), srv.URL+"/c.jpg", "Frieren", models.SourceAniList, func(received, total int64) {
		lastReceived.Store(received)
		lastTotal.Store(total)
	})
	require.True(t, ok)
	assert.Equal(t, filepath.Join(d.Dir(), "Frieren_anilist_20240309_140507.jpg"), path)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, written)
	assert.Equal(t, int64(len(data)), lastReceived.Load())
	assert.Equal(t, int64(len(data)), lastTotal.Load())
	assert.Equal(t, srv.URL+"/", referer.Load())
	assert.Len(t, listDir(t, d.Dir()), 1, "no temp files left behind")

	info, err := FileInfo(path)
	require.NoError(t, err)
	assert.Equal(t, 40, info.Width)
	assert.Equal(t, 60, info.Height)
	assert.Equal(t, "jpeg", info.Format)
}

func TestDownload_Failures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	d := newTestDownloader(t, srv, config.DownloadConfig{})

	path, ok := d.Download(context.Background(), srv.URL+"/x.jpg", "x", models.SourceBilibili)
	assert.False(t, ok)
	assert.Empty(t, path)
	assert.Empty(t, listDir(t, d.Dir()), "no partial file on a bad status")

	path, ok = d.Download(context.Background(), "", "x", models.SourceBilibili)
	assert.False(t, ok)
	assert.Empty(t, path)

	path, ok = d.Download(context.Background(), "http://127.0.0.1:1/x.jpg", "x", models.SourceBilibili)
	assert.False(t, ok)
	assert.Empty(t, path)
}

func TestDownload_InterruptedBodyRemovesPartialFile(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100000")
		_, _ = w.Write([]byte("partial"))
		// the handler returns early so the client sees an unexpected EOF
	}))
	defer srv.Close()

	d := newTestDownloader(t, srv, config.DownloadConfig{})
	_, ok := d.Download(context.Background(), srv.URL, "x", models.SourceAniDB)
	assert.False(t, ok)
	assert.Empty(t, listDir(t, d.Dir()))
}

func TestDownloadAll_FailureDoesNotStopBatch(t *testing.T) {
	t.Parallel()

	data := jpegBytes(t, 8, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad.jpg" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	d := newTestDownloader(t, srv, config.DownloadConfig{})
	candidates := []models.Candidate{
		{RawCandidate: models.RawCandidate{ImageURL: srv.URL + "/bad.jpg", Source: models.SourceBilibili}},
		{RawCandidate: models.RawCandidate{ImageURL: srv.URL + "/good.jpg", Source: models.SourceAniList}},
	}

	results := d.DownloadAll(context.Background(), candidates, "Naruto")
	require.Len(t, results, 2)
	assert.False(t, results[0].OK)
	assert.True(t, results[1].OK)
	assert.FileExists(t, results[1].Path)
}

func TestDownload_ConvertAndResize(t *testing.T) {
	t.Parallel()

	data := pngBytes(t, 400, 200)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	d := newTestDownloader(t, srv, config.DownloadConfig{ConvertJPEG: true, MaxDimension: 100})
	path, ok := d.Download(context.Background(), srv.URL+"/c.png", "Big", models.SourceBangumi)
	require.True(t, ok)

	info, err := FileInfo(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", info.Format)
	assert.Equal(t, 100, info.Width)
	assert.Equal(t, 50, info.Height)
}

func TestDownload_ConvertOnly(t *testing.T) {
	t.Parallel()

	data := pngBytes(t, 30, 20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	plain := newTestDownloader(t, srv, config.DownloadConfig{})
	path, ok := plain.Download(context.Background(), srv.URL, "p", models.SourceBangumi)
	require.True(t, ok)
	info, err := FileInfo(path)
	require.NoError(t, err)
	assert.Equal(t, "png", info.Format, "no conversion unless configured")

	converting := newTestDownloader(t, srv, config.DownloadConfig{ConvertJPEG: true})
	path, ok = converting.Download(context.Background(), srv.URL, "p", models.SourceBangumi)
	require.True(t, ok)
	info, err = FileInfo(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", info.Format)
	assert.Equal(t, 30, info.Width)
}

func TestDownload_FailedConversionKeepsOriginal(t *testing.T) {
	t.Parallel()

	data := pngBytes(t, 30, 20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	d := newTestDownloader(t, srv, config.DownloadConfig{ConvertJPEG: true})
	d.encode = func(w io.Writer, _ image.Image, _ *jpeg.Options) error {
		_, _ = w.Write([]byte("half a jpeg"))
		return errors.New("no space left on device")
	}

	path, ok := d.Download(context.Background(), srv.URL, "p", models.SourceBangumi)
	require.True(t, ok)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, written, "original image survives a failed re-encode")
	assert.Len(t, listDir(t, d.Dir()), 1, "no temp files left behind")
}

func TestProgressModel(t *testing.T) {
	t.Parallel()

	m := newProgressModel()
	m.Update(itemMsg{index: 0, total: 2, label: "AniList"})
	m.Update(progressMsg{received: 512, totalBytes: 1024})

	view := m.View()
	assert.Contains(t, view, "[1/2] AniList")
	assert.Contains(t, view, "50.0%")

	m.Update(statusMsg("All downloads completed!"))
	assert.Contains(t, m.View(), "All downloads completed!")
}
