package quality

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakuzeng/anime-cover-crawler/internal/models"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		profile models.ImageProfile
		want    float64
	}{
		{"zero profile", models.ImageProfile{}, 0},
		{"scenario A cover", models.ImageProfile{Width: 1000, Height: 1400, SizeMB: 0.5}, 700000},
		{"missing size", models.ImageProfile{Width: 10, Height: 10}, 0},
		{"small", models.ImageProfile{Width: 2, Height: 3, SizeMB: 1}, 6},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Score(tc.profile), 1e-9)
		})
	}
}

func TestProbe_Formats(t *testing.T) {
	t.Parallel()

	pngData := encodePNG(t, 30, 40)
	jpegData := encodeJPEG(t, 64, 48)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cover.png":
			_, _ = w.Write(pngData)
		case "/cover.jpg":
			_, _ = w.Write(jpegData)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewProber(srv.Client())

	profile := p.Probe(context.Background(), srv.URL+"/cover.png")
	assert.Equal(t, 30, profile.Width)
	assert.Equal(t, 40, profile.Height)
	assert.Equal(t, "png", profile.Format)
	assert.InDelta(t, float64(len(pngData))/(1024*1024), profile.SizeMB, 1e-12)

	profile = p.Probe(context.Background(), srv.URL+"/cover.jpg")
	assert.Equal(t, 64, profile.Width)
	assert.Equal(t, 48, profile.Height)
	assert.Equal(t, "jpeg", profile.Format)
	assert.Greater(t, Score(profile), 0.0)
}

func TestProbe_FailuresYieldZeroProfile(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/text":
			_, _ = w.Write([]byte("<html>not an image</html>"))
		case "/empty":
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		default:
			http.Error(w, "gone", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewProber(srv.Client())
	ctx := context.Background()

	assert.True(t, p.Probe(ctx, "").IsZero(), "empty url")
	assert.True(t, p.Probe(ctx, srv.URL+"/missing").IsZero(), "404")
	assert.True(t, p.Probe(ctx, srv.URL+"/text").IsZero(), "undecodable")
	assert.True(t, p.Probe(ctx, srv.URL+"/empty").IsZero(), "empty body")
	assert.True(t, p.Probe(ctx, "http://127.0.0.1:1/cover.jpg").IsZero(), "unreachable")

	timeoutCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.True(t, p.Probe(timeoutCtx, srv.URL+"/slow").IsZero(), "timeout")
}

func TestProbe_CachesPerURL(t *testing.T) {
	t.Parallel()

	data := encodePNG(t, 8, 8)
	var hits atomic.Int32
	var referer atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		referer.Store(r.Header.Get("Referer"))
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	p := NewProber(srv.Client())
	first := p.Probe(context.Background(), srv.URL+"/a.png")
	second := p.Probe(context.Background(), srv.URL+"/a.png")

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, srv.URL+"/", referer.Load())
}

func TestProbe_FailuresAreNotCached(t *testing.T) {
	t.Parallel()

	data := encodePNG(t, 4, 4)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	p := NewProber(srv.Client())
	assert.True(t, p.Probe(context.Background(), srv.URL).IsZero())
	assert.Equal(t, 4, p.Probe(context.Background(), srv.URL).Width)
}
