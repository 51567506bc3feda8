// Package scraper talks to the cover sources. Every site lives in its own file
// behind the Adapter interface; Source wraps an adapter with pacing, retries
// and an error boundary.
package scraper

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/sakuzeng/anime-cover-crawler/internal/models"
	"github.com/sakuzeng/anime-cover-crawler/internal/util"
)

// Adapter fetches raw candidates for a query from one source
type Adapter interface {
	ID() models.SourceID
	Fetch(ctx context.Context, query string) ([]models.RawCandidate, error)
	Close() error
}

// Options configures an adapter's HTTP session
type Options struct {
	// Client replaces the adapter's own session, mostly for tests
	Client *http.Client
	// BaseURL overrides the site's API or search root
	BaseURL     string
	UserAgent   string
	Timeout     time.Duration
	MinInterval time.Duration
	MaxResults  int
}

const defaultMaxResults = 10

// maxBodyBytes caps API and HTML responses
const maxBodyBytes = 8 << 20

// session is the HTTP plumbing shared by the adapters: one client with its
// own cookie jar plus a limiter spacing consecutive requests.
type session struct {
	client     *http.Client
	owned      bool
	limiter    *rate.Limiter
	userAgent  string
	baseURL    string
	maxResults int
}

func newSession(opts Options, defaultBase string) *session {
	s := &session{
		client:     opts.Client,
		userAgent:  opts.UserAgent,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		maxResults: opts.MaxResults,
	}
	if s.client == nil {
		s.client = util.NewSession(opts.Timeout)
		s.owned = true
	}
	if s.userAgent == "" {
		s.userAgent = util.DefaultUserAgent
	}
	if s.baseURL == "" {
		s.baseURL = defaultBase
	}
	if s.maxResults <= 0 {
		s.maxResults = defaultMaxResults
	}
	if opts.MinInterval > 0 {
		s.limiter = rate.NewLimiter(rate.Every(opts.MinInterval), 1)
	} else {
		s.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return s
}

// do waits for the limiter, fills in the browser headers and sends req
func (s *session) do(req *http.Request) (*http.Response, error) {
	if err := s.limiter.Wait(req.Context()); err != nil {
		return nil, errors.Wrap(err, "rate limiter")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8,ja;q=0.7")
	}
	return s.client.Do(req)
}

// getJSON sends req and decodes a 2xx JSON body into out
func (s *session) getJSON(req *http.Request, out interface{}) error {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := s.do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

func (s *session) close() error {
	if s.owned {
		util.CloseSession(s.client)
	}
	return nil
}

// limit trims a result list to the configured maximum
func (s *session) limit(raws []models.RawCandidate) []models.RawCandidate {
	if len(raws) > s.maxResults {
		return raws[:s.maxResults]
	}
	return raws
}

// StatusError is returned for a non-2xx response
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return "server returned: " + e.Status
}

// statusCode extracts the HTTP status from err, or 0
func statusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// checkStatus turns a non-2xx response into an error. Client errors other
// than 408 and 429 will not go away on retry and are marked permanent.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	err := &StatusError{Code: resp.StatusCode, Status: resp.Status}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusRequestTimeout:
		return err
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return Permanent(err)
	}
	return err
}

// httpsURL upgrades plain http and protocol-relative URLs to https
func httpsURL(u string) string {
	u = strings.TrimSpace(u)
	switch {
	case strings.HasPrefix(u, "//"):
		return "https:" + u
	case strings.HasPrefix(u, "http://"):
		return "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

// firstNonEmpty returns the first argument that is not blank
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// otherTitles returns the non-empty values that differ from primary
func otherTitles(primary string, values ...string) []string {
	var out []string
	seen := map[string]bool{primary: true}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// permanentError marks a failure that retrying cannot fix
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Source stops retrying it
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
