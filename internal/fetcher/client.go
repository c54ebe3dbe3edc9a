// Package fetcher is the EDGAR fetch client: a content-addressed disk cache in
// front of a polite, retrying HTTP client.
package fetcher

import (
	"bufio"
	"context"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/sells-group/etp-tracker/internal/resilience"
)

// DefaultUserAgent identifies the tracker to EDGAR. Override it with a
// contact address in production.
const DefaultUserAgent = "etp-tracker/1.0 (contact: set edgar.user_agent)"

const headerEnd = "</SEC-HEADER>"

// Options configures a Client.
type Options struct {
	UserAgent      string
	Timeout        time.Duration
	Pause          time.Duration // fixed politeness delay before every live request
	MaxRetries     int           // retries after the first attempt
	RetryBackoff   time.Duration // initial backoff between retries
	CacheDir       string        // empty disables the disk cache
	SubmissionsURL string        // template containing {CIK10}
	IndexMaxAge    time.Duration // staleness bound for RefreshIfStale

	// Limiter is an optional ceiling shared by every client in a run.
	Limiter *rate.Limiter

	// HTTPClient overrides the underlying client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client fetches EDGAR resources. A Client is not shared between workers;
// build one per worker with New.
type Client struct {
	http     *http.Client
	opts     Options
	requests atomic.Int64
	log      *zap.Logger
}

// New creates a Client, filling unset options with defaults.
func New(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	if opts.Pause < 0 {
		opts.Pause = 0
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.SubmissionsURL == "" {
		opts.SubmissionsURL = DefaultSubmissionsURL
	}
	if opts.IndexMaxAge <= 0 {
		opts.IndexMaxAge = 6 * time.Hour
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Client{
		http: hc,
		opts: opts,
		log:  zap.L().With(zap.String("component", "fetcher")),
	}
}

// Requests returns the number of live HTTP requests issued, retries included.
func (c *Client) Requests() int64 {
	return c.requests.Load()
}

// FetchText returns the body at url as text. Bodies that are not valid UTF-8
// are decoded using the declared charset, else Windows-1252.
func (c *Client) FetchText(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", nil
	}
	path := c.cachePath(webDir, hashURL(url)+".txt")
	if data, ok := readCache(path); ok {
		return string(data), nil
	}

	body, contentType, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}
	text := decodeText(body, contentType)
	c.writeCache(path, []byte(text))
	return text, nil
}

// FetchBytes returns the raw body at url.
func (c *Client) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, nil
	}
	path := c.cachePath(webDir, hashURL(url)+".bin")
	if data, ok := readCache(path); ok {
		return data, nil
	}

	body, _, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	c.writeCache(path, body)
	return body, nil
}

// FetchHeaderOnly returns the leading lines of a submission up to and
// including the </SEC-HEADER> line. A cached copy is read only that far;
// otherwise the document is fetched (and cached) in full and cut at the
// same line.
func (c *Client) FetchHeaderOnly(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", nil
	}
	path := c.cachePath(webDir, hashURL(url)+".txt")
	if path != "" {
		if head, err := readHeader(path); err == nil {
			return head, nil
		}
	}
	text, err := c.FetchText(ctx, url)
	if err != nil {
		return "", err
	}
	return headerOf(text), nil
}

// headerOf cuts text after the line holding </SEC-HEADER>, matching what
// readHeader returns for the same document.
func headerOf(text string) string {
	i := strings.Index(text, headerEnd)
	if i < 0 {
		return text
	}
	if nl := strings.IndexByte(text[i:], '\n'); nl >= 0 {
		return text[:i+nl+1]
	}
	return text
}

func readHeader(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck

	var sb strings.Builder
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		sb.WriteString(line)
		if strings.Contains(line, headerEnd) {
			break
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

// get issues a GET with pause, limiter, and retry. It returns the body and
// the response Content-Type.
func (c *Client) get(ctx context.Context, url string) ([]byte, string, error) {
	type result struct {
		body        []byte
		contentType string
	}

	cfg := resilience.DefaultRetryConfig().WithMaxRetries(c.opts.MaxRetries)
	cfg.InitialBackoff = c.opts.RetryBackoff
	cfg.OnRetry = resilience.RetryLogger("fetch", url)

	res, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (result, error) {
		if err := c.wait(ctx); err != nil {
			return result{}, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return result{}, eris.Wrap(err, "create request")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)

		c.requests.Add(1)
		resp, err := c.http.Do(req)
		if err != nil {
			return result{}, err
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return result{}, &resilience.StatusError{URL: url, StatusCode: resp.StatusCode}
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return result{}, resilience.NewTransientError(eris.Wrap(err, "read body"), resp.StatusCode)
		}
		return result{body: body, contentType: resp.Header.Get("Content-Type")}, nil
	})
	if err != nil {
		return nil, "", eris.Wrapf(err, "fetch %s", url)
	}
	return res.body, res.contentType, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.opts.Pause > 0 {
		t := time.NewTimer(c.opts.Pause)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	if c.opts.Limiter != nil {
		if err := c.opts.Limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limiter wait")
		}
	}
	return nil
}

// decodeText converts a response body to a Go string. UTF-8 passes through;
// otherwise the declared charset is used when known, else Windows-1252,
// which is what legacy EDGAR text documents are written in.
func decodeText(body []byte, contentType string) string {
	if utf8.Valid(body) {
		return string(body)
	}
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if cs := params["charset"]; cs != "" && !strings.EqualFold(cs, "utf-8") {
			if enc, err := htmlindex.Get(cs); err == nil {
				if out, err := enc.NewDecoder().Bytes(body); err == nil {
					return string(out)
				}
			}
		}
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(body)
	if err != nil {
		return strings.ToValidUTF8(string(body), "�")
	}
	return string(out)
}
