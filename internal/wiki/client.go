package wiki

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/davintoo/wiki-export-demo/internal/metrics"
	"github.com/davintoo/wiki-export-demo/internal/model"
	"github.com/davintoo/wiki-export-demo/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// AuthHeader is the request header carrying the bearer token.
const AuthHeader = "X-Cbr-Authorization"

// pageItemPath is the page data endpoint, relative to the host.
const pageItemPath = "/api/v2/wiki/get-item/"

// Client talks to one wiki host with one token.
// It is safe for concurrent use.
type Client struct {
	// host is the base URL without a trailing slash.
	host string

	// token is sent as "Bearer {token}" in AuthHeader.
	token string

	// httpClient is shared by every request of the run.
	httpClient *http.Client

	// userAgent is sent when non-empty.
	userAgent string

	// headers are added to every request.
	headers map[string]string

	// maxBodySize caps response bodies. 0 means unlimited.
	maxBodySize int64

	// timeout bounds each request. 0 means no timeout.
	timeout time.Duration

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHeaders adds extra headers to every request. The auth header
// cannot be overridden.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithMaxBodySize caps response bodies at n bytes. 0 disables the cap.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		c.maxBodySize = n
	}
}

// WithTimeout bounds every request. 0 disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMetrics records fetches and downloads in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client for host authenticated with token.
//
// host must be an absolute http or https URL; a trailing slash is removed.
// No request is made until FetchPage or Download is called.
func NewClient(host, token string, opts ...Option) (*Client, error) {
	host = strings.TrimRight(host, "/")
	u, err := url.Parse(host)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHost, host)
	}
	if token == "" {
		return nil, ErrMissingToken
	}

	c := &Client{
		host:       host,
		token:      token,
		httpClient: NewHTTPClient(),
		headers:    make(map[string]string),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewHTTPClient returns an HTTP client whose transport keeps connections
// to the wiki host alive between requests.
func NewHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Transport: transport}
}

// Host returns the base URL the client talks to.
func (c *Client) Host() string {
	return c.host
}

// PageURL returns the page data endpoint for title. The title is
// percent-encoded as a single path segment with the same unreserved set as
// JavaScript's encodeURIComponent, which the wiki's own links use.
func (c *Client) PageURL(title string) string {
	return c.host + pageItemPath + escapeComponent(title)
}

// escapeComponent percent-encodes every UTF-8 byte of s except
// A-Z a-z 0-9 and - _ . ! ~ * ' ( ).
func escapeComponent(s string) string {
	const hex = "0123456789ABCDEF"

	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		b := s[i]
		if isUnreservedComponentByte(b) {
			sb.WriteByte(b)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[b>>4])
		sb.WriteByte(hex[b&0x0f])
	}
	return sb.String()
}

func isUnreservedComponentByte(b byte) bool {
	switch {
	case 'a' <= b && b <= 'z', 'A' <= b && b <= 'Z', '0' <= b && b <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", b) >= 0
}

// FileURL returns the absolute URL of an attachment. fileURL is the
// host-relative path returned in page data.
func (c *Client) FileURL(fileURL string) string {
	return c.host + fileURL
}

// FetchPage fetches and decodes the page data of title.
//
// It fails on transport errors, on a non-2xx status (*StatusError) and on
// a body that does not decode (model.ErrMalformedResponse).
func (c *Client) FetchPage(ctx context.Context, title string) (data *model.PageData, err error) {
	ctx, span := tracing.StartSpan(ctx, "wiki.FetchPage")
	defer span.End()
	tracing.AddPageAttributes(span, title)

	start := time.Now()
	defer func() {
		c.metrics.ObservePageFetch(time.Since(start), err)
		tracing.RecordError(span, err)
	}()

	target := c.PageURL(title)
	c.logger.Debug("fetching page", "title", title, "url", target)

	_, body, err := c.get(ctx, target, func(r io.Reader) (int64, []byte, error) {
		b, err := c.readAll(r)
		return int64(len(b)), b, err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch page %q: %w", title, err)
	}

	data, err = model.DecodePageData(body)
	if err != nil {
		return nil, fmt.Errorf("fetch page %q: %w", title, err)
	}
	return data, nil
}

// Download streams the attachment at the host-relative fileURL into w and
// returns the number of bytes written. A non-2xx status is an error and
// nothing is written.
func (c *Client) Download(ctx context.Context, fileURL string, w io.Writer) (n int64, err error) {
	target := c.FileURL(fileURL)

	ctx, span := tracing.StartSpan(ctx, "wiki.Download")
	defer span.End()
	tracing.AddFileAttributes(span, target)

	start := time.Now()
	defer func() {
		c.metrics.ObserveDownload(time.Since(start), n, err)
		span.SetAttributes(attribute.Int64("wiki.file.size", n))
		tracing.RecordError(span, err)
	}()

	c.logger.Debug("downloading file", "url", target)

	n, _, err = c.get(ctx, target, func(r io.Reader) (int64, []byte, error) {
		written, err := c.copy(w, r)
		return written, nil, err
	})
	if err != nil {
		return n, fmt.Errorf("download %s: %w", target, err)
	}
	return n, nil
}

// get performs an authenticated GET and hands a 2xx body to consume.
func (c *Client) get(ctx context.Context, target string, consume func(io.Reader) (int64, []byte, error)) (int64, []byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set(AuthHeader, "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024)) //nolint:errcheck // best effort
		return 0, nil, &StatusError{StatusCode: resp.StatusCode, URL: target}
	}

	return consume(resp.Body)
}

func (c *Client) readAll(r io.Reader) ([]byte, error) {
	if c.maxBodySize <= 0 {
		return io.ReadAll(r)
	}
	b, err := io.ReadAll(io.LimitReader(r, c.maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > c.maxBodySize {
		return nil, ErrBodyTooLarge
	}
	return b, nil
}

func (c *Client) copy(w io.Writer, r io.Reader) (int64, error) {
	if c.maxBodySize <= 0 {
		return io.Copy(w, r)
	}
	n, err := io.Copy(w, io.LimitReader(r, c.maxBodySize+1))
	if err != nil {
		return n, err
	}
	if n > c.maxBodySize {
		return n, ErrBodyTooLarge
	}
	return n, nil
}
