// Package webpage downloads pages and reduces them to plain text.
package webpage

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultUserAgent = "cold-mailer/1.0 (+https://github.com/spigell/cold-mailer)"
	DefaultTimeout   = 10 * time.Second

	contentEncoding = "gzip"
	maxBodySize     = 5 << 20
)

// StatusError is returned when the server answers with anything but 200 OK.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("get %s: bad status: %s", e.URL, e.Status)
}

type Client struct {
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
}

func New(logger *zap.Logger, timeout time.Duration, userAgent string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent = strings.TrimSpace(userAgent); userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{
		logger: logger,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		UserAgent: userAgent,
	}
}

// Fetch returns the raw body of the page at rawURL.
func (c *Client) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported url %q: scheme must be http or https", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{URL: req.URL.String(), StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(io.LimitReader(reader, maxBodySize))
	if err != nil {
		return "", err
	}

	c.logger.Debug("got response", zap.String("url", req.URL.String()), zap.Int("bytes", len(data)))
	return string(data), nil
}

// FetchText returns the visible text of the page at rawURL.
func (c *Client) FetchText(ctx context.Context, rawURL string) (string, error) {
	body, err := c.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return HTMLText(body)
}

// BaseURL returns the scheme and host of rawURL, e.g. "https://example.com".
func BaseURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no scheme or host", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
