package utils

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
)

const defaultMaxSize = 10 << 20

// Fetcher downloads HTML samples given by URL.
type Fetcher struct {
	userAgent string
	maxSize   int64
	timeout   time.Duration
}

func NewFetcher(userAgent string, maxSize int64, timeout time.Duration) *Fetcher {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	return &Fetcher{
		userAgent: userAgent,
		maxSize:   maxSize,
		timeout:   timeout,
	}
}

func CheckURL(rawURL string) error {
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("invalid URL format")
	}
	return nil
}

// Fetch returns the body of rawURL. Bodies above the size limit are
// truncated.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if err := CheckURL(rawURL); err != nil {
		return "", err
	}

	opts := []colly.CollectorOption{
		colly.AllowURLRevisit(),
		colly.MaxBodySize(int(f.maxSize)),
		colly.StdlibContext(ctx),
	}
	if f.userAgent != "" {
		opts = append(opts, colly.UserAgent(f.userAgent))
	}

	c := colly.NewCollector(opts...)
	if f.timeout > 0 {
		c.SetRequestTimeout(f.timeout)
	}

	var body []byte
	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("failed to fetch %s: status %d: %w", rawURL, r.StatusCode, err)
	})

	if err := c.Visit(rawURL); err != nil && fetchErr == nil {
		fetchErr = fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	c.Wait()

	if fetchErr != nil {
		return "", fetchErr
	}
	return string(body), nil
}
