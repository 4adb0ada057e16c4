package httpx

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

const DefaultUserAgent = "Mozilla/5.0 (compatible; searchhub/1.0)"

// CollyFetcher downloads listing pages with a fresh colly collector per
// request. Hosts are paced individually and 429/5xx answers are retried.
type CollyFetcher struct {
	userAgent string
	timeout   time.Duration
	attempts  int
	pacers    *pacerSet
}

type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch error (status %d)", e.Status)
	}
	return fmt.Sprintf("fetch error (status %d): %v", e.Status, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type FetcherOption func(*CollyFetcher)

func WithTimeout(d time.Duration) FetcherOption {
	return func(f *CollyFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

func WithAttempts(n int) FetcherOption {
	return func(f *CollyFetcher) {
		if n > 0 {
			f.attempts = n
		}
	}
}

func NewCollyFetcher(userAgent string, opts ...FetcherOption) *CollyFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	f := &CollyFetcher{
		userAgent: userAgent,
		timeout:   15 * time.Second,
		attempts:  3,
		pacers:    newPacerSet(time.Second, 2),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetHostLimit allows burst requests to host per every.
func (f *CollyFetcher) SetHostLimit(host string, every time.Duration, burst int) {
	f.pacers.set(host, every, burst)
}

// FetchDocument fetches rawURL and parses the body as HTML.
func (f *CollyFetcher) FetchDocument(ctx context.Context, rawURL string, headers map[string]string) (*goquery.Document, error) {
	target, err := parseTarget(rawURL)
	if err != nil {
		return nil, err
	}
	pacer := f.pacers.get(target.Host)

	var lastErr error
	for attempt := 0; attempt < f.attempts; attempt++ {
		if err := pacer.wait(ctx); err != nil {
			return nil, err
		}
		body, status, err := f.get(ctx, target.String(), headers)
		if err == nil {
			doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
			if err != nil {
				return nil, &FetchError{Status: status, Err: fmt.Errorf("parse failed: %w", err)}
			}
			return doc, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = &FetchError{Status: status, Err: err}
		if !shouldBackoff(status) {
			break
		}
		pacer.coolDown(attempt)
	}
	return nil, lastErr
}

func (f *CollyFetcher) get(ctx context.Context, target string, headers map[string]string) ([]byte, int, error) {
	c := colly.NewCollector(colly.UserAgent(f.userAgent), colly.StdlibContext(ctx))
	c.SetRequestTimeout(f.timeout)

	var (
		body   []byte
		status int
		reqErr error
	)
	c.OnRequest(func(r *colly.Request) {
		for k, v := range headers {
			r.Headers.Set(k, v)
		}
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		reqErr = err
	})

	if err := c.Request(http.MethodGet, target, nil, colly.NewContext(), nil); err != nil {
		return nil, status, err
	}
	if reqErr != nil {
		return nil, status, reqErr
	}
	if status >= 400 {
		return nil, status, fmt.Errorf("status %d", status)
	}
	if status == 0 {
		status = http.StatusOK
	}
	return body, status, nil
}

func shouldBackoff(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}
