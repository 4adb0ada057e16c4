package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// ErrBlocked is returned when robots.txt disallows a path.
var ErrBlocked = errors.New("blocked by robots.txt")

const maxJSONBody = 8 << 20

// PoliteClient calls JSON APIs: GET and HEAD only, robots.txt honored,
// one request per second per host, 429/503 retried.
type PoliteClient struct {
	client *http.Client
	ua     string
	pacers *pacerSet

	mu     sync.Mutex
	robots map[string]*robotstxt.RobotsData
}

func NewPoliteClient(userAgent string, timeout time.Duration) *PoliteClient {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PoliteClient{
		client: &http.Client{Timeout: timeout},
		ua:     userAgent,
		pacers: newPacerSet(time.Second, 2),
		robots: map[string]*robotstxt.RobotsData{},
	}
}

// NewRequest builds a GET request for rawURL, defaulting the scheme to https.
func NewRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	u, err := parseTarget(rawURL)
	if err != nil {
		return nil, err
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
}

// GetJSON fetches rawURL and decodes the JSON body into dst. Responses with
// status >= 400 come back as *FetchError.
func (p *PoliteClient) GetJSON(ctx context.Context, rawURL string, headers map[string]string, dst any) error {
	req, err := NewRequest(ctx, rawURL)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := p.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("GET %s", req.URL.Host)}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONBody)).Decode(dst); err != nil {
		return &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("decode json: %w", err)}
	}
	return nil
}

func (p *PoliteClient) robotsFor(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	host := u.Host
	p.mu.Lock()
	if data, ok := p.robots[host]; ok {
		p.mu.Unlock()
		return data, nil
	}
	p.mu.Unlock()

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.ua)

	if err := p.pacers.get(host).wait(ctx); err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.robots[host] = data
	p.mu.Unlock()
	return data, nil
}

// Do sends req once robots.txt allows it, retrying 429 and 503 answers.
func (p *PoliteClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", p.ua)
	}

	u := req.URL
	if u.Scheme == "" {
		u.Scheme = "https"
	}

	if ok := p.allowed(ctx, u, req.Method); !ok {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, u)
	}

	pacer := p.pacers.get(u.Host)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := pacer.wait(ctx); err != nil {
			return nil, err
		}

		resp, err := p.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			lastErr = &FetchError{Status: resp.StatusCode, Err: errors.New("retryable status")}
			resp.Body.Close()
			pacer.coolDown(attempt)
			continue
		}

		return resp, nil
	}

	if lastErr == nil {
		lastErr = errors.New("polite client: failed without error")
	}
	return nil, lastErr
}

func (p *PoliteClient) allowed(ctx context.Context, u *url.URL, method string) bool {
	// Only reads are allowed, whatever robots.txt says.
	if !strings.EqualFold(method, http.MethodGet) && !strings.EqualFold(method, http.MethodHead) {
		return false
	}
	data, err := p.robotsFor(ctx, u)
	if err != nil {
		return true // fail open to avoid blocking everything
	}
	group := data.FindGroup(p.ua)
	if group == nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}
