package httpx

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// pacerSet hands out one pacer per host, created with the default rate
// unless SetHostLimit configured the host first.
type pacerSet struct {
	mu     sync.Mutex
	every  time.Duration
	burst  int
	byHost map[string]*hostPacer
}

func newPacerSet(every time.Duration, burst int) *pacerSet {
	return &pacerSet{every: every, burst: burst, byHost: map[string]*hostPacer{}}
}

func (s *pacerSet) get(host string) *hostPacer {
	host = hostKey(host)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byHost[host]
	if !ok {
		p = &hostPacer{limiter: rate.NewLimiter(rate.Every(s.every), s.burst)}
		s.byHost[host] = p
	}
	return p
}

func (s *pacerSet) set(host string, every time.Duration, burst int) {
	if host == "" || every <= 0 || burst <= 0 {
		return
	}
	p := s.get(host)
	p.limiter.SetLimit(rate.Every(every))
	p.limiter.SetBurst(burst)
}

type hostPacer struct {
	limiter *rate.Limiter

	mu        sync.Mutex
	coolUntil time.Time
}

// wait blocks until the host's cool-down is over and the limiter grants a
// request.
func (p *hostPacer) wait(ctx context.Context) error {
	p.mu.Lock()
	until := p.coolUntil
	p.mu.Unlock()
	if d := time.Until(until); d > 0 {
		if err := sleepWithContext(ctx, d); err != nil {
			return err
		}
	}
	if err := p.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// The limiter refuses up front when the deadline is too close.
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return nil
}

// coolDown keeps the host quiet after a throttled or failing answer,
// 500ms doubled per attempt.
func (p *hostPacer) coolDown(attempt int) {
	next := time.Now().Add(time.Duration(500*(1<<attempt)) * time.Millisecond)
	p.mu.Lock()
	if next.After(p.coolUntil) {
		p.coolUntil = next
	}
	p.mu.Unlock()
}

func hostKey(host string) string {
	host = strings.ToLower(host)
	return strings.TrimPrefix(host, "www.")
}

// parseTarget parses rawURL, defaulting the scheme to https.
func parseTarget(rawURL string) (*url.URL, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("empty url")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return u, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
