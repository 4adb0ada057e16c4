package sources

import (
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/baxromumarov/searchhub/internal/extract"
)

//go:embed schemas/*.yaml
var schemaFS embed.FS

// DefaultSchemas returns the built-in site schemas.
func DefaultSchemas() ([]extract.Schema, error) {
	return extract.Load(schemaFS, "schemas")
}

type Descriptor struct {
	Name     string `json:"name"`
	Vertical string `json:"vertical"`
	Kind     string `json:"kind"`
}

// Registry keeps sources per vertical in registration order. Merge order
// of search results follows it.
type Registry struct {
	mu         sync.RWMutex
	byVertical map[string][]Source
	names      map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		byVertical: make(map[string][]Source),
		names:      make(map[string]struct{}),
	}
}

// hostThrottler is implemented by fetchers that pace requests per host.
type hostThrottler interface {
	SetHostLimit(host string, every time.Duration, burst int)
}

// NewDefaultRegistry registers every enabled built-in schema followed by
// the JSON API sources. Schemas with an interval get their host paced on
// fetcher when it supports it.
func NewDefaultRegistry(fetcher DocumentFetcher, client JSONFetcher) (*Registry, error) {
	schemas, err := DefaultSchemas()
	if err != nil {
		return nil, err
	}
	throttler, _ := fetcher.(hostThrottler)
	r := NewRegistry()
	for _, s := range schemas {
		if !s.IsEnabled() {
			continue
		}
		if throttler != nil && s.Interval > 0 && s.Base() != nil {
			throttler.SetHostLimit(s.Base().Hostname(), s.Interval, 1)
		}
		if err := r.Register(NewHTMLSource(s, fetcher)); err != nil {
			return nil, err
		}
	}
	if err := r.Register(NewRemoteOKSource(client, "")); err != nil {
		return nil, err
	}
	if err := r.Register(NewWikipediaSource(client, "")); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) Register(src Source) error {
	if !IsVertical(src.Vertical()) {
		return fmt.Errorf("source %s: unknown vertical %q", src.Name(), src.Vertical())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.names[src.Name()]; dup {
		return fmt.Errorf("source %s registered twice", src.Name())
	}
	r.names[src.Name()] = struct{}{}
	r.byVertical[src.Vertical()] = append(r.byVertical[src.Vertical()], src)
	return nil
}

// Sources returns a copy of the vertical's sources.
func (r *Registry) Sources(vertical string) []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Source(nil), r.byVertical[vertical]...)
}

func (r *Registry) Describe() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Descriptor
	for _, v := range Verticals {
		for _, src := range r.byVertical[v] {
			out = append(out, Descriptor{Name: src.Name(), Vertical: v, Kind: kindOf(src)})
		}
	}
	return out
}

func kindOf(src Source) string {
	switch s := src.(type) {
	case *HTMLSource:
		return s.Mode()
	default:
		return "api"
	}
}
