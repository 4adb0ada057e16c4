package sources

import (
	"context"
	"fmt"

	"github.com/baxromumarov/searchhub/internal/extract"
)

// HTMLSource scrapes one site described by an extraction schema.
type HTMLSource struct {
	schema  extract.Schema
	fetcher DocumentFetcher
}

func NewHTMLSource(schema extract.Schema, fetcher DocumentFetcher) *HTMLSource {
	return &HTMLSource{schema: schema, fetcher: fetcher}
}

func (s *HTMLSource) Name() string     { return s.schema.Name }
func (s *HTMLSource) Vertical() string { return s.schema.Vertical }
func (s *HTMLSource) Mode() string     { return s.schema.Mode }

func (s *HTMLSource) Search(ctx context.Context, q Query) ([]extract.Item, error) {
	for _, key := range s.schema.Requires {
		if q.Value(key) == "" {
			return nil, fmt.Errorf("%s needs %s: %w", s.schema.Name, key, ErrSkipped)
		}
	}
	target, err := s.schema.RenderURL(q)
	if err != nil {
		return nil, err
	}
	doc, err := s.fetcher.FetchDocument(ctx, target, s.schema.Headers)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.schema.Name, err)
	}
	return limitItems(extract.Apply(doc, &s.schema), q.Limit), nil
}
