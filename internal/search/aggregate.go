package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/baxromumarov/searchhub/internal/extract"
	"github.com/baxromumarov/searchhub/internal/observability"
	"github.com/baxromumarov/searchhub/internal/sources"
)

type Status string

const (
	StatusOK          Status = "ok"
	StatusEmpty       Status = "empty"
	StatusUnavailable Status = "unavailable"
)

// Outcome is what one source contributed to a search.
type Outcome struct {
	Source    string `json:"source"`
	Status    Status `json:"status"`
	Count     int    `json:"count"`
	Reason    string `json:"reason,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// Aggregate runs every source concurrently, each under its own timeout,
// and returns their items and outcomes in source order. A failing source
// never fails the whole call.
func Aggregate(ctx context.Context, logger *slog.Logger, srcs []sources.Source, q sources.Query, perSource time.Duration) ([][]extract.Item, []Outcome) {
	batches := make([][]extract.Item, len(srcs))
	outcomes := make([]Outcome, len(srcs))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range srcs {
		g.Go(func() error {
			batches[i], outcomes[i] = runSource(gctx, logger, src, q, perSource)
			return nil
		})
	}
	_ = g.Wait()
	return batches, outcomes
}

func runSource(ctx context.Context, logger *slog.Logger, src sources.Source, q sources.Query, timeout time.Duration) (items []extract.Item, out Outcome) {
	start := time.Now()
	out.Source = src.Name()

	sctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			items = nil
			out.Status = StatusUnavailable
			out.Reason = observability.ErrorUnknown
			out.Count = 0
			logger.Error("source panicked", "source", src.Name(), "panic", fmt.Sprint(r))
		}
		out.ElapsedMS = time.Since(start).Milliseconds()
		observability.ObserveSource(out.Source, string(out.Status), time.Since(start).Seconds())
	}()

	items, err := src.Search(sctx, q)
	switch {
	case errors.Is(err, sources.ErrSkipped):
		out.Status = StatusEmpty
		out.Reason = "skipped"
		return nil, out
	case err != nil:
		out.Status = StatusUnavailable
		out.Reason = observability.ClassifySourceError(err)
		if errors.Is(sctx.Err(), context.DeadlineExceeded) {
			out.Reason = observability.ErrorTimeout
		}
		observability.IncError(out.Reason, src.Name())
		logger.Warn("source unavailable", "source", src.Name(), "vertical", src.Vertical(), "reason", out.Reason, "error", err)
		return nil, out
	case len(items) == 0:
		out.Status = StatusEmpty
		return nil, out
	}

	observability.IncPagesFetched(src.Name())
	out.Status = StatusOK
	out.Count = len(items)
	return items, out
}
