package core

import (
	"context"
	"log/slog"
	"time"
)

type HistoryPruner interface {
	DeleteOldHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// RetentionService deletes search history older than the retention window.
type RetentionService struct {
	store     HistoryPruner
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

func NewRetentionService(store HistoryPruner, retention time.Duration, logger *slog.Logger) *RetentionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionService{
		store:     store,
		retention: retention,
		interval:  24 * time.Hour, // Run once a day
		logger:    logger,
	}
}

func (s *RetentionService) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *RetentionService) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on startup
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *RetentionService) RunOnce(ctx context.Context) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	count, err := s.store.DeleteOldHistory(ctx, s.retention)
	if err != nil {
		s.logger.Error("retention: failed to delete old history", "error", err)
		return 0, err
	}
	s.logger.Info("retention: deleted old history", "rows", count, "older_than", s.retention.String())
	return count, nil
}
