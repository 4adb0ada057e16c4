package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HistoryEntry is the first result of one search by one user.
type HistoryEntry struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Vertical    string          `json:"vertical"`
	Query       json.RawMessage `json:"query"`
	FirstResult json.RawMessage `json:"first_result,omitempty"`
	ResultCount int             `json:"result_count"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Visit struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Stats struct {
	TotalSearches      int64            `json:"total_searches"`
	SearchesByVertical map[string]int64 `json:"searches_by_vertical"`
	DistinctUsers      int64            `json:"distinct_users"`
	TotalVisits        int64            `json:"total_visits"`
}

func (s *Store) LogSearch(ctx context.Context, e HistoryEntry) (HistoryEntry, error) {
	if e.UserID == "" {
		return e, ErrNoUser
	}
	e.ID = uuid.NewString()
	err := s.db.QueryRowContext(ctx, `
INSERT INTO search_history (id, user_id, vertical, query, first_result, result_count, created_at)
VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, NOW())
RETURNING created_at
`, e.ID, e.UserID, e.Vertical, jsonParam(e.Query, "{}"), jsonParam(e.FirstResult, ""), e.ResultCount).Scan(&e.CreatedAt)
	if err != nil {
		return e, fmt.Errorf("failed to log search: %w", err)
	}
	return e, nil
}

// ListHistory returns the user's entries for vertical, newest first. Rows
// of other users are never returned.
func (s *Store) ListHistory(ctx context.Context, userID, vertical string, limit, offset int) ([]HistoryEntry, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	limit = clampLimit(limit, 20, 100)
	offset = clampOffset(offset)

	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, vertical, query, first_result, result_count, created_at
FROM search_history
WHERE user_id = $1 AND ($2::text = '' OR vertical = $2::text)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`, userID, vertical, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		var (
			e     HistoryEntry
			query []byte
			first sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Vertical, &query, &first, &e.ResultCount, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Query = json.RawMessage(query)
		if first.Valid {
			e.FirstResult = json.RawMessage(first.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) TrackVisit(ctx context.Context, v Visit) (Visit, error) {
	if v.UserID == "" {
		return v, ErrNoUser
	}
	v.ID = uuid.NewString()
	err := s.db.QueryRowContext(ctx, `
INSERT INTO product_visits (id, user_id, url, title, source, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())
RETURNING created_at
`, v.ID, v.UserID, v.URL, v.Title, v.Source).Scan(&v.CreatedAt)
	if err != nil {
		return v, fmt.Errorf("failed to track visit: %w", err)
	}
	return v, nil
}

func (s *Store) ListVisits(ctx context.Context, userID string, limit, offset int) ([]Visit, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	limit = clampLimit(limit, 20, 100)
	offset = clampOffset(offset)

	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, url, title, source, created_at
FROM product_visits
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	visits := []Visit{}
	for rows.Next() {
		var v Visit
		if err := rows.Scan(&v.ID, &v.UserID, &v.URL, &v.Title, &v.Source, &v.CreatedAt); err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

func (s *Store) DeleteOldHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, `
DELETE FROM search_history
WHERE created_at < $1
`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{SearchesByVertical: map[string]int64{}}

	rows, err := s.db.QueryContext(ctx, `
SELECT vertical, COUNT(*)
FROM search_history
GROUP BY vertical
`)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			vertical string
			n        int64
		)
		if err := rows.Scan(&vertical, &n); err != nil {
			return st, err
		}
		st.SearchesByVertical[vertical] = n
		st.TotalSearches += n
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	err = s.db.QueryRowContext(ctx, `
SELECT
    (SELECT COUNT(DISTINCT user_id) FROM search_history),
    (SELECT COUNT(*) FROM product_visits)
`).Scan(&st.DistinctUsers, &st.TotalVisits)
	return st, err
}
