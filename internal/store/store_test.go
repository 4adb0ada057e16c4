package store

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 20, clampLimit(0, 20, 100))
	assert.Equal(t, 100, clampLimit(500, 20, 100))
	assert.Equal(t, 7, clampLimit(7, 20, 100))
	assert.Equal(t, 0, clampOffset(-3))
}

func TestJSONParam(t *testing.T) {
	assert.Nil(t, jsonParam(nil, ""))
	assert.Equal(t, "{}", jsonParam(nil, "{}"))
	assert.Equal(t, `{"a":1}`, jsonParam([]byte(`{"a":1}`), "{}"))
}

func TestPerUserQueriesNeedUser(t *testing.T) {
	s := &Store{}
	ctx := context.Background()

	_, err := s.LogSearch(ctx, HistoryEntry{Vertical: "jobs"})
	assert.ErrorIs(t, err, ErrNoUser)
	_, err = s.ListHistory(ctx, "", "jobs", 10, 0)
	assert.ErrorIs(t, err, ErrNoUser)
	_, err = s.TrackVisit(ctx, Visit{URL: "https://x.test"})
	assert.ErrorIs(t, err, ErrNoUser)
	_, err = s.ListVisits(ctx, "", 10, 0)
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestNewStoreInvalidDSN(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewStore(ctx, "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
	assert.Error(t, err)
}

// Runs against a real database when SEARCHHUB_TEST_DATABASE_URL is set.
func TestHistoryIsScopedToUser(t *testing.T) {
	dsn := os.Getenv("SEARCHHUB_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SEARCHHUB_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()
	_, _, err = s.RunMigrations()
	require.NoError(t, err)

	alice := "alice-" + time.Now().Format("150405.000000")
	bob := "bob-" + time.Now().Format("150405.000000")

	_, err = s.LogSearch(ctx, HistoryEntry{
		UserID:      alice,
		Vertical:    "jobs",
		Query:       json.RawMessage(`{"query":"go"}`),
		FirstResult: json.RawMessage(`{"title":"Go Dev"}`),
		ResultCount: 3,
	})
	require.NoError(t, err)
	_, err = s.LogSearch(ctx, HistoryEntry{UserID: bob, Vertical: "jobs", Query: json.RawMessage(`{"query":"rust"}`)})
	require.NoError(t, err)

	entries, err := s.ListHistory(ctx, alice, "jobs", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, alice, entries[0].UserID)
	assert.JSONEq(t, `{"title":"Go Dev"}`, string(entries[0].FirstResult))

	entries, err = s.ListHistory(ctx, bob, "products", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
