package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/searchhub/internal/ai"
	"github.com/baxromumarov/searchhub/internal/apperr"
	"github.com/baxromumarov/searchhub/internal/auth"
	"github.com/baxromumarov/searchhub/internal/cache"
	"github.com/baxromumarov/searchhub/internal/core"
	"github.com/baxromumarov/searchhub/internal/extract"
	"github.com/baxromumarov/searchhub/internal/search"
	"github.com/baxromumarov/searchhub/internal/sources"
	"github.com/baxromumarov/searchhub/internal/store"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSource struct {
	name     string
	vertical string
	items    []extract.Item
	calls    atomic.Int32
}

func (f *fakeSource) Name() string     { return f.name }
func (f *fakeSource) Vertical() string { return f.vertical }

func (f *fakeSource) Search(context.Context, sources.Query) ([]extract.Item, error) {
	f.calls.Add(1)
	return f.items, nil
}

func job(source, title, company, url string) extract.Item {
	return extract.Item{Source: source, Fields: map[string]string{
		"title": title, "company": company, "url": url,
	}}
}

// memoryHistory keeps history and visits of every user in one slice, so a
// missing user filter would show up in the tests.
type memoryHistory struct {
	mu      sync.Mutex
	entries []store.HistoryEntry
	visits  []store.Visit
	pingErr error
}

func (m *memoryHistory) LogSearch(_ context.Context, e store.HistoryEntry) (store.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = strings.Repeat("h", len(m.entries)+1)
	e.CreatedAt = time.Now()
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *memoryHistory) ListHistory(_ context.Context, userID, vertical string, limit, offset int) ([]store.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.HistoryEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.UserID == userID && (vertical == "" || e.Vertical == vertical) {
			out = append(out, e)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryHistory) TrackVisit(_ context.Context, v store.Visit) (store.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.ID = "v1"
	v.CreatedAt = time.Now()
	m.visits = append(m.visits, v)
	return v, nil
}

func (m *memoryHistory) ListVisits(_ context.Context, userID string, _, _ int) ([]store.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Visit
	for _, v := range m.visits {
		if v.UserID == userID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memoryHistory) Stats(context.Context) (store.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := store.Stats{SearchesByVertical: map[string]int64{}}
	for _, e := range m.entries {
		stats.TotalSearches++
		stats.SearchesByVertical[e.Vertical]++
	}
	return stats, nil
}

func (m *memoryHistory) Ping(context.Context) error { return m.pingErr }

type staticVerifier map[string]auth.User

func (s staticVerifier) VerifyToken(_ context.Context, token string) (auth.User, error) {
	u, ok := s[token]
	if !ok {
		return auth.User{}, apperr.InvalidToken("invalid or expired token", nil)
	}
	return u, nil
}

type testEnv struct {
	server  *httptest.Server
	history *memoryHistory
	cache   *cache.Memory
}

func newTestEnv(t *testing.T, srcs ...sources.Source) *testEnv {
	t.Helper()
	reg := sources.NewRegistry()
	for _, s := range srcs {
		require.NoError(t, reg.Register(s))
	}
	history := &memoryHistory{}
	mem := cache.NewMemory()
	svc := search.NewService(reg, mem, history, search.Options{
		SourceTimeout: time.Second,
		SearchTimeout: 2 * time.Second,
	}, quietLogger)

	srv := NewServer(Deps{
		Search:      svc,
		History:     history,
		Recommender: core.NewRecommenderService(ai.NewMockClient(), mem, quietLogger),
		Sources:     reg,
		Cache:       mem,
		Verifier: staticVerifier{
			"alice": {ID: "user-a", Email: "alice@example.com", EmailVerified: true},
			"bob":   {ID: "user-b", Email: "bob@example.com", EmailVerified: true},
			"root":  {ID: "user-r", Email: "root@example.com", EmailVerified: true},
		},
		IsAdmin: func(email string) bool { return email == "root@example.com" },
		Version: "test",
		Logger:  quietLogger,
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, history: history, cache: mem}
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&decoded))
	return res.StatusCode, decoded
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["database"])
	assert.Equal(t, "test", body["version"])

	env.history.pingErr = errors.New("connection refused")
	status, body = env.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unavailable", body["database"])
}

func TestSearchJobsHasNoDuplicates(t *testing.T) {
	a := &fakeSource{name: "linkedin", vertical: "jobs", items: []extract.Item{
		job("linkedin", "Go Developer", "Acme", "https://a.test/1"),
		job("linkedin", "Data Engineer", "Globex", "https://a.test/2"),
	}}
	b := &fakeSource{name: "remoteok", vertical: "jobs", items: []extract.Item{
		job("remoteok", "go developer", "ACME", "https://b.test/9"),
		job("remoteok", "Site Reliability Engineer", "Initech", "https://b.test/3"),
	}}
	env := newTestEnv(t, a, b)

	status, body := env.do(t, http.MethodPost, "/api/search/jobs", "", `{"query":"engineer"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 3, body["count"])

	seen := map[string]bool{}
	for _, r := range body["results"].([]any) {
		rec := r.(map[string]any)
		key := strings.ToLower(rec["title"].(string)) + "|" + strings.ToLower(rec["company"].(string))
		assert.False(t, seen[key], "duplicate %s", key)
		seen[key] = true
	}
	assert.Len(t, body["sources"], 2)
}

func TestSearchValidationFailsBeforeNetwork(t *testing.T) {
	src := &fakeSource{name: "4icu", vertical: "universities"}
	env := newTestEnv(t, src)

	status, body := env.do(t, http.MethodPost, "/api/search/universities", "", `{"field":"medicine"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "INVALID_INPUT", body["code"])
	assert.Equal(t, "country is required", body["error"])

	status, body = env.do(t, http.MethodPost, "/api/search/universities", "", `{"country":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_INPUT", body["code"])

	status, _ = env.do(t, http.MethodPost, "/api/search/jobs", "", "")
	assert.Equal(t, http.StatusBadRequest, status)

	assert.Zero(t, src.calls.Load())
}

func TestSearchWithoutResultsIs404(t *testing.T) {
	src := &fakeSource{name: "scholarshipdb", vertical: "scholarships"}
	env := newTestEnv(t, src)

	status, body := env.do(t, http.MethodPost, "/api/search/scholarships", "", `{"field":"physics"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "NO_RESULTS", body["code"])
	assert.EqualValues(t, 0, body["count"])
	require.Len(t, body["sources"], 1)
	outcome := body["sources"].([]any)[0].(map[string]any)
	assert.Equal(t, "empty", outcome["status"])
}

func TestHistoryIsScopedToUser(t *testing.T) {
	src := &fakeSource{name: "linkedin", vertical: "jobs", items: []extract.Item{
		job("linkedin", "Go Developer", "Acme", "https://a.test/1"),
	}}
	env := newTestEnv(t, src)

	status, _ := env.do(t, http.MethodPost, "/api/search/jobs", "alice", `{"query":"go"}`)
	require.Equal(t, http.StatusOK, status)
	// Invalid tokens on search degrade to anonymous.
	status, _ = env.do(t, http.MethodPost, "/api/search/jobs", "forged", `{"query":"go"}`)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, env.history.entries, 1)

	status, body := env.do(t, http.MethodGet, "/api/search/jobs/job_history", "alice", "")
	require.Equal(t, http.StatusOK, status)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	entry := items[0].(map[string]any)
	assert.Equal(t, "user-a", entry["user_id"])
	assert.Equal(t, "Go Developer", entry["first_result"].(map[string]any)["title"])

	status, body = env.do(t, http.MethodGet, "/api/search/jobs/job_history", "bob", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["items"])

	status, body = env.do(t, http.MethodGet, "/api/search/products/product_history", "alice", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["items"])
}

func TestHistoryRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/search/scholarships/scholarships_history", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "NO_TOKEN", body["code"])
	assert.Equal(t, false, body["success"])

	status, body = env.do(t, http.MethodGet, "/api/search/universities/university_history", "forged", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_TOKEN", body["code"])
}

func TestTrackVisit(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/search/products/track-visit", "alice", `{"url":"javascript:alert(1)"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_INPUT", body["code"])

	status, _ = env.do(t, http.MethodPost, "/api/search/products/track-visit", "alice",
		`{"url":"https://shop.test/item/1","title":" Laptop ","source":"ebay"}`)
	require.Equal(t, http.StatusCreated, status)

	status, body = env.do(t, http.MethodGet, "/api/search/products/visits", "alice", "")
	require.Equal(t, http.StatusOK, status)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Laptop", items[0].(map[string]any)["title"])

	status, body = env.do(t, http.MethodGet, "/api/search/products/visits", "bob", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["items"])
}

func TestRecommendations(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/recommendations", "", `{"vertical":"Jobs","query":"golang","limit":2}`)
	require.Equal(t, http.StatusOK, status)
	recs := body["recommendations"].([]any)
	require.Len(t, recs, 2)
	assert.Equal(t, "senior golang", recs[0].(map[string]any)["search_query"])

	status, body = env.do(t, http.MethodPost, "/api/recommendations", "", `{"vertical":"pets","query":"cats"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_INPUT", body["code"])
}

func TestAdminRoutes(t *testing.T) {
	src := &fakeSource{name: "linkedin", vertical: "jobs", items: []extract.Item{
		job("linkedin", "Go Developer", "Acme", "https://a.test/1"),
	}}
	env := newTestEnv(t, src)

	status, body := env.do(t, http.MethodGet, "/api/admin/stats", "alice", "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["code"])

	status, _ = env.do(t, http.MethodGet, "/api/admin/stats", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(t, http.MethodPost, "/api/search/jobs", "alice", `{"query":"go"}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, env.cache.Len())

	status, body = env.do(t, http.MethodGet, "/api/admin/stats", "root", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["history"].(map[string]any)["total_searches"])
	assert.Contains(t, body, "runtime")

	status, body = env.do(t, http.MethodGet, "/api/admin/sources", "root", "")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["sources"], 1)
	assert.Equal(t, "linkedin", body["sources"].([]any)[0].(map[string]any)["name"])

	status, body = env.do(t, http.MethodDelete, "/api/admin/cache/jobs?query=Go", "root", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body["key"], "search:jobs:")
	assert.Zero(t, env.cache.Len())

	status, body = env.do(t, http.MethodDelete, "/api/admin/cache/pets?query=go", "root", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestParsePagination(t *testing.T) {
	cases := []struct {
		query         string
		limit, offset int
	}{
		{"", 20, 0},
		{"?limit=5&offset=10", 5, 10},
		{"?limit=-1&offset=-4", 20, 0},
		{"?limit=500", 100, 0},
		{"?limit=abc", 20, 0},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/x"+tc.query, nil)
		limit, offset := parsePagination(req, 20)
		assert.Equal(t, tc.limit, limit, tc.query)
		assert.Equal(t, tc.offset, offset, tc.query)
	}
}
