package app_test

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/circulation-backend/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/circulation-backend/internal/app"
	"github.com/heartmarshall/circulation-backend/internal/config"
	"github.com/heartmarshall/circulation-backend/internal/service/lending"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type testServer struct {
	URL    string
	Client *http.Client
}

// setupTestServer runs the full HTTP stack over a real PostgreSQL container.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	pool := testhelper.SetupTestDB(t)

	cfg := &config.Config{
		Storage: config.StorageConfig{Driver: config.StorageDriverPostgres},
		CORS:    config.CORSConfig{AllowedOrigins: "*"},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := app.OpenPostgres(pool, lending.DefaultConfig(), logger)

	srv := httptest.NewServer(app.NewHandler(cfg, logger, svc))
	t.Cleanup(srv.Close)

	return &testServer{URL: srv.URL, Client: srv.Client()}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)

	resp, err := ts.Client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestE2E_Health(t *testing.T) {
	ts := setupTestServer(t)

	var body map[string]any
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health", nil, &body))
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body["components"], "postgres")
}

func TestE2E_LendingFlow(t *testing.T) {
	ts := setupTestServer(t)

	var item map[string]any
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/items", map[string]any{
		"title": "The Left Hand of Darkness", "author": "Ursula K. Le Guin", "total_copies": 1,
	}, &item))
	itemID := item["id"].(string)

	var loan map[string]any
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/loans", map[string]any{
		"borrower_id": uuid.New(), "item_id": itemID,
	}, &loan))
	loanID := loan["id"].(string)
	assert.Equal(t, "PENDING", loan["state"])

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/loans/"+loanID+"/approve", nil, &loan))
	assert.Equal(t, "APPROVED", loan["state"])

	// Retried approve is idempotent, reads back the same record and does not
	// reserve a second copy.
	var retried map[string]any
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/loans/"+loanID+"/approve", nil, &retried))
	assert.Equal(t, loan, retried)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/items/"+itemID, nil, &item))
	assert.EqualValues(t, 0, item["available_copies"])

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/loans/"+loanID+"/collect", nil, &loan))

	dueAt, err := time.Parse(time.RFC3339Nano, loan["due_at"].(string))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/loans/"+loanID+"/return",
		map[string]any{"returned_at": dueAt.Add(25 * time.Hour)}, &loan))
	assert.Equal(t, "RETURNED", loan["state"])
	assert.Equal(t, "20", loan["fine"])

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/items/"+itemID, nil, &item))
	assert.EqualValues(t, 1, item["available_copies"])

	var history []map[string]any
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/loans/"+loanID+"/history", nil, &history))
	assert.Len(t, history, 4)
}

func TestE2E_ReturnWithinMicrosecondOfDue(t *testing.T) {
	ts := setupTestServer(t)

	var item map[string]any
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/items", map[string]any{
		"title": "Solaris", "author": "Stanislaw Lem", "total_copies": 1,
	}, &item))
	itemID := item["id"].(string)

	due := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Second).Add(123456789 * time.Nanosecond)
	var loan map[string]any
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/items/"+itemID+"/issue", map[string]any{
		"borrower_id": uuid.New(), "due_at": due,
	}, &loan))
	loanID := loan["id"].(string)

	storedDue, err := time.Parse(time.RFC3339Nano, loan["due_at"].(string))
	require.NoError(t, err)
	assert.True(t, storedDue.Equal(due.Truncate(time.Microsecond)), "due_at = %v", storedDue)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/loans/"+loanID+"/return",
		map[string]any{"returned_at": storedDue.Add(300 * time.Nanosecond)}, &loan))
	assert.Equal(t, "RETURNED", loan["state"])
	assert.Equal(t, "0", loan["fine"])

	var reread map[string]any
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/loans/"+loanID, nil, &reread))
	assert.Equal(t, loan, reread)
}

func TestE2E_ConcurrentApproveLastCopy(t *testing.T) {
	ts := setupTestServer(t)

	var item map[string]any
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/items", map[string]any{
		"title": "Solaris", "author": "Stanislaw Lem", "total_copies": 1,
	}, &item))
	itemID := item["id"].(string)

	const n = 8
	loanIDs := make([]string, n)
	for i := range loanIDs {
		var loan map[string]any
		require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/loans", map[string]any{
			"borrower_id": uuid.New(), "item_id": itemID,
		}, &loan))
		loanIDs[i] = loan["id"].(string)
	}

	codes := make([]int, n)
	var wg sync.WaitGroup
	for i, id := range loanIDs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var resp map[string]any
			codes[i] = ts.do(t, http.MethodPost, "/loans/"+id+"/approve", nil, &resp)
		}()
	}
	wg.Wait()

	approved, outOfStock := 0, 0
	for _, c := range codes {
		switch c {
		case http.StatusOK:
			approved++
		case http.StatusConflict:
			outOfStock++
		}
	}
	assert.Equal(t, 1, approved)
	assert.Equal(t, n-1, outOfStock)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/items/"+itemID, nil, &item))
	assert.EqualValues(t, 0, item["available_copies"])
}
