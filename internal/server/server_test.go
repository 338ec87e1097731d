package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-sentinel/internal/errors"
	"stock-sentinel/internal/models"
	"stock-sentinel/internal/resilience"
	"stock-sentinel/internal/scheduler"
	"stock-sentinel/internal/store"
	"stock-sentinel/internal/tracking"
)

var fixedNow = time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)

type fakeTracker struct {
	summary tracking.Summary
	err     error
	kinds   []models.EntityKind
}

func (f *fakeTracker) Run(ctx context.Context, kind models.EntityKind) (tracking.Summary, error) {
	f.kinds = append(f.kinds, kind)
	s := f.summary
	s.Kind = kind
	return s, f.err
}

type fakeSchedule []scheduler.EntryInfo

func (f fakeSchedule) Entries() []scheduler.EntryInfo { return f }

func newTestServer(t *testing.T, token string, opts ...store.Option) (*Server, *store.SQLiteStore, *fakeTracker) {
	t.Helper()
	opts = append([]store.Option{store.WithClock(func() time.Time { return fixedNow })}, opts...)
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	health := resilience.NewChecker(time.Second)
	health.Register("database", resilience.PingCheck(st.Ping))

	tracker := &fakeTracker{summary: tracking.Summary{Checked: 2, Alerted: 1}}
	srv := New(Config{
		Port:      0,
		AuthToken: token,
		Log:       zerolog.Nop(),
		Store:     st,
		Tracker:   tracker,
		Health:    health,
		Schedule:  fakeSchedule{{Job: "stock_tracking", Next: fixedNow.Add(time.Hour)}},
	})
	return srv, st, tracker
}

func do(t *testing.T, srv *Server, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, "secret")

	rec := do(t, srv, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "HEALTHY", body["status"])
	assert.Len(t, body["components"], 1)
}

func TestHealth_Unhealthy(t *testing.T) {
	srv, st, _ := newTestServer(t, "")
	require.NoError(t, st.Close())

	rec := do(t, srv, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuth(t *testing.T) {
	srv, _, _ := newTestServer(t, "secret")

	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/api/stocks", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/api/stocks", "", "wrong").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/stocks", "", "secret").Code)
}

func TestAuth_Disabled(t *testing.T) {
	srv, _, _ := newTestServer(t, "")
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/politicians", "", "").Code)
}

func TestStocksLifecycle(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	rec := do(t, srv, http.MethodPost, "/api/stocks", `{"symbol":" aapl "}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "AAPL", decode(t, rec)["id"])

	rec = do(t, srv, http.MethodPost, "/api/stocks", `{"symbol":"AAPL"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/stocks", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["count"])

	rec = do(t, srv, http.MethodGet, "/api/stocks/aapl", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ACTIVE", decode(t, rec)["status"])

	rec = do(t, srv, http.MethodDelete, "/api/stocks/aapl", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Removed entities stay readable with their status.
	rec = do(t, srv, http.MethodGet, "/api/stocks/AAPL", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "INACTIVE", decode(t, rec)["status"])
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/stocks/ZZZZ", "", "").Code)

	rec = do(t, srv, http.MethodDelete, "/api/stocks/AAPL", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/stocks", "", "")
	body = decode(t, rec)
	assert.EqualValues(t, 0, body["count"])
	assert.Equal(t, []interface{}{}, body["entities"])
}

func TestAddStock_Validation(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/stocks", `{"symbol":"$$$"}`, "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/stocks", `{}`, "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/stocks", `not json`, "").Code)
}

func TestAddStock_Limit(t *testing.T) {
	srv, _, _ := newTestServer(t, "", store.WithEntityLimit(models.KindStock, 1))

	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/stocks", `{"symbol":"AAPL"}`, "").Code)
	rec := do(t, srv, http.MethodPost, "/api/stocks", `{"symbol":"MSFT"}`, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "tracking limit")
}

func TestPoliticiansLifecycle(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	rec := do(t, srv, http.MethodPost, "/api/politicians", `{"name":"Nancy  Pelosi"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Nancy Pelosi", decode(t, rec)["id"])

	rec = do(t, srv, http.MethodDelete, "/api/politicians/Nancy%20Pelosi", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAlertHistory(t *testing.T) {
	srv, st, _ := newTestServer(t, "")
	ctx := context.Background()

	_, err := st.RecordAlert(ctx, models.AlertRecord{EntityID: "AAPL", AlertDate: "2024-03-15", MessageContent: "AAPL +5.00%"})
	require.NoError(t, err)
	_, err = st.RecordAlert(ctx, models.AlertRecord{EntityID: "AAPL", AlertDate: "2024-03-01", MessageContent: "old"})
	require.NoError(t, err)
	_, err = st.RecordAlert(ctx, models.AlertRecord{Kind: models.KindPolitician, EntityID: "Nancy Pelosi", AlertDate: "2024-03-15"})
	require.NoError(t, err)
	_, err = st.RecordAlert(ctx, models.AlertRecord{Kind: models.KindPolitician, EntityID: "FORD", AlertDate: "2024-03-15"})
	require.NoError(t, err)

	rec := do(t, srv, http.MethodGet, "/api/alerts/aapl", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "AAPL", body["entity"])
	assert.Len(t, body["alerts"], 1)

	rec = do(t, srv, http.MethodGet, "/api/alerts/AAPL?days=30", "", "")
	assert.Len(t, decode(t, rec)["alerts"], 2)

	rec = do(t, srv, http.MethodGet, "/api/alerts/Nancy%20Pelosi", "", "")
	assert.Len(t, decode(t, rec)["alerts"], 1)

	// A single-word politician needs an explicit kind; the ticker of the same name is separate.
	assert.Len(t, decode(t, do(t, srv, http.MethodGet, "/api/alerts/FORD", "", ""))["alerts"], 0)
	body = decode(t, do(t, srv, http.MethodGet, "/api/alerts/FORD?kind=politicians", "", ""))
	assert.Equal(t, "politician", body["kind"])
	assert.Len(t, body["alerts"], 1)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/alerts/AAPL?days=0", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/alerts/AAPL?days=abc", "", "").Code)
}

func TestRunCycle(t *testing.T) {
	srv, _, tracker := newTestServer(t, "secret")

	rec := do(t, srv, http.MethodPost, "/api/tracking/run/stocks", "", "secret")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "stock", body["kind"])
	assert.EqualValues(t, 1, body["alerted"])
	assert.Equal(t, []models.EntityKind{models.KindStock}, tracker.kinds)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/tracking/run/crypto", "", "secret").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodPost, "/api/tracking/run/stocks", "", "").Code)

	tracker.summary.AlreadyRunning = true
	assert.Equal(t, http.StatusConflict, do(t, srv, http.MethodPost, "/api/tracking/run/politicians", "", "secret").Code)

	tracker.err = errors.Wrapf(errors.ErrInvalidEntity, "no tracking cycle")
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPost, "/api/tracking/run/stocks", "", "secret").Code)

	tracker.err = fmt.Errorf("boom")
	assert.Equal(t, http.StatusInternalServerError, do(t, srv, http.MethodPost, "/api/tracking/run/stocks", "", "secret").Code)
}

func TestSchedule(t *testing.T) {
	srv, _, _ := newTestServer(t, "")
	rec := do(t, srv, http.MethodGet, "/api/schedule", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	jobs := decode(t, rec)["jobs"].([]interface{})
	require.Len(t, jobs, 1)
	assert.Equal(t, "stock_tracking", jobs[0].(map[string]interface{})["job"])
}
