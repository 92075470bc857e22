package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hkfcheung/regintel-sub001/internal/config"
	"github.com/hkfcheung/regintel-sub001/internal/jobs"
	"github.com/hkfcheung/regintel-sub001/internal/pipeline"
	"github.com/hkfcheung/regintel-sub001/internal/store"
)

type fakeDispatcher struct {
	jobs map[string]jobs.Job
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{jobs: make(map[string]jobs.Job)}
}

func (f *fakeDispatcher) Enqueue(_ context.Context, class jobs.Class, identity string, payload jobs.Payload) (string, error) {
	if _, ok := f.jobs[identity]; !ok {
		f.jobs[identity] = jobs.Job{
			Identity:  identity,
			Class:     class,
			State:     jobs.StateQueued,
			Payload:   payload,
			Submitted: time.Now(),
		}
	}
	return identity, nil
}

func (f *fakeDispatcher) Status(identity string) (jobs.Job, bool) {
	j, ok := f.jobs[identity]
	return j, ok
}

type memoryAnalyses struct {
	mem *store.Memory
}

func (m memoryAnalyses) Existing(ctx context.Context, itemID string) (pipeline.AnalysisRecord, bool, error) {
	return m.mem.LatestAnalysis(ctx, itemID)
}

func newTestServer(t *testing.T, cfg config.Config) (*Server, *fakeDispatcher, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	d := newFakeDispatcher()
	return NewServer(d, mem, memoryAnalyses{mem: mem}, cfg, zap.NewNop()), d, mem
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSubmitIngestion(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t, config.Config{})
	rr := postJSON(t, s.Handler(), "/v1/ingestions", map[string]string{
		"url": "https://example.gov/guidance/1",
	})
	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, jobs.IngestIdentity("https://example.gov/guidance/1"), resp["job_id"])
}

func TestSubmitIngestionCollapses(t *testing.T) {
	t.Parallel()

	s, d, _ := newTestServer(t, config.Config{})
	first := postJSON(t, s.Handler(), "/v1/ingestions", map[string]string{"url": "https://example.gov/a"})
	second := postJSON(t, s.Handler(), "/v1/ingestions", map[string]string{"url": "https://example.gov/a"})
	require.Equal(t, http.StatusAccepted, first.Code)
	require.Equal(t, http.StatusAccepted, second.Code)
	require.JSONEq(t, first.Body.String(), second.Body.String())
	require.Len(t, d.jobs, 1)
}

func TestSubmitIngestionValidation(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t, config.Config{})
	for _, body := range []map[string]string{
		{},
		{"url": "not-a-url"},
		{"url": "ftp://example.gov/x"},
		{"url": "https://example.gov/x", "category": "bogus"},
	} {
		rr := postJSON(t, s.Handler(), "/v1/ingestions", body)
		require.Equal(t, http.StatusBadRequest, rr.Code)
	}
}

func TestGetJobStatus(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t, config.Config{})
	postJSON(t, s.Handler(), "/v1/ingestions", map[string]string{"url": "https://example.gov/b"})

	identity := jobs.IngestIdentity("https://example.gov/b")
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+identity, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	missing := httptest.NewRequest(http.MethodGet, "/v1/jobs/nope", nil)
	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, missing)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSubmitAnalysis(t *testing.T) {
	t.Parallel()

	s, _, mem := newTestServer(t, config.Config{})
	ctx := context.Background()
	require.NoError(t, mem.InsertItem(ctx, pipeline.SourceItem{ID: "item-1", URL: "https://example.gov/x", Fingerprint: "fp-1"}))

	rr := postJSON(t, s.Handler(), "/v1/analyses", map[string]string{"item_id": "item-1"})
	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, jobs.AnalysisIdentity("item-1"), resp["job_id"])
}

func TestSubmitAnalysisExistingRecord(t *testing.T) {
	t.Parallel()

	s, d, mem := newTestServer(t, config.Config{})
	ctx := context.Background()
	require.NoError(t, mem.InsertItem(ctx, pipeline.SourceItem{ID: "item-2", URL: "https://example.gov/y", Fingerprint: "fp-2"}))
	require.NoError(t, mem.InsertAnalysis(ctx, pipeline.AnalysisRecord{ID: "an-1", ItemID: "item-2", Summary: "s", CreatedAt: time.Now()}))

	rr := postJSON(t, s.Handler(), "/v1/analyses", map[string]string{"item_id": "item-2"})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "an-1", resp["analysis_id"])
	require.Empty(t, d.jobs)
}

func TestSubmitAnalysisUnknownItem(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t, config.Config{})
	rr := postJSON(t, s.Handler(), "/v1/analyses", map[string]string{"item_id": "ghost"})
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTriggerDiscoveryAndFeedPoll(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t, config.Config{})

	rr := postJSON(t, s.Handler(), "/v1/discovery/run", map[string]string{"domain": "example.gov"})
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Contains(t, rr.Body.String(), "discovery:example.gov")

	rr = postJSON(t, s.Handler(), "/v1/feeds/poll", map[string]string{})
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Contains(t, rr.Body.String(), "feedpoll:all")
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "sekrit"
	s, _, _ := newTestServer(t, cfg)

	rr := postJSON(t, s.Handler(), "/v1/ingestions", map[string]string{"url": "https://example.gov/z"})
	require.Equal(t, http.StatusForbidden, rr.Code)

	data, _ := json.Marshal(map[string]string{"url": "https://example.gov/z"})
	req := httptest.NewRequest(http.MethodPost, "/v1/ingestions", bytes.NewReader(data))
	req.Header.Set("X-API-Key", "sekrit")
	ok := httptest.NewRecorder()
	s.Handler().ServeHTTP(ok, req)
	require.Equal(t, http.StatusAccepted, ok.Code)

	// Key in the query string is not an accepted credential.
	viaQuery := httptest.NewRecorder()
	qreq := httptest.NewRequest(http.MethodPost, "/v1/ingestions?api_key=sekrit", bytes.NewReader(data))
	s.Handler().ServeHTTP(viaQuery, qreq)
	require.Equal(t, http.StatusForbidden, viaQuery.Code)

	// Health stays open.
	health := httptest.NewRecorder()
	s.Handler().ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, health.Code)
}
