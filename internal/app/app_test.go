package app

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
)

func TestNewWithDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Store)
	require.NotNil(t, a.Dispatcher)
	require.NotNil(t, a.Server)
}

func TestUnauthorizedIngestionFailsWithoutFetch(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Dispatcher.Run(ctx)

	body, _ := json.Marshal(map[string]string{"url": "https://not-allowed.example.com/doc"})
	req := httptest.NewRequest(http.MethodPost, "/v1/ingestions", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	a.Server.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	jobID := resp["job_id"]

	require.Eventually(t, func() bool {
		job, ok := a.Dispatcher.Status(jobID)
		return ok && job.State == jobs.StateFailed
	}, 5*time.Second, 20*time.Millisecond)

	job, _ := a.Dispatcher.Status(jobID)
	require.Contains(t, job.FailureReason, "allow-list")
}

func TestUnknownStorageProvider(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.Provider = "s3"

	_, err = New(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}
