package bookmark

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hkfcheung/regintel-sub001/internal/pipeline"
)

func TestCreateBookmark(t *testing.T) {
	t.Parallel()

	var got createRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/bookmarks/", r.URL.Path)
		require.Equal(t, "Token secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": 17})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Token: "secret"})
	id, err := c.Create(context.Background(), pipeline.Bookmark{
		URL:   "https://example.gov/guidance/1",
		Title: "Guidance",
		Tags:  []string{"source:example.gov", "category:guidance", "week:2024-12", "status:intake"},
	})
	require.NoError(t, err)
	require.Equal(t, "17", id)
	require.Equal(t, "https://example.gov/guidance/1", got.URL)
	require.Contains(t, got.TagNames, "week:2024-12")
}

func TestCreateBookmarkServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Token: "stale"})
	_, err := c.Create(context.Background(), pipeline.Bookmark{URL: "https://example.gov/x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
}
