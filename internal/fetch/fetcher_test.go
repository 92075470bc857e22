package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hkfcheung/regintel-sub001/internal/hash/sha256"
	"github.com/hkfcheung/regintel-sub001/internal/pipeline"
	"github.com/hkfcheung/regintel-sub001/internal/store"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
<title>Final Guidance on Reporting</title>
<meta property="article:published_time" content="2024-03-15T09:30:00Z">
</head>
<body>
<article>
<h1>Final Guidance on Reporting</h1>
<p>The agency today issued final guidance clarifying the quarterly reporting
obligations for covered institutions. The guidance takes effect immediately
and supersedes the 2019 interpretive letter on the same subject.</p>
<p>Institutions should review <a href="/docs/guidance-2024-03.pdf">the full
guidance document</a> before the next filing deadline.</p>
</article>
</body>
</html>`

func allowingPolicies(t *testing.T, domains ...string) pipeline.PolicyStore {
	t.Helper()
	mem := store.NewMemory()
	for _, d := range domains {
		require.NoError(t, mem.PutPolicy(context.Background(), pipeline.DomainPolicy{
			Domain: d,
			Active: true,
		}))
	}
	return mem
}

func TestFetchExtractsDocument(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, samplePage)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second}, allowingPolicies(t, "127.0.0.1"), sha256.New())
	res, err := f.Fetch(context.Background(), srv.URL+"/guidance/2024/final")
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "Final Guidance on Reporting", res.Title)
	require.Contains(t, res.Text, "quarterly reporting obligations")
	require.Len(t, res.Fingerprint, 64)
	require.Equal(t, srv.URL+"/docs/guidance-2024-03.pdf", res.SecondaryURL)
	require.NotNil(t, res.PublishedAt)
	require.Equal(t, time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC), *res.PublishedAt)
}

func TestFetchUnauthorizedDomain(t *testing.T) {
	t.Parallel()

	f := New(Config{}, allowingPolicies(t, "example.gov"), sha256.New())
	_, err := f.Fetch(context.Background(), "https://other.example.com/notice")
	require.Error(t, err)
	require.True(t, pipeline.IsAuthorization(err))
	require.True(t, pipeline.Fatal(err))
}

func TestFetchServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second}, allowingPolicies(t, "127.0.0.1"), sha256.New())
	_, err := f.Fetch(context.Background(), srv.URL+"/notice")
	require.Error(t, err)

	var fe *pipeline.FetchError
	require.ErrorAs(t, err, &fe)
	require.False(t, pipeline.Fatal(err))
}

func TestFetchFingerprintStableAcrossFormatting(t *testing.T) {
	t.Parallel()

	pages := []string{
		`<html><head><title>N</title></head><body><article><p>Notice   text
		with    odd spacing for everyone involved in the matter.</p></article></body></html>`,
		`<html><head><title>N</title></head><body><article><p>Notice text with odd spacing for everyone involved in the matter.</p></article></body></html>`,
	}
	var fps []string
	for i, page := range pages {
		page := page
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, page)
		}))
		f := New(Config{Timeout: 5 * time.Second}, allowingPolicies(t, "127.0.0.1"), sha256.New())
		res, err := f.Fetch(context.Background(), srv.URL+fmt.Sprintf("/n/%d", i))
		srv.Close()
		require.NoError(t, err)
		fps = append(fps, res.Fingerprint)
	}
	require.Equal(t, fps[0], fps[1])
}

func TestParseDocumentFallbacks(t *testing.T) {
	t.Parallel()

	doc := parseDocument("https://example.gov/x", []byte(`<html><head><title> Bare Title </title></head><body><time datetime="2024-01-02">Jan 2</time></body></html>`))
	require.Equal(t, "Bare Title", doc.Title)
	require.NotNil(t, doc.PublishedAt)
	require.Equal(t, 2024, doc.PublishedAt.Year())
	require.Empty(t, doc.SecondaryURL)
}

func TestSecondaryURLIgnoresNonPDF(t *testing.T) {
	t.Parallel()

	doc := parseDocument("https://example.gov/a/b", []byte(`<html><body>
		<a href="/page.html">page</a>
		<a href="rel/attachment.PDF?v=2">attachment</a>
	</body></html>`))
	require.Equal(t, "https://example.gov/a/rel/attachment.PDF?v=2", doc.SecondaryURL)
}
