package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	gh "github.com/google/go-github/v57/github"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pullsense/pullsense/internal/cache"
)

// fakeAPI serves the subset of the GitHub REST API the fetcher touches.
func fakeAPI(t *testing.T, prStatus int, fileCount int) (*gh.Client, *atomic.Int64) {
	t.Helper()

	var hits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls/7", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if prStatus != http.StatusOK {
			w.WriteHeader(prStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"title": "Add retry logic",
			"body": "Retries transient failures",
			"state": "open",
			"additions": 42,
			"deletions": 7,
			"changed_files": 3,
			"mergeable": true
		}`)
	})
	mux.HandleFunc("/repos/acme/widgets/pulls/7/files", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		var files []string
		for i := 0; i < fileCount; i++ {
			patch := fmt.Sprintf(`"@@ -1 +1 @@ change %d"`, i)
			if i == 1 {
				// GitHub omits patches for binary or oversized files.
				patch = `""`
			}
			files = append(files, fmt.Sprintf(`{
				"filename": "pkg/file%d.go",
				"status": "modified",
				"additions": 2,
				"deletions": 1,
				"changes": 3,
				"patch": %s
			}`, i, patch))
		}
		fmt.Fprintf(w, "[%s]", strings.Join(files, ","))
	})
	mux.HandleFunc("/rate_limit", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"resources": {
				"core": {"limit": 5000, "remaining": 4321, "reset": 1700000000}
			}
		}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := gh.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base
	return client, &hits
}

func redisBackedCache(t *testing.T) cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	return cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestGetPRDiff(t *testing.T) {
	client, _ := fakeAPI(t, http.StatusOK, 3)
	svc := NewWithClient(client, nil)

	diff := svc.GetPRDiff(context.Background(), "acme/widgets", 7)
	require.NotNil(t, diff)

	assert.Equal(t, "Add retry logic", diff.Title)
	assert.Equal(t, "Retries transient failures", diff.Body)
	assert.Equal(t, "open", diff.State)
	assert.Equal(t, 42, diff.Additions)
	assert.Equal(t, 7, diff.Deletions)
	assert.Equal(t, 3, diff.ChangedFiles)
	assert.True(t, diff.Mergeable)

	require.Len(t, diff.Files, 3)
	assert.Equal(t, "pkg/file0.go", diff.Files[0].Filename)
	assert.Equal(t, "modified", diff.Files[0].Status)
	assert.Contains(t, diff.Files[0].Patch, "change 0")
	assert.Equal(t, "Binary file or too large", diff.Files[1].Patch)
}

func TestGetPRDiffCapsFileCount(t *testing.T) {
	client, _ := fakeAPI(t, http.StatusOK, 15)
	svc := NewWithClient(client, nil)

	diff := svc.GetPRDiff(context.Background(), "acme/widgets", 7)
	require.NotNil(t, diff)
	assert.Len(t, diff.Files, maxDiffFiles)
}

func TestGetPRDiffUsesCache(t *testing.T) {
	client, hits := fakeAPI(t, http.StatusOK, 2)
	svc := NewWithClient(client, redisBackedCache(t))

	first := svc.GetPRDiff(context.Background(), "acme/widgets", 7)
	require.NotNil(t, first)
	afterFirst := hits.Load()
	assert.Equal(t, int64(2), afterFirst)

	second := svc.GetPRDiff(context.Background(), "acme/widgets", 7)
	require.NotNil(t, second)
	assert.Equal(t, afterFirst, hits.Load(), "second fetch must be served from cache")
	assert.Equal(t, first, second)
}

func TestGetPRDiffAPIErrorReturnsNil(t *testing.T) {
	client, _ := fakeAPI(t, http.StatusNotFound, 0)
	svc := NewWithClient(client, nil)

	assert.Nil(t, svc.GetPRDiff(context.Background(), "acme/widgets", 7))
}

func TestGetPRDiffInvalidRepoName(t *testing.T) {
	client, hits := fakeAPI(t, http.StatusOK, 1)
	svc := NewWithClient(client, nil)

	assert.Nil(t, svc.GetPRDiff(context.Background(), "not-a-full-name", 7))
	assert.Zero(t, hits.Load())
}

func TestRateLimit(t *testing.T) {
	client, _ := fakeAPI(t, http.StatusOK, 0)
	svc := NewWithClient(client, nil)

	info, err := svc.RateLimit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5000, info.Limit)
	assert.Equal(t, 4321, info.Remaining)
	assert.NotEmpty(t, info.Reset)
}

func TestDiffCacheKey(t *testing.T) {
	assert.Equal(t, "github_diff:acme/widgets:7", DiffCacheKey("acme/widgets", 7))
}
