package fetch

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/afterpkg/internal/log"
)

func newTestClient(t *testing.T, retries uint64) *Client {
	t.Helper()
	c := NewClient(
		WithMaxRetries(retries),
		WithBaseDelay(time.Millisecond),
		WithLogger(log.Discard()),
		WithUserAgent("afterpkg-test"),
	)
	t.Cleanup(c.Close)
	return c
}

func TestPyPIProject(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "afterpkg-test", r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/pypi/django/json":
			_, _ = w.Write([]byte(`{"info":{"name":"Django","version":"5.0.1","summary":"web"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	p := NewPyPIClient(newTestClient(t, 0), server.URL+"/")
	ctx := context.Background()

	project, err := p.Project(ctx, "django")
	require.NoError(t, err)
	assert.Equal(t, "Django", project.Name)
	assert.Equal(t, "5.0.1", project.Version)

	ok, err := p.Exists(ctx, "django")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Exists(ctx, "no-such-project")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.Exists(ctx, "no-such-project")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, int32(2), hits.Load(), "hits and misses are memoized")
}

func TestClientRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"info":{"name":"attrs","version":"23.2.0"}}`))
	}))
	defer server.Close()

	p := NewPyPIClient(newTestClient(t, 3), server.URL)
	ok, err := p.Exists(context.Background(), "attrs")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewPyPIClient(newTestClient(t, 2), server.URL)
	_, err := p.Exists(context.Background(), "attrs")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClientZeroRetriesMakesOneAttempt(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p := NewPyPIClient(newTestClient(t, 0), server.URL)
	_, err := p.Exists(ctx, "attrs")
	assert.ErrorIs(t, err, ErrUpstreamDown)
	assert.Equal(t, int32(1), hits.Load())
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	p := NewPyPIClient(newTestClient(t, 3), server.URL)
	_, err := p.Exists(context.Background(), "attrs")
	assert.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestCircuitBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, 0)
	p := NewPyPIClient(c, server.URL)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := p.Project(ctx, "pkg")
		require.Error(t, err)
	}
	_, err := p.Project(ctx, "pkg")
	assert.ErrorIs(t, err, ErrUpstreamDown)
	assert.Equal(t, int32(5), hits.Load(), "open breaker short-circuits")
	assert.Equal(t, "open", c.BreakerStates()[hostOf(server.URL)])
}

func md5hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

func TestDownloaderFetch(t *testing.T) {
	payload := []byte("tarball bytes")
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	cache := t.TempDir()
	work := t.TempDir()
	d := NewDownloader(newTestClient(t, 0), cache, true, log.Discard())
	sources := Sources([]string{server.URL + "/dl/runc-1.1.12.tar.gz"}, []string{md5hex(payload)})

	require.NoError(t, d.Fetch(context.Background(), "system", "runc", sources, work))

	cached := filepath.Join(cache, "system", "runc", "runc-1.1.12.tar.gz")
	assert.Equal(t, cached, d.CachePath("system", "runc", sources[0]))
	got, err := os.ReadFile(filepath.Join(work, "runc-1.1.12.tar.gz"))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, d.Fetch(context.Background(), "system", "runc", sources, ""))
	assert.Equal(t, int32(1), hits.Load(), "verified cache entries are reused")
}

func TestDownloaderChecksumMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("corrupted"))
	}))
	defer server.Close()

	cache := t.TempDir()
	d := NewDownloader(newTestClient(t, 0), cache, false, log.Discard())
	sources := Sources([]string{server.URL + "/src.tar.gz"}, []string{md5hex([]byte("expected"))})

	err := d.Fetch(context.Background(), "libraries", "foo", sources, "")
	var sumErr *ChecksumError
	require.ErrorAs(t, err, &sumErr)
	assert.Equal(t, md5hex([]byte("corrupted")), sumErr.Got)

	_, statErr := os.Stat(filepath.Join(cache, "libraries", "foo", "src.tar.gz"))
	assert.True(t, os.IsNotExist(statErr), "bad downloads are not cached")
}

func TestSourcesAndFileName(t *testing.T) {
	srcs := Sources([]string{"https://h/a/x.tar.gz?raw=1", "https://h/b/y.zip"}, []string{"m1"})
	require.Len(t, srcs, 2)
	assert.Equal(t, "m1", srcs[0].MD5Sum)
	assert.Equal(t, "", srcs[1].MD5Sum)
	assert.Equal(t, "x.tar.gz", srcs[0].FileName())
	assert.Equal(t, "y.zip", srcs[1].FileName())
}
