package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (m *memCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("miss")
	}
	return v, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func testClient(cache Cache) *Client {
	return NewClient(Options{
		Timeout:           5 * time.Second,
		RequestsPerSecond: 1000,
		Burst:             10,
		MaxRetries:        3,
		InitialInterval:   time.Millisecond,
		Cache:             cache,
	}, logging.NewNopLogger())
}

func TestClient_GetSetsUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, r.UserAgent())
	}))
	defer srv.Close()

	resp, err := testClient(nil).Get(context.Background(), "t", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "enzbench/1.0", string(resp.Body))
	assert.False(t, resp.Cached)
}

func TestClient_PostForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		fmt.Fprint(w, r.PostForm.Get("mode"))
	}))
	defer srv.Close()

	resp, err := testClient(nil).PostForm(context.Background(), "t", srv.URL, url.Values{"mode": {"view"}})
	require.NoError(t, err)
	assert.Equal(t, "view", string(resp.Body))
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	resp, err := testClient(nil).Get(context.Background(), "t", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(nil).Get(context.Background(), "t", srv.URL)
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.ErrCodeExternalService))
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestClient_ClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(nil).Get(context.Background(), "t", srv.URL)
	assert.True(t, errs.IsCode(err, errs.ErrCodeToolRejected))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	c := NewClient(Options{RequestsPerSecond: 1000, MaxRetries: 1, InitialInterval: time.Millisecond}, nil)
	_, err := c.Get(context.Background(), "t", target)
	assert.True(t, errs.IsCode(err, errs.ErrCodeToolUnavailable))
}

func TestClient_CachedRequests(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, "body")
	}))
	defer srv.Close()

	c := testClient(newMemCache())
	req := Request{URL: srv.URL, Cache: true}
	first, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	second, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, "body", string(second.Body))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, err = c.Do(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_Cached(t *testing.T) {
	calls := 0
	fetch := func(context.Context) ([]byte, error) {
		calls++
		return []byte("v"), nil
	}

	c := testClient(newMemCache())
	for i := 0; i < 2; i++ {
		v, err := c.Cached(context.Background(), "k", fetch)
		require.NoError(t, err)
		assert.Equal(t, "v", string(v))
	}
	assert.Equal(t, 1, calls)

	noCache := testClient(nil)
	_, _ = noCache.Cached(context.Background(), "k", fetch)
	_, _ = noCache.Cached(context.Background(), "k", fetch)
	assert.Equal(t, 3, calls)
}

func TestClient_SessionKeepsCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc"})
			return
		}
		if c, err := r.Cookie("sid"); err == nil {
			fmt.Fprint(w, c.Value)
		}
	}))
	defer srv.Close()

	base := testClient(nil)
	s := base.Session()
	_, err := s.Get(context.Background(), "t", srv.URL+"/")
	require.NoError(t, err)
	resp, err := s.Get(context.Background(), "t", srv.URL+"/check")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(resp.Body))

	fresh, err := base.Session().Get(context.Background(), "t", srv.URL+"/check")
	require.NoError(t, err)
	assert.Empty(t, fresh.Body)
}

func TestClient_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testClient(nil).Get(ctx, "t", srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("POST", "http://x", url.Values{"a": {"1"}})
	b := CacheKey("POST", "http://x", url.Values{"a": {"2"}})
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, CacheKey("POST", "http://x", url.Values{"a": {"1"}}))
}
