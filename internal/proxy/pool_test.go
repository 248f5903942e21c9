package proxy

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgpai22/pressurecooker/internal/config"
)

type countingSource struct {
	proxies []string
	err     error
	calls   atomic.Int32
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) Fetch(context.Context) ([]string, error) {
	s.calls.Add(1)
	return s.proxies, s.err
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestPool(t *testing.T, sources ...Source) (*Pool, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Now()}
	pool := NewPool(Options{
		Sources:    sources,
		BrokenFile: filepath.Join(t.TempDir(), "cache", "broken_proxies.txt"),
		now:        clock.Now,
		rand:       rand.New(rand.NewPCG(1, 2)),
	})
	return pool, clock
}

func TestProxyScrapeSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("1.1.1.1:80\r\n2.2.2.2:8080\r\n\r\n"))
	}))
	defer srv.Close()

	src := &ProxyScrapeSource{URL: srv.URL, Client: NewHTTPClient(time.Second, nil)}
	got, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1.1.1.1:80", "2.2.2.2:8080"}, got)
}

func TestSSLProxiesSource(t *testing.T) {
	page := `<table><tr><td>10.0.0.1</td><td>3128</td><td>US</td></tr>
<tr><td>10.0.0.2</td><td>80</td><td>DE</td></tr>
<tr><td>not-an-ip</td><td>80</td></tr></table>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	src := &SSLProxiesSource{URL: srv.URL, Client: NewHTTPClient(time.Second, nil)}
	got, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1:3128", "10.0.0.2:80"}, got)
}

func TestSourceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src := &ProxyScrapeSource{URL: srv.URL, Client: NewHTTPClient(time.Second, nil)}
	_, err := src.Fetch(context.Background())
	assert.ErrorContains(t, err, "unexpected status")
}

func TestDefaultSources(t *testing.T) {
	sources := DefaultSources([]string{"a:1", "b:2"}, nil)
	require.Len(t, sources, 1)
	assert.Equal(t, "static", sources[0].Name())

	sources = DefaultSources(nil, nil)
	require.Len(t, sources, 2)
	assert.Equal(t, "proxyscrape", sources[0].Name())
	assert.Equal(t, "sslproxies", sources[1].Name())
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.ProxyConfig{
		List:       []string{"a:1"},
		BrokenFile: "/tmp/broken.txt",
		BrokenTTL:  config.Duration(time.Hour),
		Timeout:    config.Duration(time.Second),
	}
	opts := OptionsFromConfig(cfg, nil)
	assert.Equal(t, "/tmp/broken.txt", opts.BrokenFile)
	assert.Equal(t, time.Hour, opts.BrokenTTL)
	require.Len(t, opts.Sources, 1)
	assert.Equal(t, StaticSource{"a:1"}, opts.Sources[0])
}

func TestProxiesFallsThroughSources(t *testing.T) {
	failing := &countingSource{err: errors.New("boom")}
	empty := &countingSource{}
	good := &countingSource{proxies: []string{"a:1", "b:2", "a:1"}}
	pool, _ := newTestPool(t, failing, empty, good)

	got, err := pool.Proxies(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1", "b:2"}, got)

	// cached until refresh is requested
	_, err = pool.Proxies(context.Background(), false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, good.calls.Load())

	_, err = pool.Proxies(context.Background(), true)
	require.NoError(t, err)
	assert.EqualValues(t, 2, good.calls.Load())
}

func TestProxiesNoneAvailable(t *testing.T) {
	pool, _ := newTestPool(t, &countingSource{err: errors.New("offline")})
	_, err := pool.Proxies(context.Background(), false)
	assert.ErrorIs(t, err, ErrNoProxies)
	assert.ErrorContains(t, err, "offline")

	_, err = pool.Choose(context.Background())
	assert.ErrorIs(t, err, ErrNoProxies)
}

func TestRefreshKeepsListWhenSourcesFail(t *testing.T) {
	src := &countingSource{proxies: []string{"a:1"}}
	pool, _ := newTestPool(t, src)
	_, err := pool.Proxies(context.Background(), false)
	require.NoError(t, err)

	src.proxies, src.err = nil, errors.New("offline")
	got, err := pool.Proxies(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1"}, got)
}

func TestChooseAvoidsRecent(t *testing.T) {
	list := []string{"a:1", "b:2", "c:3", "d:4", "e:5", "f:6"}
	pool, _ := newTestPool(t, StaticSource(list))

	var picks []string
	for range 20 {
		p, err := pool.Choose(context.Background())
		require.NoError(t, err)
		assert.Contains(t, list, p)
		picks = append(picks, p)
	}
	// each pick differs from the RecentMax picks before it
	for i := range picks {
		for j := max(0, i-RecentMax); j < i; j++ {
			assert.NotEqual(t, picks[j], picks[i], "pick %d repeats pick %d", i, j)
		}
	}
}

func TestChooseSingleProxyGivesUp(t *testing.T) {
	src := &countingSource{proxies: []string{"only:1"}}
	pool, _ := newTestPool(t, src)

	for range 3 {
		p, err := pool.Choose(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "only:1", p)
	}
	// first load, then two collision runs refreshing every 10 attempts
	assert.EqualValues(t, 1+2*(chooseAttempts/refreshInterval), src.calls.Load())
}

func TestRecordErrorThreshold(t *testing.T) {
	pool, clock := newTestPool(t, StaticSource{"a:1", "b:2"})
	_, err := pool.Proxies(context.Background(), false)
	require.NoError(t, err)

	cause := errors.New("connection reset\nmore detail")
	for i := 1; i < ErrorThreshold; i++ {
		broken, err := pool.RecordError("a:1", cause)
		require.NoError(t, err)
		assert.False(t, broken)
	}
	broken, err := pool.RecordError("a:1", cause)
	require.NoError(t, err)
	assert.True(t, broken)

	got, err := pool.Proxies(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"b:2"}, got)

	data, err := os.ReadFile(pool.opts.BrokenFile)
	require.NoError(t, err)
	assert.Equal(t, "a:1 # connection reset\n", string(data))

	// old errors are forgotten
	for i := 1; i < ErrorThreshold; i++ {
		_, err := pool.RecordError("b:2", cause)
		require.NoError(t, err)
	}
	clock.now = clock.now.Add(ErrorForgetTime + time.Second)
	broken, err = pool.RecordError("b:2", cause)
	require.NoError(t, err)
	assert.False(t, broken)
}

func TestBrokenCacheSharedAcrossPools(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "broken_proxies.txt")
	first := NewPool(Options{Sources: []Source{StaticSource{"a:1", "b:2"}}, BrokenFile: file})
	require.NoError(t, first.MarkBroken("a:1", "timed out"))

	second := NewPool(Options{Sources: []Source{StaticSource{"a:1", "b:2"}}, BrokenFile: file})
	got, err := second.Proxies(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"b:2"}, got)

	broken, err := second.Broken()
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1"}, broken)
}

func TestBrokenCacheParsing(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "broken_proxies.txt")
	content := "# header comment\n\na:1 # refused\nb:2\n  c:3   # spaced  \n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))

	pool := NewPool(Options{BrokenFile: file})
	broken, err := pool.Broken()
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1", "b:2", "c:3"}, broken)
}

func TestBrokenCacheExpires(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "broken_proxies.txt")
	require.NoError(t, os.WriteFile(file, []byte("a:1\n"), 0644))
	old := time.Now().Add(-3 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(file, old, old))

	pool := NewPool(Options{Sources: []Source{StaticSource{"a:1"}}, BrokenFile: file})
	got, err := pool.Proxies(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1"}, got)

	_, err = os.Stat(file)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResetAndClearCache(t *testing.T) {
	pool, _ := newTestPool(t, StaticSource{"a:1", "b:2"})
	require.NoError(t, pool.MarkBroken("a:1", ""))

	pool.Reset()
	// still listed by the cache file
	broken, err := pool.Broken()
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1"}, broken)

	require.NoError(t, pool.ClearCache())
	broken, err = pool.Broken()
	require.NoError(t, err)
	assert.Empty(t, broken)

	got, err := pool.Proxies(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1", "b:2"}, got)
}

func TestMemoryOnlyPool(t *testing.T) {
	pool := NewPool(Options{Sources: []Source{StaticSource{"a:1", "b:2"}}})
	require.NoError(t, pool.MarkBroken("b:2", "dead"))
	got, err := pool.Proxies(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1"}, got)
	require.NoError(t, pool.ClearCache())
}
