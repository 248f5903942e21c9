package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/mgpai22/pressurecooker/internal/logging"
)

const (
	ProxyScrapeURL = "https://api.proxyscrape.com/?request=getproxies&proxytype=http&country=all&ssl=yes&anonymity=all&timeout=1000"
	SSLProxiesURL  = "https://sslproxies.org"

	// response bodies larger than this are not proxy lists
	maxSourceBody = 4 << 20
)

// Source produces candidate "host:port" proxies.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]string, error)
}

// fixed list, typically from PROXY_LIST
type StaticSource []string

func (s StaticSource) Name() string { return "static" }

func (s StaticSource) Fetch(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

// plain-text list, one proxy per line
type ProxyScrapeSource struct {
	URL    string
	Client *retryablehttp.Client
}

func (s *ProxyScrapeSource) Name() string { return "proxyscrape" }

func (s *ProxyScrapeSource) Fetch(ctx context.Context) ([]string, error) {
	body, err := get(ctx, s.Client, s.URL)
	if err != nil {
		return nil, err
	}
	var proxies []string
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			proxies = append(proxies, line)
		}
	}
	return proxies, nil
}

// HTML table scrape of sslproxies.org
type SSLProxiesSource struct {
	URL    string
	Client *retryablehttp.Client
}

var sslProxiesRow = regexp.MustCompile(`<td>(\d+\.\d+\.\d+\.\d+)</td><td>(\d+)</td>`)

func (s *SSLProxiesSource) Name() string { return "sslproxies" }

func (s *SSLProxiesSource) Fetch(ctx context.Context) ([]string, error) {
	body, err := get(ctx, s.Client, s.URL)
	if err != nil {
		return nil, err
	}
	var proxies []string
	for _, m := range sslProxiesRow.FindAllStringSubmatch(body, -1) {
		proxies = append(proxies, m[1]+":"+m[2])
	}
	return proxies, nil
}

// DefaultSources uses list when it is non-empty, otherwise the public
// proxyscrape API with sslproxies as fallback.
func DefaultSources(list []string, client *retryablehttp.Client) []Source {
	if len(list) > 0 {
		return []Source{StaticSource(list)}
	}
	return []Source{
		&ProxyScrapeSource{URL: ProxyScrapeURL, Client: client},
		&SSLProxiesSource{URL: SSLProxiesURL, Client: client},
	}
}

// NewHTTPClient returns a retrying client that logs through logger.
func NewHTTPClient(timeout time.Duration, logger *logging.Logger) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = leveledLogger{logging.OrNop(logger)}
	return client
}

func get(ctx context.Context, client *retryablehttp.Client, url string) (string, error) {
	if client == nil {
		client = NewHTTPClient(20*time.Second, nil)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch %s: unexpected status %s", url, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBody))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", url, err)
	}
	return string(data), nil
}

// adapts the zap logger to retryablehttp.LeveledLogger
type leveledLogger struct {
	l *logging.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.l.Errorw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.l.Warnw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.l.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.l.Debugw(msg, kv...) }
