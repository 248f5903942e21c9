package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/mgpai22/pressurecooker/internal/config"
	"github.com/mgpai22/pressurecooker/internal/logging"
)

const (
	// proxies handed out recently are avoided by Choose
	RecentMax = 3

	// errors older than this are forgotten
	ErrorForgetTime = 10 * time.Minute

	// errors within ErrorForgetTime before a proxy is marked broken
	ErrorThreshold = 3

	DefaultBrokenTTL = 48 * time.Hour

	chooseAttempts  = 30
	refreshInterval = 10
)

var ErrNoProxies = errors.New("no proxies available")

type Options struct {
	// tried in order; the first one returning proxies wins
	Sources []Source
	// shared broken-proxy cache; empty keeps broken state in memory only
	BrokenFile string
	BrokenTTL  time.Duration
	Logger     *logging.Logger

	now  func() time.Time
	rand *rand.Rand
}

// OptionsFromConfig builds pool options from the proxy config section.
func OptionsFromConfig(cfg config.ProxyConfig, logger *logging.Logger) Options {
	client := NewHTTPClient(time.Duration(cfg.Timeout), logger)
	return Options{
		Sources:    DefaultSources(cfg.List, client),
		BrokenFile: cfg.BrokenFile,
		BrokenTTL:  time.Duration(cfg.BrokenTTL),
		Logger:     logger,
	}
}

// Pool hands out proxies and tracks the ones that stop working. It is safe
// for concurrent use; broken proxies are shared with other processes through
// a lock-protected cache file.
type Pool struct {
	opts   Options
	logger *logging.Logger
	fileMu *flock.Flock

	// serialises this process's use of fileMu
	cacheMu sync.Mutex

	mu         sync.Mutex
	proxies    []string
	recent     []string
	errorTimes map[string][]time.Time
	broken     map[string]bool
}

func NewPool(opts Options) *Pool {
	if opts.BrokenTTL <= 0 {
		opts.BrokenTTL = DefaultBrokenTTL
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	p := &Pool{
		opts:       opts,
		logger:     logging.OrNop(opts.Logger),
		errorTimes: make(map[string][]time.Time),
		broken:     make(map[string]bool),
	}
	if opts.BrokenFile != "" {
		p.fileMu = flock.New(opts.BrokenFile + ".lock")
	}
	return p
}

// Proxies returns the working proxies, fetching them on first use or when
// refresh is set.
func (p *Pool) Proxies(ctx context.Context, refresh bool) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.load(ctx, refresh); err != nil {
		return nil, err
	}
	return slices.Clone(p.proxies), nil
}

func (p *Pool) load(ctx context.Context, refresh bool) error {
	if len(p.proxies) > 0 && !refresh {
		return nil
	}

	var (
		fetched []string
		errs    []error
	)
	for _, src := range p.opts.Sources {
		list, err := src.Fetch(ctx)
		if err != nil {
			p.logger.Warnw("Proxy source failed", "source", src.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		if len(list) > 0 {
			p.logger.Debugw("Fetched proxies", "source", src.Name(), "count", len(list))
			fetched = list
			break
		}
	}

	if len(fetched) == 0 {
		// keep serving the previous list when every source fails on refresh
		fetched = slices.Clone(p.proxies)
	}

	broken, err := p.readBroken()
	if err != nil {
		return err
	}
	p.proxies = p.proxies[:0]
	seen := make(map[string]bool, len(fetched))
	for _, proxy := range fetched {
		if seen[proxy] || broken[proxy] || p.broken[proxy] {
			continue
		}
		seen[proxy] = true
		p.proxies = append(p.proxies, proxy)
	}
	if len(p.proxies) == 0 {
		if len(errs) > 0 {
			return fmt.Errorf("%w: %w", ErrNoProxies, errors.Join(errs...))
		}
		return ErrNoProxies
	}
	return nil
}

// Choose picks a random proxy, avoiding the RecentMax most recently chosen
// ones. The list is refreshed every few collisions; after enough attempts
// the last pick is returned even if it was recent.
func (p *Pool) Choose(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.load(ctx, false); err != nil {
		return "", err
	}

	var pick string
	for attempt := 1; attempt <= chooseAttempts; attempt++ {
		pick = p.proxies[p.intN(len(p.proxies))]
		if !slices.Contains(p.recent, pick) {
			break
		}
		if attempt%refreshInterval == 0 {
			if err := p.load(ctx, true); err != nil {
				return "", err
			}
		}
	}

	p.recent = append(p.recent, pick)
	if len(p.recent) > RecentMax {
		p.recent = p.recent[len(p.recent)-RecentMax:]
	}
	return pick, nil
}

func (p *Pool) intN(n int) int {
	if p.opts.rand != nil {
		return p.opts.rand.IntN(n)
	}
	return rand.IntN(n)
}

// RecordError notes a failure through proxy. The proxy is marked broken
// once ErrorThreshold errors happen within ErrorForgetTime; the first line
// of the last error becomes the recorded reason.
func (p *Pool) RecordError(proxy string, cause error) (bool, error) {
	p.mu.Lock()
	now := p.opts.now()
	recent := p.errorTimes[proxy][:0:0]
	for _, t := range p.errorTimes[proxy] {
		if now.Sub(t) < ErrorForgetTime {
			recent = append(recent, t)
		}
	}
	recent = append(recent, now)
	p.errorTimes[proxy] = recent
	p.mu.Unlock()

	p.logger.Debugw("Proxy error", "proxy", proxy, "count", len(recent), "error", cause)
	if len(recent) < ErrorThreshold {
		return false, nil
	}

	reason := "unknown error"
	if cause != nil {
		reason, _, _ = strings.Cut(cause.Error(), "\n")
	}
	return true, p.MarkBroken(proxy, reason)
}

// MarkBroken removes proxy from the pool and appends it to the broken cache.
func (p *Pool) MarkBroken(proxy, reason string) error {
	p.mu.Lock()
	p.broken[proxy] = true
	delete(p.errorTimes, proxy)
	p.proxies = slices.DeleteFunc(p.proxies, func(s string) bool { return s == proxy })
	p.mu.Unlock()

	p.logger.Warnw("Marking proxy as broken", "proxy", proxy, "reason", reason)
	if p.fileMu == nil {
		return nil
	}

	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	if err := os.MkdirAll(filepath.Dir(p.opts.BrokenFile), 0755); err != nil {
		return fmt.Errorf("failed to create proxy cache directory: %w", err)
	}
	if err := p.fileMu.Lock(); err != nil {
		return fmt.Errorf("failed to lock proxy cache: %w", err)
	}
	defer p.fileMu.Unlock()

	f, err := os.OpenFile(p.opts.BrokenFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open proxy cache: %w", err)
	}
	line := proxy
	if reason = strings.TrimSpace(reason); reason != "" {
		line += " # " + reason
	}
	if _, err := fmt.Fprintln(f, line); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write proxy cache: %w", err)
	}
	return f.Close()
}

// Broken lists proxies marked broken by this pool or found in the cache.
func (p *Pool) Broken() ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cached, err := p.readBroken()
	if err != nil {
		return nil, err
	}
	for proxy := range p.broken {
		cached[proxy] = true
	}
	out := make([]string, 0, len(cached))
	for proxy := range cached {
		out = append(out, proxy)
	}
	slices.Sort(out)
	return out, nil
}

// Reset forgets in-memory error counts and broken marks.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errorTimes = make(map[string][]time.Time)
	p.broken = make(map[string]bool)
	p.recent = nil
}

// ClearCache resets the pool and deletes the shared broken cache.
func (p *Pool) ClearCache() error {
	p.Reset()
	if p.fileMu == nil {
		return nil
	}
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	if _, err := os.Stat(p.opts.BrokenFile); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := p.fileMu.Lock(); err != nil {
		return fmt.Errorf("failed to lock proxy cache: %w", err)
	}
	defer p.fileMu.Unlock()
	if err := os.Remove(p.opts.BrokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove proxy cache: %w", err)
	}
	return nil
}

// readBroken loads the cache file, discarding it once it is older than the
// configured TTL. Lines are "host:port", optionally followed by "# reason";
// lines starting with "#" are comments.
func (p *Pool) readBroken() (map[string]bool, error) {
	broken := make(map[string]bool)
	if p.fileMu == nil {
		return broken, nil
	}
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	info, err := os.Stat(p.opts.BrokenFile)
	if errors.Is(err, os.ErrNotExist) {
		return broken, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat proxy cache: %w", err)
	}

	if p.opts.now().Sub(info.ModTime()) > p.opts.BrokenTTL {
		if err := p.fileMu.Lock(); err != nil {
			return nil, fmt.Errorf("failed to lock proxy cache: %w", err)
		}
		defer p.fileMu.Unlock()
		p.logger.Debugw("Discarding stale proxy cache", "path", p.opts.BrokenFile, "modified", info.ModTime())
		if err := os.Remove(p.opts.BrokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove proxy cache: %w", err)
		}
		return broken, nil
	}

	if err := p.fileMu.RLock(); err != nil {
		return nil, fmt.Errorf("failed to lock proxy cache: %w", err)
	}
	defer p.fileMu.Unlock()

	f, err := os.Open(p.opts.BrokenFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return broken, nil
		}
		return nil, fmt.Errorf("failed to open proxy cache: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		proxy, _, _ := strings.Cut(line, "#")
		broken[strings.TrimSpace(proxy)] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read proxy cache: %w", err)
	}
	return broken, nil
}
