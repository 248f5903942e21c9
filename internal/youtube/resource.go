package youtube

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mgpai22/pressurecooker/internal/config"
	"github.com/mgpai22/pressurecooker/internal/logging"
)

const (
	DefaultMaxAttempts   = 10
	DefaultRetryDelay    = 500 * time.Millisecond
	DefaultSlowThreshold = 20 * time.Second
)

var ErrInvalidURL = errors.New("not a YouTube URL")

// ProxyChooser is the part of the proxy pool a resource uses.
type ProxyChooser interface {
	Choose(ctx context.Context) (string, error)
	RecordError(proxy string, cause error) (bool, error)
}

type Options struct {
	// yt-dlp executable
	YtDlpPath string
	// route metadata extraction through Proxies
	UseProxy bool
	Proxies  ProxyChooser
	// allow up to 720p instead of 480p
	HighResolution bool
	MaxAttempts    int
	RetryDelay     time.Duration
	// extractions slower than this count against the proxy used
	SlowThreshold time.Duration
	// appended to every yt-dlp invocation
	ExtraArgs []string
	Logger    *logging.Logger

	run Runner
	now func() time.Time
}

// OptionsFromConfig maps the youtube config section to resource options.
func OptionsFromConfig(cfg *config.Config, proxies ProxyChooser, logger *logging.Logger) Options {
	return Options{
		YtDlpPath:     cfg.Binaries.YtDlp,
		UseProxy:      cfg.YouTube.UseProxy,
		Proxies:       proxies,
		MaxAttempts:   cfg.YouTube.MaxAttempts,
		RetryDelay:    time.Duration(cfg.YouTube.RetryDelay),
		SlowThreshold: time.Duration(cfg.YouTube.SlowThreshold),
		Logger:        logger,
	}
}

// Resource is a YouTube video, playlist or channel.
type Resource struct {
	URL    string
	opts   Options
	logger *logging.Logger

	// raw yt-dlp dump of the last successful extraction
	raw  []byte
	info *Info
}

// NewResource validates url. Nothing is fetched until Info is called.
func NewResource(url string, opts Options) (*Resource, error) {
	if !strings.Contains(url, "youtube.com") && !strings.Contains(url, "youtu.be") {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, url)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.SlowThreshold <= 0 {
		opts.SlowThreshold = DefaultSlowThreshold
	}
	if opts.YtDlpPath == "" {
		opts.YtDlpPath = "yt-dlp"
	}
	if opts.run == nil {
		opts.run = execRunner
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	if opts.UseProxy && opts.Proxies == nil {
		return nil, fmt.Errorf("proxy use requested without a proxy pool")
	}
	return &Resource{URL: url, opts: opts, logger: logging.OrNop(opts.Logger)}, nil
}

// formatSelector prefers mp4 video with m4a audio under the height cap.
func (r *Resource) formatSelector() string {
	height := 480
	if r.opts.HighResolution {
		height = 720
	}
	return fmt.Sprintf("bestvideo[height<=%[1]d][ext=mp4]+bestaudio[ext=m4a]/best[height<=%[1]d][ext=mp4]", height)
}

// Info extracts metadata for the resource, retrying through fresh proxies
// on network failures.
func (r *Resource) Info(ctx context.Context) (*Info, error) {
	return r.extract(ctx, nil)
}

// Subtitles extracts metadata including every manually created subtitle
// track; automatic captions are excluded.
func (r *Resource) Subtitles(ctx context.Context) (*Info, error) {
	return r.extract(ctx, []string{"--write-subs", "--sub-langs", "all", "--no-write-auto-subs"})
}

func (r *Resource) extract(ctx context.Context, extra []string) (*Info, error) {
	args := []string{
		"--dump-single-json",
		"--no-warnings",
		"--no-color",
		"--format", r.formatSelector(),
	}
	args = append(args, extra...)
	args = append(args, r.opts.ExtraArgs...)

	var (
		raw  []byte
		info *Info
	)
	err := r.retry(ctx, "Info extraction", r.opts.UseProxy, func(proxy string) error {
		callArgs := args
		if proxy != "" {
			callArgs = append(append([]string{}, args...), "--proxy", proxy)
		}
		callArgs = append(callArgs, r.URL)

		r.logger.Debugw("Calling yt-dlp", "url", r.URL, "args", callArgs)
		start := r.opts.now()
		out, err := r.opts.run(ctx, r.opts.YtDlpPath, callArgs...)
		elapsed := r.opts.now().Sub(start)
		if err != nil {
			return err
		}
		parsed, err := ParseInfo(out)
		if err != nil {
			return backoff.Permanent(err)
		}

		// playlists are allowed to be slow
		if proxy != "" && elapsed > r.opts.SlowThreshold && !parsed.IsCollection() {
			r.logger.Infow("Found slow proxy", "proxy", proxy, "elapsed", elapsed)
			r.recordProxyError(proxy, fmt.Errorf("extraction took %s", elapsed))
		}
		raw, info = out, parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.raw, r.info = raw, info
	return info, nil
}

// Download fetches the video(s) with thumbnails into baseDir/<dir name>, or
// the working directory when baseDir is empty. Metadata is extracted first
// when needed. Files are named <id>.<ext>; partial files from a failed
// attempt are removed before retrying.
func (r *Resource) Download(ctx context.Context, baseDir string, useProxy bool) (*Info, error) {
	dir := "."
	if baseDir != "" {
		dir = filepath.Join(baseDir, DirNameFromURL(r.URL))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create download directory: %w", err)
		}
	}
	if r.info == nil {
		if _, err := r.Info(ctx); err != nil {
			return nil, err
		}
	}
	if useProxy && r.opts.Proxies == nil {
		return nil, fmt.Errorf("proxy use requested without a proxy pool")
	}

	infoFile, err := os.CreateTemp("", "pressurecooker-info-*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to create info file: %w", err)
	}
	defer os.Remove(infoFile.Name())
	if _, err := infoFile.Write(r.raw); err != nil {
		_ = infoFile.Close()
		return nil, fmt.Errorf("failed to write info file: %w", err)
	}
	if err := infoFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to write info file: %w", err)
	}

	args := []string{
		"--load-info-json", infoFile.Name(),
		"--output", filepath.Join(dir, "%(id)s.%(ext)s"),
		"--format", r.formatSelector(),
		"--write-thumbnail",
		"--no-continue",
		"--no-progress",
		"--no-warnings",
		"--no-color",
	}
	args = append(args, r.opts.ExtraArgs...)

	r.logger.Infow("Downloading", "url", r.URL, "dir", dir)
	err = r.retry(ctx, "Download", useProxy, func(proxy string) error {
		callArgs := args
		if proxy != "" {
			callArgs = append(append([]string{}, args...), "--proxy", proxy)
		}
		if _, err := r.opts.run(ctx, r.opts.YtDlpPath, callArgs...); err != nil {
			r.removePartial(dir)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debugw("Download finished", "url", r.URL)

	for _, video := range r.info.Videos() {
		video.Filename = filepath.Join(dir, video.ID+"."+video.Ext)
	}
	return r.info, nil
}

func (r *Resource) removePartial(dir string) {
	for _, video := range r.info.Videos() {
		if video.ID == "" {
			continue
		}
		base := filepath.Join(dir, video.ID+"."+video.Ext)
		for _, path := range []string{base, base + ".part"} {
			if err := os.Remove(path); err == nil {
				r.logger.Debugw("Removed partial download", "path", path)
			}
		}
	}
}

// retry runs op up to MaxAttempts times, RetryDelay apart. With useProxy
// every attempt gets a freshly chosen proxy and network failures are
// recorded against it. Non-network failures end the loop immediately.
func (r *Resource) retry(ctx context.Context, what string, useProxy bool, op func(proxy string) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		var proxy string
		if useProxy {
			p, err := r.opts.Proxies.Choose(ctx)
			if err != nil {
				return backoff.Permanent(err)
			}
			proxy = p
		}
		err := op(proxy)
		if err == nil {
			return nil
		}
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return err
		}
		if !isNetworkError(err) {
			return backoff.Permanent(err)
		}
		if proxy != "" {
			r.recordProxyError(proxy, err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.opts.RetryDelay), uint64(r.opts.MaxAttempts-1)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		r.logger.Warnw(what+" failed, retrying", "url", r.URL, "attempt", attempt, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return fmt.Errorf("%s failed for %s: %w", strings.ToLower(what), r.URL, err)
	}
	return nil
}

func (r *Resource) recordProxyError(proxy string, cause error) {
	if _, err := r.opts.Proxies.RecordError(proxy, cause); err != nil {
		r.logger.Warnw("Failed to record proxy error", "proxy", proxy, "error", err)
	}
}

// ContentWarning lists the problems found with one video.
type ContentWarning struct {
	Video    *Info
	Warnings []string
}

const (
	WarningNoLicense     = "no_license_specified"
	WarningClosedLicense = "closed_license"
)

// CheckContentIssues flags videos without a Creative Commons licence. With
// filter the returned info keeps only the videos without warnings.
func (r *Resource) CheckContentIssues(ctx context.Context, filter bool) ([]ContentWarning, *Info, error) {
	info, err := r.Info(ctx)
	if err != nil {
		return nil, nil, err
	}
	out := *info
	if filter && info.IsCollection() {
		out.Children = []*Info{}
	}

	var warnings []ContentWarning
	for _, video := range info.Videos() {
		var issues []string
		switch {
		case video.License == "":
			issues = append(issues, WarningNoLicense)
		case !strings.Contains(video.License, "Creative Commons"):
			issues = append(issues, WarningClosedLicense)
		}
		if len(issues) > 0 {
			warnings = append(warnings, ContentWarning{Video: video, Warnings: issues})
		} else if filter && info.IsCollection() {
			out.Children = append(out.Children, video)
		}
	}
	return warnings, &out, nil
}

// DirNameFromURL derives a directory name from the last path segment of
// url, e.g. ".../playlist_of_things?x=1" becomes "Playlist Of Things".
func DirNameFromURL(url string) string {
	name := url[strings.LastIndex(url, "/")+1:]
	name, _, _ = strings.Cut(name, "?")
	name = strings.Join(strings.Split(name, "_"), " ")
	return cases.Title(language.Und).String(name)
}

// IsSupportedSubtitleLanguage reports whether a YouTube subtitle language
// code maps to a known language.
func IsSupportedSubtitleLanguage(code string) bool {
	tag, err := language.Parse(code)
	if err != nil {
		return false
	}
	base, conf := tag.Base()
	return conf != language.No && base.String() != "und"
}
