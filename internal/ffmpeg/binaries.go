package ffmpeg

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/mgpai22/pressurecooker/internal/logging"
)

const (
	bundleVersion = "6.1"
	bundleBaseURL = "https://github.com/ffbinaries/ffbinaries-prebuilt/releases/download"
)

var errBundleIncomplete = errors.New("ffmpeg bundle missing required binaries")

type BinaryPaths struct {
	FFmpeg  string
	FFprobe string
}

var (
	resolveOnce  sync.Once
	resolveErr   error
	resolvedPath BinaryPaths

	configured BinaryPaths

	installLog = logging.Nop()
)

// Configure sets explicit binary locations and the logger used while
// installing the bundle. It must run before the first Ensure.
func Configure(paths BinaryPaths, logger *logging.Logger) {
	configured = paths
	installLog = logging.OrNop(logger)
}

// Ensure resolves ffmpeg and ffprobe once per process.
func Ensure() (BinaryPaths, error) {
	resolveOnce.Do(func() {
		resolvedPath, resolveErr = resolve()
	})
	return resolvedPath, resolveErr
}

func FFmpegPath() (string, error) {
	paths, err := Ensure()
	return paths.FFmpeg, err
}

func FFprobePath() (string, error) {
	paths, err := Ensure()
	return paths.FFprobe, err
}

func resolve() (BinaryPaths, error) {
	ffmpegPath, ffmpegErr := Tool("ffmpeg", configured.FFmpeg)
	ffprobePath, ffprobeErr := Tool("ffprobe", configured.FFprobe)
	if ffmpegErr == nil && ffprobeErr == nil {
		return BinaryPaths{FFmpeg: ffmpegPath, FFprobe: ffprobePath}, nil
	}
	// a wrong explicit path is reported rather than papered over
	if configured.FFmpeg != "" && ffmpegErr != nil {
		return BinaryPaths{}, ffmpegErr
	}
	if configured.FFprobe != "" && ffprobeErr != nil {
		return BinaryPaths{}, ffprobeErr
	}

	asset, err := bundleAsset(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return BinaryPaths{}, errors.Join(ffmpegErr, ffprobeErr, err)
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil || cacheDir == "" {
		cacheDir = os.TempDir()
	}
	dir := filepath.Join(cacheDir, "pressurecooker", "ffmpeg", bundleVersion, runtime.GOOS+"-"+runtime.GOARCH)
	return installBundle(asset, dir)
}

func bundleAsset(goos, goarch string) (string, error) {
	platforms := map[string]string{
		"linux/amd64":   "linux-64",
		"linux/arm64":   "linux-arm-64",
		"darwin/amd64":  "macos-64",
		"windows/amd64": "win-64",
	}
	platform, ok := platforms[goos+"/"+goarch]
	if !ok {
		return "", fmt.Errorf("no bundled ffmpeg for %s/%s", goos, goarch)
	}
	return "ffmpeg-" + bundleVersion + "-" + platform + ".zip", nil
}

func installedPaths(dir string) BinaryPaths {
	return BinaryPaths{
		FFmpeg:  filepath.Join(dir, "ffmpeg"+exeSuffix()),
		FFprobe: filepath.Join(dir, "ffprobe"+exeSuffix()),
	}
}

// installBundle fills dir from the embedded archive or the release
// download. Concurrent processes serialize on a lock file in dir.
func installBundle(asset, dir string) (BinaryPaths, error) {
	paths := installedPaths(dir)
	if paths.complete() {
		return paths, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return BinaryPaths{}, fmt.Errorf("create ffmpeg cache dir: %w", err)
	}

	lock := flock.New(filepath.Join(dir, ".install.lock"))
	if err := lock.Lock(); err != nil {
		return BinaryPaths{}, fmt.Errorf("lock ffmpeg cache dir: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	// another process may have finished while we waited
	if paths.complete() {
		return paths, nil
	}

	src, bundled, err := openEmbeddedAsset(asset)
	if err != nil {
		return BinaryPaths{}, err
	}
	if !bundled {
		installLog.Infow("Downloading ffmpeg", "asset", asset, "dir", dir)
		src, err = download(bundleBaseURL + "/v" + bundleVersion + "/" + asset)
		if err != nil {
			return BinaryPaths{}, err
		}
	}
	defer func() { _ = src.Close() }()

	if err := installFrom(src, dir); err != nil {
		return BinaryPaths{}, fmt.Errorf("install %s: %w", asset, err)
	}
	installLog.Debugw("Installed ffmpeg", "ffmpeg", paths.FFmpeg, "ffprobe", paths.FFprobe)
	return paths, nil
}

func download(url string) (io.ReadCloser, error) {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	client.HTTPClient.Timeout = 5 * time.Minute

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("download ffmpeg: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("download ffmpeg: unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

// installFrom spools a zip stream next to its destination, since zip
// needs random access, and unpacks the two binaries from it.
func installFrom(r io.Reader, dir string) error {
	tmp, err := os.CreateTemp(dir, "bundle-*.zip")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	_, copyErr := io.Copy(tmp, r)
	if err := errors.Join(copyErr, tmp.Close()); err != nil {
		return fmt.Errorf("spool archive: %w", err)
	}
	return installArchive(tmp.Name(), dir)
}

func installArchive(archivePath, dir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open ffmpeg archive: %w", err)
	}
	defer func() { _ = zr.Close() }()

	found := map[string]bool{}
	for _, entry := range zr.File {
		name, ok := binaryName(entry.Name)
		if !ok || found[name] {
			continue
		}
		if err := unpack(entry, filepath.Join(dir, name+exeSuffix())); err != nil {
			return err
		}
		found[name] = true
	}
	if !found["ffmpeg"] || !found["ffprobe"] {
		return errBundleIncomplete
	}
	return nil
}

// binaryName maps an archive entry to the binary it provides, if any.
func binaryName(entry string) (string, bool) {
	base := strings.ToLower(path.Base(strings.ReplaceAll(entry, `\`, "/")))
	base = strings.TrimSuffix(base, ".exe")
	switch base {
	case "ffmpeg", "ffprobe":
		return base, true
	}
	return "", false
}

// unpack writes entry under a temporary name and renames it into place so
// that a half-written binary is never picked up by complete.
func unpack(entry *zip.File, dest string) error {
	in, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.Name, err)
	}
	defer func() { _ = in.Close() }()

	partial := dest + ".partial"
	out, err := os.OpenFile(partial, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(dest), err)
	}
	_, copyErr := io.Copy(out, in)
	if err := errors.Join(copyErr, out.Close()); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("write %s: %w", filepath.Base(dest), err)
	}
	return os.Rename(partial, dest)
}

func (p BinaryPaths) complete() bool {
	return fileExists(p.FFmpeg) && fileExists(p.FFprobe)
}

func fileExists(name string) bool {
	info, err := os.Stat(name)
	return err == nil && !info.IsDir() && info.Size() > 0
}

func exeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}
