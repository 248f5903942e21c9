package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "config.yml"
	AppDirName     = "pressurecooker"
)

// environment overrides, applied after the config file
const (
	EnvProxyList     = "PROXY_LIST"
	EnvBrokenProxies = "PRESSURECOOKER_BROKEN_PROXIES"
	EnvFFmpegPath    = "PRESSURECOOKER_FFMPEG_PATH"
	EnvFFprobePath   = "PRESSURECOOKER_FFPROBE_PATH"
	EnvYtDlpPath     = "PRESSURECOOKER_YTDLP_PATH"
	EnvPdftoppmPath  = "PRESSURECOOKER_PDFTOPPM_PATH"
	EnvConcurrency   = "PRESSURECOOKER_CONCURRENCY"
)

// ConfigDir returns the standard config directory.
// Windows: %APPDATA%\pressurecooker\
// macOS/Linux: ~/.config/pressurecooker/
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, AppDirName), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// ConfigPath returns the default config file location.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// Duration is a time.Duration written as a Go duration string ("20s") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

type Config struct {
	Binaries  BinariesConfig  `yaml:"binaries,omitempty"`
	Subtitles SubtitlesConfig `yaml:"subtitles,omitempty"`
	Proxy     ProxyConfig     `yaml:"proxy,omitempty"`
	YouTube   YouTubeConfig   `yaml:"youtube,omitempty"`
	Video     VideoConfig     `yaml:"video,omitempty"`
}

// external tool locations; empty means look them up on PATH
type BinariesConfig struct {
	FFmpeg   string `yaml:"ffmpeg,omitempty"`
	FFprobe  string `yaml:"ffprobe,omitempty"`
	YtDlp    string `yaml:"yt_dlp,omitempty"`
	Pdftoppm string `yaml:"pdftoppm,omitempty"`
}

type SubtitlesConfig struct {
	// language assigned to inputs that carry none (srt, webvtt, scc)
	Language string `yaml:"language,omitempty"`
	// text encoding of input files; empty means UTF-8
	Encoding string `yaml:"encoding,omitempty"`
	// parallel conversions for multi-file runs
	Concurrency int `yaml:"concurrency,omitempty"`
}

type ProxyConfig struct {
	// fixed proxy list; when set no public source is queried
	List []string `yaml:"list,omitempty"`
	// file holding proxies found broken, one "host:port # reason" per line
	BrokenFile string `yaml:"broken_file,omitempty"`
	// how long the broken list is trusted before it is discarded
	BrokenTTL Duration `yaml:"broken_ttl,omitempty"`
	// request timeout for proxy sources
	Timeout Duration `yaml:"timeout,omitempty"`
}

type YouTubeConfig struct {
	MaxAttempts int      `yaml:"max_attempts,omitempty"`
	RetryDelay  Duration `yaml:"retry_delay,omitempty"`
	// extractions slower than this count against the proxy used
	SlowThreshold Duration `yaml:"slow_threshold,omitempty"`
	UseProxy      bool     `yaml:"use_proxy,omitempty"`
}

type VideoConfig struct {
	MaxHeight int `yaml:"max_height,omitempty"`
	CRF       int `yaml:"crf,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{
		Subtitles: SubtitlesConfig{
			Concurrency: runtime.NumCPU(),
		},
		Proxy: ProxyConfig{
			BrokenTTL: Duration(48 * time.Hour),
			Timeout:   Duration(20 * time.Second),
		},
		YouTube: YouTubeConfig{
			MaxAttempts:   10,
			RetryDelay:    Duration(500 * time.Millisecond),
			SlowThreshold: Duration(20 * time.Second),
		},
		Video: VideoConfig{
			MaxHeight: 480,
			CRF:       32,
		},
	}
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		cfg.Proxy.BrokenFile = filepath.Join(dir, AppDirName, "broken_proxies.txt")
	} else {
		cfg.Proxy.BrokenFile = filepath.Join(os.TempDir(), AppDirName, "broken_proxies.txt")
	}
	return cfg
}

// Load reads path (the default location when empty) on top of the defaults,
// then a .env file in the working directory, then environment overrides.
// A missing config file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		defaultPath, err := ConfigPath()
		if err == nil {
			path = defaultPath
		}
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	// variables already set in the environment win over .env
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.Proxy.BrokenFile = expandPath(cfg.Proxy.BrokenFile)
	cfg.Binaries.FFmpeg = expandPath(cfg.Binaries.FFmpeg)
	cfg.Binaries.FFprobe = expandPath(cfg.Binaries.FFprobe)
	cfg.Binaries.YtDlp = expandPath(cfg.Binaries.YtDlp)
	cfg.Binaries.Pdftoppm = expandPath(cfg.Binaries.Pdftoppm)
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvProxyList); v != "" {
		c.Proxy.List = SplitProxyList(v)
	}
	if v := os.Getenv(EnvBrokenProxies); v != "" {
		c.Proxy.BrokenFile = v
	}
	if v := os.Getenv(EnvFFmpegPath); v != "" {
		c.Binaries.FFmpeg = v
	}
	if v := os.Getenv(EnvFFprobePath); v != "" {
		c.Binaries.FFprobe = v
	}
	if v := os.Getenv(EnvYtDlpPath); v != "" {
		c.Binaries.YtDlp = v
	}
	if v := os.Getenv(EnvPdftoppmPath); v != "" {
		c.Binaries.Pdftoppm = v
	}
	if v := os.Getenv(EnvConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid %s %q: expected a positive integer", EnvConcurrency, v)
		}
		c.Subtitles.Concurrency = n
	}
	return nil
}

// SplitProxyList parses a ";" separated proxy list, dropping empty entries.
func SplitProxyList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ";") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Save writes cfg to path, creating its directory.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	header := "# pressurecooker configuration file\n\n"
	return os.WriteFile(path, []byte(header+string(data)), 0644)
}

// expandPath expands a leading "~" to the user's home directory.
func expandPath(path string) string {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path
	}
	if len(path) > 1 && path[1] != '/' && path[1] != '\\' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimLeft(path[1:], `/\`))
}
