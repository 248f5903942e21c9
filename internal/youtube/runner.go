package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// yt-dlp messages for failures no proxy or retry can fix
var nonNetworkMarkers = []string{
	"Private video",
	"Video unavailable",
	"This video is unavailable",
	"This video has been removed",
	"members-only",
	"Sign in to confirm your age",
	"Unsupported URL",
	"is not a valid URL",
	"Postprocessing:",
}

// ExtractorError is a failed yt-dlp invocation.
type ExtractorError struct {
	Stderr string
	Err    error
}

func (e *ExtractorError) Error() string {
	if msg := lastErrorLine(e.Stderr); msg != "" {
		return "yt-dlp failed: " + msg
	}
	return fmt.Sprintf("yt-dlp failed: %v", e.Err)
}

func (e *ExtractorError) Unwrap() error { return e.Err }

// Network reports whether the failure may be transient, which is assumed
// unless yt-dlp names a content or post-processing problem.
func (e *ExtractorError) Network() bool {
	for _, marker := range nonNetworkMarkers {
		if strings.Contains(e.Stderr, marker) {
			return false
		}
	}
	return true
}

func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

// isNetworkError treats anything other than a classified yt-dlp failure or
// a cancelled context as network related.
func isNetworkError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var extractorErr *ExtractorError
	if errors.As(err, &extractorErr) {
		return extractorErr.Network()
	}
	return true
}

// Runner invokes yt-dlp and returns its stdout.
type Runner func(ctx context.Context, path string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, path string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ExtractorError{Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}
