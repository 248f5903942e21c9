package ffmpeg

import (
	"errors"
	"fmt"
	"os/exec"
)

var ErrToolNotFound = errors.New("external tool not found")

// Tool resolves a helper executable that is never bundled (yt-dlp,
// pdftoppm): the configured path when set, otherwise a PATH lookup.
func Tool(name, configuredPath string) (string, error) {
	if configuredPath != "" {
		if !fileExists(configuredPath) {
			return "", fmt.Errorf("%w: %s (configured as %s)", ErrToolNotFound, name, configuredPath)
		}
		return configuredPath, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrToolNotFound, name, err)
	}
	return path, nil
}
