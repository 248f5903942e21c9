package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	ffmpeggo "github.com/u2takey/ffmpeg-go"
)

// lines of ffmpeg stderr kept in error messages
const stderrTail = 5

// Run executes an ffmpeg-go stream with the resolved ffmpeg binary. The
// process is killed when ctx is cancelled.
func Run(ctx context.Context, stream *ffmpeggo.Stream) error {
	ffmpegPath, err := FFmpegPath()
	if err != nil {
		return err
	}
	compiled := stream.SetFfmpegPath(ffmpegPath).Compile()
	return runCommand(ctx, compiled.Args)
}

// Probe runs ffprobe on input and returns its JSON report with format and
// stream sections.
func Probe(ctx context.Context, input string) ([]byte, error) {
	ffprobePath, err := FFprobePath()
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		input,
	)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w%s", err, formatTail(stderr.String()))
	}
	return out.Bytes(), nil
}

func runCommand(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("empty ffmpeg command")
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("ffmpeg failed: %w%s", err, formatTail(stderr.String()))
	}
	return nil
}

func formatTail(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > stderrTail {
		lines = lines[len(lines)-stderrTail:]
	}
	tail := strings.TrimSpace(strings.Join(lines, "\n"))
	if tail == "" {
		return ""
	}
	return ": " + tail
}
