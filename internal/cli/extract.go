package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mgpai22/pressurecooker/internal/video"
)

var extractCmd = &cobra.Command{
	Use:   "extract [video_file]",
	Short: "Extract the audio track of a video",
	Long: `Extract the audio track of a video into its own file, by default a mono
16 kHz wav next to the video.

Examples:
  pressurecooker extract lecture.mp4
  pressurecooker extract lecture.mp4 -o lecture.mp3 -f mp3 -b 96k
  pressurecooker extract lecture.mp4 --sample-rate 44100 --channels 2`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	defaults := video.DefaultExtractAudioOptions()
	extractCmd.Flags().
		StringP("output", "o", "", "Output audio file (default next to the video)")
	extractCmd.Flags().
		StringP("format", "f", defaults.Format, "Audio format ("+strings.Join(video.AudioFormats(), ", ")+")")
	extractCmd.Flags().
		IntP("sample-rate", "r", defaults.SampleRate, "Sample rate in Hz")
	extractCmd.Flags().
		IntP("channels", "c", defaults.Channels, "Number of channels (1 mono, 2 stereo)")
	extractCmd.Flags().
		StringP("bitrate", "b", "", "Bitrate for mp3 and aac (e.g., 96k)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	input := args[0]
	output, _ := cmd.Flags().GetString("output")

	var opts video.ExtractAudioOptions
	opts.Format, _ = cmd.Flags().GetString("format")
	opts.SampleRate, _ = cmd.Flags().GetInt("sample-rate")
	opts.Channels, _ = cmd.Flags().GetInt("channels")
	opts.Bitrate, _ = cmd.Flags().GetString("bitrate")
	if output == "" {
		output = replaceExt(input, "."+opts.Format)
	}

	logger.Infow("Extracting audio",
		"video", input,
		"output", output,
		"format", opts.Format,
	)
	if err := video.NewProcessor(logger).ExtractAudio(context.Background(), input, output, opts); err != nil {
		return err
	}

	absOutput, _ := filepath.Abs(output)
	size := ""
	if stat, err := os.Stat(output); err == nil {
		size = " (" + humanize.Bytes(uint64(stat.Size())) + ")"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Audio extracted: %s%s\n", absOutput, size)
	return nil
}
