package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mgpai22/pressurecooker/internal/ffmpeg"
	"github.com/mgpai22/pressurecooker/internal/thumbnail"
	"github.com/mgpai22/pressurecooker/internal/video"
)

var thumbnailCmd = &cobra.Command{
	Use:   "thumbnail [file]",
	Short: "Generate a 16:9 PNG thumbnail",
	Long: `Generate a 400x225 PNG thumbnail for an image, PDF, zip archive, audio
or video file. The method is chosen from the detected content type:

  image   cropped to 16:9
  pdf     first page rasterised with pdftoppm
  zip     the largest images tiled into a grid
  audio   waveform drawing
  video   frame from the middle of the video

Examples:
  pressurecooker thumbnail lecture.mp4
  pressurecooker thumbnail slides.pdf -o slides.png
  pressurecooker thumbnail podcast.mp3 --colormap BuPu --color k`,
	Args: cobra.ExactArgs(1),
	RunE: runThumbnail,
}

var probeCmd = &cobra.Command{
	Use:   "probe [video_file]",
	Short: "Show video information",
	Args:  cobra.ExactArgs(1),
	RunE:  runProbe,
}

var compressCmd = &cobra.Command{
	Use:   "compress [video_file]",
	Short: "Compress a video for low bandwidth delivery",
	Long: `Re-encode a video as baseline H.264 with mono AAC audio, scaled down to
the configured maximum height.

Examples:
  pressurecooker compress lecture.mp4
  pressurecooker compress lecture.mp4 -o small.mp4 --max-height 360 --crf 28`,
	Args: cobra.ExactArgs(1),
	RunE: runCompress,
}

func init() {
	rootCmd.AddCommand(thumbnailCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(compressCmd)

	thumbnailCmd.Flags().
		StringP("output", "o", "", "Output PNG (default next to the input)")
	thumbnailCmd.Flags().
		String("colormap", "cool", "Waveform background colormap (cool, BuPu)")
	thumbnailCmd.Flags().
		String("color", "w", "Waveform line colour (w, k, r, g, b, c, m, y or #rrggbb)")

	compressCmd.Flags().
		StringP("output", "o", "", "Output file (default <name>_compressed.mp4)")
	compressCmd.Flags().
		Int("max-height", 0, "Maximum output height (default from config)")
	compressCmd.Flags().
		Int("max-width", 0, "Maximum output width; overrides --max-height")
	compressCmd.Flags().
		Int("crf", 0, "Constant rate factor (default from config)")
	compressCmd.Flags().
		Bool("overwrite", false, "Replace an existing output file")
}

func runThumbnail(cmd *cobra.Command, args []string) error {
	input := args[0]
	output, _ := cmd.Flags().GetString("output")
	colormap, _ := cmd.Flags().GetString("colormap")
	lineColor, _ := cmd.Flags().GetString("color")
	if output == "" {
		output = replaceExt(input, "_thumbnail.png")
	}

	gen := thumbnail.NewGenerator(logger)
	gen.Video = video.NewProcessor(logger)
	gen.Waveform = thumbnail.WaveformOptions{Colormap: colormap, Color: lineColor}
	if path, err := ffmpeg.Tool("pdftoppm", cfg.Binaries.Pdftoppm); err == nil {
		gen.PdftoppmPath = path
	} else {
		logger.Debugw("PDF thumbnails unavailable", "error", err)
	}

	if err := gen.Generate(context.Background(), input, output); err != nil {
		return err
	}
	absOutput, _ := filepath.Abs(output)
	fmt.Fprintf(cmd.OutOrStdout(), "Thumbnail created: %s\n", absOutput)
	return nil
}

func runProbe(cmd *cobra.Command, args []string) error {
	input := args[0]
	stat, err := os.Stat(input)
	if err != nil {
		return err
	}

	ctx := context.Background()
	processor := video.NewProcessor(logger)
	info, err := processor.GetInfo(ctx, input)
	if err != nil {
		return err
	}

	audio := "no"
	if info.HasAudio {
		audio = "yes"
	}
	rows := [][]string{
		{"File", input},
		{"Size", humanize.Bytes(uint64(stat.Size()))},
		{"Duration", info.Duration.Round(10 * time.Millisecond).String()},
		{"Resolution", fmt.Sprintf("%dx%d", info.Width, info.Height)},
		{"Frame rate", fmt.Sprintf("%.2f fps", info.FrameRate)},
		{"Codec", info.Codec},
		{"Audio", audio},
		{"Preset", string(video.PresetForHeight(info.Height))},
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Property", "Value"}, rows, nil))
	return nil
}

func runCompress(cmd *cobra.Command, args []string) error {
	input := args[0]
	output, _ := cmd.Flags().GetString("output")
	maxHeight, _ := cmd.Flags().GetInt("max-height")
	maxWidth, _ := cmd.Flags().GetInt("max-width")
	crf, _ := cmd.Flags().GetInt("crf")
	overwrite, _ := cmd.Flags().GetBool("overwrite")

	opts := video.CompressOptions{
		MaxWidth:  maxWidth,
		MaxHeight: maxHeight,
		CRF:       crf,
		Overwrite: overwrite,
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = cfg.Video.MaxHeight
	}
	if opts.CRF <= 0 {
		opts.CRF = cfg.Video.CRF
	}
	if output == "" {
		output = replaceExt(input, "_compressed.mp4")
	}

	processor := video.NewProcessor(logger)
	if err := processor.Compress(context.Background(), input, output, opts); err != nil {
		return err
	}

	before, errBefore := os.Stat(input)
	after, errAfter := os.Stat(output)
	absOutput, _ := filepath.Abs(output)
	fmt.Fprintf(cmd.OutOrStdout(), "Video compressed: %s\n", absOutput)
	if errBefore == nil && errAfter == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "  Size: %s -> %s\n",
			humanize.Bytes(uint64(before.Size())),
			humanize.Bytes(uint64(after.Size())),
		)
	}
	return nil
}

// replaceExt swaps the extension of path for suffix.
func replaceExt(path, suffix string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + suffix
}
