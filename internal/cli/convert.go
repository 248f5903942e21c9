package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mgpai22/pressurecooker/internal/subtitles"
)

var convertCmd = &cobra.Command{
	Use:   "convert [subtitle_file...]",
	Short: "Convert subtitle files to WebVTT",
	Long: `Convert one or more subtitle files to WebVTT.

The input format is detected from the content; use --format to restrict
detection to one reader. Formats without language tags (SRT, WebVTT, SCC)
are assigned the --language code. Self-describing formats (SAMI, TTML/DFXP)
must contain the requested language.

Each input is written next to itself with a .vtt extension unless
--output or --output-dir is given.

Examples:
  pressurecooker convert lecture.srt -l en
  pressurecooker convert episode.smi -l es --output-dir out/
  pressurecooker convert captions.scc -l fr -o captions_fr.vtt
  pressurecooker convert *.srt -l ar --encoding windows-1256 --concurrency 8`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

var languagesCmd = &cobra.Command{
	Use:   "languages [subtitle_file]",
	Short: "List the languages in a subtitle file",
	Long: `List the languages found in a subtitle file along with a guess of the
natural language of each track. Formats without language tags report
"unknown".`,
	Args: cobra.ExactArgs(1),
	RunE: runLanguages,
}

func init() {
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(languagesCmd)

	convertCmd.Flags().
		StringP("language", "l", "", "Language code to convert (e.g., en, es, pt-BR)")
	convertCmd.Flags().
		StringP("format", "f", "", "Input format hint (webvtt, srt, sami, scc, ttml, dfxp)")
	convertCmd.Flags().
		String("encoding", "", "Input text encoding (default utf-8)")
	convertCmd.Flags().
		StringP("output", "o", "", "Output file (single input only)")
	convertCmd.Flags().
		String("output-dir", "", "Directory for converted files")
	convertCmd.Flags().
		Int("concurrency", 0, "Number of parallel conversions (default from config)")

	languagesCmd.Flags().
		StringP("format", "f", "", "Input format hint")
	languagesCmd.Flags().
		String("encoding", "", "Input text encoding (default utf-8)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	lang, _ := cmd.Flags().GetString("language")
	format, _ := cmd.Flags().GetString("format")
	encoding, _ := cmd.Flags().GetString("encoding")
	output, _ := cmd.Flags().GetString("output")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	concurrency, _ := cmd.Flags().GetInt("concurrency")

	if lang == "" {
		lang = cfg.Subtitles.Language
	}
	if encoding == "" {
		encoding = cfg.Subtitles.Encoding
	}
	if concurrency <= 0 {
		concurrency = cfg.Subtitles.Concurrency
	}

	jobs, err := buildJobs(args, lang, output, outputDir, subtitles.Options{
		Format:   format,
		Encoding: encoding,
	})
	if err != nil {
		return err
	}

	logger.Infow("Converting subtitles",
		"files", len(jobs),
		"language", lang,
		"concurrency", concurrency,
	)

	results := subtitles.ConvertBatch(context.Background(), jobs, concurrency, logger)
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if ext, ok := extensionMismatch(r.Job.Input, r.Result.Format); ok {
			logger.Warnw("File extension does not match its content",
				"input", r.Job.Input,
				"extension", ext,
				"detected", r.Result.Format,
			)
		}
	}
	failed := printConvertResults(cmd.OutOrStdout(), results)
	if failed > 0 {
		return fmt.Errorf("%d of %d conversions failed", failed, len(results))
	}
	return nil
}

// buildJobs validates the flags up front so that a bad hint or a missing
// language fails before any file is touched.
func buildJobs(inputs []string, lang, output, outputDir string, opts subtitles.Options) ([]subtitles.Job, error) {
	if lang == "" {
		return nil, fmt.Errorf("a language is required: use --language or set subtitles.language in the config")
	}
	if opts.Format != "" {
		if _, err := subtitles.ParseFormat(opts.Format); err != nil {
			return nil, err
		}
	}
	if output != "" && len(inputs) > 1 {
		return nil, fmt.Errorf("--output can only be used with a single input file")
	}
	if output != "" && outputDir != "" {
		return nil, fmt.Errorf("--output and --output-dir are mutually exclusive")
	}

	jobs := make([]subtitles.Job, 0, len(inputs))
	for _, in := range inputs {
		out := output
		if out == "" {
			out = subtitles.OutputPath(in, outputDir)
		}
		jobs = append(jobs, subtitles.Job{
			Input:    in,
			Output:   out,
			Language: lang,
			Options:  opts,
		})
	}
	return jobs, nil
}

// printConvertResults writes a summary table and returns the failure count.
func printConvertResults(w io.Writer, results []subtitles.JobResult) int {
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()

	failed := 0
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			failed++
			rows = append(rows, []string{r.Job.Input, bad("failed"), "", "", describeConvertError(r.Err)})
			continue
		}
		rows = append(rows, []string{
			r.Job.Input,
			ok("ok"),
			string(r.Result.Format),
			strconv.Itoa(r.Result.Cues),
			r.Job.Output,
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Input", "Status", "Format", "Cues", "Output"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	return failed
}

// extensionMismatch reports the format named by the file extension when it
// disagrees with the detected one. TTML and DFXP count as the same family.
func extensionMismatch(path string, detected subtitles.Format) (subtitles.Format, bool) {
	ext, ok := subtitles.FormatFromExtension(path)
	if !ok || ext == detected {
		return "", false
	}
	if xmlFormat(ext) && xmlFormat(detected) {
		return "", false
	}
	return ext, true
}

func xmlFormat(f subtitles.Format) bool {
	return f == subtitles.FormatTTML || f == subtitles.FormatDFXP
}

func describeConvertError(err error) string {
	var langErr *subtitles.LanguageError
	switch {
	case errors.As(err, &langErr):
		return langErr.Error()
	case errors.Is(err, os.ErrNotExist):
		return "file not found"
	case errors.Is(err, subtitles.ErrInvalidFormat):
		return "unrecognised or unreadable subtitle file"
	case errors.Is(err, subtitles.ErrEncoding):
		return "invalid text encoding (try --encoding)"
	default:
		return err.Error()
	}
}

func runLanguages(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	encoding, _ := cmd.Flags().GetString("encoding")
	if encoding == "" {
		encoding = cfg.Subtitles.Encoding
	}

	readers, err := subtitles.ReadersFor(format)
	if err != nil {
		return err
	}
	text, err := subtitles.ReadText(args[0], encoding)
	if err != nil {
		return err
	}

	conv := subtitles.NewConverter(readers, text)
	set, err := conv.CaptionSet()
	if err != nil {
		return err
	}

	rows := [][]string{}
	for _, code := range set.Languages() {
		guess := "-"
		if g, ok := subtitles.GuessLanguage(set, code); ok {
			guess = fmt.Sprintf("%s (%.0f%%)", g.Code, g.Confidence*100)
			if !g.Reliable {
				guess += " ?"
			}
		}
		rows = append(rows, []string{code, strconv.Itoa(len(set.Captions(code))), guess})
	}

	out := cmd.OutOrStdout()
	if ext, ok := extensionMismatch(args[0], conv.Format()); ok {
		fmt.Fprintf(out, "Format: %s (extension suggests %s)\n", conv.Format(), ext)
	} else {
		fmt.Fprintf(out, "Format: %s\n", conv.Format())
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Language", "Cues", "Detected"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft},
	))
	return nil
}
