package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mgpai22/pressurecooker/internal/ffmpeg"
	"github.com/mgpai22/pressurecooker/internal/proxy"
	"github.com/mgpai22/pressurecooker/internal/youtube"
)

var youtubeCmd = &cobra.Command{
	Use:   "youtube",
	Short: "Inspect and download YouTube videos, playlists and channels",
	Long: `Inspect and download YouTube resources through yt-dlp.

Requests are retried on network failures. With --proxy every attempt goes
through a proxy from the pool; proxies that keep failing are marked broken
for all pressurecooker processes.`,
}

var youtubeInfoCmd = &cobra.Command{
	Use:   "info [url]",
	Short: "Print metadata for a video, playlist or channel",
	Args:  cobra.ExactArgs(1),
	RunE:  runYouTubeInfo,
}

var youtubeDownloadCmd = &cobra.Command{
	Use:   "download [url]",
	Short: "Download videos with their thumbnails",
	Long: `Download a video, or every video of a playlist or channel, as <id>.<ext>
into a directory named after the URL.

Examples:
  pressurecooker youtube download https://www.youtube.com/watch?v=abc123
  pressurecooker youtube download https://www.youtube.com/playlist?list=PL1 -d videos/`,
	Args: cobra.ExactArgs(1),
	RunE: runYouTubeDownload,
}

var youtubeSubtitlesCmd = &cobra.Command{
	Use:   "subtitles [url]",
	Short: "List the manually created subtitle tracks",
	Args:  cobra.ExactArgs(1),
	RunE:  runYouTubeSubtitles,
}

var youtubeCheckCmd = &cobra.Command{
	Use:   "check [url]",
	Short: "Report videos without a Creative Commons licence",
	Args:  cobra.ExactArgs(1),
	RunE:  runYouTubeCheck,
}

func init() {
	rootCmd.AddCommand(youtubeCmd)
	youtubeCmd.AddCommand(youtubeInfoCmd, youtubeDownloadCmd, youtubeSubtitlesCmd, youtubeCheckCmd)

	youtubeCmd.PersistentFlags().
		Bool("proxy", false, "Extract metadata through the proxy pool (default from config)")
	youtubeCmd.PersistentFlags().
		Bool("high-res", false, "Allow up to 720p instead of 480p")

	youtubeDownloadCmd.Flags().
		StringP("dir", "d", "", "Base directory (default the working directory)")
	youtubeDownloadCmd.Flags().
		Bool("download-proxy", false, "Also download the media through the proxy pool")
}

func newYouTubeResource(cmd *cobra.Command, url string) (*youtube.Resource, error) {
	ytdlp, err := ffmpeg.Tool("yt-dlp", cfg.Binaries.YtDlp)
	if err != nil {
		return nil, err
	}

	pool := proxy.NewPool(proxy.OptionsFromConfig(cfg.Proxy, logger))
	opts := youtube.OptionsFromConfig(cfg, pool, logger)
	opts.YtDlpPath = ytdlp
	if cmd.Flags().Changed("proxy") {
		opts.UseProxy, _ = cmd.Flags().GetBool("proxy")
	}
	opts.HighResolution, _ = cmd.Flags().GetBool("high-res")
	return youtube.NewResource(url, opts)
}

func runYouTubeInfo(cmd *cobra.Command, args []string) error {
	res, err := newYouTubeResource(cmd, args[0])
	if err != nil {
		return err
	}
	info, err := res.Info(context.Background())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), info)
}

func runYouTubeDownload(cmd *cobra.Command, args []string) error {
	res, err := newYouTubeResource(cmd, args[0])
	if err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("dir")
	useProxy, _ := cmd.Flags().GetBool("download-proxy")

	info, err := res.Download(context.Background(), dir, useProxy)
	if err != nil {
		return err
	}

	rows := [][]string{}
	for _, v := range info.Videos() {
		rows = append(rows, []string{v.ID, v.Title, v.Filename})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Title", "File"}, rows, nil))
	return nil
}

func runYouTubeSubtitles(cmd *cobra.Command, args []string) error {
	res, err := newYouTubeResource(cmd, args[0])
	if err != nil {
		return err
	}
	info, err := res.Subtitles(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Video", "Language", "Supported", "Formats"},
		subtitleRows(info),
		nil,
	))
	return nil
}

func subtitleRows(info *youtube.Info) [][]string {
	rows := [][]string{}
	for _, v := range info.Videos() {
		langs := make([]string, 0, len(v.Subtitles))
		for lang := range v.Subtitles {
			langs = append(langs, lang)
		}
		sort.Strings(langs)
		for _, lang := range langs {
			exts := make([]string, 0, len(v.Subtitles[lang]))
			for _, track := range v.Subtitles[lang] {
				exts = append(exts, track.Ext)
			}
			rows = append(rows, []string{
				v.ID,
				lang,
				strconv.FormatBool(youtube.IsSupportedSubtitleLanguage(lang)),
				strings.Join(exts, ", "),
			})
		}
	}
	return rows
}

func runYouTubeCheck(cmd *cobra.Command, args []string) error {
	res, err := newYouTubeResource(cmd, args[0])
	if err != nil {
		return err
	}
	warnings, info, err := res.CheckContentIssues(context.Background(), false)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(warnings) == 0 {
		fmt.Fprintln(out, color.GreenString("All %d videos are Creative Commons licensed", len(info.Videos())))
		return nil
	}
	rows := make([][]string, 0, len(warnings))
	for _, w := range warnings {
		rows = append(rows, []string{w.Video.ID, w.Video.Title, color.YellowString(strings.Join(w.Warnings, ", "))})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "Title", "Issues"}, rows, nil))
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
