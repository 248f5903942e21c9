package cli

import (
	_ "embed"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mgpai22/pressurecooker/internal/config"
	"github.com/mgpai22/pressurecooker/internal/ffmpeg"
	"github.com/mgpai22/pressurecooker/internal/logging"
)

var (
	verbose    bool
	configPath string
	logger     *logging.Logger
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pressurecooker",
	Short: "Media preprocessing toolkit",
	Long: `Pressurecooker prepares media files for publishing.

It converts subtitles (SRT, WebVTT, SAMI, SCC, TTML/DFXP) to WebVTT,
generates thumbnails, compresses videos and fetches YouTube resources.

Settings are read from the config file, a .env file in the working
directory and the environment, in that order.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.NewLogger(verbose)

		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		ffmpeg.Configure(ffmpeg.BinaryPaths{
			FFmpeg:  cfg.Binaries.FFmpeg,
			FFprobe: cfg.Binaries.FFprobe,
		}, logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

//go:embed license.txt
var licenseText string

var licenseCmd = &cobra.Command{
	Use:   "license",
	Short: "Print the license",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprint(cmd.OutOrStdout(), licenseText)
		return err
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(licenseCmd)

	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		StringVar(&configPath, "config", "", "Config file (default is the user config directory)")
}
