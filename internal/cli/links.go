package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mgpai22/pressurecooker/internal/htmllinks"
)

var linksCmd = &cobra.Command{
	Use:   "links [html_file]",
	Short: "List the resources an HTML page links to",
	Long: `List the links of a, audio, img, link and script elements in an HTML
file. With --local only files that would need to be packaged with the page
are shown.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		local, _ := cmd.Flags().GetBool("local")
		doc, err := htmllinks.Open(args[0])
		if err != nil {
			return err
		}
		links := doc.Links()
		if local {
			links = doc.LocalFiles()
		}
		for _, link := range links {
			fmt.Fprintln(cmd.OutOrStdout(), link)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(linksCmd)
	linksCmd.Flags().Bool("local", false, "Only list relative links to local files")
}
