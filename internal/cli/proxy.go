package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mgpai22/pressurecooker/internal/proxy"
)

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Inspect the proxy pool",
	Long: `Inspect the proxy pool used for YouTube requests.

Proxies come from PROXY_LIST (";" separated) or the proxy.list config key
when set, otherwise from public proxy lists. Broken proxies are recorded in
a cache file shared by all pressurecooker processes.`,
}

var proxyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List working proxies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pool := proxy.NewPool(proxy.OptionsFromConfig(cfg.Proxy, logger))
		proxies, err := pool.Proxies(context.Background(), false)
		if err != nil {
			return err
		}
		for _, p := range proxies {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

var proxyBrokenCmd = &cobra.Command{
	Use:   "broken",
	Short: "List proxies marked broken",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pool := proxy.NewPool(proxy.OptionsFromConfig(cfg.Proxy, logger))
		broken, err := pool.Broken()
		if err != nil {
			return err
		}
		for _, p := range broken {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

var proxyResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget all broken proxies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pool := proxy.NewPool(proxy.OptionsFromConfig(cfg.Proxy, logger))
		if err := pool.ClearCache(); err != nil {
			return err
		}
		logger.Infow("Cleared broken proxy cache", "path", cfg.Proxy.BrokenFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(proxyCmd)
	proxyCmd.AddCommand(proxyListCmd, proxyBrokenCmd, proxyResetCmd)
}
