package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Broker text-generation requests to upstream LLM providers",
	Long: `bridge accepts generation requests over HTTP or through a filesystem mailbox,
checks each provider's sliding-window rate limit and forwards the request upstream.

Configuration is read from config.yaml (., ./config), the file given with --config
or CONFIG_FILE, and environment variables such as PORT, ARMA_PROFILE_PATH and
CLAUDE_API_KEY.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newSubmitCommand())
	rootCmd.AddCommand(newProvidersCommand())
	rootCmd.AddCommand(newVersionCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
