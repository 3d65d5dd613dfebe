package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// configPath is the --config flag value.
var configPath string

var rootCmd = &cobra.Command{
	Use:   "webapi",
	Short: "Asynchronous HTTP service with buffered, streamed and transformed responses",
	Long: `webapi serves a static resource directory and a small web API.

Resources are either read in full before the response starts or streamed
chunk by chunk through a bounded pipeline. POST /web_api uppercases the
request body while it is still arriving.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a config file (yaml, toml or json)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
