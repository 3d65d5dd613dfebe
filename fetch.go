package main

import (
	"fmt"

	"github.com/freekieb7/webapi/config"
	"github.com/freekieb7/webapi/http"
	"github.com/freekieb7/webapi/service"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Post the lowercase sample to a running web API and print the result",
	Args:  cobra.NoArgs,
	RunE:  runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	d := config.DefaultConfig()
	fetchCmd.Flags().String("upstream.url", d.Upstream.URL, "Web API to call")
	fetchCmd.Flags().Duration("upstream.timeout", d.Upstream.Timeout, "Request timeout")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}

	out, err := service.Fetch(cmd.Context(), http.NewClient(cfg.Upstream.Timeout), cfg.Upstream.URL)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
