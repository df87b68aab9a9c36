package main

import (
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "auctionwatch",
	Short: "Watch the server auction and notify Telegram subscribers",
	Long: `auctionwatch polls the dedicated-server auction feed, announces new
listings to a Telegram channel and notifies subscribers whose filters match.
Without a subcommand it runs the daemon.`,
	SilenceUsage: true,
	RunE:         runDaemon,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./config.json", "path to config file (json or yaml)")
}
