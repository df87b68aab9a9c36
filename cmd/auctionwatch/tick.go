package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"auctionwatch/internal/app"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run the fetch/diff/persist/notify pipeline once",
	Long: `tick runs a single pipeline pass and exits. Useful from cron or to
seed the snapshot before the daemon starts.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		a, err := app.New(ctx, cfgPath, app.Options{})
		if err != nil {
			return err
		}
		defer func() { _ = a.Stop(context.Background(), app.StopCommand) }()

		rep, err := a.Tick(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "result=%s listings=%d new=%d sent=%d failed=%d took=%s\n",
			rep.Result, rep.Listings, len(rep.NewListings), rep.Dispatch.Sent(), rep.Dispatch.Failed(), rep.Took)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <chat-id>",
	Short: "Show what /search would answer for a chat, without using its quota",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chatID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat id %q", args[0])
		}
		a, err := app.New(cmd.Context(), cfgPath, app.Options{Offline: true})
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		text, err := a.Preview(cmd.Context(), chatID)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "auctionwatch %s (%s)\n", version, commit)
	},
}

func init() {
	rootCmd.AddCommand(tickCmd, searchCmd, versionCmd)
}
