package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusWait bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether this device may report now",
	RunE:  runStatus,
}

var deviceIDCmd = &cobra.Command{
	Use:   "device-id",
	Short: "Print this device's persistent id",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), sess.identity.ID())
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWait, "wait", "w", false, "Count down until reporting is allowed")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	sess, err := openSession()
	if err != nil {
		return err
	}

	if sess.limiter.CanSubmit() {
		fmt.Fprintln(out, "Ready to report.")
		return nil
	}
	if !statusWait {
		fmt.Fprintf(out, "Please wait %d seconds before reporting again.\n", sess.limiter.SecondsUntilNextAllowed())
		return nil
	}

	for remaining := range sess.limiter.Countdown(ctx, time.Second) {
		if remaining == 0 {
			fmt.Fprintln(out, "Ready to report.")
			return nil
		}
		fmt.Fprintf(out, "Please wait %d seconds...\n", remaining)
	}
	return ctx.Err()
}
