package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running switch",
	Long: `Stop the running switch gracefully.

This command sends switch_shutdown over the control socket. The switch
stops forwarding, closes its ports and removes its socket and PID file.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		err := clientCommand(func(ctx context.Context, c Client) error {
			return runStop(ctx, c, cmd.OutOrStdout())
		})
		if err != nil {
			exitWithError("failed to stop switch", err)
		}
	},
}

func runStop(ctx context.Context, c Client, out io.Writer) error {
	if err := c.SwitchShutdown(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "✓ Switch is shutting down")
	return nil
}
