package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload configuration",
	Long: `Ask the running switch to re-read its config file. Log settings apply
immediately; other changes need a restart.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		err := clientCommand(func(ctx context.Context, c Client) error {
			return runReload(ctx, c, cmd.OutOrStdout())
		})
		if err != nil {
			exitWithError("reload failed", err)
		}
	},
}

func runReload(ctx context.Context, client Client, out io.Writer) error {
	if err := client.ConfigReload(ctx); err != nil {
		return fmt.Errorf("failed to reload: %w", err)
	}
	fmt.Fprintln(out, "✓ Configuration reloaded successfully")
	return nil
}
