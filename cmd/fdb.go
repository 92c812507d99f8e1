package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

var fdbCmd = &cobra.Command{
	Use:   "fdb",
	Short: "Show or flush the forwarding table",
	Long: `Query the running switch for its learned addresses.

Examples:
  vswitch fdb
  vswitch fdb --port eth1 -o json
  vswitch fdb --flush`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		err := clientCommand(func(ctx context.Context, c Client) error {
			if fdbFlush {
				return runFDBFlush(ctx, c, cmd.OutOrStdout())
			}
			return runFDBShow(ctx, c, cmd.OutOrStdout(), fdbPort, fdbOutput)
		})
		if err != nil {
			exitWithError("fdb failed", err)
		}
	},
}

var (
	fdbFlush  bool
	fdbPort   string
	fdbOutput string
)

func init() {
	fdbCmd.Flags().BoolVar(&fdbFlush, "flush", false, "remove every learned address")
	fdbCmd.Flags().StringVar(&fdbPort, "port", "", "only show addresses learned on this port")
	fdbCmd.Flags().StringVarP(&fdbOutput, "output", "o", outputTable, "output format: table|json|yaml")
}

func runFDBShow(ctx context.Context, c Client, out io.Writer, port, format string) error {
	r, err := c.FDBShow(ctx, port)
	if err != nil {
		return err
	}
	return render(out, format, r, func(w io.Writer) {
		table := newTable(w, "MAC", "PORT", "ID", "EXPIRES IN")
		for _, e := range r.Entries {
			expires := e.ExpiresIn
			if expires == "" {
				expires = "-"
			}
			table.Append([]string{e.MAC, e.Port, strconv.Itoa(e.PortID), expires})
		}
		table.Render()
		fmt.Fprintf(w, "%d entries, aging %s\n", r.Count, r.AgingTime)
	})
}

func runFDBFlush(ctx context.Context, c Client, out io.Writer) error {
	r, err := c.FDBFlush(ctx)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	fmt.Fprintf(out, "Flushed %d entries\n", r.Flushed)
	return nil
}
