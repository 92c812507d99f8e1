package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show switch status",
	Long: `Query the running switch for its overall status.

Shows: switch and bridge id, uptime, ports with their modes, forwarding
table size and frame counters.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		err := clientCommand(func(ctx context.Context, c Client) error {
			return runStatus(ctx, c, cmd.OutOrStdout(), statusOutput)
		})
		if err != nil {
			exitWithError("switch is not running or socket is inaccessible", err)
		}
	},
}

var statusOutput string

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", outputTable, "output format: table|json|yaml")
}

func runStatus(ctx context.Context, c Client, out io.Writer, format string) error {
	st, err := c.SwitchStatus(ctx)
	if err != nil {
		return err
	}
	return render(out, format, st, func(w io.Writer) {
		fmt.Fprintf(w, "switch %s  bridge %s  driver %s  protocol %s\n", st.SwitchID, st.BridgeID, st.Driver, st.Protocol)
		fmt.Fprintf(w, "uptime %s  strict_vlan_unicast %t  fdb %d entries (aging %s)\n\n",
			time.Duration(st.UptimeSec)*time.Second, st.StrictVLANUnicast, st.FDBEntries, st.AgingTime)

		ports := newTable(w, "ID", "PORT", "MODE")
		for _, p := range st.Ports {
			ports.Append([]string{strconv.Itoa(p.ID), p.Name, p.Mode})
		}
		ports.Render()
		fmt.Fprintln(w)

		s := st.Stats
		counters := newTable(w, "RECEIVED", "TRANSMITTED", "DROPPED", "UNICAST", "FLOODED", "FILTERED", "TX ERRORS", "MOVES")
		counters.Append([]string{
			strconv.FormatUint(s.Received, 10),
			strconv.FormatUint(s.Transmitted, 10),
			strconv.FormatUint(s.Dropped, 10),
			strconv.FormatUint(s.Unicast, 10),
			strconv.FormatUint(s.Flooded, 10),
			strconv.FormatUint(s.Filtered, 10),
			strconv.FormatUint(s.TxErrors, 10),
			strconv.FormatUint(s.FDBMoves, 10),
		})
		counters.Render()
	})
}
