package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/vswitch/internal/config"
	"firestige.xyz/vswitch/internal/core"
	"firestige.xyz/vswitch/internal/engine"
	"firestige.xyz/vswitch/internal/porttable"
)

var validateCmd = &cobra.Command{
	Use:   "validate <switch_id> [iface...]",
	Short: "Validate a port table without starting the switch",
	Long: `Parse <config_dir>/switch<switch_id>.cfg and print the port modes.

When interfaces are given they are bound to the table the same way run
would bind them, so a missing or unconfigured interface is reported.

Examples:
  vswitch validate 0
  vswitch validate 0 eth1 eth2 eth3`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(cmd.OutOrStdout(), args[0], args[1:]); err != nil {
			exitWithError("INVALID", err)
		}
	},
}

func runValidate(out io.Writer, switchID string, ifaces []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	tbl, err := porttable.Load(cfg.Switch.ConfigDir, switchID)
	if err != nil {
		return err
	}

	if len(ifaces) > 0 {
		attached := make(map[string]core.PortID, len(ifaces))
		for i, name := range ifaces {
			attached[name] = core.PortID(i)
		}
		if _, err := engine.Bind(tbl, attached); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "VALID: switch %s, priority %d, %d port(s)\n", switchID, tbl.Priority(), tbl.Len())
	table := newTable(out, "PORT", "MODE")
	for _, e := range tbl.Entries() {
		table.Append([]string{e.Name, e.Mode.String()})
	}
	table.Render()

	seen := make(map[core.VLANID]bool)
	var vlans []string
	for _, e := range tbl.Entries() {
		if !e.Mode.Trunk && !seen[e.Mode.VLAN] {
			seen[e.Mode.VLAN] = true
			vlans = append(vlans, strconv.Itoa(int(e.Mode.VLAN)))
		}
	}
	fmt.Fprintf(out, "access VLANs: %s\n", strings.Join(vlans, " "))
	return nil
}
