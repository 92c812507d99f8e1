package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/vswitch/internal/daemon"
	"firestige.xyz/vswitch/internal/log"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <switch_id> <iface>...",
	Short: "Run the switch in foreground",
	Long: `Run a switch over the given interfaces in foreground.

The switch will:
  1. Load global configuration from config file
  2. Load the port table <config_dir>/switch<switch_id>.cfg
  3. Attach every interface with the configured link driver
  4. Start the forwarding loop, the protocol timer, the control socket
     and the metrics server
  5. Handle signals for graceful shutdown (SIGTERM, SIGINT) and reload (SIGHUP)

Examples:
  vswitch run 0 eth1 eth2 eth3
  vswitch run -c /etc/vswitch/vswitch.yml 1 tap0 tap1`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runSwitch(args[0], args[1:]); err != nil {
			log.GetLogger().WithError(err).Error("switch failed")
			exitWithError("switch failed", err)
		}
	},
}

var pidFile string

func init() {
	runCmd.Flags().StringVarP(&pidFile, "pidfile", "p", "",
		"PID file path (default: control.pid_file from config)")
}

func runSwitch(switchID string, ifaces []string) error {
	// Create daemon instance
	d, err := daemon.New(daemon.Options{
		ConfigPath: configFile,
		SwitchID:   switchID,
		Interfaces: ifaces,
		SocketPath: socketPath,
		PIDFile:    pidFile,
	})
	if err != nil {
		return fmt.Errorf("failed to create switch: %w", err)
	}

	// Start all components
	if err := d.Start(); err != nil {
		return fmt.Errorf("failed to start switch: %w", err)
	}

	// Run main loop (blocks until shutdown)
	return d.Run()
}
