// Package main is the entry point for the vswitch software Ethernet switch.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/vswitch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
