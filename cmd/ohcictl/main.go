// Command ohcictl is an operator CLI for standing up a two-node virtual
// IEEE 1394 bus out of a pair of in-process ohci.Device instances, poking
// at their register/PHY state, and forcing bus resets by hand. It exists
// the same way oisee-z80-optimizer's cmd/z80opt exists alongside its
// library packages: a thin cobra-driven wrapper so the core can be
// exercised from a terminal instead of only from tests.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "ohcictl",
		Short: "Stand up and inspect a virtual IEEE 1394 OHCI host controller pair",
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newRegsCmd())
	root.AddCommand(newPhyCmd())
	root.AddCommand(newResetCmd())
	root.AddCommand(newMonitorCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
