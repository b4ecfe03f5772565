package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newResetCmd() *cobra.Command {
	var node string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Force a bus reset on one node of a connected pair via a PHY IBR write",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPair(false)
			defer p.Close()

			if err := p.enableLinks(); err != nil {
				return err
			}
			if err := p.waitConnected(2 * time.Second); err != nil {
				return err
			}

			dev := p.A
			if node == "B" {
				dev = p.B
			} else if node != "A" {
				return fmt.Errorf("--node must be A or B, got %q", node)
			}

			before, _ := dev.HandleRead(regSelfIDCount)
			genBefore := (before >> 16) & 0xFF

			// phy_control write request for reg1 with bit 6 (IBR) set.
			const reg1 = 1
			data := uint32(phyControlWrReg) | uint32(reg1)<<8 | 0x40
			if err := dev.HandleWrite(regPhyControl, data); err != nil {
				return err
			}

			after, _ := dev.HandleRead(regSelfIDCount)
			genAfter := (after >> 16) & 0xFF
			event, _ := dev.HandleRead(regIntEventSet)

			fmt.Printf("node %s: self_id generation %d -> %d, int_event=%#08x\n", node, genBefore, genAfter, event)
			return nil
		},
	}
	cmd.Flags().StringVar(&node, "node", "A", "which node to force a bus reset on: A or B")
	return cmd
}
