package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	phyControlWrReg  = 1 << 14
	phyControlRdReg  = 1 << 15
	phyControlRdDone = 1 << 31
)

func newPhyCmd() *cobra.Command {
	var node string
	var reg uint8
	var write int
	var read bool

	cmd := &cobra.Command{
		Use:   "phy",
		Short: "Poke a PHY register on a standalone device via phy_control",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPair(false)
			defer p.Close()

			dev := p.A
			if node == "B" {
				dev = p.B
			} else if node != "A" {
				return fmt.Errorf("--node must be A or B, got %q", node)
			}

			if write >= 0 {
				data := uint32(phyControlWrReg) | uint32(reg)<<8 | uint32(write&0xFF)
				if err := dev.HandleWrite(regPhyControl, data); err != nil {
					return err
				}
				fmt.Printf("wrote phy reg%d = %#02x\n", reg, write&0xFF)
			}

			if read {
				data := uint32(phyControlRdReg) | uint32(reg)<<8
				if err := dev.HandleWrite(regPhyControl, data); err != nil {
					return err
				}
				result, err := dev.HandleRead(regPhyControl)
				if err != nil {
					return err
				}
				if result&phyControlRdDone == 0 {
					return fmt.Errorf("phy_control read-done bit not set after read request: %#08x", result)
				}
				fmt.Printf("phy reg%d = %#02x (phy_control=%#08x)\n", reg, result&0xFF, result)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&node, "node", "A", "which node to poke: A or B")
	cmd.Flags().Uint8Var(&reg, "reg", 1, "PHY register address (0-7 base, 8-15 extension page byte)")
	cmd.Flags().IntVar(&write, "write", -1, "byte value to write to the register (omit to skip the write)")
	cmd.Flags().BoolVar(&read, "read", true, "read the register back after any write and print it")
	return cmd
}
