package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newRegsCmd() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "regs",
		Short: "Bring up a device pair, run the handshake, and dump the register file",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPair(false)
			defer p.Close()

			if err := p.enableLinks(); err != nil {
				return err
			}
			if err := p.waitConnected(2 * time.Second); err != nil {
				return err
			}

			for _, dev := range []struct {
				name string
				d    interface {
					HandleRead(uint16) (uint32, error)
				}
			}{{"A", p.A}, {"B", p.B}} {
				fmt.Printf("--- node %s ---\n", dev.name)
				if full {
					for off := uint16(0); off < 0x800; off += 4 {
						v, err := dev.d.HandleRead(off)
						if err != nil {
							return err
						}
						if v != 0 {
							fmt.Printf("  %#05x = %#08x\n", off, v)
						}
					}
					continue
				}
				for _, r := range dumpRegs {
					v, err := dev.d.HandleRead(r.off)
					if err != nil {
						return err
					}
					fmt.Printf("  %-16s %#08x\n", r.name, v)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "dump every non-zero word in the 2 KiB register window")
	return cmd
}
