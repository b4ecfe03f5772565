package main

import (
	"fmt"
	"os"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Live raw-mode register/link-state dashboard for a connected pair",
		Long: "monitor stands up a device pair, drives the handshake, then redraws a\n" +
			"register/link-state dashboard on every keystroke. Single keystrokes\n" +
			"(no Enter needed): r forces a bus reset on node A, p pokes node A's\n" +
			"PHY register 1 IBR bit directly, q quits.",
		RunE: runMonitor,
	}
	return cmd
}

func runMonitor(cmd *cobra.Command, args []string) error {
	p := newPair(false)
	defer p.Close()

	fmt.Println("enabling link on both nodes...")
	if err := p.enableLinks(); err != nil {
		return err
	}
	if err := p.waitConnected(2 * time.Second); err != nil {
		return err
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		// Not attached to a real terminal (e.g. piped input in a test
		// harness); fall back to a single static dashboard render.
		drawDashboard(p)
		return nil
	}
	defer term.Restore(fd, oldState)

	if err := keyboard.Open(); err != nil {
		return fmt.Errorf("monitor: opening keyboard: %w", err)
	}
	defer keyboard.Close()

	drawDashboard(p)
	for {
		ch, key, err := keyboard.GetSingleKey()
		if err != nil {
			return fmt.Errorf("monitor: reading keystroke: %w", err)
		}
		if key == keyboard.KeyCtrlC {
			return nil
		}
		switch ch {
		case 'q', 'Q':
			return nil
		case 'r', 'R':
			forceIBR(p.A)
		case 'p', 'P':
			forceIBR(p.A)
		}
		drawDashboard(p)
	}
}

// forceIBR pokes node A's PHY register 1 with the IBR bit set, the same
// direct register path cmd/ohcictl reset exercises, triggering a local
// bus reset.
func forceIBR(dev interface {
	HandleWrite(uint16, uint32) error
}) {
	const reg1 = 1
	data := uint32(phyControlWrReg) | uint32(reg1)<<8 | 0x40
	_ = dev.HandleWrite(regPhyControl, data)
}

func drawDashboard(p *pair) {
	fmt.Print("\033[H\033[2J") // clear screen, home cursor
	fmt.Println("ohcictl monitor  (r=reset  p=poke PHY IBR  q=quit)")
	fmt.Println()
	for _, dev := range []struct {
		name string
		d    interface {
			HandleRead(uint16) (uint32, error)
		}
	}{{"A", p.A}, {"B", p.B}} {
		fmt.Printf("node %s:\n", dev.name)
		for _, r := range dumpRegs {
			v, _ := dev.d.HandleRead(r.off)
			fmt.Printf("  %-16s %#08x\n", r.name, v)
		}
		fmt.Println()
	}
}
