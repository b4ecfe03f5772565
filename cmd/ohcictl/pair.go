package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/vfirewire/ohci-host/memory"
	"github.com/vfirewire/ohci-host/ohci"
	"github.com/vfirewire/ohci-host/transport"
)

// Register offsets an operator cares about. These mirror ohci's internal
// offset table (see ohci/offsets.go) but are re-declared here since that
// table is unexported — the register map is public OHCI 1.1 layout, not
// an implementation detail of this repo's device.
const (
	regHCControlSet   = 0x050
	regHCControlClear = 0x054
	regSelfIDCount    = 0x068
	regIntEventSet    = 0x080
	regIntMaskSet     = 0x088
	regLinkControlSet = 0x0E0
	regNodeID         = 0x0E8
	regPhyControl     = 0x0EC
)

const (
	hcControlLinkEnable = 1 << 17
	nodeIDIDValidBit    = 1 << 31
)

// dumpRegs names the handful of registers worth printing in a quick status
// dump; cmd/ohcictl regs extends this with a raw full-window hex dump.
var dumpRegs = []struct {
	name string
	off  uint16
}{
	{"hc_control", regHCControlSet},
	{"self_id_count", regSelfIDCount},
	{"int_event", regIntEventSet},
	{"int_mask", regIntMaskSet},
	{"link_control", regLinkControlSet},
	{"node_id", regNodeID},
}

// pair wraps two linked devices standing in for the two nodes of a
// virtual bus, plus a muted logger unless -v/--verbose is requested.
type pair struct {
	A, B *ohci.Device
}

func newPair(verbose bool) *pair {
	logger := log.New(io.Discard, "", 0)
	if verbose {
		logger = log.New(os.Stderr, "ohci: ", log.LstdFlags)
	}
	chA, chB := transport.NewLinkedPair()
	memA := memory.New(1 << 20)
	memB := memory.New(1 << 20)
	a := ohci.NewDevice(ohci.Config{Mem: memA, Transport: chA, Logger: logger, Debug: verbose})
	b := ohci.NewDevice(ohci.Config{Mem: memB, Transport: chB, Logger: logger, Debug: verbose})
	return &pair{A: a, B: b}
}

func (p *pair) Close() {
	_ = p.A.Close()
	_ = p.B.Close()
}

// enableLinks sets hc_control's linkEnable bit on both devices, kicking
// off the magic handshake and subsequent arbitration.
func (p *pair) enableLinks() error {
	if err := p.A.HandleWrite(regHCControlSet, hcControlLinkEnable); err != nil {
		return err
	}
	if err := p.B.HandleWrite(regHCControlSet, hcControlLinkEnable); err != nil {
		return err
	}
	return nil
}

// waitConnected polls both devices' node_id ID_VALID bit (set once
// completeSelfID runs, i.e. once the bus reset following a successful
// arbitration has finished) until both report valid or timeout elapses.
func (p *pair) waitConnected(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		na, err := p.A.HandleRead(regNodeID)
		if err != nil {
			return err
		}
		nb, err := p.B.HandleRead(regNodeID)
		if err != nil {
			return err
		}
		if na&nodeIDIDValidBit != 0 && nb&nodeIDIDValidBit != 0 {
			return nil
		}
		time.Sleep(2 * time.Millisecond)
	}
	return fmt.Errorf("timed out waiting for both nodes to reach a valid node_id")
}
