package ohci

// node_id register field masks.
const (
	nodeIDNodeNumber = 0x0000003F
	nodeIDBusNumber  = 0x0000FFC0
	nodeIDCPS        = 0x08000000
	nodeIDRoot       = 0x40000000
	nodeIDIDValid    = 0x80000000
)

const (
	hcControlResetMask      = 1 << 16
	hcControlLinkEnableMask = 1 << 17
	hcControlLPSMask        = 1 << 19
)

// softReset resets the guest-visible bus configuration registers without
// touching link state or PHY shadow, per OHCI 1.1 §5.7.2/5.11.
func (d *Device) softReset() {
	d.regs[wordIndex(offBusOptions)] = 0x00008002
	hc := d.regs[wordIndex(offHCControlSet)]
	d.regs[wordIndex(offHCControlSet)] = hc & 0x00C00000
}

// hardReset zeroes the entire register file and PHY shadow and re-seeds
// the handful of registers OHCI 1.1 specifies a fixed reset value for.
func (d *Device) hardReset() {
	for i := range d.regs {
		d.regs[i] = 0
	}
	d.regs[wordIndex(offVersion)] = 0x00010010 // OHCI release 1.1
	d.regs[wordIndex(offBusID)] = 0x31333934   // "1394"
	d.regs[wordIndex(offGUIDHi)] = 0x89abcdef
	d.regs[wordIndex(offGUIDLo)] = 0x01234567

	for i := range d.phy {
		d.phy[i] = 0
	}
	for p := range d.phyPages {
		for b := range d.phyPages[p] {
			d.phyPages[p][b] = 0
		}
	}
	d.phy[2] = (d.phy[2] &^ phyReg2NumPorts) | 1
	d.phy[4] |= phyReg4L
	d.phy[4] |= phyReg4C
	d.phyPages[0][0] = 0x08

	d.softReset()
}

// busReset is triggered at the end of every bus reset cause: a PHY
// register write with bit 6 set, an AT PHY packet, a peer-link-dropped
// control token, the completion of arbitration, or a transport close (or an
// open that finds other_link already set). It clears the node's identity bits, bumps the
// self-ID generation, clears the run bit on both AT contexts, optionally
// synthesizes an AR bus-reset packet for a still-running AR-response
// context, and finally regenerates self-IDs.
func (d *Device) busReset() {
	nodeID := d.regs[wordIndex(offNodeID)]
	nodeID = (nodeID &^ nodeIDBusNumber) | (0x3ff << 6)
	nodeID &^= nodeIDCPS
	nodeID &^= nodeIDRoot
	nodeID &^= nodeIDIDValid
	d.regs[wordIndex(offNodeID)] = nodeID

	sidc := d.regs[wordIndex(offSelfIDCount)]
	generation := ((sidc >> 16) & 0xFF) + 1
	sidc = (sidc &^ (0xFF << 16)) | (generation << 16)
	d.regs[wordIndex(offSelfIDCount)] = sidc

	d.raiseEvent(intBusReset)

	if d.state != linkConnected {
		d.root = true
	}

	atReqBase := wordIndex(asyncContextBase(ctxATRequest) + asyncContextControl)
	atRspBase := wordIndex(asyncContextBase(ctxATResponse) + asyncContextControl)
	d.regs[atReqBase] &^= 1 << 15
	d.regs[atRspBase] &^= 1 << 15

	arRspCtrl := d.regs[wordIndex(asyncContextBase(ctxARResponse)+asyncContextControl)]
	if arRspCtrl&(1<<15) != 0 { // run bit set
		packet := []byte{0xe0, 0x00, 0x00, 0x00, 0, 0, 0, 0, 0, 0, 0, 0}
		putU32LE(packet[8:], generation<<16)
		d.deliverAR(ctxARResponse, packet, evtBusReset)
	}

	d.completeSelfID()
}
