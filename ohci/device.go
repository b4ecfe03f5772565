// Package ohci emulates an IEEE 1394 (FireWire) OHCI 1.1 host controller:
// the 2 KiB MMIO register file and DMA descriptor machinery a guest OS
// drives, bridged over a byte-stream transport to a peer instance of this
// same device so two emulated controllers form a minimal two-node bus.
package ohci

import (
	"io"
	"log"
	"sync"

	"github.com/vfirewire/ohci-host/memory"
	"github.com/vfirewire/ohci-host/transport"
)

// Device is one OHCI 1394 host controller. HandleRead, HandleWrite, every
// transport callback, and each AT context tick take d.mu, so the device
// behaves as spec.md §5 requires: each entry point runs to completion
// without interleaving with any other. Close takes no lock.
type Device struct {
	mu sync.Mutex

	regs     [mmioSize / 4]uint32
	phy      [8]byte
	phyPages [8][8]byte

	state       linkState
	otherLinkUp bool
	bid         uint16
	peerBid     uint16
	bidFn       BidFunc
	root        bool

	csr [4]uint32 // BUS_MANAGER_ID, BANDWIDTH_AVAILABLE, CHANNELS_AVAILABLE_HI, CHANNELS_AVAILABLE_LO

	mem       *memory.GuestMemory
	transport transport.Channel
	irq       IRQLine
	irqAsserted bool

	atReq *atContext
	atRsp *atContext

	debug  bool
	logger *log.Logger
}

// Config carries NewDevice's collaborators. Mem and Transport are required;
// IRQ and Logger may be left nil (a nil IRQLine means the device tracks its
// asserted state but never calls out, a nil Logger means Debug is ignored).
type Config struct {
	Mem       *memory.GuestMemory
	Transport transport.Channel
	IRQ       IRQLine
	Logger    *log.Logger
	Debug     bool
	BidSource BidFunc
}

// NewDevice constructs a Device wired to its collaborators, performs a hard
// reset, and registers the transport's open/data/close handlers. The AT
// context goroutines are started immediately; they idle until the guest
// arms a context via HandleWrite.
func NewDevice(cfg Config) *Device {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	d := &Device{
		mem:       cfg.Mem,
		transport: cfg.Transport,
		irq:       cfg.IRQ,
		debug:     cfg.Debug,
		logger:    logger,
		bidFn:     cfg.BidSource,
	}
	d.atReq = newATContext(ctxATRequest)
	d.atRsp = newATContext(ctxATResponse)
	d.startATContext(d.atReq)
	d.startATContext(d.atRsp)

	d.hardReset()

	if d.transport != nil {
		d.transport.SetHandlers(d.onTransportOpen, d.onTransportData, d.onTransportClose)
	}
	return d
}

// Close stops both AT context goroutines and closes the transport. It does
// not clear guest-visible register state; the device is no longer usable
// afterward.
func (d *Device) Close() error {
	d.atReq.stop()
	d.atRsp.stop()
	if d.transport != nil {
		return d.transport.Close()
	}
	return nil
}

// HandleRead services a guest MMIO read at the given byte offset into the
// 2 KiB register window.
func (d *Device) HandleRead(offset uint16) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	off := uint32(offset) &^ 3
	switch {
	case off == offIntEventClear:
		// int_event_masked alias lives at the clear offset, not the set
		// offset: reads back (int_event & int_mask).
		return d.regs[wordIndex(offIntEventSet)] & d.regs[wordIndex(offIntMaskSet)], nil
	case off >= offAsyncContextBase && off < offAsyncContextBase+4*asyncContextStride:
		rel := (off - offAsyncContextBase) % asyncContextStride
		if rel == asyncContextControl+4 {
			// context_control_clear mirrors the same live value on read.
			return d.regs[wordIndex(off-4)], nil
		}
		return d.regs[wordIndex(off)], nil
	default:
		return d.regs[wordIndex(off)], nil
	}
}

// HandleWrite services a guest MMIO write at the given byte offset,
// dispatching set/clear register pairs, the CSR access-port selector
// protocol, the PHY indirect read/write port, and the four AsyncContext
// DMA engines' control registers.
func (d *Device) HandleWrite(offset uint16, data uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	off := uint32(offset) &^ 3

	switch off {
	case offCSRControl:
		d.handleCSRControl(data)
		return nil

	case offHCControlSet:
		d.regs[wordIndex(offHCControlSet)] |= data
		if data&hcControlResetMask != 0 {
			d.hardReset()
		}
		if data&hcControlLinkEnableMask != 0 {
			d.enableLink()
		}
		d.checkIRQ()
		return nil
	case offHCControlClear:
		prev := d.regs[wordIndex(offHCControlSet)]
		d.regs[wordIndex(offHCControlSet)] = prev &^ data
		if data&hcControlLinkEnableMask != 0 && d.state != linkUnplugged {
			d.state = linkDisconnected
			d.otherLinkUp = false
			var msg [4]byte
			putU32LE(msg[:], controlPeerLinkDropped)
			d.transportWrite(msg[:])
		}
		d.checkIRQ()
		return nil

	case offIRMultiChanMaskHiSet, offIRMultiChanMaskLoSet:
		d.regs[wordIndex(off)] |= data
		return nil
	case offIRMultiChanMaskHiClear:
		d.regs[wordIndex(offIRMultiChanMaskHiSet)] &^= data
		return nil
	case offIRMultiChanMaskLoClear:
		d.regs[wordIndex(offIRMultiChanMaskLoSet)] &^= data
		return nil

	case offIntEventSet:
		d.raiseEvent(data)
		return nil
	case offIntEventClear:
		d.regs[wordIndex(offIntEventSet)] &^= data
		d.checkIRQ()
		return nil
	case offIntMaskSet:
		d.regs[wordIndex(offIntMaskSet)] |= data
		d.checkIRQ()
		return nil
	case offIntMaskClear:
		d.regs[wordIndex(offIntMaskSet)] &^= data
		d.checkIRQ()
		return nil

	case offIsoXmitIntEventSet, offIsoRecvIntEventSet:
		d.regs[wordIndex(off)] |= data
		return nil
	case offIsoXmitIntEventClear:
		d.regs[wordIndex(offIsoXmitIntEventSet)] &^= data
		return nil
	case offIsoXmitIntMaskSet:
		d.regs[wordIndex(offIsoXmitIntMaskSet)] |= data
		return nil
	case offIsoXmitIntMaskClear:
		d.regs[wordIndex(offIsoXmitIntMaskSet)] &^= data
		return nil
	case offIsoRecvIntEventClear:
		d.regs[wordIndex(offIsoRecvIntEventSet)] &^= data
		return nil
	case offIsoRecvIntMaskSet:
		d.regs[wordIndex(offIsoRecvIntMaskSet)] |= data
		return nil
	case offIsoRecvIntMaskClear:
		d.regs[wordIndex(offIsoRecvIntMaskSet)] &^= data
		return nil

	case offNodeID:
		cur := d.regs[wordIndex(offNodeID)]
		d.regs[wordIndex(offNodeID)] = (cur &^ nodeIDBusNumber) | (data & nodeIDBusNumber)
		return nil

	case offPhyControl:
		d.handlePhyControl(data)
		return nil

	case offAsyncReqFilterHiSet, offAsyncReqFilterLoSet,
		offPhysicalReqFilterHiSet, offPhysicalReqFilterLoSet:
		d.regs[wordIndex(off)] |= data
		return nil
	case offAsyncReqFilterHiClear:
		d.regs[wordIndex(offAsyncReqFilterHiSet)] &^= data
		return nil
	case offAsyncReqFilterLoClear:
		d.regs[wordIndex(offAsyncReqFilterLoSet)] &^= data
		return nil
	case offPhysicalReqFilterHiClear:
		d.regs[wordIndex(offPhysicalReqFilterHiSet)] &^= data
		return nil
	case offPhysicalReqFilterLoClear:
		d.regs[wordIndex(offPhysicalReqFilterLoSet)] &^= data
		return nil

	case offLinkControlSet:
		d.regs[wordIndex(offLinkControlSet)] |= data
		return nil
	case offLinkControlClear:
		d.regs[wordIndex(offLinkControlSet)] &^= data
		return nil
	}

	if off >= offAsyncContextBase && off < offAsyncContextBase+4*asyncContextStride {
		return d.handleAsyncContextWrite(off, data)
	}

	d.regs[wordIndex(off)] = data
	return nil
}

// handleCSRControl implements the CSR lock-compare-swap port: selector
// bits choose one of the four shadow CSR registers (bus_manager_id,
// bandwidth_available, channels_available_hi/lo); if its current value
// equals csr_compare, it's replaced with csr_data, and the prior value is
// always returned through csr_data. This is the indirect-register protocol
// the original's csr_control write handler implements, generalized to the
// four selectors rather than inlined per-case.
func (d *Device) handleCSRControl(data uint32) {
	const csrSelMask = 0x3
	sel := data & csrSelMask
	compare := d.regs[wordIndex(offCSRCompare)]
	newVal := d.regs[wordIndex(offCSRData)]

	old := d.csr[sel]
	if old == compare {
		d.csr[sel] = newVal
	}
	d.regs[wordIndex(offCSRData)] = old
	d.regs[wordIndex(offCSRControl)] = sel | 0x80000000 // csrDone
}

func (d *Device) handlePhyControl(data uint32) {
	const (
		phyRdReg  = 1 << 15
		phyWrReg  = 1 << 14
		phyRegAddr = 0x0F00
		phyRegData = 0x000000FF
	)
	reg := uint8((data & phyRegAddr) >> 8)
	if data&phyWrReg != 0 {
		d.phyWrite(reg, uint8(data&phyRegData))
	}
	if data&phyRdReg != 0 {
		val := d.phyRead(reg)
		result := (uint32(reg) << 8) | uint32(val) | (1 << 31) // rdDone
		d.regs[wordIndex(offPhyControl)] = result
		d.raiseEvent(intPhyRegRcvd)
		return
	}
	d.regs[wordIndex(offPhyControl)] = data
}

// handleAsyncContextWrite dispatches a write into one of the four
// AsyncContext blocks' control or command_ptr registers, deriving which
// context from the block offset itself (contextIndexFromBase) rather than
// the original's aliasing address mask.
func (d *Device) handleAsyncContextWrite(off uint32, data uint32) error {
	base := off - (off-offAsyncContextBase)%asyncContextStride
	num := contextIndexFromBase(base)
	rel := off - base

	switch rel {
	case asyncContextControl: // context_control_set
		data &= asyncContextControlSetMask
		d.regs[wordIndex(base+asyncContextControl)] |= data
		d.dispatchContextControlChange(num, data, true)
	case asyncContextControl + 4: // context_control_clear
		data &= asyncContextControlClearMask
		d.regs[wordIndex(base+asyncContextControl)] &^= data
		d.dispatchContextControlChange(num, data, false)
	case asyncContextCommand:
		d.regs[wordIndex(base+asyncContextCommand)] = data
	}
	return nil
}

func (d *Device) dispatchContextControlChange(num int, data uint32, set bool) {
	const (
		ctrlRun  = 1 << 15
		ctrlWake = 1 << 12
	)
	switch num {
	case ctxATRequest, ctxATResponse:
		c := d.atReq
		if num == ctxATResponse {
			c = d.atRsp
		}
		if set && data&ctrlRun != 0 {
			d.atRun(c)
			c.arm()
		}
		if set && data&ctrlWake != 0 {
			c.arm()
		}
		if !set && data&ctrlRun != 0 {
			c.arm()
		}
	case ctxARRequest, ctxARResponse:
		if set && data&ctrlRun != 0 {
			d.arRun(num)
		}
		if set && data&ctrlWake != 0 {
			d.arWake(num)
		}
		if !set && data&ctrlRun != 0 {
			d.arStop(num)
		}
	}
}

