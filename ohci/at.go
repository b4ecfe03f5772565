package ohci

import "sync"

// HCDAtDB descriptor flag subfields.
const (
	atFlagsBranch    = 0x000C
	atFlagsInterrupt = 0x0030
	atFlagsPing      = 0x0080
	atFlagsKey       = 0x0700
	atFlagsCmd       = 0xF000

	atKeyNonImmediate = 0x0000
	atKeyImmediate    = 0x0200
	atCmdMore         = 0x0000
	atCmdLast         = 0x1000
)

const atDescriptorSize = 16 // req_count, flags, data_address, branch_address, timestamp, transfer_status

type atDescriptor struct {
	reqCount       uint16
	flags          uint16
	dataAddress    uint32
	branchAddress  uint32
	timestamp      uint16
	transferStatus uint16
}

func decodeATDescriptor(b []byte) atDescriptor {
	return atDescriptor{
		reqCount:       getU16LE(b[0:2]),
		flags:          getU16LE(b[2:4]),
		dataAddress:    getU32LE(b[4:8]),
		branchAddress:  getU32LE(b[8:12]),
		timestamp:      getU16LE(b[12:14]),
		transferStatus: getU16LE(b[14:16]),
	}
}

func encodeATDescriptor(d atDescriptor) []byte {
	b := make([]byte, atDescriptorSize)
	putU16LE(b[0:2], d.reqCount)
	putU16LE(b[2:4], d.flags)
	putU32LE(b[4:8], d.dataAddress)
	putU32LE(b[8:12], d.branchAddress)
	putU16LE(b[12:14], d.timestamp)
	putU16LE(b[14:16], d.transferStatus)
	return b
}

// atContext is one of the two AT (asynchronous transmit) DMA engines:
// request or response. It walks a descriptor chain rooted at command_ptr,
// one descriptor transition per "tick", where a tick is modeled as a
// worker goroutine woken by a buffered, coalesced kick channel — the
// zero-delay re-entrant timer from spec.md §4.4/§5, built the way
// core_engine/devices/ne2000.go's receivePacketsLoop models its own
// polling goroutine rather than a real OS timer.
type atContext struct {
	num     int
	address uint32 // current descriptor address being processed
	kick    chan struct{}
	quit    chan struct{}
	once    sync.Once
}

func newATContext(num int) *atContext {
	return &atContext{num: num, kick: make(chan struct{}, 1), quit: make(chan struct{})}
}

func (d *Device) startATContext(c *atContext) {
	go func() {
		for {
			select {
			case <-c.kick:
				d.mu.Lock()
				d.atStep(c)
				d.mu.Unlock()
			case <-c.quit:
				return
			}
		}
	}()
}

func (c *atContext) arm() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

func (c *atContext) stop() {
	c.once.Do(func() { close(c.quit) })
}

func (d *Device) atControlWord(c *atContext) uint32 {
	return d.regs[wordIndex(asyncContextBase(c.num) + asyncContextControl)]
}

func (d *Device) setATControlBits(c *atContext, bits uint32) {
	idx := wordIndex(asyncContextBase(c.num) + asyncContextControl)
	d.regs[idx] |= bits
}

func (d *Device) clearATControlBits(c *atContext, bits uint32) {
	idx := wordIndex(asyncContextBase(c.num) + asyncContextControl)
	d.regs[idx] &^= bits
}

func (d *Device) atIsActive(c *atContext) bool { return d.atControlWord(c)&(1<<10) != 0 }
func (d *Device) atIsDead(c *atContext) bool   { return d.atControlWord(c)&(1<<11) != 0 }
func (d *Device) atIsWake(c *atContext) bool   { return d.atControlWord(c)&(1<<12) != 0 }
func (d *Device) atIsRun(c *atContext) bool    { return d.atControlWord(c)&(1<<15) != 0 }

func (d *Device) atCommandPtr(c *atContext) uint32 {
	return d.regs[wordIndex(asyncContextBase(c.num)+asyncContextCommand)]
}

func (d *Device) setATCommandPtr(c *atContext, v uint32) {
	d.regs[wordIndex(asyncContextBase(c.num)+asyncContextCommand)] = v
}

func (d *Device) setATEventCode(c *atContext, code uint32) {
	idx := wordIndex(asyncContextBase(c.num) + asyncContextControl)
	d.regs[idx] = (d.regs[idx] &^ 0x1F) | (code & 0x1F)
}

// atRun transitions a context into active with its current command_ptr as
// the read address, mirroring hcd_at_run.
func (d *Device) atRun(c *atContext) {
	c.address = d.atCommandPtr(c) &^ 0xF
	d.setATControlBits(c, 1<<10)
}

// atStep performs one iteration of the AT engine, equivalent to a single
// firing of the original's zero-delay timer callback. When the engine has
// more work (an OUTPUT_MORE advance or a followed branch), it re-arms
// itself for another tick with c.arm().
func (d *Device) atStep(c *atContext) {
	if d.atIsDead(c) || !d.atIsRun(c) {
		d.clearATControlBits(c, (1<<12)|(1<<10))
		return
	}
	if !d.atIsActive(c) {
		if !d.atIsWake(c) {
			return
		}
		d.clearATControlBits(c, 1<<12)
		var buf [atDescriptorSize]byte
		if err := d.mem.ReadAt(c.address, buf[:]); err != nil {
			return
		}
		desc := decodeATDescriptor(buf[:])
		if desc.branchAddress&0xF == 0 {
			return
		}
		d.setATCommandPtr(c, desc.branchAddress)
		d.atRun(c)
	}
	d.clearATControlBits(c, 1<<12)

	var buf [atDescriptorSize]byte
	if err := d.mem.ReadAt(c.address, buf[:]); err != nil {
		return
	}
	desc := decodeATDescriptor(buf[:])
	cmd := uint32(desc.flags) & atFlagsCmd
	key := uint32(desc.flags) & atFlagsKey

	response := uint32(evtTCodeErr)
	recognized := true
	switch {
	case cmd == atCmdMore && key == atKeyNonImmediate:
	case cmd == atCmdMore && key == atKeyImmediate:
	case cmd == atCmdLast && key == atKeyNonImmediate:
	case cmd == atCmdLast && key == atKeyImmediate:
	default:
		recognized = false
	}
	if !recognized {
		return
	}

	switch key {
	case atKeyNonImmediate:
		payload := make([]byte, desc.reqCount)
		if err := d.mem.ReadAt(desc.dataAddress, payload); err == nil {
			d.transportWrite(payload)
			response = ackComplete
		}
	case atKeyImmediate:
		data := make([]byte, desc.reqCount)
		if err := d.mem.ReadAt(c.address+atDescriptorSize, data); err == nil && len(data) >= 4 {
			tcode := getU32LE(data[0:4]) & packetFlagsTCode
			switch tcode {
			case 0x00: // quadlet write request
				d.transportWrite(data)
				response = ackPending
			case 0x10: // block write request
				d.transportWrite(data)
				response = ackPending
			case 0x40: // quadlet read request
				d.transportWrite(data)
				response = ackPending
			case 0x50: // block read request
				d.transportWrite(data)
				response = ackPending
			case 0xe0: // PHY packet
				response = ackComplete
				d.busReset()
			}
		}
	}

	if cmd == atCmdMore {
		if key == atKeyImmediate {
			c.address += atDescriptorSize + 16
		} else {
			c.address += atDescriptorSize
		}
		c.arm()
		return
	}

	// OUTPUT_LAST
	if desc.flags&atFlagsInterrupt == atFlagsInterrupt {
		d.raiseEvent(1 << uint(c.num))
	}
	d.setATEventCode(c, response)
	desc.transferStatus = uint16(d.atControlWord(c) & 0xFFFF)
	if err := d.mem.WriteAt(c.address, encodeATDescriptor(desc)); err != nil && d.debug {
		d.logger.Printf("ohci: AT descriptor write-back failed: %v", err)
	}
	if desc.branchAddress&0xF == 0 {
		d.clearATControlBits(c, 1<<10)
		d.checkIRQ()
		return
	}
	d.setATCommandPtr(c, desc.branchAddress)
	d.atRun(c)
	d.checkIRQ()
	c.arm()
}
