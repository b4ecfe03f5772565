package ohci

// HCDArDB descriptor flag subfields.
const (
	arFlagsBranch    = 0x000C
	arFlagsInterrupt = 0x0030
	arFlagsKey       = 0x0700
	arFlagsStatus    = 0x0800
	arFlagsCmd       = 0xF000
)

const arDescriptorSize = 16 // req_count, flags, data_address, branch_address, res_count, transfer_status

type arDescriptor struct {
	reqCount       uint16
	flags          uint16
	dataAddress    uint32
	branchAddress  uint32
	resCount       uint16
	transferStatus uint16
}

func decodeARDescriptor(b []byte) arDescriptor {
	return arDescriptor{
		reqCount:       getU16LE(b[0:2]),
		flags:          getU16LE(b[2:4]),
		dataAddress:    getU32LE(b[4:8]),
		branchAddress:  getU32LE(b[8:12]),
		resCount:       getU16LE(b[12:14]),
		transferStatus: getU16LE(b[14:16]),
	}
}

func encodeARDescriptor(d arDescriptor) []byte {
	b := make([]byte, arDescriptorSize)
	putU16LE(b[0:2], d.reqCount)
	putU16LE(b[2:4], d.flags)
	putU32LE(b[4:8], d.dataAddress)
	putU32LE(b[8:12], d.branchAddress)
	putU16LE(b[12:14], d.resCount)
	putU16LE(b[14:16], d.transferStatus)
	return b
}

func (d *Device) arControlWord(num int) uint32 {
	return d.regs[wordIndex(asyncContextBase(num) + asyncContextControl)]
}

func (d *Device) arSetActive(num int) {
	d.regs[wordIndex(asyncContextBase(num)+asyncContextControl)] |= 1 << 10
}

func (d *Device) arClearActive(num int) {
	d.regs[wordIndex(asyncContextBase(num)+asyncContextControl)] &^= 1 << 10
}

func (d *Device) arIsActive(num int) bool { return d.arControlWord(num)&(1<<10) != 0 }

func (d *Device) arCommandPtr(num int) uint32 {
	return d.regs[wordIndex(asyncContextBase(num)+asyncContextCommand)]
}

func (d *Device) arSetCommandPtr(num int, v uint32) {
	d.regs[wordIndex(asyncContextBase(num)+asyncContextCommand)] = v
}

func (d *Device) arSetEventCode(num int, code uint32) {
	idx := wordIndex(asyncContextBase(num) + asyncContextControl)
	d.regs[idx] = (d.regs[idx] &^ 0x1F) | (code & 0x1F)
}

// arRun marks context num active when the guest sets its run bit, per
// spec.md §4.1's AR context_control_set handling.
func (d *Device) arRun(num int) {
	d.arSetActive(num)
}

// arStop clears context num's active bit when the guest clears its run bit.
func (d *Device) arStop(num int) {
	d.arClearActive(num)
}

// arWake re-reads the current descriptor and, if its branch is non-zero,
// activates the context and advances command_ptr to it — mirroring
// hcd_async_rx_wake.
func (d *Device) arWake(num int) {
	if d.arIsActive(num) {
		return
	}
	var buf [arDescriptorSize]byte
	if err := d.mem.ReadAt(d.arCommandPtr(num)&^0xF, buf[:]); err != nil {
		return
	}
	desc := decodeARDescriptor(buf[:])
	if desc.branchAddress&0xF != 0 {
		d.arSetActive(num)
		d.arSetCommandPtr(num, desc.branchAddress)
	}
}

// deliverAR is the AR engine's packet-arrival path, equivalent to
// hcd_async_rx_rsp_packet generalized to either AR context. It consumes
// buf against the descriptor chain rooted at context num's command_ptr:
// copy payload bytes into the descriptor's data buffer (spilling across
// descriptors as res_count hits zero), then append a 4-byte trailer
// carrying the low 16 bits of context_control in its upper half. If the chain runs out of
// descriptors (branch Z=0) before the trailer fits, the remainder is
// dropped and the context's event code is set to EVT_OVERRUN instead of
// the caller-supplied code — the resolution of spec.md §9's open question.
func (d *Device) deliverAR(num int, buf []byte, eventCode uint32) {
	if len(buf) == 0 {
		return
	}
	d.arSetEventCode(num, eventCode)

	readDescAt := func(cmdPtr uint32) (arDescriptor, uint32, bool) {
		addr := cmdPtr &^ 0xF
		var raw [arDescriptorSize]byte
		if err := d.mem.ReadAt(addr, raw[:]); err != nil {
			return arDescriptor{}, 0, false
		}
		return decodeARDescriptor(raw[:]), addr, true
	}

	desc, descAddr, ok := readDescAt(d.arCommandPtr(num))
	if !ok {
		return
	}
	dataAddr := desc.dataAddress + uint32(desc.reqCount) - uint32(desc.resCount)

	writeBack := func() {
		_ = d.mem.WriteAt(descAddr, encodeARDescriptor(desc))
	}
	advance := func() bool {
		writeBack()
		if desc.branchAddress&0xF == 0 {
			d.arClearActive(num)
			return false
		}
		d.arSetCommandPtr(num, desc.branchAddress)
		next, addr, ok := readDescAt(desc.branchAddress)
		if !ok {
			return false
		}
		desc, descAddr = next, addr
		dataAddr = desc.dataAddress + uint32(desc.reqCount) - uint32(desc.resCount)
		return true
	}

	state := 0
	overran := false
	for state != 3 {
		desc.transferStatus = uint16(d.arControlWord(num) & 0xFFFF)
		if desc.resCount == 0 {
			if !advance() {
				overran = true
				break
			}
		}

		switch state {
		case 0:
			writeSize := int(desc.resCount)
			if writeSize > len(buf) {
				writeSize = len(buf)
			}
			if err := d.mem.WriteAt(dataAddr, buf[:writeSize]); err != nil {
				overran = true
				state = 3
				break
			}
			desc.resCount -= uint16(writeSize)
			dataAddr += uint32(writeSize)
			buf = buf[writeSize:]
			if len(buf) == 0 {
				state = 1
			}
		case 1:
			if desc.resCount < 4 {
				if !advance() {
					overran = true
					state = 3
					break
				}
				continue
			}
			status := d.arControlWord(num) << 16
			desc.transferStatus = uint16(d.arControlWord(num) & 0xFFFF)
			var trailer [4]byte
			putU32LE(trailer[:], status)
			if err := d.mem.WriteAt(dataAddr, trailer[:]); err != nil {
				overran = true
				state = 3
				break
			}
			desc.resCount -= 4
			dataAddr += 4
			writeBack()
			state = 2
		case 2:
			state = 3
		}
	}
	if overran {
		d.arSetEventCode(num, evtOverrun)
	}
	d.raiseEvent(1 << 5) // rspKT, per hcd_async_rx_rsp_packet
}
