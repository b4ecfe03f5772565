package ohci

import (
	"encoding/binary"
	"time"
)

// linkState is this device's point of view of the two-node virtual bus
// formed with its transport peer, per spec.md §2/§9.
type linkState int

const (
	linkUnplugged linkState = iota
	linkAwaitingMagic
	linkDisconnected
	linkArbitration1
	linkArbitration2
	linkConnected
)

// Control tokens carried out-of-band on the wire, distinct from any valid
// 1394 packet quadlet because no tcode occupies byte 0 == 0xFF entirely.
const controlPeerLinkDropped = 0xFFFFFFFE

const magicHandshake = 0x31333934 // "1394", sent once hc_control's link-enable bit goes up

// BidFunc produces this node's arbitration bid. Tests can supply one via
// Config.BidSource to get a deterministic sequence instead of the
// wall-clock XOR-fold the production path uses by default — spec.md §9's
// design note.
type BidFunc func() uint16

func defaultBidSource() uint16 {
	now := time.Now().UnixNano()
	return uint16(now^(now>>16)) ^ uint16(now>>32)
}

// onTransportOpen fires when the underlying channel's peer becomes
// reachable (a socket connects, a serial line opens). The device does not
// yet know whether the peer is itself mid-handshake, so it starts from
// Disconnected and waits for the guest to enable its link — unless the
// guest's link is already enabled, in which case it sends the magic right
// away through enableLink (hcd_chr_event's CHR_EVENT_OPENED path). No
// separate link-up word is sent; the magic itself serves as the link-up
// greeting. The bus reset below runs only if other_link is already set when
// the transport opens; onTransportClose clears other_link, so a transport
// reopened after a close goes through the magic handshake and arbitration
// again.
func (d *Device) onTransportOpen() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != linkUnplugged {
		return
	}
	d.state = linkDisconnected
	if d.regs[wordIndex(offHCControlSet)]&hcControlLinkEnableMask == 0 {
		return
	}
	d.enableLink()
	if d.otherLinkUp {
		d.busReset()
	}
}

// onTransportClose fires when the peer goes away entirely (not the same as
// a peer-link-dropped control token, which means the peer is still present
// but its guest disabled its link). Mirrors hcd_chr_event's
// CHR_EVENT_CLOSED: the PHY reports a port event (PEI on reg5), the device
// raises INT_REG_ACCESS_FAIL since the guest can no longer reach the far
// side, phy page 0 byte 0 resets to its power-on value, and the link
// forces a bus reset to flush any in-flight state.
func (d *Device) onTransportClose() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = linkUnplugged
	d.otherLinkUp = false
	d.phy[5] |= phyReg5PEI
	d.phyPages[0][0] = 0x08
	d.raiseEvent(intRegAccessFail)
	d.busReset()
}

// enableLink is called when the guest sets hc_control's linkEnable bit. It
// sends the magic handshake token and moves to AwaitingMagic; if the peer's
// token already arrived (AwaitingMagic -> Arbitration1 transition happens in
// onTransportData), arbitration begins immediately instead.
func (d *Device) enableLink() {
	if d.state == linkUnplugged {
		return
	}
	if d.transport == nil {
		return
	}
	var msg [4]byte
	binary.LittleEndian.PutUint32(msg[:], magicHandshake)
	_ = d.transport.Write(msg[:])
	if d.state == linkDisconnected {
		d.state = linkAwaitingMagic
	} else if d.state == linkAwaitingMagic {
		d.beginArbitration()
	}
}

func (d *Device) beginArbitration() {
	d.state = linkArbitration1
	d.sendBid()
}

func (d *Device) sendBid() {
	d.bid = d.bids()
	var msg [4]byte
	binary.LittleEndian.PutUint32(msg[:], uint32(d.bid))
	if d.transport != nil {
		_ = d.transport.Write(msg[:])
	}
}

func (d *Device) bids() uint16 {
	if d.bidFn != nil {
		return d.bidFn()
	}
	return defaultBidSource()
}

// onTransportData is the single entry point for every inbound byte
// sequence from the peer. It dispatches by current link state: magic
// handshake recognition, arbitration bid exchange including the tie-break
// re-arbitration, the peer-link-dropped control token, and — once
// Connected — full 1394 packet parsing by tcode.
func (d *Device) onTransportData(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(data) == 4 && binary.LittleEndian.Uint32(data) == controlPeerLinkDropped {
		d.otherLinkUp = false
		if d.state == linkConnected {
			d.state = linkDisconnected
			d.busReset()
		}
		return
	}

	switch d.state {
	case linkDisconnected:
		if len(data) == 4 && binary.LittleEndian.Uint32(data) == magicHandshake {
			d.otherLinkUp = true
			d.state = linkAwaitingMagic
		}
	case linkAwaitingMagic:
		if len(data) == 4 && binary.LittleEndian.Uint32(data) == magicHandshake {
			d.otherLinkUp = true
			d.beginArbitration()
		}
	case linkArbitration1:
		if len(data) != 4 {
			return
		}
		peerBid := uint16(binary.LittleEndian.Uint32(data))
		d.peerBid = peerBid
		d.state = linkArbitration2
		d.resolveArbitration()
	case linkArbitration2:
		if len(data) != 4 {
			return
		}
		d.peerBid = uint16(binary.LittleEndian.Uint32(data))
		d.resolveArbitration()
	case linkConnected:
		d.handlePacket(data)
	}
}

// resolveArbitration compares bids once both sides have exchanged one.
// Lower bid wins root. A tie forces a fresh bid from both sides.
func (d *Device) resolveArbitration() {
	if d.bid == d.peerBid {
		d.sendBid()
		d.state = linkArbitration1
		return
	}
	d.root = d.bid < d.peerBid
	d.state = linkConnected
	d.busReset()
}

func (d *Device) transportWrite(data []byte) {
	if d.transport == nil {
		return
	}
	_ = d.transport.Write(data)
}

// handlePacket parses one inbound 1394 packet while Connected, dispatching
// on its tcode. Request tcodes are serviced synchronously against guest
// memory with an immediate reply written back to the transport; response
// tcodes are handed to the AR-response context via deliverAR. An
// unrecognized tcode consumes exactly the 12-byte no-data header and
// leaves no residual parse state — the fix for the original's stuck-buffer
// bug on an unknown tcode (spec.md §8 scenario 6).
func (d *Device) handlePacket(data []byte) {
	if len(data) < 4 {
		return
	}
	tcode := (getU32LE(data[0:4]) & packetFlagsTCode) >> 4

	switch tcode {
	case 0x0: // quadlet write request
		if len(data) < reqQuadletPacketSize {
			return
		}
		req := decodeReqQuadlet(data)
		addr := uint32(req.destinationOffsetLow)
		var v [4]byte
		putU32LE(v[:], req.data)
		rcode := uint8(respComplete)
		if err := d.mem.WriteAt(addr, v[:]); err != nil {
			rcode = respAddressError
		}
		d.sendNoDataResponse(req.reqNoDataPacket, respWriteQuadlet, rcode)
	case 0x1: // block write request
		if len(data) < reqBlockPacketSize {
			return
		}
		req := decodeReqBlock(data)
		payload := data[reqBlockPacketSize:]
		if int(req.dataLength) > len(payload) {
			return
		}
		addr := uint32(req.destinationOffsetLow)
		rcode := uint8(respComplete)
		if err := d.mem.WriteAt(addr, payload[:req.dataLength]); err != nil {
			rcode = respAddressError
		}
		d.sendNoDataResponse(reqNoDataPacket{flags: req.flags, destinationID: req.destinationID}, respWriteBlock, rcode)
	case 0x2: // quadlet write response
		d.deliverAR(ctxARResponse, data, ackComplete)
	case 0x4: // quadlet read request
		if len(data) < reqNoDataPacketSize {
			return
		}
		req := decodeReqNoData(data)
		addr := uint32(req.destinationOffsetLow)
		var v [4]byte
		rcode := uint8(respComplete)
		if err := d.mem.ReadAt(addr, v[:]); err != nil {
			rcode = respAddressError
		}
		resp := rspQuadletPacket{
			rspNoDataPacket: d.responseHeader(req, respReadQuadlet, rcode),
			data:            getU32LE(v[:]),
		}
		d.transportWrite(encodeRspQuadlet(resp))
	case 0x5: // block read request
		if len(data) < reqBlockPacketSize {
			return
		}
		req := decodeReqBlock(data)
		addr := uint32(req.destinationOffsetLow)
		payload := make([]byte, req.dataLength)
		rcode := uint8(respComplete)
		if err := d.mem.ReadAt(addr, payload); err != nil {
			rcode = respAddressError
		}
		resp := rspBlockPacket{
			rspNoDataPacket: d.responseHeader(reqNoDataPacket{flags: req.flags, destinationID: req.destinationID}, respReadBlock, rcode),
			dataLength:      req.dataLength,
		}
		out := encodeRspBlock(resp)
		out = append(out, payload...)
		d.transportWrite(out)
	case 0x6: // quadlet read response
		d.deliverAR(ctxARResponse, data, ackComplete)
	case 0x7: // block read response
		d.deliverAR(ctxARResponse, data, ackComplete)
	default:
		// Unrecognized tcode: consume the header, no interrupt, no
		// residual state for the next packet.
		_ = data[:min(len(data), reqNoDataPacketSize)]
	}
}

// responseHeader builds the common fields of a reply packet from the
// request it answers: the response tcode replacing the request's, the
// request's retry/tLabel bits carried through unchanged, destination_id
// inverted in its low bit (the two-node bus's only addressing distinction),
// and source_id set to the request's own (un-inverted) destination_id —
// mirroring hcd_chr_request_quadlet_write/_block_write/_quadlet_read/
// _block_read's reply construction.
func (d *Device) responseHeader(req reqNoDataPacket, respTCode uint16, rcode uint8) rspNoDataPacket {
	rtAndLabel := uint16(req.flags) & (packetFlagsRT | packetFlagsTLabel)
	return rspNoDataPacket{
		flags:         (respTCode << 4) | rtAndLabel,
		destinationID: req.destinationID ^ 1,
		rCode:         rcode,
		sourceID:      req.destinationID,
	}
}

func (d *Device) sendNoDataResponse(req reqNoDataPacket, respTCode uint16, rcode uint8) {
	resp := d.responseHeader(req, respTCode, rcode)
	d.transportWrite(encodeRspNoData(resp))
}
