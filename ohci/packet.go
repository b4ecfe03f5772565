package ohci

import "encoding/binary"

// Event, ack, and response codes from hcd-ohci.h. Named the same as the
// original since they're 1394/OHCI wire constants, not this repo's
// invention.
const (
	evtNoStatus  = 0x00
	evtUnderrun  = 0x04
	evtOverrun   = 0x05
	evtDataRead  = 0x07
	evtDataWrite = 0x08
	evtBusReset  = 0x09
	evtTCodeErr  = 0x0B
	evtUnknown   = 0x0E
	evtFlushed   = 0x0F
	ackComplete  = 0x11
	ackPending   = 0x12

	respComplete      = 0x00
	respConflictError = 0x40
	respDataError     = 0x50
	respTypeError     = 0x60
	respAddressError  = 0x70
)

// Packet header flags layout (first quadlet of every 1394 packet this
// device frames or parses).
const (
	packetFlagsTCode    = 0x000000F0
	packetFlagsRT       = 0x00000300
	packetFlagsTLabel   = 0x0000FC00
	packetFlagsSpeed    = 0x00070000
	packetFlagsSrcBusID = 0x00800000
)

// Response tcodes this device frames when replying to a request, placed in
// bits [7:4] of the reply's flags field — the write-quadlet and
// write-block requests share one no-data response tcode.
const (
	respWriteQuadlet = 0x2
	respWriteBlock   = 0x2
	respReadQuadlet  = 0x6
	respReadBlock    = 0x7
)

func putU32LE(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func getU32LE(b []byte) uint32    { return binary.LittleEndian.Uint32(b) }
func putU16LE(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }
func getU16LE(b []byte) uint16    { return binary.LittleEndian.Uint16(b) }

// reqNoDataPacket is OHCIReqNoDataPacket: a 12-byte request header with no
// payload (used for quadlet/block read requests).
type reqNoDataPacket struct {
	flags                 uint32
	destinationOffsetHigh uint16
	destinationID          uint16
	destinationOffsetLow  uint32
}

const reqNoDataPacketSize = 12

func decodeReqNoData(b []byte) reqNoDataPacket {
	return reqNoDataPacket{
		flags:                 getU32LE(b[0:4]),
		destinationOffsetHigh: getU16LE(b[4:6]),
		destinationID:         getU16LE(b[6:8]),
		destinationOffsetLow:  getU32LE(b[8:12]),
	}
}

// reqQuadletPacket is OHCIReqQuadletPacket: a quadlet-write request, 16
// bytes: the 12-byte no-data header plus a 4-byte data quadlet.
type reqQuadletPacket struct {
	reqNoDataPacket
	data uint32
}

const reqQuadletPacketSize = 16

func decodeReqQuadlet(b []byte) reqQuadletPacket {
	return reqQuadletPacket{
		reqNoDataPacket: decodeReqNoData(b),
		data:            getU32LE(b[12:16]),
	}
}

// reqBlockPacket is OHCIReqBlockPacket: a block-write/read request header,
// 16 bytes, followed by dataLength bytes of payload for a write.
type reqBlockPacket struct {
	flags                 uint32
	destinationOffsetHigh uint16
	destinationID          uint16
	destinationOffsetLow  uint32
	dataLength            uint16
}

const reqBlockPacketSize = 16

func decodeReqBlock(b []byte) reqBlockPacket {
	return reqBlockPacket{
		flags:                 getU32LE(b[0:4]),
		destinationOffsetHigh: getU16LE(b[4:6]),
		destinationID:         getU16LE(b[6:8]),
		destinationOffsetLow:  getU32LE(b[8:12]),
		dataLength:            getU16LE(b[14:16]),
	}
}

// rspNoDataPacket is OHCIRspNoDataPacket: an 8-byte no-data response.
type rspNoDataPacket struct {
	flags         uint16
	destinationID uint16
	rCode         uint8
	sourceID      uint16
}

const rspNoDataPacketSize = 8

func encodeRspNoData(p rspNoDataPacket) []byte {
	b := make([]byte, rspNoDataPacketSize)
	putU16LE(b[0:2], p.flags)
	putU16LE(b[2:4], p.destinationID)
	b[5] = p.rCode
	putU16LE(b[6:8], p.sourceID)
	return b
}

func decodeRspNoData(b []byte) rspNoDataPacket {
	return rspNoDataPacket{
		flags:         getU16LE(b[0:2]),
		destinationID: getU16LE(b[2:4]),
		rCode:         b[5],
		sourceID:      getU16LE(b[6:8]),
	}
}

// rspQuadletPacket is OHCIRspQuadletPacket: a 16-byte quadlet-read response.
type rspQuadletPacket struct {
	rspNoDataPacket
	data uint32
}

const rspQuadletPacketSize = 16

func encodeRspQuadlet(p rspQuadletPacket) []byte {
	b := encodeRspNoData(p.rspNoDataPacket)
	b = append(b, make([]byte, 8)...)
	putU32LE(b[12:16], p.data)
	return b
}

func decodeRspQuadlet(b []byte) rspQuadletPacket {
	return rspQuadletPacket{
		rspNoDataPacket: decodeRspNoData(b[0:8]),
		data:            getU32LE(b[12:16]),
	}
}

// rspBlockPacket is OHCIRspBlockPacket: a 16-byte block-read response
// header, followed by dataLength bytes of payload.
type rspBlockPacket struct {
	rspNoDataPacket
	dataLength uint16
}

const rspBlockPacketSize = 16

func encodeRspBlock(p rspBlockPacket) []byte {
	b := encodeRspNoData(p.rspNoDataPacket)
	b = append(b, make([]byte, 8)...)
	putU16LE(b[14:16], p.dataLength)
	return b
}

func decodeRspBlock(b []byte) rspBlockPacket {
	return rspBlockPacket{
		rspNoDataPacket: decodeRspNoData(b[0:8]),
		dataLength:      getU16LE(b[14:16]),
	}
}
