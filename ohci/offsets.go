package ohci

// Register offsets into the 2 KiB MMIO window, in bytes. These follow the
// OHCIDeviceRegs struct layout exactly (the bit-exact, authoritative source
// for this device's register file), not the one-word-shifted prose table in
// spec.md §6 — see SPEC_FULL.md §3 for why the two differ.
const (
	mmioSize = 0x800 // 2 KiB

	offVersion    = 0x000
	offGUIDROM    = 0x004
	offATRetries  = 0x008
	offCSRData    = 0x00C // csr_read_data / csr_write_data
	offCSRCompare = 0x010
	offCSRControl = 0x014

	offConfigROMHdr = 0x018
	offBusID        = 0x01C
	offBusOptions   = 0x020
	offGUIDHi       = 0x024
	offGUIDLo       = 0x028

	offConfigROMMap        = 0x034
	offPostedWriteAddrLo   = 0x038
	offPostedWriteAddrHi   = 0x03C
	offVendorID            = 0x040
	offHCControlSet        = 0x050
	offHCControlClear      = 0x054
	offSelfIDBuffer        = 0x064
	offSelfIDCount         = 0x068
	offIRMultiChanMaskHiSet = 0x070
	offIRMultiChanMaskHiClear = 0x074
	offIRMultiChanMaskLoSet   = 0x078
	offIRMultiChanMaskLoClear = 0x07C
	offIntEventSet         = 0x080
	offIntEventClear       = 0x084
	offIntMaskSet          = 0x088
	offIntMaskClear        = 0x08C
	offIsoXmitIntEventSet  = 0x090
	offIsoXmitIntEventClear = 0x094
	offIsoXmitIntMaskSet   = 0x098
	offIsoXmitIntMaskClear = 0x09C
	offIsoRecvIntEventSet  = 0x0A0
	offIsoRecvIntEventClear = 0x0A4
	offIsoRecvIntMaskSet   = 0x0A8
	offIsoRecvIntMaskClear = 0x0AC

	offInitialBandwidthAvail  = 0x0B0
	offInitialChannelsAvailHi = 0x0B4
	offInitialChannelsAvailLo = 0x0B8

	offFairnessControl = 0x0DC
	offLinkControlSet  = 0x0E0
	offLinkControlClear = 0x0E4
	offNodeID          = 0x0E8
	offPhyControl      = 0x0EC
	offCycleTimer      = 0x0F0

	offAsyncReqFilterHiSet    = 0x100
	offAsyncReqFilterHiClear  = 0x104
	offAsyncReqFilterLoSet    = 0x108
	offAsyncReqFilterLoClear  = 0x10C
	offPhysicalReqFilterHiSet   = 0x110
	offPhysicalReqFilterHiClear = 0x114
	offPhysicalReqFilterLoSet   = 0x118
	offPhysicalReqFilterLoClear = 0x11C
	offPhysicalUpperBound       = 0x120

	// AsyncContext blocks: context_control{,_alt}@+0x00, reserved@+0x08,
	// command_ptr@+0x0C, reserved@+0x10..0x1C. Four blocks of 0x20 bytes.
	offAsyncContextBase  = 0x180
	asyncContextStride   = 0x20
	asyncContextControl  = 0x00
	asyncContextCommand  = 0x0C

	ctxATRequest  = 0
	ctxATResponse = 1
	ctxARRequest  = 2
	ctxARResponse = 3

	// context_control_set only lets the guest touch run (15) and wake (12),
	// context_control_clear only run; active, dead, and the event code are engine-owned and
	// must not be disturbed by a guest write, per hcd_mmio_write.
	asyncContextControlSetMask   = 0x9000
	asyncContextControlClearMask = 0x8000
)

// asyncContextBase returns the byte offset of context_control for the
// given context index (one of ctxATRequest, ctxATResponse, ctxARRequest,
// ctxARResponse).
func asyncContextBase(num int) uint32 {
	return offAsyncContextBase + uint32(num)*asyncContextStride
}

// contextIndexFromBase recovers the context index from a register block's
// own base offset. Unlike the original hcd_async_rx_run's
// (addr & 0x180) >> 7, which collapses the AR-request and AR-response
// blocks to the same index, this derives the index directly from which
// block was actually written — see SPEC_FULL.md §3.
func contextIndexFromBase(base uint32) int {
	return int((base - offAsyncContextBase) / asyncContextStride)
}

// wordIndex converts a byte offset to a uint32 word index.
func wordIndex(off uint32) uint32 { return off >> 2 }
