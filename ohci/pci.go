package ohci

// PCIIdentity carries the PCI configuration-space identity of the OHCI
// 1394 host controller for an external PCI collaborator to register. This
// core does not implement PCI config space or BAR registration itself —
// those are out of scope per spec.md §1 — but a caller wiring this device
// onto a virtual PCI bus needs these values.
type PCIIdentity struct {
	VendorID        uint16
	DeviceID        uint16
	ClassCode       uint32 // Serial Bus Controller / FireWire (OHCI)
	ProgIF          uint8
	InterruptPin    uint8
	MinGrant        uint8
	MMIOWindowBytes uint32
}

// Identity is this device's fixed PCI identity, taken from hcd_pci_init and
// hcd_class_init in the original source: Intel vendor ID, class 0x0C0010
// (Serial Bus Controller, FireWire, OHCI programming interface), interrupt
// pin A, min-gnt 0x08, one 2 KiB MMIO BAR.
var Identity = PCIIdentity{
	VendorID:        0x8086, // PCI_VENDOR_ID_INTEL
	DeviceID:        0x0000, // no official device ID in the original; left for the PCI collaborator to assign
	ClassCode:       0x0C0010,
	ProgIF:          0x10,
	InterruptPin:    1, // INTA#
	MinGrant:        0x08,
	MMIOWindowBytes: mmioSize,
}

// irqLine is the interrupt line identifier this device presents to its
// IRQLine collaborator. A single-function PCI device with one interrupt
// pin has exactly one line to raise or lower.
const irqLine uint8 = 0
