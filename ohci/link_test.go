package ohci_test

import (
	"encoding/binary"
	"testing"

	"github.com/vfirewire/ohci-host/memory"
	"github.com/vfirewire/ohci-host/ohci"
)

// connectAsRoot drives a device through the magic handshake and arbitration
// by hand, simulating a peer that always bids higher (so the local device,
// whose bid source must return 0, wins root). It returns right after
// feeding the peer's bid and does not itself check that the device reached
// Connected.
func connectAsRoot(t *testing.T, d *ohci.Device, ch *mockChannel) {
	t.Helper()
	ch.onOpen()
	if err := d.HandleWrite(0x050, 1<<17); err != nil { // hc_control_set: linkEnable
		t.Fatal(err)
	}
	var magic [4]byte
	binary.LittleEndian.PutUint32(magic[:], 0x31333934)
	ch.onData(magic[:])

	var peerBid [4]byte
	binary.LittleEndian.PutUint32(peerBid[:], 0xFFFF) // local bidFn returns 0, peer always loses
	ch.onData(peerBid[:])
}

func TestMagicHandshakeAndArbitrationReachesConnected(t *testing.T) {
	mem := memory.New(1 << 20)
	ch := &mockChannel{}
	d := ohci.NewDevice(ohci.Config{Mem: mem, Transport: ch, BidSource: func() uint16 { return 0 }})
	t.Cleanup(func() { _ = d.Close() })

	connectAsRoot(t, d, ch)

	nodeID, _ := d.HandleRead(0x0E8)
	if nodeID&0x40000000 == 0 {
		t.Fatalf("device with the lower bid should have won root, node_id=%#08x", nodeID)
	}
}

func TestQuadletWriteRequestRoundTrip(t *testing.T) {
	mem := memory.New(1 << 20)
	ch := &mockChannel{}
	d := ohci.NewDevice(ohci.Config{Mem: mem, Transport: ch, BidSource: func() uint16 { return 0 }})
	t.Cleanup(func() { _ = d.Close() })
	connectAsRoot(t, d, ch)

	// quadlet write request: tcode 0x0 at bits [7:4], 16 bytes total.
	pkt := make([]byte, 16)
	pkt[0] = 0x00 // tcode 0 in bits[7:4]
	binary.LittleEndian.PutUint32(pkt[8:12], 0x1000) // destination_offset_low
	binary.LittleEndian.PutUint32(pkt[12:16], 0xCAFEBABE)

	before := len(ch.writes())
	ch.onData(pkt)

	var got [4]byte
	if err := mem.ReadAt(0x1000, got[:]); err != nil {
		t.Fatal(err)
	}
	if v := binary.LittleEndian.Uint32(got[:]); v != 0xCAFEBABE {
		t.Fatalf("guest memory at 0x1000 = %#08x, want 0xCAFEBABE", v)
	}
	if len(ch.writes()) <= before {
		t.Fatalf("expected a response to be written back to the transport")
	}
}

func TestUnknownTCodeLeavesNoResidualState(t *testing.T) {
	mem := memory.New(1 << 20)
	ch := &mockChannel{}
	d := ohci.NewDevice(ohci.Config{Mem: mem, Transport: ch, BidSource: func() uint16 { return 0 }})
	t.Cleanup(func() { _ = d.Close() })
	connectAsRoot(t, d, ch)

	unknown := make([]byte, 12)
	unknown[0] = 0x30 // tcode 0x3, unrecognized
	ch.onData(unknown)

	// A well-formed quadlet write sent right after should still succeed,
	// proving no stuck reassembly state carried over.
	pkt := make([]byte, 16)
	pkt[0] = 0x00
	binary.LittleEndian.PutUint32(pkt[8:12], 0x2000)
	binary.LittleEndian.PutUint32(pkt[12:16], 0x11223344)
	ch.onData(pkt)

	var got [4]byte
	if err := mem.ReadAt(0x2000, got[:]); err != nil {
		t.Fatal(err)
	}
	if v := binary.LittleEndian.Uint32(got[:]); v != 0x11223344 {
		t.Fatalf("packet after an unknown tcode should still parse cleanly, got %#08x", v)
	}
}

func TestPeerLinkDroppedForcesBusReset(t *testing.T) {
	mem := memory.New(1 << 20)
	ch := &mockChannel{}
	d := ohci.NewDevice(ohci.Config{Mem: mem, Transport: ch, BidSource: func() uint16 { return 0 }})
	t.Cleanup(func() { _ = d.Close() })
	connectAsRoot(t, d, ch)

	before, _ := d.HandleRead(0x068)
	genBefore := (before >> 16) & 0xFF

	var token [4]byte
	binary.LittleEndian.PutUint32(token[:], 0xFFFFFFFE)
	ch.onData(token[:])

	after, _ := d.HandleRead(0x068)
	genAfter := (after >> 16) & 0xFF
	if genAfter == genBefore {
		t.Fatalf("peer-link-dropped token should force a bus reset, generation unchanged at %d", genBefore)
	}
}
