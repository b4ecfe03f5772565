package ohci_test

import (
	"encoding/binary"
	"testing"

	"github.com/vfirewire/ohci-host/memory"
	"github.com/vfirewire/ohci-host/ohci"
)

func putARDescriptor(mem *memory.GuestMemory, addr uint32, resCount uint16, dataAddr, branchAddr uint32) {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint16(b[0:2], resCount) // req_count == res_count: buffer starts empty
	binary.LittleEndian.PutUint16(b[2:4], 0)
	binary.LittleEndian.PutUint32(b[4:8], dataAddr)
	binary.LittleEndian.PutUint32(b[8:12], branchAddr)
	binary.LittleEndian.PutUint16(b[12:14], resCount)
	binary.LittleEndian.PutUint16(b[14:16], 0)
	_ = mem.WriteAt(addr, b)
}

func TestARResponseContextReceivesInboundResponsePacket(t *testing.T) {
	mem := memory.New(1 << 20)
	ch := &mockChannel{}
	d := ohci.NewDevice(ohci.Config{Mem: mem, Transport: ch, BidSource: func() uint16 { return 0 }})
	t.Cleanup(func() { _ = d.Close() })
	connectAsRoot(t, d, ch)

	const descAddr = 0x6000
	const dataAddr = 0x7000
	putARDescriptor(mem, descAddr, 64, dataAddr, 0)

	if err := d.HandleWrite(0x1EC, descAddr|1); err != nil { // AR-response command_ptr
		t.Fatal(err)
	}
	if err := d.HandleWrite(0x1E0, 1<<15); err != nil { // AR-response context_control_set: run
		t.Fatal(err)
	}

	// quadlet read response: tcode 0x6 at bits[7:4], 16 bytes.
	pkt := make([]byte, 16)
	pkt[0] = 0x60
	binary.LittleEndian.PutUint32(pkt[12:16], 0xDEADBEEF)
	ch.onData(pkt)

	var got [16]byte
	if err := mem.ReadAt(dataAddr, got[:]); err != nil {
		t.Fatal(err)
	}
	if string(got[:16]) != string(pkt) {
		t.Fatalf("AR-response payload mismatch: got %x, want %x", got, pkt)
	}
}

func TestARRequestAndARResponseContextsAreIndependent(t *testing.T) {
	mem := memory.New(1 << 20)
	ch := &mockChannel{}
	d := ohci.NewDevice(ohci.Config{Mem: mem, Transport: ch})
	t.Cleanup(func() { _ = d.Close() })

	putARDescriptor(mem, 0x8000, 16, 0x8100, 0)
	putARDescriptor(mem, 0x8200, 16, 0x8300, 0)

	if err := d.HandleWrite(0x18C+0x40, 0x8000|1); err != nil { // AR-request command_ptr (base+0x0C, ctx 2)
		t.Fatal(err)
	}
	if err := d.HandleWrite(0x18C+0x60, 0x8200|1); err != nil { // AR-response command_ptr (ctx 3)
		t.Fatal(err)
	}
	if err := d.HandleWrite(0x180+0x40, 1<<15); err != nil { // AR-request context_control_set (ctx 2)
		t.Fatal(err)
	}

	ctrl, err := d.HandleRead(0x180 + 0x40)
	if err != nil {
		t.Fatal(err)
	}
	if ctrl&(1<<15) == 0 {
		t.Fatalf("AR-request run bit should be set")
	}
	rspCtrl, _ := d.HandleRead(0x180 + 0x60) // AR-response context_control (ctx 3)
	if rspCtrl&(1<<15) != 0 {
		t.Fatalf("AR-response run bit should remain clear: context indices must not alias")
	}
}
