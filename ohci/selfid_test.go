package ohci_test

import (
	"encoding/binary"
	"testing"

	"github.com/vfirewire/ohci-host/memory"
	"github.com/vfirewire/ohci-host/ohci"
)

func TestSelfIDStreamWrittenWhenRcvSelfIDEnabled(t *testing.T) {
	mem := memory.New(1 << 20)
	ch := &mockChannel{}
	d := ohci.NewDevice(ohci.Config{Mem: mem, Transport: ch})
	t.Cleanup(func() { _ = d.Close() })

	const selfIDBufAddr = 0x2000
	if err := d.HandleWrite(0x064, selfIDBufAddr); err != nil { // self_id_buffer
		t.Fatal(err)
	}
	if err := d.HandleWrite(0x0E0, 0x00000200); err != nil { // link_control_set: RcvSelfID
		t.Fatal(err)
	}

	// Trigger a bus reset via PHY IBR.
	if err := d.HandleWrite(0x0EC, (1<<14)|(1<<8)|0x40); err != nil {
		t.Fatal(err)
	}

	var hdr [4]byte
	if err := mem.ReadAt(selfIDBufAddr, hdr[:]); err != nil {
		t.Fatal(err)
	}
	header := binary.LittleEndian.Uint32(hdr[:])
	if header&0x1 != 1 {
		t.Fatalf("self-ID generation header low bit should be 1, got %#x", header)
	}

	var own [8]byte
	if err := mem.ReadAt(selfIDBufAddr+4, own[:]); err != nil {
		t.Fatal(err)
	}
	q0 := binary.LittleEndian.Uint32(own[0:4])
	q1 := binary.LittleEndian.Uint32(own[4:8])
	if q0 != ^q1 {
		t.Fatalf("self-ID quadlet pair should be complement-paired, got %#08x / %#08x", q0, q1)
	}

	sidc, _ := d.HandleRead(0x068)
	loWord := sidc & 0xFFFF
	if loWord != 12 { // header quadlet + one self-ID quadlet pair, no peer connected
		t.Fatalf("self_id_count low word = %d, want 12", loWord)
	}
}
