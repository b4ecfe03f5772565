package ohci_test

import "testing"

func TestPhyControlReadRoundTrip(t *testing.T) {
	d, _, _ := newTestDevice(t)
	// phy_control write: rdReg | reg<<8, reg=2 (num-ports register)
	if err := d.HandleWrite(0x0EC, (1<<15)|(2<<8)); err != nil {
		t.Fatal(err)
	}
	v, err := d.HandleRead(0x0EC)
	if err != nil {
		t.Fatal(err)
	}
	if v&(1<<31) == 0 {
		t.Fatalf("phy_control rdDone bit not set after read, got %#x", v)
	}
	if uint8(v&0xFF) == 0 {
		t.Fatalf("phy reg2 shadow value unexpectedly zero after hard reset")
	}
}

func TestPhyIBRBitTriggersBusReset(t *testing.T) {
	d, _, _ := newTestDevice(t)
	before, _ := d.HandleRead(0x068) // self_id_count
	genBefore := (before >> 16) & 0xFF

	// phy_control write: wrReg | reg<<8 | data, reg=1, data has bit6 (IBR) set
	if err := d.HandleWrite(0x0EC, (1<<14)|(1<<8)|0x40); err != nil {
		t.Fatal(err)
	}

	after, _ := d.HandleRead(0x068)
	genAfter := (after >> 16) & 0xFF
	if genAfter == genBefore {
		t.Fatalf("self_id_count.generation should advance after IBR-triggered bus reset: before=%d after=%d", genBefore, genAfter)
	}
}

func TestPhyReg0IsReadOnly(t *testing.T) {
	d, _, _ := newTestDevice(t)
	if err := d.HandleWrite(0x0EC, (1<<14)|(0<<8)|0xFF); err != nil {
		t.Fatal(err)
	}
	if err := d.HandleWrite(0x0EC, (1<<15)|(0<<8)); err != nil {
		t.Fatal(err)
	}
	v, _ := d.HandleRead(0x0EC)
	if uint8(v&0xFF) == 0xFF {
		t.Fatalf("phy reg0 accepted a write, want read-only")
	}
}
