package ohci_test

import "testing"

func TestBusResetClearsNodeIdentity(t *testing.T) {
	d, _, _ := newTestDevice(t)
	// Write ROOT/ID_VALID/CPS and node number 1 into node_id. Only the
	// bus-number field is guest-writable, so this leaves bus_number at 0
	// and the other bits as they were.
	if err := d.HandleWrite(0x0E8, 0xC8000001); err != nil {
		t.Fatal(err)
	}
	// IBR via phy_control triggers busReset, which clears node_id's
	// identity bits and ends with self-ID completion re-deriving them.
	if err := d.HandleWrite(0x0EC, (1<<14)|(1<<8)|0x40); err != nil {
		t.Fatal(err)
	}
	nodeID, _ := d.HandleRead(0x0E8)
	if nodeID&0x80000000 == 0 {
		t.Fatalf("ID_VALID should be set again once self-ID completes after the bus reset, got node_id=%#x", nodeID)
	}
	if nodeID&0x0000FFC0 != 0x3ff<<6 {
		t.Fatalf("bus_number should reset to 0x3ff, got node_id=%#x", nodeID)
	}
}

func TestBusResetIncrementsGenerationExactlyOnce(t *testing.T) {
	d, _, _ := newTestDevice(t)
	before, _ := d.HandleRead(0x068)
	g0 := (before >> 16) & 0xFF

	if err := d.HandleWrite(0x0EC, (1<<14)|(1<<8)|0x40); err != nil {
		t.Fatal(err)
	}
	after, _ := d.HandleRead(0x068)
	g1 := (after >> 16) & 0xFF
	if g1 != (g0+1)&0xFF {
		t.Fatalf("generation should increment by exactly 1, got %d -> %d", g0, g1)
	}
}

func TestSelfIDCompleteRaisesBothInterruptBits(t *testing.T) {
	d, _, irq := newTestDevice(t)
	if err := d.HandleWrite(0x088, (1<<31)|0x00018000); err != nil { // unmask selfIDComplete bits
		t.Fatal(err)
	}
	irq.mu.Lock()
	irq.raised = nil
	irq.mu.Unlock()

	if err := d.HandleWrite(0x0EC, (1<<14)|(1<<8)|0x40); err != nil {
		t.Fatal(err)
	}
	evt, _ := d.HandleRead(0x080) // int_event_set readback: raw int_event
	if evt&0x00018000 != 0x00018000 {
		t.Fatalf("selfIDComplete|selfIDComplete2 not both set after reset, got %#x", evt)
	}
	if irq.raisedCount() == 0 {
		t.Fatalf("IRQ should have been raised by self-ID completion")
	}
}
