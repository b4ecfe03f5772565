package memory_test

import (
	"testing"

	"github.com/vfirewire/ohci-host/memory"
)

func TestReadWriteRoundTrip(t *testing.T) {
	m := memory.New(4096)
	want := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if err := m.WriteAt(0x1000-4, want); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	got := make([]byte, 4)
	if err := m.ReadAt(0x1000-4, got); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got 0x%02x want 0x%02x", i, got[i], want[i])
		}
	}
}

func TestOutOfRangeReadFails(t *testing.T) {
	m := memory.New(16)
	if err := m.ReadAt(10, make([]byte, 16)); err == nil {
		t.Fatal("expected out-of-range read to fail")
	}
}

func TestOutOfRangeWriteFails(t *testing.T) {
	m := memory.New(16)
	if err := m.WriteAt(10, make([]byte, 16)); err == nil {
		t.Fatal("expected out-of-range write to fail")
	}
}
