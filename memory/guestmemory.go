// Package memory provides the DMA gateway the OHCI core dispatches guest
// reads and writes through. A real deployment would back this with a VM's
// mmap'd physical address space; here it is a flat byte slice, which is
// all the core needs to exercise its descriptor and packet DMA paths.
package memory

import (
	"fmt"
	"sync"
)

// GuestMemory is an address-indexed read/write service standing in for a
// guest's physical address space.
type GuestMemory struct {
	mu   sync.Mutex
	data []byte
}

// New allocates a GuestMemory backed by size bytes, all zeroed.
func New(size int) *GuestMemory {
	return &GuestMemory{data: make([]byte, size)}
}

// ReadAt copies len(dst) bytes starting at addr into dst.
func (g *GuestMemory) ReadAt(addr uint32, dst []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	end := uint64(addr) + uint64(len(dst))
	if end > uint64(len(g.data)) {
		return fmt.Errorf("guest memory read at 0x%08x (len %d): out of range", addr, len(dst))
	}
	copy(dst, g.data[addr:end])
	return nil
}

// WriteAt copies src into guest memory starting at addr.
func (g *GuestMemory) WriteAt(addr uint32, src []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	end := uint64(addr) + uint64(len(src))
	if end > uint64(len(g.data)) {
		return fmt.Errorf("guest memory write at 0x%08x (len %d): out of range", addr, len(src))
	}
	copy(g.data[addr:end], src)
	return nil
}

// Size returns the addressable size of the backing store.
func (g *GuestMemory) Size() int {
	return len(g.data)
}
