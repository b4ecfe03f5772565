package transport

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// unixChannel is a Channel backed by a real kernel socket fd. It mirrors
// core_engine/network/tap_device.go's use of golang.org/x/sys/unix for raw
// fd plumbing, just over AF_UNIX instead of a TAP device, since the 1394
// wire here is a byte stream rather than Ethernet frames.
type unixChannel struct {
	mu      sync.Mutex
	file    *os.File
	onData  func(data []byte)
	onClose func()
	done    chan struct{}
}

// NewUnixSocketPair opens a connected AF_UNIX SOCK_STREAM socketpair and
// wraps each end as a Channel, the real-syscall analogue of NewLinkedPair
// for exercising the link state machine over an actual kernel transport
// instead of in-process channels.
func NewUnixSocketPair() (Channel, Channel, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("transport: socketpair: %w", err)
	}
	a := newUnixChannel(fds[0], "ohci-unix-a")
	b := newUnixChannel(fds[1], "ohci-unix-b")
	return a, b, nil
}

func newUnixChannel(fd int, name string) *unixChannel {
	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
	}
	return &unixChannel{
		file: os.NewFile(uintptr(fd), name),
		done: make(chan struct{}),
	}
}

func (c *unixChannel) SetHandlers(onOpen func(), onData func(data []byte), onClose func()) {
	c.mu.Lock()
	c.onData = onData
	c.onClose = onClose
	c.mu.Unlock()
	if onOpen != nil {
		onOpen()
	}
	go c.readLoop()
}

func (c *unixChannel) readLoop() {
	buf := make([]byte, 65536+16)
	for {
		n, err := c.file.Read(buf)
		if n > 0 {
			c.mu.Lock()
			handler := c.onData
			c.mu.Unlock()
			if handler != nil {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				handler(chunk)
			}
		}
		if err != nil {
			c.mu.Lock()
			onClose := c.onClose
			c.mu.Unlock()
			if onClose != nil {
				onClose()
			}
			return
		}
	}
}

func (c *unixChannel) Write(data []byte) error {
	_, err := c.file.Write(data)
	if err != nil {
		return fmt.Errorf("transport: unix socket write: %w", err)
	}
	return nil
}

func (c *unixChannel) Close() error {
	return c.file.Close()
}
