package transport

import (
	"fmt"
	"sync"

	"github.com/tarm/serial"
)

// SerialChannel is a Channel carried over a real serial line, the most
// literal real-hardware instance of spec.md's "ordered reliable byte
// stream": two boxes, each hosting one emulated node, joined by a
// null-modem cable. Modeled on driver/mjolnir's serial.OpenPort usage from
// seedhammer-seedhammer, just carrying 1394 bytes instead of stepper-motor
// commands.
type SerialChannel struct {
	mu      sync.Mutex
	port    *serial.Port
	onData  func(data []byte)
	onClose func()
}

// OpenSerial opens dev at baud and wraps it as a Channel.
func OpenSerial(dev string, baud int) (*SerialChannel, error) {
	port, err := serial.OpenPort(&serial.Config{Name: dev, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("transport: open serial %s: %w", dev, err)
	}
	return &SerialChannel{port: port}, nil
}

func (c *SerialChannel) SetHandlers(onOpen func(), onData func(data []byte), onClose func()) {
	c.mu.Lock()
	c.onData = onData
	c.onClose = onClose
	c.mu.Unlock()
	if onOpen != nil {
		onOpen()
	}
	go c.readLoop()
}

func (c *SerialChannel) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := c.port.Read(buf)
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

func (c *SerialChannel) Write(data []byte) error {
	_, err := c.port.Write(data)
	if err != nil {
		return fmt.Errorf("transport: serial write: %w", err)
	}
	return nil
}

func (c *SerialChannel) Close() error {
	return c.port.Close()
}
