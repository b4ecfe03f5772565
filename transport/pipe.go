package transport

import (
	"errors"
	"sync"
)

// pipeEnd is an in-process Channel, one half of a linked pair. Delivery runs
// on its own goroutine per end, the same receive-loop-plus-stop-channel
// shape core_engine/devices/ne2000.go uses for its RX loop, just carrying
// FireWire bytes instead of Ethernet frames between two devices living in
// the same process.
type pipeEnd struct {
	mu      sync.Mutex
	peer    *pipeEnd
	inbox   chan []byte
	closed  chan struct{}
	onOpen  func()
	onData  func(data []byte)
	onClose func()
}

// NewLinkedPair returns two Channels wired to each other, modeling the
// transport joining two virtual 1394 nodes.
func NewLinkedPair() (Channel, Channel) {
	a := &pipeEnd{inbox: make(chan []byte, 64), closed: make(chan struct{})}
	b := &pipeEnd{inbox: make(chan []byte, 64), closed: make(chan struct{})}
	a.peer, b.peer = b, a
	go a.deliverLoop()
	go b.deliverLoop()
	return a, b
}

func (p *pipeEnd) deliverLoop() {
	for {
		select {
		case data := <-p.inbox:
			p.mu.Lock()
			handler := p.onData
			p.mu.Unlock()
			if handler != nil {
				handler(data)
			}
		case <-p.closed:
			return
		}
	}
}

func (p *pipeEnd) SetHandlers(onOpen func(), onData func(data []byte), onClose func()) {
	p.mu.Lock()
	p.onOpen = onOpen
	p.onData = onData
	p.onClose = onClose
	p.mu.Unlock()
	if onOpen != nil {
		onOpen()
	}
}

func (p *pipeEnd) Write(data []byte) error {
	p.mu.Lock()
	peer := p.peer
	p.mu.Unlock()
	if peer == nil {
		return errors.New("transport: write on unpaired pipe end")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case <-peer.closed:
		return errors.New("transport: write to closed peer")
	default:
	}
	select {
	case peer.inbox <- buf:
		return nil
	case <-peer.closed:
		return errors.New("transport: write to closed peer")
	}
}

func (p *pipeEnd) Close() error {
	p.mu.Lock()
	onClose := p.onClose
	p.mu.Unlock()
	select {
	case <-p.closed:
		return nil
	default:
		close(p.closed)
	}
	if onClose != nil {
		onClose()
	}
	return nil
}
