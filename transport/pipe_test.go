package transport_test

import (
	"sync"
	"testing"
	"time"

	"github.com/vfirewire/ohci-host/transport"
)

func TestLinkedPairDeliversData(t *testing.T) {
	a, b := transport.NewLinkedPair()
	defer a.Close()
	defer b.Close()

	var mu sync.Mutex
	var received []byte
	gotData := make(chan struct{}, 1)

	a.SetHandlers(nil, nil, nil)
	b.SetHandlers(nil, func(data []byte) {
		mu.Lock()
		received = append(received, data...)
		mu.Unlock()
		select {
		case gotData <- struct{}{}:
		default:
		}
	}, nil)

	if err := a.Write([]byte("1394")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case <-gotData:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	if string(received) != "1394" {
		t.Fatalf("got %q, want %q", received, "1394")
	}
}

func TestCloseFiresOnCloseAndFailsPeerWrites(t *testing.T) {
	a, b := transport.NewLinkedPair()
	closed := make(chan struct{})
	a.SetHandlers(nil, nil, nil)
	b.SetHandlers(nil, nil, func() { close(closed) })

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for close notification")
	}

	// Writing to a closed peer must fail rather than hang.
	if err := a.Write([]byte("x")); err == nil {
		t.Fatal("expected write after peer close to fail")
	}
	a.Close()
}
