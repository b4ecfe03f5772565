// Package transport provides the byte-stream "channel" abstraction the OHCI
// link state machine runs over, plus a few concrete carriers. spec.md treats
// the channel itself as an external collaborator; this package exists only
// so the core has something real to exercise it against, the same way
// core_engine/devices/net_iface.go's HostNetInterface stands in for the
// host's real networking stack in the teacher repo.
package transport

// Channel is an ordered, reliable byte stream between this device and its
// peer. SetHandlers must be called before Open-equivalent activity begins;
// onData may be invoked from a different goroutine than the caller of
// Write, so callers that mutate shared state from onData are responsible
// for their own locking (ohci.Device does this internally).
type Channel interface {
	// SetHandlers registers the callbacks fired on connect, inbound data,
	// and disconnect. Any of them may be nil.
	SetHandlers(onOpen func(), onData func(data []byte), onClose func())

	// Write sends data to the peer. It does not block for the peer to
	// consume it.
	Write(data []byte) error

	// Close tears down the channel. Triggers onClose if it hasn't already
	// fired for a peer-initiated close.
	Close() error
}
