// Package memtransport is a deterministic, in-process transport.Link
// used by tests and simulations that need two engines to exchange
// frames without a real network.
package memtransport

// Link records one engine's outbound frames, acks and advertised tags
// in memory; it does not deliver them to a peer itself. Once Capacity
// frames are queued, Send reports back-pressure until the caller empties
// the outbox with Drain.
type Link struct {
	mtu      int
	capacity int
	outbox   [][]byte
	acks     [][32]byte
	tag      string
	closed   bool
}

// New returns a Link with the given MTU and outbox capacity (0 means
// unbounded, i.e. never back-pressures).
func New(mtu, capacity int) *Link {
	return &Link{mtu: mtu, capacity: capacity}
}

func (l *Link) MaxNotificationLength() int { return l.mtu }

// Send queues frame for delivery, returning false once the outbox is
// at capacity.
func (l *Link) Send(frame []byte) bool {
	if l.closed {
		return false
	}
	if l.capacity > 0 && len(l.outbox) >= l.capacity {
		return false
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	l.outbox = append(l.outbox, cp)
	return true
}

func (l *Link) Acknowledge(hashedID [32]byte) {
	l.acks = append(l.acks, hashedID)
}

func (l *Link) Disconnect() { l.closed = true }

func (l *Link) Advertise(tag string) { l.tag = tag }

// Drain removes and returns every queued frame, freeing outbox
// capacity for subsequent Send calls.
func (l *Link) Drain() [][]byte {
	out := l.outbox
	l.outbox = nil
	return out
}

// Acks returns every hashedID acknowledged so far.
func (l *Link) Acks() [][32]byte { return l.acks }

// LastAdvertisedTag returns the most recent tag passed to Advertise.
func (l *Link) LastAdvertisedTag() string { return l.tag }

// Closed reports whether Disconnect has been called.
func (l *Link) Closed() bool { return l.closed }
