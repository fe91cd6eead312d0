package engine

import (
	"testing"
	"time"

	"meshcourier/internal/address"
	"meshcourier/internal/store/memstore"
	"meshcourier/internal/strategy"
	"meshcourier/internal/wire"
)

// pipeLink queues one engine's outbound frames and acks for a peer
// engine rather than handing them to the peer inline: a real transport
// delivers inbound bytes from a separate read-loop goroutine, never
// from inside the sender's own TransmitNotifications call, so feeding
// the peer synchronously here would let the peer's reply re-enter the
// sender's still-held lock. deliver() plays the read loop's role,
// called by the test once the triggering call has returned.
type pipeLink struct {
	peer      *Engine
	maxSends  int
	sendCount int
	outbox    [][]byte
	acked     [][32]byte
}

func (l *pipeLink) MaxNotificationLength() int { return 256 }

func (l *pipeLink) Send(frame []byte) bool {
	if l.maxSends > 0 && l.sendCount >= l.maxSends {
		return false
	}
	l.sendCount++
	cp := make([]byte, len(frame))
	copy(cp, frame)
	l.outbox = append(l.outbox, cp)
	return true
}

func (l *pipeLink) Acknowledge(hashedID [32]byte) {
	l.acked = append(l.acked, hashedID)
}

func (l *pipeLink) Disconnect()          {}
func (l *pipeLink) Advertise(tag string) {}

// deliver hands every queued frame to the peer engine, as a real
// transport's read loop would once bytes arrived over the wire.
func (l *pipeLink) deliver() {
	pending := l.outbox
	l.outbox = nil
	for _, f := range pending {
		l.peer.ReceiveNotification(f)
	}
}

// deliverAcks hands every queued ack to the peer engine, as a real
// transport's read loop would once an ack frame arrived over the wire.
func (l *pipeLink) deliverAcks() {
	pending := l.acked
	for _, id := range pending {
		l.peer.ReceiveAcknowledgement(EncodeAck(id))
	}
}

func newTestEngine(t *testing.T, strat strategy.Strategy, self [32]byte) *Engine {
	t.Helper()
	e, err := New(Config{
		Store:                 memstore.New(),
		Strategy:              strat,
		Self:                  address.Address{Hashed: self},
		MaxNotificationLength: 256,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestDirectDeliveryEndToEnd(t *testing.T) {
	var aID, bID [32]byte
	aID[0], bID[0] = 1, 2

	a := newTestEngine(t, strategy.Direct{}, aID)
	b := newTestEngine(t, strategy.Direct{}, bID)

	link := &pipeLink{peer: b}
	a.SetLink(link)

	if err := a.Send(bID, "hello", time.Unix(1000, 0)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	a.TransmitNotifications()
	link.deliver()

	inbox := b.Inbox()
	if len(inbox) != 1 || inbox[0].Message != "hello" {
		t.Fatalf("b's inbox = %+v, want one message 'hello'", inbox)
	}
	if inbox[0].ControlByte.DestinationControl != wire.DCTerminal {
		t.Fatalf("delivered record should be terminal, got %v", inbox[0].ControlByte)
	}
}

func TestEpidemicFloodsThroughIntermediary(t *testing.T) {
	var aID, cID, dID [32]byte
	aID[0], cID[0], dID[0] = 1, 3, 4

	a := newTestEngine(t, strategy.Epidemic{}, aID)
	c := newTestEngine(t, strategy.Epidemic{}, cID)
	d := newTestEngine(t, strategy.Epidemic{}, dID)

	aToC := &pipeLink{peer: c}
	a.SetLink(aToC)
	if err := a.Send(dID, "relay me", time.Unix(2000, 0)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	a.TransmitNotifications()
	aToC.deliver()

	// c received the flood even though it isn't the destination.
	if len(c.ReceivedHashedIDs()) != 1 {
		t.Fatalf("c should have accepted the flooded copy")
	}

	cToD := &pipeLink{peer: d}
	c.SetLink(cToD)
	c.TransmitNotifications()
	cToD.deliver()

	inbox := d.Inbox()
	if len(inbox) != 1 || inbox[0].Message != "relay me" {
		t.Fatalf("d's inbox = %+v, want the relayed message", inbox)
	}
}

func TestDuplicateNotificationLeavesStateUnchanged(t *testing.T) {
	var aID, bID [32]byte
	aID[0], bID[0] = 1, 2

	a := newTestEngine(t, strategy.Epidemic{}, aID)
	b := newTestEngine(t, strategy.Epidemic{}, bID)

	link := &pipeLink{peer: b}
	a.SetLink(link)
	if err := a.Send(bID, "once", time.Unix(3000, 0)); err != nil {
		t.Fatal(err)
	}
	a.TransmitNotifications()
	link.deliver()

	before := len(b.Inbox())
	beforeSeen := len(b.ReceivedHashedIDs())

	n, err := a.st.FetchByHashedID(firstID(t, a))
	if err != nil {
		t.Fatal(err)
	}
	frame := wire.Encode(n.ToFrame())
	b.ReceiveNotification(frame)

	if len(b.Inbox()) != before {
		t.Fatalf("inbox grew on duplicate receive: %d -> %d", before, len(b.Inbox()))
	}
	if len(b.ReceivedHashedIDs()) != beforeSeen {
		t.Fatalf("receive set grew on duplicate receive: %d -> %d", beforeSeen, len(b.ReceivedHashedIDs()))
	}
}

func firstID(t *testing.T, e *Engine) [32]byte {
	t.Helper()
	for id := range e.ReceivedHashedIDs() {
		return id
	}
	t.Fatalf("engine has no notifications")
	return [32]byte{}
}

func TestTransmitBackPressureSuspendsAndResumes(t *testing.T) {
	var aID, bID, cID [32]byte
	aID[0], bID[0], cID[0] = 1, 2, 3

	a := newTestEngine(t, strategy.Epidemic{}, aID)
	b := newTestEngine(t, strategy.Epidemic{}, bID)

	if err := a.Send(bID, "one", time.Unix(1, 0)); err != nil {
		t.Fatal(err)
	}
	if err := a.Send(cID, "two", time.Unix(2, 0)); err != nil {
		t.Fatal(err)
	}

	link := &pipeLink{peer: b, maxSends: 1}
	a.SetLink(link)
	a.TransmitNotifications() // back-pressures after the first send

	sentAfterFirstCall := link.sendCount
	if sentAfterFirstCall != 1 {
		t.Fatalf("expected exactly one send before suspension, got %d", sentAfterFirstCall)
	}

	link.maxSends = 0 // peer catches up; resume draining
	a.TransmitNotifications()

	if link.sendCount < 2 {
		t.Fatalf("resumed session should have sent the remaining entry, sendCount=%d", link.sendCount)
	}
}

func TestTransmitEmptyStoreSendsSentinelOnly(t *testing.T) {
	var aID, bID [32]byte
	aID[0], bID[0] = 1, 2

	a := newTestEngine(t, strategy.Epidemic{}, aID)
	b := newTestEngine(t, strategy.Epidemic{}, bID)

	link := &pipeLink{peer: b}
	a.SetLink(link)
	a.TransmitNotifications()

	if link.sendCount != 1 {
		t.Fatalf("expected exactly the sentinel frame, sendCount=%d", link.sendCount)
	}
}

func TestSprayAndWaitAcknowledgementHalvesStoredCopy(t *testing.T) {
	var aID, bID [32]byte
	aID[0], bID[0] = 1, 2

	sw, err := strategy.NewSprayAndWait(4)
	if err != nil {
		t.Fatal(err)
	}
	swB, _ := strategy.NewSprayAndWait(4)

	a := newTestEngine(t, sw, aID)
	b := newTestEngine(t, swB, bID)

	linkAB := &pipeLink{peer: b}
	linkBA := &pipeLink{peer: a}
	a.SetLink(linkAB)
	b.SetLink(linkBA) // b acknowledges back to a over the same physical link

	if err := a.Send(bID, "spray", time.Unix(5, 0)); err != nil {
		t.Fatal(err)
	}
	a.TransmitNotifications()
	linkAB.deliver() // b's receive pipeline runs now, outside a's lock

	if len(linkBA.acked) != 1 {
		t.Fatalf("b should have acknowledged the accepted copy, got %d acks", len(linkBA.acked))
	}
	linkBA.deliverAcks() // a processes the ack, outside b's lock

	id := linkBA.acked[0]
	n, err := a.st.FetchByHashedID(id)
	if err != nil {
		t.Fatal(err)
	}
	if n.ControlByte.SequenceNumber != 2 {
		t.Fatalf("a's stored copy budget after ack = %d, want 2", n.ControlByte.SequenceNumber)
	}
}

func TestReceiveAcknowledgementRejectsWrongSizeFrame(t *testing.T) {
	var aID, bID [32]byte
	aID[0], bID[0] = 1, 2

	sw, err := strategy.NewSprayAndWait(4)
	if err != nil {
		t.Fatal(err)
	}
	a := newTestEngine(t, sw, aID)

	if err := a.Send(bID, "spray", time.Unix(6, 0)); err != nil {
		t.Fatal(err)
	}
	id := firstID(t, a)
	before, err := a.st.FetchByHashedID(id)
	if err != nil {
		t.Fatal(err)
	}

	oversized := append(EncodeAck(id), 0xff)
	a.ReceiveAcknowledgement(oversized)

	after, err := a.st.FetchByHashedID(id)
	if err != nil {
		t.Fatal(err)
	}
	if after.ControlByte != before.ControlByte {
		t.Fatalf("a 33-byte ack frame mutated stored state: before=%v after=%v", before.ControlByte, after.ControlByte)
	}
}
