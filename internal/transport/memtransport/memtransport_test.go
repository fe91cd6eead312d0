package memtransport

import "testing"

func TestSendBackPressureAndDrain(t *testing.T) {
	l := New(256, 2)
	if !l.Send([]byte("a")) {
		t.Fatalf("first send should succeed")
	}
	if !l.Send([]byte("b")) {
		t.Fatalf("second send should succeed")
	}
	if l.Send([]byte("c")) {
		t.Fatalf("third send should back-pressure at capacity 2")
	}

	frames := l.Drain()
	if len(frames) != 2 {
		t.Fatalf("drained %d frames, want 2", len(frames))
	}
	if !l.Send([]byte("c")) {
		t.Fatalf("send should succeed again after drain")
	}
}

func TestUnboundedCapacityNeverBackPressures(t *testing.T) {
	l := New(256, 0)
	for i := 0; i < 100; i++ {
		if !l.Send([]byte{byte(i)}) {
			t.Fatalf("send %d should never back-pressure with capacity 0", i)
		}
	}
}

func TestAcknowledgeAndAdvertise(t *testing.T) {
	l := New(256, 0)
	var id [32]byte
	id[0] = 7
	l.Acknowledge(id)
	if len(l.Acks()) != 1 || l.Acks()[0] != id {
		t.Fatalf("Acks() = %v, want [%v]", l.Acks(), id)
	}

	l.Advertise("abcd1234")
	if l.LastAdvertisedTag() != "abcd1234" {
		t.Fatalf("LastAdvertisedTag() = %q", l.LastAdvertisedTag())
	}
}

func TestSendAfterDisconnectFails(t *testing.T) {
	l := New(256, 0)
	l.Disconnect()
	if l.Send([]byte("x")) {
		t.Fatalf("send should fail after disconnect")
	}
	if !l.Closed() {
		t.Fatalf("Closed() should report true after Disconnect")
	}
}
