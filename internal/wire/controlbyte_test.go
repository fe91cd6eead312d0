package wire

import "testing"

func TestControlByteRoundTrip(t *testing.T) {
	for p := Protocol(0); p <= ProtocolSprayAndWait; p++ {
		for dc := DestinationControl(0); dc <= DCDirect; dc++ {
			for seq := uint8(0); seq <= 15; seq++ {
				cb, err := New(p, dc, seq)
				if err != nil {
					t.Fatalf("New(%v,%v,%v): %v", p, dc, seq, err)
				}
				got := Unpack(cb.Pack())
				if got != cb {
					t.Fatalf("round-trip mismatch: packed %v, got %v", cb, got)
				}
			}
		}
	}
}

func TestControlByteInvalid(t *testing.T) {
	cases := []struct {
		p   Protocol
		dc  DestinationControl
		seq uint8
	}{
		{ProtocolSprayAndWait + 1, DCFlood, 0},
		{ProtocolDirect, DCDirect + 1, 0},
		{ProtocolDirect, DCFlood, 16},
	}
	for _, c := range cases {
		if _, err := New(c.p, c.dc, c.seq); err != ErrInvalidControlByteValue {
			t.Fatalf("New(%v,%v,%v) = %v, want ErrInvalidControlByteValue", c.p, c.dc, c.seq, err)
		}
	}
}

func TestSequenceNumberBoundary(t *testing.T) {
	if _, err := New(ProtocolSprayAndWait, DCFlood, 15); err != nil {
		t.Fatalf("seq=15 should be valid: %v", err)
	}
	if _, err := New(ProtocolSprayAndWait, DCFlood, 16); err == nil {
		t.Fatalf("seq=16 should be invalid")
	}
}

func TestSentinelIsTerminal(t *testing.T) {
	cb, err := New(ProtocolEpidemic, DCTerminal, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !cb.IsSentinel() {
		t.Fatalf("expected sentinel control byte to report IsSentinel")
	}
}
