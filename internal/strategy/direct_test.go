package strategy

import (
	"testing"
	"time"

	"meshcourier/internal/wire"
)

func TestDirectCreateAndAccept(t *testing.T) {
	var source, dest [32]byte
	source[0] = 1
	dest[0] = 2

	s := Direct{}
	n, err := s.Create(source, dest, "hi", time.Unix(100, 0))
	if err != nil {
		t.Fatal(err)
	}
	if n.ControlByte.Protocol != wire.ProtocolDirect || n.ControlByte.DestinationControl != wire.DCDirect {
		t.Fatalf("unexpected control byte %v", n.ControlByte)
	}

	if !s.Accept(n, dest) {
		t.Fatalf("destination should accept")
	}
	if s.Accept(n, source) {
		t.Fatalf("non-destination should not accept")
	}
}

func TestDirectTransmitUnchanged(t *testing.T) {
	s := Direct{}
	var source, dest [32]byte
	n, _ := s.Create(source, dest, "x", time.Unix(0, 0))
	r := s.TransmitMutate(n)
	if r.ControlByte != n.ControlByte {
		t.Fatalf("Direct must transmit unchanged")
	}
}

func TestDirectAcknowledgementUnsupported(t *testing.T) {
	s := Direct{}
	if _, err := s.ReceiveAcknowledgement(notificationZero()); err != ErrAcknowledgementUnsupported {
		t.Fatalf("expected ErrAcknowledgementUnsupported, got %v", err)
	}
	if s.AcknowledgesOnAccept() {
		t.Fatalf("Direct never acknowledges on accept")
	}
}
