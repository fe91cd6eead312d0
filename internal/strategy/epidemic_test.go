package strategy

import (
	"testing"
	"time"

	"meshcourier/internal/wire"
)

func TestEpidemicFloodAccept(t *testing.T) {
	s := Epidemic{}
	var source, dest, stranger [32]byte
	dest[0] = 1
	stranger[0] = 9

	n, err := s.Create(source, dest, "flood", time.Unix(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if n.ControlByte.DestinationControl != wire.DCFlood {
		t.Fatalf("epidemic notifications must flood, got %v", n.ControlByte)
	}

	// Epidemic accepts any flooded copy, not just ones addressed to us:
	// an intermediary needs to store-and-forward.
	if !s.Accept(n, stranger) {
		t.Fatalf("epidemic should accept a flooded notification regardless of destination")
	}
}

func TestEpidemicTransmitUnchanged(t *testing.T) {
	s := Epidemic{}
	var source, dest [32]byte
	n, _ := s.Create(source, dest, "x", time.Unix(0, 0))
	r := s.TransmitMutate(n)
	if r.ControlByte != n.ControlByte {
		t.Fatalf("Epidemic must transmit unchanged")
	}
}
