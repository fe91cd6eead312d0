package strategy

import (
	"time"

	"meshcourier/internal/notification"
	"meshcourier/internal/wire"
)

// SprayAndWait implements protocol 2: flood with a shrinking copy
// budget. L is the number of copies a freshly created notification is
// sprayed with; larger L sprays more aggressively before collapsing to
// direct delivery.
type SprayAndWait struct {
	l uint8
}

var _ Strategy = &SprayAndWait{}

// NewSprayAndWait constructs a strategy with initial copy budget L, in
// [1, 15].
func NewSprayAndWait(l uint8) (*SprayAndWait, error) {
	if l < 1 || l > 15 {
		return nil, wire.ErrInvalidControlByteValue
	}
	return &SprayAndWait{l: l}, nil
}

// NumberOfCopies returns the current copy budget new notifications are
// created with.
func (s *SprayAndWait) NumberOfCopies() uint8 { return s.l }

// SetNumberOfCopies changes the copy budget used by future Create
// calls. It fails with ErrInvalidControlByteValue for L >= 16 (L == 0 is
// also rejected: a notification must spray at least one copy).
func (s *SprayAndWait) SetNumberOfCopies(l uint8) error {
	if l < 1 || l > 15 {
		return wire.ErrInvalidControlByteValue
	}
	s.l = l
	return nil
}

func (s *SprayAndWait) Protocol() wire.Protocol { return wire.ProtocolSprayAndWait }

func (s *SprayAndWait) Create(hashedSource, hashedDest [32]byte, message string, now time.Time) (notification.Notification, error) {
	cb, err := wire.New(wire.ProtocolSprayAndWait, wire.DCFlood, s.l)
	if err != nil {
		return notification.Notification{}, err
	}
	ts := wire.EncodeTimestamp(now.Unix())
	return notification.Notification{
		ControlByte:              cb,
		HashedID:                 notification.NewHashedID(hashedSource, ts, message),
		HashedDestinationAddress: hashedDest,
		HashedSourceAddress:      hashedSource,
		SentTimestamp:            ts,
		Message:                  message,
	}, nil
}

// Accept is true for any flooded copy, or for a copy addressed directly
// to us (the final hop of the wait phase).
func (s *SprayAndWait) Accept(n notification.Notification, selfHashed [32]byte) bool {
	if n.ControlByte.DestinationControl == wire.DCFlood {
		return true
	}
	return n.HashedDestinationAddress == selfHashed
}

// TransmitMutate halves the stored sequence number for the wire copy
// only; the stored record itself is untouched until an acknowledgement
// arrives. When halving would produce an invalid (zero) sequence number
// for a flooded copy, the wire copy is promoted to direct-mode for this
// hop instead, per §4.3.
func (s *SprayAndWait) TransmitMutate(n notification.Notification) TransmitResult {
	next, _ := halveSequenceNumber(n.ControlByte)
	return TransmitResult{ControlByte: next}
}

// ReceiveAcknowledgement halves the sender's stored copy budget. When it
// can no longer be halved (seq was 0 or 1), the stored record is
// promoted to direct-mode instead: a single remaining copy that must now
// be delivered by direct contact.
func (s *SprayAndWait) ReceiveAcknowledgement(stored notification.Notification) (wire.ControlByte, error) {
	next, _ := halveSequenceNumber(stored.ControlByte)
	return next, nil
}

func (s *SprayAndWait) AcknowledgesOnAccept() bool { return true }
