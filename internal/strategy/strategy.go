// Package strategy implements the three forwarding rules — Direct,
// Epidemic, and Binary Spray-and-Wait — as a small tagged-sum capability
// surface rather than a subclass chain: the engine holds one Strategy
// value, fixed at construction, and calls its methods. Shared
// state (store, address, receive set, transmit queue) lives on the
// engine; a Strategy holds only its own parameters (the copy budget, for
// Spray-and-Wait).
package strategy

import (
	"errors"
	"time"

	"meshcourier/internal/notification"
	"meshcourier/internal/wire"
)

// ErrAcknowledgementUnsupported is returned by ReceiveAcknowledgement on
// strategies that never expect one (Direct, Epidemic).
var ErrAcknowledgementUnsupported = errors.New("strategy: acknowledgement not supported")

// TransmitResult is what a strategy's TransmitMutate produces for one
// outgoing frame.
type TransmitResult struct {
	ControlByte wire.ControlByte
	// Terminal is true when this hop's transmit makes the record no
	// longer worth re-sending by this peer (currently unused by any of
	// the three strategies, which all keep transmitting until a later
	// acknowledgement or delivery changes state, but kept for strategies
	// that might want to say "don't bother resending after this").
	Terminal bool
}

// Strategy is the per-protocol accept/transmit/create rule set.
type Strategy interface {
	// Protocol identifies this strategy on the wire.
	Protocol() wire.Protocol

	// Create builds a fresh outgoing notification addressed to dest from
	// source, with the given body.
	Create(hashedSource, hashedDest [32]byte, message string, now time.Time) (notification.Notification, error)

	// Accept decides whether a freshly-parsed, protocol-matched,
	// not-yet-seen notification should be stored at all.
	Accept(n notification.Notification, selfHashed [32]byte) bool

	// TransmitMutate computes the wire control byte to send for n on
	// this hop. It never mutates n: Spray-and-Wait's copy-budget halving
	// only happens in ReceiveAcknowledgement, on the sender, once an ack
	// arrives.
	TransmitMutate(n notification.Notification) TransmitResult

	// ReceiveAcknowledgement processes a 32-byte hashedID acknowledgement
	// against the stored notification, returning the mutation to commit
	// to the store (if any). Direct and Epidemic return
	// ErrAcknowledgementUnsupported.
	ReceiveAcknowledgement(stored notification.Notification) (wire.ControlByte, error)

	// AcknowledgesOnAccept reports whether accepting a notification
	// should cause the engine to ask the transport for an
	// acknowledgement to be sent back to the sender (Spray-and-Wait
	// only).
	AcknowledgesOnAccept() bool
}

// halveSequenceNumber halves a Spray-and-Wait copy budget, returning the
// new ControlByte and whether the halving succeeded (seq' >= 1). On
// failure dc is promoted to Direct, per §4.3/§4.7.
func halveSequenceNumber(cb wire.ControlByte) (wire.ControlByte, bool) {
	newSeq := cb.SequenceNumber / 2
	if next, err := wire.New(cb.Protocol, cb.DestinationControl, newSeq); err == nil && newSeq >= 1 {
		return next, true
	}
	promoted, err := wire.New(cb.Protocol, wire.DCDirect, cb.SequenceNumber)
	if err != nil {
		// SequenceNumber was already in range (it came from a valid
		// ControlByte), so promoting dc alone cannot fail.
		panic(err)
	}
	return promoted, false
}
