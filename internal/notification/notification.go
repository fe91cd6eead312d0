// Package notification defines the in-memory and persistent
// notification record, shared by every strategy and the store.
package notification

import (
	"meshcourier/internal/hashid"
	"meshcourier/internal/wire"
)

// Notification is one message in flight across the mesh. Only
// ControlByte's DestinationControl and SequenceNumber fields change
// after creation.
type Notification struct {
	ControlByte              wire.ControlByte
	HashedID                 [32]byte
	HashedDestinationAddress [32]byte
	HashedSourceAddress      [32]byte
	SentTimestamp            [8]byte
	Message                  string
}

// NewHashedID derives the primary-key digest for a notification from its
// source, creation time, and body, per the protocol.
func NewHashedID(hashedSource [32]byte, sentTimestamp [8]byte, message string) [32]byte {
	return hashid.Sum(hashedSource[:], sentTimestamp[:], []byte(message))
}

// Transmittable reports whether this record should still appear in a
// transmit queue: false once DestinationControl has gone terminal.
func (n Notification) Transmittable() bool {
	return n.ControlByte.DestinationControl != wire.DCTerminal
}

// ToFrame converts the record to its wire representation, unchanged.
func (n Notification) ToFrame() wire.Frame {
	return wire.Frame{
		ControlByte:              n.ControlByte,
		HashedID:                 n.HashedID,
		HashedDestinationAddress: n.HashedDestinationAddress,
		HashedSourceAddress:      n.HashedSourceAddress,
		SentTimestamp:            n.SentTimestamp,
		Message:                  n.Message,
	}
}

// FromFrame builds a Notification from a parsed wire frame.
func FromFrame(f wire.Frame) Notification {
	return Notification{
		ControlByte:              f.ControlByte,
		HashedID:                 f.HashedID,
		HashedDestinationAddress: f.HashedDestinationAddress,
		HashedSourceAddress:      f.HashedSourceAddress,
		SentTimestamp:            f.SentTimestamp,
		Message:                  f.Message,
	}
}
