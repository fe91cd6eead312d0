// Package transport defines the contract between the engine and the
// radio transport: connection establishment, advertisement, MTU
// negotiation, and link-layer retransmits are all out of scope for the
// engine and live behind this interface instead (§1, §6.1).
package transport

// Link is what the engine requires from a transport, for the one peer
// currently connected in a session.
type Link interface {
	// MaxNotificationLength is the MTU for a single frame; must be >=
	// wire.MinNotificationLength.
	MaxNotificationLength() int

	// Send attempts to send one frame. True means accepted; false means
	// the link is back-pressured and the engine must suspend.
	Send(frame []byte) bool

	// Acknowledge fire-and-forgets a 32-byte hashedID ack to the current
	// peer.
	Acknowledge(hashedID [32]byte)

	// Disconnect tears down the current peer session.
	Disconnect()

	// Advertise republishes presence using a fresh tag, called by the
	// engine after every store insertion.
	Advertise(tag string)
}

// Receiver is what the transport calls back into on the engine.
type Receiver interface {
	// ReceiveNotification handles one inbound frame (§4.2).
	ReceiveNotification(frame []byte)

	// ReceiveAcknowledgement handles one inbound acknowledgement (§4.3).
	ReceiveAcknowledgement(frame []byte)

	// TransmitNotifications is invoked when the transport signals that
	// the currently connected peer is subscribed and ready to receive a
	// frame (§4.5).
	TransmitNotifications()
}
