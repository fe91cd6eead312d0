package engine

// ReceiveAcknowledgement handles one inbound 32-byte hashedID
// acknowledgement frame (§4.3). Only Spray-and-Wait strategies expect
// these; Direct and Epidemic links never call this, and if one does the
// ack is absorbed silently rather than panicking the session.
func (e *Engine) ReceiveAcknowledgement(frame []byte) {
	if len(frame) != 32 {
		e.logf("ack: frame wrong size (%d bytes, want 32), dropping", len(frame))
		return
	}
	var id [32]byte
	copy(id[:], frame[:32])

	e.mu.Lock()
	defer e.mu.Unlock()

	n, err := e.st.FetchByHashedID(id)
	if err != nil {
		return // acknowledging a record we no longer hold is a no-op
	}

	next, err := e.strat.ReceiveAcknowledgement(n)
	if err != nil {
		return // strategy doesn't expect acks; ignore
	}

	if next.DestinationControl != n.ControlByte.DestinationControl {
		if err := e.st.SetDestinationControl(id, uint8(next.DestinationControl)); err != nil {
			e.logf("ack: failed to persist destination control for %x: %v", id, err)
		}
	}
	if next.SequenceNumber != n.ControlByte.SequenceNumber {
		if err := e.st.SetSequenceNumber(id, next.SequenceNumber); err != nil {
			e.logf("ack: failed to persist sequence number for %x: %v", id, err)
		}
	}
}

// EncodeAck renders a hashedID as the 32-byte wire form a Link.Acknowledge
// implementation sends to its peer.
func EncodeAck(id [32]byte) []byte {
	out := make([]byte, 32)
	copy(out, id[:])
	return out
}
