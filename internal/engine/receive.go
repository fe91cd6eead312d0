package engine

import (
	"meshcourier/internal/notification"
	"meshcourier/internal/wire"
)

// ReceiveNotification runs the receive pipeline of §4.2 against one raw
// inbound frame. It never returns an error: every failure mode on this
// path is a silent drop, per §7 ("all receive-path errors are absorbed
// inside the engine").
func (e *Engine) ReceiveNotification(raw []byte) {
	f, err := wire.Parse(raw)
	if err != nil {
		e.logf("receive: frame too short (%d bytes), dropping", len(raw))
		return
	}

	if f.ControlByte.IsSentinel() {
		e.logf("receive: end-of-session sentinel")
		e.mu.Lock()
		link := e.link
		e.mu.Unlock()
		if link != nil {
			link.Disconnect()
		}
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if f.ControlByte.Protocol != e.strat.Protocol() {
		e.logf("receive: protocol mismatch, dropping")
		return
	}

	if _, seen := e.receivedHashedIDs[f.HashedID]; seen {
		return // duplicate: state is unchanged, per §8's duplicate-suppression invariant
	}

	n := notification.FromFrame(f)

	if !e.strat.Accept(n, e.self.Hashed) {
		return
	}

	e.receivedHashedIDs[n.HashedID] = struct{}{}

	if n.HashedDestinationAddress == e.self.Hashed {
		cb, err := wire.New(n.ControlByte.Protocol, wire.DCTerminal, n.ControlByte.SequenceNumber)
		if err == nil {
			n.ControlByte = cb
		}
		e.inbox = append(e.inbox, n)
	}

	if err := e.st.Insert(n); err != nil {
		e.logf("receive: store insert failed: %v", err)
		// Fall through anyway: the in-memory receive set and inbox are
		// already updated, and the opportunistic protocol tolerates a
		// record being lost on restart (§7 StorePersistenceFailure).
	} else if e.link != nil {
		e.advertiseLocked()
	}

	if e.strat.AcknowledgesOnAccept() && e.link != nil {
		e.link.Acknowledge(n.HashedID)
	}
}
