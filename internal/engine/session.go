package engine

import "meshcourier/internal/wire"

// TransmitNotifications drives one step of the session protocol of
// §4.5: populate the queue from the store if empty, then stream every
// unsent entry until the link back-pressures or the queue drains, in
// which case the end-of-session sentinel is emitted. It is safe to call
// repeatedly: a back-pressured call leaves the queue exactly where it
// was, and the next call resumes from the first unsent entry.
func (e *Engine) TransmitNotifications() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transmitLocked()
}

func (e *Engine) transmitLocked() {
	if e.link == nil {
		return
	}

	if len(e.queue) == 0 {
		transmittable, err := e.st.FetchAllTransmittable()
		if err != nil {
			e.logf("transmit: failed to load transmittable set: %v", err)
			return
		}
		e.queue = make([]queueEntry, 0, len(transmittable))
		for _, n := range transmittable {
			e.queue = append(e.queue, queueEntry{id: n.HashedID})
		}
		if len(e.queue) == 0 {
			e.sendSentinelLocked()
			return
		}
	}

	for i := range e.queue {
		if e.queue[i].sent {
			continue
		}

		n, err := e.st.FetchByHashedID(e.queue[i].id)
		if err != nil {
			// The record vanished from the store between queueing and
			// sending; treat it as already handled rather than stalling
			// the rest of the session on it.
			e.queue[i].sent = true
			continue
		}

		result := e.strat.TransmitMutate(n)
		frame := wire.Encode(n.ToFrame())
		frame[0] = result.ControlByte.Pack()

		if !e.link.Send(frame) {
			return // back-pressured: suspend, resume here next call
		}
		e.queue[i].sent = true
	}

	e.sendSentinelLocked()
}

func (e *Engine) sendSentinelLocked() {
	if !e.link.Send(wire.Sentinel()) {
		return // sentinel send failed: retry the sentinel next call, queue already fully sent
	}
	e.queue = nil
}
