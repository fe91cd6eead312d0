package engine

import (
	"time"

	"meshcourier/internal/wire"
)

// Send creates a fresh notification from this engine's address to dest
// and inserts it into the store, per §6.2. It returns ErrMessageTooLong
// if message exceeds MaxMessageLength for the configured transport MTU.
func (e *Engine) Send(dest [32]byte, message string, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(message) > e.maxLen-wire.MinNotificationLength {
		return ErrMessageTooLong
	}

	n, err := e.strat.Create(e.self.Hashed, dest, message, now)
	if err != nil {
		return err
	}

	e.receivedHashedIDs[n.HashedID] = struct{}{}

	if err := e.st.Insert(n); err != nil {
		e.logf("send: store insert failed: %v", err)
		return err
	}
	e.advertiseLocked()
	return nil
}
