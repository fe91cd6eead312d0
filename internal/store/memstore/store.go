// Package memstore is a non-durable Store used by tests and by any
// embedder that doesn't need persistence across restarts. It mirrors the
// semantics of boltstore exactly so engine tests can run against either
// backend interchangeably.
package memstore

import (
	"sync"

	"meshcourier/internal/address"
	"meshcourier/internal/notification"
	"meshcourier/internal/store"
	"meshcourier/internal/wire"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu            sync.Mutex
	notifications map[[32]byte]notification.Notification
	addresses     map[[32]byte]address.Address
	schemaVersion int
}

// New returns an empty Store at the current schema version.
func New() *Store {
	return &Store{
		notifications: make(map[[32]byte]notification.Notification),
		addresses:     make(map[[32]byte]address.Address),
		schemaVersion: store.CurrentSchemaVersion,
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) Insert(n notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.HashedID] = n
	return nil
}

func (s *Store) FetchByHashedID(id [32]byte) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return notification.Notification{}, store.ErrNotFound
	}
	return n, nil
}

func (s *Store) FetchAllHashedIDs() (map[[32]byte]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[[32]byte]struct{}, len(s.notifications))
	for id := range s.notifications {
		out[id] = struct{}{}
	}
	return out, nil
}

func (s *Store) FetchAllTransmittable() ([]notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notification.Notification
	for _, n := range s.notifications {
		if n.Transmittable() {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Store) FetchAllFor(hashedAddr [32]byte) ([]notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notification.Notification
	for _, n := range s.notifications {
		if n.HashedDestinationAddress == hashedAddr {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Store) SetDestinationControl(id [32]byte, v uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return store.ErrNotFound
	}
	cb, err := wire.New(n.ControlByte.Protocol, wire.DestinationControl(v), n.ControlByte.SequenceNumber)
	if err != nil {
		return err
	}
	n.ControlByte = cb
	s.notifications[id] = n
	return nil
}

func (s *Store) SetSequenceNumber(id [32]byte, v uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return store.ErrNotFound
	}
	cb, err := wire.New(n.ControlByte.Protocol, n.ControlByte.DestinationControl, v)
	if err != nil {
		return err
	}
	n.ControlByte = cb
	s.notifications[id] = n
	return nil
}

func (s *Store) SaveAddress(a address.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[a.Hashed] = a
	return nil
}

func (s *Store) OwnAddress() (address.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.addresses {
		if a.IsOwn {
			return a, nil
		}
	}
	return address.Address{}, store.ErrNotFound
}

func (s *Store) AllAddresses() ([]address.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]address.Address, 0, len(s.addresses))
	for _, a := range s.addresses {
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) SchemaVersion() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schemaVersion, nil
}

func (s *Store) Close() error { return nil }
