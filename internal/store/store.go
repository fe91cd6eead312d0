// Package store defines the persistent notification (and address)
// repository consumed by the engine. Concrete backends live in
// subpackages (boltstore, memstore).
package store

import (
	"errors"

	"meshcourier/internal/address"
	"meshcourier/internal/notification"
)

// CurrentSchemaVersion is embedded in every persisted store so a future
// migration can detect and upgrade older layouts. §6.3 specifies no
// schema itself, only that implementations should carry a version tag.
const CurrentSchemaVersion = 1

// ErrNotFound is returned by FetchByHashedID when no record matches.
var ErrNotFound = errors.New("store: not found")

// ErrPersistenceFailure wraps a durable-write failure. The in-memory
// state the caller already has continues to be valid; only the write to
// disk failed, so the record may be lost on restart.
var ErrPersistenceFailure = errors.New("store: persistence failure")

// Store is the durable, single-writer repository of notification
// records, per §4.4, plus the address bookkeeping of §6.3.
type Store interface {
	// Insert upserts a notification by HashedID and auto-saves.
	Insert(n notification.Notification) error

	// FetchByHashedID returns ErrNotFound if no record matches.
	FetchByHashedID(id [32]byte) (notification.Notification, error)

	// FetchAllHashedIDs returns every HashedID ever inserted, used to
	// seed the receive set at startup.
	FetchAllHashedIDs() (map[[32]byte]struct{}, error)

	// FetchAllTransmittable returns every record whose
	// DestinationControl != DCTerminal.
	FetchAllTransmittable() ([]notification.Notification, error)

	// FetchAllFor returns every record addressed to hashedAddr, used to
	// rebuild the inbox.
	FetchAllFor(hashedAddr [32]byte) ([]notification.Notification, error)

	// SetDestinationControl validates and persists a new
	// DestinationControl value for the stored record with the given id.
	SetDestinationControl(id [32]byte, v uint8) error

	// SetSequenceNumber validates and persists a new SequenceNumber
	// value for the stored record with the given id.
	SetSequenceNumber(id [32]byte, v uint8) error

	// SaveAddress persists an address record (own or a known contact).
	SaveAddress(a address.Address) error

	// OwnAddress returns the single address record marked IsOwn, or
	// ErrNotFound if none has been saved yet.
	OwnAddress() (address.Address, error)

	// AllAddresses returns every persisted address record.
	AllAddresses() ([]address.Address, error)

	// SchemaVersion returns the persisted schema version tag. Both
	// backends start at CurrentSchemaVersion; boltstore.Open stamps it
	// into any database that has no tag yet.
	SchemaVersion() (int, error)

	Close() error
}
