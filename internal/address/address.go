// Package address models a peer address: a 32-byte opaque value plus its
// cached hash, the only form ever placed on the wire.
package address

import (
	"crypto/rand"

	"meshcourier/internal/hashid"
)

// Size is the length in bytes of both the raw value and its hash.
const Size = hashid.Size

// Address is one entry in the mesh's identity space. Value is generated
// once, uniformly at random, and persisted; Hashed is a deterministic
// function of Value shared by every peer.
type Address struct {
	Value  [Size]byte
	Hashed [Size]byte
	IsOwn  bool
	// Name is an optional display string resolved from an external
	// address book; it is never placed on the wire.
	Name string
}

// New generates a fresh random address (Value uniformly random, Hashed
// derived from it).
func New() (Address, error) {
	var a Address
	if _, err := rand.Read(a.Value[:]); err != nil {
		return Address{}, err
	}
	a.Hashed = hashid.Sum(a.Value[:])
	return a, nil
}

// FromValue rebuilds an Address (and its hash) from a previously
// persisted raw value.
func FromValue(value [Size]byte) Address {
	return Address{Value: value, Hashed: hashid.Sum(value[:])}
}
