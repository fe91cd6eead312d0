// Package addressbook is a JSON-backed directory mapping known peer
// addresses to display names, external to the engine's own store
// (§9 design notes: the engine never owns address resolution).
package addressbook

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"meshcourier/internal/address"
)

type entry struct {
	Hashed string `json:"hashed"`
	Value  string `json:"value"`
	Name   string `json:"name"`
}

// Book is a JSON file of known contacts, loaded once and saved after
// every mutation.
type Book struct {
	mu      sync.Mutex
	path    string
	entries map[[32]byte]entry
}

// DefaultPath returns ~/.meshcourier-contacts.json, mirroring the
// teacher's peerstore convention of a dotfile in the user's home
// directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".meshcourier-contacts.json")
}

// New loads path if it exists; a missing file is not an error.
func New(path string) (*Book, error) {
	b := &Book{path: path, entries: make(map[[32]byte]entry)}
	if err := b.load(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Book) load() error {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var raw []entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("addressbook: decode: %w", err)
	}
	for _, e := range raw {
		hashed, err := decodeHex32(e.Hashed)
		if err != nil {
			continue
		}
		b.entries[hashed] = e
	}
	return nil
}

func (b *Book) save() error {
	raw := make([]entry, 0, len(b.entries))
	for _, e := range b.entries {
		raw = append(raw, e)
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("addressbook: encode: %w", err)
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, b.path)
}

// Add records a contact's address and display name, persisting
// immediately.
func (b *Book) Add(a address.Address, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[a.Hashed] = entry{
		Hashed: hex.EncodeToString(a.Hashed[:]),
		Value:  hex.EncodeToString(a.Value[:]),
		Name:   name,
	}
	return b.save()
}

// NameFor satisfies engine.AddressBook: it reports the display name
// for a known hashed address.
func (b *Book) NameFor(hashed [32]byte) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[hashed]
	if !ok {
		return "", false
	}
	return e.Name, true
}

// Contacts satisfies engine.AddressBook: every known address, in
// unspecified order.
func (b *Book) Contacts() []address.Address {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]address.Address, 0, len(b.entries))
	for hashed, e := range b.entries {
		value, err := decodeHex32(e.Value)
		if err != nil {
			continue
		}
		a := address.FromValue(value)
		a.Hashed = hashed
		a.Name = e.Name
		out = append(out, a)
	}
	return out
}

func decodeHex32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return out, fmt.Errorf("addressbook: malformed hex value %q", s)
	}
	copy(out[:], b)
	return out, nil
}
