// Package boltstore is a go.etcd.io/bbolt-backed implementation of
// store.Store, grounded on the teacher's grantsbolt package: one bucket
// keyed by HashedID for the notification itself, one bucket keyed by a
// big-endian sent-timestamp for ordered range scans, a bucket for
// address records, and a meta bucket carrying the schema version tag.
package boltstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"meshcourier/internal/address"
	"meshcourier/internal/notification"
	"meshcourier/internal/store"
	"meshcourier/internal/wire"
)

const (
	bMeta          = "meta"
	bNotifByID     = "notifications_by_id"
	bNotifByTS     = "notifications_by_ts"
	bAddresses     = "addresses"
	kSchemaVersion = "schema_version"

	defaultTimeout = 2 * time.Second
)

// Store is a bbolt-backed store.Store.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) a bbolt database at path, auto-saving every
// write per §4.4's "auto-saves on insert".
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("boltstore: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: defaultTimeout})
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bMeta, bNotifByID, bNotifByTS, bAddresses} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		meta := tx.Bucket([]byte(bMeta))
		if meta.Get([]byte(kSchemaVersion)) == nil {
			return meta.Put([]byte(kSchemaVersion), encodeI64(int64(store.CurrentSchemaVersion)))
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

type wireRecord struct {
	ControlByte   byte   `json:"cb"`
	HashedID      []byte `json:"id"`
	HashedDest    []byte `json:"dest"`
	HashedSource  []byte `json:"src"`
	SentTimestamp []byte `json:"ts"`
	Message       string `json:"msg"`
}

func toWireRecord(n notification.Notification) wireRecord {
	return wireRecord{
		ControlByte:   n.ControlByte.Pack(),
		HashedID:      n.HashedID[:],
		HashedDest:    n.HashedDestinationAddress[:],
		HashedSource:  n.HashedSourceAddress[:],
		SentTimestamp: n.SentTimestamp[:],
		Message:       n.Message,
	}
}

func fromWireRecord(r wireRecord) notification.Notification {
	var n notification.Notification
	n.ControlByte = wire.Unpack(r.ControlByte)
	copy(n.HashedID[:], r.HashedID)
	copy(n.HashedDestinationAddress[:], r.HashedDest)
	copy(n.HashedSourceAddress[:], r.HashedSource)
	copy(n.SentTimestamp[:], r.SentTimestamp)
	n.Message = r.Message
	return n
}

func (s *Store) Insert(n notification.Notification) error {
	val, err := json.Marshal(toWireRecord(n))
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		byID := tx.Bucket([]byte(bNotifByID))
		byTS := tx.Bucket([]byte(bNotifByTS))

		if err := byID.Put(n.HashedID[:], val); err != nil {
			return err
		}
		return byTS.Put(tsKey(n.SentTimestamp, n.HashedID), nil)
	})
	if err != nil {
		return errors.Join(store.ErrPersistenceFailure, err)
	}
	return nil
}

func (s *Store) FetchByHashedID(id [32]byte) (notification.Notification, error) {
	var n notification.Notification
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(bNotifByID)).Get(id[:])
		if raw == nil {
			return nil
		}
		var r wireRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		n = fromWireRecord(r)
		found = true
		return nil
	})
	if err != nil {
		return notification.Notification{}, err
	}
	if !found {
		return notification.Notification{}, store.ErrNotFound
	}
	return n, nil
}

func (s *Store) FetchAllHashedIDs() (map[[32]byte]struct{}, error) {
	out := make(map[[32]byte]struct{})
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bNotifByID)).ForEach(func(k, _ []byte) error {
			var id [32]byte
			copy(id[:], k)
			out[id] = struct{}{}
			return nil
		})
	})
	return out, err
}

func (s *Store) FetchAllTransmittable() ([]notification.Notification, error) {
	var out []notification.Notification
	err := s.forEachByTimestamp(func(n notification.Notification) error {
		if n.Transmittable() {
			out = append(out, n)
		}
		return nil
	})
	return out, err
}

func (s *Store) FetchAllFor(hashedAddr [32]byte) ([]notification.Notification, error) {
	var out []notification.Notification
	err := s.forEachByTimestamp(func(n notification.Notification) error {
		if n.HashedDestinationAddress == hashedAddr {
			out = append(out, n)
		}
		return nil
	})
	return out, err
}

func (s *Store) forEachByTimestamp(fn func(notification.Notification) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		byTS := tx.Bucket([]byte(bNotifByTS))
		byID := tx.Bucket([]byte(bNotifByID))
		c := byTS.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			id := splitTSKey(k)
			raw := byID.Get(id[:])
			if raw == nil {
				continue
			}
			var r wireRecord
			if err := json.Unmarshal(raw, &r); err != nil {
				continue // corruption: keep scanning rather than bricking the store
			}
			if err := fn(fromWireRecord(r)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) mutateControlByte(id [32]byte, mutate func(wire.ControlByte) (wire.ControlByte, error)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		byID := tx.Bucket([]byte(bNotifByID))
		raw := byID.Get(id[:])
		if raw == nil {
			return store.ErrNotFound
		}
		var r wireRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		cb, err := mutate(wire.Unpack(r.ControlByte))
		if err != nil {
			return err
		}
		r.ControlByte = cb.Pack()
		val, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return byID.Put(id[:], val)
	})
}

func (s *Store) SetDestinationControl(id [32]byte, v uint8) error {
	return s.mutateControlByte(id, func(cb wire.ControlByte) (wire.ControlByte, error) {
		return wire.New(cb.Protocol, wire.DestinationControl(v), cb.SequenceNumber)
	})
}

func (s *Store) SetSequenceNumber(id [32]byte, v uint8) error {
	return s.mutateControlByte(id, func(cb wire.ControlByte) (wire.ControlByte, error) {
		return wire.New(cb.Protocol, cb.DestinationControl, v)
	})
}

type addressRecord struct {
	Value [32]byte `json:"value"`
	IsOwn bool     `json:"is_own"`
	Name  string   `json:"name"`
}

func (s *Store) SaveAddress(a address.Address) error {
	rec := addressRecord{Value: a.Value, IsOwn: a.IsOwn, Name: a.Name}
	val, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bAddresses)).Put(a.Hashed[:], val)
	})
}

func (s *Store) OwnAddress() (address.Address, error) {
	var found address.Address
	ok := false
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bAddresses)).ForEach(func(k, v []byte) error {
			var rec addressRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil
			}
			if rec.IsOwn {
				a := address.FromValue(rec.Value)
				a.IsOwn = true
				a.Name = rec.Name
				found = a
				ok = true
			}
			return nil
		})
	})
	if err != nil {
		return address.Address{}, err
	}
	if !ok {
		return address.Address{}, store.ErrNotFound
	}
	return found, nil
}

func (s *Store) AllAddresses() ([]address.Address, error) {
	var out []address.Address
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bAddresses)).ForEach(func(k, v []byte) error {
			var rec addressRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil
			}
			a := address.FromValue(rec.Value)
			a.IsOwn = rec.IsOwn
			a.Name = rec.Name
			out = append(out, a)
			return nil
		})
	})
	return out, err
}

func (s *Store) SchemaVersion() (int, error) {
	var v int64
	err := s.db.View(func(tx *bolt.Tx) error {
		v = decodeI64(tx.Bucket([]byte(bMeta)).Get([]byte(kSchemaVersion)))
		return nil
	})
	return int(v), err
}

func tsKey(ts [8]byte, hashedID [32]byte) []byte {
	b := make([]byte, 8+32)
	copy(b[:8], ts[:])
	copy(b[8:], hashedID[:])
	return b
}

func splitTSKey(k []byte) [32]byte {
	var id [32]byte
	if len(k) >= 40 {
		copy(id[:], k[8:40])
	}
	return id
}

func encodeI64(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func decodeI64(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

var _ store.Store = (*Store)(nil)
