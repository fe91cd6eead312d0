// Package engine drives the single-threaded-cooperative notification
// engine: the receive pipeline, the per-peer transmit queue protocol,
// and the embedder-facing API, all parameterised by one Strategy value
// fixed at construction (§4, §5, §6.2).
//
// The engine owns the store and the receive set exclusively; transport
// callbacks and embedder calls are serialized behind a single mutex, the
// way the teacher's p2p.Node serializes its peer map behind n.mu — the
// effect is the same "one logical thread owns this state" invariant the
// protocol requires, realized with a lock instead of an actor mailbox.
package engine

import (
	"errors"
	"sync"

	"github.com/mr-tron/base58"

	"meshcourier/internal/address"
	"meshcourier/internal/notification"
	"meshcourier/internal/store"
	"meshcourier/internal/strategy"
	"meshcourier/internal/telemetry"
	"meshcourier/internal/transport"
	"meshcourier/internal/wire"
)

// ErrMessageTooLong is returned by Send when message exceeds
// MaxMessageLength for the configured transport MTU.
var ErrMessageTooLong = errors.New("engine: message exceeds max message length")

// AddressBook resolves a display name for a known address, and lists
// known contacts. It is an external collaborator (§9 design notes);
// the engine never owns it.
type AddressBook interface {
	NameFor(hashed [32]byte) (string, bool)
	Contacts() []address.Address
}

// Config configures a new Engine.
type Config struct {
	Store                 store.Store
	Strategy              strategy.Strategy
	Self                  address.Address
	AddressBook           AddressBook
	Logger                telemetry.Logger
	MaxNotificationLength int // MTU; must be >= wire.MinNotificationLength
}

// Engine is the single, protocol-agnostic driver shared by all three
// strategies.
type Engine struct {
	mu sync.Mutex

	st       store.Store
	strat    strategy.Strategy
	self     address.Address
	books    AddressBook
	logger   telemetry.Logger
	maxLen   int
	rssiMin  int8

	receivedHashedIDs map[[32]byte]struct{}
	inbox             []notification.Notification

	link  transport.Link
	queue []queueEntry
}

type queueEntry struct {
	id   [32]byte
	sent bool
}

// DefaultRSSIThreshold accepts every link regardless of signal strength.
const DefaultRSSIThreshold int8 = -128

// New constructs an Engine, seeding the receive set from the store's
// full history (§3 "Receive set: populated at startup from the store").
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("engine: Store is required")
	}
	if cfg.Strategy == nil {
		return nil, errors.New("engine: Strategy is required")
	}
	if cfg.MaxNotificationLength < wire.MinNotificationLength {
		return nil, errors.New("engine: MaxNotificationLength below protocol minimum")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Nop()
	}

	ids, err := cfg.Store.FetchAllHashedIDs()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		st:                cfg.Store,
		strat:             cfg.Strategy,
		self:              cfg.Self,
		books:             cfg.AddressBook,
		logger:            logger,
		maxLen:            cfg.MaxNotificationLength,
		rssiMin:           DefaultRSSIThreshold,
		receivedHashedIDs: ids,
	}

	inbox, err := cfg.Store.FetchAllFor(cfg.Self.Hashed)
	if err != nil {
		return nil, err
	}
	for _, n := range inbox {
		if !n.Transmittable() {
			e.inbox = append(e.inbox, n)
		}
	}

	return e, nil
}

// SetLink attaches the transport for the currently connected peer. The
// engine calls Link methods only while a link is set; set it to nil when
// the peer disconnects so a late TransmitNotifications doesn't reach a
// dead link.
func (e *Engine) SetLink(link transport.Link) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.link = link
	e.queue = nil // a new peer means a fresh transmit queue, per §4.5/§5 cancellation rules
}

// Address returns this engine's own address.
func (e *Engine) Address() address.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.self
}

// Contacts returns the known address book minus self.
func (e *Engine) Contacts() []address.Address {
	e.mu.Lock()
	books := e.books
	self := e.self
	e.mu.Unlock()

	if books == nil {
		return nil
	}
	all := books.Contacts()
	out := make([]address.Address, 0, len(all))
	for _, a := range all {
		if a.Hashed != self.Hashed {
			out = append(out, a)
		}
	}
	return out
}

// Inbox returns every notification ever delivered to this engine.
func (e *Engine) Inbox() []notification.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]notification.Notification, len(e.inbox))
	copy(out, e.inbox)
	return out
}

// ReceivedHashedIDs returns a snapshot of the permanent duplicate-
// suppression set.
func (e *Engine) ReceivedHashedIDs() map[[32]byte]struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[[32]byte]struct{}, len(e.receivedHashedIDs))
	for id := range e.receivedHashedIDs {
		out[id] = struct{}{}
	}
	return out
}

// MaxMessageLength is maxNotificationLength - minNotificationLength.
func (e *Engine) MaxMessageLength() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxLen - wire.MinNotificationLength
}

// SetRssiThreshold sets a hint for the transport; it does not affect
// engine behavior directly.
func (e *Engine) SetRssiThreshold(v int8) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rssiMin = v
}

// RssiThreshold returns the currently configured hint.
func (e *Engine) RssiThreshold() int8 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rssiMin
}

// SetNumberOfCopies changes the Spray-and-Wait copy budget. It fails if
// the active strategy isn't Spray-and-Wait, or if L >= 16.
func (e *Engine) SetNumberOfCopies(l uint8) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.strat.(*strategy.SprayAndWait)
	if !ok {
		return errors.New("engine: SetNumberOfCopies only supported by Spray-and-Wait")
	}
	return s.SetNumberOfCopies(l)
}

func (e *Engine) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

// advertiseLocked generates a fresh 8-character base58 tag from a fresh
// random address and asks the transport to republish presence, per
// §6.1. Called with the lock already held.
func (e *Engine) advertiseLocked() {
	if e.link == nil {
		return
	}
	fresh, err := address.New()
	if err != nil {
		e.logf("advertise: failed to generate fresh address: %v", err)
		return
	}
	tag := base58.Encode(fresh.Hashed[:])
	if len(tag) > 8 {
		tag = tag[:8]
	}
	e.link.Advertise(tag)
}

