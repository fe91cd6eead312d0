// Package noisetransport is the reference transport.Link: one
// Noise_XX-secured TCP stream per connected peer, framed with a
// one-byte type tag ahead of each notification, acknowledgement, or
// advertisement payload.
package noisetransport

import (
	"fmt"
	"io"
	"sync"

	"meshcourier/internal/crypto/noiseconn"
	"meshcourier/internal/netx"
	"meshcourier/internal/telemetry"
	"meshcourier/internal/transport"
)

const (
	frameTypeNotification byte = 1
	frameTypeAck          byte = 2
	frameTypeAdvertise    byte = 3
)

const outboxCapacity = 32

// Link is a live session with one peer, secured over a netx.Conn.
type Link struct {
	conn     *noiseconn.SecureConn
	mtu      int
	logger   telemetry.Logger
	receiver transport.Receiver

	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to addr over net, runs the Noise_XX handshake as
// initiator, and starts servicing r with inbound frames.
func Dial(net netx.Network, addr netx.Addr, staticPriv, staticPub []byte, mtu int, r transport.Receiver, logger telemetry.Logger) (*Link, error) {
	c, err := net.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("noisetransport: dial: %w", err)
	}
	secure, err := noiseconn.NewSecureClient(c, staticPriv, staticPub)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("noisetransport: handshake: %w", err)
	}
	return newLink(secure, mtu, r, logger), nil
}

// Accept completes an inbound connection's Noise_XX handshake as
// responder and starts servicing r with inbound frames.
func Accept(c netx.Conn, staticPriv, staticPub []byte, mtu int, r transport.Receiver, logger telemetry.Logger) (*Link, error) {
	secure, err := noiseconn.NewSecureServer(c, staticPriv, staticPub)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("noisetransport: handshake: %w", err)
	}
	return newLink(secure, mtu, r, logger), nil
}

func newLink(secure *noiseconn.SecureConn, mtu int, r transport.Receiver, logger telemetry.Logger) *Link {
	if logger == nil {
		logger = telemetry.Nop()
	}
	l := &Link{
		conn:     secure,
		mtu:      mtu,
		logger:   logger,
		receiver: r,
		out:      make(chan []byte, outboxCapacity),
		closed:   make(chan struct{}),
	}
	go l.writeLoop()
	go l.readLoop()
	return l
}

var _ transport.Link = (*Link)(nil)

func (l *Link) MaxNotificationLength() int { return l.mtu }

// Send queues frame for the write loop, reporting back-pressure once
// outboxCapacity frames are already queued.
func (l *Link) Send(frame []byte) bool {
	payload := make([]byte, 1+len(frame))
	payload[0] = frameTypeNotification
	copy(payload[1:], frame)
	select {
	case l.out <- payload:
		return true
	default:
		return false
	}
}

func (l *Link) Acknowledge(hashedID [32]byte) {
	payload := make([]byte, 1+32)
	payload[0] = frameTypeAck
	copy(payload[1:], hashedID[:])
	select {
	case l.out <- payload:
	default:
		l.logger.Printf("noisetransport: dropping acknowledgement, outbox full")
	}
}

func (l *Link) Advertise(tag string) {
	payload := append([]byte{frameTypeAdvertise}, []byte(tag)...)
	select {
	case l.out <- payload:
	default:
		l.logger.Printf("noisetransport: dropping advertisement, outbox full")
	}
}

func (l *Link) Disconnect() {
	l.closeOnce.Do(func() {
		close(l.closed)
		l.conn.Close()
	})
}

func (l *Link) writeLoop() {
	for {
		select {
		case <-l.closed:
			return
		case payload := <-l.out:
			if _, err := l.conn.Write(payload); err != nil {
				l.logger.Printf("noisetransport: write failed: %v", err)
				l.Disconnect()
				return
			}
		}
	}
}

func (l *Link) readLoop() {
	buf := make([]byte, l.mtu+1)
	for {
		n, err := l.conn.Read(buf)
		if err != nil {
			if err != io.EOF {
				l.logger.Printf("noisetransport: read failed: %v", err)
			}
			l.Disconnect()
			return
		}
		if n == 0 {
			continue
		}
		typ, body := buf[0], buf[1:n]
		switch typ {
		case frameTypeNotification:
			l.receiver.ReceiveNotification(append([]byte(nil), body...))
		case frameTypeAck:
			l.receiver.ReceiveAcknowledgement(append([]byte(nil), body...))
		case frameTypeAdvertise:
			l.logger.Printf("noisetransport: peer advertised tag %q", string(body))
		default:
			l.logger.Printf("noisetransport: unknown frame type %d, dropping", typ)
		}
	}
}
