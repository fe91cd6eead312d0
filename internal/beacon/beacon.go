// Package beacon discovers nearby meshcourier nodes over a LAN UDP
// broadcast, standing in for the short-range radio presence beacon a
// real opportunistic link would use to find a peer worth connecting
// to before a session begins (§6.1's "advertise" concept, but for
// discovery rather than for the already-connected peer).
package beacon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/mr-tron/base58"
	"golang.org/x/sys/unix"

	"meshcourier/internal/address"
)

// Config controls beacon broadcast/response behavior.
type Config struct {
	Port    int
	Timeout time.Duration
	// RSSIMin discards sightings whose estimated signal strength falls
	// below this, mirroring engine.RssiThreshold (§6.2).
	RSSIMin int8
}

const (
	DefaultPort    = 42142
	DefaultTimeout = 1 * time.Second
)

// DefaultConfig returns the default beacon port, response window, and
// an RSSI floor equal to engine's own DefaultRSSIThreshold, so a fresh
// Config accepts any sighting until the embedder tightens it.
func DefaultConfig() Config {
	return Config{Port: DefaultPort, Timeout: DefaultTimeout, RSSIMin: -128}
}

type wireMessage struct {
	Type   string `json:"type"` // "ping" or "pong"
	Tag    string `json:"tag,omitempty"`
	Listen string `json:"listen"`
	Nonce  int64  `json:"nonce,omitempty"`
}

// Sighting is one peer heard responding to a discovery ping.
type Sighting struct {
	Addr string // dialable TCP address
	Tag  string
	RSSI int8 // estimated from ping/pong round-trip, see estimateRSSI
}

// reusableUDPListener binds port with SO_REUSEADDR/SO_REUSEPORT so a
// responder can share the port with other local processes wanting the
// same discovery channel.
func reusableUDPListener(port int) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(network, _ string, c syscall.RawConn) error {
			if network != "udp4" && network != "udp" {
				return nil
			}
			return c.Control(func(fd uintptr) {
				_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
				_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
		},
	}
	conn, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	udpConn, ok := conn.(*net.UDPConn)
	if !ok {
		conn.Close()
		return nil, errors.New("beacon: listener is not a UDPConn")
	}
	return udpConn, nil
}

// freshTag mints a per-reply presence tag the same way
// engine.advertiseLocked mints one for a transport-level advertisement
// (§6.1): a fresh random address, base58-encoded and cut to 8 chars. A
// responder never answers two pings with the same tag, so a sniffed
// pong is no more linkable to this node's next pong than two unrelated
// advertisements would be.
func freshTag() string {
	fresh, err := address.New()
	if err != nil {
		return ""
	}
	tag := base58.Encode(fresh.Hashed[:])
	if len(tag) > 8 {
		tag = tag[:8]
	}
	return tag
}

// StartResponder listens for discovery pings and replies with a fresh
// presence tag and this node's listen address, until stop is closed.
func StartResponder(stop <-chan struct{}, cfg Config, listenAddr string) error {
	conn, err := reusableUDPListener(cfg.Port)
	if err != nil {
		return fmt.Errorf("beacon responder listen: %w", err)
	}
	go respondLoop(stop, conn, listenAddr)
	return nil
}

func respondLoop(stop <-chan struct{}, conn *net.UDPConn, listenAddr string) {
	defer conn.Close()
	buf := make([]byte, 1024)

	for {
		select {
		case <-stop:
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}

		var ping wireMessage
		if err := json.Unmarshal(buf[:n], &ping); err != nil || ping.Type != "ping" {
			continue
		}

		pong := wireMessage{
			Type:   "pong",
			Tag:    freshTag(),
			Listen: listenPortOnly(listenAddr),
			Nonce:  ping.Nonce,
		}
		data, err := json.Marshal(pong)
		if err != nil {
			continue
		}
		_, _ = conn.WriteToUDP(data, from)
	}
}

// Discover broadcasts a ping on the LAN and returns every distinct
// peer that answers within cfg.Timeout and at or above cfg.RSSIMin. It
// never connects to them itself; the caller decides what to do with
// the sightings.
func Discover(cfg Config, listenAddr string) ([]Sighting, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("beacon discover listen: %w", err)
	}
	defer conn.Close()

	sentAt := time.Now()
	ping := wireMessage{Type: "ping", Listen: listenAddr, Nonce: sentAt.UnixNano()}
	data, err := json.Marshal(ping)
	if err != nil {
		return nil, fmt.Errorf("beacon discover encode ping: %w", err)
	}

	if err := broadcast(conn, data, cfg.Port); err != nil {
		return nil, fmt.Errorf("beacon discover broadcast: %w", err)
	}

	if err := conn.SetReadDeadline(sentAt.Add(cfg.Timeout)); err != nil {
		return nil, fmt.Errorf("beacon discover set deadline: %w", err)
	}

	return collectPongs(conn, sentAt, listenAddr, cfg.RSSIMin), nil
}

func broadcast(conn *net.UDPConn, data []byte, port int) error {
	for _, dst := range interfaceBroadcastAddrs(port) {
		if _, err := conn.WriteToUDP(data, dst); err != nil {
			var opErr *net.OpError
			if !(errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.EADDRNOTAVAIL)) {
				return err
			}
		}
	}
	_, err := conn.WriteToUDP(data, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	return err
}

func collectPongs(conn *net.UDPConn, sentAt time.Time, listenAddr string, rssiMin int8) []Sighting {
	seen := make(map[string]struct{})
	var out []Sighting
	buf := make([]byte, 1024)

	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			return out
		}
		rtt := time.Since(sentAt)

		var pong wireMessage
		if err := json.Unmarshal(buf[:n], &pong); err != nil || pong.Type != "pong" {
			continue
		}
		full := normalizeListenFromPong(from, pong.Listen)
		if full == "" || full == listenAddr || pong.Listen == listenAddr {
			continue
		}
		if _, exists := seen[full]; exists {
			continue
		}

		rssi := estimateRSSI(rtt)
		if rssi < rssiMin {
			continue
		}

		seen[full] = struct{}{}
		out = append(out, Sighting{Addr: full, Tag: pong.Tag, RSSI: rssi})
	}
}

// estimateRSSI turns a ping/pong round trip into a synthetic signal
// strength hint in the same int8 range as engine.RssiThreshold (§6.2).
// A near-instant LAN reply reads as a strong -30; a reply that takes
// as long as weakRTT or more reads as the weakest possible -128, so
// Discover can apply the same threshold a real radio link would use
// to reject a marginal peer.
func estimateRSSI(rtt time.Duration) int8 {
	const (
		strongRTT = 2 * time.Millisecond
		weakRTT   = 200 * time.Millisecond
	)
	switch {
	case rtt <= strongRTT:
		return -30
	case rtt >= weakRTT:
		return -128
	default:
		frac := float64(rtt-strongRTT) / float64(weakRTT-strongRTT)
		return int8(-30 - frac*98)
	}
}

func interfaceBroadcastAddrs(port int) []*net.UDPAddr {
	ifaces, err := net.Interfaces()
	if err != nil {
		return []*net.UDPAddr{{IP: net.IPv4bcast, Port: port}}
	}

	var out []*net.UDPAddr
	for _, it := range ifaces {
		if it.Flags&net.FlagUp == 0 || it.Flags&net.FlagPointToPoint != 0 {
			continue
		}
		addrs, err := it.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if dst := broadcastFor(a, port); dst != nil {
				out = append(out, dst)
			}
		}
	}
	if len(out) == 0 {
		out = append(out, &net.UDPAddr{IP: net.IPv4bcast, Port: port})
	}
	return out
}

// broadcastFor computes the directed-broadcast address (ip | ^mask)
// for one interface address, or nil if it isn't a usable IPv4 subnet.
func broadcastFor(a net.Addr, port int) *net.UDPAddr {
	ipnet, ok := a.(*net.IPNet)
	if !ok || ipnet.IP == nil {
		return nil
	}
	ip4 := ipnet.IP.To4()
	if ip4 == nil || len(ipnet.Mask) != 4 {
		return nil
	}
	mask := ipnet.Mask
	ip := net.IPv4(ip4[0]|^mask[0], ip4[1]|^mask[1], ip4[2]|^mask[2], ip4[3]|^mask[3])
	return &net.UDPAddr{IP: ip, Port: port}
}

func listenPortOnly(listenAddr string) string {
	_, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return listenAddr
	}
	return ":" + port
}

func normalizeListenFromPong(from *net.UDPAddr, listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return ""
	}
	if host == "" {
		host = from.IP.String()
	}
	return net.JoinHostPort(host, port)
}
