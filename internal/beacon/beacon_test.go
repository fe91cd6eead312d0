package beacon

import (
	"net"
	"testing"
	"time"
)

func TestListenPortOnly(t *testing.T) {
	cases := map[string]string{
		"0.0.0.0:4001": ":4001",
		":4001":        ":4001",
		"not-an-addr":  "not-an-addr",
	}
	for in, want := range cases {
		if got := listenPortOnly(in); got != want {
			t.Errorf("listenPortOnly(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeListenFromPong(t *testing.T) {
	from := &net.UDPAddr{IP: net.ParseIP("192.168.1.7"), Port: 55000}

	got := normalizeListenFromPong(from, ":4001")
	if want := "192.168.1.7:4001"; got != want {
		t.Errorf("normalizeListenFromPong with bare port = %q, want %q", got, want)
	}

	got = normalizeListenFromPong(from, "10.0.0.5:4001")
	if want := "10.0.0.5:4001"; got != want {
		t.Errorf("normalizeListenFromPong with explicit host = %q, want %q", got, want)
	}

	if got := normalizeListenFromPong(from, "garbage"); got != "" {
		t.Errorf("normalizeListenFromPong with unparsable listen = %q, want empty", got)
	}
}

func TestInterfaceBroadcastAddrsRunsWithoutError(t *testing.T) {
	// Exercises the real network interface enumeration; on a sandboxed
	// CI host this may return only the IPv4 broadcast fallback, which
	// is a valid result.
	addrs := interfaceBroadcastAddrs(DefaultPort)
	if len(addrs) == 0 {
		t.Fatal("interfaceBroadcastAddrs returned no targets, want at least the fallback")
	}
	for _, a := range addrs {
		if a.Port != DefaultPort {
			t.Errorf("broadcast addr %v has wrong port", a)
		}
	}
}

func TestEstimateRSSIMonotonicWithLatency(t *testing.T) {
	fast := estimateRSSI(0)
	mid := estimateRSSI(50 * time.Millisecond)
	slow := estimateRSSI(200 * time.Millisecond)
	verySlow := estimateRSSI(time.Second)

	if !(fast > mid && mid > slow) {
		t.Fatalf("estimateRSSI should weaken with latency: fast=%d mid=%d slow=%d", fast, mid, slow)
	}
	if slow != verySlow {
		t.Fatalf("estimateRSSI should floor at the weak RTT value, got slow=%d verySlow=%d", slow, verySlow)
	}
	if fast != -30 {
		t.Fatalf("estimateRSSI(0) = %d, want the strong-signal ceiling -30", fast)
	}
	if slow != -128 {
		t.Fatalf("estimateRSSI at or beyond the weak threshold = %d, want -128", slow)
	}
}

func TestFreshTagChangesEveryCall(t *testing.T) {
	a := freshTag()
	b := freshTag()
	if a == "" || b == "" {
		t.Fatal("freshTag returned empty string")
	}
	if a == b {
		t.Fatalf("freshTag returned the same tag twice: %q", a)
	}
	if len(a) > 8 || len(b) > 8 {
		t.Fatalf("freshTag exceeded 8 characters: %q, %q", a, b)
	}
}
