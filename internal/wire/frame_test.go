package wire

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	cb, _ := New(ProtocolEpidemic, DCFlood, 0)
	f := Frame{
		ControlByte:   cb,
		SentTimestamp: EncodeTimestamp(1700000000),
		Message:       "hi",
	}
	for i := range f.HashedID {
		f.HashedID[i] = byte(i)
	}
	for i := range f.HashedDestinationAddress {
		f.HashedDestinationAddress[i] = byte(i + 1)
	}
	for i := range f.HashedSourceAddress {
		f.HashedSourceAddress[i] = byte(i + 2)
	}

	encoded := Encode(f)
	if len(encoded) != MinNotificationLength+len("hi") {
		t.Fatalf("unexpected encoded length %d", len(encoded))
	}

	parsed, err := Parse(encoded)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	reEncoded := Encode(parsed)
	if !bytes.Equal(encoded, reEncoded) {
		t.Fatalf("Encode(Parse(b)) != b")
	}
	if parsed.Message != "hi" {
		t.Fatalf("message = %q, want %q", parsed.Message, "hi")
	}
	if DecodeTimestamp(parsed.SentTimestamp) != 1700000000 {
		t.Fatalf("timestamp mismatch")
	}
}

func TestParseTooShort(t *testing.T) {
	b := make([]byte, MinNotificationLength-1)
	if _, err := Parse(b); err != ErrFrameTooShort {
		t.Fatalf("Parse(104 bytes) = %v, want ErrFrameTooShort", err)
	}
	ok := make([]byte, MinNotificationLength)
	if _, err := Parse(ok); err != nil {
		t.Fatalf("Parse(105 bytes) should succeed: %v", err)
	}
}

func TestParseInvalidUTF8Message(t *testing.T) {
	b := make([]byte, MinNotificationLength+2)
	b[MinNotificationLength] = 0xff
	b[MinNotificationLength+1] = 0xfe
	f, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Message != "" {
		t.Fatalf("invalid UTF-8 should decode to empty string, got %q", f.Message)
	}
}

func TestSentinelFrame(t *testing.T) {
	s := Sentinel()
	if len(s) != MinNotificationLength {
		t.Fatalf("sentinel length = %d, want %d", len(s), MinNotificationLength)
	}
	cb := Unpack(s[0])
	if !cb.IsSentinel() {
		t.Fatalf("sentinel control byte should report IsSentinel")
	}
	for _, b := range s[1:] {
		if b != 0 {
			t.Fatalf("sentinel tail should be all zero")
		}
	}
}
