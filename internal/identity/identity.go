// Package identity persists the Noise_XX static keypair a node uses to
// secure its radio links, independent of the mesh address the engine
// uses to route notifications.
package identity

import (
	"crypto/rand"
	"fmt"
	"os"

	"github.com/flynn/noise"
)

// KeyPair is a loaded or freshly generated Noise static keypair.
type KeyPair struct {
	Private []byte
	Public  []byte
}

// LoadOrCreate reads a 64-byte private||public keypair from path,
// generating and persisting a fresh one if the file doesn't exist.
func LoadOrCreate(path string) (KeyPair, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != 64 {
			return KeyPair{}, fmt.Errorf("identity: %s is corrupt (%d bytes, want 64)", path, len(data))
		}
		return KeyPair{Private: data[:32], Public: data[32:]}, nil
	}
	if !os.IsNotExist(err) {
		return KeyPair{}, err
	}

	kp, err := noise.DH25519.GenerateKeypair(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("identity: generate keypair: %w", err)
	}
	out := make([]byte, 0, 64)
	out = append(out, kp.Private...)
	out = append(out, kp.Public...)
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Private: kp.Private, Public: kp.Public}, nil
}
