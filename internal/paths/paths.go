// Package paths resolves the per-user directory meshcourier persists
// its store, address book, and identity into.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

var (
	once    sync.Once
	dataDir string
)

// Dir returns the directory where meshcourier stores its local state.
//
// Precedence:
//  1. MESHCOURIER_DATA_DIR env var (absolute or relative)
//  2. os.UserConfigDir, if available
//  3. a ".meshcourier" directory beside the executable, or inside the
//     current working directory when running via `go run` (a temp
//     go-build binary has no stable directory of its own to anchor to)
//     or when the executable's path cannot be determined
//
// The returned directory is created if it does not exist.
func Dir() string {
	once.Do(func() {
		if v := strings.TrimSpace(os.Getenv("MESHCOURIER_DATA_DIR")); v != "" {
			dataDir = filepath.Clean(v)
			_ = os.MkdirAll(dataDir, 0o700)
			return
		}

		if dir, err := os.UserConfigDir(); err == nil && dir != "" {
			dataDir = filepath.Join(dir, "meshcourier")
			_ = os.MkdirAll(dataDir, 0o700)
			return
		}

		exe, err := os.Executable()
		if err != nil {
			dataDir = cwdDataDir()
			return
		}
		exe = filepath.Clean(exe)
		base := filepath.Dir(exe)
		if looksLikeGoRunTempBinary(exe) {
			base = mustGetwd()
		}
		dataDir = filepath.Join(base, ".meshcourier")
		_ = os.MkdirAll(dataDir, 0o700)
	})
	return dataDir
}

// Path returns the path to a file inside Dir(), ensuring the file's
// parent directory exists. It is relative when Dir() is (a relative
// MESHCOURIER_DATA_DIR is used as given).
func Path(filename string) string {
	p := filepath.Join(Dir(), filepath.Clean(filename))
	_ = os.MkdirAll(filepath.Dir(p), 0o700)
	return p
}

func cwdDataDir() string {
	d := filepath.Join(mustGetwd(), ".meshcourier")
	_ = os.MkdirAll(d, 0o700)
	return d
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func looksLikeGoRunTempBinary(exe string) bool {
	lower := strings.ToLower(exe)
	if strings.Contains(lower, string(filepath.Separator)+"go-build") {
		return true
	}
	if runtime.GOOS == "windows" {
		return strings.Contains(lower, "\\go-build")
	}
	return false
}
