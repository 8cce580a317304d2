package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir mirrors the teacher's home-relative default (node/config.go
// DefaultDataDir), renamed to this project's state directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".icrc3-ledger"
	}
	return filepath.Join(home, ".icrc3-ledger")
}
