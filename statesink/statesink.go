// Package statesink persists the engine's serialized state tuple across
// process upgrades. The core treats persistent memory as an external
// collaborator (spec.md §1: "the persistent-memory primitives used to
// survive process upgrades, treated as a serialization sink/source") — it
// only needs to durably set and later retrieve one opaque blob per
// upgrade boundary. Sink provides that blob store on local disk, grounded
// on node/store/manifest.go's atomic-write discipline.
package statesink

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

var magic = [4]byte{'I', 'C', 'R', '3'}

// Sink is a single-slot, crash-safe blob store: one state.bin file per
// data directory, replaced wholesale on every Save.
type Sink struct {
	path string
}

func Open(dataDir string) (*Sink, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("statesink: data dir required")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("statesink: mkdir: %w", err)
	}
	return &Sink{path: filepath.Join(dataDir, "state.bin")}, nil
}

// Save atomically replaces the persisted blob: write temp -> fsync temp ->
// rename -> fsync dir (node/store/manifest.go's writeManifestAtomic
// pattern).
func (s *Sink) Save(blob []byte) error {
	header := make([]byte, 8)
	copy(header[:4], magic[:])
	binary.BigEndian.PutUint32(header[4:8], uint32(len(blob)))

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("statesink: open tmp: %w", err)
	}
	_, werr := f.Write(header)
	if werr == nil {
		_, werr = f.Write(blob)
	}
	serr := f.Sync()
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("statesink: write tmp: %w", werr)
	}
	if serr != nil {
		return fmt.Errorf("statesink: fsync tmp: %w", serr)
	}
	if cerr != nil {
		return fmt.Errorf("statesink: close tmp: %w", cerr)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("statesink: rename: %w", err)
	}

	dir, err := os.Open(filepath.Dir(s.path))
	if err != nil {
		return fmt.Errorf("statesink: fsync dir open: %w", err)
	}
	if err := dir.Sync(); err != nil {
		_ = dir.Close()
		return fmt.Errorf("statesink: fsync dir: %w", err)
	}
	return dir.Close()
}

// Load reads back the persisted blob. ok is false if nothing has been
// saved yet (a fresh data directory, e.g. first-ever init_icrc3).
func (s *Sink) Load() (blob []byte, ok bool, err error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("statesink: read: %w", err)
	}
	if len(raw) < 8 {
		return nil, false, fmt.Errorf("statesink: truncated header")
	}
	if [4]byte(raw[:4]) != magic {
		return nil, false, fmt.Errorf("statesink: bad magic")
	}
	length := binary.BigEndian.Uint32(raw[4:8])
	if uint32(len(raw)-8) != length {
		return nil, false, fmt.Errorf("statesink: length mismatch")
	}
	return raw[8:], true, nil
}
