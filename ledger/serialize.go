package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/BitySA/dfinity-rust-libraries/archive"
	"github.com/BitySA/dfinity-rust-libraries/config"
	"github.com/BitySA/dfinity-rust-libraries/value"
)

// StateVersion is the leading version tag for a serialized EngineState
// (spec.md §6: "No schema versioning beyond a leading version tag").
const StateVersion uint32 = 1

type encodedBlock struct {
	Id    uint64
	Block []byte
}

type encodedWindowEntry struct {
	Hash    [32]byte
	BlockId uint64
	Ts      uint64
}

type encodedPreparedEntry struct {
	Hash       [32]byte
	PreparedAt uint64
}

type encodedState struct {
	Version   uint32
	Blocks    []encodedBlock
	NextId    uint64
	TipHash   [32]byte
	LogLength uint64
	Window    []encodedWindowEntry
	Prepared  []encodedPreparedEntry
	Archive   archive.ManagerState
	Config    config.Config
}

// Encode renders an EngineState as the opaque blob persisted across
// upgrades (spec.md §6 persistent state layout). value.V fields have no
// exported structure of their own, so each block is flattened through
// value.Encode first.
func (s EngineState) Encode() ([]byte, error) {
	enc := encodedState{
		Version:   StateVersion,
		NextId:    s.Log.nextId,
		TipHash:   s.Log.tipHash,
		LogLength: s.Log.logLength,
		Archive:   s.Archive,
		Config:    s.Config,
	}
	for _, bw := range s.Log.blocks {
		enc.Blocks = append(enc.Blocks, encodedBlock{Id: bw.Id, Block: value.Encode(bw.Block)})
	}
	for hash, entry := range s.Window {
		enc.Window = append(enc.Window, encodedWindowEntry{Hash: hash, BlockId: entry.blockId, Ts: entry.ts})
	}
	for hash, preparedAt := range s.Prepared {
		enc.Prepared = append(enc.Prepared, encodedPreparedEntry{Hash: hash, PreparedAt: preparedAt})
	}
	return json.Marshal(enc)
}

// DecodeEngineState is the inverse of EngineState.Encode, used by
// replace_state after an upgrade.
func DecodeEngineState(b []byte) (EngineState, error) {
	var enc encodedState
	if err := json.Unmarshal(b, &enc); err != nil {
		return EngineState{}, fmt.Errorf("ledger: decode state: %w", err)
	}
	if enc.Version > StateVersion {
		return EngineState{}, fmt.Errorf("ledger: state version %d > supported %d", enc.Version, StateVersion)
	}

	log := LogState{nextId: enc.NextId, tipHash: enc.TipHash, logLength: enc.LogLength}
	for _, eb := range enc.Blocks {
		v, err := value.Decode(eb.Block)
		if err != nil {
			return EngineState{}, fmt.Errorf("ledger: decode block %d: %w", eb.Id, err)
		}
		log.blocks = append(log.blocks, BlockWithId{Id: eb.Id, Block: v})
	}

	window := make(map[[32]byte]windowEntry, len(enc.Window))
	for _, w := range enc.Window {
		window[w.Hash] = windowEntry{blockId: w.BlockId, ts: w.Ts}
	}

	prepared := make(map[[32]byte]uint64, len(enc.Prepared))
	for _, p := range enc.Prepared {
		prepared[p.Hash] = p.PreparedAt
	}

	return EngineState{Log: log, Window: window, Prepared: prepared, Archive: enc.Archive, Config: enc.Config}, nil
}
