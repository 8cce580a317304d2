// Package ledger implements the certified, append-only block log: the Hot
// Log, Dedup/Window Index, Prepared Set, and Certifier, plus the Query
// Federator glue that hands archived ranges off to package archive
// (spec.md §2).
package ledger

import (
	"fmt"
	"sync"

	"github.com/BitySA/dfinity-rust-libraries/archive"
	"github.com/BitySA/dfinity-rust-libraries/config"
	"github.com/BitySA/dfinity-rust-libraries/value"
)

// Engine is the single process-wide owner of L, W, P, A, and C, exposed
// through an explicit init/teardown lifecycle rather than scattered
// singletons (spec.md §9).
type Engine struct {
	mu sync.Mutex

	cfg   config.Config
	clock Clock

	log        *LogState
	window     *windowIndex
	prepared   *preparedSet
	cert       *certifier
	archiveMgr *archive.Manager
}

// PreparedTransaction is returned by PrepareTransaction (spec.md §4.3).
type PreparedTransaction struct {
	ContentHash [32]byte
	PreparedAt  uint64
}

// NewEngine wires a fresh Engine (init_icrc3, spec.md §9). archiveMgr may
// be nil for configurations that never offload (e.g. pure in-memory
// tests); in that case ids are never considered archived.
func NewEngine(cfg config.Config, clock Clock, platform Platform, archiveMgr *archive.Manager) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	e := &Engine{
		cfg:        cfg,
		clock:      clock,
		log:        newLogState(),
		window:     newWindowIndex(uint64(cfg.TxWindow.Nanoseconds())),
		prepared:   newPreparedSet(),
		cert:       newCertifier(platform),
		archiveMgr: archiveMgr,
	}
	e.cert.recertify(e.log.LogLength(), e.log.TipHash())
	return e
}

func (e *Engine) Config() config.Config { return e.cfg }

// checkTimestamp is spec.md §4.3 step 5: a user-supplied timestamp(tx)
// must fall in [now-tx_window, now+permitted_drift], else the transaction
// is rejected as TooOld or CreatedInFuture. Transactions with no user
// timestamp are stamped with now. Shared between append (admit) and
// commit, per §4.3 commit step 4: "Window/throttle check as in append
// steps 4-6" — step 5 is this check.
func (e *Engine) checkTimestamp(tx Transaction, now uint64) (ts uint64, err error) {
	ts = now
	if userTs, ok := tx.Timestamp(); ok {
		driftNs := uint64(e.cfg.PermittedDrift.Nanoseconds())
		windowNs := uint64(e.cfg.TxWindow.Nanoseconds())
		if now >= windowNs && userTs < now-windowNs {
			return 0, ErrTooOld
		}
		if userTs > now+driftNs {
			return 0, ErrCreatedInFuture
		}
		ts = userTs
	}
	return ts, nil
}

// admit performs the shared validation of spec.md §4.3 steps 1-6 (not
// including append itself). now is the admission instant used for window
// and drift checks.
func (e *Engine) admit(tx Transaction, now uint64) (hash [32]byte, ts uint64, err error) {
	btype := tx.BlockType()
	if !e.cfg.SupportsBlockType(btype) {
		return hash, 0, ErrUnsupportedBlockType
	}
	if err := tx.ValidateFields(); err != nil {
		return hash, 0, &InvalidTransactionError{Reason: err.Error()}
	}

	hash = tx.ContentHash()

	e.window.evictBefore(now)
	if blockId, dup := e.window.lookup(hash); dup {
		return hash, 0, &DuplicateError{Of: blockId}
	}

	ts, err = e.checkTimestamp(tx, now)
	if err != nil {
		return hash, 0, err
	}

	if uint64(e.window.len()) >= e.cfg.MaxTransactionsInWindow {
		evictable := false
		windowNs := uint64(e.cfg.TxWindow.Nanoseconds())
		if now >= windowNs {
			cutoff := now - windowNs
			for _, entry := range e.window.byHash {
				if entry.ts < cutoff {
					evictable = true
					break
				}
			}
		}
		if !evictable {
			return hash, 0, ErrThrottled
		}
	}

	return hash, ts, nil
}

// buildAndAppend performs spec.md §4.3 steps 7-9, common to append and
// commit.
func (e *Engine) buildAndAppend(hash [32]byte, btype string, ts uint64, tx value.V) uint64 {
	bw := e.log.appendBlock(btype, ts, tx)
	e.window.record(hash, bw.Id, ts)
	e.cert.recertify(e.log.LogLength(), e.log.TipHash())
	return bw.Id
}

// AddTransaction is icrc3_add_transaction: the direct submission path
// (spec.md §4.3 append).
func (e *Engine) AddTransaction(tx Transaction) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.NowNs()
	hash, ts, err := e.admit(tx, now)
	if err != nil {
		return 0, err
	}
	return e.buildAndAppend(hash, tx.BlockType(), ts, tx.ToValue()), nil
}

// PrepareTransaction is icrc3_prepare_transaction (spec.md §4.3 prepare).
func (e *Engine) PrepareTransaction(tx Transaction) (PreparedTransaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.NowNs()
	hash, _, err := e.admit(tx, now)
	if err != nil {
		return PreparedTransaction{}, err
	}
	if _, already := e.prepared.get(hash); already {
		return PreparedTransaction{}, &DuplicateError{Of: 0}
	}
	e.prepared.insert(hash, now)
	return PreparedTransaction{ContentHash: hash, PreparedAt: now}, nil
}

// CommitPreparedTransaction is icrc3_commit_prepared_transaction
// (spec.md §4.3 commit).
func (e *Engine) CommitPreparedTransaction(tx Transaction, preparedAt uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	hash := tx.ContentHash()
	got, ok := e.prepared.get(hash)
	if !ok || got != preparedAt {
		return 0, ErrNotPrepared
	}

	if !e.cfg.SupportsBlockType(tx.BlockType()) {
		return 0, ErrUnsupportedBlockType
	}
	if err := tx.ValidateFields(); err != nil {
		return 0, &InvalidTransactionError{Reason: err.Error()}
	}

	now := e.clock.NowNs()
	e.window.evictBefore(now)
	if blockId, dup := e.window.lookup(hash); dup {
		return 0, &DuplicateError{Of: blockId}
	}
	ts, err := e.checkTimestamp(tx, now)
	if err != nil {
		return 0, err
	}
	if uint64(e.window.len()) >= e.cfg.MaxTransactionsInWindow {
		return 0, ErrThrottled
	}

	id := e.buildAndAppend(hash, tx.BlockType(), ts, tx.ToValue())
	e.prepared.remove(hash)
	return id, nil
}

// PreparedTransactionsCount is prepared_transactions_count.
func (e *Engine) PreparedTransactionsCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prepared.count()
}

// CleanupExpiredPreparedTransactions is cleanup_expired_prepared_transactions
// (spec.md §4.5). It also opportunistically purges the window index
// (spec.md §4.3: "A purge of expired Window/Prepared entries runs
// opportunistically on every admission and on every offload tick").
func (e *Engine) CleanupExpiredPreparedTransactions() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.NowNs()
	e.window.evictBefore(now)
	return e.prepared.cleanupExpired(now)
}

// GetBlocks is icrc3_get_blocks (spec.md §4.8).
func (e *Engine) GetBlocks(requests []Range) GetBlocksResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.getBlocksLocked(requests)
}

// GetArchives is icrc3_get_archives.
func (e *Engine) GetArchives() []archive.ShardInfo {
	if e.archiveMgr == nil {
		return nil
	}
	return e.archiveMgr.Shards()
}

// ArchiveStatus is the operator-facing shard health snapshot (spec.md §7
// "surfaced via operator-observable state").
func (e *Engine) ArchiveStatus() (archive.Status, bool) {
	if e.archiveMgr == nil {
		return archive.Status{}, false
	}
	return e.archiveMgr.Status(), true
}

// GetTipCertificate is icrc3_get_tip_certificate.
func (e *Engine) GetTipCertificate() Certificate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cert.tipCertificate()
}

// SupportedBlockTypes is icrc3_supported_block_types.
func (e *Engine) SupportedBlockTypes() []config.BlockTypeDescriptor {
	out := make([]config.BlockTypeDescriptor, len(e.cfg.SupportedBlocks))
	copy(out, e.cfg.SupportedBlocks)
	return out
}

// Properties is the payload of icrc3_get_properties. The spec leaves its
// exact shape to the implementer (§9 only fixes get_tip_certificate and
// get_archives precisely); this engine returns the operator-relevant
// config snapshot plus the current log length.
type Properties struct {
	TotalBlockCount      uint64
	SupportedBlocks      []config.BlockTypeDescriptor
	TxWindowNs           uint64
	MaxBlocksPerResponse uint64
}

// GetProperties is icrc3_get_properties.
func (e *Engine) GetProperties() Properties {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Properties{
		TotalBlockCount:      e.log.LogLength(),
		SupportedBlocks:      e.SupportedBlockTypes(),
		TxWindowNs:           uint64(e.cfg.TxWindow.Nanoseconds()),
		MaxBlocksPerResponse: e.cfg.MaxBlocksPerResponse,
	}
}

// TakeOffloadBatch implements archive.LogSource (spec.md §4.7 steps 1-2).
func (e *Engine) TakeOffloadBatch(maxBytes uint64) (archive.Batch, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.window.evictBefore(e.clock.NowNs())
	e.prepared.cleanupExpired(e.clock.NowNs())

	if uint64(e.log.residentLen()) <= e.cfg.MaxUnarchivedTransactions {
		return archive.Batch{}, false
	}

	blocks, encoded, err := e.log.prefixBatch(maxBytes, func(v value.V) ([]byte, error) {
		return value.Encode(v), nil
	})
	if err != nil || len(blocks) == 0 {
		return archive.Batch{}, false
	}

	batch := archive.Batch{
		IdRangeStart: blocks[0].Id,
		LastId:       blocks[len(blocks)-1].Id,
	}
	for i, bw := range blocks {
		batch.Blocks = append(batch.Blocks, archive.BlockWithId{Id: bw.Id, Block: encoded[i]})
		batch.BytesUsed += uint64(len(encoded[i]))
	}
	return batch, true
}

// CommitOffload implements archive.LogSource (spec.md §4.7 step 4).
func (e *Engine) CommitOffload(batch archive.Batch) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log.removePrefix(len(batch.Blocks))
}

// EngineState is the tuple persisted across upgrades (spec.md §6:
// "(LogState, WindowIndex, PreparedSet, ArchiveState, Config)").
type EngineState struct {
	Log      LogState
	Window   map[[32]byte]windowEntry
	Prepared map[[32]byte]uint64
	Archive  archive.ManagerState
	Config   config.Config
}

// TakeState is take_state (spec.md §9): snapshot the engine for upgrade
// persistence.
func (e *Engine) TakeState() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	w := make(map[[32]byte]windowEntry, len(e.window.byHash))
	for k, v := range e.window.byHash {
		w[k] = v
	}
	p := make(map[[32]byte]uint64, len(e.prepared.byHash))
	for k, v := range e.prepared.byHash {
		p[k] = v
	}
	var arch archive.ManagerState
	if e.archiveMgr != nil {
		arch = e.archiveMgr.ExportState()
	}
	return EngineState{Log: *e.log, Window: w, Prepared: p, Archive: arch, Config: e.cfg}
}

// ReplaceState is replace_state (spec.md §9): restore a previously taken
// snapshot, e.g. after an upgrade. Archive bookkeeping is restored against
// whatever shard handles the caller has already reopened (e.g. via
// archive.LocalFactory.ReopenAll); callers without an archive manager, or
// with nothing to reopen, may pass a nil handles map.
func (e *Engine) ReplaceState(s EngineState, archiveHandles map[archive.ShardAddress]archive.Shard) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := config.Validate(s.Config); err != nil {
		return fmt.Errorf("ledger: replace_state: %w", err)
	}
	log := s.Log
	e.log = &log
	e.window = &windowIndex{byHash: s.Window, spanNs: uint64(s.Config.TxWindow.Nanoseconds())}
	if e.window.byHash == nil {
		e.window.byHash = make(map[[32]byte]windowEntry)
	}
	e.prepared = &preparedSet{byHash: s.Prepared}
	if e.prepared.byHash == nil {
		e.prepared.byHash = make(map[[32]byte]uint64)
	}
	if e.archiveMgr != nil {
		e.archiveMgr.RestoreState(s.Archive, archiveHandles)
	}
	e.cfg = s.Config
	e.cert.recertify(e.log.LogLength(), e.log.TipHash())
	return nil
}
