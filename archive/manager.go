package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ErrArchiveCreationFailed signals exhausted shard-creation retries
// (spec.md §7). It halts the offload job until an operator intervenes.
var ErrArchiveCreationFailed = errors.New("archive: shard creation exhausted retries")

// ErrInsufficientCycles signals the wallet cannot fund shard creation or
// operations (spec.md §5 "Cycles/budget").
var ErrInsufficientCycles = errors.New("archive: insufficient cycles")

// Factory is the platform-provided shard creation flow (spec.md §4.6
// step 2). It receives initial_cycles for the new shard and returns the
// new shard's address and handle; the debit itself is made by Manager
// through its Wallet before CreateShard is called.
type Factory interface {
	CreateShard(ctx context.Context, initialCycles uint64) (ShardAddress, Shard, error)
}

// Wallet tracks the cycles budget debited by shard creation and
// insert_blocks calls (spec.md §5).
type Wallet interface {
	Debit(amount uint64) error
}

// Manager is the Archive Manager (A): the ordered list of shards plus the
// placement algorithm that decides which shard receives the next offload
// batch (spec.md §4.6).
type Manager struct {
	mu      sync.Mutex
	factory Factory
	wallet  Wallet
	logger  *slog.Logger

	maxMemorySizeBytes uint64
	maxRetries         uint32
	initialCycles      uint64
	reservedCycles     uint64

	shards      []ShardInfo // ordered by IdRangeStart
	handles     map[ShardAddress]Shard
	activeIdx   int // index into shards of the active shard, or -1
	retryCount  uint32
	lastFailure error
	halted      bool
}

// NewManager wires the Archive Manager. wallet may be nil for deployments
// that do not model a cycles budget (e.g. pure in-memory tests); in that
// case shard creation and offload calls never debit anything.
func NewManager(factory Factory, wallet Wallet, maxMemorySizeBytes uint64, maxRetries uint32, initialCycles, reservedCycles uint64, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		factory:            factory,
		wallet:             wallet,
		logger:             logger,
		maxMemorySizeBytes: maxMemorySizeBytes,
		maxRetries:         maxRetries,
		initialCycles:      initialCycles,
		reservedCycles:     reservedCycles,
		handles:            make(map[ShardAddress]Shard),
		activeIdx:          -1,
	}
}

// Shards returns a snapshot of the ordered shard list (icrc3_get_archives,
// spec.md §6).
func (m *Manager) Shards() []ShardInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ShardInfo, len(m.shards))
	copy(out, m.shards)
	return out
}

// Halted reports whether the offload job has stopped, either after
// exhausting shard-creation retries (spec.md §4.6 step 3) or after a
// wallet debit failed, together with the error that caused it.
func (m *Manager) Halted() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.halted, m.lastFailure
}

// Status is an operator-facing snapshot of shard health (spec.md §7
// "surfaced via operator-observable state"), modeled on the
// NORMAL/READ_ONLY/FAILED state machine in crypto/hsm_monitor.go:
// active shard address, retry counter, and last failure reason.
type Status struct {
	ActiveShard ShardAddress
	RetryCount  uint32
	Halted      bool
	LastFailure error
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	var active ShardAddress
	if m.activeIdx >= 0 {
		active = m.shards[m.activeIdx].Address
	}
	return Status{
		ActiveShard: active,
		RetryCount:  m.retryCount,
		Halted:      m.halted,
		LastFailure: m.lastFailure,
	}
}

// ShardFor returns the shard owning id, if any (O(log n) via binary search
// over the ordered id ranges, spec.md §4.6).
func (m *Manager) ShardFor(id uint64) (ShardAddress, Shard, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := sort.Search(len(m.shards), func(i int) bool { return m.shards[i].IdRangeEnd > id })
	if i >= len(m.shards) || !m.shards[i].Contains(id) {
		return "", nil, false
	}
	info := m.shards[i]
	return info.Address, m.handles[info.Address], true
}

// RequestCapacity implements the placement algorithm (spec.md §4.6): reuse
// the active shard if it fits the incoming batch, otherwise retire it and
// create a new one. idRangeStart is the id of the first block the new
// shard (if any) will receive.
func (m *Manager) RequestCapacity(ctx context.Context, batchBytes uint64, idRangeStart uint64) (ShardAddress, Shard, error) {
	m.mu.Lock()
	if m.halted {
		err := m.lastFailure
		m.mu.Unlock()
		return "", nil, fmt.Errorf("%w: %v", ErrArchiveCreationFailed, err)
	}
	if m.activeIdx >= 0 {
		active := &m.shards[m.activeIdx]
		if active.BytesUsed+batchBytes <= m.maxMemorySizeBytes {
			addr := active.Address
			h := m.handles[addr]
			m.mu.Unlock()
			return addr, h, nil
		}
		active.Status = ShardFull
		m.activeIdx = -1
	}
	m.mu.Unlock()

	if m.wallet != nil {
		if derr := m.wallet.Debit(m.initialCycles); derr != nil {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.lastFailure = fmt.Errorf("%w: %v", ErrInsufficientCycles, derr)
			m.halted = true
			m.logger.Error("insufficient cycles for shard creation; offload job halting", "error", derr.Error())
			return "", nil, m.lastFailure
		}
	}

	addr, shard, err := m.factory.CreateShard(ctx, m.initialCycles)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.retryCount++
		m.lastFailure = err
		m.logger.Warn("archive shard creation failed", "retry_count", m.retryCount, "max_retries", m.maxRetries, "error", err.Error())
		if m.retryCount >= m.maxRetries {
			m.halted = true
			m.logger.Error("archive creation exhausted retries; offload job halting", "retry_count", m.retryCount)
			return "", nil, fmt.Errorf("%w: %v", ErrArchiveCreationFailed, err)
		}
		return "", nil, err
	}

	m.retryCount = 0
	info := ShardInfo{
		Address:      addr,
		IdRangeStart: idRangeStart,
		IdRangeEnd:   idRangeStart,
		Status:       ShardActive,
	}
	m.shards = append(m.shards, info)
	sort.Slice(m.shards, func(i, j int) bool { return m.shards[i].IdRangeStart < m.shards[j].IdRangeStart })
	for i := range m.shards {
		if m.shards[i].Address == addr {
			m.activeIdx = i
			break
		}
	}
	m.handles[addr] = shard
	return addr, shard, nil
}

// DebitOffloadCycles debits reserved_cycles for one offload call (spec.md
// §5: "each offload call debits reserved_cycles"). Called once per tick,
// before requesting capacity. A nil wallet means cycles accounting is not
// modeled and every call succeeds.
func (m *Manager) DebitOffloadCycles() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wallet == nil {
		return nil
	}
	if m.halted {
		return fmt.Errorf("%w: %v", ErrArchiveCreationFailed, m.lastFailure)
	}
	if err := m.wallet.Debit(m.reservedCycles); err != nil {
		m.lastFailure = fmt.Errorf("%w: %v", ErrInsufficientCycles, err)
		m.halted = true
		m.logger.Error("insufficient cycles for offload call; offload job halting", "error", err.Error())
		return m.lastFailure
	}
	return nil
}

// RecordPlacement updates bookkeeping after a successful insert_blocks
// call (spec.md §4.7 step 4).
func (m *Manager) RecordPlacement(addr ShardAddress, lastIdInBatch uint64, bytesAdded uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.shards {
		if m.shards[i].Address == addr {
			m.shards[i].IdRangeEnd = lastIdInBatch + 1
			m.shards[i].BytesUsed += bytesAdded
			return
		}
	}
}

// ManagerState is the ArchiveState slice of the engine's persisted tuple
// (spec.md §6: "(LogState, WindowIndex, PreparedSet, ArchiveState,
// Config)"). It carries the ordered shard index and placement bookkeeping;
// shard contents themselves live in the shards' own storage, not here.
type ManagerState struct {
	Shards     []ShardInfo
	ActiveIdx  int
	RetryCount uint32
	Halted     bool
}

// ExportState snapshots the manager's bookkeeping for persistence
// (take_state, spec.md §9).
func (m *Manager) ExportState() ManagerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	shards := make([]ShardInfo, len(m.shards))
	copy(shards, m.shards)
	return ManagerState{Shards: shards, ActiveIdx: m.activeIdx, RetryCount: m.retryCount, Halted: m.halted}
}

// RestoreState reinstates bookkeeping after a restart (replace_state,
// spec.md §9), pairing persisted shard metadata with freshly reopened
// handles (e.g. from LocalFactory.ReopenAll, keyed by address). A shard
// with no matching handle keeps its place in the index but cannot serve
// reads until one is attached.
func (m *Manager) RestoreState(state ManagerState, handles map[ShardAddress]Shard) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shards = make([]ShardInfo, len(state.Shards))
	copy(m.shards, state.Shards)
	m.activeIdx = state.ActiveIdx
	m.retryCount = state.RetryCount
	m.halted = state.Halted
	m.handles = make(map[ShardAddress]Shard, len(handles))
	for addr, h := range handles {
		m.handles[addr] = h
	}
}
