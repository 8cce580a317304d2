// Package archive implements the Archive Manager (A) and Offload Job (J)
// of the block-log engine: the lifecycle of secondary storage shards that
// blocks are moved into once the hot log grows past its threshold
// (spec.md §4.6, §4.7).
package archive

import "context"

// ShardAddress is the opaque address A uses to refer to a shard; the core
// never inspects its internal structure (spec.md §9: "Cyclic relation
// L<->A: broken by making A's ids opaque addresses").
type ShardAddress string

// GetBlocksResult mirrors the core's icrc3_get_blocks shape so a shard can
// be queried uniformly by the Query Federator (spec.md §6).
type GetBlocksResult struct {
	LogLength uint64
	Blocks    []BlockWithId
}

// BlockWithId is the archive package's own copy of the core's
// (id, encoded block) pair; shards store canonical bytes, not the value
// model directly, so they have no dependency on package value.
type BlockWithId struct {
	Id    uint64
	Block []byte
}

// Shard is the contract the core consumes from each archive shard
// (spec.md §6 "Archive shard contract"). A real deployment backs this
// with a separate canister reached over the platform's inter-canister
// call surface; ShardStore below is the in-process, bbolt-backed
// implementation used by tests and the standalone daemon.
type Shard interface {
	InsertBlocks(ctx context.Context, blocks []BlockWithId) error
	GetBlocks(ctx context.Context, requests []Range) (GetBlocksResult, error)
	RemainingCapacity(ctx context.Context) (uint64, error)
	TotalTransactions(ctx context.Context) (uint64, error)
}

// Range is a (start, length) read request, reused both for top-level
// get_blocks calls and the per-shard sub-requests Q delegates.
type Range struct {
	Start  uint64
	Length uint64
}

// ShardStatus mirrors ArchiveShardInfo.status (spec.md §3).
type ShardStatus int

const (
	ShardActive ShardStatus = iota
	ShardFull
	ShardFailed
)

func (s ShardStatus) String() string {
	switch s {
	case ShardActive:
		return "Active"
	case ShardFull:
		return "Full"
	case ShardFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ShardInfo is ArchiveShardInfo (spec.md §3): the manager's bookkeeping
// record for one shard, independent of the shard's own storage.
type ShardInfo struct {
	Address      ShardAddress
	IdRangeStart uint64
	IdRangeEnd   uint64 // exclusive upper bound of ids placed so far
	BytesUsed    uint64
	Status       ShardStatus
}

func (s ShardInfo) Contains(id uint64) bool {
	return id >= s.IdRangeStart && id < s.IdRangeEnd
}
