package ledger

import (
	"context"

	"github.com/BitySA/dfinity-rust-libraries/archive"
)

// Range is a (start, length) read request (spec.md §6).
type Range struct {
	Start  uint64
	Length uint64
}

// ArchiveQuery is one entry of GetBlocksResult.ArchivedBlocks: the
// sub-requests clipped to a single shard, plus the callback the caller
// invokes to perform the second hop itself (spec.md §4.8 step 3:
// "caller-driven federation").
type ArchiveQuery struct {
	ShardAddress archive.ShardAddress
	Requests     []archive.Range
	Fetch        func(ctx context.Context) (archive.GetBlocksResult, error)
}

// GetBlocksResult is the Query Federator's response shape (spec.md §6).
type GetBlocksResult struct {
	LogLength      uint64
	Blocks         []BlockWithId
	ArchivedBlocks []ArchiveQuery
}

// getBlocksLocked implements the Query Federator (Q, spec.md §4.8). Caller
// must hold e.mu.
func (e *Engine) getBlocksLocked(requests []Range) GetBlocksResult {
	logLength := e.log.LogLength()
	residentStart := e.log.residentStart()

	result := GetBlocksResult{LogLength: logLength}

	type shardAccum struct {
		addr  archive.ShardAddress
		order int
		reqs  []archive.Range
	}
	shardOrder := make([]*shardAccum, 0, 4)
	byAddr := make(map[archive.ShardAddress]*shardAccum)

	remaining := e.cfg.MaxBlocksPerResponse
	for _, r := range requests {
		if remaining == 0 {
			break
		}
		length := r.Length
		if length > e.cfg.MaxBlocksPerResponse {
			length = e.cfg.MaxBlocksPerResponse
		}
		end := r.Start + length
		if end > logLength {
			end = logLength
		}

		var curAddr archive.ShardAddress
		var curAccum *shardAccum
		var curStart uint64
		var curLen uint64
		flush := func() {
			if curAccum != nil && curLen > 0 {
				curAccum.reqs = append(curAccum.reqs, archive.Range{Start: curStart, Length: curLen})
			}
			curAccum = nil
			curLen = 0
		}

		for id := r.Start; id < end && remaining > 0; id++ {
			if id >= residentStart {
				flush()
				bw, ok := e.log.blockAt(id)
				if !ok {
					continue
				}
				result.Blocks = append(result.Blocks, bw)
				remaining--
				continue
			}

			addr, _, ok := e.archiveMgr.ShardFor(id)
			if !ok {
				flush()
				continue
			}
			if curAccum == nil || addr != curAddr {
				flush()
				curAddr = addr
				acc, exists := byAddr[addr]
				if !exists {
					acc = &shardAccum{addr: addr, order: len(shardOrder)}
					byAddr[addr] = acc
					shardOrder = append(shardOrder, acc)
				}
				curAccum = acc
				curStart = id
				curLen = 0
			}
			curLen++
			remaining--
		}
		flush()
	}

	for _, acc := range shardOrder {
		addr := acc.addr
		_, shard, ok := e.archiveMgr.ShardFor(acc.reqs[0].Start)
		if !ok || shard == nil {
			continue
		}
		reqs := acc.reqs
		result.ArchivedBlocks = append(result.ArchivedBlocks, ArchiveQuery{
			ShardAddress: addr,
			Requests:     reqs,
			Fetch: func(ctx context.Context) (archive.GetBlocksResult, error) {
				return shard.GetBlocks(ctx, reqs)
			},
		})
	}

	return result
}
