package ledger

import "github.com/BitySA/dfinity-rust-libraries/value"

// LogState is the Hot Log (L): the in-process ordered sequence of the most
// recent blocks, the running tip hash, and the dense id counters
// (spec.md §3, §4.3).
type LogState struct {
	blocks    []BlockWithId // resident prefix..suffix; index 0 is blocks[0].Id, not necessarily id 0
	nextId    uint64
	tipHash   [32]byte
	logLength uint64 // total ever appended, including archived
}

func newLogState() *LogState {
	return &LogState{tipHash: value.ZeroHash}
}

func (l *LogState) TipHash() [32]byte { return l.tipHash }
func (l *LogState) NextId() uint64    { return l.nextId }
func (l *LogState) LogLength() uint64 { return l.logLength }

// residentLen is the number of blocks still held in memory (not yet
// offloaded to a shard).
func (l *LogState) residentLen() int { return len(l.blocks) }

// residentStart is the id of the oldest block still resident, or equal to
// nextId if L is empty of resident blocks.
func (l *LogState) residentStart() uint64 {
	if len(l.blocks) == 0 {
		return l.nextId
	}
	return l.blocks[0].Id
}

// appendBlock builds and appends a new block on top of the current tip,
// implementing spec.md §4.3 step 7.
func (l *LogState) appendBlock(btype string, ts uint64, tx value.V) BlockWithId {
	block := buildBlock(l.tipHash, btype, ts, tx)
	bw := BlockWithId{Id: l.nextId, Block: block}
	l.blocks = append(l.blocks, bw)
	l.nextId++
	l.tipHash = value.Hash(block)
	l.logLength++
	return bw
}

// blockAt returns the resident block with the given id, if it is still
// held in L rather than offloaded to a shard.
func (l *LogState) blockAt(id uint64) (BlockWithId, bool) {
	if len(l.blocks) == 0 {
		return BlockWithId{}, false
	}
	start := l.blocks[0].Id
	if id < start {
		return BlockWithId{}, false
	}
	idx := id - start
	if idx >= uint64(len(l.blocks)) {
		return BlockWithId{}, false
	}
	return l.blocks[idx], true
}

// prefixBatch returns up to maxBytes worth of the oldest resident blocks,
// encoded canonically, for the offload job (spec.md §4.7 step 2-3). encode
// is supplied by the caller so LogState stays independent of any specific
// wire format.
func (l *LogState) prefixBatch(maxBytes uint64, encode func(value.V) ([]byte, error)) ([]BlockWithId, [][]byte, error) {
	var batch []BlockWithId
	var encoded [][]byte
	var used uint64
	for _, bw := range l.blocks {
		b, err := encode(bw.Block)
		if err != nil {
			return nil, nil, err
		}
		if used+uint64(len(b)) > maxBytes && len(batch) > 0 {
			break
		}
		batch = append(batch, bw)
		encoded = append(encoded, b)
		used += uint64(len(b))
	}
	return batch, encoded, nil
}

// removePrefix drops the oldest n resident blocks after they have been
// durably accepted by a shard (spec.md §4.7 step 4).
func (l *LogState) removePrefix(n int) {
	if n <= 0 {
		return
	}
	if n > len(l.blocks) {
		n = len(l.blocks)
	}
	l.blocks = l.blocks[n:]
}
