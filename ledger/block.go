package ledger

import "github.com/BitySA/dfinity-rust-libraries/value"

// BlockWithId pairs a dense, monotonically increasing id with its block
// value (spec.md §3).
type BlockWithId struct {
	Id    uint64
	Block value.V
}

// buildBlock constructs the Map {phash, btype, ts, tx} for a new block.
// phash is the hash of the previous block, or value.ZeroHash for id 0
// (spec.md §4.3 edge cases).
func buildBlock(phash [32]byte, btype string, ts uint64, tx value.V) value.V {
	return value.MustMap([]value.Entry{
		{Key: "phash", Value: value.NewBlob(phash[:])},
		{Key: "btype", Value: value.NewText(btype)},
		{Key: "ts", Value: value.NewNatU64(ts)},
		{Key: "tx", Value: tx},
	})
}

// EncodedBlock is the canonical byte representation of a single block, used
// when batching blocks for archive offload (spec.md §4.7 step 3).
type EncodedBlock []byte
