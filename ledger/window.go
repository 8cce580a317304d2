package ledger

// windowEntry records the block id a content hash was admitted as, plus the
// event time used to expire it out of the window.
type windowEntry struct {
	blockId uint64
	ts      uint64
}

// windowIndex is the Dedup/Window Index (spec.md §4.4): a bound on how long
// a transaction's content hash is remembered for duplicate detection. It
// trades exact global dedup for a fixed memory footprint.
type windowIndex struct {
	byHash map[[32]byte]windowEntry
	spanNs uint64
}

func newWindowIndex(spanNs uint64) *windowIndex {
	return &windowIndex{
		byHash: make(map[[32]byte]windowEntry),
		spanNs: spanNs,
	}
}

// lookup reports the block id a content hash was already admitted as,
// within the window.
func (w *windowIndex) lookup(hash [32]byte) (uint64, bool) {
	e, ok := w.byHash[hash]
	if !ok {
		return 0, false
	}
	return e.blockId, true
}

// record remembers a newly admitted transaction's content hash.
func (w *windowIndex) record(hash [32]byte, blockId uint64, ts uint64) {
	w.byHash[hash] = windowEntry{blockId: blockId, ts: ts}
}

// evictBefore drops every entry whose timestamp has fallen out of the
// window relative to now. Called on every admission (spec.md §4.4: the
// window is pruned lazily, not on a timer).
func (w *windowIndex) evictBefore(now uint64) {
	if now < w.spanNs {
		return
	}
	cutoff := now - w.spanNs
	for hash, e := range w.byHash {
		if e.ts < cutoff {
			delete(w.byHash, hash)
		}
	}
}

func (w *windowIndex) len() int { return len(w.byHash) }
